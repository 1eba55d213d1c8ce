// Package recompute coalesces bursts of structural stop edits into a single
// deferred schedule computation per route.
//
// Requests are queued to one consumer goroutine. The consumer keeps at most
// one pending deadline per route; a new request replaces it and re-arms the
// delay. When a deadline passes the route is recomputed from its stops at
// that moment.
package recompute

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/busroute/core/events"
	"github.com/kilianp07/busroute/core/logger"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/timing"
	"github.com/kilianp07/busroute/internal/eventbus"
)

// DefaultDelay is the quiet period that closes a burst of edits.
const DefaultDelay = 600 * time.Millisecond

const queueSize = 256

// Computer recomputes and stores the schedule of one route.
type Computer interface {
	ComputeAndPersist(ctx context.Context, routeID int64) (timing.Schedule, error)
}

type pending struct {
	deadline time.Time
	requests int
}

// Scheduler is the single consumer of recompute requests.
type Scheduler struct {
	compute Computer
	delay   time.Duration
	bus     *eventbus.TypedBus[events.ScheduleRecomputed]
	log     logger.Logger

	requests  chan int64
	done      chan struct{}
	closeOnce sync.Once
}

// New returns a Scheduler. A non-positive delay selects DefaultDelay; bus
// and log may be nil.
func New(c Computer, delay time.Duration, bus *eventbus.TypedBus[events.ScheduleRecomputed], log logger.Logger) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{
		compute:  c,
		delay:    delay,
		bus:      bus,
		log:      logger.OrNop(log),
		requests: make(chan int64, queueSize),
		done:     make(chan struct{}),
	}
}

// Request enqueues a recompute of routeID. It is dropped after Close.
func (s *Scheduler) Request(routeID int64) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.requests <- routeID:
	case <-s.done:
	}
}

// Close stops Run. Pending deadlines are discarded.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Run consumes requests until ctx is canceled or Close is called.
func (s *Scheduler) Run(ctx context.Context) error {
	queue := make(map[int64]*pending)
	timer := time.NewTimer(s.delay)
	timer.Stop()
	defer timer.Stop()
	var fire <-chan time.Time

	rearm := func() {
		if len(queue) == 0 {
			timer.Stop()
			fire = nil
			return
		}
		var next time.Time
		for _, p := range queue {
			if next.IsZero() || p.deadline.Before(next) {
				next = p.deadline
			}
		}
		timer.Reset(time.Until(next))
		fire = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case id := <-s.requests:
			p, ok := queue[id]
			if !ok {
				p = &pending{}
				queue[id] = p
			}
			p.requests++
			p.deadline = time.Now().Add(s.delay)
			rearm()
		case <-fire:
			now := time.Now()
			for id, p := range queue {
				if p.deadline.After(now) {
					continue
				}
				delete(queue, id)
				s.run(ctx, id, p.requests)
			}
			rearm()
		}
	}
}

func (s *Scheduler) run(ctx context.Context, routeID int64, coalesced int) {
	start := time.Now()
	sch, err := s.compute.ComputeAndPersist(ctx, routeID)
	ev := events.ScheduleRecomputed{
		RequestID: uuid.NewString(),
		RouteID:   routeID,
		StartTime: sch.StartTime,
		Stops:     sch.Stops,
		Coalesced: coalesced,
		Duration:  time.Since(start),
		Err:       err,
		At:        time.Now(),
	}
	switch {
	case err == nil:
		s.log.Debugw("schedule recomputed", map[string]any{"route_id": routeID, "request_id": ev.RequestID, "coalesced": coalesced})
	case outcome.KindOf(err).Expected():
		s.log.Warnw("schedule recompute skipped", map[string]any{"route_id": routeID, "request_id": ev.RequestID, "error": err.Error()})
	default:
		s.log.Errorw("schedule recompute failed", map[string]any{"route_id": routeID, "request_id": ev.RequestID, "error": err.Error()})
	}
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}
