// Package planner is the operation boundary of the route planning core.
//
// Every exported operation returns a value and an error. A non-nil error is
// always an *outcome.Error carrying the operation name and route id; panics
// and untyped failures are converted to PersistenceFailure, logged and sent
// to the monitor. Successful mutations publish an events.RouteChanged.
package planner

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kilianp07/busroute/core/capacity"
	"github.com/kilianp07/busroute/core/events"
	"github.com/kilianp07/busroute/core/lifecycle"
	"github.com/kilianp07/busroute/core/logger"
	"github.com/kilianp07/busroute/core/metrics"
	"github.com/kilianp07/busroute/core/monitoring"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/recompute"
	"github.com/kilianp07/busroute/core/sequencer"
	"github.com/kilianp07/busroute/core/store"
	"github.com/kilianp07/busroute/core/timing"
	"github.com/kilianp07/busroute/internal/eventbus"
)

// Options carries the planning defaults.
type Options struct {
	DefaultCapacity     int
	DefaultSchool       string
	DefaultStartTime    string
	DefaultDwellMinutes int
	RecomputeDelay      time.Duration
	StrictActivation    bool
}

// Deps are the collaborators of a Planner. Only Store is required.
type Deps struct {
	Store     store.DataStore
	Changes   *eventbus.TypedBus[events.RouteChanged]
	Schedules *eventbus.TypedBus[events.ScheduleRecomputed]
	Metrics   metrics.MetricsSink
	Monitor   monitoring.Monitor
	Logger    logger.Logger
	// Clock overrides time.Now for every engine.
	Clock func() time.Time
}

// Planner wires the engines together behind the operation API.
type Planner struct {
	store     store.DataStore
	lifecycle *lifecycle.Manager
	sequencer *sequencer.Sequencer
	timing    *timing.Engine
	capacity  *capacity.Engine
	recompute *recompute.Scheduler

	changes   *eventbus.TypedBus[events.RouteChanged]
	schedules *eventbus.TypedBus[events.ScheduleRecomputed]
	metrics   metrics.MetricsSink
	mon       monitoring.Monitor
	log       logger.Logger
	now       func() time.Time
}

// New builds a Planner and its engines.
func New(d Deps, o Options) *Planner {
	log := logger.OrNop(d.Logger)
	now := d.Clock
	if now == nil {
		now = time.Now
	}
	sink := d.Metrics
	if sink == nil {
		sink = metrics.NopSink{}
	}

	capEng := capacity.New(d.Store, o.DefaultCapacity, log)
	capEng.SetClock(now)

	tim := timing.New(d.Store, timing.Options{
		FallbackStart: timing.FallbackStartTime,
		DefaultDwell:  time.Duration(o.DefaultDwellMinutes) * time.Minute,
	}, log)
	tim.SetClock(now)

	rec := recompute.New(tim, o.RecomputeDelay, d.Schedules, log)

	seq := sequencer.New(d.Store, rec, log)
	seq.SetClock(now)

	lc := lifecycle.New(d.Store, capEng, lifecycle.Options{
		DefaultSchool:    o.DefaultSchool,
		DefaultStartTime: o.DefaultStartTime,
		StrictActivation: o.StrictActivation,
	}, log)
	lc.SetClock(now)

	return &Planner{
		store:     d.Store,
		lifecycle: lc,
		sequencer: seq,
		timing:    tim,
		capacity:  capEng,
		recompute: rec,
		changes:   d.Changes,
		schedules: d.Schedules,
		metrics:   sink,
		mon:       monitoring.OrNop(d.Monitor),
		log:       log,
		now:       now,
	}
}

// Run consumes schedule recompute requests until ctx ends or Close is called.
func (p *Planner) Run(ctx context.Context) error { return p.recompute.Run(ctx) }

// Close stops the recompute consumer.
func (p *Planner) Close() { p.recompute.Close() }

// call runs fn as operation op on routeID and applies the boundary policy.
func call[T any](p *Planner, op string, routeID int64, fn func() (T, error)) (v T, err error) {
	start := p.now()
	defer func() {
		if r := recover(); r != nil {
			p.mon.CapturePanic(r, tags(op, routeID))
			var zero T
			v = zero
			err = fmt.Errorf("panic: %v", r)
		}
		err = p.finish(op, routeID, start, err)
	}()
	return fn()
}

func (p *Planner) finish(op string, routeID int64, start time.Time, err error) error {
	ev := metrics.OperationEvent{Op: op, RouteID: routeID, Outcome: "ok", Duration: p.now().Sub(start), Time: start}
	var out error
	if err != nil {
		e := outcome.Normalize(op, routeID, err)
		ev.Outcome = e.Kind.String()
		fields := map[string]any{"op": op, "route_id": e.RouteID, "kind": ev.Outcome, "error": e.Error()}
		if e.Kind.Expected() {
			p.log.Warnw("operation rejected", fields)
		} else {
			p.log.Errorw("operation failed", fields)
			p.mon.CaptureException(e, tags(op, e.RouteID))
		}
		out = e
	}
	if mErr := p.metrics.RecordOperation(ev); mErr != nil {
		p.log.Debugw("metrics record failed", map[string]any{"op": op, "error": mErr.Error()})
	}
	return out
}

func tags(op string, routeID int64) map[string]string {
	return map[string]string{"op": op, "route_id": strconv.FormatInt(routeID, 10)}
}

func (p *Planner) changed(routeID int64, kind events.ChangeKind, op string) {
	if p.changes == nil {
		return
	}
	p.changes.Publish(events.RouteChanged{RouteID: routeID, Kind: kind, Op: op, At: p.now()})
}
