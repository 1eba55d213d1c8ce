package recompute

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/busroute/core/events"
	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store"
	"github.com/kilianp07/busroute/core/timing"
	"github.com/kilianp07/busroute/internal/eventbus"
)

type fakeComputer struct {
	mu    sync.Mutex
	calls map[int64]int
	err   error
}

func (f *fakeComputer) ComputeAndPersist(_ context.Context, routeID int64) (timing.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[int64]int{}
	}
	f.calls[routeID]++
	return timing.Schedule{RouteID: routeID, StartTime: "07:30"}, f.err
}

func (f *fakeComputer) count(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func start(t *testing.T, c Computer, delay time.Duration) (*Scheduler, <-chan events.ScheduleRecomputed) {
	t.Helper()
	bus := eventbus.NewTyped[events.ScheduleRecomputed]()
	sub := bus.Subscribe()
	s := New(c, delay, bus, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		bus.Close()
	})
	return s, sub
}

func next(t *testing.T, sub <-chan events.ScheduleRecomputed) events.ScheduleRecomputed {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for recompute")
	}
	return events.ScheduleRecomputed{}
}

func TestBurstIsCoalesced(t *testing.T) {
	c := &fakeComputer{}
	s, sub := start(t, c, 50*time.Millisecond)

	for i := 0; i < 5; i++ {
		s.Request(7)
	}
	ev := next(t, sub)
	assert.Equal(t, int64(7), ev.RouteID)
	assert.Equal(t, 5, ev.Coalesced)
	assert.NotEmpty(t, ev.RequestID)
	assert.NoError(t, ev.Err)

	select {
	case extra := <-sub:
		t.Fatalf("unexpected second run: %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
	assert.Equal(t, 1, c.count(7))
}

func TestRequestRearmsDelay(t *testing.T) {
	c := &fakeComputer{}
	delay := 200 * time.Millisecond
	s, sub := start(t, c, delay)

	begin := time.Now()
	for i := 0; i < 4; i++ {
		s.Request(1)
		time.Sleep(delay / 4)
	}
	ev := next(t, sub)
	assert.Equal(t, 4, ev.Coalesced)
	assert.GreaterOrEqual(t, time.Since(begin), 3*delay/4+delay)
	assert.Equal(t, 1, c.count(1))
}

func TestRoutesAreIndependent(t *testing.T) {
	c := &fakeComputer{}
	s, sub := start(t, c, 30*time.Millisecond)

	s.Request(1)
	s.Request(2)
	s.Request(1)

	got := map[int64]int{}
	for i := 0; i < 2; i++ {
		ev := next(t, sub)
		got[ev.RouteID] = ev.Coalesced
	}
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, got)
}

func TestUsesStopsAtFireTime(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := model.Route{Name: "R", StartTime: "07:30"}
	require.NoError(t, st.SaveRoute(ctx, &r))
	require.NoError(t, st.AddStop(ctx, &model.RouteStop{RouteID: r.ID, StopOrder: 1}))

	s, sub := start(t, timing.New(st, timing.Options{}, nil), 60*time.Millisecond)
	s.Request(r.ID)
	require.NoError(t, st.AddStop(ctx, &model.RouteStop{RouteID: r.ID, StopOrder: 2, DwellMinutes: 4}))

	ev := next(t, sub)
	require.Len(t, ev.Stops, 2)
	assert.Equal(t, 2*time.Minute, ev.Stops[1].EstimatedArrival.Sub(ev.Stops[0].EstimatedArrival))

	stored, err := st.ListStopsForRoute(ctx, r.ID)
	require.NoError(t, err)
	for _, x := range stored {
		assert.False(t, x.EstimatedArrival.IsZero())
	}
}

func TestFailureIsPublished(t *testing.T) {
	c := &fakeComputer{err: outcome.Persistence("data store unavailable", assert.AnError)}
	s, sub := start(t, c, 10*time.Millisecond)
	s.Request(3)
	ev := next(t, sub)
	assert.Error(t, ev.Err)
	assert.Equal(t, "07:30", ev.StartTime)
}

func TestCloseStopsRun(t *testing.T) {
	s := New(&fakeComputer{}, time.Hour, nil, nil)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	s.Request(1)
	s.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
	s.Request(2)
	s.Close()
}
