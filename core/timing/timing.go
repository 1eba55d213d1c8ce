// Package timing derives per-stop arrival and departure estimates from a
// route's start time, stop order and dwell times.
package timing

import (
	"context"
	"time"

	"github.com/kilianp07/busroute/core/logger"
	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/sequencer"
	"github.com/kilianp07/busroute/core/store"
)

// ClockLayout is the 24h layout of route start times.
const ClockLayout = "15:04"

// FallbackStartTime replaces start times that fail to parse.
const FallbackStartTime = "07:30"

// Options tunes schedule construction.
type Options struct {
	// FallbackStart is used when the route start time is not HH:mm.
	FallbackStart string
	// DefaultDwell applies to stops without a positive dwell.
	DefaultDwell time.Duration
}

func (o Options) withDefaults() Options {
	if _, err := time.Parse(ClockLayout, o.FallbackStart); err != nil {
		o.FallbackStart = FallbackStartTime
	}
	if o.DefaultDwell <= 0 {
		o.DefaultDwell = model.DefaultDwellMinutes * time.Minute
	}
	return o
}

// Schedule is the computed timing of one route.
type Schedule struct {
	RouteID   int64  `json:"route_id"`
	StartTime string `json:"start_time"`

	// Normalized is set when StartTime replaced an unparsable value.
	Normalized bool              `json:"normalized,omitempty"`
	Stops      []model.RouteStop `json:"stops"`
	ComputedAt time.Time         `json:"computed_at"`
}

// Build computes arrival and departure times for stops on day, starting at
// startTime. Stops are processed in ascending StopOrder; the input slice is
// not modified.
func Build(day time.Time, startTime string, stops []model.RouteStop, o Options) Schedule {
	o = o.withDefaults()
	sch := Schedule{StartTime: startTime}
	clock, err := time.Parse(ClockLayout, startTime)
	if err != nil {
		clock, _ = time.Parse(ClockLayout, o.FallbackStart)
		sch.StartTime = o.FallbackStart
		sch.Normalized = true
	}
	y, m, d := day.Date()
	cursor := time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location())

	out := make([]model.RouteStop, len(stops))
	copy(out, stops)
	sequencer.SortByOrder(out)
	for i := range out {
		dwell := o.DefaultDwell
		if out[i].DwellMinutes > 0 {
			dwell = time.Duration(out[i].DwellMinutes) * time.Minute
		}
		out[i].EstimatedArrival = cursor
		out[i].EstimatedDeparture = cursor.Add(dwell)
		cursor = out[i].EstimatedDeparture
	}
	sch.Stops = out
	return sch
}

// Engine computes schedules and persists them through the Data Store.
type Engine struct {
	store store.DataStore
	opts  Options
	log   logger.Logger
	now   func() time.Time
}

// New returns an Engine. log may be nil.
func New(st store.DataStore, o Options, log logger.Logger) *Engine {
	return &Engine{store: st, opts: o.withDefaults(), log: logger.OrNop(log), now: time.Now}
}

// SetClock overrides the time source; its calendar date anchors every schedule.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Compute builds the schedule of stops for the current date without persisting.
func (e *Engine) Compute(startTime string, stops []model.RouteStop) Schedule {
	now := e.now()
	s := Build(now, startTime, stops, e.opts)
	s.ComputedAt = now
	return s
}

// ComputeAndPersist loads routeID and its current stops, computes the
// schedule and stores it in one batch. When persisting fails the computed
// schedule is still returned together with the error.
func (e *Engine) ComputeAndPersist(ctx context.Context, routeID int64) (Schedule, error) {
	if err := outcome.CheckID("route", routeID); err != nil {
		return Schedule{}, err
	}
	r, err := e.store.GetRoute(ctx, routeID)
	if err != nil {
		return Schedule{}, outcome.FromStore("route", routeID, err)
	}
	stops, err := e.store.ListStopsForRoute(ctx, routeID)
	if err != nil {
		return Schedule{}, outcome.FromStore("route", routeID, err)
	}

	sch := e.Compute(r.StartTime, stops)
	sch.RouteID = routeID

	if sch.StartTime != r.StartTime {
		e.log.Warnw("start time normalised", map[string]any{"route_id": routeID, "from": r.StartTime, "to": sch.StartTime})
		r.StartTime = sch.StartTime
		r.UpdatedAt = sch.ComputedAt
		if err := e.store.SaveRoute(ctx, &r); err != nil {
			return sch, outcome.FromStore("route", routeID, err)
		}
	}

	if len(sch.Stops) == 0 {
		return sch, nil
	}
	updates := make([]store.StopTimingUpdate, len(sch.Stops))
	for i, st := range sch.Stops {
		updates[i] = store.StopTimingUpdate{StopID: st.ID, Arrival: st.EstimatedArrival, Departure: st.EstimatedDeparture}
	}
	n, err := e.store.BulkUpdateStopTiming(ctx, routeID, updates)
	if err != nil {
		return sch, outcome.FromStore("route", routeID, err)
	}
	if n == 0 {
		e.log.Warnw("timing persisted no rows", map[string]any{"route_id": routeID, "requested": len(updates)})
	}
	e.log.Debugw("schedule computed", map[string]any{"route_id": routeID, "stops": len(sch.Stops), "start": sch.StartTime})
	return sch, nil
}
