// Package sequencer maintains the ordered stop list of each route.
//
// Stop orders are contiguous 1..N right after ReorderStops. AddStop and
// RemoveStop may leave gaps that persist until the next reorder.
package sequencer

import (
	"context"
	"sort"
	"time"

	"github.com/kilianp07/busroute/core/logger"
	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store"
)

// RecomputeRequester is notified after every structural stop edit.
type RecomputeRequester interface {
	Request(routeID int64)
}

// Sequencer adds, removes and orders the stops of a route.
type Sequencer struct {
	store     store.DataStore
	recompute RecomputeRequester
	log       logger.Logger
	now       func() time.Time
}

// New returns a Sequencer. rec and log may be nil.
func New(st store.DataStore, rec RecomputeRequester, log logger.Logger) *Sequencer {
	return &Sequencer{store: st, recompute: rec, log: logger.OrNop(log), now: time.Now}
}

// SetClock overrides the time source used to stamp new stops.
func (s *Sequencer) SetClock(now func() time.Time) { s.now = now }

func (s *Sequencer) requestRecompute(routeID int64) {
	if s.recompute != nil {
		s.recompute.Request(routeID)
	}
}

func (s *Sequencer) route(ctx context.Context, routeID int64) (model.Route, error) {
	if err := outcome.CheckID("route", routeID); err != nil {
		return model.Route{}, err
	}
	r, err := s.store.GetRoute(ctx, routeID)
	if err != nil {
		return model.Route{}, outcome.FromStore("route", routeID, err)
	}
	return r, nil
}

// Stops returns the stops of routeID in ascending order.
func (s *Sequencer) Stops(ctx context.Context, routeID int64) ([]model.RouteStop, error) {
	if _, err := s.route(ctx, routeID); err != nil {
		return nil, err
	}
	return s.sortedStops(ctx, routeID)
}

func (s *Sequencer) sortedStops(ctx context.Context, routeID int64) ([]model.RouteStop, error) {
	stops, err := s.store.ListStopsForRoute(ctx, routeID)
	if err != nil {
		return nil, outcome.FromStore("route", routeID, err)
	}
	SortByOrder(stops)
	return stops, nil
}

// SortByOrder sorts stops by StopOrder, breaking ties by id.
func SortByOrder(stops []model.RouteStop) {
	sort.SliceStable(stops, func(i, j int) bool {
		if stops[i].StopOrder != stops[j].StopOrder {
			return stops[i].StopOrder < stops[j].StopOrder
		}
		return stops[i].ID < stops[j].ID
	})
}

// AddStop appends stop to routeID. A non-positive StopOrder is replaced by
// one past the highest existing order.
func (s *Sequencer) AddStop(ctx context.Context, routeID int64, stop model.RouteStop) (model.RouteStop, error) {
	r, err := s.route(ctx, routeID)
	if err != nil {
		return model.RouteStop{}, err
	}
	stops, err := s.sortedStops(ctx, routeID)
	if err != nil {
		return model.RouteStop{}, err
	}
	if stop.StopOrder <= 0 {
		highest := 0
		for _, st := range stops {
			if st.StopOrder > highest {
				highest = st.StopOrder
			}
		}
		stop.StopOrder = highest + 1
	}
	stop.ID = 0
	stop.RouteID = routeID
	stop.CreatedAt = s.now()
	stop.EstimatedArrival = time.Time{}
	stop.EstimatedDeparture = time.Time{}
	if err := s.store.AddStop(ctx, &stop); err != nil {
		return model.RouteStop{}, outcome.FromStore("route", routeID, err)
	}
	if err := s.refreshStopCount(ctx, r, len(stops)+1); err != nil {
		return stop, err
	}
	s.log.Debugw("stop added", map[string]any{"route_id": routeID, "stop_id": stop.ID, "stop_order": stop.StopOrder})
	s.requestRecompute(routeID)
	return stop, nil
}

// RemoveStop deletes stopID from routeID without renumbering the others.
func (s *Sequencer) RemoveStop(ctx context.Context, routeID, stopID int64) error {
	r, err := s.route(ctx, routeID)
	if err != nil {
		return err
	}
	if err := outcome.CheckID("stop", stopID); err != nil {
		return err
	}
	stops, err := s.sortedStops(ctx, routeID)
	if err != nil {
		return err
	}
	if indexOf(stops, stopID) < 0 {
		return outcome.NotFound("stop", stopID)
	}
	if err := s.store.RemoveStop(ctx, stopID); err != nil {
		return outcome.FromStore("stop", stopID, err)
	}
	if err := s.refreshStopCount(ctx, r, len(stops)-1); err != nil {
		return err
	}
	s.log.Debugw("stop removed", map[string]any{"route_id": routeID, "stop_id": stopID})
	s.requestRecompute(routeID)
	return nil
}

// ReorderStops assigns StopOrder i+1 to orderedIDs[i]. orderedIDs must be
// exactly the current stop id set of the route. Only stops whose order
// changes are written.
func (s *Sequencer) ReorderStops(ctx context.Context, routeID int64, orderedIDs []int64) ([]model.RouteStop, error) {
	if _, err := s.route(ctx, routeID); err != nil {
		return nil, err
	}
	stops, err := s.sortedStops(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if len(orderedIDs) != len(stops) {
		return nil, outcome.Invalid("reorder lists %d stops, route %d has %d", len(orderedIDs), routeID, len(stops))
	}
	byID := make(map[int64]int, len(stops))
	for i, st := range stops {
		byID[st.ID] = i
	}
	seen := make(map[int64]struct{}, len(orderedIDs))
	var updates []store.StopOrderUpdate
	for pos, id := range orderedIDs {
		idx, ok := byID[id]
		if !ok {
			return nil, outcome.Invalid("stop %d does not belong to route %d", id, routeID)
		}
		if _, dup := seen[id]; dup {
			return nil, outcome.Invalid("stop %d listed twice", id)
		}
		seen[id] = struct{}{}
		if stops[idx].StopOrder != pos+1 {
			updates = append(updates, store.StopOrderUpdate{StopID: id, StopOrder: pos + 1})
		}
	}
	if len(updates) > 0 {
		n, err := s.store.BulkUpdateStopOrder(ctx, routeID, updates)
		if err != nil {
			return nil, outcome.FromStore("route", routeID, err)
		}
		if n == 0 {
			s.log.Warnw("reorder persisted no rows", map[string]any{"route_id": routeID, "requested": len(updates)})
		}
	}
	s.requestRecompute(routeID)
	return s.sortedStops(ctx, routeID)
}

// MoveUp swaps stopID with its predecessor. The first stop stays in place.
func (s *Sequencer) MoveUp(ctx context.Context, routeID, stopID int64) ([]model.RouteStop, error) {
	return s.move(ctx, routeID, stopID, -1)
}

// MoveDown swaps stopID with its successor. The last stop stays in place.
func (s *Sequencer) MoveDown(ctx context.Context, routeID, stopID int64) ([]model.RouteStop, error) {
	return s.move(ctx, routeID, stopID, 1)
}

func (s *Sequencer) move(ctx context.Context, routeID, stopID int64, delta int) ([]model.RouteStop, error) {
	if _, err := s.route(ctx, routeID); err != nil {
		return nil, err
	}
	if err := outcome.CheckID("stop", stopID); err != nil {
		return nil, err
	}
	stops, err := s.sortedStops(ctx, routeID)
	if err != nil {
		return nil, err
	}
	i := indexOf(stops, stopID)
	if i < 0 {
		return nil, outcome.NotFound("stop", stopID)
	}
	j := i + delta
	if j < 0 || j >= len(stops) {
		return stops, nil
	}
	ids := make([]int64, len(stops))
	for k, st := range stops {
		ids[k] = st.ID
	}
	ids[i], ids[j] = ids[j], ids[i]
	return s.ReorderStops(ctx, routeID, ids)
}

func (s *Sequencer) refreshStopCount(ctx context.Context, r model.Route, count int) error {
	if count < 0 {
		count = 0
	}
	r.StopCount = count
	r.UpdatedAt = s.now()
	if err := s.store.SaveRoute(ctx, &r); err != nil {
		return outcome.FromStore("route", r.ID, err)
	}
	return nil
}

func indexOf(stops []model.RouteStop, id int64) int {
	for i, st := range stops {
		if st.ID == id {
			return i
		}
	}
	return -1
}
