// Package capacity assigns students to routes within vehicle seating limits
// and reports fleet utilisation.
package capacity

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/busroute/core/logger"
	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store"
)

// DefaultCapacity applies when no assigned vehicle contributes seats.
const DefaultCapacity = 30

// Utilisation thresholds of UtilizationStats.
const (
	FullRatio          = 1.0
	UnderutilizedRatio = 0.5
)

// Stats summarises utilisation over active routes.
type Stats struct {
	TotalRoutes        int       `json:"total_routes"`
	TotalAssigned      int       `json:"total_assigned"`
	TotalUnassigned    int       `json:"total_unassigned"`
	TotalCapacity      int       `json:"total_capacity"`
	AverageUtilization float64   `json:"average_utilization"`
	RoutesAtCapacity   int       `json:"routes_at_capacity"`
	Underutilized      int       `json:"underutilized_routes"`
	CalculatedAt       time.Time `json:"calculated_at"`
}

// Engine enforces capacity on student assignment.
type Engine struct {
	store    store.DataStore
	fallback int
	log      logger.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New returns an Engine. A non-positive defaultCapacity selects DefaultCapacity.
func New(st store.DataStore, defaultCapacity int, log logger.Logger) *Engine {
	if defaultCapacity <= 0 {
		defaultCapacity = DefaultCapacity
	}
	return &Engine{
		store:    st,
		fallback: defaultCapacity,
		log:      logger.OrNop(log),
		now:      time.Now,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// SetClock overrides the time source of CalculatedAt.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// lock serialises assignment changes on one route.
func (e *Engine) lock(routeID int64) func() {
	e.mu.Lock()
	l, ok := e.locks[routeID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[routeID] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Capacity returns the larger seating capacity of the AM and PM vehicles,
// or the default when neither contributes seats.
func (e *Engine) Capacity(ctx context.Context, r model.Route) (int, error) {
	best := 0
	for _, ref := range []*int64{r.AMVehicleID, r.PMVehicleID} {
		if ref == nil {
			continue
		}
		v, err := e.store.GetVehicle(ctx, *ref)
		if err != nil {
			return 0, outcome.FromStore("vehicle", *ref, err)
		}
		if v.SeatingCapacity > best {
			best = v.SeatingCapacity
		}
	}
	if best == 0 {
		return e.fallback, nil
	}
	return best, nil
}

type candidate struct {
	route   model.Route
	student model.Student
	slot    model.TimeSlot
	count   int
}

func (e *Engine) check(ctx context.Context, studentID, routeID int64) (candidate, error) {
	if err := outcome.CheckID("student", studentID); err != nil {
		return candidate{}, err
	}
	if err := outcome.CheckID("route", routeID); err != nil {
		return candidate{}, err
	}
	s, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return candidate{}, outcome.FromStore("student", studentID, err)
	}
	r, err := e.store.GetRoute(ctx, routeID)
	if err != nil {
		return candidate{}, outcome.FromStore("route", routeID, err)
	}
	count, err := e.store.CountStudentsOnRoute(ctx, routeID)
	if err != nil {
		return candidate{}, outcome.FromStore("route", routeID, err)
	}
	limit, err := e.Capacity(ctx, r)
	if err != nil {
		return candidate{}, err
	}
	if count >= limit {
		return candidate{}, outcome.CapacityExceeded("route %q is at capacity (%d/%d)", r.Name, count, limit)
	}
	c := candidate{route: r, student: s, count: count}
	switch {
	case s.AMRouteID == nil:
		c.slot = model.SlotAM
	case s.PMRouteID == nil:
		c.slot = model.SlotPM
	default:
		return candidate{}, outcome.Conflict("student already has AM and PM routes assigned")
	}
	return c, nil
}

// CanAssign reports the slot AssignStudent would fill, without writing.
func (e *Engine) CanAssign(ctx context.Context, studentID, routeID int64) (model.TimeSlot, error) {
	c, err := e.check(ctx, studentID, routeID)
	if err != nil {
		return 0, err
	}
	return c.slot, nil
}

// AssignStudent places studentID on routeID, filling the AM slot first.
func (e *Engine) AssignStudent(ctx context.Context, studentID, routeID int64) (model.TimeSlot, error) {
	if routeID > 0 {
		defer e.lock(routeID)()
	}
	c, err := e.check(ctx, studentID, routeID)
	if err != nil {
		return 0, err
	}
	s := c.student
	if c.slot == model.SlotAM {
		s.AMRouteID = model.Ref(routeID)
	} else {
		s.PMRouteID = model.Ref(routeID)
	}
	if err := e.store.SaveStudent(ctx, &s); err != nil {
		return 0, outcome.FromStore("student", studentID, err)
	}
	if err := e.refreshCount(ctx, c.route); err != nil {
		return c.slot, err
	}
	e.log.Debugw("student assigned", map[string]any{"route_id": routeID, "student_id": studentID, "slot": c.slot.String()})
	return c.slot, nil
}

// RemoveStudent clears every slot of studentID that references routeID.
func (e *Engine) RemoveStudent(ctx context.Context, studentID, routeID int64) error {
	if err := outcome.CheckID("student", studentID); err != nil {
		return err
	}
	if err := outcome.CheckID("route", routeID); err != nil {
		return err
	}
	defer e.lock(routeID)()
	s, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return outcome.FromStore("student", studentID, err)
	}
	r, err := e.store.GetRoute(ctx, routeID)
	if err != nil {
		return outcome.FromStore("route", routeID, err)
	}
	if !s.OnRoute(routeID) {
		return outcome.Conflict("student %d is not assigned to route %q", studentID, r.Name)
	}
	if s.AMRouteID != nil && *s.AMRouteID == routeID {
		s.AMRouteID = nil
	}
	if s.PMRouteID != nil && *s.PMRouteID == routeID {
		s.PMRouteID = nil
	}
	if err := e.store.SaveStudent(ctx, &s); err != nil {
		return outcome.FromStore("student", studentID, err)
	}
	if err := e.refreshCount(ctx, r); err != nil {
		return err
	}
	e.log.Debugw("student removed", map[string]any{"route_id": routeID, "student_id": studentID})
	return nil
}

func (e *Engine) refreshCount(ctx context.Context, r model.Route) error {
	n, err := e.store.CountStudentsOnRoute(ctx, r.ID)
	if err != nil {
		return outcome.FromStore("route", r.ID, err)
	}
	r.StudentCount = n
	r.UpdatedAt = e.now()
	if err := e.store.SaveRoute(ctx, &r); err != nil {
		return outcome.FromStore("route", r.ID, err)
	}
	return nil
}

// UtilizationStats aggregates assignment figures over all active routes.
func (e *Engine) UtilizationStats(ctx context.Context) (Stats, error) {
	active := true
	routes, err := e.store.ListRoutes(ctx, store.RouteFilter{Active: &active})
	if err != nil {
		return Stats{}, outcome.FromStore("routes", 0, err)
	}
	unassigned, err := e.store.CountUnassignedStudents(ctx)
	if err != nil {
		return Stats{}, outcome.FromStore("students", 0, err)
	}
	st := Stats{TotalRoutes: len(routes), TotalUnassigned: unassigned, CalculatedAt: e.now()}
	ratios := make([]float64, 0, len(routes))
	for _, r := range routes {
		n, err := e.store.CountStudentsOnRoute(ctx, r.ID)
		if err != nil {
			return Stats{}, outcome.FromStore("route", r.ID, err)
		}
		limit, err := e.Capacity(ctx, r)
		if err != nil {
			return Stats{}, err
		}
		st.TotalAssigned += n
		st.TotalCapacity += limit
		ratio := float64(n) / float64(limit)
		ratios = append(ratios, ratio)
		switch {
		case ratio >= FullRatio:
			st.RoutesAtCapacity++
		case ratio < UnderutilizedRatio:
			st.Underutilized++
		}
	}
	if len(ratios) > 0 {
		st.AverageUtilization = stat.Mean(ratios, nil)
	}
	return st, nil
}
