// Package lifecycle owns route creation, activation and cloning together with
// vehicle and driver slot assignment.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/busroute/core/logger"
	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store"
)

// Validation messages.
const (
	IssueNameRequired = "route name is required"
	IssuePastDate     = "route date cannot be in the past"
	IssueNoStops      = "route has no stops"
	IssueNoVehicle    = "route has no vehicle assigned"
	WarnNoDriver      = "route has no driver assigned"
	WarnNoStudents    = "route has no students assigned"
)

// CapacityProvider yields the seating capacity of a route.
type CapacityProvider interface {
	Capacity(ctx context.Context, r model.Route) (int, error)
}

// Options carries the planning defaults applied to new routes.
type Options struct {
	DefaultSchool    string
	DefaultStartTime string
	// StrictActivation turns the missing stop and vehicle warnings into
	// blocking issues.
	StrictActivation bool
}

// Manager drives routes through their Draft and Active states.
type Manager struct {
	store    store.DataStore
	capacity CapacityProvider
	opts     Options
	log      logger.Logger
	now      func() time.Time
}

// New returns a Manager. capacity and log may be nil; without a capacity
// provider the over-capacity warning is skipped.
func New(st store.DataStore, capacity CapacityProvider, o Options, log logger.Logger) *Manager {
	if o.DefaultStartTime == "" {
		o.DefaultStartTime = "07:30"
	}
	return &Manager{store: st, capacity: capacity, opts: o, log: logger.OrNop(log), now: time.Now}
}

// SetClock overrides the time source used for "today" and timestamps.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) get(ctx context.Context, routeID int64) (model.Route, error) {
	if err := outcome.CheckID("route", routeID); err != nil {
		return model.Route{}, err
	}
	r, err := m.store.GetRoute(ctx, routeID)
	if err != nil {
		return model.Route{}, outcome.FromStore("route", routeID, err)
	}
	return r, nil
}

func (m *Manager) inPast(d time.Time) bool {
	now := m.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.Location())
	return model.Day(d).Before(today)
}

func (m *Manager) checkNew(ctx context.Context, name string, date time.Time) error {
	if name == "" {
		return outcome.Invalid(IssueNameRequired)
	}
	if m.inPast(date) {
		return outcome.Invalid("%s: %s", IssuePastDate, date.Format(time.DateOnly))
	}
	day := model.Day(date)
	existing, err := m.store.ListRoutes(ctx, store.RouteFilter{Date: &day})
	if err != nil {
		return outcome.FromStore("routes", 0, err)
	}
	for _, r := range existing {
		if r.Name == name {
			return outcome.Conflict("a route named %q already exists for %s", name, date.Format(time.DateOnly))
		}
	}
	return nil
}

// CreateRoute persists a new Draft route.
func (m *Manager) CreateRoute(ctx context.Context, name string, date time.Time, description string) (model.Route, error) {
	name = strings.TrimSpace(name)
	if err := m.checkNew(ctx, name, date); err != nil {
		return model.Route{}, err
	}
	now := m.now()
	r := model.Route{
		Name:        name,
		Description: description,
		School:      m.opts.DefaultSchool,
		Date:        model.Day(date),
		StartTime:   m.opts.DefaultStartTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.SaveRoute(ctx, &r); err != nil {
		return model.Route{}, outcome.FromStore("route", 0, err)
	}
	m.log.Infof("route %d created: %s on %s", r.ID, r.Name, r.Date.Format(time.DateOnly))
	return r, nil
}

// ValidateForActivation reports blocking issues and advisory warnings for
// routeID. It never writes.
func (m *Manager) ValidateForActivation(ctx context.Context, routeID int64) (model.ValidationResult, error) {
	r, err := m.get(ctx, routeID)
	if err != nil {
		return model.ValidationResult{}, err
	}
	res := model.ValidationResult{RouteID: routeID, Issues: []string{}}
	if strings.TrimSpace(r.Name) == "" {
		res.Issues = append(res.Issues, IssueNameRequired)
	}
	if m.inPast(r.Date) {
		res.Issues = append(res.Issues, IssuePastDate)
	}

	stops, err := m.store.ListStopsForRoute(ctx, routeID)
	if err != nil {
		return model.ValidationResult{}, outcome.FromStore("route", routeID, err)
	}
	m.flag(&res, len(stops) == 0, IssueNoStops)
	m.flag(&res, !r.HasVehicle(), IssueNoVehicle)
	if !r.HasDriver() {
		res.Warnings = append(res.Warnings, WarnNoDriver)
	}

	students, err := m.store.CountStudentsOnRoute(ctx, routeID)
	if err != nil {
		return model.ValidationResult{}, outcome.FromStore("route", routeID, err)
	}
	if students == 0 {
		res.Warnings = append(res.Warnings, WarnNoStudents)
	}
	if m.capacity != nil {
		limit, err := m.capacity.Capacity(ctx, r)
		if err != nil {
			return model.ValidationResult{}, err
		}
		if students > limit {
			res.Warnings = append(res.Warnings, fmt.Sprintf("route has %d students for %d seats", students, limit))
		}
	}
	res.IsValid = len(res.Issues) == 0
	return res, nil
}

// flag records msg as an issue in strict mode and as a warning otherwise.
func (m *Manager) flag(res *model.ValidationResult, cond bool, msg string) {
	if !cond {
		return
	}
	if m.opts.StrictActivation {
		res.Issues = append(res.Issues, msg)
		return
	}
	res.Warnings = append(res.Warnings, msg)
}

// Activate marks routeID active after validation. Activating an active
// route succeeds without writing.
func (m *Manager) Activate(ctx context.Context, routeID int64) (model.Route, error) {
	r, err := m.get(ctx, routeID)
	if err != nil {
		return model.Route{}, err
	}
	if r.IsActive {
		return r, nil
	}
	v, err := m.ValidateForActivation(ctx, routeID)
	if err != nil {
		return model.Route{}, err
	}
	if !v.IsValid {
		return model.Route{}, outcome.Invalid("route validation failed: %s", strings.Join(v.Issues, "; "))
	}
	for _, w := range v.Warnings {
		m.log.Warnw("route activated with warning", map[string]any{"route_id": routeID, "warning": w})
	}
	return m.setActive(ctx, r, true)
}

// Deactivate marks routeID inactive. Deactivating an inactive route succeeds
// without writing.
func (m *Manager) Deactivate(ctx context.Context, routeID int64) (model.Route, error) {
	r, err := m.get(ctx, routeID)
	if err != nil {
		return model.Route{}, err
	}
	if !r.IsActive {
		return r, nil
	}
	return m.setActive(ctx, r, false)
}

func (m *Manager) setActive(ctx context.Context, r model.Route, active bool) (model.Route, error) {
	r.IsActive = active
	r.UpdatedAt = m.now()
	if err := m.store.SaveRoute(ctx, &r); err != nil {
		return model.Route{}, outcome.FromStore("route", r.ID, err)
	}
	m.log.Infof("route %d active=%t", r.ID, active)
	return r, nil
}

// Clone creates a Draft copy of sourceID on newDate. Stops, vehicles and
// drivers stay with the source. An empty newName keeps the source name.
func (m *Manager) Clone(ctx context.Context, sourceID int64, newDate time.Time, newName string) (model.Route, error) {
	src, err := m.get(ctx, sourceID)
	if err != nil {
		return model.Route{}, err
	}
	name := strings.TrimSpace(newName)
	if name == "" {
		name = src.Name
	}
	if err := m.checkNew(ctx, name, newDate); err != nil {
		return model.Route{}, err
	}
	now := m.now()
	r := model.Route{
		Name:        name,
		Description: src.Description,
		School:      src.School,
		Date:        model.Day(newDate),
		StartTime:   src.StartTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.SaveRoute(ctx, &r); err != nil {
		return model.Route{}, outcome.FromStore("route", 0, err)
	}
	m.log.Infof("route %d cloned from %d", r.ID, sourceID)
	return r, nil
}
