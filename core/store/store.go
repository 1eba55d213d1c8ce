// Package store declares the persistence contract used by the planning engines
// and an in-memory implementation suitable for tests and single-process use.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/busroute/core/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RouteFilter narrows ListRoutes. Zero values match everything.
type RouteFilter struct {
	Date   *time.Time
	Active *bool
	School string
}

// Match reports whether r satisfies the filter.
func (f RouteFilter) Match(r model.Route) bool {
	if f.Date != nil && !model.SameDay(*f.Date, r.Date) {
		return false
	}
	if f.Active != nil && *f.Active != r.IsActive {
		return false
	}
	if f.School != "" && f.School != r.School {
		return false
	}
	return true
}

// StopOrderUpdate assigns a new position to one stop.
type StopOrderUpdate struct {
	StopID    int64
	StopOrder int
}

// StopTimingUpdate carries the derived schedule of one stop.
type StopTimingUpdate struct {
	StopID    int64
	Arrival   time.Time
	Departure time.Time
}

// DataStore is the persistence collaborator of the planning engines.
// Implementations must be safe for concurrent use.
type DataStore interface {
	GetRoute(ctx context.Context, id int64) (model.Route, error)
	ListRoutes(ctx context.Context, f RouteFilter) ([]model.Route, error)
	// SaveRoute inserts the route when r.ID is zero, updating r.ID, and
	// replaces the stored route otherwise.
	SaveRoute(ctx context.Context, r *model.Route) error

	ListStopsForRoute(ctx context.Context, routeID int64) ([]model.RouteStop, error)
	AddStop(ctx context.Context, s *model.RouteStop) error
	RemoveStop(ctx context.Context, stopID int64) error
	// BulkUpdateStopOrder applies all updates as one batch and returns the
	// number of stop rows that were written.
	BulkUpdateStopOrder(ctx context.Context, routeID int64, updates []StopOrderUpdate) (int, error)
	// BulkUpdateStopTiming applies all timings as one batch and returns the
	// number of stop rows that were written.
	BulkUpdateStopTiming(ctx context.Context, routeID int64, updates []StopTimingUpdate) (int, error)

	GetStudent(ctx context.Context, id int64) (model.Student, error)
	// SaveStudent inserts when s.ID is zero and replaces otherwise.
	SaveStudent(ctx context.Context, s *model.Student) error
	CountStudentsOnRoute(ctx context.Context, routeID int64) (int, error)
	CountUnassignedStudents(ctx context.Context) (int, error)

	GetVehicle(ctx context.Context, id int64) (model.Vehicle, error)
	GetDriver(ctx context.Context, id int64) (model.Driver, error)

	Close() error
}

// ReferenceWriter maintains vehicle and driver reference data.
type ReferenceWriter interface {
	SaveVehicle(ctx context.Context, v *model.Vehicle) error
	SaveDriver(ctx context.Context, d *model.Driver) error
}
