package planner

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/busroute/core/capacity"
	"github.com/kilianp07/busroute/core/events"
	"github.com/kilianp07/busroute/core/metrics"
	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store"
	"github.com/kilianp07/busroute/core/timing"
)

// Operation names used in errors, logs and metrics.
const (
	OpCreateRoute      = "CreateRoute"
	OpValidateRoute    = "ValidateRouteForActivation"
	OpActivateRoute    = "ActivateRoute"
	OpDeactivateRoute  = "DeactivateRoute"
	OpCloneRoute       = "CloneRoute"
	OpAddStop          = "AddStopToRoute"
	OpRemoveStop       = "RemoveStopFromRoute"
	OpReorderStops     = "ReorderStops"
	OpMoveStopUp       = "MoveStopUp"
	OpMoveStopDown     = "MoveStopDown"
	OpComputeTiming    = "ComputeAndPersistTiming"
	OpAssignVehicle    = "AssignVehicleToRoute"
	OpAssignDriver     = "AssignDriverToRoute"
	OpAssignStudent    = "AssignStudentToRoute"
	OpRemoveStudent    = "RemoveStudentFromRoute"
	OpCanAssignStudent = "CanAssignStudent"
	OpUtilizationStats = "GetRouteUtilizationStats"
	OpGetRoute         = "GetRoute"
	OpListRoutes       = "ListRoutes"
	OpListStops        = "ListStops"
	OpRegisterVehicle  = "RegisterVehicle"
	OpRegisterDriver   = "RegisterDriver"
	OpRegisterStudent  = "RegisterStudent"
)

func (p *Planner) CreateRoute(ctx context.Context, name string, date time.Time, description string) (model.Route, error) {
	return call(p, OpCreateRoute, 0, func() (model.Route, error) {
		r, err := p.lifecycle.CreateRoute(ctx, name, date, description)
		if err == nil {
			p.changed(r.ID, events.RouteCreated, OpCreateRoute)
		}
		return r, err
	})
}

func (p *Planner) ValidateRouteForActivation(ctx context.Context, routeID int64) (model.ValidationResult, error) {
	return call(p, OpValidateRoute, routeID, func() (model.ValidationResult, error) {
		return p.lifecycle.ValidateForActivation(ctx, routeID)
	})
}

func (p *Planner) ActivateRoute(ctx context.Context, routeID int64) (model.Route, error) {
	return call(p, OpActivateRoute, routeID, func() (model.Route, error) {
		r, err := p.lifecycle.Activate(ctx, routeID)
		if err == nil {
			p.changed(routeID, events.RouteActivated, OpActivateRoute)
		}
		return r, err
	})
}

func (p *Planner) DeactivateRoute(ctx context.Context, routeID int64) (model.Route, error) {
	return call(p, OpDeactivateRoute, routeID, func() (model.Route, error) {
		r, err := p.lifecycle.Deactivate(ctx, routeID)
		if err == nil {
			p.changed(routeID, events.RouteDeactivated, OpDeactivateRoute)
		}
		return r, err
	})
}

// CloneRoute copies sourceID to newDate. An empty newName keeps the source name.
func (p *Planner) CloneRoute(ctx context.Context, sourceID int64, newDate time.Time, newName string) (model.Route, error) {
	return call(p, OpCloneRoute, sourceID, func() (model.Route, error) {
		r, err := p.lifecycle.Clone(ctx, sourceID, newDate, newName)
		if err == nil {
			p.changed(r.ID, events.RouteCloned, OpCloneRoute)
		}
		return r, err
	})
}

func (p *Planner) AddStopToRoute(ctx context.Context, routeID int64, stop model.RouteStop) (model.RouteStop, error) {
	return call(p, OpAddStop, routeID, func() (model.RouteStop, error) {
		s, err := p.sequencer.AddStop(ctx, routeID, stop)
		if err == nil {
			p.changed(routeID, events.StopsChanged, OpAddStop)
		}
		return s, err
	})
}

func (p *Planner) RemoveStopFromRoute(ctx context.Context, routeID, stopID int64) error {
	_, err := call(p, OpRemoveStop, routeID, func() (struct{}, error) {
		err := p.sequencer.RemoveStop(ctx, routeID, stopID)
		if err == nil {
			p.changed(routeID, events.StopsChanged, OpRemoveStop)
		}
		return struct{}{}, err
	})
	return err
}

func (p *Planner) ReorderStops(ctx context.Context, routeID int64, orderedIDs []int64) ([]model.RouteStop, error) {
	return p.stopEdit(OpReorderStops, routeID, func() ([]model.RouteStop, error) {
		return p.sequencer.ReorderStops(ctx, routeID, orderedIDs)
	})
}

func (p *Planner) MoveStopUp(ctx context.Context, routeID, stopID int64) ([]model.RouteStop, error) {
	return p.stopEdit(OpMoveStopUp, routeID, func() ([]model.RouteStop, error) {
		return p.sequencer.MoveUp(ctx, routeID, stopID)
	})
}

func (p *Planner) MoveStopDown(ctx context.Context, routeID, stopID int64) ([]model.RouteStop, error) {
	return p.stopEdit(OpMoveStopDown, routeID, func() ([]model.RouteStop, error) {
		return p.sequencer.MoveDown(ctx, routeID, stopID)
	})
}

func (p *Planner) stopEdit(op string, routeID int64, fn func() ([]model.RouteStop, error)) ([]model.RouteStop, error) {
	return call(p, op, routeID, func() ([]model.RouteStop, error) {
		stops, err := fn()
		if err == nil {
			p.changed(routeID, events.StopsChanged, op)
		}
		return stops, err
	})
}

// ComputeAndPersistTiming recomputes routeID immediately. On a persistence
// failure the computed schedule is returned together with the error.
func (p *Planner) ComputeAndPersistTiming(ctx context.Context, routeID int64) (timing.Schedule, error) {
	return call(p, OpComputeTiming, routeID, func() (timing.Schedule, error) {
		start := p.now()
		s, err := p.timing.ComputeAndPersist(ctx, routeID)
		if p.schedules != nil && (err == nil || len(s.Stops) > 0) {
			p.schedules.Publish(events.ScheduleRecomputed{
				RequestID: uuid.NewString(),
				RouteID:   routeID,
				StartTime: s.StartTime,
				Stops:     s.Stops,
				Coalesced: 1,
				Duration:  p.now().Sub(start),
				Err:       err,
				At:        p.now(),
			})
		}
		return s, err
	})
}

func (p *Planner) AssignVehicleToRoute(ctx context.Context, routeID, vehicleID int64, slot model.TimeSlot) (model.Route, error) {
	return call(p, OpAssignVehicle, routeID, func() (model.Route, error) {
		r, err := p.lifecycle.AssignVehicle(ctx, routeID, vehicleID, slot)
		if err == nil {
			p.changed(routeID, events.AssignmentsChanged, OpAssignVehicle)
		}
		return r, err
	})
}

func (p *Planner) AssignDriverToRoute(ctx context.Context, routeID, driverID int64, slot model.TimeSlot) (model.Route, error) {
	return call(p, OpAssignDriver, routeID, func() (model.Route, error) {
		r, err := p.lifecycle.AssignDriver(ctx, routeID, driverID, slot)
		if err == nil {
			p.changed(routeID, events.AssignmentsChanged, OpAssignDriver)
		}
		return r, err
	})
}

// AssignStudentToRoute returns the slot that was filled.
func (p *Planner) AssignStudentToRoute(ctx context.Context, studentID, routeID int64) (model.TimeSlot, error) {
	return call(p, OpAssignStudent, routeID, func() (model.TimeSlot, error) {
		slot, err := p.capacity.AssignStudent(ctx, studentID, routeID)
		if err == nil {
			p.changed(routeID, events.AssignmentsChanged, OpAssignStudent)
		}
		return slot, err
	})
}

func (p *Planner) RemoveStudentFromRoute(ctx context.Context, studentID, routeID int64) error {
	_, err := call(p, OpRemoveStudent, routeID, func() (struct{}, error) {
		err := p.capacity.RemoveStudent(ctx, studentID, routeID)
		if err == nil {
			p.changed(routeID, events.AssignmentsChanged, OpRemoveStudent)
		}
		return struct{}{}, err
	})
	return err
}

// CanAssignStudent returns the slot AssignStudentToRoute would fill.
func (p *Planner) CanAssignStudent(ctx context.Context, studentID, routeID int64) (model.TimeSlot, error) {
	return call(p, OpCanAssignStudent, routeID, func() (model.TimeSlot, error) {
		return p.capacity.CanAssign(ctx, studentID, routeID)
	})
}

func (p *Planner) GetRouteUtilizationStats(ctx context.Context) (capacity.Stats, error) {
	return call(p, OpUtilizationStats, 0, func() (capacity.Stats, error) {
		st, err := p.capacity.UtilizationStats(ctx)
		if err != nil {
			return st, err
		}
		if rec, ok := p.metrics.(metrics.UtilizationRecorder); ok {
			if err := rec.RecordUtilization(metrics.UtilizationSnapshot{
				TotalRoutes:        st.TotalRoutes,
				TotalAssigned:      st.TotalAssigned,
				TotalUnassigned:    st.TotalUnassigned,
				TotalCapacity:      st.TotalCapacity,
				AverageUtilization: st.AverageUtilization,
				RoutesAtCapacity:   st.RoutesAtCapacity,
				Underutilized:      st.Underutilized,
				Time:               st.CalculatedAt,
			}); err != nil {
				p.log.Debugw("utilization record failed", map[string]any{"error": err.Error()})
			}
		}
		return st, nil
	})
}

func (p *Planner) GetRoute(ctx context.Context, routeID int64) (model.Route, error) {
	return call(p, OpGetRoute, routeID, func() (model.Route, error) {
		if err := outcome.CheckID("route", routeID); err != nil {
			return model.Route{}, err
		}
		r, err := p.store.GetRoute(ctx, routeID)
		return r, outcome.FromStore("route", routeID, err)
	})
}

func (p *Planner) ListRoutes(ctx context.Context, f store.RouteFilter) ([]model.Route, error) {
	return call(p, OpListRoutes, 0, func() ([]model.Route, error) {
		rs, err := p.store.ListRoutes(ctx, f)
		return rs, outcome.FromStore("routes", 0, err)
	})
}

func (p *Planner) ListStops(ctx context.Context, routeID int64) ([]model.RouteStop, error) {
	return call(p, OpListStops, routeID, func() ([]model.RouteStop, error) {
		return p.sequencer.Stops(ctx, routeID)
	})
}

func (p *Planner) writer() (store.ReferenceWriter, error) {
	w, ok := p.store.(store.ReferenceWriter)
	if !ok {
		return nil, outcome.Invalid("data store does not accept reference data")
	}
	return w, nil
}

// RegisterVehicle stores a new vehicle.
func (p *Planner) RegisterVehicle(ctx context.Context, v model.Vehicle) (model.Vehicle, error) {
	return call(p, OpRegisterVehicle, 0, func() (model.Vehicle, error) {
		if err := v.Validate(); err != nil {
			return model.Vehicle{}, outcome.Invalid("%v", err)
		}
		w, err := p.writer()
		if err != nil {
			return model.Vehicle{}, err
		}
		v.ID = 0
		if err := w.SaveVehicle(ctx, &v); err != nil {
			return model.Vehicle{}, outcome.FromStore("vehicle", 0, err)
		}
		return v, nil
	})
}

// RegisterDriver stores a new driver.
func (p *Planner) RegisterDriver(ctx context.Context, d model.Driver) (model.Driver, error) {
	return call(p, OpRegisterDriver, 0, func() (model.Driver, error) {
		if strings.TrimSpace(d.Name) == "" {
			return model.Driver{}, outcome.Invalid("driver name is required")
		}
		w, err := p.writer()
		if err != nil {
			return model.Driver{}, err
		}
		d.ID = 0
		if err := w.SaveDriver(ctx, &d); err != nil {
			return model.Driver{}, outcome.FromStore("driver", 0, err)
		}
		return d, nil
	})
}

// RegisterStudent stores a new, unassigned student.
func (p *Planner) RegisterStudent(ctx context.Context, s model.Student) (model.Student, error) {
	return call(p, OpRegisterStudent, 0, func() (model.Student, error) {
		if strings.TrimSpace(s.Name) == "" {
			return model.Student{}, outcome.Invalid("student name is required")
		}
		s.ID = 0
		s.AMRouteID, s.PMRouteID = nil, nil
		if err := p.store.SaveStudent(ctx, &s); err != nil {
			return model.Student{}, outcome.FromStore("student", 0, err)
		}
		return s, nil
	})
}
