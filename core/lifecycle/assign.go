package lifecycle

import (
	"context"
	"time"

	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store"
)

// slotRef selects the vehicle or driver reference of a route slot.
type slotRef func(r *model.Route, slot model.TimeSlot) **int64

func vehicleRef(r *model.Route, slot model.TimeSlot) **int64 {
	if slot == model.SlotPM {
		return &r.PMVehicleID
	}
	return &r.AMVehicleID
}

func driverRef(r *model.Route, slot model.TimeSlot) **int64 {
	if slot == model.SlotPM {
		return &r.PMDriverID
	}
	return &r.AMDriverID
}

func slots(s model.TimeSlot) ([]model.TimeSlot, error) {
	switch s {
	case model.SlotAM, model.SlotPM:
		return []model.TimeSlot{s}, nil
	case model.SlotBoth:
		return []model.TimeSlot{model.SlotAM, model.SlotPM}, nil
	default:
		return nil, outcome.Invalid("unknown time slot %d", int(s))
	}
}

// AssignVehicle puts vehicleID on the given slot(s) of routeID.
func (m *Manager) AssignVehicle(ctx context.Context, routeID, vehicleID int64, slot model.TimeSlot) (model.Route, error) {
	if err := outcome.CheckID("vehicle", vehicleID); err != nil {
		return model.Route{}, err
	}
	r, err := m.get(ctx, routeID)
	if err != nil {
		return model.Route{}, err
	}
	v, err := m.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return model.Route{}, outcome.FromStore("vehicle", vehicleID, err)
	}
	if err := v.Validate(); err != nil {
		return model.Route{}, outcome.Invalid("vehicle %d: %v", vehicleID, err)
	}
	return m.assign(ctx, r, "vehicle", vehicleID, slot, vehicleRef)
}

// AssignDriver puts driverID on the given slot(s) of routeID.
func (m *Manager) AssignDriver(ctx context.Context, routeID, driverID int64, slot model.TimeSlot) (model.Route, error) {
	if err := outcome.CheckID("driver", driverID); err != nil {
		return model.Route{}, err
	}
	r, err := m.get(ctx, routeID)
	if err != nil {
		return model.Route{}, err
	}
	if _, err := m.store.GetDriver(ctx, driverID); err != nil {
		return model.Route{}, outcome.FromStore("driver", driverID, err)
	}
	return m.assign(ctx, r, "driver", driverID, slot, driverRef)
}

func (m *Manager) assign(ctx context.Context, r model.Route, kind string, id int64, slot model.TimeSlot, ref slotRef) (model.Route, error) {
	targets, err := slots(slot)
	if err != nil {
		return model.Route{}, err
	}
	day := model.Day(r.Date)
	sameDay, err := m.store.ListRoutes(ctx, store.RouteFilter{Date: &day})
	if err != nil {
		return model.Route{}, outcome.FromStore("routes", 0, err)
	}
	for _, other := range sameDay {
		if other.ID == r.ID {
			continue
		}
		for _, s := range targets {
			if cur := *ref(&other, s); cur != nil && *cur == id {
				return model.Route{}, outcome.Conflict("%s %d already serves route %q (%s) on %s",
					kind, id, other.Name, s, r.Date.Format(time.DateOnly))
			}
		}
	}
	for _, s := range targets {
		*ref(&r, s) = model.Ref(id)
	}
	r.UpdatedAt = m.now()
	if err := m.store.SaveRoute(ctx, &r); err != nil {
		return model.Route{}, outcome.FromStore("route", r.ID, err)
	}
	m.log.Debugw(kind+" assigned", map[string]any{"route_id": r.ID, kind + "_id": id, "slot": slot.String()})
	return r, nil
}
