package model

import "time"

// Route is a named, dated service path with AM/PM vehicle and driver slots.
// A route starts as a draft (IsActive false) and is configured incrementally.
type Route struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	School      string    `json:"school,omitempty"`
	Date        time.Time `json:"date"`
	IsActive    bool      `json:"is_active"`

	AMVehicleID *int64 `json:"am_vehicle_id,omitempty"`
	PMVehicleID *int64 `json:"pm_vehicle_id,omitempty"`
	AMDriverID  *int64 `json:"am_driver_id,omitempty"`
	PMDriverID  *int64 `json:"pm_driver_id,omitempty"`

	// Cached counters, refreshed by the engines that change them.
	StudentCount int `json:"student_count"`
	StopCount    int `json:"stop_count"`

	// StartTime is the first departure of the run as 24h "HH:mm".
	StartTime string `json:"start_time"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasVehicle reports whether a vehicle is assigned to either slot.
func (r Route) HasVehicle() bool { return r.AMVehicleID != nil || r.PMVehicleID != nil }

// HasDriver reports whether a driver is assigned to either slot.
func (r Route) HasDriver() bool { return r.AMDriverID != nil || r.PMDriverID != nil }

// VehicleFor returns the vehicle assigned to slot (AM or PM).
func (r Route) VehicleFor(slot TimeSlot) *int64 {
	if slot == SlotPM {
		return r.PMVehicleID
	}
	return r.AMVehicleID
}

// DriverFor returns the driver assigned to slot (AM or PM).
func (r Route) DriverFor(slot TimeSlot) *int64 {
	if slot == SlotPM {
		return r.PMDriverID
	}
	return r.AMDriverID
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ValidationResult is the read-only outcome of an activation check.
type ValidationResult struct {
	RouteID  int64    `json:"route_id"`
	IsValid  bool     `json:"is_valid"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings,omitempty"`
}
