package model

import "time"

// DefaultDwellMinutes applies to stops whose dwell is unset or not positive.
const DefaultDwellMinutes = 2

// RouteStop is an ordered waypoint owned by exactly one route.
type RouteStop struct {
	ID           int64  `json:"id"`
	RouteID      int64  `json:"route_id"`
	StopOrder    int    `json:"stop_order"`
	Name         string `json:"name"`
	Address      string `json:"address,omitempty"`
	DwellMinutes int    `json:"dwell_minutes"`

	// Derived by the timing engine; zero until the first recompute.
	EstimatedArrival   time.Time `json:"estimated_arrival,omitempty"`
	EstimatedDeparture time.Time `json:"estimated_departure,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Dwell returns the effective dwell duration of the stop.
func (s RouteStop) Dwell() time.Duration {
	m := s.DwellMinutes
	if m <= 0 {
		m = DefaultDwellMinutes
	}
	return time.Duration(m) * time.Minute
}
