package events

import (
	"time"

	"github.com/kilianp07/busroute/core/model"
)

// ChangeKind names what happened to a route.
type ChangeKind string

const (
	RouteCreated       ChangeKind = "created"
	RouteCloned        ChangeKind = "cloned"
	RouteActivated     ChangeKind = "activated"
	RouteDeactivated   ChangeKind = "deactivated"
	StopsChanged       ChangeKind = "stops_changed"
	AssignmentsChanged ChangeKind = "assignments_changed"
)

// RouteChanged is published after a successful mutating planner operation.
type RouteChanged struct {
	RouteID int64      `json:"route_id"`
	Kind    ChangeKind `json:"kind"`
	Op      string     `json:"op"`
	At      time.Time  `json:"at"`
}

// ScheduleRecomputed reports a completed timing computation for one route.
// Err is set when persisting the timings failed; Stops still carry the
// computed values.
type ScheduleRecomputed struct {
	RequestID string            `json:"request_id"`
	RouteID   int64             `json:"route_id"`
	StartTime string            `json:"start_time"`
	Stops     []model.RouteStop `json:"stops"`
	// Coalesced counts the requests folded into this run.
	Coalesced int           `json:"coalesced"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
	At        time.Time     `json:"at"`
}
