package metrics

import "time"

// OperationEvent describes one completed planner operation.
type OperationEvent struct {
	Op       string
	RouteID  int64
	Outcome  string // "ok" or the failure kind
	Duration time.Duration
	Time     time.Time
}

// MetricsSink records planner operations for observability purposes.
type MetricsSink interface {
	RecordOperation(ev OperationEvent) error
}

// RecomputeEvent captures one schedule recomputation run.
type RecomputeEvent struct {
	RouteID   int64
	Stops     int
	Coalesced int
	Failed    bool
	Duration  time.Duration
	Time      time.Time
}

// RecomputeRecorder records schedule recomputation runs.
type RecomputeRecorder interface {
	RecordRecompute(ev RecomputeEvent) error
}

// UtilizationSnapshot is a point-in-time copy of the fleet utilisation figures.
type UtilizationSnapshot struct {
	TotalRoutes        int
	TotalAssigned      int
	TotalUnassigned    int
	TotalCapacity      int
	AverageUtilization float64
	RoutesAtCapacity   int
	Underutilized      int
	Time               time.Time
}

// UtilizationRecorder records utilisation snapshots.
type UtilizationRecorder interface {
	RecordUtilization(s UtilizationSnapshot) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordOperation(OperationEvent) error         { return nil }
func (NopSink) RecordRecompute(RecomputeEvent) error         { return nil }
func (NopSink) RecordUtilization(UtilizationSnapshot) error { return nil }
