// Package metrics declares the observability sinks of the route planner.
//
// A MetricsSink records every planner operation. Sinks may additionally
// implement RecomputeRecorder and UtilizationRecorder; callers type-assert
// before recording those events.
package metrics
