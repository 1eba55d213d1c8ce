package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/busroute/core/metrics"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry("", reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordOperation(coremetrics.OperationEvent{Op: "AssignStudentToRoute", Outcome: "CapacityExceeded", Duration: time.Millisecond}))
	require.NoError(t, sink.RecordOperation(coremetrics.OperationEvent{Op: "AssignStudentToRoute", Outcome: "ok"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.operations.WithLabelValues("AssignStudentToRoute", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.operations.WithLabelValues("AssignStudentToRoute", "CapacityExceeded")))

	require.NoError(t, sink.RecordRecompute(coremetrics.RecomputeEvent{RouteID: 1, Coalesced: 4}))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.recomputes.WithLabelValues("false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.coalesced))

	require.NoError(t, sink.RecordUtilization(coremetrics.UtilizationSnapshot{TotalRoutes: 2, AverageUtilization: 0.75}))
	assert.Equal(t, 0.75, testutil.ToFloat64(sink.utilization.WithLabelValues("average")))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry("x", reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry("x", reg)
	require.NoError(t, err)
	require.NoError(t, a.RecordOperation(coremetrics.OperationEvent{Op: "GetRoute", Outcome: "ok"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.operations.WithLabelValues("GetRoute", "ok")))
}
