package metrics

import (
	"errors"
	"strconv"

	coremetrics "github.com/kilianp07/busroute/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records planner activity in Prometheus metrics.
type PromSink struct {
	operations  *prometheus.CounterVec
	opLatency   *prometheus.HistogramVec
	recomputes  *prometheus.CounterVec
	coalesced   prometheus.Counter
	recLatency  prometheus.Histogram
	utilization *prometheus.GaugeVec
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. The /metrics
// endpoint is served separately by StartPromServer.
func NewPromSinkWithRegistry(namespace string, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "busroute"
	}
	s := &PromSink{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Planner operations by name and outcome",
		}, []string{"op", "outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Planner operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_recomputes_total",
			Help:      "Schedule recomputation runs",
		}, []string{"failed"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_requests_coalesced_total",
			Help:      "Recompute requests folded into a later run",
		}),
		recLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schedule_recompute_duration_seconds",
			Help:      "Time spent computing and persisting a schedule",
			Buckets:   prometheus.DefBuckets,
		}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fleet_utilization",
			Help:      "Latest utilisation snapshot over active routes",
		}, []string{"figure"}),
	}
	var err error
	if s.operations, err = register(reg, s.operations); err != nil {
		return nil, err
	}
	if s.opLatency, err = register(reg, s.opLatency); err != nil {
		return nil, err
	}
	if s.recomputes, err = register(reg, s.recomputes); err != nil {
		return nil, err
	}
	if s.coalesced, err = register(reg, s.coalesced); err != nil {
		return nil, err
	}
	if s.recLatency, err = register(reg, s.recLatency); err != nil {
		return nil, err
	}
	if s.utilization, err = register(reg, s.utilization); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordOperation counts the operation and observes its latency.
func (s *PromSink) RecordOperation(ev coremetrics.OperationEvent) error {
	s.operations.WithLabelValues(ev.Op, ev.Outcome).Inc()
	s.opLatency.WithLabelValues(ev.Op).Observe(ev.Duration.Seconds())
	return nil
}

// RecordRecompute counts the run and the requests it absorbed.
func (s *PromSink) RecordRecompute(ev coremetrics.RecomputeEvent) error {
	s.recomputes.WithLabelValues(strconv.FormatBool(ev.Failed)).Inc()
	if ev.Coalesced > 1 {
		s.coalesced.Add(float64(ev.Coalesced - 1))
	}
	s.recLatency.Observe(ev.Duration.Seconds())
	return nil
}

// RecordUtilization publishes the snapshot figures as gauges.
func (s *PromSink) RecordUtilization(snap coremetrics.UtilizationSnapshot) error {
	s.utilization.WithLabelValues("routes").Set(float64(snap.TotalRoutes))
	s.utilization.WithLabelValues("assigned").Set(float64(snap.TotalAssigned))
	s.utilization.WithLabelValues("unassigned").Set(float64(snap.TotalUnassigned))
	s.utilization.WithLabelValues("capacity").Set(float64(snap.TotalCapacity))
	s.utilization.WithLabelValues("average").Set(snap.AverageUtilization)
	s.utilization.WithLabelValues("at_capacity").Set(float64(snap.RoutesAtCapacity))
	s.utilization.WithLabelValues("underutilized").Set(float64(snap.Underutilized))
	return nil
}
