package metrics

import "errors"

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOperation forwards the event to every sink and joins their errors.
func (m *MultiSink) RecordOperation(ev OperationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordOperation(ev))
	}
	return errors.Join(errs...)
}

// RecordRecompute forwards recompute runs to sinks that support them.
func (m *MultiSink) RecordRecompute(ev RecomputeEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(RecomputeRecorder); ok {
			errs = append(errs, r.RecordRecompute(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordUtilization forwards snapshots to sinks that support them.
func (m *MultiSink) RecordUtilization(snap UtilizationSnapshot) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(UtilizationRecorder); ok {
			errs = append(errs, r.RecordUtilization(snap))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink holding resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
