package metrics

import (
	"context"

	"github.com/kilianp07/busroute/core/events"
	coremetrics "github.com/kilianp07/busroute/core/metrics"
	"github.com/kilianp07/busroute/internal/eventbus"
)

// StartEventCollector subscribes to schedule events and records them on sink
// when it supports recompute metrics. It stops when ctx is canceled or the
// bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.ScheduleRecomputed], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.RecomputeRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				_ = rec.RecordRecompute(coremetrics.RecomputeEvent{
					RouteID:   ev.RouteID,
					Stops:     len(ev.Stops),
					Coalesced: ev.Coalesced,
					Failed:    ev.Err != nil,
					Duration:  ev.Duration,
					Time:      ev.At,
				})
			}
		}
	}()
}
