package metrics

import "github.com/kilianp07/busroute/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort exposes /metrics when a prometheus sink is configured.
	PrometheusPort string `json:"prometheus_port"`
}
