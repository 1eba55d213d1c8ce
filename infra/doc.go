// Package infra holds the technical adapters of the planner: SQL data
// stores, metrics sinks, the MQTT schedule publisher, Sentry monitoring and
// the zerolog logger. Adapters depend on interfaces from the core packages,
// never the other way round.
package infra
