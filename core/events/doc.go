// Package events defines the route planning events emitted on the event bus.
//
// Available event types:
//   - RouteChanged: a route or its stops or assignments were modified
//   - ScheduleRecomputed: the timing of a route was recomputed
package events
