// Package outcome defines the error taxonomy shared by the route planning
// engines and the uniform success/failure shape returned to callers.
//
// Kinds:
//   - NotFound: a route, stop, student, vehicle or driver id is absent
//   - InvalidInput: empty name, non-positive id, malformed start time, reorder mismatch
//   - CapacityExceeded: a route has no seat left
//   - ConflictingState: slot conflicts, double booking, removal from a foreign route
//   - PersistenceFailure: Data Store errors and unexpected failures
package outcome
