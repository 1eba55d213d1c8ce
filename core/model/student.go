package model

// Student is the assignment view of a student: at most one AM and one PM route.
// Routes are referenced by identity so renaming a route keeps assignments intact.
type Student struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Grade     string `json:"grade,omitempty"`
	AMRouteID *int64 `json:"am_route_id,omitempty"`
	PMRouteID *int64 `json:"pm_route_id,omitempty"`
}

// OnRoute reports whether either slot references routeID.
func (s Student) OnRoute(routeID int64) bool {
	return (s.AMRouteID != nil && *s.AMRouteID == routeID) ||
		(s.PMRouteID != nil && *s.PMRouteID == routeID)
}

// Unassigned reports whether the student holds no route at all.
func (s Student) Unassigned() bool { return s.AMRouteID == nil && s.PMRouteID == nil }
