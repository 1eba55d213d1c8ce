package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store"
)

type handler struct {
	p Planner
}

// statusFor maps a failure kind to an HTTP status code.
func statusFor(k outcome.Kind) int {
	switch k {
	case outcome.KindNotFound:
		return http.StatusNotFound
	case outcome.KindInvalidInput:
		return http.StatusBadRequest
	case outcome.KindCapacityExceeded:
		return http.StatusUnprocessableEntity
	case outcome.KindConflictingState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respond[T any](c *gin.Context, status int, v T, err error) {
	res := outcome.From(v, err)
	if err != nil {
		status = statusFor(outcome.KindOf(err))
	}
	c.JSON(status, res)
}

func reject(c *gin.Context, err error) {
	respond[any](c, 0, nil, err)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		reject(c, outcome.Invalid("%s must be an integer", name))
		return 0, false
	}
	return id, true
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, outcome.Invalid("date %q is not YYYY-MM-DD", s)
	}
	return d, nil
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		reject(c, outcome.Invalid("malformed body: %v", err))
		return false
	}
	return true
}

func (h *handler) listRoutes(c *gin.Context) {
	var f store.RouteFilter
	if s := c.Query("date"); s != "" {
		d, err := parseDate(s)
		if err != nil {
			reject(c, err)
			return
		}
		f.Date = &d
	}
	if s := c.Query("active"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			reject(c, outcome.Invalid("active must be a boolean"))
			return
		}
		f.Active = &b
	}
	f.School = c.Query("school")
	rs, err := h.p.ListRoutes(c.Request.Context(), f)
	respond(c, http.StatusOK, rs, err)
}

type createRouteRequest struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

func (h *handler) createRoute(c *gin.Context) {
	var req createRouteRequest
	if !bind(c, &req) {
		return
	}
	d, err := parseDate(req.Date)
	if err != nil {
		reject(c, err)
		return
	}
	r, err := h.p.CreateRoute(c.Request.Context(), req.Name, d, req.Description)
	respond(c, http.StatusCreated, r, err)
}

func (h *handler) getRoute(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.p.GetRoute(c.Request.Context(), id)
	respond(c, http.StatusOK, r, err)
}

func (h *handler) validate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	v, err := h.p.ValidateRouteForActivation(c.Request.Context(), id)
	respond(c, http.StatusOK, v, err)
}

func (h *handler) activate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.p.ActivateRoute(c.Request.Context(), id)
	respond(c, http.StatusOK, r, err)
}

func (h *handler) deactivate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.p.DeactivateRoute(c.Request.Context(), id)
	respond(c, http.StatusOK, r, err)
}

type cloneRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

func (h *handler) clone(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cloneRequest
	if !bind(c, &req) {
		return
	}
	d, err := parseDate(req.Date)
	if err != nil {
		reject(c, err)
		return
	}
	r, err := h.p.CloneRoute(c.Request.Context(), id, d, req.Name)
	respond(c, http.StatusCreated, r, err)
}

func (h *handler) computeTiming(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.p.ComputeAndPersistTiming(c.Request.Context(), id)
	respond(c, http.StatusOK, s, err)
}

type assignRequest struct {
	VehicleID int64          `json:"vehicle_id"`
	DriverID  int64          `json:"driver_id"`
	Slot      model.TimeSlot `json:"slot"`
}

func (h *handler) assignVehicle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.p.AssignVehicleToRoute(c.Request.Context(), id, req.VehicleID, req.Slot)
	respond(c, http.StatusOK, r, err)
}

func (h *handler) assignDriver(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.p.AssignDriverToRoute(c.Request.Context(), id, req.DriverID, req.Slot)
	respond(c, http.StatusOK, r, err)
}

func (h *handler) listStops(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.p.ListStops(c.Request.Context(), id)
	respond(c, http.StatusOK, s, err)
}

func (h *handler) addStop(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var stop model.RouteStop
	if !bind(c, &stop) {
		return
	}
	s, err := h.p.AddStopToRoute(c.Request.Context(), id, stop)
	respond(c, http.StatusCreated, s, err)
}

type reorderRequest struct {
	StopIDs []int64 `json:"stop_ids"`
}

func (h *handler) reorder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if !bind(c, &req) {
		return
	}
	s, err := h.p.ReorderStops(c.Request.Context(), id, req.StopIDs)
	respond(c, http.StatusOK, s, err)
}

func (h *handler) removeStop(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stopID, ok := pathID(c, "stopID")
	if !ok {
		return
	}
	err := h.p.RemoveStopFromRoute(c.Request.Context(), id, stopID)
	respond(c, http.StatusOK, stopID, err)
}

func (h *handler) moveUp(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stopID, ok := pathID(c, "stopID")
	if !ok {
		return
	}
	s, err := h.p.MoveStopUp(c.Request.Context(), id, stopID)
	respond(c, http.StatusOK, s, err)
}

func (h *handler) moveDown(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stopID, ok := pathID(c, "stopID")
	if !ok {
		return
	}
	s, err := h.p.MoveStopDown(c.Request.Context(), id, stopID)
	respond(c, http.StatusOK, s, err)
}

func (h *handler) assignStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(c, "studentID")
	if !ok {
		return
	}
	slot, err := h.p.AssignStudentToRoute(c.Request.Context(), studentID, id)
	respond(c, http.StatusOK, slot.String(), err)
}

func (h *handler) removeStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(c, "studentID")
	if !ok {
		return
	}
	err := h.p.RemoveStudentFromRoute(c.Request.Context(), studentID, id)
	respond(c, http.StatusOK, studentID, err)
}

func (h *handler) canAssign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(c, "studentID")
	if !ok {
		return
	}
	slot, err := h.p.CanAssignStudent(c.Request.Context(), studentID, id)
	respond(c, http.StatusOK, slot.String(), err)
}

func (h *handler) utilization(c *gin.Context) {
	s, err := h.p.GetRouteUtilizationStats(c.Request.Context())
	respond(c, http.StatusOK, s, err)
}

func (h *handler) registerVehicle(c *gin.Context) {
	var v model.Vehicle
	if !bind(c, &v) {
		return
	}
	out, err := h.p.RegisterVehicle(c.Request.Context(), v)
	respond(c, http.StatusCreated, out, err)
}

func (h *handler) registerDriver(c *gin.Context) {
	var d model.Driver
	if !bind(c, &d) {
		return
	}
	out, err := h.p.RegisterDriver(c.Request.Context(), d)
	respond(c, http.StatusCreated, out, err)
}

func (h *handler) registerStudent(c *gin.Context) {
	var s model.Student
	if !bind(c, &s) {
		return
	}
	out, err := h.p.RegisterStudent(c.Request.Context(), s)
	respond(c, http.StatusCreated, out, err)
}
