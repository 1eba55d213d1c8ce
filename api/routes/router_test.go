package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/planner"
	"github.com/kilianp07/busroute/core/store"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope[T any] struct {
	OK      bool   `json:"ok"`
	Value   T      `json:"value"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type server struct {
	t *testing.T
	h http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	p := planner.New(planner.Deps{
		Store: store.NewMemoryStore(),
		Clock: func() time.Time { return time.Date(2031, 2, 3, 6, 0, 0, 0, time.UTC) },
	}, planner.Options{DefaultStartTime: "07:30"})
	t.Cleanup(p.Close)
	return &server{t: t, h: NewRouter(p, Options{Logger: zerolog.Nop()})}
}

func do[T any](s *server, method, path string, body any) (int, envelope[T]) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	var out envelope[T]
	require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return rr.Code, out
}

func TestRouteLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)

	code, created := do[model.Route](s, http.MethodPost, "/api/routes", map[string]string{"name": "R1", "date": "2031-02-04"})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, created.OK)
	id := created.Value.ID
	base := "/api/routes/" + itoa(id)

	var stopIDs []int64
	for _, n := range []string{"S1", "S2", "S3"} {
		code, st := do[model.RouteStop](s, http.MethodPost, base+"/stops", map[string]any{"name": n, "dwell_minutes": 3})
		require.Equal(t, http.StatusCreated, code)
		stopIDs = append(stopIDs, st.Value.ID)
	}

	code, reordered := do[[]model.RouteStop](s, http.MethodPut, base+"/stops/order", map[string]any{"stop_ids": []int64{stopIDs[2], stopIDs[0], stopIDs[1]}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "S3", reordered.Value[0].Name)
	assert.Equal(t, 1, reordered.Value[0].StopOrder)

	code, bad := do[any](s, http.MethodPut, base+"/stops/order", map[string]any{"stop_ids": []int64{stopIDs[0]}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", bad.Kind)

	code, up := do[[]model.RouteStop](s, http.MethodPost, base+"/stops/"+itoa(stopIDs[1])+"/up", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, stopIDs[1], up.Value[1].ID)

	code, sched := do[struct {
		StartTime string            `json:"start_time"`
		Stops     []model.RouteStop `json:"stops"`
	}](s, http.MethodPost, base+"/timing", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "07:30", sched.Value.StartTime)
	assert.Len(t, sched.Value.Stops, 3)

	code, act := do[model.Route](s, http.MethodPost, base+"/activate", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, act.Value.IsActive)

	code, list := do[[]model.Route](s, http.MethodGet, "/api/routes?active=true&date=2031-02-04", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list.Value, 1)

	code, clone := do[model.Route](s, http.MethodPost, base+"/clone", map[string]string{"date": "2031-02-05"})
	require.Equal(t, http.StatusCreated, code)
	assert.False(t, clone.Value.IsActive)

	code, removed := do[int64](s, http.MethodDelete, base+"/stops/"+itoa(stopIDs[0]), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, stopIDs[0], removed.Value)
}

func TestAssignmentsOverHTTP(t *testing.T) {
	s := newServer(t)
	_, r := do[model.Route](s, http.MethodPost, "/api/routes", map[string]string{"name": "R", "date": "2031-02-04"})
	base := "/api/routes/" + itoa(r.Value.ID)

	code, v := do[model.Vehicle](s, http.MethodPost, "/api/vehicles", map[string]any{"number": "7", "seating_capacity": 1})
	require.Equal(t, http.StatusCreated, code)
	code, withBus := do[model.Route](s, http.MethodPut, base+"/vehicle", map[string]any{"vehicle_id": v.Value.ID, "slot": "Both"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, v.Value.ID, *withBus.Value.PMVehicleID)

	_, d := do[model.Driver](s, http.MethodPost, "/api/drivers", map[string]any{"name": "Jo"})
	code, _ = do[model.Route](s, http.MethodPut, base+"/driver", map[string]any{"driver_id": d.Value.ID, "slot": "PM"})
	require.Equal(t, http.StatusOK, code)

	_, a := do[model.Student](s, http.MethodPost, "/api/students", map[string]any{"name": "A"})
	_, b := do[model.Student](s, http.MethodPost, "/api/students", map[string]any{"name": "B"})

	code, slot := do[string](s, http.MethodGet, base+"/students/"+itoa(a.Value.ID)+"/eligibility", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AM", slot.Value)

	code, slot = do[string](s, http.MethodPost, base+"/students/"+itoa(a.Value.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AM", slot.Value)

	code, full := do[any](s, http.MethodPost, base+"/students/"+itoa(b.Value.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "CapacityExceeded", full.Kind)

	code, notOn := do[any](s, http.MethodDelete, base+"/students/"+itoa(b.Value.ID), nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, notOn.Message, "not assigned to route")

	code, stats := do[map[string]any](s, http.MethodGet, "/api/utilization", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, stats.Value["total_unassigned"])
}

func TestErrorsOverHTTP(t *testing.T) {
	s := newServer(t)

	code, res := do[any](s, http.MethodGet, "/api/routes/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, res.OK)

	code, res = do[any](s, http.MethodGet, "/api/routes/42", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NotFound", res.Kind)

	code, res = do[any](s, http.MethodPost, "/api/routes", map[string]string{"name": "x", "date": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res.Message, "YYYY-MM-DD")

	code, _ = do[any](s, http.MethodPost, "/api/routes", map[string]string{"name": "dup", "date": "2031-02-04"})
	require.Equal(t, http.StatusCreated, code)
	code, res = do[any](s, http.MethodPost, "/api/routes", map[string]string{"name": "dup", "date": "2031-02-04"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ConflictingState", res.Kind)

	code, _ = do[any](s, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRequestIDAndCORS(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	s.h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
}

func TestStatusFor(t *testing.T) {
	cases := map[outcome.Kind]int{
		outcome.KindNotFound:           http.StatusNotFound,
		outcome.KindInvalidInput:       http.StatusBadRequest,
		outcome.KindCapacityExceeded:   http.StatusUnprocessableEntity,
		outcome.KindConflictingState:   http.StatusConflict,
		outcome.KindPersistenceFailure: http.StatusInternalServerError,
	}
	for k, want := range cases {
		assert.Equal(t, want, statusFor(k), k.String())
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
