package capacity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store/storetest"
)

type env struct {
	ctx context.Context
	st  *storetest.Faulty
	eng *Engine
}

func newEnv() *env {
	st := storetest.NewFaulty()
	e := New(st, 0, nil)
	e.SetClock(func() time.Time { return time.Date(2031, 5, 6, 9, 0, 0, 0, time.UTC) })
	return &env{ctx: context.Background(), st: st, eng: e}
}

func (e *env) vehicle(t *testing.T, seats int) *int64 {
	t.Helper()
	v := model.Vehicle{Number: "B", SeatingCapacity: seats}
	require.NoError(t, e.st.SaveVehicle(e.ctx, &v))
	return model.Ref(v.ID)
}

func (e *env) route(t *testing.T, r model.Route) model.Route {
	t.Helper()
	if r.Name == "" {
		r.Name = "R"
	}
	require.NoError(t, e.st.SaveRoute(e.ctx, &r))
	return r
}

func (e *env) student(t *testing.T, name string) model.Student {
	t.Helper()
	s := model.Student{Name: name}
	require.NoError(t, e.st.SaveStudent(e.ctx, &s))
	return s
}

func TestCapacityFromVehicles(t *testing.T) {
	e := newEnv()
	tests := []struct {
		name string
		r    model.Route
		want int
	}{
		{"no vehicles", model.Route{}, DefaultCapacity},
		{"am only", model.Route{AMVehicleID: e.vehicle(t, 44)}, 44},
		{"max of both", model.Route{AMVehicleID: e.vehicle(t, 20), PMVehicleID: e.vehicle(t, 52)}, 52},
		{"zero seats", model.Route{PMVehicleID: e.vehicle(t, 0)}, DefaultCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.eng.Capacity(e.ctx, tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	custom := New(e.st, 12, nil)
	got, err := custom.Capacity(e.ctx, model.Route{})
	require.NoError(t, err)
	assert.Equal(t, 12, got)

	_, err = e.eng.Capacity(e.ctx, model.Route{AMVehicleID: model.Ref(4040)})
	assert.True(t, outcome.IsNotFound(err))
}

func TestAssignRespectsCapacity(t *testing.T) {
	e := newEnv()
	r := e.route(t, model.Route{AMVehicleID: e.vehicle(t, 2)})
	a, b, c := e.student(t, "a"), e.student(t, "b"), e.student(t, "c")

	for _, s := range []model.Student{a, b} {
		slot, err := e.eng.AssignStudent(e.ctx, s.ID, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SlotAM, slot)
	}
	_, err := e.eng.AssignStudent(e.ctx, c.ID, r.ID)
	assert.True(t, outcome.IsCapacityExceeded(err), "got %v", err)

	got, _ := e.st.GetStudent(e.ctx, c.ID)
	assert.True(t, got.Unassigned())
	stored, _ := e.st.GetRoute(e.ctx, r.ID)
	assert.Equal(t, 2, stored.StudentCount)
}

func TestAssignFillsAMThenPM(t *testing.T) {
	e := newEnv()
	morning := e.route(t, model.Route{Name: "morning"})
	afternoon := e.route(t, model.Route{Name: "afternoon"})
	third := e.route(t, model.Route{Name: "third"})
	s := e.student(t, "s")

	slot, err := e.eng.CanAssign(e.ctx, s.ID, morning.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotAM, slot)

	_, err = e.eng.AssignStudent(e.ctx, s.ID, morning.ID)
	require.NoError(t, err)
	slot, err = e.eng.AssignStudent(e.ctx, s.ID, afternoon.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotPM, slot)

	_, err = e.eng.AssignStudent(e.ctx, s.ID, third.ID)
	require.Error(t, err)
	assert.True(t, outcome.IsConflict(err))
	assert.Contains(t, err.Error(), "already has AM and PM routes assigned")

	_, err = e.eng.CanAssign(e.ctx, s.ID, third.ID)
	assert.True(t, outcome.IsConflict(err))

	got, _ := e.st.GetStudent(e.ctx, s.ID)
	assert.Equal(t, morning.ID, *got.AMRouteID)
	assert.Equal(t, afternoon.ID, *got.PMRouteID)
}

func TestSameRouteBothWays(t *testing.T) {
	e := newEnv()
	r := e.route(t, model.Route{})
	s := e.student(t, "s")

	_, err := e.eng.AssignStudent(e.ctx, s.ID, r.ID)
	require.NoError(t, err)
	slot, err := e.eng.AssignStudent(e.ctx, s.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotPM, slot)

	stored, _ := e.st.GetRoute(e.ctx, r.ID)
	assert.Equal(t, 1, stored.StudentCount)

	require.NoError(t, e.eng.RemoveStudent(e.ctx, s.ID, r.ID))
	got, _ := e.st.GetStudent(e.ctx, s.ID)
	assert.True(t, got.Unassigned())
}

func TestCanAssignIsReadOnly(t *testing.T) {
	e := newEnv()
	r := e.route(t, model.Route{})
	s := e.student(t, "s")

	_, err := e.eng.CanAssign(e.ctx, s.ID, r.ID)
	require.NoError(t, err)
	assert.Zero(t, e.st.Calls("SaveStudent"))
	assert.Zero(t, e.st.Calls("SaveRoute"))
}

func TestRemoveStudent(t *testing.T) {
	e := newEnv()
	morning := e.route(t, model.Route{Name: "m"})
	afternoon := e.route(t, model.Route{Name: "a"})
	other := e.route(t, model.Route{Name: "o"})
	s := e.student(t, "s")
	_, err := e.eng.AssignStudent(e.ctx, s.ID, morning.ID)
	require.NoError(t, err)
	_, err = e.eng.AssignStudent(e.ctx, s.ID, afternoon.ID)
	require.NoError(t, err)

	err = e.eng.RemoveStudent(e.ctx, s.ID, other.ID)
	assert.True(t, outcome.IsConflict(err))
	assert.Contains(t, err.Error(), "not assigned to route")
	unchanged, _ := e.st.GetStudent(e.ctx, s.ID)
	assert.Equal(t, morning.ID, *unchanged.AMRouteID)
	assert.Equal(t, afternoon.ID, *unchanged.PMRouteID)

	require.NoError(t, e.eng.RemoveStudent(e.ctx, s.ID, afternoon.ID))
	got, _ := e.st.GetStudent(e.ctx, s.ID)
	assert.Equal(t, morning.ID, *got.AMRouteID)
	assert.Nil(t, got.PMRouteID)
	stored, _ := e.st.GetRoute(e.ctx, afternoon.ID)
	assert.Zero(t, stored.StudentCount)
}

func TestAssignNotFoundAndInvalid(t *testing.T) {
	e := newEnv()
	r := e.route(t, model.Route{})
	s := e.student(t, "s")

	_, err := e.eng.AssignStudent(e.ctx, 777, r.ID)
	assert.True(t, outcome.IsNotFound(err))
	_, err = e.eng.AssignStudent(e.ctx, s.ID, 777)
	assert.True(t, outcome.IsNotFound(err))
	_, err = e.eng.AssignStudent(e.ctx, s.ID, -1)
	assert.True(t, outcome.IsInvalidInput(err))
	assert.True(t, outcome.IsInvalidInput(e.eng.RemoveStudent(e.ctx, 0, r.ID)))
}

func TestAssignPersistenceFailure(t *testing.T) {
	e := newEnv()
	r := e.route(t, model.Route{})
	s := e.student(t, "s")
	e.st.Fail("SaveStudent", errors.New("locked"))

	_, err := e.eng.AssignStudent(e.ctx, s.ID, r.ID)
	assert.Equal(t, outcome.KindPersistenceFailure, outcome.KindOf(err))
}

func TestConcurrentAssignNeverOvershoots(t *testing.T) {
	e := newEnv()
	r := e.route(t, model.Route{AMVehicleID: e.vehicle(t, 5)})
	var ids []int64
	for i := 0; i < 20; i++ {
		ids = append(ids, e.student(t, "s").ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = e.eng.AssignStudent(e.ctx, id, r.ID)
		}(id)
	}
	wg.Wait()

	n, err := e.st.CountStudentsOnRoute(e.ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestUtilizationStats(t *testing.T) {
	e := newEnv()
	full := e.route(t, model.Route{Name: "full", IsActive: true, AMVehicleID: e.vehicle(t, 2)})
	low := e.route(t, model.Route{Name: "low", IsActive: true, AMVehicleID: e.vehicle(t, 10)})
	e.route(t, model.Route{Name: "draft", AMVehicleID: e.vehicle(t, 99)})

	for i := 0; i < 2; i++ {
		_, err := e.eng.AssignStudent(e.ctx, e.student(t, "f").ID, full.ID)
		require.NoError(t, err)
	}
	_, err := e.eng.AssignStudent(e.ctx, e.student(t, "l").ID, low.ID)
	require.NoError(t, err)
	e.student(t, "idle")

	st, err := e.eng.UtilizationStats(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalRoutes)
	assert.Equal(t, 3, st.TotalAssigned)
	assert.Equal(t, 1, st.TotalUnassigned)
	assert.Equal(t, 12, st.TotalCapacity)
	assert.InDelta(t, 0.55, st.AverageUtilization, 1e-9)
	assert.Equal(t, 1, st.RoutesAtCapacity)
	assert.Equal(t, 1, st.Underutilized)
	assert.Equal(t, time.Date(2031, 5, 6, 9, 0, 0, 0, time.UTC), st.CalculatedAt)
}

func TestUtilizationStatsEmpty(t *testing.T) {
	e := newEnv()
	st, err := e.eng.UtilizationStats(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, st.TotalRoutes)
	assert.Zero(t, st.AverageUtilization)
}
