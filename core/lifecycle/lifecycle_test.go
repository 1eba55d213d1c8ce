package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/busroute/core/capacity"
	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/store/storetest"
)

var (
	now      = time.Date(2031, 1, 10, 8, 0, 0, 0, time.UTC)
	tomorrow = time.Date(2031, 1, 11, 0, 0, 0, 0, time.UTC)
)

func newManager(o Options) (*Manager, *storetest.Faulty) {
	st := storetest.NewFaulty()
	m := New(st, capacity.New(st, 0, nil), o, nil)
	m.SetClock(func() time.Time { return now })
	return m, st
}

func TestCreateRoute(t *testing.T) {
	m, st := newManager(Options{DefaultSchool: "Lincoln", DefaultStartTime: "07:45"})
	ctx := context.Background()

	r, err := m.CreateRoute(ctx, "  North  ", tomorrow.Add(13*time.Hour), "north loop")
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Equal(t, "North", r.Name)
	assert.False(t, r.IsActive)
	assert.Equal(t, "Lincoln", r.School)
	assert.Equal(t, "07:45", r.StartTime)
	assert.Equal(t, tomorrow, r.Date)
	assert.Nil(t, r.AMVehicleID)

	stored, err := st.GetRoute(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Name, stored.Name)
}

func TestCreateRouteRejections(t *testing.T) {
	m, _ := newManager(Options{})
	ctx := context.Background()
	_, err := m.CreateRoute(ctx, "North", tomorrow, "")
	require.NoError(t, err)

	_, err = m.CreateRoute(ctx, "   ", tomorrow, "")
	assert.True(t, outcome.IsInvalidInput(err))

	_, err = m.CreateRoute(ctx, "Old", now.AddDate(0, 0, -1), "")
	assert.True(t, outcome.IsInvalidInput(err))

	_, err = m.CreateRoute(ctx, "North", tomorrow, "again")
	assert.True(t, outcome.IsConflict(err))

	_, err = m.CreateRoute(ctx, "North", tomorrow.AddDate(0, 0, 1), "")
	assert.NoError(t, err, "same name on another date is allowed")

	_, err = m.CreateRoute(ctx, "Today", now, "")
	assert.NoError(t, err, "today is not in the past")
}

func TestValidateForActivation(t *testing.T) {
	m, st := newManager(Options{})
	ctx := context.Background()
	r := model.Route{Name: "", Date: now.AddDate(0, 0, -2)}
	require.NoError(t, st.SaveRoute(ctx, &r))

	res, err := m.ValidateForActivation(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.ElementsMatch(t, []string{IssueNameRequired, IssuePastDate}, res.Issues)
	assert.ElementsMatch(t, []string{IssueNoStops, IssueNoVehicle, WarnNoDriver, WarnNoStudents}, res.Warnings)
	assert.Equal(t, 1, st.Calls("SaveRoute"), "validation must not write")

	_, err = m.ValidateForActivation(ctx, 404)
	assert.True(t, outcome.IsNotFound(err))
	_, err = m.ValidateForActivation(ctx, -1)
	assert.True(t, outcome.IsInvalidInput(err))
}

func TestValidateWarnsOverCapacity(t *testing.T) {
	m, st := newManager(Options{})
	ctx := context.Background()
	v := model.Vehicle{SeatingCapacity: 1}
	require.NoError(t, st.SaveVehicle(ctx, &v))
	r := model.Route{Name: "R", Date: tomorrow, AMVehicleID: model.Ref(v.ID)}
	require.NoError(t, st.SaveRoute(ctx, &r))
	for i := 0; i < 2; i++ {
		require.NoError(t, st.SaveStudent(ctx, &model.Student{AMRouteID: model.Ref(r.ID)}))
	}

	res, err := m.ValidateForActivation(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Contains(t, res.Warnings, "route has 2 students for 1 seats")
}

func TestStrictActivation(t *testing.T) {
	m, st := newManager(Options{StrictActivation: true})
	ctx := context.Background()
	r, err := m.CreateRoute(ctx, "Strict", tomorrow, "")
	require.NoError(t, err)

	_, err = m.Activate(ctx, r.ID)
	require.Error(t, err)
	assert.True(t, outcome.IsInvalidInput(err))
	assert.Contains(t, err.Error(), IssueNoStops)
	assert.Contains(t, err.Error(), IssueNoVehicle)

	v := model.Vehicle{SeatingCapacity: 40}
	require.NoError(t, st.SaveVehicle(ctx, &v))
	_, err = m.AssignVehicle(ctx, r.ID, v.ID, model.SlotAM)
	require.NoError(t, err)
	require.NoError(t, st.AddStop(ctx, &model.RouteStop{RouteID: r.ID, StopOrder: 1}))

	got, err := m.Activate(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestActivateIdempotent(t *testing.T) {
	m, st := newManager(Options{})
	ctx := context.Background()
	r, err := m.CreateRoute(ctx, "R", tomorrow, "")
	require.NoError(t, err)
	saves := st.Calls("SaveRoute")

	for i := 0; i < 2; i++ {
		got, err := m.Activate(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, got.IsActive)
	}
	assert.Equal(t, saves+1, st.Calls("SaveRoute"))

	for i := 0; i < 2; i++ {
		got, err := m.Deactivate(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	}
	assert.Equal(t, saves+2, st.Calls("SaveRoute"))

	stored, _ := st.GetRoute(ctx, r.ID)
	assert.False(t, stored.IsActive)
}

func TestActivateRejectsPastRoute(t *testing.T) {
	m, st := newManager(Options{})
	ctx := context.Background()
	r := model.Route{Name: "Late", Date: now.AddDate(0, -1, 0)}
	require.NoError(t, st.SaveRoute(ctx, &r))

	_, err := m.Activate(ctx, r.ID)
	assert.True(t, outcome.IsInvalidInput(err))
	stored, _ := st.GetRoute(ctx, r.ID)
	assert.False(t, stored.IsActive)

	_, err = m.Activate(ctx, 999)
	assert.True(t, outcome.IsNotFound(err))
	_, err = m.Deactivate(ctx, 999)
	assert.True(t, outcome.IsNotFound(err))
}

func TestActivatePersistenceFailure(t *testing.T) {
	m, st := newManager(Options{})
	ctx := context.Background()
	r, err := m.CreateRoute(ctx, "R", tomorrow, "")
	require.NoError(t, err)
	st.Fail("SaveRoute", errors.New("read-only"))

	_, err = m.Activate(ctx, r.ID)
	assert.Equal(t, outcome.KindPersistenceFailure, outcome.KindOf(err))
}

func TestClone(t *testing.T) {
	m, st := newManager(Options{DefaultSchool: "Oak"})
	ctx := context.Background()
	src, err := m.CreateRoute(ctx, "North", tomorrow, "loop")
	require.NoError(t, err)
	v := model.Vehicle{SeatingCapacity: 40}
	require.NoError(t, st.SaveVehicle(ctx, &v))
	_, err = m.AssignVehicle(ctx, src.ID, v.ID, model.SlotBoth)
	require.NoError(t, err)
	require.NoError(t, st.AddStop(ctx, &model.RouteStop{RouteID: src.ID, StopOrder: 1}))
	_, err = m.Activate(ctx, src.ID)
	require.NoError(t, err)

	next := tomorrow.AddDate(0, 0, 7)
	c, err := m.Clone(ctx, src.ID, next, "")
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, c.ID)
	assert.Equal(t, "North", c.Name)
	assert.Equal(t, "loop", c.Description)
	assert.Equal(t, "Oak", c.School)
	assert.Equal(t, next, c.Date)
	assert.False(t, c.IsActive)
	assert.Nil(t, c.AMVehicleID)
	assert.Nil(t, c.PMVehicleID)
	stops, _ := st.ListStopsForRoute(ctx, c.ID)
	assert.Empty(t, stops)

	renamed, err := m.Clone(ctx, src.ID, next, "North B")
	require.NoError(t, err)
	assert.Equal(t, "North B", renamed.Name)

	_, err = m.Clone(ctx, src.ID, next, "")
	assert.True(t, outcome.IsConflict(err))
	_, err = m.Clone(ctx, src.ID, now.AddDate(0, 0, -3), "x")
	assert.True(t, outcome.IsInvalidInput(err))
	_, err = m.Clone(ctx, 5555, next, "")
	assert.True(t, outcome.IsNotFound(err))
}

func TestAssignVehicleSlots(t *testing.T) {
	m, st := newManager(Options{})
	ctx := context.Background()
	r, err := m.CreateRoute(ctx, "R", tomorrow, "")
	require.NoError(t, err)
	a := model.Vehicle{Number: "A", SeatingCapacity: 30}
	b := model.Vehicle{Number: "B", SeatingCapacity: 30}
	require.NoError(t, st.SaveVehicle(ctx, &a))
	require.NoError(t, st.SaveVehicle(ctx, &b))

	got, err := m.AssignVehicle(ctx, r.ID, a.ID, model.SlotBoth)
	require.NoError(t, err)
	assert.Equal(t, a.ID, *got.AMVehicleID)
	assert.Equal(t, a.ID, *got.PMVehicleID)

	got, err = m.AssignVehicle(ctx, r.ID, b.ID, model.SlotPM)
	require.NoError(t, err)
	assert.Equal(t, a.ID, *got.AMVehicleID)
	assert.Equal(t, b.ID, *got.PMVehicleID)

	_, err = m.AssignVehicle(ctx, r.ID, 999, model.SlotAM)
	assert.True(t, outcome.IsNotFound(err))
	_, err = m.AssignVehicle(ctx, r.ID, a.ID, model.TimeSlot(9))
	assert.True(t, outcome.IsInvalidInput(err))
}

func TestDoubleBookingGuard(t *testing.T) {
	m, st := newManager(Options{})
	ctx := context.Background()
	first, err := m.CreateRoute(ctx, "First", tomorrow, "")
	require.NoError(t, err)
	second, err := m.CreateRoute(ctx, "Second", tomorrow, "")
	require.NoError(t, err)
	later, err := m.CreateRoute(ctx, "Later", tomorrow.AddDate(0, 0, 1), "")
	require.NoError(t, err)

	d := model.Driver{Name: "Pat"}
	require.NoError(t, st.SaveDriver(ctx, &d))

	_, err = m.AssignDriver(ctx, first.ID, d.ID, model.SlotAM)
	require.NoError(t, err)

	_, err = m.AssignDriver(ctx, second.ID, d.ID, model.SlotAM)
	assert.True(t, outcome.IsConflict(err))
	_, err = m.AssignDriver(ctx, second.ID, d.ID, model.SlotBoth)
	assert.True(t, outcome.IsConflict(err))

	_, err = m.AssignDriver(ctx, second.ID, d.ID, model.SlotPM)
	assert.NoError(t, err, "other slot on the same date is free")
	_, err = m.AssignDriver(ctx, later.ID, d.ID, model.SlotAM)
	assert.NoError(t, err, "other date is free")
	_, err = m.AssignDriver(ctx, first.ID, d.ID, model.SlotAM)
	assert.NoError(t, err, "reassigning the same route is allowed")

	_, err = m.AssignDriver(ctx, first.ID, 31337, model.SlotAM)
	assert.True(t, outcome.IsNotFound(err))
}
