package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/busroute/core/model"
)

// MemoryStore keeps all records in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	routes   map[int64]model.Route
	stops    map[int64]model.RouteStop
	students map[int64]model.Student
	vehicles map[int64]model.Vehicle
	drivers  map[int64]model.Driver
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routes:   map[int64]model.Route{},
		stops:    map[int64]model.RouteStop{},
		students: map[int64]model.Student{},
		vehicles: map[int64]model.Vehicle{},
		drivers:  map[int64]model.Driver{},
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) GetRoute(ctx context.Context, id int64) (model.Route, error) {
	if err := ctx.Err(); err != nil {
		return model.Route{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[id]
	if !ok {
		return model.Route{}, ErrNotFound
	}
	return copyRoute(r), nil
}

func (s *MemoryStore) ListRoutes(ctx context.Context, f RouteFilter) ([]model.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Route, 0, len(s.routes))
	for _, r := range s.routes {
		if f.Match(r) {
			res = append(res, copyRoute(r))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) SaveRoute(ctx context.Context, r *model.Route) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.id()
	} else if _, ok := s.routes[r.ID]; !ok {
		return ErrNotFound
	}
	s.routes[r.ID] = copyRoute(*r)
	return nil
}

func (s *MemoryStore) ListStopsForRoute(ctx context.Context, routeID int64) ([]model.RouteStop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.RouteStop
	for _, st := range s.stops {
		if st.RouteID == routeID {
			res = append(res, st)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].StopOrder != res[j].StopOrder {
			return res[i].StopOrder < res[j].StopOrder
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (s *MemoryStore) AddStop(ctx context.Context, st *model.RouteStop) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routes[st.RouteID]; !ok {
		return ErrNotFound
	}
	st.ID = s.id()
	s.stops[st.ID] = *st
	return nil
}

func (s *MemoryStore) RemoveStop(ctx context.Context, stopID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stops[stopID]; !ok {
		return ErrNotFound
	}
	delete(s.stops, stopID)
	return nil
}

func (s *MemoryStore) BulkUpdateStopOrder(ctx context.Context, routeID int64, updates []StopOrderUpdate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range updates {
		st, ok := s.stops[u.StopID]
		if !ok || st.RouteID != routeID {
			continue
		}
		st.StopOrder = u.StopOrder
		s.stops[u.StopID] = st
		n++
	}
	return n, nil
}

func (s *MemoryStore) BulkUpdateStopTiming(ctx context.Context, routeID int64, updates []StopTimingUpdate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range updates {
		st, ok := s.stops[u.StopID]
		if !ok || st.RouteID != routeID {
			continue
		}
		st.EstimatedArrival = u.Arrival
		st.EstimatedDeparture = u.Departure
		s.stops[u.StopID] = st
		n++
	}
	return n, nil
}

func (s *MemoryStore) GetStudent(ctx context.Context, id int64) (model.Student, error) {
	if err := ctx.Err(); err != nil {
		return model.Student{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return model.Student{}, ErrNotFound
	}
	return copyStudent(st), nil
}

func (s *MemoryStore) SaveStudent(ctx context.Context, st *model.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		st.ID = s.id()
	}
	s.students[st.ID] = copyStudent(*st)
	return nil
}

func (s *MemoryStore) CountStudentsOnRoute(ctx context.Context, routeID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.students {
		if st.OnRoute(routeID) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountUnassignedStudents(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.students {
		if st.Unassigned() {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetVehicle(ctx context.Context, id int64) (model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return model.Vehicle{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return model.Vehicle{}, ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) GetDriver(ctx context.Context, id int64) (model.Driver, error) {
	if err := ctx.Err(); err != nil {
		return model.Driver{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return model.Driver{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) SaveVehicle(ctx context.Context, v *model.Vehicle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == 0 {
		v.ID = s.id()
	}
	s.vehicles[v.ID] = *v
	return nil
}

func (s *MemoryStore) SaveDriver(ctx context.Context, d *model.Driver) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id()
	}
	s.drivers[d.ID] = *d
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func copyRoute(r model.Route) model.Route {
	r.AMVehicleID = copyRef(r.AMVehicleID)
	r.PMVehicleID = copyRef(r.PMVehicleID)
	r.AMDriverID = copyRef(r.AMDriverID)
	r.PMDriverID = copyRef(r.PMDriverID)
	return r
}

func copyStudent(s model.Student) model.Student {
	s.AMRouteID = copyRef(s.AMRouteID)
	s.PMRouteID = copyRef(s.PMRouteID)
	return s
}

func copyRef(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var (
	_ DataStore       = (*MemoryStore)(nil)
	_ ReferenceWriter = (*MemoryStore)(nil)
)
