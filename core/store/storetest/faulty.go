// Package storetest provides Data Store doubles for engine tests.
package storetest

import (
	"context"
	"sync"

	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/store"
)

// Faulty wraps a MemoryStore and fails selected methods on demand.
type Faulty struct {
	*store.MemoryStore

	mu   sync.Mutex
	errs map[string]error
	// zeroCount makes bulk updates report zero written rows.
	zeroCount bool
	calls     map[string]int
}

// NewFaulty returns a Faulty over an empty MemoryStore.
func NewFaulty() *Faulty {
	return &Faulty{MemoryStore: store.NewMemoryStore(), errs: map[string]error{}, calls: map[string]int{}}
}

// Fail makes method return err until cleared with Fail(method, nil).
func (f *Faulty) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// ReportZeroRows makes bulk updates apply but report zero written rows.
func (f *Faulty) ReportZeroRows(v bool) {
	f.mu.Lock()
	f.zeroCount = v
	f.mu.Unlock()
}

// Calls returns how often method was invoked.
func (f *Faulty) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Faulty) hit(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.errs[method]
}

func (f *Faulty) GetRoute(ctx context.Context, id int64) (model.Route, error) {
	if err := f.hit("GetRoute"); err != nil {
		return model.Route{}, err
	}
	return f.MemoryStore.GetRoute(ctx, id)
}

func (f *Faulty) ListRoutes(ctx context.Context, flt store.RouteFilter) ([]model.Route, error) {
	if err := f.hit("ListRoutes"); err != nil {
		return nil, err
	}
	return f.MemoryStore.ListRoutes(ctx, flt)
}

func (f *Faulty) SaveRoute(ctx context.Context, r *model.Route) error {
	if err := f.hit("SaveRoute"); err != nil {
		return err
	}
	return f.MemoryStore.SaveRoute(ctx, r)
}

func (f *Faulty) ListStopsForRoute(ctx context.Context, routeID int64) ([]model.RouteStop, error) {
	if err := f.hit("ListStopsForRoute"); err != nil {
		return nil, err
	}
	return f.MemoryStore.ListStopsForRoute(ctx, routeID)
}

func (f *Faulty) AddStop(ctx context.Context, s *model.RouteStop) error {
	if err := f.hit("AddStop"); err != nil {
		return err
	}
	return f.MemoryStore.AddStop(ctx, s)
}

func (f *Faulty) RemoveStop(ctx context.Context, stopID int64) error {
	if err := f.hit("RemoveStop"); err != nil {
		return err
	}
	return f.MemoryStore.RemoveStop(ctx, stopID)
}

func (f *Faulty) BulkUpdateStopOrder(ctx context.Context, routeID int64, u []store.StopOrderUpdate) (int, error) {
	if err := f.hit("BulkUpdateStopOrder"); err != nil {
		return 0, err
	}
	n, err := f.MemoryStore.BulkUpdateStopOrder(ctx, routeID, u)
	if f.reportsZero() {
		n = 0
	}
	return n, err
}

func (f *Faulty) BulkUpdateStopTiming(ctx context.Context, routeID int64, u []store.StopTimingUpdate) (int, error) {
	if err := f.hit("BulkUpdateStopTiming"); err != nil {
		return 0, err
	}
	n, err := f.MemoryStore.BulkUpdateStopTiming(ctx, routeID, u)
	if f.reportsZero() {
		n = 0
	}
	return n, err
}

func (f *Faulty) GetStudent(ctx context.Context, id int64) (model.Student, error) {
	if err := f.hit("GetStudent"); err != nil {
		return model.Student{}, err
	}
	return f.MemoryStore.GetStudent(ctx, id)
}

func (f *Faulty) SaveStudent(ctx context.Context, s *model.Student) error {
	if err := f.hit("SaveStudent"); err != nil {
		return err
	}
	return f.MemoryStore.SaveStudent(ctx, s)
}

func (f *Faulty) CountStudentsOnRoute(ctx context.Context, routeID int64) (int, error) {
	if err := f.hit("CountStudentsOnRoute"); err != nil {
		return 0, err
	}
	return f.MemoryStore.CountStudentsOnRoute(ctx, routeID)
}

func (f *Faulty) GetVehicle(ctx context.Context, id int64) (model.Vehicle, error) {
	if err := f.hit("GetVehicle"); err != nil {
		return model.Vehicle{}, err
	}
	return f.MemoryStore.GetVehicle(ctx, id)
}

func (f *Faulty) reportsZero() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.zeroCount
}

var _ store.DataStore = (*Faulty)(nil)
