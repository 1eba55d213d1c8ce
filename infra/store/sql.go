// Package store implements the route planning Data Store on top of
// database/sql for SQLite, PostgreSQL and MySQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/busroute/core/model"
	corestore "github.com/kilianp07/busroute/core/store"
)

const dateLayout = "2006-01-02"

const routeColumns = `id, name, description, school, service_date, is_active,
	am_vehicle_id, pm_vehicle_id, am_driver_id, pm_driver_id,
	student_count, stop_count, start_time, created_at, updated_at`

const stopColumns = `id, route_id, stop_order, name, address, dwell_minutes,
	estimated_arrival, estimated_departure, created_at`

// SQLStore persists routes, stops, students, vehicles and drivers in a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database. Call Migrate to create the schema.
func New(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d}
}

// Migrate creates missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(q), args...)
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(q), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(q), args...)
}

// insert runs an INSERT and returns the generated id.
func (s *SQLStore) insert(ctx context.Context, q string, args ...any) (int64, error) {
	if s.dialect.Returning {
		var id int64
		if err := s.queryRow(ctx, q+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := s.exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(sc rowScanner) (model.Route, error) {
	var (
		r                  model.Route
		date               string
		amV, pmV, amD, pmD sql.NullInt64
		created, updated   int64
	)
	if err := sc.Scan(&r.ID, &r.Name, &r.Description, &r.School, &date, &r.IsActive,
		&amV, &pmV, &amD, &pmD, &r.StudentCount, &r.StopCount, &r.StartTime, &created, &updated); err != nil {
		return model.Route{}, err
	}
	d, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return model.Route{}, fmt.Errorf("route %d: bad service date %q: %w", r.ID, date, err)
	}
	r.Date = d
	r.AMVehicleID = fromNull(amV)
	r.PMVehicleID = fromNull(pmV)
	r.AMDriverID = fromNull(amD)
	r.PMDriverID = fromNull(pmD)
	r.CreatedAt = fromNanos(created)
	r.UpdatedAt = fromNanos(updated)
	return r, nil
}

func (s *SQLStore) GetRoute(ctx context.Context, id int64) (model.Route, error) {
	r, err := scanRoute(s.queryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Route{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.Route{}, fmt.Errorf("get route %d: %w", id, err)
	}
	return r, nil
}

func (s *SQLStore) ListRoutes(ctx context.Context, f corestore.RouteFilter) ([]model.Route, error) {
	var (
		where []string
		args  []any
	)
	if f.Date != nil {
		where = append(where, "service_date = ?")
		args = append(args, f.Date.Format(dateLayout))
	}
	if f.Active != nil {
		where = append(where, "is_active = ?")
		args = append(args, *f.Active)
	}
	if f.School != "" {
		where = append(where, "school = ?")
		args = append(args, f.School)
	}
	q := `SELECT ` + routeColumns + ` FROM routes`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var res []model.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLStore) SaveRoute(ctx context.Context, r *model.Route) error {
	args := []any{r.Name, r.Description, r.School, r.Date.Format(dateLayout), r.IsActive,
		toNull(r.AMVehicleID), toNull(r.PMVehicleID), toNull(r.AMDriverID), toNull(r.PMDriverID),
		r.StudentCount, r.StopCount, r.StartTime, toNanos(r.CreatedAt), toNanos(r.UpdatedAt)}
	if r.ID == 0 {
		id, err := s.insert(ctx, `INSERT INTO routes (name, description, school, service_date, is_active,
			am_vehicle_id, pm_vehicle_id, am_driver_id, pm_driver_id,
			student_count, stop_count, start_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return fmt.Errorf("insert route: %w", err)
		}
		r.ID = id
		return nil
	}
	res, err := s.exec(ctx, `UPDATE routes SET name = ?, description = ?, school = ?, service_date = ?, is_active = ?,
		am_vehicle_id = ?, pm_vehicle_id = ?, am_driver_id = ?, pm_driver_id = ?,
		student_count = ?, stop_count = ?, start_time = ?, created_at = ?, updated_at = ?
		WHERE id = ?`, append(args, r.ID)...)
	if err != nil {
		return fmt.Errorf("update route %d: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update route %d: %w", r.ID, err)
	}
	if n == 0 {
		return corestore.ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListStopsForRoute(ctx context.Context, routeID int64) ([]model.RouteStop, error) {
	rows, err := s.query(ctx, `SELECT `+stopColumns+` FROM route_stops WHERE route_id = ? ORDER BY stop_order, id`, routeID)
	if err != nil {
		return nil, fmt.Errorf("list stops for route %d: %w", routeID, err)
	}
	defer func() { _ = rows.Close() }()
	var res []model.RouteStop
	for rows.Next() {
		var (
			st                          model.RouteStop
			arrival, departure, created int64
		)
		if err := rows.Scan(&st.ID, &st.RouteID, &st.StopOrder, &st.Name, &st.Address, &st.DwellMinutes,
			&arrival, &departure, &created); err != nil {
			return nil, err
		}
		st.EstimatedArrival = fromNanos(arrival)
		st.EstimatedDeparture = fromNanos(departure)
		st.CreatedAt = fromNanos(created)
		res = append(res, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLStore) AddStop(ctx context.Context, st *model.RouteStop) error {
	var exists int
	err := s.queryRow(ctx, `SELECT 1 FROM routes WHERE id = ?`, st.RouteID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return corestore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("add stop: %w", err)
	}
	id, err := s.insert(ctx, `INSERT INTO route_stops (route_id, stop_order, name, address, dwell_minutes,
		estimated_arrival, estimated_departure, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.RouteID, st.StopOrder, st.Name, st.Address, st.DwellMinutes,
		toNanos(st.EstimatedArrival), toNanos(st.EstimatedDeparture), toNanos(st.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert stop: %w", err)
	}
	st.ID = id
	return nil
}

func (s *SQLStore) RemoveStop(ctx context.Context, stopID int64) error {
	res, err := s.exec(ctx, `DELETE FROM route_stops WHERE id = ?`, stopID)
	if err != nil {
		return fmt.Errorf("remove stop %d: %w", stopID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove stop %d: %w", stopID, err)
	}
	if n == 0 {
		return corestore.ErrNotFound
	}
	return nil
}

// bulk runs one prepared statement per row inside a transaction and returns
// the total number of affected rows.
func (s *SQLStore) bulk(ctx context.Context, q string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, s.dialect.Rebind(q))
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()
	total := 0
	for _, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *SQLStore) BulkUpdateStopOrder(ctx context.Context, routeID int64, updates []corestore.StopOrderUpdate) (int, error) {
	rows := make([][]any, len(updates))
	for i, u := range updates {
		rows[i] = []any{u.StopOrder, u.StopID, routeID}
	}
	n, err := s.bulk(ctx, `UPDATE route_stops SET stop_order = ? WHERE id = ? AND route_id = ?`, rows)
	if err != nil {
		return 0, fmt.Errorf("reorder stops of route %d: %w", routeID, err)
	}
	return n, nil
}

func (s *SQLStore) BulkUpdateStopTiming(ctx context.Context, routeID int64, updates []corestore.StopTimingUpdate) (int, error) {
	rows := make([][]any, len(updates))
	for i, u := range updates {
		rows[i] = []any{toNanos(u.Arrival), toNanos(u.Departure), u.StopID, routeID}
	}
	n, err := s.bulk(ctx, `UPDATE route_stops SET estimated_arrival = ?, estimated_departure = ? WHERE id = ? AND route_id = ?`, rows)
	if err != nil {
		return 0, fmt.Errorf("update timing of route %d: %w", routeID, err)
	}
	return n, nil
}

func (s *SQLStore) GetStudent(ctx context.Context, id int64) (model.Student, error) {
	var (
		st     model.Student
		am, pm sql.NullInt64
	)
	err := s.queryRow(ctx, `SELECT id, name, grade, am_route_id, pm_route_id FROM students WHERE id = ?`, id).
		Scan(&st.ID, &st.Name, &st.Grade, &am, &pm)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Student{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.Student{}, fmt.Errorf("get student %d: %w", id, err)
	}
	st.AMRouteID = fromNull(am)
	st.PMRouteID = fromNull(pm)
	return st, nil
}

func (s *SQLStore) SaveStudent(ctx context.Context, st *model.Student) error {
	if st.ID == 0 {
		id, err := s.insert(ctx, `INSERT INTO students (name, grade, am_route_id, pm_route_id) VALUES (?, ?, ?, ?)`,
			st.Name, st.Grade, toNull(st.AMRouteID), toNull(st.PMRouteID))
		if err != nil {
			return fmt.Errorf("insert student: %w", err)
		}
		st.ID = id
		return nil
	}
	res, err := s.exec(ctx, `UPDATE students SET name = ?, grade = ?, am_route_id = ?, pm_route_id = ? WHERE id = ?`,
		st.Name, st.Grade, toNull(st.AMRouteID), toNull(st.PMRouteID), st.ID)
	if err != nil {
		return fmt.Errorf("update student %d: %w", st.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return corestore.ErrNotFound
	}
	return nil
}

func (s *SQLStore) count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	if err := s.queryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLStore) CountStudentsOnRoute(ctx context.Context, routeID int64) (int, error) {
	n, err := s.count(ctx, `SELECT COUNT(*) FROM students WHERE am_route_id = ? OR pm_route_id = ?`, routeID, routeID)
	if err != nil {
		return 0, fmt.Errorf("count students on route %d: %w", routeID, err)
	}
	return n, nil
}

func (s *SQLStore) CountUnassignedStudents(ctx context.Context) (int, error) {
	n, err := s.count(ctx, `SELECT COUNT(*) FROM students WHERE am_route_id IS NULL AND pm_route_id IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("count unassigned students: %w", err)
	}
	return n, nil
}

func (s *SQLStore) GetVehicle(ctx context.Context, id int64) (model.Vehicle, error) {
	var v model.Vehicle
	err := s.queryRow(ctx, `SELECT id, number, seating_capacity FROM vehicles WHERE id = ?`, id).
		Scan(&v.ID, &v.Number, &v.SeatingCapacity)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vehicle{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("get vehicle %d: %w", id, err)
	}
	return v, nil
}

func (s *SQLStore) GetDriver(ctx context.Context, id int64) (model.Driver, error) {
	var d model.Driver
	err := s.queryRow(ctx, `SELECT id, name, license_class FROM drivers WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.LicenseClass)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Driver{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.Driver{}, fmt.Errorf("get driver %d: %w", id, err)
	}
	return d, nil
}

func (s *SQLStore) SaveVehicle(ctx context.Context, v *model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if v.ID == 0 {
		id, err := s.insert(ctx, `INSERT INTO vehicles (number, seating_capacity) VALUES (?, ?)`, v.Number, v.SeatingCapacity)
		if err != nil {
			return fmt.Errorf("insert vehicle: %w", err)
		}
		v.ID = id
		return nil
	}
	if _, err := s.exec(ctx, `UPDATE vehicles SET number = ?, seating_capacity = ? WHERE id = ?`, v.Number, v.SeatingCapacity, v.ID); err != nil {
		return fmt.Errorf("update vehicle %d: %w", v.ID, err)
	}
	return nil
}

func (s *SQLStore) SaveDriver(ctx context.Context, d *model.Driver) error {
	if d.ID == 0 {
		id, err := s.insert(ctx, `INSERT INTO drivers (name, license_class) VALUES (?, ?)`, d.Name, d.LicenseClass)
		if err != nil {
			return fmt.Errorf("insert driver: %w", err)
		}
		d.ID = id
		return nil
	}
	if _, err := s.exec(ctx, `UPDATE drivers SET name = ?, license_class = ? WHERE id = ?`, d.Name, d.LicenseClass, d.ID); err != nil {
		return fmt.Errorf("update driver %d: %w", d.ID, err)
	}
	return nil
}

func toNull(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func fromNull(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

var (
	_ corestore.DataStore       = (*SQLStore)(nil)
	_ corestore.ReferenceWriter = (*SQLStore)(nil)
)
