package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported backends.
type Dialect struct {
	Name string
	// DriverName is the database/sql driver registered for the dialect.
	DriverName string
	// Returning marks dialects that report inserted ids through RETURNING
	// instead of LastInsertId.
	Returning bool
	dollar    bool
	schema    []string
}

var (
	SQLite = Dialect{
		Name:       "sqlite",
		DriverName: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS routes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				school VARCHAR(255) NOT NULL DEFAULT '',
				service_date VARCHAR(10) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT 0,
				am_vehicle_id BIGINT NULL,
				pm_vehicle_id BIGINT NULL,
				am_driver_id BIGINT NULL,
				pm_driver_id BIGINT NULL,
				student_count INTEGER NOT NULL DEFAULT 0,
				stop_count INTEGER NOT NULL DEFAULT 0,
				start_time VARCHAR(5) NOT NULL DEFAULT '',
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS route_stops (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				route_id BIGINT NOT NULL,
				stop_order INTEGER NOT NULL,
				name VARCHAR(255) NOT NULL,
				address TEXT NOT NULL DEFAULT '',
				dwell_minutes INTEGER NOT NULL DEFAULT 0,
				estimated_arrival BIGINT NOT NULL DEFAULT 0,
				estimated_departure BIGINT NOT NULL DEFAULT 0,
				created_at BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_route_stops_route ON route_stops(route_id)`,
			`CREATE TABLE IF NOT EXISTS students (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name VARCHAR(255) NOT NULL,
				grade VARCHAR(32) NOT NULL DEFAULT '',
				am_route_id BIGINT NULL,
				pm_route_id BIGINT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS vehicles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				number VARCHAR(64) NOT NULL,
				seating_capacity INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS drivers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name VARCHAR(255) NOT NULL,
				license_class VARCHAR(32) NOT NULL DEFAULT ''
			)`,
		},
	}

	Postgres = Dialect{
		Name:       "postgres",
		DriverName: "pgx",
		Returning:  true,
		dollar:     true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS routes (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				school VARCHAR(255) NOT NULL DEFAULT '',
				service_date VARCHAR(10) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				am_vehicle_id BIGINT NULL,
				pm_vehicle_id BIGINT NULL,
				am_driver_id BIGINT NULL,
				pm_driver_id BIGINT NULL,
				student_count INTEGER NOT NULL DEFAULT 0,
				stop_count INTEGER NOT NULL DEFAULT 0,
				start_time VARCHAR(5) NOT NULL DEFAULT '',
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS route_stops (
				id BIGSERIAL PRIMARY KEY,
				route_id BIGINT NOT NULL REFERENCES routes(id),
				stop_order INTEGER NOT NULL,
				name VARCHAR(255) NOT NULL,
				address TEXT NOT NULL DEFAULT '',
				dwell_minutes INTEGER NOT NULL DEFAULT 0,
				estimated_arrival BIGINT NOT NULL DEFAULT 0,
				estimated_departure BIGINT NOT NULL DEFAULT 0,
				created_at BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_route_stops_route ON route_stops(route_id)`,
			`CREATE TABLE IF NOT EXISTS students (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				grade VARCHAR(32) NOT NULL DEFAULT '',
				am_route_id BIGINT NULL REFERENCES routes(id),
				pm_route_id BIGINT NULL REFERENCES routes(id)
			)`,
			`CREATE TABLE IF NOT EXISTS vehicles (
				id BIGSERIAL PRIMARY KEY,
				number VARCHAR(64) NOT NULL,
				seating_capacity INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS drivers (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				license_class VARCHAR(32) NOT NULL DEFAULT ''
			)`,
		},
	}

	MySQL = Dialect{
		Name:       "mysql",
		DriverName: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS routes (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				school VARCHAR(255) NOT NULL DEFAULT '',
				service_date VARCHAR(10) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				am_vehicle_id BIGINT NULL,
				pm_vehicle_id BIGINT NULL,
				am_driver_id BIGINT NULL,
				pm_driver_id BIGINT NULL,
				student_count INT NOT NULL DEFAULT 0,
				stop_count INT NOT NULL DEFAULT 0,
				start_time VARCHAR(5) NOT NULL DEFAULT '',
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				INDEX idx_routes_date (service_date)
			) ENGINE=InnoDB`,
			`CREATE TABLE IF NOT EXISTS route_stops (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				route_id BIGINT NOT NULL,
				stop_order INT NOT NULL,
				name VARCHAR(255) NOT NULL,
				address TEXT NOT NULL,
				dwell_minutes INT NOT NULL DEFAULT 0,
				estimated_arrival BIGINT NOT NULL DEFAULT 0,
				estimated_departure BIGINT NOT NULL DEFAULT 0,
				created_at BIGINT NOT NULL,
				INDEX idx_route_stops_route (route_id)
			) ENGINE=InnoDB`,
			`CREATE TABLE IF NOT EXISTS students (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				grade VARCHAR(32) NOT NULL DEFAULT '',
				am_route_id BIGINT NULL,
				pm_route_id BIGINT NULL
			) ENGINE=InnoDB`,
			`CREATE TABLE IF NOT EXISTS vehicles (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				number VARCHAR(64) NOT NULL,
				seating_capacity INT NOT NULL DEFAULT 0
			) ENGINE=InnoDB`,
			`CREATE TABLE IF NOT EXISTS drivers (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				license_class VARCHAR(32) NOT NULL DEFAULT ''
			) ENGINE=InnoDB`,
		},
	}
)

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case SQLite.Name:
		return SQLite, nil
	case Postgres.Name:
		return Postgres, nil
	case MySQL.Name:
		return MySQL, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
	}
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
func (d Dialect) Rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
