package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/busroute/config"
	corestore "github.com/kilianp07/busroute/core/store"
)

// Store is a DataStore that can also maintain reference data.
type Store interface {
	corestore.DataStore
	corestore.ReferenceWriter
}

// Open builds the Data Store selected by cfg and migrates SQL schemas.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	if cfg.Driver == "memory" {
		return corestore.NewMemoryStore(), nil
	}
	d, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := openDB(d, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if d.Name == SQLite.Name {
		// A single writer avoids SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	s := New(db, d)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func openDB(d Dialect, dsn string) (*sql.DB, error) {
	if d.Name != MySQL.Name {
		return sql.Open(d.DriverName, dsn)
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	// Report matched rather than changed rows so bulk updates count like
	// the other dialects.
	mc.ClientFoundRows = true
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(conn), nil
}
