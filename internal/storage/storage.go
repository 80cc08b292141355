// Package storage selects and opens the datastore holding simulation state
// and pre-registration records.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"prereg/internal/infra/persistence/postgres"
	"prereg/internal/infra/persistence/sqlite"
	"prereg/pkg/domain"
)

// Driver identifies a concrete datastore implementation.
type Driver string

const (
	DriverPostgres Driver = "postgres" // PostgreSQL server (default)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
)

// Dialect captures the SQL differences between drivers. Queries are written
// with ? placeholders and rebound per dialect.
type Dialect interface {
	Name() string
	Rebind(query string) string
	IsUndefinedTable(err error) bool
	JSONParam(placeholder string) string
}

// Datastore is one open connection pool plus the dialect it speaks. It is
// held for a single invocation and must be closed on every exit path.
type Datastore struct {
	DB      *sql.DB
	Dialect Dialect
}

// Close releases the underlying pool.
func (d *Datastore) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// Open connects to the datastore for driver using dsn. Failures are
// domain.DatastoreError values.
func Open(ctx context.Context, driver Driver, dsn string) (*Datastore, error) {
	switch driver {
	case DriverPostgres, "":
		db, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, &domain.DatastoreError{Op: "connect", Err: err}
		}
		return &Datastore{DB: db, Dialect: postgres.Dialect{}}, nil
	case DriverSQLite:
		db, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, &domain.DatastoreError{Op: "connect", Err: err}
		}
		return &Datastore{DB: db, Dialect: sqlite.Dialect{}}, nil
	default:
		return nil, domain.ConfigError{Key: "PREREG_STORAGE_DRIVER", Reason: fmt.Sprintf("unknown storage driver %q", driver)}
	}
}
