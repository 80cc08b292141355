// Package sqlite opens embedded SQLite datastores through the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const defaultPath = "emergence.db"

// Open opens (creating if needed) the database file at path. A sqlite:// or
// file: prefix is accepted so the same DATABASE_URL variable can carry it.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "sqlite://"), "file:")
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Dialect is the SQLite flavour of SQL used by the extractor and registry.
type Dialect struct{}

// Name returns "sqlite".
func (Dialect) Name() string { return "sqlite" }

// Rebind returns query unchanged; SQLite understands ? placeholders.
func (Dialect) Rebind(query string) string { return query }

// IsUndefinedTable matches the driver's "no such table" message.
func (Dialect) IsUndefinedTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// JSONParam leaves the parameter as text; payloads are compared byte-for-byte.
func (Dialect) JSONParam(placeholder string) string { return placeholder }
