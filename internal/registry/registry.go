// Package registry persists registration documents in the pre_registrations
// table and links them to the comparison made after the run.
package registry

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"prereg/internal/storage"
	"prereg/pkg/domain"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS pre_registrations (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	experiment_config JSONB NOT NULL,
	model TEXT NOT NULL,
	predictions JSONB NOT NULL,
	run_id UUID,
	comparison_report JSONB
)`

const sqliteSchema = `CREATE TABLE IF NOT EXISTS pre_registrations (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	experiment_config TEXT NOT NULL,
	model TEXT NOT NULL,
	predictions TEXT NOT NULL,
	run_id TEXT,
	comparison_report TEXT,
	content_key TEXT,
	catalog_version TEXT
)`

// Tables created by earlier tooling lack the last two columns.
var postgresMigrations = []string{
	`ALTER TABLE pre_registrations ADD COLUMN IF NOT EXISTS content_key TEXT`,
	`ALTER TABLE pre_registrations ADD COLUMN IF NOT EXISTS catalog_version TEXT`,
}

const contentKeyIndex = `CREATE UNIQUE INDEX IF NOT EXISTS pre_registrations_content_key_idx ON pre_registrations (content_key)`

// Record identifies a stored registration.
type Record struct {
	ID         string
	ContentKey string
	Created    bool
}

// Repository reads and writes pre_registrations rows.
type Repository struct {
	db      *sql.DB
	dialect storage.Dialect
	newID   func() string
}

// New binds a repository to an open datastore.
func New(ds *storage.Datastore) *Repository {
	return &Repository{db: ds.DB, dialect: ds.Dialect, newID: uuid.NewString}
}

// EnsureSchema creates the table and its content-key index if needed.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{sqliteSchema}
	if r.dialect.Name() == string(storage.DriverPostgres) {
		stmts = append([]string{postgresSchema}, postgresMigrations...)
	}
	stmts = append(stmts, contentKeyIndex)
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return &domain.DatastoreError{Op: "ensure schema", Err: err}
		}
	}
	return nil
}

// ContentKey is the hex SHA-256 of the document's configuration and
// predictions. Saving the same registration twice yields one row.
func ContentKey(doc domain.RegistrationDocument) (string, error) {
	payload, err := json.Marshal(struct {
		Config      domain.ExperimentConfig `json:"experiment_config"`
		Predictions []domain.Prediction     `json:"predictions"`
	}{doc.ExperimentConfig, predictionsOrEmpty(doc.Predictions)})
	if err != nil {
		return "", fmt.Errorf("content key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Save inserts doc unless a row with the same content key exists, in which
// case the existing id is returned with Created false.
func (r *Repository) Save(ctx context.Context, doc domain.RegistrationDocument) (Record, error) {
	key, err := ContentKey(doc)
	if err != nil {
		return Record{}, err
	}
	cfg, err := json.Marshal(doc.ExperimentConfig)
	if err != nil {
		return Record{}, fmt.Errorf("encode experiment config: %w", err)
	}
	preds, err := encodePredictions(doc.Predictions)
	if err != nil {
		return Record{}, err
	}

	id := r.newID()
	query := r.dialect.Rebind(fmt.Sprintf(
		`INSERT INTO pre_registrations (id, content_key, created_at, experiment_config, model, catalog_version, predictions)
VALUES (?, ?, ?, %s, ?, ?, %s)
ON CONFLICT (content_key) DO NOTHING`, r.dialect.JSONParam("?"), r.dialect.JSONParam("?")))
	res, err := r.db.ExecContext(ctx, query, id, key, doc.CreatedAt.UTC(), string(cfg), doc.ModelID, doc.CatalogVersion, preds)
	if err != nil {
		return Record{}, &domain.DatastoreError{Op: "save registration", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return Record{ID: id, ContentKey: key, Created: true}, nil
	}

	var existing string
	err = r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT CAST(id AS TEXT) FROM pre_registrations WHERE content_key = ?`), key).Scan(&existing)
	if err != nil {
		return Record{}, &domain.DatastoreError{Op: "save registration", Err: err}
	}
	return Record{ID: existing, ContentKey: key, Created: false}, nil
}

// LinkComparison stores the run id and comparison on every row whose
// predictions equal reg's. It returns the number of rows updated; zero means
// no matching registration was saved.
func (r *Repository) LinkComparison(ctx context.Context, reg domain.RegistrationDocument, cmp domain.ComparisonDocument) (int64, error) {
	report, err := json.Marshal(cmp)
	if err != nil {
		return 0, fmt.Errorf("encode comparison: %w", err)
	}
	preds, err := encodePredictions(reg.Predictions)
	if err != nil {
		return 0, err
	}
	query := r.dialect.Rebind(fmt.Sprintf(
		`UPDATE pre_registrations SET run_id = ?, comparison_report = %s WHERE predictions = %s`,
		r.dialect.JSONParam("?"), r.dialect.JSONParam("?")))
	res, err := r.db.ExecContext(ctx, query, cmp.RunID, string(report), preds)
	if err != nil {
		return 0, &domain.DatastoreError{Op: "link comparison", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.DatastoreError{Op: "link comparison", Err: err}
	}
	return n, nil
}

func encodePredictions(preds []domain.Prediction) (string, error) {
	b, err := json.Marshal(predictionsOrEmpty(preds))
	if err != nil {
		return "", fmt.Errorf("encode predictions: %w", err)
	}
	return string(b), nil
}

func predictionsOrEmpty(preds []domain.Prediction) []domain.Prediction {
	if preds == nil {
		return []domain.Prediction{}
	}
	return preds
}
