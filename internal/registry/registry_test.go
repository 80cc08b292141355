package registry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"prereg/internal/infra/persistence/postgres"
	pgtest "prereg/internal/infra/persistence/postgres/testutil"
	"prereg/internal/storage"
	"prereg/pkg/domain"
)

func sampleRegistration() domain.RegistrationDocument {
	return domain.RegistrationDocument{
		SchemaVersion:  domain.SchemaVersion,
		CreatedAt:      time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		ModelID:        "deepseek/deepseek-chat-v3-0324",
		CatalogVersion: "v1",
		ExperimentConfig: domain.ExperimentConfig{
			AgentCount: 8, TickCount: 3600, PersonalityMode: "random", KnowledgeLevel: 1,
			SeedKnowledge: []string{}, StartingWallet: map[string]int{"food": 5},
			HungerRate: 5, ReproductionEnabled: true, DayNight: true, TicksPerSeason: 90, AgentLifespanTicks: 2500,
		},
		Predictions: []domain.Prediction{
			{QuestionID: "first_trade", Prediction: "Trade by tick 200.", Confidence: "high", ExpectedTickRange: &domain.TickRange{Start: 50, End: 200}, KeyIndicators: []string{"trade events"}},
		},
	}
}

func openSQLite(t *testing.T) (*Repository, *storage.Datastore) {
	t.Helper()
	ds, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "emergence.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	repo := New(ds)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return repo, ds
}

func TestSaveIsIdempotentByContent(t *testing.T) {
	ctx := context.Background()
	repo, ds := openSQLite(t)
	doc := sampleRegistration()

	first, err := repo.Save(ctx, doc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !first.Created || first.ID == "" || len(first.ContentKey) != 64 {
		t.Fatalf("unexpected first record %+v", first)
	}

	later := doc
	later.CreatedAt = doc.CreatedAt.Add(time.Hour)
	second, err := repo.Save(ctx, later)
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if second.Created || second.ID != first.ID {
		t.Fatalf("expected existing record %s, got %+v", first.ID, second)
	}

	changed := doc
	changed.Predictions = []domain.Prediction{{QuestionID: "first_trade", Prediction: "Never.", Confidence: "low"}}
	third, err := repo.Save(ctx, changed)
	if err != nil {
		t.Fatalf("save changed: %v", err)
	}
	if !third.Created || third.ID == first.ID {
		t.Fatalf("expected new record, got %+v", third)
	}

	var n int
	if err := ds.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM pre_registrations`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
}

func TestLinkComparison(t *testing.T) {
	ctx := context.Background()
	repo, ds := openSQLite(t)
	reg := sampleRegistration()
	rec, err := repo.Save(ctx, reg)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := roundTrip(t, reg)
	cmpDoc := domain.ComparisonDocument{
		SchemaVersion: domain.SchemaVersion,
		RunID:         "0f8fad5b-d9cb-469f-a165-70867728950e",
		Outcomes:      domain.EmptyOutcomeSnapshot(),
		Comparison:    domain.ComparisonPayload{OverallSummary: "ok"},
	}
	n, err := repo.LinkComparison(ctx, loaded, cmpDoc)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 linked row, got %d", n)
	}

	var runID, report string
	if err := ds.DB.QueryRowContext(ctx, `SELECT run_id, comparison_report FROM pre_registrations WHERE id = ?`, rec.ID).Scan(&runID, &report); err != nil {
		t.Fatalf("select: %v", err)
	}
	if runID != cmpDoc.RunID || !strings.Contains(report, `"overall_summary":"ok"`) {
		t.Fatalf("unexpected linked row run_id=%q report=%s", runID, report)
	}

	other := reg
	other.Predictions = []domain.Prediction{{QuestionID: "x"}}
	n, err = repo.LinkComparison(ctx, other, cmpDoc)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op link, got %d, %v", n, err)
	}
}

// roundTrip mimics loading the registration back from its JSON artifact.
func roundTrip(t *testing.T, doc domain.RegistrationDocument) domain.RegistrationDocument {
	t.Helper()
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out domain.RegistrationDocument
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestContentKeyIgnoresTimestampAndModel(t *testing.T) {
	a := sampleRegistration()
	b := sampleRegistration()
	b.CreatedAt = time.Now()
	b.ModelID = "other"
	ka, err := ContentKey(a)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	kb, _ := ContentKey(b)
	if ka != kb {
		t.Fatalf("content key should depend only on config and predictions")
	}
	b.ExperimentConfig.AgentCount = 9
	if kc, _ := ContentKey(b); kc == ka {
		t.Fatalf("content key should change with config")
	}
}

func newStubRepo(t *testing.T) (*Repository, *pgtest.StubConn) {
	t.Helper()
	db, conn := pgtest.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	ds, err := storage.Open(context.Background(), storage.DriverPostgres, "postgres://stub")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	repo := New(ds)
	repo.newID = func() string { return "11111111-2222-3333-4444-555555555555" }
	return repo, conn
}

func TestPostgresStatements(t *testing.T) {
	ctx := context.Background()
	repo, conn := newStubRepo(t)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if len(conn.Execs) != 4 || !strings.Contains(conn.Execs[0].Query, "id UUID PRIMARY KEY") ||
		!strings.Contains(conn.Execs[1].Query, "ADD COLUMN IF NOT EXISTS content_key") {
		t.Fatalf("unexpected schema statements %+v", conn.Execs)
	}

	rec, err := repo.Save(ctx, sampleRegistration())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !rec.Created || rec.ID != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("unexpected record %+v", rec)
	}
	insert := conn.Execs[len(conn.Execs)-1]
	for _, frag := range []string{"VALUES ($1, $2, $3, CAST($4 AS JSONB), $5, $6, CAST($7 AS JSONB))", "ON CONFLICT (content_key) DO NOTHING"} {
		if !strings.Contains(insert.Query, frag) {
			t.Fatalf("insert missing %q:\n%s", frag, insert.Query)
		}
	}
	if len(insert.Args) != 7 || insert.Args[4] != "deepseek/deepseek-chat-v3-0324" {
		t.Fatalf("unexpected insert args %v", insert.Args)
	}

	if _, err := repo.LinkComparison(ctx, sampleRegistration(), domain.ComparisonDocument{RunID: "r"}); err != nil {
		t.Fatalf("link: %v", err)
	}
	update := conn.Execs[len(conn.Execs)-1]
	if !strings.Contains(update.Query, "SET run_id = $1, comparison_report = CAST($2 AS JSONB) WHERE predictions = CAST($3 AS JSONB)") {
		t.Fatalf("unexpected update:\n%s", update.Query)
	}
}

func TestPostgresSaveConflictReturnsExisting(t *testing.T) {
	repo, conn := newStubRepo(t)
	conn.Affected = 0
	conn.Columns = []string{"id"}
	conn.Rows = [][]driver.Value{{"existing-id"}}
	rec, err := repo.Save(context.Background(), sampleRegistration())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.Created || rec.ID != "existing-id" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(conn.Queries) != 1 || !strings.Contains(conn.Queries[0].Query, "WHERE content_key = $1") {
		t.Fatalf("unexpected lookup %+v", conn.Queries)
	}
}

func TestDatastoreErrors(t *testing.T) {
	ctx := context.Background()
	repo, conn := newStubRepo(t)
	conn.FailExec = fmt.Errorf("connection reset")
	if err := repo.EnsureSchema(ctx); !errors.Is(err, domain.ErrDatastore) {
		t.Fatalf("schema: expected datastore error, got %v", err)
	}
	if _, err := repo.Save(ctx, sampleRegistration()); !errors.Is(err, domain.ErrDatastore) {
		t.Fatalf("save: expected datastore error, got %v", err)
	}
	if _, err := repo.LinkComparison(ctx, sampleRegistration(), domain.ComparisonDocument{}); !errors.Is(err, domain.ErrDatastore) {
		t.Fatalf("link: expected datastore error, got %v", err)
	}
}
