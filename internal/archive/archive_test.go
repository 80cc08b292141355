package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"prereg/internal/blob"
	"prereg/pkg/domain"
)

func sampleRegistration() domain.RegistrationDocument {
	return domain.RegistrationDocument{
		SchemaVersion:    domain.SchemaVersion,
		CreatedAt:        time.Date(2026, 2, 10, 9, 0, 5, 0, time.UTC),
		ModelID:          "m",
		ExperimentConfig: domain.ExperimentConfig{AgentCount: 8, TickCount: 100, SeedKnowledge: []string{}, StartingWallet: map[string]int{}},
		ApplicableQuestions: []domain.ResearchQuestion{
			{ID: "first_trade", Category: "economy", Question: "When?", MinAgents: 5},
		},
		Predictions: []domain.Prediction{{QuestionID: "first_trade", Prediction: "Soon.", Confidence: "high"}},
	}
}

func TestKeys(t *testing.T) {
	a := New(blob.NewMemory())
	at := time.Date(2026, 2, 12, 8, 30, 0, 0, time.FixedZone("CET", 3600))
	if got := a.RegistrationKey(at); got != "results/pre-registration-20260212-073000.json" {
		t.Fatalf("registration key %q", got)
	}
	report, doc := a.ComparisonKeys(at, "")
	if report != "results/comparison-20260212-073000.md" || doc != "results/comparison-20260212-073000.json" {
		t.Fatalf("comparison keys %q %q", report, doc)
	}
	report, doc = a.ComparisonKeys(at, "out/baseline.md")
	if report != "out/baseline.md" || doc != "out/baseline.json" {
		t.Fatalf("override keys %q %q", report, doc)
	}
}

func TestSaveAndLoadRegistrationByKey(t *testing.T) {
	ctx := context.Background()
	a := New(blob.NewMemory())
	doc := sampleRegistration()
	info, err := a.SaveRegistration(ctx, doc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if info.Key != "results/pre-registration-20260210-090005.json" || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	got, source, err := a.LoadRegistration(ctx, info.Key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if source != info.Key {
		t.Fatalf("unexpected source %q", source)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if _, err := a.SaveRegistration(ctx, doc); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists on second save, got %v", err)
	}
}

func TestLoadRegistrationFromLocalFile(t *testing.T) {
	doc := sampleRegistration()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "pre-registration.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, source, err := New(blob.NewMemory()).LoadRegistration(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if source != path || got.Predictions[0].QuestionID != "first_trade" {
		t.Fatalf("unexpected load %q %+v", source, got)
	}
}

func TestLoadRegistrationErrors(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	if _, err := store.Put(ctx, "results/bad.json", strings.NewReader("[1,2]"), blob.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := New(store)
	for _, ref := range []string{"", "results/missing.json", "results/bad.json"} {
		if _, _, err := a.LoadRegistration(ctx, ref); !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("ref %q: expected configuration error, got %v", ref, err)
		}
	}
}

func TestSaveComparison(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	a := New(store)
	doc := domain.ComparisonDocument{
		SchemaVersion: domain.SchemaVersion,
		CreatedAt:     time.Date(2026, 2, 12, 8, 30, 0, 0, time.UTC),
		RunID:         "0f8fad5b-d9cb-469f-a165-70867728950e",
		Outcomes:      domain.EmptyOutcomeSnapshot(),
	}
	reportInfo, docInfo, err := a.SaveComparison(ctx, doc, "# Emergence -- Run Comparison Report\n", "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if reportInfo.Key != "results/comparison-20260212-083000.md" || docInfo.Key != "results/comparison-20260212-083000.json" {
		t.Fatalf("unexpected keys %q %q", reportInfo.Key, docInfo.Key)
	}
	if reportInfo.Metadata["run_id"] != doc.RunID {
		t.Fatalf("report metadata %+v", reportInfo.Metadata)
	}
	_, rc, err := store.Get(ctx, docInfo.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	var back domain.ComparisonDocument
	if err := json.Unmarshal(body, &back); err != nil {
		t.Fatalf("stored document is not JSON: %v", err)
	}
	if back.RunID != doc.RunID || !strings.HasSuffix(string(body), "}\n") {
		t.Fatalf("unexpected stored document %s", body)
	}
}

func TestSaveComparisonToOutputPathReplacesFiles(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	a := New(store)
	output := filepath.Join(t.TempDir(), "reports", "baseline.md")
	doc := domain.ComparisonDocument{
		SchemaVersion: domain.SchemaVersion,
		CreatedAt:     time.Date(2026, 2, 12, 8, 30, 0, 0, time.UTC),
		RunID:         "run-a",
		Outcomes:      domain.EmptyOutcomeSnapshot(),
	}
	if _, _, err := a.SaveComparison(ctx, doc, "first\n", output); err != nil {
		t.Fatalf("first save: %v", err)
	}
	doc.RunID = "run-b"
	reportInfo, docInfo, err := a.SaveComparison(ctx, doc, "second\n", output)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	wantDoc := strings.TrimSuffix(output, ".md") + ".json"
	if reportInfo.Key != output || docInfo.Key != wantDoc {
		t.Fatalf("unexpected keys %q %q", reportInfo.Key, docInfo.Key)
	}
	report, err := os.ReadFile(output)
	if err != nil || string(report) != "second\n" {
		t.Fatalf("report not replaced: %q %v", report, err)
	}
	body, err := os.ReadFile(wantDoc)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var back domain.ComparisonDocument
	if err := json.Unmarshal(body, &back); err != nil || back.RunID != "run-b" {
		t.Fatalf("document not replaced: %s %v", body, err)
	}
	if infos, _ := store.List(ctx, ""); len(infos) != 0 {
		t.Fatalf("output path should bypass the store, found %+v", infos)
	}
}

func TestCheckOutput(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "taken.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cases := []struct {
		output string
		ok     bool
	}{
		{"", true},
		{filepath.Join(dir, "report.md"), true},
		{"../outside/report.md", true},
		{" ", false},
		{dir, false},
		{filepath.Join(dir, "report.json"), false},
		{filepath.Join(dir, "taken.md"), false},
	}
	for _, tc := range cases {
		err := CheckOutput(tc.output)
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.output, err)
		}
		if !tc.ok && !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("%q: expected configuration error, got %v", tc.output, err)
		}
	}
}
