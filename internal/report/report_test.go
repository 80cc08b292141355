package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"prereg/pkg/domain"
	"prereg/testutil"
)

func i64(v int64) *int64 { return &v }

func sampleRegistration() domain.RegistrationDocument {
	return domain.RegistrationDocument{
		SchemaVersion: domain.SchemaVersion,
		CreatedAt:     time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		ModelID:       "anthropic/claude-sonnet-4",
		ExperimentConfig: domain.ExperimentConfig{
			AgentCount:          8,
			TickCount:           3600,
			PersonalityMode:     "random",
			KnowledgeLevel:      1,
			ReproductionEnabled: true,
			TicksPerSeason:      90,
		},
		Predictions: []domain.Prediction{
			{QuestionID: "first_trade", Prediction: "Trade appears within 200 ticks.", Confidence: "high"},
			{QuestionID: "first_death", Prediction: "Starvation claims the first agent.", Confidence: "medium"},
		},
	}
}

func sampleComparison() domain.ComparisonDocument {
	snap := domain.EmptyOutcomeSnapshot()
	snap.Run = domain.RunInfo{ID: "0f8fad5b-d9cb-469f-a165-70867728950e", Name: "baseline", Status: "completed"}
	snap.Population = domain.PopulationStats{TotalAgents: i64(10), AliveAtEnd: i64(6), TotalDeaths: i64(4), BornInSim: i64(2), MaxGeneration: i64(1)}
	snap.Trade = domain.TradeStats{TotalTrades: i64(12), UniqueTraders: i64(5), FirstTradeTick: i64(37)}
	snap.TickRange = domain.ObservedTicks{FirstTick: i64(1), LastTick: i64(3600)}
	snap.Discoveries = []domain.Discovery{
		{Knowledge: "pottery", Tick: 400, Method: "experiment"},
		{Knowledge: "fire", Tick: 20, Method: "seed"},
	}
	snap.SocialConstructs = []domain.SocialConstruct{
		{Name: "River Clan", Category: "kinship", FoundedAtTick: 150},
		{Name: "Market", Category: "economic", FoundedAtTick: 300, DisbandedAtTick: i64(900)},
	}
	return domain.ComparisonDocument{
		SchemaVersion:     domain.SchemaVersion,
		CreatedAt:         time.Date(2026, 2, 12, 8, 30, 0, 0, time.UTC),
		PredictionsSource: "predictions/2026-02-10.json",
		RunID:             "0f8fad5b-d9cb-469f-a165-70867728950e",
		ModelID:           "anthropic/claude-sonnet-4",
		Outcomes:          snap,
		Comparison: domain.ComparisonPayload{
			Comparisons: []domain.Comparison{
				{QuestionID: "first_trade", Verdict: "confirmed", Evidence: "12 trades, first at tick 37.", SurpriseFactor: domain.Literal("1")},
				{QuestionID: "first_death", Verdict: "divergent", Evidence: "Old age, not hunger.", DivergenceNotes: "Food was plentiful.", SurpriseFactor: domain.Literal("4")},
			},
			OverallSummary:           "Mostly as expected.",
			TopDivergences:           []string{"Deaths came from age."},
			RecapitulationAssessment: "Partial recapitulation.",
		},
	}
}

func TestRenderSectionsInOrder(t *testing.T) {
	out := Render(sampleComparison(), sampleRegistration())
	sections := []string{
		"# Emergence -- Run Comparison Report",
		"**Generated:** 2026-02-12 08:30 UTC",
		"**Predictions file:** `predictions/2026-02-10.json`",
		"**Run ID:** 0f8fad5b-d9cb-469f-a165-70867728950e",
		"**Run status:** completed",
		"## Experiment Configuration",
		"## Simulation Summary",
		"## Discovery Timeline",
		"## Social Constructs",
		"## Prediction vs Outcome Comparison",
		"### Verdict Summary",
		"### Detailed Comparisons",
		"## Overall Assessment",
		"### Most Interesting Divergences",
		"### Recapitulation Assessment",
	}
	pos := 0
	for _, s := range sections {
		idx := strings.Index(out[pos:], s)
		if idx < 0 {
			t.Fatalf("missing or out of order %q in:\n%s", s, out)
		}
		pos += idx + len(s)
	}
}

func TestRenderTablesAndDetails(t *testing.T) {
	out := Render(sampleComparison(), sampleRegistration())
	want := []string{
		"| Agent count | 8 |",
		"| Reproduction | enabled |",
		"| Prediction model | anthropic/claude-sonnet-4 |",
		"| Tick range | 1 - 3600 |",
		"| Total trades | 12 |",
		"| First trade at tick | 37 |",
		"| Social constructs formed | 2 |",
		"| Discoveries made | 2 |",
		"| River Clan | kinship | 150 | -- |",
		"| Market | economic | 300 | 900 |",
		"#### first_trade -- confirmed (surprise: 1/5)",
		"**Prediction:** Trade appears within 200 ticks.",
		"**Evidence:** Old age, not hunger.",
		"**Divergence:** Food was plentiful.",
		"1. Deaths came from age.",
		"Partial recapitulation.",
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Fatalf("expected %q in:\n%s", w, out)
		}
	}
	if strings.Index(out, "| 20 | fire | seed |") > strings.Index(out, "| 400 | pottery | experiment |") {
		t.Fatalf("timeline not ordered by tick:\n%s", out)
	}
}

func TestRenderPlaceholdersForMissingValues(t *testing.T) {
	cmpDoc := sampleComparison()
	cmpDoc.Outcomes.Population = domain.PopulationStats{}
	cmpDoc.Outcomes.Trade = domain.TradeStats{}
	cmpDoc.Outcomes.Run.Status = ""
	out := Render(cmpDoc, sampleRegistration())
	for _, w := range []string{"| Alive at end | ? |", "| Total trades | ? |", "| Unique traders | ? |", "**Run status:** ?"} {
		if !strings.Contains(out, w) {
			t.Fatalf("expected placeholder %q in:\n%s", w, out)
		}
	}
}

func TestRenderEmptyOutcomesKeepsHeaders(t *testing.T) {
	cmpDoc := sampleComparison()
	cmpDoc.Outcomes = domain.EmptyOutcomeSnapshot()
	cmpDoc.Outcomes.Trade.TotalTrades = i64(0)
	cmpDoc.Comparison = domain.ComparisonPayload{}
	out := Render(cmpDoc, sampleRegistration())

	for _, w := range []string{
		"| Name | Category | Founded (tick) | Disbanded (tick) |",
		"| Verdict | Count |",
		"| Total trades | 0 |",
		"| Discoveries made | 0 |",
		"| Social constructs formed | 0 |",
		"(no summary provided)",
		"**Run ID:** 0f8fad5b-d9cb-469f-a165-70867728950e",
	} {
		if !strings.Contains(out, w) {
			t.Fatalf("expected %q in:\n%s", w, out)
		}
	}
	if strings.Contains(out, "## Discovery Timeline") {
		t.Fatalf("timeline rendered without discoveries:\n%s", out)
	}
	if strings.Contains(out, "#### ") {
		t.Fatalf("detail blocks rendered without comparisons:\n%s", out)
	}
}

func TestRenderTruncatesTimeline(t *testing.T) {
	cmpDoc := sampleComparison()
	cmpDoc.Outcomes.Discoveries = nil
	for i := 0; i < 45; i++ {
		cmpDoc.Outcomes.Discoveries = append(cmpDoc.Outcomes.Discoveries, domain.Discovery{
			Knowledge: fmt.Sprintf("item-%02d", i),
			Tick:      int64(i * 10),
			Method:    "experiment",
		})
	}
	out := Render(cmpDoc, sampleRegistration())
	if !strings.Contains(out, "| 290 | item-29 | experiment |") {
		t.Fatalf("expected the 30th discovery in the timeline:\n%s", out)
	}
	if strings.Contains(out, "| item-30 |") {
		t.Fatalf("timeline not truncated at %d rows", TimelineLimit)
	}
	if !strings.Contains(out, "*...and 15 more discoveries.*") {
		t.Fatalf("missing truncation footnote:\n%s", out)
	}
	if !strings.Contains(out, "| Discoveries made | 45 |") {
		t.Fatalf("summary should count every discovery:\n%s", out)
	}
}

func TestTallySortedByVerdict(t *testing.T) {
	comparisons := []domain.Comparison{
		{QuestionID: "a", Verdict: "divergent"},
		{QuestionID: "b", Verdict: "confirmed"},
		{QuestionID: "c", Verdict: "partially_confirmed"},
		{QuestionID: "d", Verdict: "confirmed"},
		{QuestionID: "e", Verdict: "divergent"},
	}
	got := Tally(comparisons)
	want := []VerdictCount{{"confirmed", 2}, {"divergent", 2}, {"partially_confirmed", 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tally mismatch (-want +got):\n%s", diff)
	}

	cmpDoc := sampleComparison()
	cmpDoc.Comparison.Comparisons = comparisons
	out := Render(cmpDoc, sampleRegistration())
	first := strings.Index(out, "| confirmed | 2 |")
	second := strings.Index(out, "| divergent | 2 |")
	third := strings.Index(out, "| partially_confirmed | 1 |")
	if first < 0 || second < first || third < second {
		t.Fatalf("verdict rows missing or unsorted:\n%s", out)
	}
}

func TestRenderUnmatchedAndUnknownVerdicts(t *testing.T) {
	cmpDoc := sampleComparison()
	cmpDoc.Comparison.Comparisons = []domain.Comparison{
		{QuestionID: "ghost", Verdict: "mostly_wrong", Evidence: "n/a", SurpriseFactor: domain.Literal(`"very"`)},
		{QuestionID: "blank", Evidence: "n/a"},
	}
	out := Render(cmpDoc, sampleRegistration())
	for _, w := range []string{
		"#### ghost -- mostly_wrong (surprise: very/5)",
		"#### blank -- unknown (surprise: ?/5)",
		"| unknown | 1 |",
		"| mostly_wrong | 1 |",
	} {
		if !strings.Contains(out, w) {
			t.Fatalf("expected %q in:\n%s", w, out)
		}
	}
	if !strings.Contains(out, "#### ghost -- mostly_wrong (surprise: very/5)\n\n**Prediction:** \n") {
		t.Fatalf("unmatched comparison should render an empty prediction:\n%s", out)
	}
}

func TestRenderDoesNotMutateInputs(t *testing.T) {
	cmpDoc, reg := sampleComparison(), sampleRegistration()
	wantCmp, wantReg := sampleComparison(), sampleRegistration()
	first := Render(cmpDoc, reg)
	if diff := cmp.Diff(wantCmp, cmpDoc); diff != "" {
		t.Fatalf("comparison mutated (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantReg, reg); diff != "" {
		t.Fatalf("registration mutated (-want +got):\n%s", diff)
	}
	if second := Render(cmpDoc, reg); second != first {
		t.Fatalf("render is not deterministic")
	}
}

func TestReportPerformsNoIO(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.SideEffectImportForbidden, "rendering is a pure function")
}
