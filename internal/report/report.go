// Package report renders a comparison document as a Markdown divergence
// report. Rendering is a pure function of its inputs.
package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"prereg/internal/format"
	"prereg/pkg/domain"
)

const (
	// TimelineLimit caps the discovery timeline table.
	TimelineLimit = 30

	missing      = "?"
	notDisbanded = "--"
	noText       = "(none provided)"
	noVerdict    = "unknown"
)

// Render produces the report for a comparison and the registration it was
// made against. Absent values render as placeholders so every table keeps
// its shape; neither argument is modified.
func Render(cmp domain.ComparisonDocument, reg domain.RegistrationDocument) string {
	var b strings.Builder
	writeHeader(&b, cmp)
	writeConfiguration(&b, reg)
	writeSummary(&b, cmp.Outcomes)
	writeTimeline(&b, cmp.Outcomes.Discoveries)
	writeConstructs(&b, cmp.Outcomes.SocialConstructs)
	writeComparisons(&b, cmp.Comparison.Comparisons, reg)
	writeAssessment(&b, cmp.Comparison)
	return b.String()
}

func writeHeader(b *strings.Builder, cmp domain.ComparisonDocument) {
	generated := missing
	if !cmp.CreatedAt.IsZero() {
		generated = cmp.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")
	}
	runID := cmp.Outcomes.Run.ID
	if runID == "" {
		runID = cmp.RunID
	}
	b.WriteString("# Emergence -- Run Comparison Report\n\n")
	fmt.Fprintf(b, "**Generated:** %s\n", generated)
	fmt.Fprintf(b, "**Predictions file:** `%s`\n", orMissing(cmp.PredictionsSource))
	fmt.Fprintf(b, "**Run ID:** %s\n", orMissing(runID))
	fmt.Fprintf(b, "**Run status:** %s\n\n", orMissing(cmp.Outcomes.Run.Status))
}

func writeConfiguration(b *strings.Builder, reg domain.RegistrationDocument) {
	cfg := reg.ExperimentConfig
	reproduction := "disabled"
	if cfg.ReproductionEnabled {
		reproduction = "enabled"
	}
	tb := format.NewTable(format.Markdown)
	tb.Header("Parameter", "Value")
	tb.Row("Agent count", cfg.AgentCount)
	tb.Row("Tick count", cfg.TickCount)
	tb.Row("Personality mode", orMissing(cfg.PersonalityMode))
	tb.Row("Knowledge level", cfg.KnowledgeLevel)
	tb.Row("Reproduction", reproduction)
	tb.Row("Prediction model", orMissing(reg.ModelID))
	section(b, "## Experiment Configuration", tb)
}

func writeSummary(b *strings.Builder, o domain.OutcomeSnapshot) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Metric", "Value")
	tb.Row("Tick range", count(o.TickRange.FirstTick)+" - "+count(o.TickRange.LastTick))
	tb.Row("Total agents created", count(o.Population.TotalAgents))
	tb.Row("Alive at end", count(o.Population.AliveAtEnd))
	tb.Row("Total deaths", count(o.Population.TotalDeaths))
	tb.Row("Born in simulation", count(o.Population.BornInSim))
	tb.Row("Max generation", count(o.Population.MaxGeneration))
	tb.Row("Total trades", count(o.Trade.TotalTrades))
	tb.Row("First trade at tick", count(o.Trade.FirstTradeTick))
	tb.Row("Unique traders", count(o.Trade.UniqueTraders))
	tb.Row("Combat events", count(o.Conflict.CombatEvents))
	tb.Row("Theft events", count(o.Conflict.TheftEvents))
	tb.Row("Diplomacy events", count(o.Conflict.DiplomacyEvents))
	tb.Row("Total lies told", count(o.Deception.TotalLies))
	tb.Row("Lies discovered", count(o.Deception.DiscoveredLies))
	tb.Row("Unique deceivers", count(o.Deception.UniqueDeceivers))
	tb.Row("Social constructs formed", len(o.SocialConstructs))
	tb.Row("Discoveries made", len(o.Discoveries))
	section(b, "## Simulation Summary", tb)
}

func writeTimeline(b *strings.Builder, discoveries []domain.Discovery) {
	if len(discoveries) == 0 {
		return
	}
	ordered := slices.Clone(discoveries)
	slices.SortStableFunc(ordered, func(x, y domain.Discovery) int {
		switch {
		case x.Tick < y.Tick:
			return -1
		case x.Tick > y.Tick:
			return 1
		}
		return 0
	})
	shown := ordered
	if len(shown) > TimelineLimit {
		shown = shown[:TimelineLimit]
	}
	tb := format.NewTable(format.Markdown)
	tb.Header("Tick", "Knowledge", "Method")
	for _, d := range shown {
		tb.Row(d.Tick, orMissing(d.Knowledge), orMissing(d.Method))
	}
	b.WriteString("## Discovery Timeline\n\n")
	b.WriteString(tb.String())
	b.WriteString("\n")
	if rest := len(ordered) - len(shown); rest > 0 {
		fmt.Fprintf(b, "\n*...and %d more discoveries.*\n", rest)
	}
	b.WriteString("\n")
}

func writeConstructs(b *strings.Builder, constructs []domain.SocialConstruct) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Name", "Category", "Founded (tick)", "Disbanded (tick)")
	for _, c := range constructs {
		disbanded := notDisbanded
		if c.DisbandedAtTick != nil {
			disbanded = strconv.FormatInt(*c.DisbandedAtTick, 10)
		}
		tb.Row(orMissing(c.Name), orMissing(c.Category), c.FoundedAtTick, disbanded)
	}
	section(b, "## Social Constructs", tb)
}

// Tally counts comparisons per literal verdict, sorted by verdict name. An
// empty verdict is counted as "unknown".
func Tally(comparisons []domain.Comparison) []VerdictCount {
	counts := map[string]int{}
	for _, c := range comparisons {
		counts[verdictOf(c)]++
	}
	out := make([]VerdictCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, VerdictCount{Verdict: v, Count: n})
	}
	slices.SortFunc(out, func(x, y VerdictCount) int { return strings.Compare(x.Verdict, y.Verdict) })
	return out
}

// VerdictCount is one row of the verdict tally.
type VerdictCount struct {
	Verdict string
	Count   int
}

func writeComparisons(b *strings.Builder, comparisons []domain.Comparison, reg domain.RegistrationDocument) {
	b.WriteString("## Prediction vs Outcome Comparison\n\n")
	tb := format.NewTable(format.Markdown)
	tb.Header("Verdict", "Count")
	for _, vc := range Tally(comparisons) {
		tb.Row(vc.Verdict, vc.Count)
	}
	section(b, "### Verdict Summary", tb)

	b.WriteString("### Detailed Comparisons\n\n")
	for _, c := range comparisons {
		surprise := c.SurpriseFactor.String()
		if surprise == "" {
			surprise = missing
		}
		var original string
		if p, ok := reg.PredictionFor(c.QuestionID); ok {
			original = p.Prediction
		}
		fmt.Fprintf(b, "#### %s -- %s (surprise: %s/5)\n\n", orMissing(c.QuestionID), verdictOf(c), surprise)
		fmt.Fprintf(b, "**Prediction:** %s\n\n", original)
		fmt.Fprintf(b, "**Evidence:** %s\n\n", c.Evidence)
		if c.DivergenceNotes != "" {
			fmt.Fprintf(b, "**Divergence:** %s\n\n", c.DivergenceNotes)
		}
		b.WriteString("---\n\n")
	}
}

func writeAssessment(b *strings.Builder, p domain.ComparisonPayload) {
	b.WriteString("## Overall Assessment\n\n")
	b.WriteString(orText(p.OverallSummary))
	b.WriteString("\n\n### Most Interesting Divergences\n\n")
	if len(p.TopDivergences) == 0 {
		b.WriteString(noText + "\n")
	}
	for i, d := range p.TopDivergences {
		fmt.Fprintf(b, "%d. %s\n", i+1, format.OneLine(d))
	}
	b.WriteString("\n### Recapitulation Assessment\n\n")
	b.WriteString(orText(p.RecapitulationAssessment))
	b.WriteString("\n\n---\n\n*Report generated by `prereg compare`.*\n")
}

func section(b *strings.Builder, heading string, tb format.TableBuilder) {
	b.WriteString(heading)
	b.WriteString("\n\n")
	b.WriteString(tb.String())
	b.WriteString("\n\n")
}

func verdictOf(c domain.Comparison) string {
	if c.Verdict == "" {
		return noVerdict
	}
	return c.Verdict
}

func count(p *int64) string {
	if p == nil {
		return missing
	}
	return strconv.FormatInt(*p, 10)
}

func orMissing(s string) string {
	if s == "" {
		return missing
	}
	return s
}

func orText(s string) string {
	if strings.TrimSpace(s) == "" {
		return noText
	}
	return s
}
