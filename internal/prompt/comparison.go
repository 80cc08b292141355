package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"prereg/pkg/domain"
)

// ComparisonSystem is the system-role text of the comparison request.
const ComparisonSystem = "You are a social scientist evaluating simulation results against pre-registered predictions. " +
	"Be rigorous and specific. Reference actual data in your assessments. Respond only with valid JSON."

const comparisonInstructions = `## Instructions

For each prediction, provide:
1. **verdict**: One of "confirmed", "partially_confirmed", "divergent", "insufficient_data"
2. **evidence**: Specific data from the outcomes that supports your verdict. You MUST reference actual numbers from the outcomes above; a verdict without concrete numeric evidence is not acceptable.
3. **divergence_notes**: If divergent or partially confirmed, explain specifically HOW the outcome differed from prediction. This is the most important field -- divergences are the scientifically interesting findings.
4. **surprise_factor**: Rate 1-5 how surprising the outcome was relative to the prediction (1 = exactly as predicted, 5 = completely unexpected)

Also provide:
5. **overall_summary**: A 3-5 sentence summary of the most significant findings across all questions
6. **most_interesting_divergences**: List the top 3 most scientifically interesting divergences
7. **recapitulation_assessment**: Your assessment of how much agent behavior appears to be training-data recapitulation vs genuine emergent dynamics

Respond ONLY with a JSON object containing:
- "comparisons": array of objects with fields question_id, verdict, evidence, divergence_notes, surprise_factor
- "overall_summary": string
- "most_interesting_divergences": array of strings
- "recapitulation_assessment": string`

// Comparison renders the evaluation request for the registered predictions,
// in the order given, against the observed outcome snapshot.
func Comparison(predictions []domain.Prediction, outcomes domain.OutcomeSnapshot) (string, error) {
	snapshot, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode outcome snapshot: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are evaluating a pre-registered prediction set against actual simulation outcomes. ")
	b.WriteString("Your job is to assess each prediction and classify it as CONFIRMED, PARTIALLY CONFIRMED, DIVERGENT, or INSUFFICIENT DATA.\n\n")
	b.WriteString("## Pre-Registered Predictions\n")
	for _, p := range predictions {
		fmt.Fprintf(&b, "\n### %s\n", orDefault(p.QuestionID, "unknown"))
		fmt.Fprintf(&b, "**Prediction (%s confidence):** %s\n", orDefault(p.Confidence, "unknown"), orDefault(p.Prediction, "(no prediction)"))
		if p.ExpectedTickRange != nil {
			fmt.Fprintf(&b, "**Expected tick range:** %s\n", p.ExpectedTickRange)
		}
		if len(p.KeyIndicators) > 0 {
			fmt.Fprintf(&b, "**Key indicators:** %s\n", strings.Join(p.KeyIndicators, ", "))
		}
	}
	b.WriteString("\n## Actual Simulation Outcomes\n\n```json\n")
	b.Write(snapshot)
	b.WriteString("\n```\n\n")
	b.WriteString(comparisonInstructions)
	return b.String(), nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
