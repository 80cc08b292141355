package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"prereg/pkg/domain"
)

// ParseComparison decodes the comparison response. It must be one JSON object
// with a "comparisons" list of objects; anything else is malformed. Verdicts
// and surprise factors are kept literally.
func ParseComparison(raw string) (domain.ComparisonPayload, []Advisory, error) {
	body := []byte(stripFences(raw))
	if !json.Valid(body) {
		return domain.ComparisonPayload{}, nil, malformed(raw, "response is not valid JSON", nil)
	}
	if firstByte(body) != '{' {
		return domain.ComparisonPayload{}, nil, malformed(raw, "response is not a JSON object", nil)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return domain.ComparisonPayload{}, nil, malformed(raw, "decode response object", err)
	}
	list, ok := top["comparisons"]
	if !ok || firstByte(list) != '[' {
		return domain.ComparisonPayload{}, nil, malformed(raw, `response has no "comparisons" list`, nil)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return domain.ComparisonPayload{}, nil, malformed(raw, `decode "comparisons" list`, err)
	}

	var advisories []Advisory
	payload := domain.ComparisonPayload{Comparisons: make([]domain.Comparison, 0, len(items))}
	for i, it := range items {
		if firstByte(it) != '{' {
			return domain.ComparisonPayload{}, nil, malformed(raw, fmt.Sprintf("comparison %d is not an object", i+1), nil)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(it, &fields); err != nil {
			return domain.ComparisonPayload{}, nil, malformed(raw, fmt.Sprintf("decode comparison %d", i+1), err)
		}
		c := domain.Comparison{
			QuestionID:      text(fields["question_id"]),
			Verdict:         text(fields["verdict"]),
			Evidence:        text(fields["evidence"]),
			DivergenceNotes: text(fields["divergence_notes"]),
		}
		if sf, ok := fields["surprise_factor"]; ok && firstByte(sf) != 'n' {
			c.SurpriseFactor = domain.CanonicalLiteral(sf)
		}
		if !domain.KnownVerdict(c.Verdict) {
			advisories = append(advisories, Advisory{c.QuestionID, fmt.Sprintf("verdict %q is not a recognised verdict; kept as given", c.Verdict)})
		}
		if !surpriseInRange(c.SurpriseFactor) {
			advisories = append(advisories, Advisory{c.QuestionID, fmt.Sprintf("surprise_factor %s is not an integer from 1 to 5; kept as given", c.SurpriseFactor)})
		}
		payload.Comparisons = append(payload.Comparisons, c)
	}

	payload.OverallSummary = text(top["overall_summary"])
	payload.RecapitulationAssessment = text(top["recapitulation_assessment"])
	divergences, ok := textList(top["most_interesting_divergences"])
	if !ok {
		advisories = append(advisories, Advisory{Message: "most_interesting_divergences is not a list; dropped"})
	}
	payload.TopDivergences = divergences
	for _, key := range []string{"overall_summary", "most_interesting_divergences", "recapitulation_assessment"} {
		if _, ok := top[key]; !ok {
			advisories = append(advisories, Advisory{Message: fmt.Sprintf("response has no %q", key)})
		}
	}
	return payload, advisories, nil
}

func surpriseInRange(l domain.Literal) bool {
	if len(l) == 0 {
		return false
	}
	n, err := strconv.Atoi(string(l))
	return err == nil && n >= 1 && n <= 5
}

// ComparisonInput carries everything the comparison document records besides
// the model's payload.
type ComparisonInput struct {
	CreatedAt         time.Time
	PredictionsSource string
	RunID             string
	ModelID           string
	Registration      domain.RegistrationDocument
	Outcomes          domain.OutcomeSnapshot
}

// AssembleComparison parses the model's response and builds the comparison
// document around the full outcome snapshot. Comparisons naming a question
// without a registered prediction are kept and reported.
func AssembleComparison(in ComparisonInput, raw string) (domain.ComparisonDocument, []Advisory, error) {
	payload, advisories, err := ParseComparison(raw)
	if err != nil {
		return domain.ComparisonDocument{}, nil, err
	}
	for _, c := range payload.Comparisons {
		if _, ok := in.Registration.PredictionFor(c.QuestionID); !ok {
			advisories = append(advisories, Advisory{c.QuestionID, "no registered prediction for this comparison"})
		}
	}
	doc := domain.ComparisonDocument{
		SchemaVersion:     domain.SchemaVersion,
		CreatedAt:         in.CreatedAt.UTC(),
		PredictionsSource: in.PredictionsSource,
		RunID:             in.RunID,
		ModelID:           in.ModelID,
		Outcomes:          in.Outcomes,
		Comparison:        payload,
	}
	return doc, advisories, nil
}
