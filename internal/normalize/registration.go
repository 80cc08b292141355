package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"prereg/pkg/domain"
)

// ParsePredictions normalizes any tolerated response shape into predictions,
// in response order. Field-level problems become advisories.
func ParsePredictions(raw string) ([]domain.Prediction, []Advisory, error) {
	shape, err := classifyPredictions(raw)
	if err != nil {
		return nil, nil, err
	}
	var entries []member
	switch s := shape.(type) {
	case bareList:
		entries = unkeyed(s.items)
	case wrappedList:
		entries = unkeyed(s.items)
	case keyedObject:
		entries = s.members
	default:
		return nil, nil, malformed(raw, fmt.Sprintf("unsupported shape %s", shape.shapeName()), nil)
	}

	preds := make([]domain.Prediction, 0, len(entries))
	var advisories []Advisory
	for i, e := range entries {
		if firstByte(e.value) != '{' {
			return nil, nil, malformed(raw, fmt.Sprintf("prediction %d is not an object", i+1), nil)
		}
		p, adv, err := decodePrediction(e.value, e.key)
		if err != nil {
			return nil, nil, malformed(raw, fmt.Sprintf("decode prediction %d", i+1), err)
		}
		preds = append(preds, p)
		advisories = append(advisories, adv...)
	}
	return preds, advisories, nil
}

func unkeyed(items []json.RawMessage) []member {
	out := make([]member, len(items))
	for i, it := range items {
		out[i] = member{value: it}
	}
	return out
}

func decodePrediction(data json.RawMessage, key string) (domain.Prediction, []Advisory, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.Prediction{}, nil, err
	}
	p := domain.Prediction{
		QuestionID: text(fields["question_id"]),
		Prediction: text(fields["prediction"]),
		Confidence: text(fields["confidence"]),
	}
	if p.QuestionID == "" {
		p.QuestionID = key
	}
	var advisories []Advisory
	if !domain.KnownConfidence(p.Confidence) {
		advisories = append(advisories, Advisory{p.QuestionID, fmt.Sprintf("confidence %q is not low, medium, or high; kept as given", p.Confidence)})
	}
	if rng, ok := fields["expected_tick_range"]; ok && firstByte(rng) != 'n' {
		var r domain.TickRange
		switch err := json.Unmarshal(rng, &r); {
		case err != nil:
			advisories = append(advisories, Advisory{p.QuestionID, fmt.Sprintf("expected_tick_range %s is not a [start, end] pair; dropped", rng)})
		case !r.Valid():
			advisories = append(advisories, Advisory{p.QuestionID, fmt.Sprintf("expected_tick_range %s starts after it ends; dropped", r)})
		default:
			p.ExpectedTickRange = &r
		}
	}
	indicators, ok := textList(fields["key_indicators"])
	if !ok {
		advisories = append(advisories, Advisory{p.QuestionID, "key_indicators is not a list; dropped"})
	}
	p.KeyIndicators = indicators
	return p, advisories, nil
}

// RegistrationInput carries everything the registration document records
// besides the model's predictions.
type RegistrationInput struct {
	CreatedAt      time.Time
	ModelID        string
	CatalogVersion string
	Config         domain.ExperimentConfig
	Questions      []domain.ResearchQuestion
}

// AssembleRegistration parses the model's response and builds the
// registration document. Predictions for questions outside the applicable set
// are dropped, duplicates keep their first occurrence, and uncovered questions
// are reported; all of these are advisories.
func AssembleRegistration(in RegistrationInput, raw string) (domain.RegistrationDocument, []Advisory, error) {
	parsed, advisories, err := ParsePredictions(raw)
	if err != nil {
		return domain.RegistrationDocument{}, nil, err
	}
	applicable := make(map[string]bool, len(in.Questions))
	for _, q := range in.Questions {
		applicable[q.ID] = true
	}
	seen := make(map[string]bool, len(parsed))
	preds := make([]domain.Prediction, 0, len(parsed))
	for _, p := range parsed {
		switch {
		case !applicable[p.QuestionID]:
			advisories = append(advisories, Advisory{p.QuestionID, "not an applicable question; prediction dropped"})
		case seen[p.QuestionID]:
			advisories = append(advisories, Advisory{p.QuestionID, "duplicate prediction; first one kept"})
		default:
			seen[p.QuestionID] = true
			preds = append(preds, p)
		}
	}
	for _, q := range in.Questions {
		if !seen[q.ID] {
			advisories = append(advisories, Advisory{q.ID, "no prediction returned"})
		}
	}
	doc := domain.RegistrationDocument{
		SchemaVersion:       domain.SchemaVersion,
		CreatedAt:           in.CreatedAt.UTC(),
		ModelID:             in.ModelID,
		CatalogVersion:      in.CatalogVersion,
		ExperimentConfig:    in.Config,
		ApplicableQuestions: append([]domain.ResearchQuestion(nil), in.Questions...),
		Predictions:         preds,
	}
	return doc, advisories, nil
}
