package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Verdicts the comparison prompt asks for. Comparisons store the verdict string
// the model actually returned, which may be outside this set.
const (
	VerdictConfirmed          = "confirmed"
	VerdictPartiallyConfirmed = "partially_confirmed"
	VerdictDivergent          = "divergent"
	VerdictInsufficientData   = "insufficient_data"
)

// KnownVerdict reports whether v is one of the four requested verdicts.
func KnownVerdict(v string) bool {
	switch v {
	case VerdictConfirmed, VerdictPartiallyConfirmed, VerdictDivergent, VerdictInsufficientData:
		return true
	}
	return false
}

// Literal is a JSON value kept byte-for-byte as the model produced it.
type Literal json.RawMessage

// MarshalJSON emits the stored value, or null when nothing was stored.
func (l Literal) MarshalJSON() ([]byte, error) {
	if len(l) == 0 {
		return []byte("null"), nil
	}
	return []byte(l), nil
}

// UnmarshalJSON stores the canonical form of data. JSON null leaves the
// literal empty.
func (l *Literal) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	*l = CanonicalLiteral(data)
	return nil
}

// CanonicalLiteral copies raw into the form encoding/json writes it back
// out in: compact, with HTML-sensitive characters escaped. Text that is not
// valid JSON is copied unchanged.
func CanonicalLiteral(raw []byte) Literal {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return Literal(append([]byte(nil), raw...))
	}
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, compact.Bytes())
	return Literal(escaped.Bytes())
}

// String renders the literal for humans: strings lose their quotes, anything
// else is shown as raw JSON text, and an empty literal is "".
func (l Literal) String() string {
	if len(l) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(l, &s); err == nil {
		return s
	}
	return string(l)
}

// Comparison is the model's verdict on a single prediction.
type Comparison struct {
	QuestionID      string  `json:"question_id"`
	Verdict         string  `json:"verdict"`
	Evidence        string  `json:"evidence"`
	DivergenceNotes string  `json:"divergence_notes,omitempty"`
	SurpriseFactor  Literal `json:"surprise_factor,omitempty"`
}

// ComparisonPayload is the normalized model response of the comparison phase.
type ComparisonPayload struct {
	Comparisons              []Comparison `json:"comparisons"`
	OverallSummary           string       `json:"overall_summary"`
	TopDivergences           []string     `json:"most_interesting_divergences"`
	RecapitulationAssessment string       `json:"recapitulation_assessment"`
}

// ComparisonDocument is the terminal artifact of a comparison invocation. It
// embeds the full outcome snapshot so the verdicts can be audited later.
type ComparisonDocument struct {
	SchemaVersion     int               `json:"schema_version"`
	CreatedAt         time.Time         `json:"timestamp"`
	PredictionsSource string            `json:"predictions_file"`
	RunID             string            `json:"run_id"`
	ModelID           string            `json:"model"`
	Outcomes          OutcomeSnapshot   `json:"outcomes"`
	Comparison        ComparisonPayload `json:"comparison"`
}
