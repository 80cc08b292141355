package domain

import (
	"encoding/json"
	"fmt"
)

// Confidence levels the registration prompt asks for. The assembler stores
// whatever the model returned; these values are only used for advisories.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// KnownConfidence reports whether c is one of the three requested levels.
func KnownConfidence(c string) bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// TickRange is an inclusive window of simulation ticks. It is encoded as a
// two-element JSON array [start, end].
type TickRange struct {
	Start int64
	End   int64
}

// Valid reports whether the range is ordered.
func (r TickRange) Valid() bool { return r.Start <= r.End }

func (r TickRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// MarshalJSON encodes the range as [start, end].
func (r TickRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{r.Start, r.End})
}

// UnmarshalJSON accepts a two-element numeric array. Fractional bounds are
// truncated toward zero.
func (r *TickRange) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("tick range: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("tick range: want 2 bounds, got %d", len(pair))
	}
	r.Start, r.End = int64(pair[0]), int64(pair[1])
	return nil
}

// Prediction is one falsifiable forecast produced during registration.
type Prediction struct {
	QuestionID        string     `json:"question_id"`
	Prediction        string     `json:"prediction"`
	Confidence        string     `json:"confidence"`
	ExpectedTickRange *TickRange `json:"expected_tick_range"`
	KeyIndicators     []string   `json:"key_indicators"`
}
