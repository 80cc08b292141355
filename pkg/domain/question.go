// Package domain defines the documents, value types, and error taxonomy of the
// pre-registration protocol: research questions, predictions, outcome
// snapshots, and verdict comparisons.
package domain

// SchemaVersion is the version stamped on every persisted registration and
// comparison document.
const SchemaVersion = 1

// ResearchQuestion is a single entry of the versioned question catalog. The ID is
// the join key between predictions and comparisons and must never change once
// a catalog version is published.
type ResearchQuestion struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	MinAgents int    `json:"min_agents"`
	Question  string `json:"question"`
}

// ApplicableTo reports whether the question can be asked of a population of n agents.
func (q ResearchQuestion) ApplicableTo(n int) bool {
	return q.MinAgents <= n
}
