// Package catalog holds the versioned research-question registry and the
// population applicability filter.
package catalog

import (
	"fmt"

	"prereg/pkg/domain"
)

// Catalog is an immutable, versioned list of research questions. Values are
// passed explicitly to the registration pipeline so catalog revisions can be
// exercised in tests like any other input.
type Catalog struct {
	Version   string
	Questions []domain.ResearchQuestion
}

// New copies questions into a catalog and validates it.
func New(version string, questions []domain.ResearchQuestion) (Catalog, error) {
	c := Catalog{Version: version, Questions: append([]domain.ResearchQuestion(nil), questions...)}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate rejects empty or duplicated question identifiers.
func (c Catalog) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("catalog: version required")
	}
	seen := make(map[string]struct{}, len(c.Questions))
	for i, q := range c.Questions {
		if q.ID == "" {
			return fmt.Errorf("catalog %s: question %d has empty id", c.Version, i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("catalog %s: duplicate question id %q", c.Version, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// Len returns the number of questions in the catalog.
func (c Catalog) Len() int { return len(c.Questions) }

// Applicable returns, in catalog order, the questions whose minimum population
// is at most agents, together with how many questions were excluded. An empty
// selection yields domain.ErrNoApplicableQuestions.
func (c Catalog) Applicable(agents int) ([]domain.ResearchQuestion, int, error) {
	out := make([]domain.ResearchQuestion, 0, len(c.Questions))
	for _, q := range c.Questions {
		if q.ApplicableTo(agents) {
			out = append(out, q)
		}
	}
	excluded := len(c.Questions) - len(out)
	if len(out) == 0 {
		return nil, excluded, fmt.Errorf("%w: catalog %s at %d agents", domain.ErrNoApplicableQuestions, c.Version, agents)
	}
	return out, excluded, nil
}
