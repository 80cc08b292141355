package domain

import "time"

// ExperimentConfig captures every configuration parameter that the registration
// prompt exposes to the predicting model.
type ExperimentConfig struct {
	AgentCount          int            `json:"agent_count"`
	TickCount           int            `json:"tick_count"`
	PersonalityMode     string         `json:"personality_mode"`
	KnowledgeLevel      int            `json:"knowledge_level"`
	SeedKnowledge       []string       `json:"seed_knowledge"`
	StartingWallet      map[string]int `json:"starting_wallet"`
	HungerRate          int            `json:"hunger_rate"`
	ReproductionEnabled bool           `json:"reproduction_enabled"`
	DayNight            bool           `json:"day_night"`
	TicksPerSeason      int            `json:"ticks_per_season"`
	AgentLifespanTicks  int            `json:"agent_lifespan_ticks"`
	ConfigFile          string         `json:"config_file,omitempty"`
}

// TicksPerYear is four seasons' worth of ticks.
func (c ExperimentConfig) TicksPerYear() int { return c.TicksPerSeason * 4 }

// WorldYears converts ticks to world years; zero when the season length is unset.
func (c ExperimentConfig) WorldYears(ticks int) float64 {
	perYear := c.TicksPerYear()
	if perYear <= 0 {
		return 0
	}
	return float64(ticks) / float64(perYear)
}

// RegistrationDocument is the artifact written before a run. It is immutable
// apart from the optional RunID back-reference.
type RegistrationDocument struct {
	SchemaVersion       int                `json:"schema_version"`
	CreatedAt           time.Time          `json:"timestamp"`
	ModelID             string             `json:"model"`
	CatalogVersion      string             `json:"catalog_version,omitempty"`
	ExperimentConfig    ExperimentConfig   `json:"experiment_config"`
	ApplicableQuestions []ResearchQuestion `json:"research_questions"`
	Predictions         []Prediction       `json:"predictions"`
	RunID               string             `json:"run_id,omitempty"`
}

// PredictionFor returns the first prediction registered for the question.
func (d RegistrationDocument) PredictionFor(questionID string) (Prediction, bool) {
	for _, p := range d.Predictions {
		if p.QuestionID == questionID {
			return p, true
		}
	}
	return Prediction{}, false
}
