// Package prompt builds the deterministic prompt texts sent to the inference
// provider. Builders are pure: identical inputs yield byte-identical prompts.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"prereg/pkg/domain"
)

// RegistrationSystem is the system-role text of the registration request.
const RegistrationSystem = "You are a social scientist specializing in multi-agent systems and computational sociology. " +
	"You are making predictions about simulation outcomes for a pre-registration protocol. " +
	"Be specific and falsifiable. Respond only with valid JSON."

const worldDesign = `## World Design

- Agents inhabit a graph of connected locations with varying resources
- Resources are finite and regenerate at fixed rates per location per tick
- All resource movements go through a double-entry ledger (conservation law enforced)
- Agents can only see their current location (fog of war)
- Agents can propose freeform actions beyond a base catalog (gather, build, trade, move, rest, etc.)
- Agents have tiered memory (immediate, short-term, long-term) with compression over time
- Agents have persistent social graphs with trust scores
`

const registrationFormat = `## Response Format

Respond with a JSON array. Each element must have exactly these fields:
- "question_id": the identifier string for the question
- "prediction": your specific prediction (2-4 sentences, concrete and falsifiable)
- "confidence": your confidence level ("low", "medium", "high")
- "expected_tick_range": approximate tick range when you expect this to become observable, as [start, end] or null if not applicable
- "key_indicators": list of 2-3 specific observable indicators that would confirm or refute your prediction

Respond ONLY with the JSON array, no other text.`

// PopulationScale names the social scale of a population for the prompt's
// calibration note.
func PopulationScale(agents int) string {
	switch {
	case agents < 10:
		return "band-level (very small group)"
	case agents < 30:
		return "small village"
	default:
		return "village"
	}
}

// Registration renders the prediction request for an experiment and its
// applicable questions.
func Registration(cfg domain.ExperimentConfig, questions []domain.ResearchQuestion) string {
	var b strings.Builder
	b.WriteString("You are being asked to predict the outcomes of a multi-agent LLM simulation BEFORE it runs. ")
	b.WriteString("This is a pre-registration exercise -- your predictions will be compared against actual outcomes to assess ")
	b.WriteString("how much agent behavior is predictable from LLM training priors versus emergent from persistent interaction.\n\n")

	b.WriteString("## Simulation Parameters\n\n")
	fmt.Fprintf(&b, "- **Agent count:** %d\n", cfg.AgentCount)
	fmt.Fprintf(&b, "- **Total ticks:** %d (~%.1f world years)\n", cfg.TickCount, cfg.WorldYears(cfg.TickCount))
	fmt.Fprintf(&b, "- **Ticks per season:** %d (4 seasons per year)\n", cfg.TicksPerSeason)
	fmt.Fprintf(&b, "- **Agent lifespan:** %d ticks (~%.1f world years)\n", cfg.AgentLifespanTicks, cfg.WorldYears(cfg.AgentLifespanTicks))
	fmt.Fprintf(&b, "- **Personality distribution:** %s (8 dimensions: curiosity, cooperation, aggression, risk tolerance, industriousness, sociability, honesty, loyalty)\n", cfg.PersonalityMode)
	fmt.Fprintf(&b, "- **Knowledge level:** %d (0=blank slate, 1=primitive, 2=ancient, 3=medieval)\n", cfg.KnowledgeLevel)
	fmt.Fprintf(&b, "- **Seed knowledge:** %s\n", seedKnowledge(cfg.SeedKnowledge))
	fmt.Fprintf(&b, "- **Starting resources per agent:** %s\n", wallet(cfg.StartingWallet))
	fmt.Fprintf(&b, "- **Hunger rate:** %d per tick\n", cfg.HungerRate)
	fmt.Fprintf(&b, "- **Reproduction:** %s\n", toggle(cfg.ReproductionEnabled))
	fmt.Fprintf(&b, "- **Day/night cycle:** %s\n\n", toggle(cfg.DayNight))

	b.WriteString(worldDesign)
	b.WriteString("\n## Population Scale Note\n\n")
	fmt.Fprintf(&b, "At %d agents, this is a %s scale simulation. ", cfg.AgentCount, PopulationScale(cfg.AgentCount))
	b.WriteString("Keep your predictions calibrated to what is plausible at this population size.\n\n")

	b.WriteString("## Research Questions\n\n")
	b.WriteString("For each question below, provide a specific, falsifiable prediction about what you expect to happen in this simulation. ")
	b.WriteString("Be concrete -- reference tick ranges, percentages, specific behavioral patterns. ")
	b.WriteString("Do NOT hedge with \"it depends\" -- commit to a prediction even if uncertain.\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "\n%d. [%s] (question_id: %s) %s\n", i+1, q.Category, q.ID, q.Question)
	}
	b.WriteString("\n")
	b.WriteString(registrationFormat)
	return b.String()
}

func seedKnowledge(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// wallet encodes the starting resources with sorted keys.
func wallet(w map[string]int) string {
	if len(w) == 0 {
		return "{}"
	}
	data, err := json.Marshal(w)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func toggle(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
