package catalog

import "prereg/pkg/domain"

// VersionV1 identifies the first published question set.
const VersionV1 = "v1"

// Category labels used by the v1 catalog.
const (
	CategorySocial     = "Social Organization"
	CategoryEconomic   = "Economic Dynamics"
	CategoryCultural   = "Cultural & Social Practices"
	CategoryDisruption = "Response to Disruption"
	CategoryMeta       = "Meta"
)

// V1 returns a fresh copy of the v1 catalog. Identifiers are join keys for
// comparisons and must stay byte-identical across releases.
func V1() Catalog {
	return Catalog{Version: VersionV1, Questions: []domain.ResearchQuestion{
		{
			ID:        "social_coordination",
			Category:  CategorySocial,
			MinAgents: 5,
			Question:  "How do coordination patterns form and restructure? When agents need to solve collective problems (resource scarcity, defense), what organizational structures arise? How stable are they?",
		},
		{
			ID:        "social_stratification",
			Category:  CategorySocial,
			MinAgents: 5,
			Question:  "How does social stratification develop? When agents differ in personality, skill, and accumulated resources, how does hierarchy form? Is it contested?",
		},
		{
			ID:        "leadership",
			Category:  CategorySocial,
			MinAgents: 5,
			Question:  "How do agents handle leadership? Does authority centralize around individuals? Is it stable or contested? What triggers leadership transitions?",
		},
		{
			ID:        "exchange_networks",
			Category:  CategoryEconomic,
			MinAgents: 5,
			Question:  "How do exchange networks form and restructure? Starting from no trade infrastructure, how do agents discover exchange? How do trade relationships stabilize or shift?",
		},
		{
			ID:        "resource_inequality",
			Category:  CategoryEconomic,
			MinAgents: 5,
			Question:  "How does resource inequality develop over time? Does wealth concentrate? At what rate? Does it self-correct or compound?",
		},
		{
			ID:        "scarcity_response",
			Category:  CategoryEconomic,
			MinAgents: 5,
			Question:  "How do agents respond to scarcity? Cooperation, hoarding, conflict, migration, innovation? How do responses change as scarcity intensifies?",
		},
		{
			ID:        "shared_practices",
			Category:  CategoryCultural,
			MinAgents: 10,
			Question:  "How do shared practices and norms form? Do agents develop conventions, rituals, or behavioral norms? How do they spread?",
		},
		{
			ID:        "bonding_structures",
			Category:  CategoryCultural,
			MinAgents: 10,
			Question:  "How do bonding and family structures develop? Monogamy, communal arrangements, or something else? How do reproduction decisions interact with resource availability?",
		},
		{
			ID:        "deception",
			Category:  CategoryCultural,
			MinAgents: 10,
			Question:  "How does deception operate in agent societies? When do agents lie? To whom? How do other agents respond when deception is discovered?",
		},
		{
			ID:        "disruption_response",
			Category:  CategoryDisruption,
			MinAgents: 10,
			Question:  "How do agent societies respond to exogenous shocks? Resource depletion, environmental change, population loss. Does the social structure adapt, collapse, or reorganize?",
		},
		{
			ID:        "personality_effects",
			Category:  CategoryDisruption,
			MinAgents: 10,
			Question:  "How do different personality distributions produce different outcomes? Does initial personality distribution determine long-term social structure, or do the dynamics converge?",
		},
		{
			ID:        "convergence_divergence",
			Category:  CategoryMeta,
			MinAgents: 5,
			Question:  "Where do agent trajectories converge with human historical patterns, and where do they diverge?",
		},
		{
			ID:        "automation_threshold",
			Category:  CategoryMeta,
			MinAgents: 5,
			Question:  "What percentage of decisions can be automated without losing behavioral complexity?",
		},
		{
			ID:        "novel_behaviors",
			Category:  CategoryMeta,
			MinAgents: 5,
			Question:  "Do agents produce genuinely novel behaviors that were not anticipated by the system designers?",
		},
		{
			ID:        "feasibility",
			Category:  CategoryMeta,
			MinAgents: 5,
			Question:  "Can a 24-hour bounded run at the given agent count produce observable social dynamics worth analyzing?",
		},
	}}
}
