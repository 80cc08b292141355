package domain

// OutcomeSnapshot is the point-in-time aggregation of a finished run used as
// ground truth for comparison. Sub-objects are never nil after extraction:
// a topic without data is an empty object or an empty list.
//
// Optional scalars are pointers so that "no data" stays distinguishable from
// a genuine zero when the snapshot is archived and rendered.
type OutcomeSnapshot struct {
	Run               RunInfo           `json:"run"`
	Population        PopulationStats   `json:"population"`
	DeathCauses       []DeathCause      `json:"death_causes"`
	Trade             TradeStats        `json:"trade"`
	Discoveries       []Discovery       `json:"discoveries"`
	SocialConstructs  []SocialConstruct `json:"social_constructs"`
	Deception         DeceptionStats    `json:"deception"`
	FinalWorldState   WorldReading      `json:"final_world_state"`
	Conflict          ConflictStats     `json:"conflict"`
	LedgerSummary     []LedgerBucket    `json:"ledger_summary"`
	EventDistribution []EventBucket     `json:"event_distribution"`
	TickRange         ObservedTicks     `json:"tick_range"`
}

// RunInfo identifies the simulation run.
type RunInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	MaxTicks *int64 `json:"max_ticks,omitempty"`
}

// PopulationStats summarises agent counts, lifespans, and generation depth.
type PopulationStats struct {
	TotalAgents   *int64   `json:"total_agents,omitempty"`
	AliveAtEnd    *int64   `json:"alive_at_end,omitempty"`
	TotalDeaths   *int64   `json:"total_deaths,omitempty"`
	BornInSim     *int64   `json:"born_in_sim,omitempty"`
	SeedAgents    *int64   `json:"seed_agents,omitempty"`
	MaxGeneration *int64   `json:"max_generation,omitempty"`
	AvgLifespan   *float64 `json:"avg_lifespan,omitempty"`
}

// DeathCause is one bucket of the death-cause histogram.
type DeathCause struct {
	Cause string `json:"cause_of_death"`
	Count int64  `json:"count"`
}

// TradeStats summarises trade events.
type TradeStats struct {
	TotalTrades    *int64 `json:"total_trades,omitempty"`
	UniqueTraders  *int64 `json:"unique_traders,omitempty"`
	FirstTradeTick *int64 `json:"first_trade_tick,omitempty"`
	LastTradeTick  *int64 `json:"last_trade_tick,omitempty"`
}

// Discovery is one knowledge item acquired during the run.
type Discovery struct {
	Knowledge string  `json:"knowledge"`
	Tick      int64   `json:"tick"`
	Method    string  `json:"method"`
	AgentID   *string `json:"agent_id"`
}

// SocialConstruct is one entry of the social-construct registry.
type SocialConstruct struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	FoundedAtTick   int64  `json:"founded_at_tick"`
	DisbandedAtTick *int64 `json:"disbanded_at_tick,omitempty"`
}

// DeceptionStats summarises recorded lies.
type DeceptionStats struct {
	TotalLies       *int64 `json:"total_lies,omitempty"`
	DiscoveredLies  *int64 `json:"discovered_lies,omitempty"`
	UniqueDeceivers *int64 `json:"unique_deceivers,omitempty"`
}

// WorldReading is the latest world snapshot's resource totals.
type WorldReading struct {
	Tick           *int64  `json:"tick,omitempty"`
	TotalResources Literal `json:"total_resources,omitempty"`
}

// ConflictStats counts conflict-related events by category.
type ConflictStats struct {
	CombatEvents    *int64 `json:"combat_events,omitempty"`
	TheftEvents     *int64 `json:"theft_events,omitempty"`
	DiplomacyEvents *int64 `json:"diplomacy_events,omitempty"`
}

// LedgerBucket is one entry type of the ledger histogram.
type LedgerBucket struct {
	EntryType     string  `json:"entry_type"`
	Count         int64   `json:"count"`
	TotalQuantity float64 `json:"total_quantity"`
}

// EventBucket is one event type of the event histogram.
type EventBucket struct {
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

// ObservedTicks is the global tick range seen in the event log.
type ObservedTicks struct {
	FirstTick *int64 `json:"first_tick,omitempty"`
	LastTick  *int64 `json:"last_tick,omitempty"`
}

// EmptyOutcomeSnapshot returns a snapshot whose list topics are empty rather
// than nil, so that it serialises without nulls.
func EmptyOutcomeSnapshot() OutcomeSnapshot {
	return OutcomeSnapshot{
		DeathCauses:       []DeathCause{},
		Discoveries:       []Discovery{},
		SocialConstructs:  []SocialConstruct{},
		LedgerSummary:     []LedgerBucket{},
		EventDistribution: []EventBucket{},
	}
}
