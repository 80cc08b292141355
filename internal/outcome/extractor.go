// Package outcome extracts the canonical outcome snapshot of a finished
// simulation run from its persisted state. Extraction only reads.
package outcome

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prereg/internal/logging"
	"prereg/internal/storage"
	"prereg/pkg/domain"
)

// Extractor runs one aggregate query per snapshot topic.
type Extractor struct {
	db      *sql.DB
	dialect storage.Dialect
	logger  *zap.Logger
}

// NewExtractor binds an extractor to an open datastore.
func NewExtractor(ds *storage.Datastore, logger *zap.Logger) *Extractor {
	return &Extractor{db: ds.DB, dialect: ds.Dialect, logger: logging.OrNop(logger).Named("outcome")}
}

type topic struct {
	name string
	load func(ctx context.Context, snap *domain.OutcomeSnapshot) error
}

func (e *Extractor) topics() []topic {
	return []topic{
		{"population", e.population},
		{"death_causes", e.deathCauses},
		{"trade", e.trade},
		{"discoveries", e.discoveries},
		{"social_constructs", e.socialConstructs},
		{"deception", e.deception},
		{"final_world_state", e.finalWorldState},
		{"conflict", e.conflict},
		{"ledger_summary", e.ledgerSummary},
		{"event_distribution", e.eventDistribution},
		{"tick_range", e.tickRange},
	}
}

// Extract builds the snapshot for runID. An unknown or malformed run id fails
// with domain.RunNotFoundError before any other topic is read. Topics whose
// tables do not exist stay empty.
func (e *Extractor) Extract(ctx context.Context, runID string) (domain.OutcomeSnapshot, error) {
	snap := domain.EmptyOutcomeSnapshot()
	run, err := e.run(ctx, runID)
	if err != nil {
		return domain.OutcomeSnapshot{}, err
	}
	snap.Run = run
	for _, t := range e.topics() {
		err := t.load(ctx, &snap)
		switch {
		case err == nil:
		case e.dialect.IsUndefinedTable(err):
			e.logger.Debug("topic table missing, leaving empty", zap.String("topic", t.name), zap.Error(err))
		default:
			return domain.OutcomeSnapshot{}, &domain.DatastoreError{Op: "extract " + t.name, Err: err}
		}
	}
	e.logger.Info("outcomes extracted",
		zap.String("run_id", run.ID),
		zap.Int("discoveries", len(snap.Discoveries)),
		zap.Int("social_constructs", len(snap.SocialConstructs)))
	return snap, nil
}

func (e *Extractor) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return e.db.QueryContext(ctx, e.dialect.Rebind(q), args...)
}

func (e *Extractor) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return e.db.QueryRowContext(ctx, e.dialect.Rebind(q), args...)
}

func (e *Extractor) run(ctx context.Context, runID string) (domain.RunInfo, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return domain.RunInfo{}, domain.RunNotFoundError{RunID: runID}
	}
	var (
		info     domain.RunInfo
		name     sql.NullString
		status   sql.NullString
		maxTicks sql.NullInt64
	)
	err = e.queryRow(ctx, `SELECT CAST(id AS TEXT), name, CAST(status AS TEXT), max_ticks FROM simulation_runs WHERE id = ?`, id.String()).
		Scan(&info.ID, &name, &status, &maxTicks)
	switch {
	case errors.Is(err, sql.ErrNoRows), err != nil && e.dialect.IsUndefinedTable(err):
		return domain.RunInfo{}, domain.RunNotFoundError{RunID: runID}
	case err != nil:
		return domain.RunInfo{}, &domain.DatastoreError{Op: "load run", Err: err}
	}
	info.Name = name.String
	info.Status = "unknown"
	if status.Valid && status.String != "" {
		info.Status = status.String
	}
	info.MaxTicks = int64Ptr(maxTicks)
	return info, nil
}

func (e *Extractor) population(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	var (
		total, alive, deaths, born, seed int64
		maxGen                           sql.NullInt64
		avgLifespan                      sql.NullFloat64
	)
	err := e.queryRow(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE died_at_tick IS NULL),
		COUNT(*) FILTER (WHERE died_at_tick IS NOT NULL),
		COUNT(*) FILTER (WHERE parent_a IS NOT NULL),
		COUNT(*) FILTER (WHERE generation = 0),
		MAX(generation),
		CAST(AVG(CASE WHEN died_at_tick IS NOT NULL AND born_at_tick IS NOT NULL THEN died_at_tick - born_at_tick END) AS DOUBLE PRECISION)
	FROM agents`).Scan(&total, &alive, &deaths, &born, &seed, &maxGen, &avgLifespan)
	if err != nil {
		return err
	}
	snap.Population = domain.PopulationStats{
		TotalAgents:   &total,
		AliveAtEnd:    &alive,
		TotalDeaths:   &deaths,
		BornInSim:     &born,
		SeedAgents:    &seed,
		MaxGeneration: int64Ptr(maxGen),
		AvgLifespan:   float64Ptr(avgLifespan),
	}
	return nil
}

func (e *Extractor) deathCauses(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	rows, err := e.query(ctx, `SELECT CAST(cause_of_death AS TEXT), COUNT(*)
	FROM agents
	WHERE died_at_tick IS NOT NULL AND cause_of_death IS NOT NULL
	GROUP BY cause_of_death
	ORDER BY 2 DESC, 1`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var c domain.DeathCause
		if err := rows.Scan(&c.Cause, &c.Count); err != nil {
			return fmt.Errorf("scan death cause: %w", err)
		}
		snap.DeathCauses = append(snap.DeathCauses, c)
	}
	return rows.Err()
}

func (e *Extractor) trade(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	var (
		total, traders int64
		first, last    sql.NullInt64
	)
	err := e.queryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT agent_id), MIN(tick), MAX(tick)
	FROM events
	WHERE CAST(event_type AS TEXT) IN ('Trade', 'TRADE')`).Scan(&total, &traders, &first, &last)
	if err != nil {
		return err
	}
	snap.Trade = domain.TradeStats{
		TotalTrades:    &total,
		UniqueTraders:  &traders,
		FirstTradeTick: int64Ptr(first),
		LastTradeTick:  int64Ptr(last),
	}
	return nil
}

func (e *Extractor) discoveries(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	rows, err := e.query(ctx, `SELECT knowledge_item, tick, CAST(method AS TEXT), CAST(agent_id AS TEXT)
	FROM discoveries
	ORDER BY tick, knowledge_item`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	skipped := 0
	for rows.Next() {
		var (
			knowledge sql.NullString
			tick      sql.NullInt64
			method    sql.NullString
			agent     sql.NullString
		)
		if err := rows.Scan(&knowledge, &tick, &method, &agent); err != nil {
			return fmt.Errorf("scan discovery: %w", err)
		}
		// A discovery is only placeable on the timeline with both of these.
		if !knowledge.Valid || !tick.Valid {
			skipped++
			continue
		}
		d := domain.Discovery{Knowledge: knowledge.String, Tick: tick.Int64, Method: method.String}
		if agent.Valid && agent.String != "" {
			id := agent.String
			d.AgentID = &id
		}
		snap.Discoveries = append(snap.Discoveries, d)
	}
	e.logSkipped("discoveries", skipped)
	return rows.Err()
}

func (e *Extractor) socialConstructs(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	rows, err := e.query(ctx, `SELECT name, CAST(category AS TEXT), founded_at_tick, disbanded_at_tick
	FROM social_constructs
	ORDER BY founded_at_tick, name`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	skipped := 0
	for rows.Next() {
		var (
			name      sql.NullString
			category  sql.NullString
			founded   sql.NullInt64
			disbanded sql.NullInt64
		)
		if err := rows.Scan(&name, &category, &founded, &disbanded); err != nil {
			return fmt.Errorf("scan social construct: %w", err)
		}
		if !name.Valid || !founded.Valid {
			skipped++
			continue
		}
		snap.SocialConstructs = append(snap.SocialConstructs, domain.SocialConstruct{
			Name:            name.String,
			Category:        category.String,
			FoundedAtTick:   founded.Int64,
			DisbandedAtTick: int64Ptr(disbanded),
		})
	}
	e.logSkipped("social_constructs", skipped)
	return rows.Err()
}

func (e *Extractor) logSkipped(topic string, n int) {
	if n > 0 {
		e.logger.Warn("rows with missing required columns skipped", zap.String("topic", topic), zap.Int("rows", n))
	}
}

func (e *Extractor) deception(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	var total, discovered, deceivers int64
	err := e.queryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE discovered = TRUE), COUNT(DISTINCT deceiver)
	FROM deception_records`).Scan(&total, &discovered, &deceivers)
	if err != nil {
		return err
	}
	snap.Deception = domain.DeceptionStats{TotalLies: &total, DiscoveredLies: &discovered, UniqueDeceivers: &deceivers}
	return nil
}

func (e *Extractor) finalWorldState(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	var (
		tick      int64
		resources sql.NullString
	)
	err := e.queryRow(ctx, `SELECT tick, CAST(total_resources AS TEXT)
	FROM world_snapshots
	ORDER BY tick DESC
	LIMIT 1`).Scan(&tick, &resources)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	snap.FinalWorldState = domain.WorldReading{Tick: &tick, TotalResources: jsonValue(resources)}
	return nil
}

func (e *Extractor) conflict(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	var combat, theft, diplomacy int64
	err := e.queryRow(ctx, `SELECT
		COUNT(*) FILTER (WHERE CAST(event_type AS TEXT) IN ('Combat', 'COMBAT')),
		COUNT(*) FILTER (WHERE CAST(event_type AS TEXT) IN ('Theft', 'THEFT')),
		COUNT(*) FILTER (WHERE CAST(event_type AS TEXT) IN ('Diplomacy', 'DIPLOMACY'))
	FROM events`).Scan(&combat, &theft, &diplomacy)
	if err != nil {
		return err
	}
	snap.Conflict = domain.ConflictStats{CombatEvents: &combat, TheftEvents: &theft, DiplomacyEvents: &diplomacy}
	return nil
}

func (e *Extractor) ledgerSummary(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	rows, err := e.query(ctx, `SELECT CAST(entry_type AS TEXT), COUNT(*), CAST(COALESCE(SUM(quantity), 0) AS DOUBLE PRECISION)
	FROM ledger
	WHERE entry_type IS NOT NULL
	GROUP BY entry_type
	ORDER BY 2 DESC, 1`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var b domain.LedgerBucket
		if err := rows.Scan(&b.EntryType, &b.Count, &b.TotalQuantity); err != nil {
			return fmt.Errorf("scan ledger bucket: %w", err)
		}
		snap.LedgerSummary = append(snap.LedgerSummary, b)
	}
	return rows.Err()
}

func (e *Extractor) eventDistribution(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	rows, err := e.query(ctx, `SELECT CAST(event_type AS TEXT), COUNT(*)
	FROM events
	WHERE event_type IS NOT NULL
	GROUP BY event_type
	ORDER BY 2 DESC, 1`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var b domain.EventBucket
		if err := rows.Scan(&b.EventType, &b.Count); err != nil {
			return fmt.Errorf("scan event bucket: %w", err)
		}
		snap.EventDistribution = append(snap.EventDistribution, b)
	}
	return rows.Err()
}

func (e *Extractor) tickRange(ctx context.Context, snap *domain.OutcomeSnapshot) error {
	var first, last sql.NullInt64
	if err := e.queryRow(ctx, `SELECT MIN(tick), MAX(tick) FROM events`).Scan(&first, &last); err != nil {
		return err
	}
	snap.TickRange = domain.ObservedTicks{FirstTick: int64Ptr(first), LastTick: int64Ptr(last)}
	return nil
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func float64Ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// jsonValue keeps stored JSON in canonical form and quotes anything else as
// a string.
func jsonValue(s sql.NullString) domain.Literal {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	if json.Valid([]byte(s.String)) {
		return domain.CanonicalLiteral([]byte(s.String))
	}
	quoted, err := json.Marshal(s.String)
	if err != nil {
		return nil
	}
	return domain.Literal(quoted)
}
