package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"prereg/pkg/domain"
)

// Defaults applied when the experiment file leaves a setting out.
const (
	DefaultPersonalityMode = "random"
	DefaultKnowledgeLevel  = 1
	DefaultHungerRate      = 5
	DefaultTicksPerSeason  = 90
	DefaultLifespanTicks   = 2500
)

// experimentFile mirrors the sections of the simulation config that the
// registration prompt exposes. Pointers distinguish unset from zero.
type experimentFile struct {
	Agents struct {
		PersonalityMode *string  `yaml:"personality_mode"`
		SeedKnowledge   []string `yaml:"seed_knowledge"`
	} `yaml:"agents"`
	World struct {
		KnowledgeLevel *int `yaml:"knowledge_level"`
	} `yaml:"world"`
	Economy struct {
		StartingWallet map[string]int `yaml:"starting_wallet"`
		HungerRate     *int           `yaml:"hunger_rate"`
	} `yaml:"economy"`
	Time struct {
		TicksPerSeason *int  `yaml:"ticks_per_season"`
		DayNight       *bool `yaml:"day_night"`
	} `yaml:"time"`
	Population struct {
		AgentLifespanTicks  *int  `yaml:"agent_lifespan_ticks"`
		ReproductionEnabled *bool `yaml:"reproduction_enabled"`
	} `yaml:"population"`
}

// LoadExperiment reads the YAML file at path and combines it with the run
// size chosen on the command line.
func LoadExperiment(path string, agents, ticks int) (domain.ExperimentConfig, error) {
	if path == "" {
		return domain.ExperimentConfig{}, domain.ConfigError{Key: "config", Reason: "no experiment config file given"}
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ExperimentConfig{}, domain.ConfigError{Key: "config", Reason: "config file not found: " + path}
	}
	if err != nil {
		return domain.ExperimentConfig{}, fmt.Errorf("read experiment config: %w", err)
	}
	cfg, err := ParseExperiment(data, agents, ticks)
	if err != nil {
		return domain.ExperimentConfig{}, err
	}
	cfg.ConfigFile = path
	return cfg, nil
}

// ParseExperiment decodes YAML bytes and applies defaults.
func ParseExperiment(data []byte, agents, ticks int) (domain.ExperimentConfig, error) {
	if agents <= 0 {
		return domain.ExperimentConfig{}, domain.ConfigError{Key: "agents", Reason: "must be positive"}
	}
	if ticks <= 0 {
		return domain.ExperimentConfig{}, domain.ConfigError{Key: "ticks", Reason: "must be positive"}
	}
	var f experimentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.ExperimentConfig{}, domain.ConfigError{Key: "config", Reason: "invalid YAML: " + err.Error()}
	}
	cfg := domain.ExperimentConfig{
		AgentCount:          agents,
		TickCount:           ticks,
		PersonalityMode:     stringOr(f.Agents.PersonalityMode, DefaultPersonalityMode),
		KnowledgeLevel:      intOr(f.World.KnowledgeLevel, DefaultKnowledgeLevel),
		SeedKnowledge:       f.Agents.SeedKnowledge,
		StartingWallet:      f.Economy.StartingWallet,
		HungerRate:          intOr(f.Economy.HungerRate, DefaultHungerRate),
		ReproductionEnabled: boolOr(f.Population.ReproductionEnabled, true),
		DayNight:            boolOr(f.Time.DayNight, true),
		TicksPerSeason:      intOr(f.Time.TicksPerSeason, DefaultTicksPerSeason),
		AgentLifespanTicks:  intOr(f.Population.AgentLifespanTicks, DefaultLifespanTicks),
	}
	if cfg.SeedKnowledge == nil {
		cfg.SeedKnowledge = []string{}
	}
	if cfg.StartingWallet == nil {
		cfg.StartingWallet = map[string]int{}
	}
	return cfg, nil
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
