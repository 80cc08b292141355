package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"prereg/internal/blob"
	"prereg/internal/storage"
	"prereg/pkg/domain"
)

func TestAPIKeyFallback(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{"primary", map[string]string{EnvAPIKey: "a", EnvAPIKeyFallback: "b"}, "a", false},
		{"fallback", map[string]string{EnvAPIKeyFallback: "b"}, "b", false},
		{"blank primary", map[string]string{EnvAPIKey: "  ", EnvAPIKeyFallback: "b"}, "b", false},
		{"missing", map[string]string{}, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromMap(tc.env).APIKey()
			if tc.wantErr {
				var cfgErr domain.ConfigError
				if !errors.As(err, &cfgErr) || cfgErr.Key != EnvAPIKey {
					t.Fatalf("expected ConfigError for %s, got %v", EnvAPIKey, err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("got %q, %v; want %q", got, err, tc.want)
			}
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	if _, err := FromMap(nil).DatabaseURL(); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	got, err := FromMap(map[string]string{EnvDatabaseURL: "postgres://db/x"}).DatabaseURL()
	if err != nil || got != "postgres://db/x" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestStorageDriver(t *testing.T) {
	cases := []struct {
		value   string
		want    storage.Driver
		wantErr bool
	}{
		{"", storage.DriverPostgres, false},
		{"postgres", storage.DriverPostgres, false},
		{"SQLite", storage.DriverSQLite, false},
		{"mysql", "", true},
	}
	for _, tc := range cases {
		got, err := FromMap(map[string]string{EnvStorageDriver: tc.value}).StorageDriver()
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("driver %q: got %q, %v", tc.value, got, err)
		}
	}
}

func TestArtifacts(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		want    blob.Options
		wantErr string
	}{
		{"default", nil, blob.Options{Driver: blob.DriverFilesystem, FSRoot: DefaultArtifactRoot}, ""},
		{"fs root", map[string]string{EnvArtifactDriver: "fs", EnvArtifactFSRoot: "/tmp/a"}, blob.Options{Driver: blob.DriverFilesystem, FSRoot: "/tmp/a"}, ""},
		{"memory", map[string]string{EnvArtifactDriver: "memory"}, blob.Options{Driver: blob.DriverMemory}, ""},
		{"s3", map[string]string{
			EnvArtifactDriver: "s3",
			EnvS3Bucket:       "runs",
			EnvS3Region:       "eu-west-1",
			EnvS3Endpoint:     "http://minio:9000",
			EnvS3PathStyle:    "TRUE",
			EnvS3AccessKey:    "id",
			EnvS3SecretKey:    "secret",
		}, blob.Options{Driver: blob.DriverS3, S3: blob.S3Config{
			Bucket: "runs", Region: "eu-west-1", Endpoint: "http://minio:9000", PathStyle: true,
			AccessKeyID: "id", SecretAccessKey: "secret",
		}}, ""},
		{"s3 without bucket", map[string]string{EnvArtifactDriver: "s3"}, blob.Options{}, EnvS3Bucket},
		{"unknown", map[string]string{EnvArtifactDriver: "gcs"}, blob.Options{}, EnvArtifactDriver},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromMap(tc.env).Artifacts()
			if tc.wantErr != "" {
				var cfgErr domain.ConfigError
				if !errors.As(err, &cfgErr) || cfgErr.Key != tc.wantErr {
					t.Fatalf("expected ConfigError for %s, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("artifacts: %v", err)
			}
			if diff := cmp.Diff(tc.want, got, cmp.AllowUnexported(blob.S3Config{})); diff != "" {
				t.Fatalf("options mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseExperimentDefaults(t *testing.T) {
	got, err := ParseExperiment([]byte("{}"), 8, 3600)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := domain.ExperimentConfig{
		AgentCount:          8,
		TickCount:           3600,
		PersonalityMode:     DefaultPersonalityMode,
		KnowledgeLevel:      DefaultKnowledgeLevel,
		SeedKnowledge:       []string{},
		StartingWallet:      map[string]int{},
		HungerRate:          DefaultHungerRate,
		ReproductionEnabled: true,
		DayNight:            true,
		TicksPerSeason:      DefaultTicksPerSeason,
		AgentLifespanTicks:  DefaultLifespanTicks,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestParseExperimentOverrides(t *testing.T) {
	doc := `
agents:
  personality_mode: uniform
  seed_knowledge: [fire, foraging]
world:
  knowledge_level: 0
economy:
  starting_wallet:
    food: 5
    wood: 2
  hunger_rate: 3
time:
  ticks_per_season: 60
  day_night: false
population:
  agent_lifespan_ticks: 1800
  reproduction_enabled: false
`
	got, err := ParseExperiment([]byte(doc), 20, 1000)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := domain.ExperimentConfig{
		AgentCount:          20,
		TickCount:           1000,
		PersonalityMode:     "uniform",
		KnowledgeLevel:      0,
		SeedKnowledge:       []string{"fire", "foraging"},
		StartingWallet:      map[string]int{"food": 5, "wood": 2},
		HungerRate:          3,
		ReproductionEnabled: false,
		DayNight:            false,
		TicksPerSeason:      60,
		AgentLifespanTicks:  1800,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseExperimentErrors(t *testing.T) {
	cases := []struct {
		name   string
		data   string
		agents int
		ticks  int
		key    string
	}{
		{"zero agents", "{}", 0, 10, "agents"},
		{"zero ticks", "{}", 5, 0, "ticks"},
		{"bad yaml", "agents: [", 5, 10, "config"},
		{"wrong type", "world:\n  knowledge_level: lots\n", 5, 10, "config"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseExperiment([]byte(tc.data), tc.agents, tc.ticks)
			var cfgErr domain.ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Key != tc.key {
				t.Fatalf("expected ConfigError for %s, got %v", tc.key, err)
			}
		})
	}
}

func TestLoadExperiment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emergence-config.yaml")
	if err := os.WriteFile(path, []byte("economy:\n  hunger_rate: 7\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadExperiment(path, 5, 100)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HungerRate != 7 || cfg.ConfigFile != path {
		t.Fatalf("unexpected config %+v", cfg)
	}

	_, err = LoadExperiment(filepath.Join(t.TempDir(), "missing.yaml"), 5, 100)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing file, got %v", err)
	}
}
