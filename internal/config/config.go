// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmynk/tablemates/internal/matching"
	"github.com/mmynk/tablemates/internal/scoring"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config is the full server configuration.
type Config struct {
	Port         int      `env:"PORT"                 envDefault:"8080"`
	LogLevel     string   `env:"LOG_LEVEL"            envDefault:"info"`
	StoreBackend string   `env:"STORE_BACKEND"        envDefault:"sqlite"`
	DBPath       string   `env:"DB_PATH"              envDefault:"./data/tablemates.db"`
	JWTSecret    string   `env:"JWT_SECRET,required,notEmpty"`
	CORSOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// GroupNameSeed seeds the cosmetic group-name generator. Zero picks a
	// random seed at startup.
	GroupNameSeed uint64 `env:"GROUP_NAME_SEED" envDefault:"0"`

	Dynamo DynamoConfig `envPrefix:"DYNAMO_"`
	Stream StreamConfig `envPrefix:"STREAM_"`
	Match  MatchConfig  `envPrefix:"MATCH_"`
	Score  ScoreConfig  `envPrefix:"SCORE_"`
}

type DynamoConfig struct {
	Region      string `env:"REGION"       envDefault:"us-east-1"`
	Endpoint    string `env:"ENDPOINT"`
	UsersTable  string `env:"USERS_TABLE"  envDefault:"tablemates-users"`
	GroupsTable string `env:"GROUPS_TABLE" envDefault:"tablemates-groups"`
	StatusIndex string `env:"STATUS_INDEX" envDefault:"matching_status-matching_started_at-index"`
}

// StreamConfig configures chat provisioning. Chat is disabled when the key
// or secret is missing.
type StreamConfig struct {
	APIKey      string        `env:"API_KEY"`
	APISecret   string        `env:"API_SECRET"`
	BaseURL     string        `env:"BASE_URL"`
	ChannelType string        `env:"CHANNEL_TYPE" envDefault:"messaging"`
	TokenTTL    time.Duration `env:"TOKEN_TTL"    envDefault:"24h"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"10s"`
}

// Enabled reports whether Stream credentials are configured.
func (s StreamConfig) Enabled() bool {
	return s.APIKey != "" && s.APISecret != ""
}

type MatchConfig struct {
	TargetSize      int           `env:"TARGET_SIZE"       envDefault:"5"`
	ExpandedMinimum int           `env:"EXPANDED_MINIMUM"  envDefault:"3"`
	GuaranteedSize  int           `env:"GUARANTEED_SIZE"   envDefault:"2"`
	GuaranteedAfter time.Duration `env:"GUARANTEED_AFTER"  envDefault:"90s"`
	SettleDelay     time.Duration `env:"SETTLE_DELAY"      envDefault:"2s"`
	DinnerThreshold int           `env:"DINNER_THRESHOLD"  envDefault:"2"`

	// Adjacency maps a sector to its neighbours, e.g. "north:mid|east,mid:north".
	Adjacency map[string]string `env:"SECTOR_ADJACENCY" envKeyValSeparator:":"`
}

// ScoreConfig selects a weight preset and optionally overrides single weights.
type ScoreConfig struct {
	Preset             string   `env:"PRESET" envDefault:"weighted"`
	TraitCap           *float64 `env:"TRAIT_CAP"`
	ExtraversionWeight *float64 `env:"EXTRAVERSION_WEIGHT"`
	OpennessWeight     *float64 `env:"OPENNESS_WEIGHT"`
	ChillFactorWeight  *float64 `env:"CHILL_FACTOR_WEIGHT"`
	StyleBonus         *float64 `env:"STYLE_BONUS"`
	InterestWeight     *float64 `env:"INTEREST_WEIGHT"`
	NeutralScore       *float64 `env:"NEUTRAL_SCORE"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backends and inconsistent matching settings.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendDynamoDB:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("matching policy: %w", err)
	}
	if c.Match.DinnerThreshold < 1 {
		return fmt.Errorf("dinner threshold must be positive, got %d", c.Match.DinnerThreshold)
	}
	if _, err := c.Weights(); err != nil {
		return err
	}
	return nil
}

// Policy converts the matching settings.
func (c *Config) Policy() matching.Policy {
	adjacency := make(map[string][]string, len(c.Match.Adjacency))
	for sector, neighbours := range c.Match.Adjacency {
		sector = strings.ToLower(strings.TrimSpace(sector))
		for _, n := range strings.Split(neighbours, "|") {
			if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
				adjacency[sector] = append(adjacency[sector], n)
			}
		}
	}
	return matching.Policy{
		TargetSize:      c.Match.TargetSize,
		ExpandedMinimum: c.Match.ExpandedMinimum,
		GuaranteedSize:  c.Match.GuaranteedSize,
		GuaranteedAfter: c.Match.GuaranteedAfter,
		SettleDelay:     c.Match.SettleDelay,
		Adjacency:       adjacency,
	}
}

// Weights resolves the preset and applies overrides.
func (c *Config) Weights() (scoring.Weights, error) {
	w, err := scoring.Preset(c.Score.Preset)
	if err != nil {
		return scoring.Weights{}, err
	}
	for _, o := range []struct {
		dst *float64
		src *float64
	}{
		{&w.TraitCap, c.Score.TraitCap},
		{&w.ExtraversionWeight, c.Score.ExtraversionWeight},
		{&w.OpennessWeight, c.Score.OpennessWeight},
		{&w.ChillFactorWeight, c.Score.ChillFactorWeight},
		{&w.StyleBonus, c.Score.StyleBonus},
		{&w.InterestWeight, c.Score.InterestWeight},
		{&w.NeutralScore, c.Score.NeutralScore},
	} {
		if o.src != nil {
			*o.dst = *o.src
		}
	}
	if err := w.Validate(); err != nil {
		return scoring.Weights{}, fmt.Errorf("scoring weights: %w", err)
	}
	return w, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
