package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tablemates/internal/scoring"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.Stream.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Stream.TokenTTL)

	policy := cfg.Policy()
	assert.Equal(t, 5, policy.TargetSize)
	assert.Equal(t, 3, policy.ExpandedMinimum)
	assert.Equal(t, 2, policy.GuaranteedSize)
	assert.Equal(t, 90*time.Second, policy.GuaranteedAfter)
	assert.Empty(t, policy.Adjacency)

	w, err := cfg.Weights()
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultWeights(), w)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "dynamodb")
	t.Setenv("DYNAMO_USERS_TABLE", "users")
	t.Setenv("STREAM_API_KEY", "key")
	t.Setenv("STREAM_API_SECRET", "secret")
	t.Setenv("MATCH_GUARANTEED_AFTER", "2m")
	t.Setenv("MATCH_SETTLE_DELAY", "0s")
	t.Setenv("MATCH_SECTOR_ADJACENCY", "north:mid|East,mid:north")
	t.Setenv("SCORE_PRESET", "interests_only")
	t.Setenv("SCORE_INTEREST_WEIGHT", "4.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendDynamoDB, cfg.StoreBackend)
	assert.Equal(t, "users", cfg.Dynamo.UsersTable)
	assert.Equal(t, "tablemates-groups", cfg.Dynamo.GroupsTable)
	assert.True(t, cfg.Stream.Enabled())

	policy := cfg.Policy()
	assert.Equal(t, 2*time.Minute, policy.GuaranteedAfter)
	assert.Zero(t, policy.SettleDelay)
	assert.Equal(t, map[string][]string{"north": {"mid", "east"}, "mid": {"north"}}, policy.Adjacency)

	w, err := cfg.Weights()
	require.NoError(t, err)
	assert.Zero(t, w.TraitCap)
	assert.Equal(t, 4.5, w.InterestWeight)

	level, err := ParseLevel(cfg.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"STORE_BACKEND": "redis"}},
		{name: "unknown preset", env: map[string]string{"SCORE_PRESET": "astrology"}},
		{name: "negative weight", env: map[string]string{"SCORE_STYLE_BONUS": "-1"}},
		{name: "inverted sizes", env: map[string]string{"MATCH_TARGET_SIZE": "2"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "zero dinner threshold", env: map[string]string{"MATCH_DINNER_THRESHOLD": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
