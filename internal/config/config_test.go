package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, NotifyModeMock, cfg.Notify.Mode)
	assert.Equal(t, time.Second, cfg.Notify.Delay)
	assert.Equal(t, SeedSourceStatic, cfg.Leaderboard.SeedSource)
	assert.False(t, cfg.Leaderboard.AllowOutOfRangeScores)
	assert.Equal(t, "hackathon-score-edits", cfg.Kafka.Topic)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("LEADERBOARD_JWT_SECRET", "from-env-secret-that-is-long-enough")
	t.Setenv("LEADERBOARD_NOTIFY_URL", "http://upstream.local")
	path := writeConfig(t, `
auth:
  jwt_secret: ${LEADERBOARD_JWT_SECRET}
  token_ttl: 30m
notify:
  mode: http
  base_url: ${LEADERBOARD_NOTIFY_URL}
  timeout: 2s
leaderboard:
  allow_out_of_range_scores: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env-secret-that-is-long-enough", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, NotifyModeHTTP, cfg.Notify.Mode)
	assert.Equal(t, "http://upstream.local", cfg.Notify.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Notify.Timeout)
	assert.True(t, cfg.Leaderboard.AllowOutOfRangeScores)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown notify mode", "notify:\n  mode: carrier-pigeon\n"},
		{"http notify without url", "notify:\n  mode: http\n"},
		{"unknown seed source", "leaderboard:\n  seed_source: spreadsheet\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "postgres://:@localhost:5432/?sslmode=disable", cfg.Postgres.ConnectionString())
}
