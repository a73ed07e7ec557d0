package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aznelite89/travel-budget-estimator/core/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "DATABASE_URL", "STORE", "SERVER_PORT", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS",
		"SCHEDULER_WORKERS", "MONITOR_INTERVAL", "STALLED_JOB_AFTER", "STREAM_POLL_INTERVAL",
		"STREAM_KEEPALIVE_INTERVAL", "SUBMIT_RATE_PER_SECOND", "SUBMIT_BURST", "ANTHROPIC_API_KEY",
		"ESTIMATOR_MODEL", "ESTIMATOR_MAX_TOKENS", "ESTIMATOR_TEMPERATURE", "ESTIMATOR_TIMEOUT",
		"CONTINGENCY_RATE_BUDGET", "CONTINGENCY_RATE_MIDRANGE", "CONTINGENCY_RATE_LUXURY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, 2, cfg.SchedulerWorkers)
	assert.Equal(t, time.Second, cfg.StreamPollInterval)
	assert.Equal(t, 15*time.Second, cfg.StreamKeepAliveInterval)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 0.10, cfg.Estimator.BufferRates()[models.BudgetStyleMidrange])
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE", "memory")
	t.Setenv("SCHEDULER_WORKERS", "4")
	t.Setenv("STREAM_POLL_INTERVAL", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("CONTINGENCY_RATE_LUXURY", "0.2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 4, cfg.SchedulerWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.StreamPollInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "sk-test", cfg.Estimator.APIKey)
	assert.Equal(t, 0.2, cfg.Estimator.ContingencyRate["luxury"])
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: memory
server_port: "9090"
scheduler_workers: 3
stream_keepalive_interval: 5s
estimator:
  model: claude-test
  contingency_rate:
    budget: 0.25
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "7070", cfg.ServerPort)
	assert.Equal(t, 3, cfg.SchedulerWorkers)
	assert.Equal(t, 5*time.Second, cfg.StreamKeepAliveInterval)
	assert.Equal(t, "claude-test", cfg.Estimator.Model)
	assert.Equal(t, 0.25, cfg.Estimator.ContingencyRate["budget"])
	assert.Equal(t, 0.10, cfg.Estimator.ContingencyRate["midrange"])
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"STORE":                   "redis",
		"SCHEDULER_WORKERS":       "zero",
		"STREAM_POLL_INTERVAL":    "soon",
		"CONTINGENCY_RATE_BUDGET": "1.5",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	assert.NotNil(t, NewLogger(&Config{LogLevel: "debug"}))
	assert.NotNil(t, NewLogger(&Config{}))
}
