package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: "9090"
  env: production
  cors_allow_origins:
    - https://app.propply.ai
run:
  deadline_seconds: 60
sync:
  max_records: 200
  stale_after_hours: 12
webhooks:
  workers: 8
  endpoints:
    - url: https://hooks.example.com/compliance
      events: [report.completed, run.failed]
      secret: whsec_test
ratelimit:
  max_calls_per_minute: 30
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, []string{"https://app.propply.ai"}, cfg.Server.CORSAllowOrigins)
	assert.Equal(t, 60, cfg.Run.DeadlineSeconds)
	assert.Equal(t, 200, cfg.Sync.MaxRecords)
	assert.Equal(t, 12, cfg.Sync.StaleAfterHours)
	assert.Equal(t, 8, cfg.Webhooks.Workers)
	require.Len(t, cfg.Webhooks.Endpoints, 1)
	assert.Equal(t, "https://hooks.example.com/compliance", cfg.Webhooks.Endpoints[0].URL)
	assert.Equal(t, []string{"report.completed", "run.failed"}, cfg.Webhooks.Endpoints[0].Events)
	assert.Equal(t, 30, cfg.RateLimit.MaxCallsPerMinute)

	// Unset sections keep their defaults.
	assert.Equal(t, 60, cfg.Sync.ResyncIntervalMinutes)
	assert.Equal(t, 10, cfg.Sync.ResyncBatchSize)
	assert.Equal(t, ".", cfg.Run.ReportDir)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 120, cfg.Run.DeadlineSeconds)
	assert.Equal(t, 500, cfg.Sync.MaxRecords)
	assert.Equal(t, 4, cfg.Webhooks.Workers)
}
