package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/colin-migrate/internal/store"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse_EmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colinmig.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  flow_name: corps-flow
  environment: test
  batch_limit: 25
  max_workers: 2
  corp_types: [BC, C]
ledger:
  driver: postgres
  dsn: postgres://colin@localhost/colin?sslmode=disable
notify:
  enabled: true
  base_url: http://lear.local/api
  rate_per_second: 2.5
  burst: 3
log:
  level: debug
  format: json
metrics:
  addr: ":9464"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, store.Scope{FlowName: "corps-flow", Environment: "test"}, cfg.Scope())
	assert.Equal(t, 25, cfg.Pipeline.BatchLimit)
	assert.Equal(t, 2, cfg.Pipeline.MaxWorkers)
	assert.Equal(t, []string{"BC", "C"}, cfg.Pipeline.CorpTypes)
	assert.Equal(t, "postgres", cfg.Ledger.Driver)
	assert.Equal(t, "sqlite3", cfg.Target.Driver, "unset section keeps default")
	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, 2.5, cfg.Notify.RatePerSecond)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("pipeline:\n  batch_size: 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"flow name", func(c *Config) { c.Pipeline.FlowName = "" }, "pipeline.flow_name is required"},
		{"batch limit", func(c *Config) { c.Pipeline.BatchLimit = 0 }, "pipeline.batch_limit"},
		{"workers", func(c *Config) { c.Pipeline.MaxWorkers = 0 }, "pipeline.max_workers"},
		{"attempts", func(c *Config) { c.Pipeline.MaxAttempts = 0 }, "pipeline.max_attempts"},
		{"retry", func(c *Config) { c.Pipeline.RetryBaseMS = -1 }, "pipeline.retry_base_ms"},
		{"driver", func(c *Config) { c.Target.Driver = "mysql" }, `target.driver "mysql"`},
		{"dsn", func(c *Config) { c.Ledger.DSN = "" }, "ledger.dsn is required"},
		{"notify url", func(c *Config) { c.Notify.Enabled = true }, "notify.base_url"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, `log.level "trace"`},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, `log.format "xml"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_DisabledNotifyIgnoresRate(t *testing.T) {
	cfg := Default()
	cfg.Notify.RatePerSecond = 0
	require.NoError(t, cfg.Validate())
}

func TestDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.EventTimeout())
	assert.Equal(t, 200*time.Millisecond, cfg.RetryBase())
	assert.Equal(t, time.Hour, cfg.StaleClaim())
}
