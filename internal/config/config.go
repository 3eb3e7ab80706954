// Package config loads the colinmig YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bcgov/colin-migrate/internal/store"
)

// Config is the full run configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Ledger   DatabaseConfig `yaml:"ledger"`
	Target   DatabaseConfig `yaml:"target"`
	Notify   NotifyConfig   `yaml:"notify"`
	Policy   PolicyConfig   `yaml:"policy"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PipelineConfig controls corporation selection and event processing.
type PipelineConfig struct {
	FlowName            string   `yaml:"flow_name"`
	Environment         string   `yaml:"environment"`
	BatchLimit          int      `yaml:"batch_limit"`
	MaxWorkers          int      `yaml:"max_workers"`
	EventTimeoutSeconds int      `yaml:"event_timeout_seconds"`
	MaxAttempts         int      `yaml:"max_attempts"`
	RetryBaseMS         int      `yaml:"retry_base_ms"`
	StaleClaimMinutes   int      `yaml:"stale_claim_minutes"`
	CorpTypes           []string `yaml:"corp_types"`
}

// DatabaseConfig is a database/sql driver and DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// NotifyConfig configures post-commit downstream notifications.
type NotifyConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BaseURL        string  `yaml:"base_url"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// PolicyConfig points at an optional CUE override of the filing-type policy.
type PolicyConfig struct {
	File string `yaml:"file"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			FlowName:            "colin-migrate",
			Environment:         "dev",
			BatchLimit:          100,
			MaxWorkers:          4,
			EventTimeoutSeconds: 30,
			MaxAttempts:         3,
			RetryBaseMS:         200,
			StaleClaimMinutes:   60,
		},
		Ledger: DatabaseConfig{Driver: "sqlite3", DSN: "ledger.db"},
		Target: DatabaseConfig{Driver: "sqlite3", DSN: "target.db"},
		Notify: NotifyConfig{RatePerSecond: 5, Burst: 1, TimeoutSeconds: 10},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	p := c.Pipeline
	if p.FlowName == "" {
		problems = append(problems, "pipeline.flow_name is required")
	}
	if p.Environment == "" {
		problems = append(problems, "pipeline.environment is required")
	}
	if p.BatchLimit < 1 {
		problems = append(problems, "pipeline.batch_limit must be at least 1")
	}
	if p.MaxWorkers < 1 {
		problems = append(problems, "pipeline.max_workers must be at least 1")
	}
	if p.EventTimeoutSeconds < 1 {
		problems = append(problems, "pipeline.event_timeout_seconds must be at least 1")
	}
	if p.MaxAttempts < 1 {
		problems = append(problems, "pipeline.max_attempts must be at least 1")
	}
	if p.RetryBaseMS < 0 {
		problems = append(problems, "pipeline.retry_base_ms must not be negative")
	}
	if p.StaleClaimMinutes < 1 {
		problems = append(problems, "pipeline.stale_claim_minutes must be at least 1")
	}

	for name, db := range map[string]DatabaseConfig{"ledger": c.Ledger, "target": c.Target} {
		if _, ok := store.ParseDialect(db.Driver); !ok {
			problems = append(problems, fmt.Sprintf("%s.driver %q is not sqlite3 or postgres", name, db.Driver))
		}
		if db.DSN == "" {
			problems = append(problems, name+".dsn is required")
		}
	}

	if c.Notify.Enabled {
		if c.Notify.BaseURL == "" {
			problems = append(problems, "notify.base_url is required when notify is enabled")
		}
		if c.Notify.RatePerSecond <= 0 {
			problems = append(problems, "notify.rate_per_second must be positive")
		}
		if c.Notify.Burst < 1 {
			problems = append(problems, "notify.burst must be at least 1")
		}
		if c.Notify.TimeoutSeconds < 1 {
			problems = append(problems, "notify.timeout_seconds must be at least 1")
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not text or json", c.Log.Format))
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Scope is the watermark scope of this configuration.
func (c *Config) Scope() store.Scope {
	return store.Scope{FlowName: c.Pipeline.FlowName, Environment: c.Pipeline.Environment}
}

// EventTimeout is the per-event processing deadline.
func (c *Config) EventTimeout() time.Duration {
	return time.Duration(c.Pipeline.EventTimeoutSeconds) * time.Second
}

// RetryBase is the first retry delay; later delays double.
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.Pipeline.RetryBaseMS) * time.Millisecond
}

// StaleClaim is how long a PROCESSING claim is honoured.
func (c *Config) StaleClaim() time.Duration {
	return time.Duration(c.Pipeline.StaleClaimMinutes) * time.Minute
}

// NotifyTimeout is the per-call notification deadline.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}
