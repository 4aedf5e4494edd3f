// Package testsupport provides shared helpers for package tests: temp-backed
// configs, database handles, and file fixtures.
package testsupport

import (
	"path/filepath"
	"testing"

	"lumina/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Poll intervals are zeroed so worker loops spin without waiting.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Workflow.QueuePollInterval = 0
	cfgVal.Workflow.ErrorRetryInterval = 0

	builder := &configBuilder{
		t:   t,
		cfg: &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkers sets the worker count on the test config.
func WithWorkers(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = count
	}
}

// WithAPIToken sets the privileged API token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithMaxAttempts sets the default retry budget for enqueued jobs.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxAttempts = attempts
	}
}

// WithGeocodingDisabled turns off reverse geocoding on the test config.
func WithGeocodingDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Geocoding.Enabled = false
	}
}
