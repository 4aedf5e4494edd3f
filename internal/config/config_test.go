package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lumina/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != missing {
		t.Fatalf("resolved path = %q, want %q", resolved, missing)
	}
	if cfg.Workflow.Workers != 2 || cfg.Pipeline.MaxAttempts != 3 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadParsesAndExpands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
[workflow]
workers = 4
[pipeline]
thumbnail_max_edge = 512
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("workers = %d, want 4", cfg.Workflow.Workers)
	}
	if cfg.Pipeline.ThumbnailMaxEdge != 512 {
		t.Fatalf("thumbnail_max_edge = %d, want 512", cfg.Pipeline.ThumbnailMaxEdge)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("data_dir not absolute: %q", cfg.Paths.DataDir)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.DataDir, "lumina.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero workers", func(c *config.Config) { c.Workflow.Workers = 0 }, "workflow.workers"},
		{"tiny thumbnail", func(c *config.Config) { c.Pipeline.ThumbnailMaxEdge = 4 }, "thumbnail_max_edge"},
		{"bad quality", func(c *config.Config) { c.Pipeline.ThumbnailQuality = 0 }, "thumbnail_quality"},
		{"zero attempts", func(c *config.Config) { c.Pipeline.MaxAttempts = 0 }, "max_attempts"},
		{"empty geocoder", func(c *config.Config) { c.Geocoding.BaseURL = "" }, "geocoding.base_url"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "yaml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestGeocodingDisabledSkipsValidation(t *testing.T) {
	cfg := config.Default()
	cfg.Geocoding.Enabled = false
	cfg.Geocoding.BaseURL = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled geocoding should not validate base_url: %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[workflow]") {
		t.Fatalf("sample missing workflow section")
	}
}
