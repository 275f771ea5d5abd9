package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.AI.Provider = "skynet"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown provider accepted")
	}
}

func TestValidateRequiresKeyWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.AI.Enabled = true
	cfg.AI.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled ai without key accepted")
	}
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Scheduler.TimeboxSeconds = 0 },
		func(c *Config) { c.Scheduler.TickSeconds = -1 },
		func(c *Config) { c.Scheduler.WatchSeconds = 0 },
	} {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("invalid interval accepted: %+v", cfg.Scheduler)
		}
	}
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	data := []byte(`
ai:
  provider: anthropic
  api_key: a-key
  model: claude-3-5-haiku
  enabled: true
scheduler:
  timebox_seconds: 3600
`)
	cfg, err := FromYAML(data)
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cfg.AI.Provider != "anthropic" || cfg.Scheduler.TimeboxSeconds != 3600 {
		t.Fatalf("got %+v", cfg)
	}
	// untouched knobs keep their defaults
	if cfg.Scheduler.TickSeconds != 1 || cfg.AI.Temperature != 0.8 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config, got %+v", cfg)
	}
}

func TestLoadOptionalReadsWorkspaceFile(t *testing.T) {
	workspace := t.TempDir()
	data := []byte("scheduler:\n  watch_seconds: 5\n")
	if err := os.WriteFile(filepath.Join(workspace, "nag.yml"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadOptional(workspace)
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg == nil || cfg.Scheduler.WatchSeconds != 5 {
		t.Fatalf("got %+v", cfg)
	}
}
