package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Providers is the closed set of completion services the adapter speaks to.
var Providers = []string{"openai", "gemini", "anthropic"}

// Config models nag.yml. The same structure is persisted as JSON in the
// settings table; the JSON field names are the wire names external consumers
// see.
type Config struct {
	AI        AIConfig        `yaml:"ai" json:"ai"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Normalize NormalizeConfig `yaml:"normalize" json:"normalize"`
}

// AIConfig selects and authenticates the completion provider.
type AIConfig struct {
	Provider        string  `yaml:"provider" json:"provider"`
	APIKey          string  `yaml:"api_key" json:"apiKey"`
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	AutoDetectTasks bool    `yaml:"auto_detect_tasks" json:"autoDetectTasks"`
	Endpoint        string  `yaml:"endpoint" json:"endpoint"`
	Model           string  `yaml:"model" json:"model"`
	Temperature     float64 `yaml:"temperature" json:"temperature"`
	MaxTokens       int     `yaml:"max_tokens" json:"maxTokens"`
}

// SchedulerConfig holds the accountability knobs: how long an undated task
// may stay open and how often the expiry loop runs.
type SchedulerConfig struct {
	TimeboxSeconds int `yaml:"timebox_seconds" json:"timeboxSeconds"`
	TickSeconds    int `yaml:"tick_seconds" json:"tickSeconds"`
	WatchSeconds   int `yaml:"watch_seconds" json:"watchSeconds"`
}

// NormalizeConfig exposes soft normalization policies.
type NormalizeConfig struct {
	// RejectLatinOnly treats an all-ASCII message as low confidence when a
	// non-Latin locale is expected and replaces it with a default pick.
	RejectLatinOnly bool `yaml:"reject_latin_only" json:"rejectLatinOnly"`
}

func (c SchedulerConfig) Timebox() time.Duration {
	return time.Duration(c.TimeboxSeconds) * time.Second
}

func (c SchedulerConfig) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

func (c SchedulerConfig) WatchTick() time.Duration {
	return time.Duration(c.WatchSeconds) * time.Second
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.AI.Enabled {
		if !validProvider(c.AI.Provider) {
			return fmt.Errorf("config.ai.provider must be one of %v, got %q", Providers, c.AI.Provider)
		}
		if c.AI.APIKey == "" {
			return fmt.Errorf("config.ai.api_key is required when ai.enabled is true")
		}
		if c.AI.Model == "" {
			return fmt.Errorf("config.ai.model is required when ai.enabled is true")
		}
	}
	if c.AI.Provider != "" && !validProvider(c.AI.Provider) {
		return fmt.Errorf("config.ai.provider must be one of %v, got %q", Providers, c.AI.Provider)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("config.ai.temperature must be in [0,2]")
	}
	if c.AI.MaxTokens < 0 {
		return fmt.Errorf("config.ai.max_tokens must be >= 0")
	}
	if c.Scheduler.TimeboxSeconds <= 0 {
		return fmt.Errorf("config.scheduler.timebox_seconds must be > 0")
	}
	if c.Scheduler.TickSeconds <= 0 {
		return fmt.Errorf("config.scheduler.tick_seconds must be > 0")
	}
	if c.Scheduler.WatchSeconds <= 0 {
		return fmt.Errorf("config.scheduler.watch_seconds must be > 0")
	}
	return nil
}

func validProvider(p string) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// Default returns the default Config struct.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Provider:        "openai",
			Enabled:         false,
			AutoDetectTasks: true,
			Model:           "gpt-4o-mini",
			Temperature:     0.8,
			MaxTokens:       300,
		},
		Scheduler: SchedulerConfig{
			TimeboxSeconds: 86400,
			TickSeconds:    1,
			WatchSeconds:   60,
		},
		Normalize: NormalizeConfig{RejectLatinOnly: false},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "nag.yml")
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the workspace config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}
