package provider

import (
	"fmt"
	"strings"
	"time"

	"nag/internal/config"
)

// New selects the provider variant for the configured provider id.
func New(cfg config.AIConfig, timeout time.Duration) (Completer, error) {
	id := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %q selected but api key is missing", id)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider %q selected but model is missing", id)
	}
	switch id {
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.Endpoint, timeout), nil
	case "gemini":
		return NewGemini(cfg.APIKey, cfg.Model, cfg.Endpoint, timeout), nil
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.Model, cfg.Endpoint, timeout), nil
	case "":
		return nil, fmt.Errorf("no provider specified in configuration")
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
