package config

import (
	"fmt"
	"os"
	"strings"
)

// Provider names selectable via the AI_PROVIDER environment variable.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderMistral   = "mistral"
)

// Config holds all runtime configuration for the agent gateway.
// It is loaded once at startup and passed explicitly to every component;
// nothing outside this package reads the environment.
type Config struct {
	Port        string
	JWTSecret   string
	DatabaseURL string

	// Provider selects which backend adapter handles model calls.
	Provider string

	GeminiAPIKey    string
	AnthropicAPIKey string
	MistralAPIKey   string

	// PexelsAPIKey enables server-side execution of the image search tool.
	// When empty the action is recorded but left to the client.
	PexelsAPIKey string

	// BuildServiceURL points at the external build runner used to verify
	// snapshots. When empty, run_build_and_lint is treated as passing.
	BuildServiceURL string
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            envOr("PORT", "8080"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Provider:        strings.ToLower(envOr("AI_PROVIDER", ProviderGemini)),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		MistralAPIKey:   os.Getenv("MISTRAL_API_KEY"),
		PexelsAPIKey:    os.Getenv("PEXELS_API_KEY"),
		BuildServiceURL: os.Getenv("BUILD_SERVICE_URL"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	switch cfg.Provider {
	case ProviderGemini, ProviderAnthropic, ProviderMistral:
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER %q", cfg.Provider)
	}

	return cfg, nil
}

// ProviderAPIKey returns the credential for the selected provider, or an
// empty string when the operator has not configured one.
func (c *Config) ProviderAPIKey() string {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderMistral:
		return c.MistralAPIKey
	default:
		return ""
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
