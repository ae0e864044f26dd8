// Package config loads application configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the full application configuration. Provider API keys are read
// by the provider packages themselves (ANTHROPIC_API_KEY, OPENAI_API_KEY);
// everything else lives here.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Provider selects the default provider for new sessions.
	Provider string `env:"TURNWIRE_PROVIDER" envDefault:"anthropic"`
	Model    string `env:"TURNWIRE_MODEL"`

	// Store selects the session store backend: memory, sqlite, postgres
	// or nats.
	Store       string `env:"TURNWIRE_STORE" envDefault:"memory"`
	SQLitePath  string `env:"TURNWIRE_SQLITE_PATH" envDefault:"turnwire.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	NATSDir     string `env:"TURNWIRE_NATS_DIR" envDefault:".turnwire/nats"`

	// AutoGrant makes the engine run gated tools without asking.
	AutoGrant bool `env:"TURNWIRE_AUTO_GRANT" envDefault:"false"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
