// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every knob the service reads. The Postgres DSN doubles as
// the backend capability flag: it is inspected once at startup and the
// resulting backend choice never changes for the process lifetime.
type Config struct {
	ListenAddr  string        `env:"SENTRA_LISTEN_ADDR" envDefault:":8080"`
	PostgresDSN string        `env:"SENTRA_PG_DSN"`
	StatePath   string        `env:"SENTRA_STATE_PATH" envDefault:"sentra-state.db"`
	TokenSecret string        `env:"SENTRA_AUTH_SECRET"`
	TokenTTL    time.Duration `env:"SENTRA_TOKEN_TTL" envDefault:"12h"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// RemoteEnabled reports whether the remote relational backend is configured.
func (c Config) RemoteEnabled() bool {
	return strings.TrimSpace(c.PostgresDSN) != ""
}
