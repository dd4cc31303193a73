// Package config loads process configuration from FORMSTATE_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// AvailabilityBackend names the username directory the CLI talks to.
type AvailabilityBackend string

const (
	BackendStatic AvailabilityBackend = "static"
	BackendHTTP   AvailabilityBackend = "http"
	BackendSQL    AvailabilityBackend = "sql"
)

// Config is the environment-driven configuration.
type Config struct {
	LogLevel  string `env:"FORMSTATE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"FORMSTATE_LOG_FORMAT" envDefault:"console"`

	AvailabilityURL     string        `env:"FORMSTATE_AVAILABILITY_URL"`
	AvailabilityDSN     string        `env:"FORMSTATE_AVAILABILITY_DSN"`
	TakenUsernames      []string      `env:"FORMSTATE_TAKEN_USERNAMES" envSeparator:"," envDefault:"admin,root,bob"`
	AvailabilityLatency time.Duration `env:"FORMSTATE_AVAILABILITY_LATENCY" envDefault:"0s"`
	RetryMax            uint64        `env:"FORMSTATE_RETRY_MAX" envDefault:"2"`

	CacheSize int           `env:"FORMSTATE_CACHE_SIZE" envDefault:"256"`
	CacheTTL  time.Duration `env:"FORMSTATE_CACHE_TTL" envDefault:"30s"`

	MetricsAddr string `env:"FORMSTATE_METRICS_ADDR"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	if c.AvailabilityURL != "" && c.AvailabilityDSN != "" {
		return fmt.Errorf("config: FORMSTATE_AVAILABILITY_URL and FORMSTATE_AVAILABILITY_DSN are mutually exclusive")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("config: FORMSTATE_CACHE_SIZE must not be negative")
	}
	if c.AvailabilityLatency < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("config: durations must not be negative")
	}
	return nil
}

// Backend reports which availability directory the settings select.
func (c Config) Backend() AvailabilityBackend {
	switch {
	case strings.TrimSpace(c.AvailabilityURL) != "":
		return BackendHTTP
	case strings.TrimSpace(c.AvailabilityDSN) != "":
		return BackendSQL
	default:
		return BackendStatic
	}
}
