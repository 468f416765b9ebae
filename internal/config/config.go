// Package config loads the tool's environment configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the environment configuration. CLI flags override it.
type Config struct {
	DB        string `env:"DURABLE_DB"         envDefault:"durable.db"`
	LogLevel  string `env:"DURABLE_LOG_LEVEL"  envDefault:"info"`
	MaxPasses int    `env:"DURABLE_MAX_PASSES" envDefault:"100"`
	Format    string `env:"DURABLE_FORMAT"     envDefault:"text"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the environment configuration.
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

// Validate checks value ranges that struct tags cannot express.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxPasses < 1 {
		return fmt.Errorf("DURABLE_MAX_PASSES must be at least 1, got %d", c.MaxPasses)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("DURABLE_FORMAT must be text or json, got %q", c.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}
