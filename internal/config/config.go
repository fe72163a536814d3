// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings shared by every command. Flags override the
// environment.
type Config struct {
	// MaxPasses caps propagation passes per subevent.
	MaxPasses int `env:"GRIMOIRE_MAX_PASSES" envDefault:"64"`

	// MaxDepth caps nested subevent invocation.
	MaxDepth int `env:"GRIMOIRE_MAX_DEPTH" envDefault:"16"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `env:"GRIMOIRE_LOG_LEVEL" envDefault:"warn"`

	// DB is the trace database path. Empty disables trace recording.
	DB string `env:"GRIMOIRE_DB"`

	// Seed seeds the dice service.
	Seed int64 `env:"GRIMOIRE_SEED" envDefault:"0"`
}

// Load parses the environment into a Config and validates it.
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

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.MaxPasses < 1 {
		return fmt.Errorf("max passes must be at least 1, got %d", c.MaxPasses)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", c.MaxDepth)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level. Invalid levels fall back to warn.
func (c Config) Level() slog.Level {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return lvl
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
