// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/kittclouds/codexkitt/internal/aicontext"
)

// Config holds every tunable of the pipeline.
type Config struct {
	DBPath    string `env:"CODEX_DB_PATH" envDefault:"codex.db"`
	LogLevel  string `env:"CODEX_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CODEX_LOG_FORMAT" envDefault:"console"`
	LogFile   string `env:"CODEX_LOG_FILE"`

	CascadeDepth   int           `env:"CODEX_CASCADE_DEPTH" envDefault:"1"`
	ModelLimit     int           `env:"CODEX_MODEL_LIMIT" envDefault:"8192"`
	ContextReserve float64       `env:"CODEX_CONTEXT_RESERVE" envDefault:"0.5"`
	ContextTimeout time.Duration `env:"CODEX_CONTEXT_TIMEOUT" envDefault:"5s"`
	ScanDebounce   time.Duration `env:"CODEX_SCAN_DEBOUNCE" envDefault:"2s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the given dotenv files (".env" when none are named), then the
// process environment. Missing dotenv files are ignored. Variables already
// set in the environment win over dotenv values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.CascadeDepth < 0 {
		return fmt.Errorf("config: CODEX_CASCADE_DEPTH must be >= 0, got %d", c.CascadeDepth)
	}
	if c.ModelLimit < 0 {
		return fmt.Errorf("config: CODEX_MODEL_LIMIT must be >= 0, got %d", c.ModelLimit)
	}
	if c.ContextReserve < 0 || c.ContextReserve > 1 {
		return fmt.Errorf("config: CODEX_CONTEXT_RESERVE must be within [0, 1], got %v", c.ContextReserve)
	}
	if c.ContextTimeout < 0 || c.ScanDebounce < 0 {
		return errors.New("config: durations must not be negative")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: CODEX_LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// Context returns the builder settings.
func (c *Config) Context() aicontext.Config {
	return aicontext.Config{
		Depth:          c.CascadeDepth,
		ModelLimit:     c.ModelLimit,
		ContextReserve: c.ContextReserve,
		Timeout:        c.ContextTimeout,
	}
}
