// Package config loads retrydemo settings from an optional YAML file and
// RETRY_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/retryme/backoff"
)

// Config holds the backoff settings plus the knobs of the simulation.
type Config struct {
	Backoff BackoffConfig    `yaml:"backoff"`
	Sim     SimulationConfig `yaml:"simulation"`
}

// BackoffConfig mirrors backoff.Config with YAML-friendly durations.
type BackoffConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxRetries   int           `yaml:"max_retries"`
	Jitter       float64       `yaml:"jitter"`
	RateLimit    float64       `yaml:"rate_limit"` // attempts per second, 0 = unlimited
	RateBurst    int           `yaml:"rate_burst"`
}

// SimulationConfig drives `retrydemo run`.
type SimulationConfig struct {
	Operations  int           `yaml:"operations"`
	Workers     int           `yaml:"workers"`
	FailureRate float64       `yaml:"failure_rate"`
	Latency     time.Duration `yaml:"latency"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	d := backoff.DefaultConfig()
	return &Config{
		Backoff: BackoffConfig{
			InitialDelay: d.InitialDelay,
			MaxDelay:     d.MaxDelay,
			Multiplier:   d.Multiplier,
			MaxRetries:   d.MaxRetries,
			Jitter:       d.Jitter,
			RateBurst:    1,
		},
		Sim: SimulationConfig{
			Operations:  20,
			Workers:     4,
			FailureRate: 0.5,
			Latency:     20 * time.Millisecond,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment variables. A .env file in the working
// directory is loaded first when present; it never overrides variables that
// are already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	b := &c.Backoff
	b.InitialDelay = getEnvDuration("RETRY_INITIAL_DELAY", b.InitialDelay)
	b.MaxDelay = getEnvDuration("RETRY_MAX_DELAY", b.MaxDelay)
	b.Multiplier = getEnvFloat("RETRY_MULTIPLIER", b.Multiplier)
	b.MaxRetries = getEnvInt("RETRY_MAX_RETRIES", b.MaxRetries)
	b.Jitter = getEnvFloat("RETRY_JITTER", b.Jitter)
	b.RateLimit = getEnvFloat("RETRY_RATE_LIMIT", b.RateLimit)
	b.RateBurst = getEnvInt("RETRY_RATE_BURST", b.RateBurst)

	s := &c.Sim
	s.Operations = getEnvInt("RETRY_SIM_OPERATIONS", s.Operations)
	s.Workers = getEnvInt("RETRY_SIM_WORKERS", s.Workers)
	s.FailureRate = getEnvFloat("RETRY_SIM_FAILURE_RATE", s.FailureRate)
	s.Latency = getEnvDuration("RETRY_SIM_LATENCY", s.Latency)
}

// BackoffConfig returns the library view of the backoff settings.
func (c *Config) BackoffConfig() backoff.Config {
	return backoff.Config{
		InitialDelay: c.Backoff.InitialDelay,
		MaxDelay:     c.Backoff.MaxDelay,
		Multiplier:   c.Backoff.Multiplier,
		MaxRetries:   c.Backoff.MaxRetries,
		Jitter:       c.Backoff.Jitter,
	}
}

// Validate checks the backoff settings and the simulation knobs.
func (c *Config) Validate() error {
	var errs []error
	if err := c.BackoffConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Backoff.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must be >= 0, got %v", c.Backoff.RateLimit))
	}
	if c.Backoff.RateLimit > 0 && c.Backoff.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("rate burst must be > 0 when rate limiting, got %d", c.Backoff.RateBurst))
	}
	if c.Sim.Operations <= 0 {
		errs = append(errs, fmt.Errorf("operations must be > 0, got %d", c.Sim.Operations))
	}
	if c.Sim.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be > 0, got %d", c.Sim.Workers))
	}
	if c.Sim.FailureRate < 0 || c.Sim.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("failure rate must be 0-1, got %v", c.Sim.FailureRate))
	}
	return errors.Join(errs...)
}

// Options converts the settings into controller options.
func (c *Config) Options() []backoff.Option {
	b := c.Backoff
	opts := []backoff.Option{
		backoff.WithInitialDelay(b.InitialDelay),
		backoff.WithMaxDelay(b.MaxDelay),
		backoff.WithMultiplier(b.Multiplier),
		backoff.WithMaxRetries(b.MaxRetries),
		backoff.WithJitter(b.Jitter),
	}
	if b.RateLimit > 0 {
		opts = append(opts, backoff.WithRateLimit(b.RateLimit, b.RateBurst))
	}
	return opts
}

// Helper functions
func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
