package backoff

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/utkarsh5026/retryme/internal/algorithms"
)

// Defaults applied when the corresponding option is not given.
const (
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0
	DefaultMaxRetries   = 5
	DefaultJitter       = 0.1
)

// Config is the resolved retry configuration of a controller.
// It is fixed for the controller's lifetime and echoed back by Controller.Config.
type Config struct {
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // ceiling for the un-jittered delay
	Multiplier   float64       // growth factor per attempt; <= 1 means no growth
	MaxRetries   int           // attempts beyond the initial try
	Jitter       float64       // random additive fraction in [0, 1]
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		MaxRetries:   DefaultMaxRetries,
		Jitter:       DefaultJitter,
	}
}

// Validate reports every constraint the configuration violates.
func (c Config) Validate() error {
	var errs []error
	if c.InitialDelay <= 0 {
		errs = append(errs, fmt.Errorf("initial delay must be > 0, got %v", c.InitialDelay))
	}
	if c.MaxDelay < c.InitialDelay {
		errs = append(errs, fmt.Errorf("max delay %v must be >= initial delay %v", c.MaxDelay, c.InitialDelay))
	}
	if c.Multiplier <= 0 {
		errs = append(errs, fmt.Errorf("multiplier must be > 0, got %v", c.Multiplier))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries))
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		errs = append(errs, fmt.Errorf("jitter must be within [0, 1], got %v", c.Jitter))
	}
	return errors.Join(errs...)
}

func (c Config) params() algorithms.Params {
	return algorithms.Params{
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
		Jitter:       c.Jitter,
	}
}

// Option is a functional option for configuring a Controller.
type Option func(*controllerConfig)

type controllerConfig struct {
	Config
	rateLimiter *rate.Limiter
	logger      *slog.Logger
	metrics     *Metrics
	rng         RandSource
	onRetry     func(attempt int, err error, delay time.Duration)
}

// WithInitialDelay sets the delay before the first retry.
// Non-positive values are ignored.
func WithInitialDelay(d time.Duration) Option {
	return func(cfg *controllerConfig) {
		if d > 0 {
			cfg.InitialDelay = d
		}
	}
}

// WithMaxDelay caps the un-jittered delay.
// Non-positive values are ignored; a value below the initial delay is raised to it.
func WithMaxDelay(d time.Duration) Option {
	return func(cfg *controllerConfig) {
		if d > 0 {
			cfg.MaxDelay = d
		}
	}
}

// WithMultiplier sets the growth factor applied per attempt.
// Non-positive values are ignored; values in (0, 1] keep the delay constant.
func WithMultiplier(m float64) Option {
	return func(cfg *controllerConfig) {
		if m > 0 {
			cfg.Multiplier = m
		}
	}
}

// WithMaxRetries sets how many retries follow the initial attempt.
// Zero disables retrying; negative values are ignored.
func WithMaxRetries(n int) Option {
	return func(cfg *controllerConfig) {
		if n >= 0 {
			cfg.MaxRetries = n
		}
	}
}

// WithJitter sets the random additive fraction of each delay.
// Values outside [0, 1] are ignored.
func WithJitter(j float64) Option {
	return func(cfg *controllerConfig) {
		if j >= 0 && j <= 1 {
			cfg.Jitter = j
		}
	}
}

// WithRateLimit throttles attempts across every execution of the controller.
// attemptsPerSecond specifies the sustained rate, burst how many attempts may
// start back to back. If not specified, attempts are never throttled.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 attempts/sec with burst of 5
func WithRateLimit(attemptsPerSecond float64, burst int) Option {
	return func(cfg *controllerConfig) {
		if attemptsPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(attemptsPerSecond), burst)
		}
	}
}

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *controllerConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithMetrics records attempts, retries and delays into m.
func WithMetrics(m *Metrics) Option {
	return func(cfg *controllerConfig) {
		cfg.metrics = m
	}
}

// WithRandSource replaces the jitter random source, mainly for tests.
func WithRandSource(src RandSource) Option {
	return func(cfg *controllerConfig) {
		if src != nil {
			cfg.rng = src
		}
	}
}

// WithOnRetry registers a hook called every time a retry is scheduled,
// right before the controller starts waiting. attempt is the 1-based number
// of the attempt that just failed.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(cfg *controllerConfig) {
		cfg.onRetry = fn
	}
}

func createConfig(opts ...Option) *controllerConfig {
	cfg := &controllerConfig{
		Config: DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}

	return cfg
}
