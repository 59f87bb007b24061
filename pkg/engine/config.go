package engine

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/motion/pkg/accessibility"
	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/errors"
	"github.com/go-drift/motion/pkg/quality"
)

// Scheduler defaults.
const (
	DefaultMaxConcurrency = quality.DefaultMaxCap
	DefaultTraceSamples   = 240
)

// Config carries every tunable of the engine.
type Config struct {
	// MaxConcurrency caps simultaneously admitted (Running or Paused)
	// entries at full quality.
	MaxConcurrency int `yaml:"max_concurrency" toml:"max_concurrency" json:"max_concurrency"`
	// MaxStep bounds one spring integration step.
	MaxStep time.Duration `yaml:"max_step" toml:"max_step" json:"max_step"`
	// TraceSamples is the number of recent ticks kept for diagnostics.
	TraceSamples int `yaml:"trace_samples" toml:"trace_samples" json:"trace_samples"`

	Quality       quality.Config       `yaml:"quality" toml:"quality" json:"quality"`
	Accessibility accessibility.Limits `yaml:"accessibility" toml:"accessibility" json:"accessibility"`

	Logger zerolog.Logger `yaml:"-" toml:"-" json:"-"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	q := quality.DefaultConfig()
	q.MaxCap = DefaultMaxConcurrency
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		MaxStep:        animation.DefaultMaxStep,
		TraceSamples:   DefaultTraceSamples,
		Quality:        q,
		Accessibility:  accessibility.DefaultLimits(),
		Logger:         zerolog.Nop(),
	}
}

// withDefaults fills zero fields. The quality controller's max cap always
// follows MaxConcurrency.
func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MaxStep <= 0 {
		c.MaxStep = animation.DefaultMaxStep
	}
	if c.TraceSamples <= 0 {
		c.TraceSamples = DefaultTraceSamples
	}
	c.Quality.MaxCap = c.MaxConcurrency
	if c.Quality.MinCap > c.MaxConcurrency {
		c.Quality.MinCap = c.MaxConcurrency
	}
	c.Quality = c.Quality.WithDefaults()
	c.Accessibility = c.Accessibility.WithDefaults()
	c.Quality.Logger = c.Logger
	return c
}

// Validate rejects impossible combinations. Zero fields are valid; they are
// filled from DefaultConfig.
func (c Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return configError("max_concurrency must be >= 0")
	}
	if c.MaxStep < 0 {
		return configError("max_step must be >= 0")
	}
	if c.Accessibility.ReducedMotionDuration > accessibility.MaxReducedMotionDuration {
		return configError(fmt.Sprintf("reduced_motion_duration %v exceeds %v",
			c.Accessibility.ReducedMotionDuration, accessibility.MaxReducedMotionDuration))
	}
	limit := c.MaxConcurrency
	if limit == 0 {
		limit = DefaultMaxConcurrency
	}
	if c.Quality.MinCap > limit {
		return configError(fmt.Sprintf("quality.min_cap %d exceeds max_concurrency %d", c.Quality.MinCap, limit))
	}
	q := c.Quality
	q.MaxCap = limit
	q = q.WithDefaults()
	if err := q.Validate(); err != nil {
		return &errors.MotionError{Op: "engine.config", Kind: errors.KindConfig, Err: err}
	}
	return nil
}

func configError(msg string) error {
	return &errors.MotionError{Op: "engine.config", Kind: errors.KindConfig, Err: stderrors.New(msg)}
}
