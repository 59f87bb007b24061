// Package config loads the motion CLI configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/motion/pkg/accessibility"
	"github.com/go-drift/motion/pkg/engine"
	"github.com/go-drift/motion/pkg/quality"
)

// SchemaVersion is the configuration schema written by this release.
const SchemaVersion = "v1.0.0"

// DefaultFile is the file LoadOptional looks for.
const DefaultFile = "motion.yaml"

// Duration is a time.Duration written as a string such as "16.6ms".
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config represents a motion configuration file. Zero values mean
// "unspecified" and are replaced by the engine defaults.
type Config struct {
	Version       string              `yaml:"version" toml:"version" json:"version"`
	Engine        EngineConfig        `yaml:"engine" toml:"engine" json:"engine"`
	Quality       QualityConfig       `yaml:"quality" toml:"quality" json:"quality"`
	Accessibility AccessibilityConfig `yaml:"accessibility" toml:"accessibility" json:"accessibility"`
	Effects       EffectsConfig       `yaml:"effects" toml:"effects" json:"effects"`
	Diagnostics   DiagnosticsConfig   `yaml:"diagnostics" toml:"diagnostics" json:"diagnostics"`
}

// EngineConfig contains scheduler settings.
type EngineConfig struct {
	MaxConcurrency int      `yaml:"max_concurrency" toml:"max_concurrency" json:"max_concurrency"`
	MaxStep        Duration `yaml:"max_step" toml:"max_step" json:"max_step"`
	TraceSamples   int      `yaml:"trace_samples" toml:"trace_samples" json:"trace_samples"`
}

// QualityConfig contains quality controller settings.
type QualityConfig struct {
	Budget        Duration `yaml:"budget" toml:"budget" json:"budget"`
	Window        int      `yaml:"window" toml:"window" json:"window"`
	DownThreshold float64  `yaml:"down_threshold" toml:"down_threshold" json:"down_threshold"`
	UpThreshold   float64  `yaml:"up_threshold" toml:"up_threshold" json:"up_threshold"`
	MinDwell      Duration `yaml:"min_dwell" toml:"min_dwell" json:"min_dwell"`
	MinCap        int      `yaml:"min_cap" toml:"min_cap" json:"min_cap"`
	CapDecrement  int      `yaml:"cap_decrement" toml:"cap_decrement" json:"cap_decrement"`
}

// AccessibilityConfig contains motion preferences and policy limits.
type AccessibilityConfig struct {
	ReducedMotion         bool     `yaml:"reduced_motion" toml:"reduced_motion" json:"reduced_motion"`
	VestibularSafety      bool     `yaml:"vestibular_safety" toml:"vestibular_safety" json:"vestibular_safety"`
	ReducedMotionDuration Duration `yaml:"reduced_motion_duration" toml:"reduced_motion_duration" json:"reduced_motion_duration"`
	MaxTranslation        float64  `yaml:"max_translation" toml:"max_translation" json:"max_translation"`
	MaxScaleDelta         float64  `yaml:"max_scale_delta" toml:"max_scale_delta" json:"max_scale_delta"`
	MaxSpringVelocity     float64  `yaml:"max_spring_velocity" toml:"max_spring_velocity" json:"max_spring_velocity"`
}

// EffectsConfig contains effect backend settings.
type EffectsConfig struct {
	GPU                  bool     `yaml:"gpu" toml:"gpu" json:"gpu"`
	ForceFallbackAdapter bool     `yaml:"force_fallback_adapter" toml:"force_fallback_adapter" json:"force_fallback_adapter"`
	ProbeTimeout         Duration `yaml:"probe_timeout" toml:"probe_timeout" json:"probe_timeout"`
}

// DiagnosticsConfig contains diagnostics server settings.
type DiagnosticsConfig struct {
	Addr            string   `yaml:"addr" toml:"addr" json:"addr"`
	AllowedOrigins  []string `yaml:"allowed_origins" toml:"allowed_origins" json:"allowed_origins"`
	RuntimeInterval Duration `yaml:"runtime_interval" toml:"runtime_interval" json:"runtime_interval"`
	RuntimeWindow   Duration `yaml:"runtime_window" toml:"runtime_window" json:"runtime_window"`
}

// Default returns a configuration with the schema version set and every
// other field unspecified.
func Default() *Config {
	return &Config{Version: SchemaVersion}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("empty config path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext and validates it.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	switch ext = strings.ToLower(ext); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config extension: %q", ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional reads motion.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, DefaultFile))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks the schema version and the engine settings.
func (c *Config) Validate() error {
	v := strings.TrimSpace(c.Version)
	if v == "" {
		c.Version = SchemaVersion
	} else {
		if !strings.HasPrefix(v, "v") {
			v = "v" + v
		}
		if !semver.IsValid(v) {
			return fmt.Errorf("version %q is not a semantic version", c.Version)
		}
		if semver.Major(v) != semver.Major(SchemaVersion) {
			return fmt.Errorf("version %s is not supported (want %s.x.y)", v, semver.Major(SchemaVersion))
		}
		c.Version = v
	}
	return c.EngineConfig().Validate()
}

// EngineConfig converts the file settings to an engine configuration.
// Unspecified fields keep the engine defaults.
func (c *Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if c.Engine.MaxConcurrency != 0 {
		cfg.MaxConcurrency = c.Engine.MaxConcurrency
		cfg.Quality.MaxCap = c.Engine.MaxConcurrency
	}
	if c.Engine.MaxStep != 0 {
		cfg.MaxStep = time.Duration(c.Engine.MaxStep)
	}
	if c.Engine.TraceSamples != 0 {
		cfg.TraceSamples = c.Engine.TraceSamples
	}

	q := c.Quality
	setDuration(&cfg.Quality.Budget, q.Budget)
	setInt(&cfg.Quality.Window, q.Window)
	setFloat(&cfg.Quality.DownThreshold, q.DownThreshold)
	setFloat(&cfg.Quality.UpThreshold, q.UpThreshold)
	setDuration(&cfg.Quality.MinDwell, q.MinDwell)
	setInt(&cfg.Quality.MinCap, q.MinCap)
	setInt(&cfg.Quality.CapDecrement, q.CapDecrement)
	if cfg.Quality.MinCap > cfg.Quality.MaxCap && q.MinCap == 0 {
		cfg.Quality.MinCap = min(quality.DefaultMinCap, cfg.Quality.MaxCap)
	}

	a := c.Accessibility
	setDuration(&cfg.Accessibility.ReducedMotionDuration, a.ReducedMotionDuration)
	setFloat(&cfg.Accessibility.MaxTranslation, a.MaxTranslation)
	setFloat(&cfg.Accessibility.MaxScaleDelta, a.MaxScaleDelta)
	setFloat(&cfg.Accessibility.MaxSpringVelocity, a.MaxSpringVelocity)
	return cfg
}

// Flags returns the motion preferences from the file.
func (c *Config) Flags() accessibility.StaticFlags {
	return accessibility.StaticFlags{
		ReducedMotion:    c.Accessibility.ReducedMotion,
		VestibularSafety: c.Accessibility.VestibularSafety,
	}
}

func setDuration(dst *time.Duration, v Duration) {
	if v != 0 {
		*dst = time.Duration(v)
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}
