// Package quality adapts effect fidelity and the scheduler's concurrency cap
// to measured tick cost.
//
// The [Controller] keeps a sliding window of tick durations. When too many
// exceed the frame budget it steps down one level; when almost none do for
// a full window it steps back up. Level 0 is full quality. Level 1 moves
// blur-class effects off the GPU. Every further level lowers the cap by a
// fixed decrement down to a floor.
package quality

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/motion/pkg/effects"
)

// Defaults.
const (
	DefaultBudget        = 16600 * time.Microsecond
	DefaultWindow        = 30
	DefaultDownThreshold = 0.40
	DefaultUpThreshold   = 0.05
	DefaultMinDwell      = 250 * time.Millisecond
	DefaultMaxCap        = 1000
	DefaultMinCap        = 50
	DefaultCapDecrement  = 100
)

// Config configures a Controller.
type Config struct {
	// Budget is the per-tick time budget; longer ticks count as overruns.
	Budget time.Duration `yaml:"budget" toml:"budget" json:"budget"`
	// Window is the number of ticks in the sliding window.
	Window int `yaml:"window" toml:"window" json:"window"`
	// DownThreshold is the overrun fraction above which quality drops.
	DownThreshold float64 `yaml:"down_threshold" toml:"down_threshold" json:"down_threshold"`
	// UpThreshold is the overrun fraction below which quality recovers.
	UpThreshold float64 `yaml:"up_threshold" toml:"up_threshold" json:"up_threshold"`
	// MinDwell is the minimum time between two adjustments.
	MinDwell time.Duration `yaml:"min_dwell" toml:"min_dwell" json:"min_dwell"`
	// MaxCap is the cap at levels 0 and 1.
	MaxCap int `yaml:"max_cap" toml:"max_cap" json:"max_cap"`
	// MinCap is the floor for cap reductions.
	MinCap int `yaml:"min_cap" toml:"min_cap" json:"min_cap"`
	// CapDecrement is the cap reduction per level.
	CapDecrement int `yaml:"cap_decrement" toml:"cap_decrement" json:"cap_decrement"`

	Logger zerolog.Logger `yaml:"-" toml:"-" json:"-"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Budget:        DefaultBudget,
		Window:        DefaultWindow,
		DownThreshold: DefaultDownThreshold,
		UpThreshold:   DefaultUpThreshold,
		MinDwell:      DefaultMinDwell,
		MaxCap:        DefaultMaxCap,
		MinCap:        DefaultMinCap,
		CapDecrement:  DefaultCapDecrement,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Budget <= 0 {
		c.Budget = d.Budget
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.DownThreshold <= 0 {
		c.DownThreshold = d.DownThreshold
	}
	if c.UpThreshold <= 0 {
		c.UpThreshold = d.UpThreshold
	}
	if c.MinDwell < 0 {
		c.MinDwell = 0
	}
	if c.MaxCap <= 0 {
		c.MaxCap = d.MaxCap
	}
	if c.MinCap <= 0 {
		c.MinCap = min(d.MinCap, c.MaxCap)
	}
	if c.CapDecrement <= 0 {
		c.CapDecrement = d.CapDecrement
	}
	return c
}

// Validate rejects configurations that would oscillate or never adjust.
func (c Config) Validate() error {
	switch {
	case c.DownThreshold <= c.UpThreshold:
		return fmt.Errorf("quality: down threshold %.2f must exceed up threshold %.2f", c.DownThreshold, c.UpThreshold)
	case c.DownThreshold > 1:
		return fmt.Errorf("quality: down threshold %.2f must be <= 1", c.DownThreshold)
	case c.MinCap > c.MaxCap:
		return fmt.Errorf("quality: min cap %d exceeds max cap %d", c.MinCap, c.MaxCap)
	}
	return nil
}

// Level is one step of the quality ladder.
type Level struct {
	Index    int
	Cap      int
	Fidelity effects.Fidelity
}

// String returns a compact description.
func (l Level) String() string {
	return fmt.Sprintf("level %d (cap %d, %s fidelity)", l.Index, l.Cap, l.Fidelity)
}

// Controller adjusts quality from reported tick costs. Report is called from
// the tick goroutine; the accessors are safe from any goroutine.
type Controller struct {
	cfg    Config
	window *Window
	log    zerolog.Logger

	mu         sync.RWMutex
	level      int
	maxLevel   int
	lastChange time.Time
	listeners  []func(Level)
}

// NewController creates a controller at full quality. cfg is completed with
// defaults first.
func NewController(cfg Config) *Controller {
	cfg = cfg.WithDefaults()
	maxLevel := 1
	if span := cfg.MaxCap - cfg.MinCap; span > 0 {
		maxLevel += (span + cfg.CapDecrement - 1) / cfg.CapDecrement
	}
	return &Controller{
		cfg:      cfg,
		window:   NewWindow(cfg.Window),
		log:      cfg.Logger,
		maxLevel: maxLevel,
	}
}

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// OnChange registers fn to be called after every level change, from the
// goroutine calling Report.
func (c *Controller) OnChange(fn func(Level)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Report records the cost of the tick that ran at now and adjusts the level
// when the window warrants it. It returns the level in effect afterwards and
// whether it changed.
func (c *Controller) Report(now time.Time, cost time.Duration) (Level, bool) {
	c.window.Add(cost)

	c.mu.Lock()
	if !c.window.Full() || (!c.lastChange.IsZero() && now.Sub(c.lastChange) < c.cfg.MinDwell) {
		lvl := c.levelLocked(c.level)
		c.mu.Unlock()
		return lvl, false
	}

	overrun := c.window.OverrunFraction(c.cfg.Budget)
	next := c.level
	switch {
	case overrun > c.cfg.DownThreshold && c.level < c.maxLevel:
		next++
	case overrun < c.cfg.UpThreshold && c.level > 0:
		next--
	}
	if next == c.level {
		lvl := c.levelLocked(c.level)
		c.mu.Unlock()
		return lvl, false
	}

	prev := c.level
	c.level = next
	c.lastChange = now
	c.window.Reset()
	lvl := c.levelLocked(next)
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	c.log.Info().
		Int("from", prev).
		Int("level", lvl.Index).
		Int("cap", lvl.Cap).
		Str("fidelity", lvl.Fidelity.String()).
		Float64("overrun", overrun).
		Msg("quality level changed")

	for _, fn := range listeners {
		fn(lvl)
	}
	return lvl, true
}

// Level returns the current level.
func (c *Controller) Level() Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.levelLocked(c.level)
}

// Cap returns the current concurrency cap.
func (c *Controller) Cap() int { return c.Level().Cap }

// Fidelity returns the current effect fidelity.
func (c *Controller) Fidelity() effects.Fidelity { return c.Level().Fidelity }

// MaxLevel returns the lowest-quality level index.
func (c *Controller) MaxLevel() int { return c.maxLevel }

// OverrunFraction returns the overrun fraction of the current window.
func (c *Controller) OverrunFraction() float64 {
	return c.window.OverrunFraction(c.cfg.Budget)
}

// Samples returns the tick costs in the current window.
func (c *Controller) Samples() []time.Duration {
	return c.window.Samples()
}

func (c *Controller) levelLocked(i int) Level {
	lvl := Level{Index: i, Cap: c.cfg.MaxCap, Fidelity: effects.FidelityFull}
	if i >= 1 {
		lvl.Fidelity = effects.FidelityReduced
	}
	if i >= 2 {
		lvl.Cap = max(c.cfg.MinCap, c.cfg.MaxCap-(i-1)*c.cfg.CapDecrement)
	}
	return lvl
}
