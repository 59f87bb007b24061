package accessibility

import (
	"math"
	"time"

	"github.com/go-drift/motion/pkg/animation"
)

// MaxReducedMotionDuration is the longest transition allowed while reduced
// motion is on.
const MaxReducedMotionDuration = 150 * time.Millisecond

// Limits bounds the rewrites performed by a Policy.
type Limits struct {
	// ReducedMotionDuration is the fixed duration of substituted fades.
	// Values above MaxReducedMotionDuration are clamped.
	ReducedMotionDuration time.Duration `yaml:"reduced_motion_duration" toml:"reduced_motion_duration" json:"reduced_motion_duration"`
	// MaxTranslation caps |To-From| of slides under vestibular safety.
	MaxTranslation float64 `yaml:"max_translation" toml:"max_translation" json:"max_translation"`
	// MaxScaleDelta caps |To-From| of scale animations under vestibular safety.
	MaxScaleDelta float64 `yaml:"max_scale_delta" toml:"max_scale_delta" json:"max_scale_delta"`
	// MaxSpringVelocity caps spring velocity under vestibular safety.
	MaxSpringVelocity float64 `yaml:"max_spring_velocity" toml:"max_spring_velocity" json:"max_spring_velocity"`
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		ReducedMotionDuration: MaxReducedMotionDuration,
		MaxTranslation:        48,
		MaxScaleDelta:         0.1,
		MaxSpringVelocity:     1000,
	}
}

// WithDefaults replaces non-positive fields with DefaultLimits values and
// clamps ReducedMotionDuration.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	switch {
	case l.ReducedMotionDuration <= 0:
		l.ReducedMotionDuration = d.ReducedMotionDuration
	case l.ReducedMotionDuration > MaxReducedMotionDuration:
		l.ReducedMotionDuration = MaxReducedMotionDuration
	}
	if !(l.MaxTranslation > 0) {
		l.MaxTranslation = d.MaxTranslation
	}
	if !(l.MaxScaleDelta > 0) {
		l.MaxScaleDelta = d.MaxScaleDelta
	}
	if !(l.MaxSpringVelocity > 0) {
		l.MaxSpringVelocity = d.MaxSpringVelocity
	}
	return l
}

// Policy rewrites animation specs according to the motion preferences.
//
// Apply is pure and total: it never fails, never mutates its argument, and
// a spec that passed Validate still passes after rewriting.
type Policy struct {
	// Source supplies the preferences. Nil means both are off.
	Source FlagSource
	Limits Limits
}

// NewPolicy returns a policy reading src with the given limits.
func NewPolicy(src FlagSource, limits Limits) *Policy {
	return &Policy{Source: src, Limits: limits.WithDefaults()}
}

// Apply returns spec adjusted to the current preferences.
func (p *Policy) Apply(spec animation.Spec) animation.Spec {
	if p == nil || p.Source == nil {
		return spec
	}
	return Rewrite(spec, p.Source.Flags(), p.Limits)
}

// Rewrite is Apply for an explicit preference snapshot.
//
// With reduced motion on, every kind other than Fade becomes a linear Fade
// of the fixed reduced duration that ends on the original To value; springs
// lose their physics and delays are dropped. Fades are left alone. Reduced
// motion takes precedence over vestibular safety.
//
// With vestibular safety on, slide distance, scale delta and spring velocity
// are clamped to the limits.
func Rewrite(spec animation.Spec, flags Flags, limits Limits) animation.Spec {
	limits = limits.WithDefaults()
	out := spec.Clone()

	if flags.ReducedMotion {
		if out.Kind != animation.Fade {
			out.Kind = animation.Fade
			out.Duration = limits.ReducedMotionDuration
			out.Curve = nil
			out.Spring = nil
			out.Delay = 0
		}
		return out
	}

	if !flags.VestibularSafety {
		return out
	}
	switch out.Kind {
	case animation.Slide:
		out.To = clampDelta(out.From, out.To, limits.MaxTranslation)
	case animation.Scale:
		out.To = clampDelta(out.From, out.To, limits.MaxScaleDelta)
	case animation.Spring:
		if out.Spring != nil {
			v := limits.MaxSpringVelocity
			out.Spring.InitialVelocity = math.Max(-v, math.Min(v, out.Spring.InitialVelocity))
			if out.Spring.MaxVelocity == 0 || out.Spring.MaxVelocity > v {
				out.Spring.MaxVelocity = v
			}
		}
	}
	return out
}

func clampDelta(from, to, limit float64) float64 {
	d := to - from
	if math.Abs(d) <= limit {
		return to
	}
	return from + math.Copysign(limit, d)
}
