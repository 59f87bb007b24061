package animation

import (
	"math"
	"time"

	"github.com/go-drift/motion/pkg/errors"
)

// Spring integrator defaults.
const (
	DefaultPositionEpsilon   = 0.01
	DefaultVelocityEpsilon   = 0.01
	DefaultSpringMaxDuration = 2 * time.Second
	// DefaultMaxStep bounds a single integration step so a stalled frame
	// (debugger pause, backgrounding) cannot blow the simulation up.
	DefaultMaxStep = time.Second / 30
)

// SpringParams configures a spring-damper animation.
type SpringParams struct {
	Mass      float64
	Stiffness float64
	Damping   float64

	// PositionEpsilon and VelocityEpsilon define settling. Zero selects the
	// package defaults.
	PositionEpsilon float64
	VelocityEpsilon float64

	// InitialVelocity seeds v, e.g. from a fling gesture.
	InitialVelocity float64
	// MaxVelocity clamps |v| after every step. Zero means unbounded.
	MaxVelocity float64
	// MaxDuration ends a spring that has not settled: it snaps to its target
	// and completes. Zero selects DefaultSpringMaxDuration.
	MaxDuration time.Duration
}

// GentleSpring settles softly with little overshoot.
func GentleSpring() SpringParams {
	return SpringParams{Mass: 1, Stiffness: 200, Damping: 25, MaxDuration: 1500 * time.Millisecond}
}

// BouncySpring overshoots visibly before settling.
func BouncySpring() SpringParams {
	return SpringParams{Mass: 1, Stiffness: 400, Damping: 20, MaxDuration: 2000 * time.Millisecond}
}

// StiffSpring settles fast, for page transitions.
func StiffSpring() SpringParams {
	return SpringParams{Mass: 1, Stiffness: 500, Damping: 40, MaxDuration: 1000 * time.Millisecond}
}

// WobblySpring is lightly damped and oscillates for a while.
func WobblySpring() SpringParams {
	return SpringParams{Mass: 1, Stiffness: 180, Damping: 12, MaxDuration: 2500 * time.Millisecond}
}

// DefaultSpring matches the classic (170, 26) UI spring.
func DefaultSpring() SpringParams {
	return SpringParams{Mass: 1, Stiffness: 170, Damping: 26}
}

var springPresets = map[string]func() SpringParams{
	"default": DefaultSpring,
	"gentle":  GentleSpring,
	"bouncy":  BouncySpring,
	"stiff":   StiffSpring,
	"wobbly":  WobblySpring,
}

// Preset returns a named spring preset.
func Preset(name string) (SpringParams, bool) {
	fn, ok := springPresets[name]
	if !ok {
		return SpringParams{}, false
	}
	return fn(), true
}

// CriticallyDampedSpring returns params with damping² = 4·stiffness·mass.
func CriticallyDampedSpring(mass, stiffness float64) SpringParams {
	return SpringParams{Mass: mass, Stiffness: stiffness, Damping: 2 * math.Sqrt(stiffness*mass)}
}

// Validate checks stiffness > 0, mass > 0 and damping >= 0.
func (p SpringParams) Validate() error {
	switch {
	case !(p.Mass > 0) || math.IsInf(p.Mass, 0):
		return &errors.ValidationError{Field: "Spring.Mass", Reason: "must be > 0"}
	case !(p.Stiffness > 0) || math.IsInf(p.Stiffness, 0):
		return &errors.ValidationError{Field: "Spring.Stiffness", Reason: "must be > 0"}
	case !(p.Damping >= 0) || math.IsInf(p.Damping, 0):
		return &errors.ValidationError{Field: "Spring.Damping", Reason: "must be >= 0"}
	case !(p.PositionEpsilon >= 0) || !(p.VelocityEpsilon >= 0):
		return &errors.ValidationError{Field: "Spring.Epsilon", Reason: "must be >= 0"}
	case !(p.MaxVelocity >= 0):
		return &errors.ValidationError{Field: "Spring.MaxVelocity", Reason: "must be >= 0"}
	case p.MaxDuration < 0:
		return &errors.ValidationError{Field: "Spring.MaxDuration", Reason: "must be >= 0"}
	case !finite(p.InitialVelocity):
		return &errors.ValidationError{Field: "Spring.InitialVelocity", Reason: "must be finite"}
	}
	return nil
}

// WithDefaults fills zero epsilons and MaxDuration.
func (p SpringParams) WithDefaults() SpringParams {
	if p.PositionEpsilon == 0 {
		p.PositionEpsilon = DefaultPositionEpsilon
	}
	if p.VelocityEpsilon == 0 {
		p.VelocityEpsilon = DefaultVelocityEpsilon
	}
	if p.MaxDuration == 0 {
		p.MaxDuration = DefaultSpringMaxDuration
	}
	return p
}

// DampingRatio returns ζ = damping / (2·√(stiffness·mass)).
func (p SpringParams) DampingRatio() float64 {
	return p.Damping / (2 * math.Sqrt(p.Stiffness*p.Mass))
}

// AngularFrequency returns ω = √(stiffness/mass).
func (p SpringParams) AngularFrequency() float64 {
	return math.Sqrt(p.Stiffness / p.Mass)
}

// IsCriticallyDamped reports whether damping² = 4·stiffness·mass.
func (p SpringParams) IsCriticallyDamped() bool {
	return math.Abs(p.DampingRatio()-1) < 1e-9
}

// SpringState is the integrator state: position, velocity and rest target.
type SpringState struct {
	X      float64
	V      float64
	Target float64
}

// NewSpringState starts at from with the params' initial velocity.
func NewSpringState(p SpringParams, from, to float64) SpringState {
	return SpringState{X: from, V: p.InitialVelocity, Target: to}
}

// Retarget moves the rest target and keeps position and velocity, so an
// interrupted spring continues without a visual jump.
func (s SpringState) Retarget(to float64) SpringState {
	s.Target = to
	return s
}

// Settled reports whether the state is within the params' epsilons.
// p must have its defaults applied.
func (s SpringState) Settled(p SpringParams) bool {
	return math.Abs(s.X-s.Target) < p.PositionEpsilon && math.Abs(s.V) < p.VelocityEpsilon
}

// Settle returns the state at rest on its target.
func (s SpringState) Settle() SpringState {
	return SpringState{X: s.Target, V: 0, Target: s.Target}
}

// Step advances the spring by one semi-implicit Euler step of
// min(dt, maxStep) and reports whether it has settled. A non-positive
// maxStep selects DefaultMaxStep. p must have its defaults applied.
func Step(s SpringState, p SpringParams, dt, maxStep time.Duration) (SpringState, bool) {
	if maxStep <= 0 {
		maxStep = DefaultMaxStep
	}
	if dt > maxStep {
		dt = maxStep
	}
	if dt <= 0 {
		return s, s.Settled(p)
	}
	h := dt.Seconds()

	a := (-p.Stiffness*(s.X-s.Target) - p.Damping*s.V) / p.Mass
	s.V += a * h
	if p.MaxVelocity > 0 {
		s.V = math.Max(-p.MaxVelocity, math.Min(p.MaxVelocity, s.V))
	}
	s.X += s.V * h

	return s, s.Settled(p)
}
