package animation

import (
	"math"
	"time"

	"github.com/go-drift/motion/pkg/errors"
)

// Priority levels. Lower values are admitted first when the scheduler is at
// its concurrency cap; any integer is accepted.
const (
	PriorityCritical   = 0
	PriorityHigh       = 10
	PriorityNormal     = 20
	PriorityLow        = 30
	PriorityBackground = 40
)

// Setter writes an animated value onto a target owned by the caller.
//
// Setters are called from the tick goroutine only. They must not block. A
// returned error (or a panic) cancels the animation that issued the call and
// leaves every other animation untouched.
type Setter func(target any, value float64) error

// Target pairs the object being animated with its property setter.
type Target struct {
	// Object is handed back to Set unchanged. Effect backends may inspect it
	// for optional capabilities (see effects.RasterSurface).
	Object any
	// Set applies a value to Object.
	Set Setter
}

// Apply calls the setter with v.
func (t Target) Apply(v float64) error {
	if t.Set == nil {
		return nil
	}
	return t.Set(t.Object, v)
}

// Spec describes one animation to register with the scheduler.
type Spec struct {
	// ID is an optional caller-chosen identity. Registering a second live
	// animation with the same ID fails with a CollisionError.
	ID string

	Kind Kind

	// From and To bound the animated value. For springs, From is the
	// initial position and To the rest target.
	From float64
	To   float64

	// Duration is required (> 0) for every kind except Spring.
	Duration time.Duration
	// Delay holds the animation at From after admission.
	Delay time.Duration
	// Curve eases fixed-duration progress; nil means linear.
	Curve Curve

	// Spring is required for the Spring kind and rejected otherwise.
	Spring *SpringParams

	// Priority orders admission when the scheduler is at its cap.
	Priority int

	Target Target

	// OnComplete and OnCancel are observers; exactly one of them fires,
	// exactly once, for every registered animation.
	OnComplete func()
	OnCancel   func()
}

// Clone returns a copy of s that shares no mutable state with it.
func (s Spec) Clone() Spec {
	if s.Spring != nil {
		p := *s.Spring
		s.Spring = &p
	}
	return s
}

// Validate checks the entry constraints. It returns a *errors.ValidationError
// naming the first violated field.
func (s Spec) Validate() error {
	if !s.Kind.Valid() {
		return &errors.ValidationError{Field: "Kind", Reason: "is not a known animation kind"}
	}
	if !finite(s.From) || !finite(s.To) {
		return &errors.ValidationError{Field: "From/To", Reason: "must be finite"}
	}
	if s.Target.Set == nil {
		return &errors.ValidationError{Field: "Target.Set", Reason: "must not be nil"}
	}
	if s.Delay < 0 {
		return &errors.ValidationError{Field: "Delay", Reason: "must be >= 0"}
	}

	if s.Kind.UsesSpring() {
		if s.Spring == nil {
			return &errors.ValidationError{Field: "Spring", Reason: "is required for spring animations"}
		}
		return s.Spring.Validate()
	}

	if s.Spring != nil {
		return &errors.ValidationError{Field: "Spring", Reason: "is only valid for spring animations"}
	}
	if s.Duration <= 0 {
		return &errors.ValidationError{Field: "Duration", Reason: "must be > 0"}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
