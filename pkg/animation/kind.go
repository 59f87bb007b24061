package animation

import (
	"fmt"
	"strings"
)

// Kind is the closed set of animation types. Each kind is also the effect
// the backend renders for it.
type Kind int

const (
	// Fade animates opacity.
	Fade Kind = iota
	// Scale animates a scale factor.
	Scale
	// Slide animates a translation distance.
	Slide
	// Spring animates a value with spring-damper physics instead of a curve.
	Spring
	// Ripple animates a radial ripple.
	Ripple
	// Morph animates a shape or geometry blend.
	Morph

	kindCount
)

var kindNames = [...]string{
	Fade:   "fade",
	Scale:  "scale",
	Slide:  "slide",
	Spring: "spring",
	Ripple: "ripple",
	Morph:  "morph",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= 0 && k < kindCount
}

// IsBlurClass reports whether the effect is shader-heavy. Blur-class effects
// are the first to move off the GPU when quality degrades.
func (k Kind) IsBlurClass() bool {
	return k == Ripple || k == Morph
}

// UsesSpring reports whether the kind is driven by the spring integrator.
func (k Kind) UsesSpring() bool {
	return k == Spring
}

// Kinds returns every declared kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, s := range kindNames {
		if s == n {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown animation kind %q", name)
}

// State is the lifecycle state of a scheduled animation.
//
// The transition graph is closed:
//
//	Pending ──► Running ◄──► Paused
//	   │           │           │
//	   │           ├──► Completed
//	   └───────────┴───────────┴──► Cancelled
type State int32

const (
	// Pending means registered but not yet admitted.
	Pending State = iota
	// Running means admitted and advancing every tick.
	Running
	// Paused means admitted but frozen.
	Paused
	// Completed means the animation reached its end.
	Completed
	// Cancelled means the animation was cancelled or failed.
	Cancelled
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == Completed || s == Cancelled
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to State) bool {
	switch from {
	case Pending:
		return to == Running || to == Cancelled
	case Running:
		return to == Paused || to == Completed || to == Cancelled
	case Paused:
		return to == Running || to == Cancelled
	default:
		return false
	}
}
