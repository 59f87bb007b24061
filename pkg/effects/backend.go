// Package effects applies animated values to their targets through a GPU or
// CPU backend.
//
// The [Selector] routes each effect kind independently: a kind whose GPU
// program fails to compile (or whose capability is missing) falls back to
// the [CPUBackend] for the rest of the process while every other kind keeps
// using the GPU.
package effects

import (
	"context"

	"github.com/go-drift/motion/pkg/animation"
)

// Backend applies an effect value to a target.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Apply renders value for kind and writes it to target. A GPU backend
	// reports a missing or failed capability as
	// *errors.BackendUnavailableError; any other error comes from the target.
	Apply(kind animation.Kind, value float64, target animation.Target) error
}

// Capability describes what the GPU can do.
type Capability struct {
	Available bool
	// Adapter is a human-readable adapter description.
	Adapter string
	// Effects lists the supported kinds. Nil means every kind is supported
	// when Available is set.
	Effects map[animation.Kind]bool
}

// Supports reports whether kind may run on the GPU.
func (c Capability) Supports(kind animation.Kind) bool {
	if !c.Available {
		return false
	}
	if c.Effects == nil {
		return true
	}
	return c.Effects[kind]
}

// Prober detects GPU capability.
type Prober interface {
	Probe(ctx context.Context) (Capability, error)
}

// StaticProber reports a fixed capability.
type StaticProber struct {
	Capability Capability
	Err        error
}

// Probe returns the fixed capability.
func (p StaticProber) Probe(context.Context) (Capability, error) {
	return p.Capability, p.Err
}

// Program is a compiled effect shader.
type Program interface {
	// Update uploads the current effect value.
	Update(value float64) error
	Release()
}

// Compiler builds the shader program for one effect kind.
type Compiler interface {
	Compile(kind animation.Kind) (Program, error)
}

// Fidelity selects how much effect work may run on the GPU.
type Fidelity int

const (
	// FidelityFull runs every supported kind on the GPU.
	FidelityFull Fidelity = iota
	// FidelityReduced moves blur-class kinds (Ripple, Morph) to the CPU.
	FidelityReduced
)

// String returns a human-readable name.
func (f Fidelity) String() string {
	switch f {
	case FidelityFull:
		return "full"
	case FidelityReduced:
		return "reduced"
	default:
		return "unknown"
	}
}

// Allows reports whether kind may run on the GPU at this fidelity.
func (f Fidelity) Allows(kind animation.Kind) bool {
	return f == FidelityFull || !kind.IsBlurClass()
}

// MarshalText encodes the fidelity by name.
func (f Fidelity) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
