package effects

import (
	"sync"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/errors"
)

// GPUBackend renders effects with compiled shader programs. Programs are
// compiled lazily, on the first Apply of each kind, and cached until Reset.
type GPUBackend struct {
	compiler Compiler

	mu       sync.Mutex
	programs map[animation.Kind]Program
}

// NewGPUBackend creates a GPU backend that compiles programs with c.
func NewGPUBackend(c Compiler) *GPUBackend {
	return &GPUBackend{
		compiler: c,
		programs: make(map[animation.Kind]Program),
	}
}

// Name returns "gpu".
func (*GPUBackend) Name() string { return "gpu" }

// Apply uploads value to the kind's program and writes it to target.
// Compile and upload failures are reported as *errors.BackendUnavailableError
// before the target is touched.
func (g *GPUBackend) Apply(kind animation.Kind, value float64, target animation.Target) error {
	prog, err := g.program(kind)
	if err != nil {
		return g.unavailable(kind, err)
	}
	if err := prog.Update(value); err != nil {
		return g.unavailable(kind, err)
	}
	return target.Apply(value)
}

// Compiled reports whether kind has a cached program.
func (g *GPUBackend) Compiled(kind animation.Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.programs[kind]
	return ok
}

// Reset releases every cached program. Called when the device is lost.
func (g *GPUBackend) Reset() {
	g.mu.Lock()
	programs := g.programs
	g.programs = make(map[animation.Kind]Program)
	g.mu.Unlock()

	for _, p := range programs {
		p.Release()
	}
}

func (g *GPUBackend) program(kind animation.Kind) (Program, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.programs[kind]; ok {
		return p, nil
	}
	if g.compiler == nil {
		return nil, errors.ErrBackendUnavailable
	}
	p, err := g.compiler.Compile(kind)
	if err != nil {
		return nil, err
	}
	g.programs[kind] = p
	return p, nil
}

func (g *GPUBackend) unavailable(kind animation.Kind, err error) error {
	return &errors.BackendUnavailableError{Kind: kind.String(), Backend: g.Name(), Err: err}
}
