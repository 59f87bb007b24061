package effects

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/errors"
)

type fakeProgram struct {
	kind     animation.Kind
	updates  []float64
	released bool
	failNext error
}

func (p *fakeProgram) Update(v float64) error {
	if err := p.failNext; err != nil {
		p.failNext = nil
		return err
	}
	p.updates = append(p.updates, v)
	return nil
}

func (p *fakeProgram) Release() { p.released = true }

type fakeCompiler struct {
	mu       sync.Mutex
	fail     map[animation.Kind]error
	compiles map[animation.Kind]int
	programs []*fakeProgram
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{
		fail:     make(map[animation.Kind]error),
		compiles: make(map[animation.Kind]int),
	}
}

func (c *fakeCompiler) Compile(kind animation.Kind) (Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compiles[kind]++
	if err := c.fail[kind]; err != nil {
		return nil, err
	}
	p := &fakeProgram{kind: kind}
	c.programs = append(c.programs, p)
	return p, nil
}

func (c *fakeCompiler) count(kind animation.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compiles[kind]
}

type countingBackend struct {
	Backend
	calls map[animation.Kind]int
}

func count(b Backend) *countingBackend {
	return &countingBackend{Backend: b, calls: make(map[animation.Kind]int)}
}

func (c *countingBackend) Apply(kind animation.Kind, v float64, t animation.Target) error {
	c.calls[kind]++
	return c.Backend.Apply(kind, v, t)
}

var gpuReady = StaticProber{Capability: Capability{Available: true, Adapter: "test"}}

// detected runs the initial capability probe the way the CLI does before
// the first tick.
func detected(t *testing.T, sel *Selector) *Selector {
	t.Helper()
	if _, err := sel.Detect(context.Background()); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	return sel
}

func recordingTarget(out *[]float64) animation.Target {
	return animation.Target{Set: func(_ any, v float64) error {
		*out = append(*out, v)
		return nil
	}}
}

func TestSelectorCompileFailureFallsBackPerKind(t *testing.T) {
	var logs bytes.Buffer
	compiler := newFakeCompiler()
	compiler.fail[animation.Ripple] = stderrors.New("shader: unsupported builtin")

	gpu := count(NewGPUBackend(compiler))
	cpu := count(NewCPUBackend())
	sel := detected(t, NewSelector(SelectorConfig{
		CPU:    cpu,
		GPU:    gpu,
		Prober: gpuReady,
		Logger: zerolog.New(&logs),
	}))

	var ripple, fade []float64
	for i := range 10 {
		v := float64(i) / 10
		if err := sel.Apply(animation.Ripple, v, recordingTarget(&ripple)); err != nil {
			t.Fatalf("ripple apply: %v", err)
		}
		if err := sel.Apply(animation.Fade, v, recordingTarget(&fade)); err != nil {
			t.Fatalf("fade apply: %v", err)
		}
	}

	if len(ripple) != 10 || len(fade) != 10 {
		t.Fatalf("setter calls: ripple=%d fade=%d, want 10 each", len(ripple), len(fade))
	}
	if got := compiler.count(animation.Ripple); got != 1 {
		t.Errorf("ripple compile attempts = %d, want 1", got)
	}
	if cpu.calls[animation.Ripple] != 10 || gpu.calls[animation.Ripple] != 1 {
		t.Errorf("ripple routing: cpu=%d gpu=%d", cpu.calls[animation.Ripple], gpu.calls[animation.Ripple])
	}
	if gpu.calls[animation.Fade] != 10 || cpu.calls[animation.Fade] != 0 {
		t.Errorf("fade routing: gpu=%d cpu=%d", gpu.calls[animation.Fade], cpu.calls[animation.Fade])
	}
	if n := strings.Count(logs.String(), "effect falls back to cpu"); n != 1 {
		t.Errorf("fallback logged %d times, want 1\n%s", n, logs.String())
	}

	fb := sel.Fallbacks()
	if len(fb) != 1 || !stderrors.Is(fb[animation.Ripple], errors.ErrBackendUnavailable) {
		t.Errorf("Fallbacks = %v", fb)
	}
	if sel.BackendFor(animation.Ripple) != cpu || sel.BackendFor(animation.Fade) != gpu {
		t.Error("BackendFor disagrees with recorded fallback")
	}
}

func TestSelectorWithoutGPU(t *testing.T) {
	cpu := NewCPUBackend()
	sel := NewSelector(SelectorConfig{CPU: cpu})
	for _, k := range animation.Kinds() {
		if sel.BackendFor(k) != cpu {
			t.Errorf("%v not on cpu", k)
		}
	}
}

func TestSelectorProbeFailureUsesCPU(t *testing.T) {
	cpu := NewCPUBackend()
	sel := NewSelector(SelectorConfig{
		CPU:    cpu,
		GPU:    NewGPUBackend(newFakeCompiler()),
		Prober: StaticProber{Err: stderrors.New("no adapter")},
	})
	if _, err := sel.Detect(context.Background()); err == nil {
		t.Fatal("expected probe error")
	}
	if sel.BackendFor(animation.Fade) != cpu {
		t.Error("fade should render on cpu without a device")
	}
	if len(sel.Fallbacks()) != 0 {
		t.Error("a failed probe is not a per-kind fallback")
	}
}

func TestSelectorCapabilityLimitsKinds(t *testing.T) {
	var logs bytes.Buffer
	gpu := NewGPUBackend(newFakeCompiler())
	cpu := NewCPUBackend()
	sel := detected(t, NewSelector(SelectorConfig{
		CPU: cpu,
		GPU: gpu,
		Prober: StaticProber{Capability: Capability{
			Available: true,
			Effects:   map[animation.Kind]bool{animation.Fade: true},
		}},
		Logger: zerolog.New(&logs),
	}))
	if sel.BackendFor(animation.Fade) != gpu {
		t.Error("fade should use gpu")
	}
	for range 3 {
		if sel.BackendFor(animation.Morph) != cpu {
			t.Error("unsupported morph should use cpu")
		}
	}

	fb := sel.Fallbacks()
	if len(fb) != 1 || !stderrors.Is(fb[animation.Morph], errors.ErrBackendUnavailable) {
		t.Errorf("Fallbacks = %v, want morph only", fb)
	}
	out := logs.String()
	if n := strings.Count(out, "effect falls back to cpu"); n != 1 {
		t.Errorf("fallback logged %d times, want 1\n%s", n, out)
	}
	if !strings.Contains(out, `"effect":"morph"`) {
		t.Errorf("fallback log does not name the effect:\n%s", out)
	}
}

func TestSelectorFidelity(t *testing.T) {
	gpu := NewGPUBackend(newFakeCompiler())
	cpu := NewCPUBackend()
	sel := detected(t, NewSelector(SelectorConfig{CPU: cpu, GPU: gpu, Prober: gpuReady}))

	sel.SetFidelity(FidelityReduced)
	if sel.BackendFor(animation.Ripple) != cpu || sel.BackendFor(animation.Morph) != cpu {
		t.Error("blur-class kinds should move to cpu at reduced fidelity")
	}
	if sel.BackendFor(animation.Scale) != gpu {
		t.Error("transform kinds should stay on gpu")
	}

	sel.SetFidelity(FidelityFull)
	if sel.BackendFor(animation.Ripple) != gpu {
		t.Error("ripple should return to gpu at full fidelity")
	}
	if len(sel.Fallbacks()) != 0 {
		t.Error("fidelity changes must not record fallbacks")
	}
}

// switchableProber reports the capability it holds, and blocks while gate
// is set.
type switchableProber struct {
	mu         sync.Mutex
	capability Capability
	probes     int
	gate       chan struct{}
}

func (p *switchableProber) Probe(ctx context.Context) (Capability, error) {
	p.mu.Lock()
	p.probes++
	gate, capability := p.gate, p.capability
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Capability{}, ctx.Err()
		}
	}
	return capability, nil
}

func (p *switchableProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

func TestSelectorDetectsInBackground(t *testing.T) {
	gate := make(chan struct{})
	prober := &switchableProber{capability: Capability{Available: true}, gate: gate}
	gpu := NewGPUBackend(newFakeCompiler())
	cpu := NewCPUBackend()
	sel := NewSelector(SelectorConfig{CPU: cpu, GPU: gpu, Prober: prober})

	// The probe is blocked; selection must not wait for it.
	if sel.BackendFor(animation.Fade) != cpu || sel.BackendFor(animation.Scale) != cpu {
		t.Fatal("kinds should render on cpu until detection finishes")
	}
	close(gate)
	sel.Wait()

	if prober.count() != 1 {
		t.Errorf("probes = %d, want one background probe", prober.count())
	}
	if sel.BackendFor(animation.Fade) != gpu {
		t.Error("fade should use gpu after detection")
	}
}

func TestSelectorInvalidateDevice(t *testing.T) {
	compiler := newFakeCompiler()
	gpu := NewGPUBackend(compiler)
	prober := &switchableProber{capability: Capability{Available: true}}
	sel := detected(t, NewSelector(SelectorConfig{GPU: gpu, Prober: prober}))

	var out []float64
	if err := sel.Apply(animation.Scale, 1, recordingTarget(&out)); err != nil {
		t.Fatal(err)
	}
	if prober.count() != 1 || !gpu.Compiled(animation.Scale) {
		t.Fatalf("probes=%d compiled=%v", prober.count(), gpu.Compiled(animation.Scale))
	}

	sel.InvalidateDevice()
	if gpu.Compiled(animation.Scale) {
		t.Error("programs should be released on device loss")
	}
	if !compiler.programs[0].released {
		t.Error("Release not called")
	}

	if err := sel.Apply(animation.Scale, 2, recordingTarget(&out)); err != nil {
		t.Fatal(err)
	}
	sel.Wait()
	if prober.count() != 2 {
		t.Errorf("probes = %d, want re-detection after invalidation", prober.count())
	}
	if err := sel.Apply(animation.Scale, 3, recordingTarget(&out)); err != nil {
		t.Fatal(err)
	}
	if compiler.count(animation.Scale) != 2 {
		t.Errorf("scale compiled %d times, want 2", compiler.count(animation.Scale))
	}
	if len(out) != 3 {
		t.Errorf("setter values = %v", out)
	}
}

func TestSelectorRecoversFromDeviceLoss(t *testing.T) {
	compiler := newFakeCompiler()
	gpu := NewGPUBackend(compiler)
	cpu := count(NewCPUBackend())
	prober := &switchableProber{capability: Capability{Available: true, Adapter: "first"}}
	sel := detected(t, NewSelector(SelectorConfig{CPU: cpu, GPU: gpu, Prober: prober}))

	var out []float64
	for _, k := range []animation.Kind{animation.Fade, animation.Slide} {
		if err := sel.Apply(k, 0, recordingTarget(&out)); err != nil {
			t.Fatal(err)
		}
	}

	// The device goes away under fade's program.
	compiler.programs[0].failNext = fmt.Errorf("webgpu: %w", errors.ErrDeviceLost)
	if err := sel.Apply(animation.Fade, 0.5, recordingTarget(&out)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out) != 3 || out[2] != 0.5 {
		t.Errorf("value not re-applied on cpu: %v", out)
	}
	if fb := sel.Fallbacks(); len(fb) != 0 {
		t.Errorf("device loss recorded per-kind fallbacks: %v", fb)
	}
	if gpu.Compiled(animation.Slide) || cpu.calls[animation.Fade] != 1 {
		t.Errorf("after device loss: slide compiled=%v, cpu fade calls=%d", gpu.Compiled(animation.Slide), cpu.calls[animation.Fade])
	}

	// A fresh device comes back on the background re-detection.
	prober.mu.Lock()
	prober.capability.Adapter = "second"
	prober.mu.Unlock()
	if sel.BackendFor(animation.Slide) != cpu {
		t.Error("slide should render on cpu while re-detecting")
	}
	sel.Wait()

	if got := sel.Capability().Adapter; got != "second" {
		t.Errorf("adapter after recovery = %q, want second", got)
	}
	for _, k := range []animation.Kind{animation.Fade, animation.Slide} {
		if sel.BackendFor(k) != gpu {
			t.Errorf("%v should be back on gpu", k)
		}
		if err := sel.Apply(k, 1, recordingTarget(&out)); err != nil {
			t.Fatal(err)
		}
	}
	if compiler.count(animation.Fade) != 2 || compiler.count(animation.Slide) != 2 {
		t.Errorf("compiles: fade=%d slide=%d, want 2 each", compiler.count(animation.Fade), compiler.count(animation.Slide))
	}
}

func TestSelectorUpdateFailureFallsBack(t *testing.T) {
	compiler := newFakeCompiler()
	gpu := NewGPUBackend(compiler)
	cpu := count(NewCPUBackend())
	sel := detected(t, NewSelector(SelectorConfig{CPU: cpu, GPU: gpu, Prober: gpuReady}))

	var out []float64
	sel.Apply(animation.Slide, 1, recordingTarget(&out))
	compiler.programs[0].failNext = stderrors.New("buffer write rejected")
	if err := sel.Apply(animation.Slide, 2, recordingTarget(&out)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out) != 2 || out[1] != 2 {
		t.Errorf("setter values = %v", out)
	}
	if cpu.calls[animation.Slide] != 1 {
		t.Errorf("cpu calls = %d, want 1", cpu.calls[animation.Slide])
	}
}

func TestSelectorReturnsSetterErrors(t *testing.T) {
	boom := stderrors.New("boom")
	sel := detected(t, NewSelector(SelectorConfig{GPU: NewGPUBackend(newFakeCompiler()), Prober: gpuReady}))
	target := animation.Target{Set: func(any, float64) error { return boom }}
	if err := sel.Apply(animation.Fade, 1, target); !stderrors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(sel.Fallbacks()) != 0 {
		t.Error("setter errors must not trigger fallback")
	}
}
