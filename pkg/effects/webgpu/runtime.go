// Package webgpu backs the effect GPU path with WebGPU: it probes for an
// adapter and device, and compiles one WGSL program per effect kind.
package webgpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/effects"
	"github.com/go-drift/motion/pkg/errors"
)

// uniformSize is the size of the Params block: one f32 padded to 16 bytes.
const uniformSize = 16

// Runtime owns a WebGPU device. It implements effects.Prober and
// effects.Compiler. A Probe releases any previous device, so a runtime can
// be re-probed after device loss.
type Runtime struct {
	// ForceFallbackAdapter requests the software adapter.
	ForceFallbackAdapter bool

	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

var (
	_ effects.Prober   = (*Runtime)(nil)
	_ effects.Compiler = (*Runtime)(nil)
)

// NewRuntime creates a runtime without a device. Call Probe before Compile.
func NewRuntime() *Runtime { return &Runtime{} }

// Probe opens an adapter and device. Every effect kind is reported as
// supported once a device exists; individual kinds can still fail to
// compile.
func (r *Runtime) Probe(ctx context.Context) (effects.Capability, error) {
	if err := ctx.Err(); err != nil {
		return effects.Capability{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked()

	r.instance = wgpu.CreateInstance(nil)
	if r.instance == nil {
		return effects.Capability{}, fmt.Errorf("webgpu: no instance")
	}

	a, err := r.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: r.ForceFallbackAdapter,
	})
	if err != nil {
		r.releaseLocked()
		return effects.Capability{}, fmt.Errorf("webgpu: request adapter: %w", err)
	}
	r.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Motion Effects Device",
	})
	if err != nil {
		r.releaseLocked()
		return effects.Capability{}, fmt.Errorf("webgpu: request device: %w", err)
	}
	r.device = d
	r.queue = d.GetQueue()

	if err := ctx.Err(); err != nil {
		r.releaseLocked()
		return effects.Capability{}, err
	}

	adapter := "webgpu"
	if r.ForceFallbackAdapter {
		adapter = "webgpu (fallback adapter)"
	}
	return effects.Capability{Available: true, Adapter: adapter}, nil
}

// Compile builds the shader module and uniform buffer for kind.
func (r *Runtime) Compile(kind animation.Kind) (effects.Program, error) {
	code, ok := shaderSource(kind)
	if !ok {
		return nil, fmt.Errorf("webgpu: no shader for %v", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device == nil {
		return nil, fmt.Errorf("webgpu: no device")
	}

	module, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: kind.String() + " Effect Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: code,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: compile %v: %w", kind, err)
	}

	buf, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            kind.String() + " Effect Params",
		Size:             uniformSize,
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("webgpu: params buffer for %v: %w", kind, err)
	}

	return &program{rt: r, module: module, params: buf}, nil
}

// Release frees the device and everything derived from it.
func (r *Runtime) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked()
}

func (r *Runtime) releaseLocked() {
	if r.queue != nil {
		r.queue.Release()
		r.queue = nil
	}
	if r.device != nil {
		r.device.Release()
		r.device = nil
	}
	if r.adapter != nil {
		r.adapter.Release()
		r.adapter = nil
	}
	if r.instance != nil {
		r.instance.Release()
		r.instance = nil
	}
}

// program is one compiled effect.
type program struct {
	rt     *Runtime
	module *wgpu.ShaderModule
	params *wgpu.Buffer
	data   [uniformSize]byte
}

func (p *program) Update(value float64) error {
	p.rt.mu.Lock()
	defer p.rt.mu.Unlock()
	if p.rt.queue == nil || p.params == nil {
		return fmt.Errorf("webgpu: %w", errors.ErrDeviceLost)
	}
	encodeParams(p.data[:], value)
	p.rt.queue.WriteBuffer(p.params, 0, p.data[:])
	return nil
}

func (p *program) Release() {
	if p.params != nil {
		p.params.Release()
		p.params = nil
	}
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
}

// encodeParams writes value as the first f32 of the uniform block.
func encodeParams(dst []byte, value float64) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(float32(value)))
}
