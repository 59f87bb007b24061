package effects

import (
	"context"
	stderrors "errors"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/errors"
)

// DefaultProbeTimeout bounds a background re-detection after device loss.
const DefaultProbeTimeout = 2 * time.Second

var errCapabilityMissing = stderrors.New("adapter does not report this effect")

// SelectorConfig configures a Selector.
type SelectorConfig struct {
	// CPU is the always-available fallback. Nil selects NewCPUBackend().
	CPU Backend
	// GPU is optional. Without it every kind renders on the CPU.
	GPU Backend
	// Prober detects GPU capability. Nil means no GPU.
	Prober Prober
	// ProbeTimeout bounds background detection. Zero selects
	// DefaultProbeTimeout.
	ProbeTimeout time.Duration
	Logger       zerolog.Logger
}

// Selector routes each effect kind to a backend.
//
// A kind runs on the GPU when the detected capability supports it, the
// current fidelity allows it, and the kind has not fallen back. A GPU
// BackendUnavailableError records a permanent fallback for that kind only,
// is logged once, and the value is re-applied on the CPU in the same call.
// A kind the adapter does not report falls back the same way.
//
// Device loss (errors.ErrDeviceLost) is not a per-kind fallback: it drops
// the capability and cached programs, and the next selection starts a
// re-detection on a background goroutine. Until it finishes every kind
// renders on the CPU, so Apply never waits on a probe.
//
// Selector is safe for concurrent use; Apply is normally called from the
// tick goroutine while Detect and InvalidateDevice may come from elsewhere.
type Selector struct {
	cpu          Backend
	gpu          Backend
	prober       Prober
	probeTimeout time.Duration
	log          zerolog.Logger

	mu         sync.Mutex
	capability Capability
	detected   bool
	detecting  bool
	// generation counts invalidations; a probe started before one is stale.
	generation uint64
	fidelity   Fidelity
	fallbacks  map[animation.Kind]error

	probes sync.WaitGroup
}

// NewSelector creates a selector. Until Detect is called, or the background
// detection started by the first selection completes, every kind renders on
// the CPU.
func NewSelector(cfg SelectorConfig) *Selector {
	if cfg.CPU == nil {
		cfg.CPU = NewCPUBackend()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Selector{
		cpu:          cfg.CPU,
		gpu:          cfg.GPU,
		prober:       cfg.Prober,
		probeTimeout: cfg.ProbeTimeout,
		log:          cfg.Logger,
		fallbacks:    make(map[animation.Kind]error),
	}
}

// Detect probes the GPU on the calling goroutine and records the
// capability. A probe error leaves the GPU marked unavailable and is
// returned for logging only.
func (s *Selector) Detect(ctx context.Context) (Capability, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	return s.detect(ctx, gen)
}

// detect runs the probe without holding mu, so selection keeps answering
// with the CPU meanwhile. The result is dropped if the device was
// invalidated during the probe.
func (s *Selector) detect(ctx context.Context, gen uint64) (Capability, error) {
	var (
		capability Capability
		err        error
	)
	if s.gpu != nil && s.prober != nil {
		capability, err = s.prober.Probe(ctx)
		if err != nil {
			capability = Capability{}
		}
	}

	s.mu.Lock()
	stale := gen != s.generation
	if !stale {
		s.capability = capability
		s.detected = true
	}
	s.mu.Unlock()

	switch {
	case s.gpu == nil || s.prober == nil:
	case stale:
		s.log.Debug().Msg("gpu probe finished after device loss; result dropped")
	case err != nil:
		s.log.Warn().Err(err).Msg("gpu capability probe failed; effects render on cpu")
	default:
		s.log.Info().
			Bool("available", capability.Available).
			Str("adapter", capability.Adapter).
			Msg("gpu capability detected")
	}
	return capability, err
}

// redetectLocked starts a background probe unless one is running.
func (s *Selector) redetectLocked() {
	if s.detecting {
		return
	}
	s.detecting = true
	gen := s.generation
	s.probes.Add(1)
	go func() {
		defer s.probes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.probeTimeout)
		defer cancel()
		s.detect(ctx, gen)

		s.mu.Lock()
		s.detecting = false
		s.mu.Unlock()
	}()
}

// Wait blocks until background detection has finished. Call it once
// nothing selects backends any more, before releasing the GPU.
func (s *Selector) Wait() {
	s.probes.Wait()
}

// InvalidateDevice signals device loss. Cached GPU programs are released and
// the capability is re-detected in the background on the next selection.
// Per-kind fallbacks stay in place.
func (s *Selector) InvalidateDevice() {
	s.mu.Lock()
	s.generation++
	s.detected = false
	s.capability = Capability{}
	if r, ok := s.gpu.(interface{ Reset() }); ok {
		r.Reset()
	}
	s.mu.Unlock()

	s.log.Info().Msg("gpu device invalidated")
}

// SetFidelity changes which kinds may use the GPU.
func (s *Selector) SetFidelity(f Fidelity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fidelity = f
}

// Fidelity returns the current fidelity.
func (s *Selector) Fidelity() Fidelity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fidelity
}

// Capability returns the last detected capability.
func (s *Selector) Capability() Capability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capability
}

// Fallbacks returns the kinds that permanently fell back to the CPU and the
// error that caused each fallback.
func (s *Selector) Fallbacks() map[animation.Kind]error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.fallbacks)
}

// BackendFor returns the backend kind would be rendered with right now.
func (s *Selector) BackendFor(kind animation.Kind) Backend {
	s.mu.Lock()
	b, missing := s.backendLocked(kind)
	s.mu.Unlock()

	if missing != nil {
		s.logFallback(kind, missing)
	}
	return b
}

// backendLocked selects the backend for kind. missing is set when this call
// recorded a fallback for a kind the adapter does not report.
func (s *Selector) backendLocked(kind animation.Kind) (b Backend, missing *errors.BackendUnavailableError) {
	if s.gpu == nil {
		return s.cpu, nil
	}
	if !s.detected {
		s.redetectLocked()
		return s.cpu, nil
	}
	if _, fell := s.fallbacks[kind]; fell {
		return s.cpu, nil
	}
	if !s.capability.Available {
		return s.cpu, nil
	}
	if !s.capability.Supports(kind) {
		missing = &errors.BackendUnavailableError{Kind: kind.String(), Backend: s.gpu.Name(), Err: errCapabilityMissing}
		s.fallbacks[kind] = missing
		return s.cpu, missing
	}
	if !s.fidelity.Allows(kind) {
		return s.cpu, nil
	}
	return s.gpu, nil
}

// Apply renders value for kind on the selected backend. GPU unavailability
// never reaches the caller; errors from the target's setter do.
func (s *Selector) Apply(kind animation.Kind, value float64, target animation.Target) error {
	b := s.BackendFor(kind)
	err := b.Apply(kind, value, target)
	if err == nil || b == s.cpu {
		return err
	}

	var unavailable *errors.BackendUnavailableError
	if !stderrors.As(err, &unavailable) {
		return err
	}
	if stderrors.Is(unavailable, errors.ErrDeviceLost) {
		s.InvalidateDevice()
	} else {
		s.fallBack(kind, unavailable)
	}
	return s.cpu.Apply(kind, value, target)
}

func (s *Selector) fallBack(kind animation.Kind, cause *errors.BackendUnavailableError) {
	s.mu.Lock()
	_, already := s.fallbacks[kind]
	if !already {
		s.fallbacks[kind] = cause
	}
	s.mu.Unlock()

	if !already {
		s.logFallback(kind, cause)
	}
}

func (s *Selector) logFallback(kind animation.Kind, cause *errors.BackendUnavailableError) {
	s.log.Warn().
		Str("effect", kind.String()).
		Str("backend", cause.Backend).
		Err(cause.Err).
		Msg("effect falls back to cpu")
}
