// Package engine runs the motion scheduler: a single tick loop that admits,
// advances and retires animations, and the tooling around it (driver,
// controller, metrics, diagnostics server).
//
// # Threading
//
// Register, Cancel, Pause, Resume, Retarget and SetPriority may be called from any
// goroutine. Apart from Register's validation and the synchronous
// cancellation of Pending entries, they only enqueue a request; requests are
// drained at the start of the next Tick. Tick must be called from one
// goroutine at a time; it is the only code that touches the registry.
//
// # Tick
//
// Each Tick runs five steps in order:
//
//  1. drain queued requests
//  2. admit Pending entries up to the concurrency cap, by priority then
//     registration order
//  3. advance every Running entry and apply its value through the effect
//     selector
//  4. notify and remove Completed and Cancelled entries
//  5. report the tick's cost to the quality controller
package engine

import (
	"container/heap"
	"maps"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-drift/motion/pkg/accessibility"
	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/effects"
	"github.com/go-drift/motion/pkg/errors"
	"github.com/go-drift/motion/pkg/quality"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to measure tick cost. Tests inject a fake
// clock; animation progress never depends on it.
func WithClock(c animation.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithSelector sets the effect selector. The default renders everything on
// the CPU.
func WithSelector(sel *effects.Selector) Option {
	return func(s *Scheduler) { s.selector = sel }
}

// WithAccessibility sets the source of motion preferences read at
// registration.
func WithAccessibility(src accessibility.FlagSource) Option {
	return func(s *Scheduler) { s.flags = src }
}

// Scheduler owns every registered animation.
type Scheduler struct {
	cfg      Config
	log      zerolog.Logger
	clock    animation.Clock
	selector *effects.Selector
	flags    accessibility.FlagSource
	policy   *accessibility.Policy
	quality  *quality.Controller
	trace    *TickTraceBuffer

	queue requestQueue

	// mu guards the caller-facing view of live entries.
	mu         sync.Mutex
	nextHandle Handle
	live       map[Handle]*entry
	ids        map[string]Handle
	closed     bool

	listenerMu     sync.RWMutex
	listeners      []listener
	nextListenerID int

	registered atomic.Uint64
	completed  atomic.Uint64
	cancelled  atomic.Uint64
	failed     atomic.Uint64
	ticks      atomic.Uint64
	overruns   atomic.Uint64
	metrics    atomic.Pointer[Metrics]

	// Tick state, owned by the goroutine holding tickMu.
	tickMu  sync.Mutex
	entries map[Handle]*entry
	pending admissionQueue
	active  []*entry
	cap     int
	sample  TickSample
}

// New creates a scheduler. Zero config fields are filled from DefaultConfig.
func New(cfg Config, opts ...Option) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cfg:       cfg,
		log:       cfg.Logger,
		clock:     animation.SystemClock{},
		live:      make(map[Handle]*entry),
		ids:       make(map[string]Handle),
		entries:   make(map[Handle]*entry),
		cap:       cfg.MaxConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.selector == nil {
		s.selector = effects.NewSelector(effects.SelectorConfig{Logger: cfg.Logger})
	}
	s.policy = accessibility.NewPolicy(s.flags, cfg.Accessibility)
	s.quality = quality.NewController(cfg.Quality)
	s.quality.OnChange(func(l quality.Level) {
		s.cap = l.Cap
		s.selector.SetFidelity(l.Fidelity)
	})
	s.trace = NewTickTraceBuffer(cfg.TraceSamples, cfg.Quality.Budget)
	s.publish(time.Time{}, 0)
	return s
}

// Register validates spec, applies the accessibility policy and enqueues a
// Pending entry. It never blocks on the tick loop.
func (s *Scheduler) Register(spec animation.Spec) (Handle, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	spec = s.policy.Apply(spec.Clone())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errors.ErrClosed
	}
	if spec.ID != "" {
		if _, taken := s.ids[spec.ID]; taken {
			s.mu.Unlock()
			return 0, &errors.CollisionError{ID: spec.ID}
		}
	}
	s.nextHandle++
	h := s.nextHandle
	e := newEntry(h, uint64(h), spec)
	s.live[h] = e
	if spec.ID != "" {
		s.ids[spec.ID] = h
	}
	// Pushed under mu so Close cannot miss it.
	s.queue.push(request{kind: reqRegister, handle: h, entry: e})
	s.mu.Unlock()

	s.registered.Add(1)
	return h, nil
}

// Cancel cancels the entry. A Pending entry is cancelled and notified before
// Cancel returns; a Running or Paused entry is cancelled at the start of the
// next tick and notified in that tick. Unknown or finished handles are
// ignored, so Cancel is idempotent.
func (s *Scheduler) Cancel(h Handle) {
	e := s.lookup(h)
	if e == nil {
		return
	}
	if e.transition(animation.Pending, animation.Cancelled) {
		s.forget(e)
		s.cancelled.Add(1)
		s.notify(e)
	}
	s.queue.push(request{kind: reqCancel, handle: h})
}

// Pause freezes a Running entry at its current value. Other states ignore it.
func (s *Scheduler) Pause(h Handle) {
	if s.lookup(h) != nil {
		s.queue.push(request{kind: reqPause, handle: h})
	}
}

// Resume continues a Paused entry. Other states ignore it.
func (s *Scheduler) Resume(h Handle) {
	if s.lookup(h) != nil {
		s.queue.push(request{kind: reqResume, handle: h})
	}
}

// Retarget moves the entry's end value. Springs keep their position and
// velocity; fixed-duration entries restart their curve from the current
// value.
func (s *Scheduler) Retarget(h Handle, to float64) {
	if s.lookup(h) != nil {
		s.queue.push(request{kind: reqRetarget, handle: h, to: to})
	}
}

// SetPriority changes the admission priority of an entry. Only a Pending
// entry is reordered; once admitted, the new value is recorded but has no
// effect.
func (s *Scheduler) SetPriority(h Handle, priority int) {
	if s.lookup(h) != nil {
		s.queue.push(request{kind: reqSetPriority, handle: h, priority: priority})
	}
}

// Lookup returns a view of a live entry.
func (s *Scheduler) Lookup(h Handle) (EntryInfo, bool) {
	e := s.lookup(h)
	if e == nil {
		return EntryInfo{}, false
	}
	return e.info(), true
}

// HandleFor returns the handle of the live entry registered with id.
func (s *Scheduler) HandleFor(id string) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.ids[id]
	return h, ok
}

type listener struct {
	id int
	fn func(Event)
}

// AddListener registers fn for terminal events. Listeners run in
// registration order on the tick goroutine, or on the caller's goroutine for
// a synchronous Cancel. Returns an unsubscribe function.
func (s *Scheduler) AddListener(fn func(Event)) func() {
	s.listenerMu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.listenerMu.Unlock()
	return func() {
		s.listenerMu.Lock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
		s.listenerMu.Unlock()
	}
}

// Metrics returns the snapshot published by the last tick.
func (s *Scheduler) Metrics() Metrics {
	return *s.metrics.Load()
}

// RecentTicks returns the recent tick trace.
func (s *Scheduler) RecentTicks() TickTimeline {
	return s.trace.Snapshot()
}

// Quality returns the quality controller.
func (s *Scheduler) Quality() *quality.Controller { return s.quality }

// Selector returns the effect selector.
func (s *Scheduler) Selector() *effects.Selector { return s.selector }

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Tick advances every animation. now is the frame timestamp and dt the
// simulated time since the previous tick; negative dt is treated as zero.
func (s *Scheduler) Tick(now time.Time, dt time.Duration) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	if dt < 0 {
		dt = 0
	}

	s.sample = TickSample{Timestamp: now.UnixMilli(), DtMs: durationToMillis(dt)}
	start := s.clock.Now()

	s.drain()
	t1 := s.clock.Now()
	s.admit(now)
	t2 := s.clock.Now()
	s.advance(dt)
	t3 := s.clock.Now()
	s.retire()
	end := s.clock.Now()

	cost := end.Sub(start)
	s.sample.TickMs = durationToMillis(cost)
	s.sample.Phases = TickPhaseTimings{
		DrainMs:   durationToMillis(t1.Sub(start)),
		AdmitMs:   durationToMillis(t2.Sub(t1)),
		AdvanceMs: durationToMillis(t3.Sub(t2)),
		NotifyMs:  durationToMillis(end.Sub(t3)),
	}

	s.quality.Report(now, cost)
	s.ticks.Add(1)

	s.sample.Cap = s.cap
	s.sample.Level = s.quality.Level().Index
	s.sample.Counts.Deferred = s.pending.Len()
	for _, e := range s.active {
		if e.State() == animation.Paused {
			s.sample.Counts.Paused++
		} else {
			s.sample.Counts.Running++
		}
	}
	if s.trace.Add(s.sample, cost) {
		s.overruns.Add(1)
	}
	s.publish(now, cost)
}

// Close cancels every live entry, delivering OnCancel, and rejects further
// registrations.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.drain()
	handles := slices.Sorted(maps.Keys(s.entries))
	for _, h := range handles {
		e := s.entries[h]
		if e.cancel() {
			s.cancelled.Add(1)
		}
		s.notify(e)
		s.forget(e)
		delete(s.entries, h)
	}
	s.pending = s.pending[:0]
	clear(s.active)
	s.active = s.active[:0]
	s.publish(time.Time{}, 0)
}

func (s *Scheduler) lookup(h Handle) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[h]
}

// forget removes e from the caller-facing maps, freeing its id.
func (s *Scheduler) forget(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live[e.handle] == e {
		delete(s.live, e.handle)
	}
	if e.spec.ID != "" && s.ids[e.spec.ID] == e.handle {
		delete(s.ids, e.spec.ID)
	}
}

// drain applies queued requests in submission order.
func (s *Scheduler) drain() {
	reqs := s.queue.drain()
	s.sample.Counts.Requests = len(reqs)
	for _, r := range reqs {
		if r.kind == reqRegister {
			s.entries[r.handle] = r.entry
			if r.entry.State() == animation.Pending {
				heap.Push(&s.pending, r.entry)
			}
			continue
		}

		e := s.entries[r.handle]
		if e == nil {
			s.log.Debug().
				Err(&errors.UnknownHandleError{Handle: uint64(r.handle)}).
				Str("request", r.kind.String()).
				Msg("ignored request")
			continue
		}

		switch r.kind {
		case reqCancel:
			s.cancelEntry(e)
		case reqPause:
			e.transition(animation.Running, animation.Paused)
		case reqResume:
			e.transition(animation.Paused, animation.Running)
		case reqRetarget:
			if !e.State().IsTerminal() {
				advancers[e.spec.Kind].retarget(e, r.to)
			}
		case reqSetPriority:
			e.priority.Store(int64(r.priority))
			if e.heapIndex >= 0 {
				heap.Fix(&s.pending, e.heapIndex)
			}
		}
	}
}

func (s *Scheduler) cancelEntry(e *entry) {
	if !e.admitted {
		// Never admitted: it was cancelled and notified synchronously.
		if e.cancel() {
			s.forget(e)
			s.cancelled.Add(1)
			s.notify(e)
		}
		s.pending.remove(e)
		delete(s.entries, e.handle)
		return
	}
	if e.cancel() {
		s.cancelled.Add(1)
	}
}

// admit promotes Pending entries while the admitted count is below the cap.
func (s *Scheduler) admit(now time.Time) {
	for len(s.active) < s.cap && s.pending.Len() > 0 {
		e := heap.Pop(&s.pending).(*entry)
		if !e.transition(animation.Pending, animation.Running) {
			continue
		}
		e.startedAt = now
		e.admitted = true
		s.active = append(s.active, e)
		s.sample.Counts.Admitted++
	}
}

// advance steps every Running entry and applies its value. A failing entry
// is cancelled without affecting the others.
func (s *Scheduler) advance(dt time.Duration) {
	for _, e := range s.active {
		if e.State() != animation.Running {
			continue
		}
		v, done := advancers[e.spec.Kind].advance(e, dt, s.cfg.MaxStep)
		if err := s.apply(e, v); err != nil {
			e.failure = err
			e.cancel()
			s.failed.Add(1)
			s.cancelled.Add(1)
			s.sample.Counts.Failed++
			s.reportFailure(e, err)
			continue
		}
		e.storeValue(v)
		if done {
			e.transition(animation.Running, animation.Completed)
		}
	}
}

func (s *Scheduler) apply(e *entry, v float64) error {
	return errors.Catch("engine.apply", uint64(e.handle), func() error {
		return s.selector.Apply(e.spec.Kind, v, e.spec.Target)
	})
}

func (s *Scheduler) reportFailure(e *entry, err error) {
	if perr, ok := err.(*errors.PanicError); ok {
		errors.ReportPanic(perr)
		return
	}
	errors.Report(&errors.MotionError{
		Op:     "engine.apply",
		Kind:   errors.KindCallback,
		Handle: uint64(e.handle),
		Err:    err,
	})
}

// retire notifies and removes terminal entries, preserving admission order
// for the rest.
func (s *Scheduler) retire() {
	kept := s.active[:0]
	for _, e := range s.active {
		switch e.State() {
		case animation.Completed:
			s.completed.Add(1)
			s.sample.Counts.Completed++
		case animation.Cancelled:
			s.sample.Counts.Cancelled++
		default:
			kept = append(kept, e)
			continue
		}
		s.notify(e)
		s.forget(e)
		delete(s.entries, e.handle)
	}
	clear(s.active[len(kept):])
	s.active = kept
}

// notify fires the entry's observer and the listeners, once.
func (s *Scheduler) notify(e *entry) {
	if !e.notified.CompareAndSwap(false, true) {
		return
	}
	state := e.State()

	cb := e.spec.OnCancel
	if state == animation.Completed {
		cb = e.spec.OnComplete
	}
	if cb != nil {
		errors.Guard("engine.notify", uint64(e.handle), cb)
	}

	ev := Event{
		Handle: e.handle,
		ID:     e.spec.ID,
		Kind:   e.spec.Kind,
		State:  state,
		Value:  e.Value(),
		Err:    e.failure,
	}
	s.listenerMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenerMu.RUnlock()
	for _, l := range listeners {
		errors.Guard("engine.listener", uint64(e.handle), func() { l.fn(ev) })
	}
}

// publish stores a fresh metrics snapshot. It runs on the tick goroutine.
func (s *Scheduler) publish(now time.Time, cost time.Duration) {
	m := &Metrics{
		Deferred:        s.pending.Len(),
		Cap:             s.cap,
		Level:           s.quality.Level().Index,
		Fidelity:        s.quality.Fidelity(),
		OverrunFraction: s.quality.OverrunFraction(),
		Registered:      s.registered.Load(),
		Completed:       s.completed.Load(),
		Cancelled:       s.cancelled.Load(),
		Failed:          s.failed.Load(),
		Ticks:           s.ticks.Load(),
		OverrunTicks:    s.overruns.Load(),
		LastTick:        cost,
		LastTickTime:    now,
	}
	for _, e := range s.active {
		if e.State() == animation.Paused {
			m.Paused++
		} else {
			m.Running++
		}
	}
	for k := range s.selector.Fallbacks() {
		m.Fallbacks = append(m.Fallbacks, k.String())
	}
	sort.Strings(m.Fallbacks)
	s.metrics.Store(m)
}
