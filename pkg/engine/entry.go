package engine

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/go-drift/motion/pkg/animation"
)

// Handle identifies a registered animation. Handles are assigned in
// increasing order and never reused by a scheduler; zero is never valid.
type Handle uint64

// entry is one scheduled animation.
//
// Everything except state, notified, value and priority is owned by the
// tick goroutine. state is atomic so a Pending entry can be cancelled
// synchronously from the caller's goroutine.
type entry struct {
	handle Handle
	spec   animation.Spec
	seq    uint64

	state    atomic.Int32
	notified atomic.Bool
	value    atomic.Uint64 // math.Float64bits of the last applied value
	// priority starts at spec.Priority and is written only by the tick
	// goroutine; Lookup reads it concurrently.
	priority atomic.Int64

	startedAt time.Time
	admitted  bool
	// elapsed is the simulated time spent Running, summed from tick dt.
	elapsed time.Duration
	// from is the start value of the current fixed-duration segment; it moves
	// when a fixed-duration entry is retargeted.
	from float64
	// restart is the elapsed time at which the current segment began.
	restart time.Duration

	params animation.SpringParams
	spring animation.SpringState

	// failure is the error that cancelled the entry, if any.
	failure error

	heapIndex int
}

func newEntry(h Handle, seq uint64, spec animation.Spec) *entry {
	e := &entry{handle: h, spec: spec, seq: seq, from: spec.From, heapIndex: -1}
	e.state.Store(int32(animation.Pending))
	e.priority.Store(int64(spec.Priority))
	e.storeValue(spec.From)
	if spec.Spring != nil {
		e.params = spec.Spring.WithDefaults()
		e.spring = animation.NewSpringState(e.params, spec.From, spec.To)
	}
	return e
}

func (e *entry) State() animation.State {
	return animation.State(e.state.Load())
}

// transition moves the entry along a legal edge. It fails when the entry is
// no longer in from.
func (e *entry) transition(from, to animation.State) bool {
	if !animation.CanTransition(from, to) {
		return false
	}
	return e.state.CompareAndSwap(int32(from), int32(to))
}

// cancel moves a live entry to Cancelled from whichever state it is in.
func (e *entry) cancel() bool {
	for {
		s := e.State()
		if s.IsTerminal() {
			return false
		}
		if e.transition(s, animation.Cancelled) {
			return true
		}
	}
}

func (e *entry) Value() float64 {
	return math.Float64frombits(e.value.Load())
}

func (e *entry) storeValue(v float64) {
	e.value.Store(math.Float64bits(v))
}

// EntryInfo is a read-only view of a live entry.
type EntryInfo struct {
	Handle   Handle
	ID       string
	Kind     animation.Kind
	State    animation.State
	Priority int
	// Value is the last value applied to the target.
	Value float64
}

func (e *entry) info() EntryInfo {
	return EntryInfo{
		Handle:   e.handle,
		ID:       e.spec.ID,
		Kind:     e.spec.Kind,
		State:    e.State(),
		Priority: int(e.priority.Load()),
		Value:    e.Value(),
	}
}
