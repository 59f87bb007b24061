package engine

import (
	"sync"
	"time"
)

// TickPhaseTimings captures time spent in each tick step (ms).
type TickPhaseTimings struct {
	DrainMs   float64 `json:"drainMs"`
	AdmitMs   float64 `json:"admitMs"`
	AdvanceMs float64 `json:"advanceMs"`
	NotifyMs  float64 `json:"notifyMs"`
}

// TickCounts captures per-tick workload indicators.
type TickCounts struct {
	Requests  int `json:"requests"`
	Admitted  int `json:"admitted"`
	Running   int `json:"running"`
	Paused    int `json:"paused"`
	Deferred  int `json:"deferred"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// TickSample is a single tick trace sample.
type TickSample struct {
	// Timestamp is the tick's now in Unix milliseconds.
	Timestamp int64            `json:"ts"`
	DtMs      float64          `json:"dtMs"`
	TickMs    float64          `json:"tickMs"`
	Phases    TickPhaseTimings `json:"phases"`
	Counts    TickCounts       `json:"counts"`
	Cap       int              `json:"cap"`
	Level     int              `json:"level"`
}

// TickTimeline is the diagnostics response shape.
type TickTimeline struct {
	Samples      []TickSample `json:"samples"`
	OverrunTicks int          `json:"overrunTicks"`
	BudgetMs     float64      `json:"budgetMs"`
}

// TickTraceBuffer keeps the most recent tick samples and counts every tick
// that cost more than the frame budget.
type TickTraceBuffer struct {
	mu      sync.RWMutex
	ring    ring[TickSample]
	overrun int
	budget  time.Duration
}

// NewTickTraceBuffer creates a trace buffer. Ticks costing more than budget
// are counted as overruns.
func NewTickTraceBuffer(capacity int, budget time.Duration) *TickTraceBuffer {
	if capacity <= 0 {
		capacity = DefaultTraceSamples
	}
	return &TickTraceBuffer{ring: newRing[TickSample](capacity), budget: budget}
}

// Capacity returns the number of samples kept.
func (b *TickTraceBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ring.items)
}

// Add records a tick sample and reports whether the tick overran.
func (b *TickTraceBuffer) Add(sample TickSample, cost time.Duration) bool {
	over := cost > b.budget
	b.mu.Lock()
	b.ring.add(sample)
	if over {
		b.overrun++
	}
	b.mu.Unlock()
	return over
}

// Snapshot returns the samples oldest first with the overrun total.
func (b *TickTraceBuffer) Snapshot() TickTimeline {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return TickTimeline{
		Samples:      b.ring.snapshot(),
		OverrunTicks: b.overrun,
		BudgetMs:     durationToMillis(b.budget),
	}
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
