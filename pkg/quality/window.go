package quality

import (
	"sync"
	"time"
)

// Window is a ring buffer of tick durations.
type Window struct {
	mu       sync.RWMutex
	samples  []time.Duration
	index    int
	capacity int
	count    int
}

// NewWindow creates a Window holding the last capacity samples.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Window{
		samples:  make([]time.Duration, capacity),
		capacity: capacity,
	}
}

// Add records a tick duration.
func (w *Window) Add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.index] = d
	w.index = (w.index + 1) % w.capacity
	if w.count < w.capacity {
		w.count++
	}
}

// Samples returns a copy of the samples in chronological order.
func (w *Window) Samples() []time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return nil
	}

	result := make([]time.Duration, w.count)
	if w.count < w.capacity {
		copy(result, w.samples[:w.count])
	} else {
		// Full: the oldest sample is at w.index.
		copy(result, w.samples[w.index:])
		copy(result[w.capacity-w.index:], w.samples[:w.index])
	}
	return result
}

// SamplesInto copies samples into dst and returns the number copied.
// Samples are in chronological order.
func (w *Window) SamplesInto(dst []time.Duration) int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return 0
	}

	n := min(w.count, len(dst))

	if w.count < w.capacity {
		copy(dst[:n], w.samples[:n])
	} else {
		firstPart := w.capacity - w.index
		if firstPart >= n {
			copy(dst[:n], w.samples[w.index:w.index+n])
		} else {
			copy(dst[:firstPart], w.samples[w.index:])
			copy(dst[firstPart:n], w.samples[:n-firstPart])
		}
	}
	return n
}

// Count returns the number of samples held.
func (w *Window) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Capacity returns the window size.
func (w *Window) Capacity() int { return w.capacity }

// Full reports whether the window holds capacity samples.
func (w *Window) Full() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count == w.capacity
}

// Reset drops every sample.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index = 0
	w.count = 0
}

// OverrunFraction returns the fraction of samples strictly above budget.
// An empty window reports 0.
func (w *Window) OverrunFraction(budget time.Duration) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.count == 0 {
		return 0
	}
	over := 0
	for i := 0; i < w.count; i++ {
		if w.samples[i] > budget {
			over++
		}
	}
	return float64(over) / float64(w.count)
}
