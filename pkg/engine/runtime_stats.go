package engine

import (
	"context"
	"runtime"
	"sync"
	"time"
)

const (
	DefaultRuntimeInterval = 5 * time.Second
	DefaultRuntimeWindow   = time.Minute

	minRuntimeInterval = time.Second
	maxRuntimeSamples  = 120
)

// RuntimeSample is one reading of the Go runtime taken next to the
// scheduler's tick counters. The Interval fields cover the time since the
// previous sample, so a GC burst and the overrun ticks it caused land in the
// same row.
type RuntimeSample struct {
	Timestamp  int64  `json:"ts"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapInuse  uint64 `json:"heapInuse"`

	GCs          uint32 `json:"gcs"`
	GCPauseNs    uint64 `json:"gcPauseNs"`
	Ticks        uint64 `json:"ticks"`
	OverrunTicks uint64 `json:"overrunTicks"`

	Active int `json:"active"`
	Level  int `json:"level"`
}

// runtimeTotals are the cumulative counters samples are differenced from.
type runtimeTotals struct {
	numGC    uint32
	pauseNs  uint64
	ticks    uint64
	overruns uint64
}

// RuntimeSampler keeps a window of runtime samples correlated with a
// scheduler's tick load.
type RuntimeSampler struct {
	scheduler *Scheduler
	interval  time.Duration

	mu     sync.RWMutex
	ring   ring[RuntimeSample]
	totals runtimeTotals
}

// NewRuntimeSampler creates a sampler for s covering window at one sample
// per interval. A nil s records runtime stats only.
func NewRuntimeSampler(s *Scheduler, window, interval time.Duration) *RuntimeSampler {
	if interval <= 0 {
		interval = DefaultRuntimeInterval
	}
	interval = max(interval, minRuntimeInterval)
	if window <= 0 {
		window = DefaultRuntimeWindow
	}
	capacity := min(max(int(window/interval), 1), maxRuntimeSamples)

	return &RuntimeSampler{
		scheduler: s,
		interval:  interval,
		ring:      newRing[RuntimeSample](capacity),
	}
}

// Interval returns the sampling interval.
func (r *RuntimeSampler) Interval() time.Duration { return r.interval }

// Window returns the span of history kept.
func (r *RuntimeSampler) Window() time.Duration {
	return time.Duration(len(r.ring.items)) * r.interval
}

// Record takes one sample now and stores it. The first sample's interval
// fields count from process start and scheduler creation.
func (r *RuntimeSampler) Record() RuntimeSample {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	var m Metrics
	if r.scheduler != nil {
		m = r.scheduler.Metrics()
	}
	now := runtimeTotals{
		numGC:    stats.NumGC,
		pauseNs:  stats.PauseTotalNs,
		ticks:    m.Ticks,
		overruns: m.OverrunTicks,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.totals
	r.totals = now
	sample := RuntimeSample{
		Timestamp:    time.Now().UnixMilli(),
		Goroutines:   runtime.NumGoroutine(),
		HeapAlloc:    stats.HeapAlloc,
		HeapInuse:    stats.HeapInuse,
		GCs:          now.numGC - prev.numGC,
		GCPauseNs:    now.pauseNs - prev.pauseNs,
		Ticks:        now.ticks - prev.ticks,
		OverrunTicks: now.overruns - prev.overruns,
		Active:       m.Active(),
		Level:        m.Level,
	}
	r.ring.add(sample)
	return sample
}

// Samples returns the kept samples, oldest first.
func (r *RuntimeSampler) Samples() []RuntimeSample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ring.snapshot()
}

// Run records a sample immediately and then every interval until ctx is
// done.
func (r *RuntimeSampler) Run(ctx context.Context) {
	r.Record()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Record()
		case <-ctx.Done():
			return
		}
	}
}
