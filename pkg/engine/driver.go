package engine

import (
	"context"
	"sync"
	"time"

	"github.com/go-drift/motion/pkg/animation"
)

// DefaultFrameInterval is the tick interval used by Run when none is given.
const DefaultFrameInterval = 16 * time.Millisecond

// Driver calls Tick on a scheduler with the time elapsed since the previous
// step. It is the frame loop for hosts that have no display link of their
// own.
type Driver struct {
	scheduler *Scheduler
	clock     animation.Clock

	mu   sync.Mutex
	last time.Time
}

// NewDriver creates a driver for s. A nil clock uses the system clock.
func NewDriver(s *Scheduler, clock animation.Clock) *Driver {
	if clock == nil {
		clock = animation.SystemClock{}
	}
	return &Driver{scheduler: s, clock: clock}
}

// Step ticks the scheduler once and returns the dt it used. The first step
// uses a zero dt.
func (d *Driver) Step() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	var dt time.Duration
	if !d.last.IsZero() {
		dt = now.Sub(d.last)
	}
	d.last = now
	d.scheduler.Tick(now, dt)
	return dt
}

// Reset forgets the previous step time, so the next step uses a zero dt.
// Call it after the host was suspended.
func (d *Driver) Reset() {
	d.mu.Lock()
	d.last = time.Time{}
	d.mu.Unlock()
}

// Run steps the scheduler every interval until ctx is done, then returns
// ctx.Err().
func (d *Driver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.Step()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Step()
		}
	}
}
