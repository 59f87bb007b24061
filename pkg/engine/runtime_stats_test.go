package engine

import (
	"testing"
	"time"

	"github.com/go-drift/motion/pkg/animation"
)

func TestRuntimeSampler_WindowSizing(t *testing.T) {
	tests := []struct {
		name             string
		window, interval time.Duration
		wantInterval     time.Duration
		wantWindow       time.Duration
	}{
		{"defaults", 0, 0, DefaultRuntimeInterval, DefaultRuntimeWindow},
		{"interval floor", time.Minute, 100 * time.Millisecond, time.Second, time.Minute},
		{"window below interval", time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second},
		{"sample cap", time.Hour, time.Second, time.Second, maxRuntimeSamples * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRuntimeSampler(nil, tt.window, tt.interval)
			if r.Interval() != tt.wantInterval || r.Window() != tt.wantWindow {
				t.Errorf("interval=%v window=%v, want %v %v", r.Interval(), r.Window(), tt.wantInterval, tt.wantWindow)
			}
		})
	}
}

func TestRuntimeSampler_CorrelatesOverrunTicks(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	spec := h.spec("heavy", animation.Fade, 0, 1, time.Minute)
	slow := false
	spec.Target.Set = func(any, float64) error {
		if slow {
			h.clk.Advance(2 * DefaultConfig().Quality.Budget)
		}
		return nil
	}
	h.register(spec)
	r := NewRuntimeSampler(h.s, time.Minute, time.Second)

	h.tick(4, frame)
	first := r.Record()
	if first.Ticks != 4 || first.OverrunTicks != 0 || first.Active != 1 {
		t.Errorf("first sample = %+v", first)
	}

	slow = true
	h.tick(3, frame)
	slow = false
	h.tick(2, frame)
	second := r.Record()
	if second.Ticks != 5 || second.OverrunTicks != 3 {
		t.Errorf("second sample ticks=%d overruns=%d, want 5 and 3", second.Ticks, second.OverrunTicks)
	}

	third := r.Record()
	if third.Ticks != 0 || third.OverrunTicks != 0 {
		t.Errorf("idle sample = %+v", third)
	}
	if got := r.Samples(); len(got) != 3 || got[1] != second {
		t.Errorf("samples = %+v", got)
	}
	if m := h.s.Metrics(); m.OverrunTicks != 3 {
		t.Errorf("metrics overrun ticks = %d, want 3", m.OverrunTicks)
	}
}

func TestRing_KeepsNewest(t *testing.T) {
	r := newRing[int](3)
	if r.snapshot() != nil {
		t.Error("empty ring should snapshot to nil")
	}
	for i := 1; i <= 5; i++ {
		r.add(i)
	}
	got := r.snapshot()
	if len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Errorf("snapshot = %v, want [3 4 5]", got)
	}
}
