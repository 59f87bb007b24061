package engine

import (
	"testing"
	"time"

	"github.com/go-drift/motion/pkg/animation"
)

func TestController_ForwardAndReverse(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	c := NewController(h.s, ControllerOptions{
		Kind:     animation.Fade,
		Duration: 100 * time.Millisecond,
		Target:   h.rec.Target("opacity"),
	})

	var statuses []Status
	c.AddStatusListener(func(s Status) { statuses = append(statuses, s) })
	var values int
	c.AddListener(func(float64) { values++ })

	if err := c.Forward(); err != nil {
		t.Fatal(err)
	}
	if !c.IsAnimating() || c.Status() != StatusForward {
		t.Fatalf("status = %v, want forward", c.Status())
	}
	h.tick(10, frame)
	if c.Status() != StatusCompleted || c.Value() != 1 {
		t.Fatalf("after forward: status=%v value=%v", c.Status(), c.Value())
	}
	if values != 10 {
		t.Errorf("value listener calls = %d, want 10", values)
	}
	if c.Handle() != 0 {
		t.Error("handle kept after completion")
	}

	if err := c.Reverse(); err != nil {
		t.Fatal(err)
	}
	h.tick(10, frame)
	if c.Status() != StatusDismissed || c.Value() != 0 {
		t.Fatalf("after reverse: status=%v value=%v", c.Status(), c.Value())
	}

	want := []Status{StatusForward, StatusCompleted, StatusReverse, StatusDismissed}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("status %d = %v, want %v", i, statuses[i], want[i])
		}
	}
}

func TestController_InterruptStartsFromCurrentValue(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	c := NewController(h.s, ControllerOptions{
		Kind:     animation.Scale,
		Duration: 100 * time.Millisecond,
		Target:   h.rec.Target("scale"),
	})

	c.Forward()
	h.tick(5, frame)
	first := c.Handle()
	if v := c.Value(); v != 0.5 {
		t.Fatalf("value = %v, want 0.5", v)
	}

	c.Reverse()
	if c.Handle() == first {
		t.Fatal("Reverse reused the old handle")
	}
	h.tick(1, frame)
	if _, ok := h.s.Lookup(first); ok {
		t.Error("interrupted animation still live")
	}
	if v := c.Value(); v != 0.45 {
		t.Errorf("value after reversing = %v, want 0.45", v)
	}
	if c.Status() != StatusReverse {
		t.Errorf("status = %v, want reverse", c.Status())
	}
}

func TestController_StopAndReset(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	c := NewController(h.s, ControllerOptions{
		Kind:       animation.Slide,
		Duration:   100 * time.Millisecond,
		LowerBound: -10,
		UpperBound: 10,
		Target:     h.rec.Target("x"),
	})
	if c.Value() != -10 {
		t.Fatalf("initial value = %v, want -10", c.Value())
	}

	c.AnimateTo(0)
	h.tick(3, frame)
	c.Stop()
	h.tick(3, frame)
	stopped := c.Value()
	if len(h.rec.Values("x")) != 3 {
		t.Errorf("setter calls = %d, want 3", len(h.rec.Values("x")))
	}

	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	if c.Value() != -10 || c.Status() != StatusDismissed {
		t.Errorf("after reset: value=%v status=%v (stopped at %v)", c.Value(), c.Status(), stopped)
	}
	if v, _ := h.rec.Last("x"); v != -10 {
		t.Errorf("reset did not write the lower bound: %v", v)
	}
	c.Dispose()
}

func TestController_Spring(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	params := animation.DefaultSpring()
	c := NewController(h.s, ControllerOptions{
		Kind:   animation.Spring,
		Spring: &params,
		Target: h.rec.Target("spring"),
	})
	if err := c.Forward(); err != nil {
		t.Fatal(err)
	}
	h.tick(200, time.Second/60)
	if c.Status() != StatusCompleted || c.Value() != 1 {
		t.Errorf("status=%v value=%v", c.Status(), c.Value())
	}
}
