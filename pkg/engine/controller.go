package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-drift/motion/pkg/animation"
)

// Status is the direction or resting place of a [Controller].
//
// The status follows this state machine:
//
//	                Forward()
//	Dismissed ──────────────────► Completed
//	    ▲                              │
//	    │         Reverse()            │
//	    └──────────────────────────────┘
//
// While animating, status is StatusForward or StatusReverse.
type Status int

const (
	// StatusDismissed means the value rests at the lower bound.
	StatusDismissed Status = iota
	// StatusForward means the value is moving toward the upper bound.
	StatusForward
	// StatusReverse means the value is moving toward the lower bound.
	StatusReverse
	// StatusCompleted means the value rests at the upper bound.
	StatusCompleted
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusDismissed:
		return "dismissed"
	case StatusForward:
		return "forward"
	case StatusReverse:
		return "reverse"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ControllerOptions describes the animations a Controller registers.
type ControllerOptions struct {
	// Kind defaults to Fade.
	Kind     animation.Kind
	Duration time.Duration
	Curve    animation.Curve
	// Spring is used when Kind is Spring.
	Spring   *animation.SpringParams
	Priority int

	// LowerBound and UpperBound default to 0 and 1.
	LowerBound float64
	UpperBound float64

	// Target receives every value. Object is passed through unchanged.
	Target animation.Target
}

// Controller animates one property back and forth between two bounds. Each
// Forward, Reverse or AnimateTo call cancels the animation in flight and
// registers a new one starting from the current value.
//
// Controller methods may be called from any goroutine; listeners run on the
// scheduler's tick goroutine.
type Controller struct {
	scheduler *Scheduler
	opts      ControllerOptions

	mu              sync.Mutex
	value           float64
	status          Status
	handle          Handle
	generation      int
	listeners       map[int]func(float64)
	statusListeners map[int]func(Status)
	nextListenerID  int
}

// NewController creates a controller resting at the lower bound.
func NewController(s *Scheduler, opts ControllerOptions) *Controller {
	if opts.LowerBound == 0 && opts.UpperBound == 0 {
		opts.UpperBound = 1
	}
	return &Controller{
		scheduler:       s,
		opts:            opts,
		value:           opts.LowerBound,
		status:          StatusDismissed,
		listeners:       make(map[int]func(float64)),
		statusListeners: make(map[int]func(Status)),
	}
}

// Forward animates from the current value to the upper bound.
func (c *Controller) Forward() error {
	return c.animateTo(c.opts.UpperBound, StatusForward)
}

// Reverse animates from the current value to the lower bound.
func (c *Controller) Reverse() error {
	return c.animateTo(c.opts.LowerBound, StatusReverse)
}

// AnimateTo animates to a specific target value.
func (c *Controller) AnimateTo(target float64) error {
	if target > c.Value() {
		return c.animateTo(target, StatusForward)
	}
	return c.animateTo(target, StatusReverse)
}

func (c *Controller) animateTo(target float64, direction Status) error {
	c.Stop()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	from := c.value
	c.mu.Unlock()

	spec := animation.Spec{
		Kind:     c.opts.Kind,
		From:     from,
		To:       target,
		Duration: c.opts.Duration,
		Curve:    c.opts.Curve,
		Priority: c.opts.Priority,
		Target: animation.Target{
			Object: c.opts.Target.Object,
			Set: func(obj any, v float64) error {
				if err := c.opts.Target.Apply(v); err != nil {
					return err
				}
				c.setValue(gen, v)
				return nil
			},
		},
		OnComplete: func() { c.finish(gen) },
	}
	if c.opts.Kind.UsesSpring() {
		spec.Spring = c.opts.Spring
		spec.Duration = 0
	}

	h, err := c.scheduler.Register(spec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.handle = h
	}
	c.mu.Unlock()
	c.setStatus(direction)
	return nil
}

func (c *Controller) setValue(gen int, v float64) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.value = v
	listeners := make([]func(float64), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

func (c *Controller) finish(gen int) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.handle = 0
	v := c.value
	c.mu.Unlock()

	if v <= c.opts.LowerBound {
		c.setStatus(StatusDismissed)
	} else if v >= c.opts.UpperBound {
		c.setStatus(StatusCompleted)
	}
}

// Stop cancels the animation in flight, leaving the value where it is.
func (c *Controller) Stop() {
	c.mu.Lock()
	h := c.handle
	c.handle = 0
	c.generation++
	c.mu.Unlock()
	if h != 0 {
		c.scheduler.Cancel(h)
	}
}

// Reset stops the controller and writes the lower bound to the target
// immediately.
func (c *Controller) Reset() error {
	c.Stop()
	if err := c.opts.Target.Apply(c.opts.LowerBound); err != nil {
		return err
	}
	c.mu.Lock()
	c.value = c.opts.LowerBound
	c.mu.Unlock()
	c.setStatus(StatusDismissed)
	return nil
}

// Value returns the last value written to the target.
func (c *Controller) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Handle returns the handle of the animation in flight, or zero.
func (c *Controller) Handle() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsAnimating returns true if an animation is in flight.
func (c *Controller) IsAnimating() bool {
	s := c.Status()
	return s == StatusForward || s == StatusReverse
}

// AddListener adds a callback that fires whenever the value changes.
// Returns an unsubscribe function.
func (c *Controller) AddListener(fn func(float64)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// AddStatusListener adds a callback that fires whenever the status changes.
// Returns an unsubscribe function.
func (c *Controller) AddStatusListener(fn func(Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListenerID
	c.nextListenerID++
	c.statusListeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.statusListeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) setStatus(status Status) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	listeners := make([]func(Status), 0, len(c.statusListeners))
	for _, fn := range c.statusListeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}

// Dispose stops the controller and drops its listeners.
func (c *Controller) Dispose() {
	c.Stop()
	c.mu.Lock()
	c.listeners = map[int]func(float64){}
	c.statusListeners = map[int]func(Status){}
	c.mu.Unlock()
}
