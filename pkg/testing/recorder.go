package testing

import (
	"fmt"
	"sync"

	"github.com/go-drift/motion/pkg/animation"
)

// Recorder captures setter calls and lifecycle notifications by name.
// All methods are safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	values map[string][]float64
	events []string
	fail   map[string]error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		values: make(map[string][]float64),
		fail:   make(map[string]error),
	}
}

// Target returns a target whose setter records values under name.
func (r *Recorder) Target(name string) animation.Target {
	return animation.Target{Object: name, Set: r.Setter(name)}
}

// Setter returns a setter that records values under name.
func (r *Recorder) Setter(name string) animation.Setter {
	return func(_ any, v float64) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.fail[name]; err != nil {
			return err
		}
		r.values[name] = append(r.values[name], v)
		return nil
	}
}

// FailWith makes the setter for name return err from now on.
// A nil err clears the failure.
func (r *Recorder) FailWith(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, name)
		return
	}
	r.fail[name] = err
}

// OnComplete returns a callback recording "complete:<name>".
func (r *Recorder) OnComplete(name string) func() {
	return func() { r.event("complete:" + name) }
}

// OnCancel returns a callback recording "cancel:<name>".
func (r *Recorder) OnCancel(name string) func() {
	return func() { r.event("cancel:" + name) }
}

func (r *Recorder) event(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Values returns a copy of the values recorded for name.
func (r *Recorder) Values(name string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.values[name]...)
}

// Last returns the most recent value recorded for name.
func (r *Recorder) Last(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vs := r.values[name]
	if len(vs) == 0 {
		return 0, false
	}
	return vs[len(vs)-1], true
}

// Events returns the notifications in the order they fired.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Count returns how many times event fired.
func (r *Recorder) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// String summarizes the recorder for failure messages.
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("Recorder{targets: %d, events: %v}", len(r.values), r.events)
}
