package engine

import (
	"time"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/effects"
)

// Event reports that an entry reached a terminal state. Listeners see
// exactly one Event per entry that was ever registered.
type Event struct {
	Handle Handle
	ID     string
	Kind   animation.Kind
	// State is Completed or Cancelled.
	State animation.State
	// Value is the last value applied to the target.
	Value float64
	// Err is set when the entry was cancelled because its setter failed.
	Err error
}

// Metrics is a read-only snapshot published after every tick.
type Metrics struct {
	// Running and Paused count admitted entries; Deferred counts Pending
	// entries waiting for capacity.
	Running  int `json:"running"`
	Paused   int `json:"paused"`
	Deferred int `json:"deferred"`

	Cap             int              `json:"cap"`
	Level           int              `json:"level"`
	Fidelity        effects.Fidelity `json:"fidelity"`
	OverrunFraction float64          `json:"overrunFraction"`

	Registered uint64 `json:"registered"`
	Completed  uint64 `json:"completed"`
	Cancelled  uint64 `json:"cancelled"`
	Failed     uint64 `json:"failed"`
	Ticks      uint64 `json:"ticks"`

	// OverrunTicks counts ticks that cost more than the frame budget.
	OverrunTicks uint64 `json:"overrunTicks"`

	// Fallbacks lists effect kinds that permanently render on the CPU.
	Fallbacks []string `json:"fallbacks,omitempty"`

	LastTick     time.Duration `json:"lastTickNs"`
	LastTickTime time.Time     `json:"lastTickTime"`
}

// Active returns Running plus Paused, the count held against the cap.
func (m Metrics) Active() int { return m.Running + m.Paused }
