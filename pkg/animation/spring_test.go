package animation

import (
	stderrors "errors"
	"math"
	"testing"
	"time"

	"github.com/charmbracelet/harmonica"

	"github.com/go-drift/motion/pkg/errors"
)

const frame = time.Second / 60

func runSpring(p SpringParams, from, to float64, dt time.Duration, maxTicks int) (SpringState, int) {
	p = p.WithDefaults()
	s := NewSpringState(p, from, to)
	for i := 1; i <= maxTicks; i++ {
		var settled bool
		s, settled = Step(s, p, dt, DefaultMaxStep)
		if settled {
			return s, i
		}
	}
	return s, -1
}

func TestStepSettlesDefaultSpring(t *testing.T) {
	s, ticks := runSpring(SpringParams{Mass: 1, Stiffness: 170, Damping: 26}, 0, 100, frame, 600)
	if ticks < 0 {
		t.Fatalf("spring did not settle, x=%v v=%v", s.X, s.V)
	}
	if math.Abs(s.X-100) >= 0.5 {
		t.Errorf("|x-100| = %v, want < 0.5", math.Abs(s.X-100))
	}
	// Settling must happen well before the default max duration.
	if limit := int(DefaultSpringMaxDuration / frame); ticks > limit {
		t.Errorf("settled after %d ticks, want <= %d", ticks, limit)
	}
}

func TestCriticallyDampedConvergesWithoutOvershoot(t *testing.T) {
	p := CriticallyDampedSpring(1, 170)
	if !p.IsCriticallyDamped() {
		t.Fatalf("damping ratio = %v, want 1", p.DampingRatio())
	}
	p = p.WithDefaults()

	s := NewSpringState(p, 0, 100)
	reached := -1
	for i := 1; i <= 120; i++ {
		s, _ = Step(s, p, frame, DefaultMaxStep)
		if s.X > 100+1e-6 {
			t.Fatalf("tick %d: x = %v overshoots the target", i, s.X)
		}
		if reached < 0 && math.Abs(s.X-100) < p.PositionEpsilon {
			reached = i
		}
	}
	if reached < 0 {
		t.Fatalf("did not reach positionEpsilon within 120 ticks, x = %v", s.X)
	}
}

func TestPresetsSettle(t *testing.T) {
	for _, name := range []string{"default", "gentle", "bouncy", "stiff", "wobbly"} {
		t.Run(name, func(t *testing.T) {
			p, ok := Preset(name)
			if !ok {
				t.Fatalf("preset %q missing", name)
			}
			if err := p.Validate(); err != nil {
				t.Fatalf("preset invalid: %v", err)
			}
			if _, ticks := runSpring(p, 0, 100, frame, 300); ticks < 0 {
				t.Errorf("preset %q did not settle within 300 ticks", name)
			}
		})
	}
	if _, ok := Preset("nope"); ok {
		t.Error("unknown preset should not be found")
	}
}

func TestStepClampsStalledFrames(t *testing.T) {
	p := DefaultSpring().WithDefaults()
	s := NewSpringState(p, 0, 100)

	// A one-second stall integrates as a single DefaultMaxStep.
	stalled, _ := Step(s, p, time.Second, DefaultMaxStep)
	clamped, _ := Step(s, p, DefaultMaxStep, DefaultMaxStep)
	if stalled != clamped {
		t.Errorf("stalled step = %+v, want %+v", stalled, clamped)
	}

	for range 200 {
		stalled, _ = Step(stalled, p, time.Second, DefaultMaxStep)
		if math.IsNaN(stalled.X) || math.Abs(stalled.X) > 1000 {
			t.Fatalf("simulation diverged: x = %v", stalled.X)
		}
	}
	if math.Abs(stalled.X-100) > 0.01 {
		t.Errorf("x = %v, want 100", stalled.X)
	}
}

func TestStepZeroDtIsIdentity(t *testing.T) {
	p := DefaultSpring().WithDefaults()
	s := SpringState{X: 3, V: 4, Target: 10}
	got, settled := Step(s, p, 0, DefaultMaxStep)
	if got != s || settled {
		t.Errorf("Step(dt=0) = %+v settled=%v, want unchanged and unsettled", got, settled)
	}
}

func TestRetargetPreservesVelocity(t *testing.T) {
	p := DefaultSpring().WithDefaults()
	s := NewSpringState(p, 0, 100)
	for range 10 {
		s, _ = Step(s, p, frame, DefaultMaxStep)
	}
	moved := s.Retarget(-50)
	if moved.X != s.X || moved.V != s.V {
		t.Errorf("Retarget changed x/v: %+v -> %+v", s, moved)
	}
	if moved.Target != -50 {
		t.Errorf("Target = %v, want -50", moved.Target)
	}

	// The first step after retargeting continues from the same velocity.
	h := frame.Seconds()
	a := (-p.Stiffness*(moved.X-moved.Target) - p.Damping*moved.V) / p.Mass
	wantV := moved.V + a*h
	next, _ := Step(moved, p, frame, DefaultMaxStep)
	if math.Abs(next.V-wantV) > 1e-9 {
		t.Errorf("v after retarget = %v, want %v", next.V, wantV)
	}
	if math.Abs(next.X-(moved.X+wantV*h)) > 1e-9 {
		t.Errorf("x after retarget = %v, want %v", next.X, moved.X+wantV*h)
	}
}

func TestMaxVelocityClamp(t *testing.T) {
	p := StiffSpring()
	p.MaxVelocity = 50
	p = p.WithDefaults()
	s := NewSpringState(p, 0, 1000)
	for range 30 {
		s, _ = Step(s, p, frame, DefaultMaxStep)
		if math.Abs(s.V) > 50 {
			t.Fatalf("|v| = %v exceeds MaxVelocity", math.Abs(s.V))
		}
	}
}

// The semi-implicit integrator should track the exact damped-oscillator
// solution closely and land on the same rest position.
func TestStepTracksAnalyticSolution(t *testing.T) {
	p := DefaultSpring().WithDefaults()
	ref := harmonica.NewSpring(harmonica.FPS(60), p.AngularFrequency(), p.DampingRatio())

	s := NewSpringState(p, 0, 100)
	refX, refV := 0.0, 0.0
	for i := 1; i <= 120; i++ {
		s, _ = Step(s, p, frame, DefaultMaxStep)
		refX, refV = ref.Update(refX, refV, 100)
		if d := math.Abs(s.X - refX); d > 10 {
			t.Fatalf("tick %d: integrator x=%v, analytic x=%v (diff %v)", i, s.X, refX, d)
		}
	}
	if d := math.Abs(s.X - refX); d > 0.5 {
		t.Errorf("rest positions differ by %v", d)
	}
}

func TestSpringParamsValidate(t *testing.T) {
	tests := []struct {
		name  string
		p     SpringParams
		field string
	}{
		{"zero mass", SpringParams{Mass: 0, Stiffness: 1}, "Spring.Mass"},
		{"negative stiffness", SpringParams{Mass: 1, Stiffness: -1}, "Spring.Stiffness"},
		{"negative damping", SpringParams{Mass: 1, Stiffness: 1, Damping: -1}, "Spring.Damping"},
		{"nan damping", SpringParams{Mass: 1, Stiffness: 1, Damping: math.NaN()}, "Spring.Damping"},
		{"negative epsilon", SpringParams{Mass: 1, Stiffness: 1, PositionEpsilon: -1}, "Spring.Epsilon"},
		{"nan position epsilon", SpringParams{Mass: 1, Stiffness: 1, PositionEpsilon: math.NaN()}, "Spring.Epsilon"},
		{"nan velocity epsilon", SpringParams{Mass: 1, Stiffness: 1, VelocityEpsilon: math.NaN()}, "Spring.Epsilon"},
		{"nan max velocity", SpringParams{Mass: 1, Stiffness: 1, MaxVelocity: math.NaN()}, "Spring.MaxVelocity"},
		{"negative max duration", SpringParams{Mass: 1, Stiffness: 1, MaxDuration: -time.Second}, "Spring.MaxDuration"},
		{"undamped is valid", SpringParams{Mass: 1, Stiffness: 1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *errors.ValidationError
			if !stderrors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}
