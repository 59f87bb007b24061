package engine

import (
	"time"

	"github.com/go-drift/motion/pkg/animation"
)

// advancer moves an entry forward by dt and returns the value to apply and
// whether the entry has finished.
type advancer interface {
	advance(e *entry, dt, maxStep time.Duration) (value float64, done bool)
	retarget(e *entry, to float64)
}

// advancers is the per-kind handler table. Adding a kind means adding one
// row here.
var advancers = map[animation.Kind]advancer{
	animation.Fade:   tweenAdvancer{},
	animation.Scale:  tweenAdvancer{},
	animation.Slide:  tweenAdvancer{},
	animation.Ripple: tweenAdvancer{},
	animation.Morph:  tweenAdvancer{},
	animation.Spring: springAdvancer{},
}

// tweenAdvancer drives fixed-duration kinds through their easing curve.
type tweenAdvancer struct{}

func (tweenAdvancer) advance(e *entry, dt, _ time.Duration) (float64, bool) {
	e.elapsed += dt
	start := max(e.restart, e.spec.Delay)
	if e.elapsed < start {
		return e.from, false
	}

	t := 1.0
	if e.spec.Duration > 0 {
		t = float64(e.elapsed-start) / float64(e.spec.Duration)
	}
	if t >= 1 {
		return e.spec.To, true
	}
	tw := animation.TweenFloat64(e.from, e.spec.To)
	return tw.EvaluateCurve(e.spec.Curve, t), false
}

// retarget restarts the curve from the current value toward to.
func (tweenAdvancer) retarget(e *entry, to float64) {
	if e.elapsed > e.spec.Delay {
		e.from = e.Value()
		e.restart = e.elapsed
	}
	e.spec.To = to
}

// springAdvancer integrates the spring-damper system.
type springAdvancer struct{}

func (springAdvancer) advance(e *entry, dt, maxStep time.Duration) (float64, bool) {
	e.elapsed += dt
	if e.elapsed < e.spec.Delay {
		return e.spring.X, false
	}

	var settled bool
	e.spring, settled = animation.Step(e.spring, e.params, dt, maxStep)
	if settled || e.elapsed-e.spec.Delay >= e.params.MaxDuration {
		e.spring = e.spring.Settle()
		return e.spring.X, true
	}
	return e.spring.X, false
}

// retarget keeps position and velocity so the motion stays continuous.
func (springAdvancer) retarget(e *entry, to float64) {
	e.spring = e.spring.Retarget(to)
	e.spec.To = to
}
