package animation

import "math"

// Curve transforms linear animation progress into natural-feeling motion.
//
// A curve takes a value t in [0, 1] and returns a transformed value. Set a
// [Spec]'s Curve field to apply easing to a fixed-duration animation.
//
// Standard curves: [LinearCurve], [Ease], [EaseIn], [EaseOut], [EaseInOut].
// Fluent motion curves: [FluentStandard], [FluentAccelerate],
// [FluentDecelerate] and friends. Use [CubicBezier] to create custom curves
// matching CSS cubic-bezier().
type Curve func(t float64) float64

// LinearCurve returns linear progress (no easing).
func LinearCurve(t float64) float64 {
	return t
}

// IOSNavigationCurve approximates iOS navigation transition easing.
var IOSNavigationCurve = CubicBezier(0.22, 1.0, 0.36, 1.0)

// Ease is a standard cubic bezier curve for general-purpose easing.
// Equivalent to CSS ease.
var Ease = CubicBezier(0.25, 0.1, 0.25, 1.0)

// EaseIn starts slowly and accelerates. Use for elements exiting the screen.
// Equivalent to CSS ease-in.
var EaseIn = CubicBezier(0.4, 0.0, 1.0, 1.0)

// EaseOut starts quickly and decelerates. Use for elements entering the screen.
// Equivalent to CSS ease-out.
var EaseOut = CubicBezier(0.0, 0.0, 0.2, 1.0)

// EaseInOut starts and ends slowly with acceleration in the middle.
// Use for elements that stay on screen but change state.
// Equivalent to CSS ease-in-out.
var EaseInOut = CubicBezier(0.4, 0.0, 0.2, 1.0)

// Fluent motion curves.
var (
	FluentStandard   = CubicBezier(0.8, 0.0, 0.2, 1.0)
	FluentAccelerate = CubicBezier(0.7, 0.0, 1.0, 1.0)
	FluentDecelerate = CubicBezier(0.1, 0.9, 0.2, 1.0)
	FluentEmphasized = CubicBezier(0.3, 0.0, 0.8, 0.15)
	FluentSubtle     = CubicBezier(0.33, 0.0, 0.67, 1.0)
	// FluentExpressive overshoots on both ends.
	FluentExpressive = CubicBezier(0.68, -0.55, 0.265, 1.55)
)

var namedCurves = map[string]Curve{
	"linear":            LinearCurve,
	"ease":              Ease,
	"ease-in":           EaseIn,
	"ease-out":          EaseOut,
	"ease-in-out":       EaseInOut,
	"ios-navigation":    IOSNavigationCurve,
	"fluent-standard":   FluentStandard,
	"fluent-accelerate": FluentAccelerate,
	"fluent-decelerate": FluentDecelerate,
	"fluent-emphasized": FluentEmphasized,
	"fluent-subtle":     FluentSubtle,
	"fluent-expressive": FluentExpressive,
}

// CurveByName looks up a curve by its kebab-case name (e.g., "ease-out").
func CurveByName(name string) (Curve, bool) {
	c, ok := namedCurves[name]
	return c, ok
}

// CubicBezier returns a cubic-bezier easing function matching CSS cubic-bezier().
// The parameters define the two control points (x1,y1) and (x2,y2) of the curve.
// The curve starts at (0,0) and ends at (1,1).
func CubicBezier(x1, y1, x2, y2 float64) Curve {
	return func(t float64) float64 {
		if t <= 0 {
			return 0
		}
		if t >= 1 {
			return 1
		}

		u := t
		// Newton-Raphson converges quickly for most values.
		for range 8 {
			x := sampleCurve(x1, x2, u) - t
			if math.Abs(x) < 1e-7 {
				return sampleCurve(y1, y2, clampUnit(u))
			}
			dx := sampleCurveDerivative(x1, x2, u)
			if math.Abs(dx) < 1e-7 {
				break
			}
			u -= x / dx
		}

		// Fallback to bisection to guarantee a stable solution in [0,1].
		lo, hi := 0.0, 1.0
		u = clampUnit(u)
		for range 12 {
			x := sampleCurve(x1, x2, u) - t
			if math.Abs(x) < 1e-7 {
				break
			}
			if x > 0 {
				hi = u
			} else {
				lo = u
			}
			u = (lo + hi) * 0.5
		}

		return sampleCurve(y1, y2, u)
	}
}

func sampleCurve(a, b, t float64) float64 {
	inv := 1 - t
	return 3*inv*inv*t*a + 3*inv*t*t*b + t*t*t
}

func sampleCurveDerivative(a, b, t float64) float64 {
	inv := 1 - t
	return 3*inv*inv*a + 6*inv*t*(b-a) + 3*t*t*(1-b)
}

func clampUnit(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
