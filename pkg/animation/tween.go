package animation

import "image/color"

// Tween interpolates between Begin and End values based on animation progress.
//
// The scheduler evaluates fixed-duration entries through a float64 tween;
// property setters can use their own tweens to map the applied value onto
// richer types such as colors.
type Tween[T any] struct {
	// Begin is the starting value (when t = 0).
	Begin T
	// End is the ending value (when t = 1).
	End T
	// Lerp linearly interpolates between Begin and End. Receives the begin value,
	// end value, and progress t in [0, 1]. Returns the interpolated value.
	Lerp func(a, b T, t float64) T
}

// Evaluate returns the interpolated value at t (0.0 to 1.0).
func (tw *Tween[T]) Evaluate(t float64) T {
	if tw.Lerp == nil {
		return tw.End
	}
	return tw.Lerp(tw.Begin, tw.End, t)
}

// EvaluateCurve applies curve to t before interpolating. A nil curve is linear.
func (tw *Tween[T]) EvaluateCurve(curve Curve, t float64) T {
	if curve != nil {
		t = curve(t)
	}
	return tw.Evaluate(t)
}

// LerpFloat64 linearly interpolates between two float64 values.
func LerpFloat64(a, b float64, t float64) float64 {
	return a + (b-a)*t
}

// LerpColor linearly interpolates between two colors channel by channel.
func LerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: lerpChannel(a.R, b.R, t),
		G: lerpChannel(a.G, b.G, t),
		B: lerpChannel(a.B, b.B, t),
		A: lerpChannel(a.A, b.A, t),
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	v := LerpFloat64(float64(a), float64(b), t)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// TweenFloat64 creates a tween for float64 values.
func TweenFloat64(begin, end float64) *Tween[float64] {
	return &Tween[float64]{
		Begin: begin,
		End:   end,
		Lerp:  LerpFloat64,
	}
}

// TweenColor creates a tween for RGBA colors.
func TweenColor(begin, end color.RGBA) *Tween[color.RGBA] {
	return &Tween[color.RGBA]{
		Begin: begin,
		End:   end,
		Lerp:  LerpColor,
	}
}
