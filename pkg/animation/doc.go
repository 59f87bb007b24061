// Package animation provides the data model and math of the motion engine:
// animation kinds and lifecycle states, the registration [Spec], easing
// curves, tweens and the spring-damper integrator.
//
// # Core Components
//
//   - [Spec]: what a caller registers with the scheduler. Fixed-duration kinds
//     (Fade, Scale, Slide, Ripple, Morph) carry a Duration and an optional
//     [Curve]; the Spring kind carries [SpringParams].
//
//   - [Curve]: easing functions that transform linear progress into
//     natural-feeling motion, including the Fluent motion curves.
//
//   - [Tween]: interpolates between begin and end values of any type.
//
//   - [Step]: one semi-implicit Euler step of a spring-damper system. It is a
//     pure function of (state, params, dt), so the scheduler can replay it
//     deterministically.
//
// # Lifecycle
//
// Every animation moves through the closed [State] graph checked by
// [CanTransition]. Pending entries wait for admission, Running entries advance
// every tick, Paused entries are frozen, and Completed or Cancelled entries
// are notified exactly once and dropped.
package animation
