// Package testing provides helpers for deterministic motion tests.
//
// # Clocks
//
// [FakeClock] only moves when told to. [SteppingClock] moves a fixed step on
// every read, which gives every scheduler tick a known cost:
//
//	clk := motiontest.NewSteppingClock(20 * time.Millisecond)
//	s := engine.New(cfg, engine.WithClock(clk))
//
// # Recording
//
// [Recorder] hands out setters and lifecycle callbacks that log what the
// scheduler did:
//
//	rec := motiontest.NewRecorder()
//	s.Register(animation.Spec{
//	    Kind:       animation.Fade,
//	    To:         1,
//	    Duration:   300 * time.Millisecond,
//	    Target:     rec.Target("fade"),
//	    OnComplete: rec.OnComplete("fade"),
//	})
//
// # Snapshot Testing
//
// Compare a recorded trace against a golden file:
//
//	rec.Snapshot().MatchesFile(t, "testdata/fade.snapshot.json")
//
// Update snapshots with:
//
//	MOTION_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import motiontest "github.com/go-drift/motion/pkg/testing"
package testing
