package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/effects"
	"github.com/go-drift/motion/pkg/engine"
)

func TestScenarios_ProduceValidSpecs(t *testing.T) {
	target := animation.Target{Set: func(any, float64) error { return nil }}
	for _, name := range scenarioNames() {
		sc, err := lookupScenario(name)
		if err != nil {
			t.Fatal(err)
		}
		seen := map[string]bool{}
		for _, spec := range sc.specs(50, target) {
			if err := spec.Validate(); err != nil {
				t.Errorf("%s: %s: %v", name, spec.ID, err)
			}
			if seen[spec.ID] {
				t.Errorf("%s: duplicate id %s", name, spec.ID)
			}
			seen[spec.ID] = true
		}
	}
	if _, err := lookupScenario("bogus"); err == nil {
		t.Error("unknown scenario accepted")
	}
}

func TestSimulate_CompletesEveryAnimation(t *testing.T) {
	s := engine.New(engine.DefaultConfig())
	defer s.Close()
	sc, _ := lookupScenario("hover")

	report, err := simulate(context.Background(), s, sc, simOptions{Count: 50, Frames: 600, Frame: 16 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if report.Metrics.Completed != 50 || report.Metrics.Cancelled != 0 {
		t.Errorf("metrics = %+v", report.Metrics)
	}
	if report.Frames >= 600 {
		t.Errorf("simulation did not stop early: %d frames", report.Frames)
	}
	if report.Writes == 0 || report.PeakActive != 50 {
		t.Errorf("report = %+v", report)
	}
}

func TestSimulate_CapDefersExcess(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.MaxConcurrency = 10
	cfg.Quality.MinCap = 5
	s := engine.New(cfg)
	defer s.Close()
	sc, _ := lookupScenario("mixed")

	report, err := simulate(context.Background(), s, sc, simOptions{Count: 25, Frames: 2000, Frame: 16 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if report.PeakActive > 10 {
		t.Errorf("peak active = %d, want <= 10", report.PeakActive)
	}
	if report.PeakDeferred != 15 {
		t.Errorf("peak deferred = %d, want 15", report.PeakDeferred)
	}
	if report.Metrics.Completed != 25 {
		t.Errorf("completed = %d, want 25", report.Metrics.Completed)
	}
}

func TestSimulate_StopsOnCancelledContext(t *testing.T) {
	s := engine.New(engine.DefaultConfig())
	defer s.Close()
	sc, _ := lookupScenario("spring")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := simulate(ctx, s, sc, simOptions{Count: 5, Frame: time.Millisecond}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type fakeProgram struct{ released *int }

func (fakeProgram) Update(float64) error { return nil }
func (p fakeProgram) Release()          { *p.released++ }

type fakeCompiler struct {
	fail     map[animation.Kind]error
	released int
}

func (c *fakeCompiler) Compile(kind animation.Kind) (effects.Program, error) {
	if err := c.fail[kind]; err != nil {
		return nil, err
	}
	return fakeProgram{released: &c.released}, nil
}

func TestProbe_ReportsPerKind(t *testing.T) {
	prober := effects.StaticProber{Capability: effects.Capability{
		Available: true,
		Adapter:   "test adapter",
		Effects:   map[animation.Kind]bool{animation.Fade: true, animation.Ripple: true},
	}}
	compiler := &fakeCompiler{fail: map[animation.Kind]error{animation.Ripple: errors.New("shader rejected")}}

	report := probe(context.Background(), prober, compiler, time.Second)
	if !report.Available || report.Adapter != "test adapter" {
		t.Fatalf("report = %+v", report)
	}
	if report.Kinds["fade"] != "gpu" || report.Kinds["ripple"] != "shader rejected" || report.Kinds["slide"] != "cpu" {
		t.Errorf("kinds = %v", report.Kinds)
	}
	if compiler.released != 1 {
		t.Errorf("released = %d, want 1", compiler.released)
	}

	var buf bytes.Buffer
	report.print(&buf)
	if !strings.Contains(buf.String(), "GPU: test adapter") || !strings.Contains(buf.String(), "ripple:  shader rejected") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestProbe_Unavailable(t *testing.T) {
	prober := effects.StaticProber{Err: errors.New("no adapter found")}
	report := probe(context.Background(), prober, &fakeCompiler{}, time.Second)
	if report.Available || report.Error != "no adapter found" {
		t.Errorf("report = %+v", report)
	}
	for kind, backend := range report.Kinds {
		if backend != "cpu" {
			t.Errorf("%s = %s, want cpu", kind, backend)
		}
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		globals.configPath = ""
		globals.logLevel = "info"
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("motion %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestRunCommand_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motion.toml")
	if err := os.WriteFile(path, []byte("[engine]\nmax_concurrency = 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := execute(t, "run", "--config", path, "--log-level", "error",
		"--scenario", "hover", "--count", "20", "--reduced-motion", "--json")

	var report struct {
		Count        int `json:"count"`
		PeakActive   int `json:"peakActive"`
		PeakDeferred int `json:"peakDeferred"`
		Metrics      struct {
			Completed uint64 `json:"completed"`
			Cap       int    `json:"cap"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if report.Count != 20 || report.Metrics.Completed != 20 {
		t.Errorf("report = %+v", report)
	}
	if report.PeakActive > 8 || report.PeakDeferred != 12 {
		t.Errorf("peak active = %d, deferred = %d", report.PeakActive, report.PeakDeferred)
	}
}

func TestRunCommand_RejectsUnknownScenario(t *testing.T) {
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"run", "--scenario", "nope", "--json=false"})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err == nil || !strings.Contains(err.Error(), "unknown scenario") {
		t.Errorf("err = %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	if !strings.Contains(out, "motion version "+Version) || !strings.Contains(out, "config schema v1.0.0") {
		t.Errorf("output = %q", out)
	}
}
