package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/engine"
)

type runOptions struct {
	engineOptions
	scenario string
	count    int
	frames   int
	fps      int
	json     bool
}

func init() {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless simulation",
		Long: `Run registers a batch of animations and ticks the scheduler at a fixed
frame interval until every animation has finished or --frames is reached.

Animated values are written to an in-memory sink. Simulated time advances
by exactly one frame per tick; tick cost is measured on the wall clock, so
the quality controller reacts to how fast this machine is.`,
		Example: `  motion run --scenario hover --count 1500
  motion run --scenario spring --reduced-motion
  motion run --scenario mixed --gpu --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.scenario, "scenario", "hover", "Scenario: "+strings.Join(scenarioNames(), "|"))
	cmd.Flags().IntVar(&opts.count, "count", 100, "Number of animations to register")
	cmd.Flags().IntVar(&opts.frames, "frames", 600, "Maximum number of frames to tick")
	cmd.Flags().IntVar(&opts.fps, "fps", 60, "Simulated frame rate")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the report as JSON")
	RegisterCommand(cmd)
}

func runRun(cmd *cobra.Command, opts runOptions) error {
	sc, err := lookupScenario(opts.scenario)
	if err != nil {
		return err
	}
	if opts.count <= 0 {
		return fmt.Errorf("--count must be > 0")
	}
	if opts.fps <= 0 {
		return fmt.Errorf("--fps must be > 0")
	}

	s, release := newScheduler(cmd.Context(), cmd, opts.engineOptions, globals.cfg, globals.log)
	defer release()

	report, err := simulate(cmd.Context(), s, sc, simOptions{
		Count:  opts.count,
		Frames: opts.frames,
		Frame:  time.Second / time.Duration(opts.fps),
	})
	if err != nil {
		return err
	}
	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	report.print(cmd.OutOrStdout())
	return nil
}

type simOptions struct {
	Count  int
	Frames int
	Frame  time.Duration
}

// simReport summarizes a simulation.
type simReport struct {
	Scenario     string         `json:"scenario"`
	Count        int            `json:"count"`
	Frames       int            `json:"frames"`
	Frame        time.Duration  `json:"frameNs"`
	Writes       uint64         `json:"writes"`
	PeakActive   int            `json:"peakActive"`
	PeakDeferred int            `json:"peakDeferred"`
	MaxLevel     int            `json:"maxLevel"`
	AverageTick  time.Duration  `json:"averageTickNs"`
	Metrics      engine.Metrics `json:"metrics"`
}

// simulate registers count animations from sc and ticks s until all of them
// are terminal, the frame limit is reached or ctx is done.
func simulate(ctx context.Context, s *engine.Scheduler, sc scenario, opts simOptions) (simReport, error) {
	report := simReport{Scenario: sc.name, Count: opts.Count, Frame: opts.Frame}

	target := animation.Target{Set: func(any, float64) error {
		report.Writes++
		return nil
	}}
	for _, spec := range sc.specs(opts.Count, target) {
		if _, err := s.Register(spec); err != nil {
			return report, fmt.Errorf("register %s: %w", spec.ID, err)
		}
	}

	now := time.Now()
	var total time.Duration
	for opts.Frames <= 0 || report.Frames < opts.Frames {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		now = now.Add(opts.Frame)
		s.Tick(now, opts.Frame)
		report.Frames++

		m := s.Metrics()
		total += m.LastTick
		report.PeakActive = max(report.PeakActive, m.Active())
		report.PeakDeferred = max(report.PeakDeferred, m.Deferred)
		report.MaxLevel = max(report.MaxLevel, m.Level)
		if m.Completed+m.Cancelled == m.Registered {
			break
		}
	}
	report.Metrics = s.Metrics()
	if report.Frames > 0 {
		report.AverageTick = total / time.Duration(report.Frames)
	}
	return report, nil
}

func (r simReport) print(w io.Writer) {
	m := r.Metrics
	fallbacks := "-"
	if len(m.Fallbacks) > 0 {
		fallbacks = strings.Join(m.Fallbacks, ",")
	}
	fmt.Fprintf(w, "%-14s %s\n", "scenario", r.Scenario)
	fmt.Fprintf(w, "%-14s %d\n", "animations", r.Count)
	fmt.Fprintf(w, "%-14s %d (%v each)\n", "frames", r.Frames, r.Frame)
	fmt.Fprintf(w, "%-14s %d\n", "completed", m.Completed)
	fmt.Fprintf(w, "%-14s %d\n", "cancelled", m.Cancelled)
	fmt.Fprintf(w, "%-14s %d\n", "failed", m.Failed)
	fmt.Fprintf(w, "%-14s %d\n", "writes", r.Writes)
	fmt.Fprintf(w, "%-14s %d active, %d deferred\n", "peak", r.PeakActive, r.PeakDeferred)
	fmt.Fprintf(w, "%-14s level %d (max %d), cap %d, fidelity %s\n", "quality", m.Level, r.MaxLevel, m.Cap, m.Fidelity)
	fmt.Fprintf(w, "%-14s %s\n", "cpu fallback", fallbacks)
	fmt.Fprintf(w, "%-14s %v\n", "avg tick", r.AverageTick)
}
