package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/engine"
)

type previewOptions struct {
	engineOptions
	fps      int
	frames   int
	kinds    []string
	duration time.Duration
	curve    string
}

func init() {
	var opts previewOptions
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview animations as bars in the terminal",
		Long: `Preview runs one looping controller per effect kind and draws its value
as a bar. Use it to compare curves, springs and the reduced-motion and
vestibular rewrites side by side.

Press q, Esc or Ctrl-C to quit.`,
		Example: `  motion preview
  motion preview --kinds fade,spring --reduced-motion`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, release := newScheduler(cmd.Context(), cmd, opts.engineOptions, globals.cfg, globals.log)
			defer release()

			screen, err := tcell.NewScreen()
			if err != nil {
				return err
			}
			if err := screen.Init(); err != nil {
				return err
			}
			defer screen.Fini()
			return runPreview(cmd.Context(), screen, s, opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().IntVar(&opts.fps, "fps", 60, "Frame rate")
	cmd.Flags().IntVar(&opts.frames, "frames", 0, "Stop after this many frames (0 runs until quit)")
	cmd.Flags().StringSliceVar(&opts.kinds, "kinds", nil, "Effect kinds to show (default all)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 600*time.Millisecond, "Duration of fixed-length animations")
	cmd.Flags().StringVar(&opts.curve, "curve", "ease-in-out", "Easing curve (linear, ease, ease-in, ease-out, ease-in-out, ios-navigation, fluent-*)")
	RegisterCommand(cmd)
}

// previewBar is one animated row.
type previewBar struct {
	kind       animation.Kind
	controller *engine.Controller
	lower      float64
	upper      float64
}

func newPreviewBars(s *engine.Scheduler, names []string, d time.Duration, curve animation.Curve) ([]*previewBar, error) {
	kinds := animation.Kinds()
	if len(names) > 0 {
		kinds = kinds[:0:0]
		for _, name := range names {
			k, err := animation.ParseKind(name)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, k)
		}
	}

	bars := make([]*previewBar, 0, len(kinds))
	for _, kind := range kinds {
		bar := &previewBar{kind: kind, lower: 0, upper: 1}
		opts := engine.ControllerOptions{
			Kind:     kind,
			Duration: d,
			Curve:    curve,
			Target:   animation.Target{Set: func(any, float64) error { return nil }},
		}
		switch kind {
		case animation.Scale:
			bar.lower, bar.upper = 1, 1.5
		case animation.Slide:
			bar.lower, bar.upper = 0, 100
		case animation.Spring:
			params := animation.BouncySpring()
			opts.Spring = &params
		}
		opts.LowerBound, opts.UpperBound = bar.lower, bar.upper

		c := engine.NewController(s, opts)
		c.AddStatusListener(func(status engine.Status) {
			switch status {
			case engine.StatusCompleted:
				c.Reverse()
			case engine.StatusDismissed:
				c.Forward()
			}
		})
		bar.controller = c
		bars = append(bars, bar)
	}
	return bars, nil
}

// fraction maps the controller value into [0, 1].
func (b *previewBar) fraction() float64 {
	f := (b.controller.Value() - b.lower) / (b.upper - b.lower)
	return min(max(f, 0), 1)
}

// runPreview draws the bars on an initialized screen until ctx is done, the
// user quits or opts.frames frames have been drawn.
func runPreview(ctx context.Context, screen tcell.Screen, s *engine.Scheduler, opts previewOptions) error {
	if opts.fps <= 0 {
		return fmt.Errorf("--fps must be > 0")
	}
	if opts.duration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	curve := animation.EaseInOut
	if opts.curve != "" {
		c, ok := animation.CurveByName(opts.curve)
		if !ok {
			return fmt.Errorf("unknown curve %q", opts.curve)
		}
		curve = c
	}
	bars, err := newPreviewBars(s, opts.kinds, opts.duration, curve)
	if err != nil {
		return err
	}
	for _, b := range bars {
		if err := b.controller.Forward(); err != nil {
			return err
		}
		defer b.controller.Dispose()
	}

	done := make(chan struct{})
	defer close(done)
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	interval := time.Second / time.Duration(opts.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	now := time.Now()
	for frame := 0; opts.frames <= 0 || frame < opts.frames; {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if isQuitKey(ev) {
					return nil
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case <-ticker.C:
			now = now.Add(interval)
			s.Tick(now, interval)
			drawPreview(screen, s, bars)
			frame++
		}
	}
	return nil
}

func isQuitKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q' || ev.Rune() == 'Q'
	}
	return false
}

var (
	headerStyle = tcell.StyleDefault.Bold(true)
	labelStyle  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	barStyle    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	trackStyle  = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

const labelWidth = 8

func drawPreview(screen tcell.Screen, s *engine.Scheduler, bars []*previewBar) {
	screen.Clear()
	width, _ := screen.Size()

	m := s.Metrics()
	header := fmt.Sprintf("motion preview  level %d  cap %d  fidelity %s  tick %v", m.Level, m.Cap, m.Fidelity, m.LastTick.Round(time.Microsecond))
	drawText(screen, 0, 0, headerStyle, header)

	track := width - labelWidth - 1
	for i, b := range bars {
		y := 2 + i
		drawText(screen, 0, y, labelStyle, b.kind.String())
		if track <= 0 {
			continue
		}
		filled := int(b.fraction()*float64(track) + 0.5)
		for x := 0; x < track; x++ {
			if x < filled {
				screen.SetContent(labelWidth+x, y, '█', nil, barStyle)
			} else {
				screen.SetContent(labelWidth+x, y, '·', nil, trackStyle)
			}
		}
	}
	drawText(screen, 0, 3+len(bars), labelStyle, strings.Repeat(" ", labelWidth)+"q: quit")
	screen.Show()
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
