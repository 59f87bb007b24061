package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/engine"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	engineOptions
	addr     string
	fps      int
	scenario string
	count    int
}

func init() {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Drive the scheduler in real time and serve diagnostics",
		Long: `Serve ticks the scheduler from the wall clock and exposes the diagnostics
server: /health, /metrics (Prometheus), /stats, /ticks, /entries/{handle},
/effects, /runtime and the /stream websocket.

With --scenario, a looping load is kept running: every animation that
finishes is registered again.`,
		Example: `  motion serve --addr 127.0.0.1:9464
  motion serve --scenario mixed --count 2000 --gpu`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default from config, else 127.0.0.1:9464)")
	cmd.Flags().IntVar(&opts.fps, "fps", 60, "Tick rate")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "Optional looping load: "+strings.Join(scenarioNames(), "|"))
	cmd.Flags().IntVar(&opts.count, "count", 100, "Number of animations in the looping load")
	RegisterCommand(cmd)
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	if opts.fps <= 0 {
		return fmt.Errorf("--fps must be > 0")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log := globals.cfg, globals.log
	s, release := newScheduler(ctx, cmd, opts.engineOptions, cfg, log)
	defer release()

	if opts.scenario != "" {
		sc, err := lookupScenario(opts.scenario)
		if err != nil {
			return err
		}
		if err := loopScenario(s, sc, opts.count); err != nil {
			return err
		}
		log.Info().Str("scenario", sc.name).Int("count", opts.count).Msg("looping load started")
	}

	addr := opts.addr
	if addr == "" && cfg != nil {
		addr = cfg.Diagnostics.Addr
	}
	if addr == "" {
		addr = "127.0.0.1:9464"
	}
	var origins []string
	var interval, window time.Duration
	if cfg != nil {
		origins = cfg.Diagnostics.AllowedOrigins
		interval = time.Duration(cfg.Diagnostics.RuntimeInterval)
		window = time.Duration(cfg.Diagnostics.RuntimeWindow)
	}
	runtime := engine.NewRuntimeSampler(s, window, interval)
	srv := engine.NewServer(s, engine.ServerConfig{
		Addr:           addr,
		AllowedOrigins: origins,
		Runtime:        runtime,
		Logger:         log.With().Str("component", "diagnostics").Logger(),
	})
	bound, err := srv.Start()
	if err != nil {
		return err
	}
	log.Info().Str("addr", bound).Msg("diagnostics server listening")

	go runtime.Run(ctx)

	driver := engine.NewDriver(s, nil)
	err = driver.Run(ctx, time.Second/time.Duration(opts.fps))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("diagnostics server shutdown")
	}
	m := s.Metrics()
	log.Info().
		Uint64("ticks", m.Ticks).
		Uint64("completed", m.Completed).
		Uint64("cancelled", m.Cancelled).
		Msg("stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loopScenario registers count animations and registers each one again
// when it completes. IDs are dropped so a re-registration never collides
// with the entry being retired.
func loopScenario(s *engine.Scheduler, sc scenario, count int) error {
	var mu sync.Mutex
	specs := make(map[engine.Handle]animation.Spec, count)

	s.AddListener(func(ev engine.Event) {
		if ev.State != animation.Completed {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		spec, ok := specs[ev.Handle]
		if !ok {
			return
		}
		delete(specs, ev.Handle)
		if h, err := s.Register(spec); err == nil {
			specs[h] = spec
		}
	})

	mu.Lock()
	defer mu.Unlock()
	for _, spec := range sc.specs(count, animation.Target{Set: func(any, float64) error { return nil }}) {
		spec.ID = ""
		h, err := s.Register(spec)
		if err != nil {
			return err
		}
		specs[h] = spec
	}
	return nil
}
