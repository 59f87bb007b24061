// Package cmd implements the motion CLI commands.
//
// The root command carries the global --config and --log-level flags and
// dispatches to subcommands (run, serve, preview, probe, version).
// Subcommands register themselves from init with RegisterCommand.
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-drift/motion/cmd/motion/internal/config"
	"github.com/go-drift/motion/pkg/effects"
	"github.com/go-drift/motion/pkg/effects/webgpu"
	"github.com/go-drift/motion/pkg/engine"
	"github.com/go-drift/motion/pkg/errors"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// globals holds the values of the persistent flags after PersistentPreRunE.
var globals struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log zerolog.Logger
}

var rootCmd = newRootCommand()

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "motion",
		Short: "Motion - animation scheduling and effects engine",
		Long: `Motion drives thousands of concurrent animations from one tick loop.

It admits animations under a concurrency cap, integrates springs, renders
effects on the GPU with a per-effect CPU fallback, degrades quality under
sustained frame overrun and honors reduced-motion preferences.

Use "motion <command> --help" for more information about a command.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadGlobals,
	}
	root.PersistentFlags().StringVar(&globals.configPath, "config", "", "Config file (.yaml, .toml or .json; default ./motion.yaml if present)")
	root.PersistentFlags().StringVar(&globals.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	return root
}

// RegisterCommand adds a command to the CLI.
func RegisterCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return rootCmd.Execute()
}

func loadGlobals(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(globals.logLevel))
	if err != nil {
		return fmt.Errorf("invalid --log-level %q", globals.logLevel)
	}
	globals.log = newLogger(cmd.ErrOrStderr(), level)
	errors.SetHandler(errors.NewLogHandlerWithLogger(globals.log))

	var cfg *config.Config
	if globals.configPath != "" {
		cfg, err = config.Load(globals.configPath)
	} else {
		cfg, err = config.LoadOptional(".")
	}
	if err != nil {
		return err
	}
	globals.cfg = cfg
	return nil
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// engineOptions are the flags shared by every command that builds a
// scheduler. Flag values override the config file.
type engineOptions struct {
	reducedMotion bool
	vestibular    bool
	gpu           bool
}

func (o *engineOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.reducedMotion, "reduced-motion", false, "Replace large motion with short cross-fades")
	cmd.Flags().BoolVar(&o.vestibular, "vestibular", false, "Clamp translation, scale and spring velocity")
	cmd.Flags().BoolVar(&o.gpu, "gpu", false, "Render effects with WebGPU when an adapter is available")
}

// newScheduler builds a scheduler from the loaded config and the command's
// flags. The returned function releases the GPU device, if any.
func newScheduler(ctx context.Context, cmd *cobra.Command, o engineOptions, cfg *config.Config, log zerolog.Logger) (*engine.Scheduler, func()) {
	if cfg == nil {
		cfg = config.Default()
	}
	ecfg := cfg.EngineConfig()
	ecfg.Logger = log.With().Str("component", "engine").Logger()

	flags := cfg.Flags()
	if cmd.Flags().Changed("reduced-motion") {
		flags.ReducedMotion = o.reducedMotion
	}
	if cmd.Flags().Changed("vestibular") {
		flags.VestibularSafety = o.vestibular
	}
	useGPU := cfg.Effects.GPU
	if cmd.Flags().Changed("gpu") {
		useGPU = o.gpu
	}

	selCfg := effects.SelectorConfig{
		ProbeTimeout: time.Duration(cfg.Effects.ProbeTimeout),
		Logger:       log.With().Str("component", "effects").Logger(),
	}
	release := func() {}
	if useGPU {
		rt := webgpu.NewRuntime()
		rt.ForceFallbackAdapter = cfg.Effects.ForceFallbackAdapter
		gpu := effects.NewGPUBackend(rt)
		selCfg.GPU = gpu
		selCfg.Prober = rt
		release = func() {
			gpu.Reset()
			rt.Release()
		}
	}
	sel := effects.NewSelector(selCfg)
	if useGPU {
		timeout := selCfg.ProbeTimeout
		if timeout <= 0 {
			timeout = effects.DefaultProbeTimeout
		}
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		capability, err := sel.Detect(probeCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("GPU unavailable, rendering every effect on the CPU")
		} else {
			log.Info().Str("adapter", capability.Adapter).Msg("GPU effects enabled")
		}
	}

	s := engine.New(ecfg,
		engine.WithSelector(sel),
		engine.WithAccessibility(flags),
	)
	return s, func() {
		s.Close()
		sel.Wait()
		release()
	}
}
