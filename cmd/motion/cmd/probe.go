package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drift/motion/pkg/animation"
	"github.com/go-drift/motion/pkg/effects"
	"github.com/go-drift/motion/pkg/effects/webgpu"
)

type probeOptions struct {
	forceFallback bool
	timeout       time.Duration
	json          bool
}

func init() {
	var opts probeOptions
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Detect the GPU and compile every effect shader",
		Long: `Probe opens a WebGPU adapter and device, then compiles the shader of
every effect kind. Kinds that fail to compile render on the CPU at run time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if globals.cfg != nil && !cmd.Flags().Changed("force-fallback") {
				opts.forceFallback = globals.cfg.Effects.ForceFallbackAdapter
			}
			rt := webgpu.NewRuntime()
			rt.ForceFallbackAdapter = opts.forceFallback
			defer rt.Release()
			report := probe(cmd.Context(), rt, rt, opts.timeout)
			if opts.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			report.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.forceFallback, "force-fallback", false, "Request the software adapter")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", effects.DefaultProbeTimeout, "Probe timeout")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the report as JSON")
	RegisterCommand(cmd)
}

// probeReport is the outcome of a GPU probe.
type probeReport struct {
	Available bool              `json:"available"`
	Adapter   string            `json:"adapter,omitempty"`
	Error     string            `json:"error,omitempty"`
	Kinds     map[string]string `json:"kinds"`
}

// probe detects the GPU with p and compiles every kind with c. Kinds map to
// "gpu", "cpu" (unsupported by the device) or the compile error.
func probe(ctx context.Context, p effects.Prober, c effects.Compiler, timeout time.Duration) probeReport {
	report := probeReport{Kinds: make(map[string]string)}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	capability, err := p.Probe(probeCtx)
	cancel()
	report.Available = capability.Available
	report.Adapter = capability.Adapter
	if err != nil {
		report.Available = false
		report.Error = err.Error()
	}

	for _, kind := range animation.Kinds() {
		if !report.Available || !capability.Supports(kind) {
			report.Kinds[kind.String()] = "cpu"
			continue
		}
		prog, err := c.Compile(kind)
		if err != nil {
			report.Kinds[kind.String()] = err.Error()
			continue
		}
		prog.Release()
		report.Kinds[kind.String()] = "gpu"
	}
	return report
}

func (r probeReport) print(w io.Writer) {
	if !r.Available {
		msg := "no adapter"
		if r.Error != "" {
			msg = r.Error
		}
		fmt.Fprintf(w, "GPU: unavailable (%s)\n", msg)
	} else {
		fmt.Fprintf(w, "GPU: %s\n", r.Adapter)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Effects:")
	for _, kind := range animation.Kinds() {
		fmt.Fprintf(w, "  %-8s %s\n", kind.String()+":", r.Kinds[kind.String()])
	}
}
