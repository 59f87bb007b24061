package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/go-drift/motion/cmd/motion/internal/config"
)

func init() {
	RegisterCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "motion version %s (built %s)\n", Version, BuildTime)
			fmt.Fprintf(w, "config schema %s, %s %s/%s\n", config.SchemaVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	})
}
