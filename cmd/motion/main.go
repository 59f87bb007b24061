// Command motion runs, serves and previews the animation engine.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/motion/cmd/motion/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
