// Command pushplan compiles relational plan trees into distributed scan
// plans.
package main

import (
	"os"

	"github.com/roach88/pushplan/internal/cli"
)

func main() {
	// Subcommands print their own errors; cobra prints usage errors.
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
