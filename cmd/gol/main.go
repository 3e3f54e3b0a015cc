// Command gol is the build pipeline's command-line frontend (§6 "CLI
// surface"): build assembles a Geographic Object Library from an OSM
// extract, info and check inspect a finished one, and load/save/get/
// update/copy round out the original tool's command set.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gol",
		Short: "Build and inspect Geographic Object Libraries",
		Long: `gol builds a Geographic Object Library (a compiled, tile-indexed
binary representation of an OpenStreetMap extract) and inspects or
manages the ones you've already built.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s)", version, commit),
	}
	cmd.AddCommand(
		newBuildCommand(),
		newInfoCommand(),
		newCheckCommand(),
		newLoadCommand(),
		newSaveCommand(),
		newGetCommand(),
		newUpdateCommand(),
		newCopyCommand(),
	)
	return cmd
}
