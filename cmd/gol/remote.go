package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// errNoTileService is returned by every command below. The original
// tool's load/save/get/update/copy all go through TileLoader/TileSaver,
// which fetch and publish tile archives over HTTP — an external
// collaborator this build never implements (§1 Non-goals: "HTTP download
// of tile archives"). Their flag surface is kept so the command set
// still matches the original tool's, but running one fails honestly
// instead of pretending to reach a server that isn't there.
func errNoTileService(cmdName string) error {
	return fmt.Errorf("gol %s: not implemented: requires an external HTTP tile service", cmdName)
}

func newLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <url> <library.gol>",
		Short: "Download a remote tile set into a local library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return errNoTileService("load")
		},
	}
}

func newSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <library.gol> <url>",
		Short: "Publish a local library's tiles to a remote tile service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return errNoTileService("save")
		},
	}
}

func newGetCommand() *cobra.Command {
	var revision int
	cmd := &cobra.Command{
		Use:   "get <url> <library.gol>",
		Short: "Fetch a single revision of a remote library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return errNoTileService("get")
		},
	}
	cmd.Flags().IntVar(&revision, "revision", 0, "Revision to fetch (0 = latest)")
	return cmd
}

func newUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <library.gol> <url>",
		Short: "Apply a remote library's newer revisions to a local copy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return errNoTileService("update")
		},
	}
}

func newCopyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <source.gol> <dest.gol>",
		Short: "Copy a library, optionally through a remote tile service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return errNoTileService("copy")
		},
	}
}
