package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/geodesk/golbuild/internal/golstore"
)

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <library.gol>",
		Short: "Print a summary of a Geographic Object Library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, args[0])
		},
	}
}

// runInfo reports the same fields InfoCommand.cpp does: GUID, revision,
// tile/zoom range, size, indexed keys and the size of the global string
// table.
func runInfo(cmd *cobra.Command, path string) error {
	a, err := golstore.Open(path)
	if err != nil {
		return fmt.Errorf("gol info: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "GUID:          %s\n", a.Header.GUID)
	fmt.Fprintf(out, "Revision:      %d\n", a.Header.Revision)
	fmt.Fprintf(out, "Zoom levels:   %d..%d\n", a.Header.MinZoom, a.Header.MaxZoom)
	fmt.Fprintf(out, "Tiles:         %s\n", humanize.Comma(int64(a.Header.TileCount)))
	fmt.Fprintf(out, "Strings:       %s\n", humanize.Comma(int64(len(a.GST))))
	fmt.Fprintf(out, "Indexed keys:  %s\n", formatKeys(a.IndexedKeys))

	var tileBytes uint64
	for _, e := range a.Entries {
		tileBytes += uint64(e.Length)
	}
	fmt.Fprintf(out, "Tile data:     %s\n", humanize.Bytes(tileBytes))
	for k, v := range a.Settings {
		fmt.Fprintf(out, "Setting %q:  %s\n", k, v)
	}
	return nil
}

func formatKeys(keys []string) string {
	if len(keys) == 0 {
		return "(none)"
	}
	s := keys[0]
	for _, k := range keys[1:] {
		s += ", " + k
	}
	return s
}
