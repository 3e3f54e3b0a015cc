package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/golcheck"
	"github.com/geodesk/golbuild/internal/golstore"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/zipc"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <library.gol>",
		Short: "Verify every tile's internal consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0])
		},
	}
}

// runCheck is a thin wrapper over golcheck.CheckTile, the same role
// CheckCommand.cpp plays over GolChecker: open the library, decompress
// each tile blob, run the checks, and report anything wrong. It carries
// no per-tile bounds (the pile→tile mapping the compiler used isn't part
// of the archive's manifest), so golcheck skips the bounds check rather
// than report a false positive.
func runCheck(cmd *cobra.Command, path string) error {
	a, err := golstore.Open(path)
	if err != nil {
		return fmt.Errorf("gol check: %w", err)
	}

	cat := stringcat.FromGST(a.GST)
	arena := protogol.NewLiteralArena()

	out := cmd.OutOrStdout()
	var issues int
	for _, e := range a.Entries {
		blob := a.TileData(e)
		raw, err := decompressTile(blob)
		if err != nil {
			fmt.Fprintf(out, "pile %d: %v\n", e.Pile, err)
			issues++
			continue
		}
		report, err := golcheck.CheckTile(coord.Pile(e.Pile), raw, coord.EmptyBounds(), cat, arena)
		if err != nil {
			fmt.Fprintf(out, "pile %d: %v\n", e.Pile, err)
			issues++
			continue
		}
		for _, msg := range report.Issues {
			fmt.Fprintf(out, "pile %d: %s\n", e.Pile, msg)
			issues++
		}
	}

	if issues == 0 {
		fmt.Fprintf(out, "%d tiles checked, no issues found\n", len(a.Entries))
		return nil
	}
	return fmt.Errorf("gol check: %d issue(s) found across %d tiles", issues, len(a.Entries))
}

// decompressTile undoes the compiler's blob framing (uvarint raw length,
// uvarint checksum, deflate stream), the mirror image of the framing
// compiler.go's compile writes.
func decompressTile(blob []byte) ([]byte, error) {
	r := protogol.NewReader(blob)
	rawLen, err := r.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("reading raw length: %w", err)
	}
	checksum, err := r.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("reading checksum: %w", err)
	}
	compressed, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	return zipc.Inflate(compressed, int(rawLen), uint32(checksum))
}
