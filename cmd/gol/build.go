package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geodesk/golbuild/internal/build"
	"github.com/geodesk/golbuild/internal/osmsource"
)

// buildFlags mirrors BuildCommand's option table (§6 "Options").
type buildFlags struct {
	levels         string
	maxTiles       int
	minTileDensity uint64
	maxStrings     int
	minStringUsage uint64
	areas          string
	indexedKeys    string
	rtreeBranch    int
	waynodeIDs     bool
	updatable      bool
	threads        int
	yes            bool
	debug          bool
}

func newBuildCommand() *cobra.Command {
	var f buildFlags

	cmd := &cobra.Command{
		Use:   "build <source.osm.pbf> <output.gol>",
		Short: "Build a Geographic Object Library from an OSM extract",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], args[1], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.levels, "levels", "l", "", "Zoom levels separated by '/' or ',', e.g. 0/2/4/6/8/10/12 (default: built-in pyramid)")
	flags.IntVarP(&f.maxTiles, "max-tiles", "m", 0, "Maximum number of tiles (0 = package default)")
	flags.Uint64VarP(&f.minTileDensity, "min-tile-density", "n", 0, "Minimum feature count to keep splitting a tile (0 = package default)")
	flags.IntVar(&f.maxStrings, "max-strings", 0, "Maximum global string table size (0 = package default)")
	flags.Uint64Var(&f.minStringUsage, "min-string-usage", 0, "Minimum use count for a string to enter the global string table (0 = package default)")
	flags.StringVar(&f.areas, "areas", "", "Area classification rules (default: built-in rule set)")
	flags.StringVar(&f.indexedKeys, "indexed-keys", "", "Keys to build spatial indexes for, e.g. highway,building/amenity (',' starts a new category, '/' shares one)")
	flags.IntVarP(&f.rtreeBranch, "rtree-branch-size", "r", 0, "R-tree branch size (0 = package default)")
	flags.BoolVarP(&f.waynodeIDs, "waynode-ids", "w", false, "Accepted for compatibility; this build always keeps a way's node ids")
	flags.BoolVarP(&f.updatable, "updatable", "u", false, "Keep the id indexes on disk so the library can later be updated")
	flags.IntVar(&f.threads, "threads", 0, "Worker count per phase (0 = number of CPUs)")
	flags.BoolVarP(&f.yes, "yes", "Y", false, "Overwrite an existing output file without prompting")
	flags.BoolVar(&f.debug, "debug", false, "Keep the work directory and attach stack traces to errors")

	return cmd
}

func runBuild(cmd *cobra.Command, sourcePath, outputPath string, f buildFlags) error {
	if _, err := os.Stat(outputPath); err == nil && !f.yes {
		if !confirmOverwrite(cmd, outputPath) {
			return fmt.Errorf("gol build: %s already exists, pass -Y to overwrite", outputPath)
		}
	}

	source, err := openSource(sourcePath)
	if err != nil {
		return fmt.Errorf("gol build: %w", err)
	}

	workDir := outputPath + ".work"
	result, err := build.Run(context.Background(), build.Config{
		Source:     source,
		OutputPath: outputPath,
		WorkDir:    workDir,
		Debug:      f.debug,
		Settings: build.Settings{
			Levels:          f.levels,
			MaxTiles:        f.maxTiles,
			MinTileDensity:  f.minTileDensity,
			MaxStrings:      f.maxStrings,
			MinStringUsage:  f.minStringUsage,
			AreaRules:       f.areas,
			IndexedKeys:     f.indexedKeys,
			RTreeBranchSize: f.rtreeBranch,
			WaynodeIDs:      f.waynodeIDs,
			Updatable:       f.updatable,
			Threads:         f.threads,
		},
	})
	if err != nil {
		return fmt.Errorf("gol build: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "built %s: %d tiles, %d nodes, %d ways, %d relations, %v\n",
		filepath.Base(outputPath), result.TilesWritten,
		result.Compiler.Nodes, result.Compiler.Ways, result.Compiler.Relations, result.Elapsed)
	return nil
}

// confirmOverwrite mirrors BuildCommand.cpp's "file exists, confirm unless
// -Y" prompt.
func confirmOverwrite(cmd *cobra.Command, path string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s already exists. Overwrite? [y/N] ", path)
	reader := bufio.NewReader(cmd.InOrStdin())
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// openSource resolves a path to an osmsource.Source. Parsing the actual
// OSM PBF wire format is an external collaborator (§1 Non-goals): this
// build provides the Source/Handler contract and a synthetic fixture
// implementation for tests, but not a real .osm.pbf decoder, so any real
// file is reported honestly rather than silently accepted.
func openSource(path string) (osmsource.Source, error) {
	return nil, fmt.Errorf("reading %s: OSM PBF parsing is not built into this package; "+
		"supply an osmsource.Source from a real decoder", path)
}
