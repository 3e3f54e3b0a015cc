// Package build is the orchestrator (§2 "Build orchestrator"): it owns
// phase transitions, the work directory's lifecycle, and wires the four
// phase packages (analyzer, sorter, validator, compiler) together into a
// single Run call, the same role GolBuilder::build plays in the original.
package build

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geodesk/golbuild/internal/areaclassifier"
	"github.com/geodesk/golbuild/internal/buildutil"
	"github.com/geodesk/golbuild/internal/coord"
)

// Settings is the CLI-facing configuration surface (§6's options table),
// gathered in one place the way BuildSettings.h does, then resolved into
// the concrete Config types each phase package already defines.
type Settings struct {
	// Levels is the raw -l/--levels value, e.g. "0/2/4/6/8/10/12" ('/' or
	// ',' separates levels). Empty means coord.DefaultZoomLevels.
	Levels string
	// MaxTiles is -m/--max-tiles. Zero means tilecatalog.DefaultMaxTiles.
	MaxTiles int
	// MinTileDensity is -n/--min-tile-density. Zero means
	// tilecatalog.DefaultMinTileDensity.
	MinTileDensity uint64
	// MaxStrings is --max-strings. Zero means stringcat.DefaultMaxStrings.
	MaxStrings int
	// MinStringUsage is --min-string-usage. Zero means
	// stringcat.DefaultMinProtoStringUsage.
	MinStringUsage uint64
	// AreaRules is the --areas rule string. Empty means
	// areaclassifier.Default.
	AreaRules string
	// IndexedKeys is the raw --indexed-keys value, e.g.
	// "highway,building/amenity" (',' starts a new category, '/' adds a
	// key to the current one).
	IndexedKeys string
	// RTreeBranchSize is -r/--rtree-branch-size. Zero means the
	// compiler package's own default.
	RTreeBranchSize int
	// WaynodeIDs is -w/--waynode-ids. Accepted for CLI compatibility but
	// has no effect on this build's compiled tile format: a way body's
	// node id list here IS its only geometry representation (there's no
	// separate resolved-coordinate polyline the ids would be an optional
	// addition to, as in the original format), so it's always present.
	WaynodeIDs bool
	// Updatable is -u/--updatable: implies WaynodeIDs and keeps the id
	// indexes next to the finished GOL instead of discarding them with
	// the rest of the work directory (§6 "Persisted state").
	Updatable bool
	// Threads is --threads, shared across every phase's worker pool.
	// Zero means buildutil.DefaultWorkerCount.
	Threads int
}

// Resolved is Settings translated into the phase packages' own Config
// types, computed once at the start of a Run so a bad --levels or
// --indexed-keys value fails before any work directory is created.
type Resolved struct {
	ZoomLevels      buildutil.ZoomLevels
	MaxTiles        int
	MinTileDensity  uint64
	MaxStrings      int
	MinStringUsage  uint64
	Classifier      *areaclassifier.Classifier
	IndexedKeys     []buildutil.IndexedKey
	IndexedKeyNames []string
	RTreeBranchSize int
	Updatable       bool
	Workers         int
}

// Resolve validates and translates s, the same "parse settings before
// touching the filesystem" step GolBuilder::build performs by computing
// threadCount_ and calling calculateWork before creating workPath_.
func (s Settings) Resolve() (*Resolved, error) {
	zoomLevels := coord.DefaultZoomLevels
	if s.Levels != "" {
		parsed, err := parseLevels(s.Levels)
		if err != nil {
			return nil, fmt.Errorf("build: parsing -l/--levels: %w", err)
		}
		zoomLevels = parsed
	}
	levels, err := buildutil.NewZoomLevels(zoomLevels...)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	rules := s.AreaRules
	if rules == "" {
		rules = areaclassifier.Default
	}
	classifier, err := areaclassifier.Compile(rules)
	if err != nil {
		return nil, fmt.Errorf("build: parsing --areas: %w", err)
	}

	var indexedKeys []buildutil.IndexedKey
	if s.IndexedKeys != "" {
		indexedKeys, err = buildutil.ParseIndexedKeys(s.IndexedKeys)
		if err != nil {
			return nil, fmt.Errorf("build: parsing --indexed-keys: %w", err)
		}
	}
	keyNames := make([]string, len(indexedKeys))
	for i, k := range indexedKeys {
		keyNames[i] = k.Key
	}

	workers := s.Threads
	if workers <= 0 {
		workers = buildutil.DefaultWorkerCount()
	} else if max := buildutil.MaxWorkerMultiplier * buildutil.DefaultWorkerCount(); workers > max {
		workers = max
	}

	return &Resolved{
		ZoomLevels:      levels,
		MaxTiles:        s.MaxTiles,
		MinTileDensity:  s.MinTileDensity,
		MaxStrings:      s.MaxStrings,
		MinStringUsage:  s.MinStringUsage,
		Classifier:      classifier,
		IndexedKeys:     indexedKeys,
		IndexedKeyNames: keyNames,
		RTreeBranchSize: s.RTreeBranchSize,
		Updatable:       s.Updatable,
		Workers:         workers,
	}, nil
}

// parseLevels parses a zoom level list separated by '/' or ',', e.g.
// "0/2/4/12" or "0,2,4,12".
func parseLevels(s string) ([]int, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == ',' })
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid zoom level %q", p)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no zoom levels given")
	}
	return out, nil
}
