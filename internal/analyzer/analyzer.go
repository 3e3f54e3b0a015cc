// Package analyzer implements the build's first phase (§4.5): a single
// read of the OSM primitive stream that tallies per-cell node counts and
// string usage, the raw material the tile catalog and string catalog are
// built from.
package analyzer

import (
	"context"
	"fmt"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/osmsource"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/tilecatalog"
)

// Shard accumulates one pass's worth of analysis: a local node-count grid
// and a local string-usage arena. A real multi-threaded PBF decoder would
// hand one Shard to each decode worker and fold the results together with
// Merge when it is done with a block; osmsource.Source as defined here
// only offers a single synchronous replay, so Run below drives exactly
// one Shard, but the type stays independently usable for a Source
// implementation that does dispatch blocks concurrently.
type Shard struct {
	Grid  *tilecatalog.NodeCountGrid
	Arena *stringcat.Arena

	strings []string
}

// NewShard returns an empty Shard ready to be driven as an osmsource.Handler.
func NewShard() *Shard {
	return &Shard{
		Grid:  tilecatalog.NewNodeCountGrid(),
		Arena: stringcat.NewArena(),
	}
}

func (s *Shard) resolve(idx uint32) string {
	if int(idx) >= len(s.strings) {
		return ""
	}
	return s.strings[idx]
}

// StartFile is a no-op; the analyzer doesn't size a progress bar itself,
// that's the orchestrator's job once it wraps Run.
func (s *Shard) StartFile(size int64) error { return nil }

func (s *Shard) StringTable(strings []string) error {
	s.strings = strings
	return nil
}

// Node increments the zoom-12 cell the node projects into and counts its
// tag strings.
func (s *Shard) Node(id int64, lon100nd, lat100nd int64, tags []osmsource.Tag) error {
	c := coord.FromOSMUnits(lon100nd, lat100nd)
	col, row := coord.Cell12(c)
	s.Grid.Increment(col, row)
	s.observeTags(tags)
	return nil
}

// Way counts its tag strings only; ways don't contribute to the node
// count grid.
func (s *Shard) Way(id int64, tags []osmsource.Tag, nodeIDs []int64) error {
	s.observeTags(tags)
	return nil
}

// Relation counts its tag strings, plus each member's role string as a
// value (§4.5: "plus count role strings as values").
func (s *Shard) Relation(id int64, tags []osmsource.Tag, members []osmsource.Member) error {
	s.observeTags(tags)
	for _, m := range members {
		s.Arena.ObserveValue(s.resolve(m.RoleIdx))
	}
	return nil
}

func (s *Shard) observeTags(tags []osmsource.Tag) {
	for _, t := range tags {
		s.Arena.ObserveKey(s.resolve(t.KeyIndex))
		s.Arena.ObserveValue(s.resolve(t.ValueIndex))
	}
}

func (s *Shard) BeginWayGroup() error      { return nil }
func (s *Shard) BeginRelationGroup() error { return nil }

// EndBlock is a no-op: in this package's Handler contract each block
// already carries its own StringTable call, so there's no separate
// per-block translation cache to clear.
func (s *Shard) EndBlock() error { return nil }

func (s *Shard) AfterTasks() error     { return nil }
func (s *Shard) HarvestResults() error { return nil }

// Config controls how Run turns a Shard's accumulated counts into the two
// catalogs the rest of the build depends on.
type Config struct {
	TileCatalog tilecatalog.Config
	Strings     stringcat.Config

	// StringBuilderCap is the number of distinct strings the string
	// Builder holds before it culls rarely used ones (stringcat.NewBuilder's
	// cap); 0 means stringcat.DefaultGlobalArenaCap.
	StringBuilderCap int
}

// Result is the pair of read-only catalogs every later phase consults.
type Result struct {
	TileCatalog   *tilecatalog.Catalog
	StringCatalog *stringcat.Catalog
}

// Run reads src exactly once, then builds the tile catalog from the
// aggregated node counts followed by the string catalog (§4.5's closing
// step), matching the order the rest of the pipeline depends on: the
// sorter needs both before it can write a single pile.
func Run(ctx context.Context, src osmsource.Source, cfg Config) (*Result, error) {
	shard := NewShard()
	if err := src.Read(ctx, shard); err != nil {
		return nil, fmt.Errorf("analyzer: reading source: %w", err)
	}

	tileCatalog := tilecatalog.Build(shard.Grid, cfg.TileCatalog)

	builder := stringcat.NewBuilder(cfg.StringBuilderCap)
	builder.MergeArena(shard.Arena)
	stringCatalog := builder.Build(cfg.Strings)

	return &Result{TileCatalog: tileCatalog, StringCatalog: stringCatalog}, nil
}

// RunMany reduces several shards produced by a concurrent Source (one
// per decode worker, each already driven to completion) into a single
// Result, the multi-worker counterpart to Run. It merges into a fresh
// grid rather than one of the shards' own, so callers can keep inspecting
// their individual shards afterward.
func RunMany(shards []*Shard, cfg Config) (*Result, error) {
	if len(shards) == 0 {
		return nil, fmt.Errorf("analyzer: no shards to reduce")
	}
	grid := tilecatalog.NewNodeCountGrid()
	builder := stringcat.NewBuilder(cfg.StringBuilderCap)
	for _, shard := range shards {
		grid.Merge(shard.Grid)
		builder.MergeArena(shard.Arena)
	}

	tileCatalog := tilecatalog.Build(grid, cfg.TileCatalog)
	stringCatalog := builder.Build(cfg.Strings)
	return &Result{TileCatalog: tileCatalog, StringCatalog: stringCatalog}, nil
}
