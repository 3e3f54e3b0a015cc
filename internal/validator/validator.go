// Package validator implements the build's third phase (§4.8): it
// re-reads every pile the sorter wrote, reconciles each tile's local
// features against whatever deeper or foreign tiles contributed (ghost
// way geometry, relation membership, shared coordinates), and appends
// each tile's finished export table for the compiler to index.
package validator

import (
	"context"
	"fmt"

	"github.com/geodesk/golbuild/internal/buildutil"
	"github.com/geodesk/golbuild/internal/coord"
	lru "github.com/hashicorp/golang-lru"

	"github.com/geodesk/golbuild/internal/pile"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/tilecatalog"
)

// defaultForeignRelationCacheSize bounds the "sparse hash for foreign
// lookup" (§4.8) a relation's bounds sit in between the moment a member
// in a deeper tile reports its contribution and the moment the relation's
// own (shallower) tile consumes it. Large enough that eviction before
// consumption is a corner case, not the common path, for any build this
// size of cache was tuned against.
const defaultForeignRelationCacheSize = 1 << 16

// Config controls a Validator run.
type Config struct {
	// Workers bounds concurrency within one batch. Zero means
	// buildutil.DefaultWorkerCount.
	Workers int
	// ForeignRelationCacheSize overrides defaultForeignRelationCacheSize.
	ForeignRelationCacheSize int
}

// Stats summarizes what validation found, for the orchestrator to log.
type Stats struct {
	TilesProcessed      int
	OrphanNodes         int
	RelationNodeOrphans int
	SharedLocationNodes int
}

// Result is what a completed validation run produces.
type Result struct {
	Stats Stats
}

// Validator re-derives bounds and export tables for every tile the
// sorter produced, and is itself a leaf consumer of the sort's output:
// New takes the sort's still-open handles directly (see
// sorter.Sorter.Piles and friends) rather than reopening anything from
// disk, since a pile's page-chain offsets exist only in the *pile.File
// that wrote them.
type Validator struct {
	catalog *tilecatalog.Catalog
	strings *stringcat.Catalog
	arena   *protogol.LiteralArena
	piles   *pile.File

	cfg Config

	// wayBounds and foreignRelations accumulate cross-tile contributions
	// between batches. Only applyTileOutput (the single output callback
	// of each batch) ever writes to them; worker goroutines of later
	// batches only read them, after the batch barrier that guarantees
	// every earlier write already landed. See processTile's doc comment.
	wayBounds        map[int64]coord.Bounds
	foreignRelations *lru.Cache

	stats Stats
}

// New creates a Validator over an already-sorted pile file. cat and
// strings must be the same catalogs the sort ran with; arena is the
// sort's literal-string arena, needed to resolve any tag or role that
// fell outside the global string catalog.
func New(cat *tilecatalog.Catalog, strings *stringcat.Catalog, arena *protogol.LiteralArena, piles *pile.File, cfg Config) (*Validator, error) {
	size := cfg.ForeignRelationCacheSize
	if size <= 0 {
		size = defaultForeignRelationCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("validator: creating foreign-relation cache: %w", err)
	}
	return &Validator{
		catalog:          cat,
		strings:          strings,
		arena:            arena,
		piles:            piles,
		cfg:              cfg,
		wayBounds:        make(map[int64]coord.Bounds),
		foreignRelations: cache,
	}, nil
}

func (v *Validator) wayBoundsOf(id int64) coord.Bounds {
	if b, ok := v.wayBounds[id]; ok {
		return b
	}
	return coord.EmptyBounds()
}

func (v *Validator) foreignRelationBounds(id int64) coord.Bounds {
	if cached, ok := v.foreignRelations.Get(id); ok {
		return cached.(coord.Bounds)
	}
	return coord.EmptyBounds()
}

// Run processes every catalogued tile, deepest zoom first, each zoom
// level split into the two-coloring batches §4.8 describes so no two
// adjacent same-zoom tiles are ever mid-processing at once.
func (v *Validator) Run(ctx context.Context) (*Result, error) {
	levels := v.catalog.ZoomLevels().Levels()
	for i := len(levels) - 1; i >= 0; i-- {
		colors := v.tilesByColor(levels[i])
		for _, group := range colors {
			if len(group) == 0 {
				continue
			}
			if err := v.runBatch(ctx, group); err != nil {
				return nil, err
			}
		}
	}
	return &Result{Stats: v.stats}, nil
}

// tilesByColor partitions every catalogued tile at zoom into the two
// (column XOR row) & 1 groups (§4.8).
func (v *Validator) tilesByColor(zoom int) [2][]coord.Tile {
	var groups [2][]coord.Tile
	for _, t := range v.catalog.Tiles() {
		if t.Zoom != zoom {
			continue
		}
		c := (t.Column ^ t.Row) & 1
		groups[c] = append(groups[c], t)
	}
	return groups
}

// runBatch drives one two-coloring batch through buildutil.Engine: every
// tile in the batch decodes and validates concurrently, and a single
// output goroutine applies each tile's result (§4.8 "output thread"),
// keeping every write to v.wayBounds/v.foreignRelations and every pile
// append serialized.
func (v *Validator) runBatch(ctx context.Context, tiles []coord.Tile) error {
	engine := buildutil.Engine[coord.Tile, struct{}, *tileOutput]{
		Workers:          v.cfg.Workers,
		NewWorkerContext: func() struct{} { return struct{}{} },
		WorkerFunc: func(ctx context.Context, _ struct{}, task buildutil.Task[coord.Tile]) (*tileOutput, error) {
			return v.decodeAndProcess(task.Item)
		},
		OutputFunc: func(out buildutil.Output[*tileOutput]) error {
			return v.applyTileOutput(out.Result)
		},
	}
	return engine.Run(ctx, tiles)
}

func (v *Validator) decodeAndProcess(t coord.Tile) (*tileOutput, error) {
	p := v.catalog.PileOfTile(t)
	data, err := v.piles.Load(p)
	if err != nil {
		return nil, fmt.Errorf("validator: loading pile %d: %w", p, err)
	}
	m, err := decodeTile(p, data, v.strings, v.arena)
	if err != nil {
		return nil, err
	}
	return v.processTile(m), nil
}

// applyTileOutput is the batch's single output callback: it folds one
// tile's bounds contributions into the shared accumulators, appends its
// export table to its own pile, and rolls its counters into Stats.
func (v *Validator) applyTileOutput(out *tileOutput) error {
	for id, b := range out.wayBoundsContrib {
		v.wayBounds[id] = v.wayBoundsOf(id).Union(b)
	}
	for id, b := range out.relBoundsContrib {
		merged := v.foreignRelationBounds(id).Union(b)
		v.foreignRelations.Add(id, merged)
	}
	if len(out.exportTable) > 0 {
		if err := v.piles.Append(out.pile, out.exportTable); err != nil {
			return fmt.Errorf("validator: appending export table for pile %d: %w", out.pile, err)
		}
	}

	v.stats.TilesProcessed++
	v.stats.OrphanNodes += out.orphanNodes
	v.stats.RelationNodeOrphans += out.relationNodeOrphans
	v.stats.SharedLocationNodes += out.sharedLocationNodes
	return nil
}
