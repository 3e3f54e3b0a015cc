// Package compiler implements the build's fourth and final phase
// (§4.9): for each tile, it reassembles the validated TileModel, lays
// out a packed spatial index over nodes, non-area ways, areas and
// non-area relations, deflates the result through the narrow
// internal/zipc interface, and registers the compressed blob with the
// GOL's blob store.
package compiler

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/flate"

	"github.com/geodesk/golbuild/internal/areaclassifier"
	"github.com/geodesk/golbuild/internal/buildutil"
	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/featureindex"
	"github.com/geodesk/golbuild/internal/golstore"
	"github.com/geodesk/golbuild/internal/pile"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/tilecatalog"
	"github.com/geodesk/golbuild/internal/zipc"
)

// Config controls a Compiler run.
type Config struct {
	// Workers bounds concurrency. Zero means buildutil.DefaultWorkerCount.
	Workers int
	// RTreeBranchSize is the spatial index fanout (§4.9, §6 `-r`).
	// Zero means defaultRTreeBranchSize.
	RTreeBranchSize int
	// DecodedPileCacheSize overrides defaultDecodedPileCacheSize.
	DecodedPileCacheSize int
}

// Stats summarizes one compile run, for the orchestrator to log.
type Stats struct {
	TilesCompiled int
	Nodes         int
	Ways          int
	Areas         int
	Relations     int
}

// Result is what a completed compile run produces.
type Result struct {
	Stats Stats
}

// Compiler turns every validated pile into a final tile blob and feeds it
// to a golstore.BlobStore.
type Compiler struct {
	catalog    *tilecatalog.Catalog
	strings    *stringcat.Catalog
	arena      *protogol.LiteralArena
	piles      *pile.File
	classifier *areaclassifier.Classifier
	categories categoryLookup
	store      golstore.BlobStore

	cfg Config
	res *resolver

	stats Stats
}

// New creates a Compiler over an already-validated pile file. cat and
// strings must be the catalogs the build ran with; nodeIndex/wayIndex/
// relIndex are the sort phase's id indexes, needed to resolve geometry
// that lives outside a tile's own pile (see resolve.go).
func New(
	cat *tilecatalog.Catalog,
	strings *stringcat.Catalog,
	arena *protogol.LiteralArena,
	piles *pile.File,
	nodeIndex, wayIndex, relIndex *featureindex.MappedIndex,
	classifier *areaclassifier.Classifier,
	indexedKeys []buildutil.IndexedKey,
	store golstore.BlobStore,
	cfg Config,
) (*Compiler, error) {
	res, err := newResolver(nodeIndex, wayIndex, relIndex, piles, strings, arena, cfg.DecodedPileCacheSize)
	if err != nil {
		return nil, err
	}
	return &Compiler{
		catalog:    cat,
		strings:    strings,
		arena:      arena,
		piles:      piles,
		classifier: classifier,
		categories: newCategoryLookup(indexedKeys),
		store:      store,
		cfg:        cfg,
		res:        res,
	}, nil
}

// Run compiles every catalogued tile. Unlike the validator, compile order
// doesn't matter: every cross-tile lookup resolves on demand through the
// id indexes (resolve.go) rather than depending on an earlier batch
// having already run, so a single buildutil.Engine pass over all tiles is
// enough.
func (c *Compiler) Run(ctx context.Context) (*Result, error) {
	engine := buildutil.Engine[coord.Tile, struct{}, *compiledTile]{
		Workers:          c.cfg.Workers,
		NewWorkerContext: func() struct{} { return struct{}{} },
		WorkerFunc: func(ctx context.Context, _ struct{}, task buildutil.Task[coord.Tile]) (*compiledTile, error) {
			return c.compileTile(task.Item)
		},
		OutputFunc: func(out buildutil.Output[*compiledTile]) error {
			return c.applyCompiledTile(out.Result)
		},
	}
	if err := engine.Run(ctx, c.catalog.Tiles()); err != nil {
		return nil, err
	}
	return &Result{Stats: c.stats}, nil
}

// compiledTile is one tile's finished blob plus the counters its compile
// pass produced, handed to the single output callback (applyCompiledTile)
// the same way internal/validator hands tileOutput to its own.
type compiledTile struct {
	pile  coord.Pile
	blob  []byte
	nodes int
	ways  int
	areas int
	rels  int
}

func (c *Compiler) compileTile(t coord.Tile) (*compiledTile, error) {
	p := c.catalog.PileOfTile(t)
	data, err := c.piles.Load(p)
	if err != nil {
		return nil, fmt.Errorf("compiler: loading pile %d: %w", p, err)
	}
	m, err := decodeTile(p, data, c.strings, c.arena)
	if err != nil {
		return nil, err
	}
	return c.compile(m)
}

func (c *Compiler) compile(m *tileModel) (*compiledTile, error) {
	var nodeEntries, wayEntries, areaEntries, relEntries []rtreeEntry

	for _, id := range m.nodeIDs {
		n := m.nodes[id]
		nodeEntries = append(nodeEntries, rtreeEntry{
			ID:    coord.NewTypedFeatureId(n.id, coord.FeatureNode),
			Bound: coord.Bounds{MinX: n.xy.X, MinY: n.xy.Y, MaxX: n.xy.X, MaxY: n.xy.Y},
			Bits:  c.categories.bitsFor(n.tags),
			Body:  encodeNodeBody(n),
		})
	}

	for _, id := range m.wayIDs {
		w := m.ways[id]
		bounds := buildWayBounds(m, w, c.res)
		isArea, _ := c.classifier.Classify(toAreaTags(w.tags))
		isArea = isArea && w.closedRing
		entry := rtreeEntry{
			ID:    coord.NewTypedFeatureId(w.id, coord.FeatureWay),
			Bound: bounds,
			Bits:  c.categories.bitsFor(w.tags),
			Body:  encodeWayBody(w),
		}
		if isArea {
			areaEntries = append(areaEntries, entry)
		} else {
			wayEntries = append(wayEntries, entry)
		}
	}

	for _, id := range m.relIDs {
		r := m.rels[id]
		bounds := buildRelationBounds(m, r, c.res, 0)
		_, isArea := c.classifier.Classify(toAreaTags(r.tags))
		entry := rtreeEntry{
			ID:    coord.NewTypedFeatureId(r.id, coord.FeatureRelation),
			Bound: bounds,
			Bits:  c.categories.bitsFor(r.tags),
			Body:  encodeRelationBody(r),
		}
		if isArea {
			areaEntries = append(areaEntries, entry)
		} else {
			relEntries = append(relEntries, entry)
		}
	}

	branch := c.cfg.RTreeBranchSize

	w := protogol.NewWriter()
	w.WriteVarint(int64(m.pile))
	writeRTreeSection(w, buildPackedRTree(nodeEntries, branch))
	writeRTreeSection(w, buildPackedRTree(wayEntries, branch))
	writeRTreeSection(w, buildPackedRTree(areaEntries, branch))
	writeRTreeSection(w, buildPackedRTree(relEntries, branch))

	w.WriteUvarint(uint64(len(m.exports)))
	for _, e := range m.exports {
		w.WriteUvarint(uint64(e))
	}

	raw := w.Bytes()
	compressed, err := zipc.Deflate(raw, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("compiler: compressing tile %d: %w", m.pile, err)
	}

	blob := protogol.NewWriter()
	blob.WriteUvarint(uint64(len(raw)))
	blob.WriteUvarint(uint64(zipc.Checksum(raw)))
	blob.WriteBytes(compressed)

	return &compiledTile{
		pile:  m.pile,
		blob:  blob.Bytes(),
		nodes: len(nodeEntries),
		ways:  len(wayEntries),
		areas: len(areaEntries),
		rels:  len(relEntries),
	}, nil
}

func toAreaTags(tags []protogol.Tag) []areaclassifier.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]areaclassifier.Tag, len(tags))
	for i, t := range tags {
		out[i] = areaclassifier.Tag{Key: t.Key, Value: t.Value}
	}
	return out
}

// applyCompiledTile is the run's single output callback: it registers
// the tile's blob with the store and rolls its counters into Stats.
func (c *Compiler) applyCompiledTile(out *compiledTile) error {
	if err := c.store.PutTile(out.pile, out.blob); err != nil {
		return fmt.Errorf("compiler: registering blob for pile %d: %w", out.pile, err)
	}
	c.stats.TilesCompiled++
	c.stats.Nodes += out.nodes
	c.stats.Ways += out.ways
	c.stats.Areas += out.areas
	c.stats.Relations += out.rels
	return nil
}
