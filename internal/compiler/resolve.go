package compiler

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/featureindex"
	"github.com/geodesk/golbuild/internal/pile"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/stringcat"
)

// defaultDecodedPileCacheSize bounds how many foreign tiles' decoded
// models stay warm at once. A way or relation only ever reaches outside
// its own tile for geometry that lives at a deeper zoom, so the working
// set per worker is small; this just avoids re-decoding the same deep
// tile repeatedly when many shallow features reference it.
const defaultDecodedPileCacheSize = 1024

// resolver answers cross-tile geometry questions a tile's own pile can't
// answer locally: a node's coordinate, or a way/relation's bounds, when
// that feature's body lives in a different pile than the one asking.
// This is the compiler's counterpart to internal/validator's in-memory
// bounds accumulator — but where the validator could rely on batch
// ordering to have every contribution already staged, the compiler has
// no such ordering (tiles compile in any order, even concurrently), so
// it resolves on demand instead, straight from the id indexes the sort
// phase left behind.
type resolver struct {
	nodeIndex *featureindex.MappedIndex
	wayIndex  *featureindex.MappedIndex
	relIndex  *featureindex.MappedIndex
	piles     *pile.File
	strings   *stringcat.Catalog
	arena     *protogol.LiteralArena

	cache *lru.Cache
}

func newResolver(
	nodeIndex, wayIndex, relIndex *featureindex.MappedIndex,
	piles *pile.File,
	strings *stringcat.Catalog,
	arena *protogol.LiteralArena,
	cacheSize int,
) (*resolver, error) {
	if cacheSize <= 0 {
		cacheSize = defaultDecodedPileCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("compiler: creating decoded-pile cache: %w", err)
	}
	return &resolver{
		nodeIndex: nodeIndex,
		wayIndex:  wayIndex,
		relIndex:  relIndex,
		piles:     piles,
		strings:   strings,
		arena:     arena,
		cache:     cache,
	}, nil
}

// tile loads and decodes pile p, serving a cached copy when available.
// Safe for concurrent use: golang-lru's Cache is internally locked, and
// pile.File.Load serializes per pile.
func (res *resolver) tile(p coord.Pile) (*tileModel, error) {
	if cached, ok := res.cache.Get(p); ok {
		return cached.(*tileModel), nil
	}
	data, err := res.piles.Load(p)
	if err != nil {
		return nil, fmt.Errorf("compiler: loading foreign pile %d: %w", p, err)
	}
	m, err := decodeTile(p, data, res.strings, res.arena)
	if err != nil {
		return nil, err
	}
	res.cache.Add(p, m)
	return m, nil
}

// nodeCoord resolves a node id's coordinate, wherever its pile is.
func (res *resolver) nodeCoord(id int64) (coord.Coordinate, bool) {
	p := coord.Pile(res.nodeIndex.Get(uint64(id)))
	if !p.Valid() {
		return coord.Coordinate{}, false
	}
	m, err := res.tile(p)
	if err != nil {
		return coord.Coordinate{}, false
	}
	n, ok := m.nodes[id]
	if !ok {
		return coord.Coordinate{}, false
	}
	return n.xy, true
}

// wayBounds resolves a way's bounds from its own pile's node list,
// skipping any referenced node that can't be found (dropped or out of
// scope).
func (res *resolver) wayBounds(id int64) coord.Bounds {
	pp := coord.PilePair(res.wayIndex.Get(uint64(id)))
	bounds := coord.EmptyBounds()
	if !pp.Valid() {
		return bounds
	}
	m, err := res.tile(pp.Pile())
	if err != nil {
		return bounds
	}
	w, ok := m.ways[id]
	if !ok {
		return bounds
	}
	for _, nid := range w.nodeIDs {
		if xy, ok := res.nodeCoord(nid); ok {
			bounds = bounds.UnionCoord(xy)
		}
	}
	return bounds
}

// relationBounds resolves a foreign relation's bounds by recursing into
// its own members, the same way a local relation's bounds are computed
// (see buildRelationBounds). depth guards against a cycle that slipped
// past internal/superrel's resolution somehow; it should never trigger.
func (res *resolver) relationBounds(id int64, depth int) coord.Bounds {
	bounds := coord.EmptyBounds()
	if depth > 32 {
		return bounds
	}
	pp := coord.PilePair(res.relIndex.Get(uint64(id)))
	if !pp.Valid() {
		return bounds
	}
	m, err := res.tile(pp.Pile())
	if err != nil {
		return bounds
	}
	r, ok := m.rels[id]
	if !ok {
		return bounds
	}
	for _, mem := range r.members {
		switch mem.typ {
		case coord.FeatureNode:
			if xy, ok := res.nodeCoord(mem.id); ok {
				bounds = bounds.UnionCoord(xy)
			}
		case coord.FeatureWay:
			bounds = bounds.Union(res.wayBounds(mem.id))
		case coord.FeatureRelation:
			bounds = bounds.Union(res.relationBounds(mem.id, depth+1))
		}
	}
	return bounds
}
