// Package sorter implements the build's second phase (§4.6): a second
// read of the OSM primitive stream that places every node, way, and
// relation into the pile(s) its geometry belongs to, writing the
// proto-string-encoded records the validator and compiler read back.
package sorter

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/featureindex"
	"github.com/geodesk/golbuild/internal/osmsource"
	"github.com/geodesk/golbuild/internal/pile"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/superrel"
	"github.com/geodesk/golbuild/internal/tilecatalog"
)

// RecordType is the group-type byte prefixing every record a pile holds,
// so the validator and compiler can tell segment kinds apart within one
// pile's otherwise undifferentiated byte stream (§4.6).
type RecordType byte

const (
	RecordNode       RecordType = 1
	RecordWay        RecordType = 2
	RecordGhostWay   RecordType = 3
	RecordRelation   RecordType = 4
	RecordMembership RecordType = 5
)

// reserveForPile1 mirrors the teacher's DiskTileStore preallocation hint
// for the root tile, which in practice holds a disproportionate share of
// low-zoom data.
const reserveForPile1 = 4 * pile.PageSize

// phase names the three-phase-plus-postpass barrier of §4.6. Within one
// synchronous Source read the Handler contract already delivers Node
// calls before Way calls before Relation calls for a given block, so a
// single-worker Sorter never actually needs to block waiting for
// siblings; phase tracking exists so the same struct generalizes to a
// future multi-worker Source the way analyzer.Shard/RunMany does,
// without the barrier itself needing to be built yet.
type phase int

const (
	phaseNodes phase = iota
	phaseWays
	phaseRelations
)

// Stats summarizes what the sorter dropped or deferred along the way, for
// the orchestrator to log.
type Stats struct {
	NodesDropped           int
	WaysRejected           int
	RelationsEmpty         int
	SuperRelationsDeferred int
	SuperRelationsResolved int
	SuperRelationsDropped  int
}

// Result is what a completed sort produces beyond the pile file and
// feature-id indexes themselves, which are written directly to disk as
// the sort runs.
type Result struct {
	Stats        Stats
	LiteralArena *protogol.LiteralArena
}

// Sorter implements osmsource.Handler, writing directly into a pile file
// and three feature-id indexes as primitives arrive.
type Sorter struct {
	catalog *tilecatalog.Catalog
	strings *stringcat.Catalog
	arena   *protogol.LiteralArena
	piles   *pile.File

	nodeIndex *featureindex.MappedIndex
	wayIndex  *featureindex.MappedIndex
	relIndex  *featureindex.MappedIndex

	nodeBatch *featureindex.FastFeatureIndex
	wayBatch  *featureindex.FastFeatureIndex
	relBatch  *featureindex.FastFeatureIndex

	resolver *superrel.Resolver

	blockStrings []string
	phase        phase
	stats        Stats

	// lastNodeID/lastNodeX/lastNodeY, lastWayID, lastRelID and
	// lastMembershipRelID each track the most recent id (and, for nodes,
	// coordinate) written into a given pile, so records can carry a
	// small delta instead of a full 64-bit value (§4.6 "Δid").
	lastNodeID map[coord.Pile]int64
	lastNodeX  map[coord.Pile]int32
	lastNodeY  map[coord.Pile]int32
	lastWayID  map[coord.Pile]int64
	lastRelID  map[coord.Pile]int64

	lastMembershipRelID map[coord.Pile]int64
}

// New creates the pile file and the three feature-id indexes inside
// workDir and returns a Sorter ready to drive as an osmsource.Handler.
func New(workDir string, catalog *tilecatalog.Catalog, strings *stringcat.Catalog) (*Sorter, error) {
	tileCount := catalog.TileCount()

	piles, err := pile.Create(filepath.Join(workDir, "piles.bin"), tileCount, reserveForPile1)
	if err != nil {
		return nil, fmt.Errorf("sorter: creating pile file: %w", err)
	}
	nodeIndex, err := featureindex.Create(filepath.Join(workDir, "nodes.idx"), featureindex.NodeIndexWidth(tileCount))
	if err != nil {
		piles.Close()
		return nil, fmt.Errorf("sorter: creating node index: %w", err)
	}
	wayIndex, err := featureindex.Create(filepath.Join(workDir, "ways.idx"), featureindex.PairIndexWidth(tileCount))
	if err != nil {
		piles.Close()
		nodeIndex.Close()
		return nil, fmt.Errorf("sorter: creating way index: %w", err)
	}
	relIndex, err := featureindex.Create(filepath.Join(workDir, "relations.idx"), featureindex.PairIndexWidth(tileCount))
	if err != nil {
		piles.Close()
		nodeIndex.Close()
		wayIndex.Close()
		return nil, fmt.Errorf("sorter: creating relation index: %w", err)
	}

	s := &Sorter{
		catalog:   catalog,
		strings:   strings,
		arena:     protogol.NewLiteralArena(),
		piles:     piles,
		nodeIndex: nodeIndex,
		wayIndex:  wayIndex,
		relIndex:  relIndex,
		nodeBatch: featureindex.NewFastFeatureIndex(nodeIndex),
		wayBatch:  featureindex.NewFastFeatureIndex(wayIndex),
		relBatch:  featureindex.NewFastFeatureIndex(relIndex),

		lastNodeID:          make(map[coord.Pile]int64),
		lastNodeX:           make(map[coord.Pile]int32),
		lastNodeY:           make(map[coord.Pile]int32),
		lastWayID:           make(map[coord.Pile]int64),
		lastRelID:           make(map[coord.Pile]int64),
		lastMembershipRelID: make(map[coord.Pile]int64),
	}
	s.resolver = superrel.NewResolver(catalog, relationIndexAdapter{relIndex}, 0)
	return s, nil
}

// relationIndexAdapter lets the already-flushed relation MappedIndex
// serve as the superrel.Resolver's view of plain relations resolved
// before any super-relation is processed.
type relationIndexAdapter struct {
	idx *featureindex.MappedIndex
}

func (a relationIndexAdapter) Get(id uint64) coord.PilePair {
	return coord.PilePair(a.idx.Get(id))
}

// Close closes the pile file and every feature-id index. It does not
// remove them; they're the sort's actual output.
func (s *Sorter) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{s.piles, s.nodeIndex, s.wayIndex, s.relIndex} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Piles, NodeIndex, WayIndex, RelationIndex, and Arena expose the sort's
// open output handles to a later phase. A pile's page-chain head/tail
// offsets exist only in the *pile.File's in-memory bookkeeping, not on
// disk, so a validator that wants to keep appending to piles this sort
// wrote must share this same handle rather than reopening the file —
// closing it, as Run does when it returns, discards the chain pointers
// for good.
func (s *Sorter) Piles() *pile.File                       { return s.piles }
func (s *Sorter) NodeIndex() *featureindex.MappedIndex     { return s.nodeIndex }
func (s *Sorter) WayIndex() *featureindex.MappedIndex      { return s.wayIndex }
func (s *Sorter) RelationIndex() *featureindex.MappedIndex { return s.relIndex }
func (s *Sorter) Arena() *protogol.LiteralArena            { return s.arena }

// Stats reports the drop/defer counters accumulated so far. Safe to call
// only after the driving Source.Read has returned, same as Piles/Arena.
func (s *Sorter) Stats() Stats { return s.stats }

func (s *Sorter) StartFile(size int64) error { return nil }

func (s *Sorter) StringTable(strings []string) error {
	s.blockStrings = strings
	return nil
}

func (s *Sorter) resolveString(idx uint32) string {
	if int(idx) >= len(s.blockStrings) {
		return ""
	}
	return s.blockStrings[idx]
}

func (s *Sorter) resolveTags(tags []osmsource.Tag) []protogol.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]protogol.Tag, len(tags))
	for i, t := range tags {
		out[i] = protogol.Tag{Key: s.resolveString(t.KeyIndex), Value: s.resolveString(t.ValueIndex)}
	}
	return out
}

// roleRef resolves a member role string to a StringRef, falling back to
// the literal arena the same way protogol.EncodeTags does for tag values
// — a role is encoded exactly like a tag value (§4.5 counts it "as a
// value" for the same reason).
func (s *Sorter) roleRef(role string) stringcat.StringRef {
	if ref, ok := s.strings.ValueRef(role); ok {
		return ref
	}
	return stringcat.NewLiteralRef(s.arena.Append(role))
}

func (s *Sorter) BeginWayGroup() error      { return nil }
func (s *Sorter) BeginRelationGroup() error { return nil }
func (s *Sorter) EndBlock() error           { return nil }

// advanceTo flushes the batched index writers once, the first time the
// sorter crosses into a later phase. A single-worker sort never needs to
// wait on siblings, so this is just the flush half of §4.6's
// advance_phase; a concurrent Source would add a barrier here.
func (s *Sorter) advanceTo(p phase) error {
	if p <= s.phase {
		return nil
	}
	if err := s.flushBatches(); err != nil {
		return err
	}
	s.phase = p
	return nil
}

func (s *Sorter) flushBatches() error {
	if err := s.nodeBatch.Flush(); err != nil {
		return err
	}
	if err := s.wayBatch.Flush(); err != nil {
		return err
	}
	return s.relBatch.Flush()
}

func (s *Sorter) appendRecord(p coord.Pile, rt RecordType, body []byte) error {
	buf := make([]byte, 0, 1+len(body))
	buf = append(buf, byte(rt))
	buf = append(buf, body...)
	return s.piles.Append(p, buf)
}

// twinPile returns the pile of pp's non-primary tile. Only meaningful
// when !pp.IsSingle().
func (s *Sorter) twinPile(pp coord.PilePair) coord.Pile {
	tp := s.catalog.TilePairOfPilePair(pp)
	return s.catalog.PileOfTile(tp.B)
}

// encodeLocator packs the pile pair's own zoom level and twin direction
// into one byte, the "locator" a way or relation record carries when it
// was written into both piles of a pair (§4.6). The exact bit layout is
// this package's own choice; spec names the concept (parent_zoom_delta,
// twin_code) but not the wire packing. Exported as EncodeLocator/
// DecodeLocator since the validator needs to decode the same byte back
// out of the records this package writes.
func encodeLocator(zoom int, dir coord.TwinDirection) byte {
	return EncodeLocator(zoom, dir)
}

// EncodeLocator packs a pile pair's own zoom level and twin direction
// into the one-byte "locator" a way or relation record carries when it
// was written into both piles of a pair.
func EncodeLocator(zoom int, dir coord.TwinDirection) byte {
	return byte(zoom)<<3 | byte(dir)
}

// DecodeLocator is EncodeLocator's inverse.
func DecodeLocator(b byte) (zoom int, dir coord.TwinDirection) {
	return int(b >> 3), coord.TwinDirection(b & 0x7)
}

func encodeNodeCount(n int, closedRing bool) uint64 {
	return EncodeNodeCount(n, closedRing)
}

// EncodeNodeCount packs a way's node count and closed-ring bit into one
// varint-friendly value, so the ring flag doesn't need a byte of its own.
func EncodeNodeCount(n int, closedRing bool) uint64 {
	u := uint64(n) << 1
	if closedRing {
		u |= 1
	}
	return u
}

// DecodeNodeCount is EncodeNodeCount's inverse.
func DecodeNodeCount(u uint64) (n int, closedRing bool) {
	return int(u >> 1), u&1 != 0
}

// AfterTasks runs once every block has been delivered; nothing left to
// do until HarvestResults resolves deferred super-relations.
func (s *Sorter) AfterTasks() error { return nil }

// HarvestResults flushes any still-buffered index entries, resolves
// every deferred super-relation, and writes the survivors (§4.7).
func (s *Sorter) HarvestResults() error {
	if err := s.flushBatches(); err != nil {
		return err
	}
	return s.resolveSuperRelations()
}

// Run drives src once through a fresh Sorter rooted at workDir and
// returns the drop/defer statistics and the accumulated literal arena.
func Run(ctx context.Context, src osmsource.Source, workDir string, catalog *tilecatalog.Catalog, strings *stringcat.Catalog) (*Result, error) {
	s, err := New(workDir, catalog, strings)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := src.Read(ctx, s); err != nil {
		return nil, fmt.Errorf("sorter: reading source: %w", err)
	}
	return &Result{Stats: s.stats, LiteralArena: s.arena}, nil
}
