package compiler

import (
	"sort"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/protogol"
)

// rtreeSortZoom quantizes an entry's bounds center for the Hilbert bulk-
// load sort, same idea as internal/validator's export-table sort key: it
// has nothing to do with the tile pyramid's own configured zoom levels.
const rtreeSortZoom = 24

// defaultRTreeBranchSize is used when Config.RTreeBranchSize is zero.
const defaultRTreeBranchSize = 16

// rtreeEntry is one feature going into a spatial index branch (§4.9): a
// typed id, its bounding box, the indexed-key categories its tags touch,
// and its already-encoded body.
type rtreeEntry struct {
	ID    coord.TypedFeatureId
	Bound coord.Bounds
	Bits  keyBits
	Body  []byte
}

// rtreeNode is either a leaf (holding entries directly) or an internal
// node (holding child nodes), bulk-loaded bottom-up from Hilbert-sorted
// entries rather than built incrementally — there are no updates once a
// tile compiles, so incremental insert/split logic buys nothing.
type rtreeNode struct {
	Bound    coord.Bounds
	Bits     keyBits
	Leaf     bool
	Entries  []rtreeEntry
	Children []*rtreeNode
}

// buildPackedRTree bulk-loads entries into a tree with the given fanout,
// or returns nil for an empty entry set. Entries are first Hilbert-sorted
// by bounds center so each branchSize run groups spatially close
// features, then grouped into leaves, then leaves are grouped into
// parents the same way until one root remains.
func buildPackedRTree(entries []rtreeEntry, branchSize int) *rtreeNode {
	if len(entries) == 0 {
		return nil
	}
	if branchSize < 2 {
		branchSize = defaultRTreeBranchSize
	}

	sorted := make([]rtreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return hilbertKeyForBounds(sorted[i].Bound) < hilbertKeyForBounds(sorted[j].Bound)
	})

	level := make([]*rtreeNode, 0, (len(sorted)+branchSize-1)/branchSize)
	for i := 0; i < len(sorted); i += branchSize {
		end := i + branchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		level = append(level, leafNode(sorted[i:end]))
	}

	for len(level) > 1 {
		var next []*rtreeNode
		for i := 0; i < len(level); i += branchSize {
			end := i + branchSize
			if end > len(level) {
				end = len(level)
			}
			next = append(next, internalNode(level[i:end]))
		}
		level = next
	}
	return level[0]
}

func leafNode(chunk []rtreeEntry) *rtreeNode {
	n := &rtreeNode{Leaf: true, Entries: append([]rtreeEntry(nil), chunk...), Bound: coord.EmptyBounds()}
	for _, e := range chunk {
		n.Bound = n.Bound.Union(e.Bound)
		n.Bits |= e.Bits
	}
	return n
}

func internalNode(chunk []*rtreeNode) *rtreeNode {
	n := &rtreeNode{Children: append([]*rtreeNode(nil), chunk...), Bound: coord.EmptyBounds()}
	for _, c := range chunk {
		n.Bound = n.Bound.Union(c.Bound)
		n.Bits |= c.Bits
	}
	return n
}

func hilbertKeyForBounds(b coord.Bounds) uint64 {
	if b.IsEmpty() {
		return 0
	}
	center := coord.Coordinate{
		X: b.MinX + (b.MaxX-b.MinX)/2,
		Y: b.MinY + (b.MaxY-b.MinY)/2,
	}
	return coord.TileAt(rtreeSortZoom, center).Hilbert()
}

// serializeRTree encodes n (and recursively, its subtree) as a nested,
// length-prefixed block. A nil root serializes as a zero-length section:
// writeRTreeSection handles that case directly rather than calling this.
func serializeRTree(n *rtreeNode) []byte {
	w := protogol.NewWriter()
	w.WriteVarint(int64(n.Bound.MinX))
	w.WriteVarint(int64(n.Bound.MinY))
	w.WriteVarint(int64(n.Bound.MaxX))
	w.WriteVarint(int64(n.Bound.MaxY))
	w.WriteUvarint(uint64(n.Bits))
	if n.Leaf {
		w.WriteByte(1)
		w.WriteUvarint(uint64(len(n.Entries)))
		for _, e := range n.Entries {
			w.WriteUvarint(uint64(e.ID))
			w.WriteUvarint(uint64(len(e.Body)))
			w.WriteBytes(e.Body)
		}
		return w.Bytes()
	}
	w.WriteByte(0)
	w.WriteUvarint(uint64(len(n.Children)))
	for _, c := range n.Children {
		cb := serializeRTree(c)
		w.WriteUvarint(uint64(len(cb)))
		w.WriteBytes(cb)
	}
	return w.Bytes()
}

// writeRTreeSection appends one spatial index branch to w: a uvarint
// length (0 for an empty branch) followed by that many bytes of
// serializeRTree output.
func writeRTreeSection(w *protogol.Writer, root *rtreeNode) {
	if root == nil {
		w.WriteUvarint(0)
		return
	}
	data := serializeRTree(root)
	w.WriteUvarint(uint64(len(data)))
	w.WriteBytes(data)
}
