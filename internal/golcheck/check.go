// Package golcheck is a scoped-down version of the original's tile
// consistency checker (`TileChecker`/`GolChecker`). The original walks a
// materialized GOL's page-pointer structure (index trunks/leaves, tag
// table pointers, relative offsets) directly in mapped memory — this
// build has no on-disk GOL page allocator (§1 Non-goals: it's an
// external collaborator), so there is no such structure to walk.
// Instead, golcheck decodes a tile the same way internal/validator and
// internal/compiler do, and checks the invariants that survive the
// translation: no duplicate or zero feature ids, every node inside its
// own tile's bounds, and the export table's contents and Hilbert
// ordering.
package golcheck

import (
	"fmt"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/sorter"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/validator"
)

// hilbertSortZoom mirrors internal/validator's own constant of the same
// purpose: a sort-key quantizer, unrelated to the tile pyramid's zoom
// levels. Kept as its own copy rather than an import so golcheck stays
// independent of validator's unexported helpers.
const hilbertSortZoom = 24

// Report collects everything wrong with one tile. A Report with no
// Issues means the tile passed every check golcheck knows how to run.
type Report struct {
	Pile   coord.Pile
	Issues []string
}

func (r *Report) add(format string, args ...interface{}) {
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

type checkNode struct {
	xy     coord.Coordinate
	tagged bool
}

type checkWay struct {
	nodeIDs []int64
}

type checkMember struct {
	typ coord.FeatureType
	id  int64
}

type checkRelation struct {
	members []checkMember
}

// CheckTile decodes pile p's raw bytes and checks it against tileBounds,
// the bounds the tile catalog assigns to it. cat/arena resolve the
// string references the wire format carries inline; golcheck doesn't
// otherwise care what a tag says, only that the feature/export-table
// structure around it is sound.
func CheckTile(p coord.Pile, data []byte, tileBounds coord.Bounds, cat *stringcat.Catalog, arena *protogol.LiteralArena) (*Report, error) {
	report := &Report{Pile: p}

	nodes := make(map[int64]checkNode)
	var nodeIDs []int64
	ways := make(map[int64]checkWay)
	var wayIDs []int64
	rels := make(map[int64]checkRelation)
	var relIDs []int64
	var exports []coord.TypedFeatureId

	seen := make(map[coord.TypedFeatureId]bool)

	r := protogol.NewReader(data)
	var lastNodeID int64
	var lastNodeX, lastNodeY int32
	var lastWayID int64
	var lastRelID int64

	for r.Remaining() > 0 {
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("golcheck: reading record type: %w", err)
		}
		switch sorter.RecordType(kindByte) {
		case sorter.RecordNode:
			tagged, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			delta, hasTags := protogol.DecodeTaggedDelta(tagged)
			id := lastNodeID + delta
			lastNodeID = id
			dx, err := r.ReadVarint()
			if err != nil {
				return nil, err
			}
			dy, err := r.ReadVarint()
			if err != nil {
				return nil, err
			}
			x := lastNodeX + int32(dx)
			y := lastNodeY + int32(dy)
			lastNodeX, lastNodeY = x, y
			if hasTags {
				if _, err := protogol.DecodeTags(r, cat, arena); err != nil {
					return nil, err
				}
			}
			checkID(report, coord.NewTypedFeatureId(id, coord.FeatureNode), id, seen)
			nodes[id] = checkNode{xy: coord.Coordinate{X: x, Y: y}, tagged: hasTags}
			nodeIDs = append(nodeIDs, id)

		case sorter.RecordWay, sorter.RecordGhostWay:
			tagged, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			delta, hasTags, hasLocator := protogol.DecodeTaggedDelta2(tagged)
			id := lastWayID + delta
			lastWayID = id
			if hasLocator {
				if _, err := r.ReadByte(); err != nil {
					return nil, err
				}
			}
			countU, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			n, _ := sorter.DecodeNodeCount(countU)
			nodeRefs := make([]int64, n)
			var prev int64
			for i := 0; i < n; i++ {
				dv, err := r.ReadVarint()
				if err != nil {
					return nil, err
				}
				prev += dv
				nodeRefs[i] = prev
			}
			if hasTags {
				if _, err := protogol.DecodeTags(r, cat, arena); err != nil {
					return nil, err
				}
			}
			if sorter.RecordType(kindByte) == sorter.RecordGhostWay {
				continue
			}
			checkID(report, coord.NewTypedFeatureId(id, coord.FeatureWay), id, seen)
			ways[id] = checkWay{nodeIDs: nodeRefs}
			wayIDs = append(wayIDs, id)

		case sorter.RecordRelation:
			tagged, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			delta, hasTags, hasLocator := protogol.DecodeTaggedDelta2(tagged)
			id := lastRelID + delta
			lastRelID = id
			if hasLocator {
				if _, err := r.ReadByte(); err != nil {
					return nil, err
				}
			}
			memberCount, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			members := make([]checkMember, memberCount)
			for i := range members {
				typByte, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				mid, err := r.ReadUvarint()
				if err != nil {
					return nil, err
				}
				if _, err := r.ReadUvarint(); err != nil { // role ref, not checked here
					return nil, err
				}
				members[i] = checkMember{typ: coord.FeatureType(typByte), id: int64(mid)}
			}
			if hasTags {
				if _, err := protogol.DecodeTags(r, cat, arena); err != nil {
					return nil, err
				}
			}
			checkID(report, coord.NewTypedFeatureId(id, coord.FeatureRelation), id, seen)
			rels[id] = checkRelation{members: members}
			relIDs = append(relIDs, id)

		case sorter.RecordMembership:
			if _, err := r.ReadVarint(); err != nil {
				return nil, err
			}
			if _, err := r.ReadByte(); err != nil {
				return nil, err
			}
			if _, err := r.ReadUvarint(); err != nil {
				return nil, err
			}
			if _, err := r.ReadUvarint(); err != nil {
				return nil, err
			}

		case validator.RecordExportTable:
			exports, err = validator.DecodeExportTable(r)
			if err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("golcheck: unknown record type %d in pile %d", kindByte, p)
		}
	}

	for _, id := range nodeIDs {
		if !tileBounds.IsEmpty() && !tileBounds.ContainsCoord(nodes[id].xy) {
			report.add("node %d lies outside tile %d's bounds", id, p)
		}
	}

	checkExportTable(report, exports, nodes, ways, rels)

	return report, nil
}

func checkID(report *Report, typedID coord.TypedFeatureId, id int64, seen map[coord.TypedFeatureId]bool) {
	if id == 0 {
		report.add("feature with zero id (type %s)", typedID.Type())
		return
	}
	if seen[typedID] {
		report.add("duplicate feature %s/%d", typedID.Type(), id)
		return
	}
	seen[typedID] = true
}

// checkExportTable verifies every exported id resolves to a feature this
// tile actually decoded, that no id is exported twice, and that the
// table is non-decreasing by the same Hilbert sort key
// internal/validator used to build it — for entries whose bounds this
// scoped-down checker can fully resolve from local data alone. A way or
// relation with a node living in another tile has no bounds golcheck
// can recompute standalone, so its ordering is skipped rather than
// flagged, matching the package's intentionally reduced scope (see the
// package doc comment).
func checkExportTable(report *Report, exports []coord.TypedFeatureId, nodes map[int64]checkNode, ways map[int64]checkWay, rels map[int64]checkRelation) {
	seen := make(map[coord.TypedFeatureId]bool, len(exports))
	var lastHilbert uint64
	havePrev := false

	for _, id := range exports {
		if seen[id] {
			report.add("export table lists %s/%d more than once", id.Type(), id.ID())
			continue
		}
		seen[id] = true

		key, ok := hilbertKeyFor(id, nodes, ways, rels, report)
		if !ok {
			continue
		}
		if havePrev && key < lastHilbert {
			report.add("export table out of order at %s/%d", id.Type(), id.ID())
		}
		lastHilbert = key
		havePrev = true
	}
}

func hilbertKeyFor(id coord.TypedFeatureId, nodes map[int64]checkNode, ways map[int64]checkWay, rels map[int64]checkRelation, report *Report) (uint64, bool) {
	fid := id.ID()
	switch id.Type() {
	case coord.FeatureNode:
		n, ok := nodes[fid]
		if !ok {
			report.add("export table references unknown node %d", fid)
			return 0, false
		}
		return hilbertKeyForCoord(n.xy), true

	case coord.FeatureWay:
		w, ok := ways[fid]
		if !ok {
			report.add("export table references unknown way %d", fid)
			return 0, false
		}
		bounds, complete := wayBounds(w, nodes)
		if !complete {
			return 0, false
		}
		return hilbertKeyForBounds(bounds), true

	case coord.FeatureRelation:
		r, ok := rels[fid]
		if !ok {
			report.add("export table references unknown relation %d", fid)
			return 0, false
		}
		bounds, complete := relationBounds(r, nodes, ways, rels)
		if !complete {
			return 0, false
		}
		return hilbertKeyForBounds(bounds), true
	}
	return 0, false
}

func wayBounds(w checkWay, nodes map[int64]checkNode) (coord.Bounds, bool) {
	bounds := coord.EmptyBounds()
	for _, nid := range w.nodeIDs {
		n, ok := nodes[nid]
		if !ok {
			return bounds, false
		}
		bounds = bounds.UnionCoord(n.xy)
	}
	return bounds, true
}

func relationBounds(r checkRelation, nodes map[int64]checkNode, ways map[int64]checkWay, rels map[int64]checkRelation) (coord.Bounds, bool) {
	bounds := coord.EmptyBounds()
	for _, mem := range r.members {
		switch mem.typ {
		case coord.FeatureNode:
			n, ok := nodes[mem.id]
			if !ok {
				return bounds, false
			}
			bounds = bounds.UnionCoord(n.xy)
		case coord.FeatureWay:
			w, ok := ways[mem.id]
			if !ok {
				return bounds, false
			}
			wb, complete := wayBounds(w, nodes)
			if !complete {
				return bounds, false
			}
			bounds = bounds.Union(wb)
		case coord.FeatureRelation:
			child, ok := rels[mem.id]
			if !ok {
				return bounds, false
			}
			rb, complete := relationBounds(child, nodes, ways, rels)
			if !complete {
				return bounds, false
			}
			bounds = bounds.Union(rb)
		}
	}
	return bounds, true
}

func hilbertKeyForCoord(c coord.Coordinate) uint64 {
	return coord.TileAt(hilbertSortZoom, c).Hilbert()
}

func hilbertKeyForBounds(b coord.Bounds) uint64 {
	if b.IsEmpty() {
		return 0
	}
	center := coord.Coordinate{
		X: b.MinX + (b.MaxX-b.MinX)/2,
		Y: b.MinY + (b.MaxY-b.MinY)/2,
	}
	return hilbertKeyForCoord(center)
}
