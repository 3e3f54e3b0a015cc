package compiler

import (
	"fmt"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/sorter"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/validator"
)

// cNode, cWay and cRelation are a pile's local features as the compiler
// needs them: tags already resolved to strings, geometry resolved to
// actual coordinates rather than ids. Ghost ways and membership records
// (internal to the sort/validate phases) are decoded only to skip past
// them; a tile's own exported features carry everything the compiler
// needs directly.
type cNode struct {
	id   int64
	xy   coord.Coordinate
	tags []protogol.Tag
}

type cWay struct {
	id         int64
	closedRing bool
	nodeIDs    []int64
	tags       []protogol.Tag

	// bounds/processed are filled in by the compile pass (see
	// buildWayBounds), not by decodeTile.
	bounds    coord.Bounds
	processed bool
}

type cMember struct {
	typ  coord.FeatureType
	id   int64
	role string
}

type cRelation struct {
	id      int64
	members []cMember
	tags    []protogol.Tag

	// bounds/processed are filled in by the compile pass (see
	// buildRelationBounds), not by decodeTile.
	bounds    coord.Bounds
	processed bool
}

// tileModel is everything one pile decodes to once validation has run:
// the sort phase's local features plus the validator's export table.
type tileModel struct {
	pile coord.Pile

	nodes   map[int64]*cNode
	nodeIDs []int64
	ways    map[int64]*cWay
	wayIDs  []int64
	rels    map[int64]*cRelation
	relIDs  []int64

	exports []coord.TypedFeatureId
}

func newTileModel(p coord.Pile) *tileModel {
	return &tileModel{
		pile:  p,
		nodes: make(map[int64]*cNode),
		ways:  make(map[int64]*cWay),
		rels:  make(map[int64]*cRelation),
	}
}

// decodeTile mirrors internal/validator's decodeTile record-for-record,
// plus the RecordExportTable the validator appended after its own pass.
// internal/golcheck reads the same format too, so any change to the sort
// phase's encoding has to stay in step with all three readers.
func decodeTile(p coord.Pile, data []byte, cat *stringcat.Catalog, arena *protogol.LiteralArena) (*tileModel, error) {
	m := newTileModel(p)
	r := protogol.NewReader(data)

	var lastNodeID int64
	var lastNodeX, lastNodeY int32
	var lastWayID int64
	var lastRelID int64

	for r.Remaining() > 0 {
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("compiler: reading record type: %w", err)
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
			var tags []protogol.Tag
			if hasTags {
				tags, err = protogol.DecodeTags(r, cat, arena)
				if err != nil {
					return nil, err
				}
			}
			m.nodes[id] = &cNode{id: id, xy: coord.Coordinate{X: x, Y: y}, tags: tags}
			m.nodeIDs = append(m.nodeIDs, id)

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
			n, closedRing := sorter.DecodeNodeCount(countU)
			nodeIDs := make([]int64, n)
			var prev int64
			for i := 0; i < n; i++ {
				dv, err := r.ReadVarint()
				if err != nil {
					return nil, err
				}
				prev += dv
				nodeIDs[i] = prev
			}
			var tags []protogol.Tag
			if hasTags {
				tags, err = protogol.DecodeTags(r, cat, arena)
				if err != nil {
					return nil, err
				}
			}
			if sorter.RecordType(kindByte) == sorter.RecordGhostWay {
				continue // only this way's own pile compiles it
			}
			m.ways[id] = &cWay{id: id, closedRing: closedRing, nodeIDs: nodeIDs, tags: tags}
			m.wayIDs = append(m.wayIDs, id)

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
			members := make([]cMember, memberCount)
			for i := range members {
				typByte, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				mid, err := r.ReadUvarint()
				if err != nil {
					return nil, err
				}
				roleRef, err := r.ReadUvarint()
				if err != nil {
					return nil, err
				}
				members[i] = cMember{
					typ:  coord.FeatureType(typByte),
					id:   int64(mid),
					role: resolveRoleRef(cat, arena, stringcat.StringRef(roleRef)),
				}
			}
			var tags []protogol.Tag
			if hasTags {
				tags, err = protogol.DecodeTags(r, cat, arena)
				if err != nil {
					return nil, err
				}
			}
			m.rels[id] = &cRelation{id: id, members: members, tags: tags}
			m.relIDs = append(m.relIDs, id)

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
			exports, err := validator.DecodeExportTable(r)
			if err != nil {
				return nil, err
			}
			m.exports = exports

		default:
			return nil, fmt.Errorf("compiler: unknown record type %d in pile %d", kindByte, p)
		}
	}
	return m, nil
}

func resolveRoleRef(cat *stringcat.Catalog, arena *protogol.LiteralArena, ref stringcat.StringRef) string {
	if ref.IsGlobal() {
		s, _ := cat.StringAt(uint16(ref.GlobalCode()))
		return s
	}
	s, _ := arena.String(ref.LiteralOffset())
	return s
}
