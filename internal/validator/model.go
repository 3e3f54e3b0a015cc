package validator

import (
	"fmt"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/sorter"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/willf/bitset"
)

// flags marks what a tile's processing pass discovered about a local
// node, independent of whatever tags it carries (§4.8 steps 1-3).
type flags uint8

const (
	flagWayNode flags = 1 << iota
	flagRelationNode
	flagSharesLocation
	flagOrphan
)

// childExportBits is the width of the bitset that tracks which ancestor
// (parentZoomDelta, twinCode) slot a feature must be exported to: 13
// configured zoom levels times 5 twin-direction codes (§4.8).
const childExportBits = 13 * 5

func newExportBits() *bitset.BitSet { return bitset.New(childExportBits) }

func exportBitIndex(zoomDelta int, dir coord.TwinDirection) uint {
	return uint(zoomDelta)*5 + uint(dir)
}

// vNode is a decoded local node, plus whatever the validation passes
// discover about it.
type vNode struct {
	id    int64
	xy    coord.Coordinate
	tags  []protogol.Tag
	flags flags
}

// vWay is a decoded local way: its node ids in order (duplicates from a
// closed ring already dropped by the sorter), its own tags, and the
// locator it carried if it spans a pile pair.
type vWay struct {
	id         int64
	closedRing bool
	nodeIDs    []int64
	tags       []protogol.Tag
	zoomDelta  int
	dir        coord.TwinDirection
	hasLocator bool

	bounds     coord.Bounds
	exportBits *bitset.BitSet
	processed  bool
}

// vMember is one relation member as decoded from the wire, before role
// strings are needed for anything beyond export bookkeeping.
type vMember struct {
	typ  coord.FeatureType
	id   int64
	role string
}

type vRelation struct {
	id         int64
	members    []vMember
	tags       []protogol.Tag
	zoomDelta  int
	dir        coord.TwinDirection
	hasLocator bool

	bounds     coord.Bounds
	exportBits *bitset.BitSet
	processed  bool
}

// ghostWay is a way's node-id subset recorded in a deeper child tile
// (§4.6); it carries no tags or locator, only enough to let the owning
// tile's geometry contribute to the way's bounds.
type ghostWay struct {
	wayID   int64
	nodeIDs []int64
}

// membership is a back-reference recorded in a member's own (deeper)
// tile, so that tile's processing pass can mark the member as touched by
// a relation even though the relation's own record lives elsewhere.
type membership struct {
	relID int64
	typ   coord.FeatureType
	id    int64
	role  string
}

// tileModel is everything decoded out of one pile's byte stream, the
// arena §4.8 describes with four sections (local_nodes, local_ways,
// local_relations, other) — here just four plain slices/maps, since Go
// doesn't need a hand-rolled bump allocator to get cheap locality.
type tileModel struct {
	pile coord.Pile

	nodes       map[int64]*vNode
	nodeIDs     []int64 // insertion order
	ways        map[int64]*vWay
	wayIDs      []int64
	rels        map[int64]*vRelation
	relIDs      []int64 // storage order: children before parents (§4.7)
	ghosts      []ghostWay
	memberships []membership
}

func newTileModel(p coord.Pile) *tileModel {
	return &tileModel{
		pile:  p,
		nodes: make(map[int64]*vNode),
		ways:  make(map[int64]*vWay),
		rels:  make(map[int64]*vRelation),
	}
}

// decodeTile reads every record out of a pile's raw byte stream and
// reconstructs the model the validation passes operate on. It mirrors
// the encode side in internal/sorter record-for-record.
func decodeTile(p coord.Pile, data []byte, cat *stringcat.Catalog, arena *protogol.LiteralArena) (*tileModel, error) {
	m := newTileModel(p)
	r := protogol.NewReader(data)

	var lastNodeID int64
	var lastNodeX, lastNodeY int32
	var lastWayID int64
	var lastRelID int64
	var lastMembershipRelID int64

	for r.Remaining() > 0 {
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("validator: reading record type: %w", err)
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
			m.nodes[id] = &vNode{id: id, xy: coord.Coordinate{X: x, Y: y}, tags: tags}
			m.nodeIDs = append(m.nodeIDs, id)

		case sorter.RecordWay, sorter.RecordGhostWay:
			tagged, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			delta, hasTags, hasLocator := protogol.DecodeTaggedDelta2(tagged)
			id := lastWayID + delta
			lastWayID = id
			var zoomDelta int
			var dir coord.TwinDirection
			if hasLocator {
				b, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				zoomDelta, dir = sorter.DecodeLocator(b)
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
				m.ghosts = append(m.ghosts, ghostWay{wayID: id, nodeIDs: nodeIDs})
				continue
			}
			m.ways[id] = &vWay{
				id: id, closedRing: closedRing, nodeIDs: nodeIDs, tags: tags,
				zoomDelta: zoomDelta, dir: dir, hasLocator: hasLocator,
				exportBits: newExportBits(),
			}
			m.wayIDs = append(m.wayIDs, id)

		case sorter.RecordRelation:
			tagged, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			delta, hasTags, hasLocator := protogol.DecodeTaggedDelta2(tagged)
			id := lastRelID + delta
			lastRelID = id
			var zoomDelta int
			var dir coord.TwinDirection
			if hasLocator {
				b, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				zoomDelta, dir = sorter.DecodeLocator(b)
			}
			memberCount, err := r.ReadUvarint()
			if err != nil {
				return nil, err
			}
			members := make([]vMember, memberCount)
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
				members[i] = vMember{
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
			m.rels[id] = &vRelation{
				id: id, members: members, tags: tags,
				zoomDelta: zoomDelta, dir: dir, hasLocator: hasLocator,
				exportBits: newExportBits(),
			}
			m.relIDs = append(m.relIDs, id)

		case sorter.RecordMembership:
			dv, err := r.ReadVarint()
			if err != nil {
				return nil, err
			}
			relID := lastMembershipRelID + dv
			lastMembershipRelID = relID
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
			m.memberships = append(m.memberships, membership{
				relID: relID,
				typ:   coord.FeatureType(typByte),
				id:    int64(mid),
				role:  resolveRoleRef(cat, arena, stringcat.StringRef(roleRef)),
			})

		default:
			return nil, fmt.Errorf("validator: unknown record type %d in pile %d", kindByte, p)
		}
	}
	return m, nil
}

// resolveRoleRef inverts sorter.roleRef: a global StringRef resolves
// against the catalog, a literal one against the arena the sort phase
// appended it to.
func resolveRoleRef(cat *stringcat.Catalog, arena *protogol.LiteralArena, ref stringcat.StringRef) string {
	if ref.IsGlobal() {
		s, _ := cat.StringAt(uint16(ref.GlobalCode()))
		return s
	}
	s, _ := arena.String(ref.LiteralOffset())
	return s
}
