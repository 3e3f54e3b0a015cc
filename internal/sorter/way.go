package sorter

import (
	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/osmsource"
	"github.com/geodesk/golbuild/internal/protogol"
)

type wayNodeRef struct {
	id   int64
	pile coord.Pile
}

func distinctNodeCount(refs []wayNodeRef) int {
	seen := make(map[int64]bool, len(refs))
	for _, r := range refs {
		seen[r.id] = true
	}
	return len(seen)
}

// Way resolves each of the way's nodes to its pile, determines whether
// the way fits in one tile or spans a pair, and writes the way body plus
// any ghost ways its deeper-zoom nodes need (§4.6 "Ways").
func (s *Sorter) Way(id int64, tags []osmsource.Tag, nodeIDs []int64) error {
	if err := s.advanceTo(phaseWays); err != nil {
		return err
	}

	closedRing := false
	if len(nodeIDs) >= 3 && nodeIDs[0] == nodeIDs[len(nodeIDs)-1] {
		closedRing = true
		nodeIDs = nodeIDs[:len(nodeIDs)-1]
	}

	refs := make([]wayNodeRef, 0, len(nodeIDs))
	distinctPiles := make(map[coord.Pile]bool)
	for _, nid := range nodeIDs {
		p := coord.Pile(s.nodeIndex.Get(uint64(nid)))
		if !p.Valid() {
			continue // logged at verbose by the caller's source, not fatal here
		}
		refs = append(refs, wayNodeRef{id: nid, pile: p})
		distinctPiles[p] = true
	}

	minNodes := 2
	if closedRing {
		minNodes = 3
	}
	if distinctNodeCount(refs) < minNodes {
		s.stats.WaysRejected++
		return nil
	}

	tagList := s.resolveTags(tags)

	if len(distinctPiles) == 1 {
		var p coord.Pile
		for only := range distinctPiles {
			p = only
		}
		if err := s.writeWayBody(p, id, nil, closedRing, refs, tagList); err != nil {
			return err
		}
		s.wayBatch.Put(uint64(id), uint64(coord.NewPilePair(p, coord.TwinNone)))
		return nil
	}

	var combined coord.TilePair
	first := true
	for p := range distinctPiles {
		tp := coord.SingleTile(s.catalog.TileOfPile(p))
		if first {
			combined = tp
			first = false
		} else {
			combined = coord.CombineTilePairs(combined, tp)
		}
	}
	normalized := s.catalog.NormalizeTilePair(combined)
	pp := s.catalog.PilePairOfTilePair(normalized)
	if !pp.Valid() {
		s.stats.WaysRejected++
		return nil
	}

	locator := encodeLocator(normalized.A.Zoom, pp.Dir())
	if err := s.writeWayBody(pp.Pile(), id, &locator, closedRing, refs, tagList); err != nil {
		return err
	}
	if err := s.writeWayBody(s.twinPile(pp), id, &locator, closedRing, refs, tagList); err != nil {
		return err
	}
	s.wayBatch.Put(uint64(id), uint64(pp))

	return s.writeGhostWays(id, normalized.A.Zoom, refs)
}

func (s *Sorter) writeWayBody(p coord.Pile, id int64, locator *byte, closedRing bool, refs []wayNodeRef, tags []protogol.Tag) error {
	hasTags := len(tags) > 0
	w := protogol.NewWriter()
	idDelta := id - s.lastWayID[p]
	s.lastWayID[p] = id
	w.WriteUvarint(protogol.EncodeTaggedDelta2(idDelta, hasTags, locator != nil))
	if locator != nil {
		w.WriteByte(*locator)
	}
	w.WriteUvarint(encodeNodeCount(len(refs), closedRing))
	var prev int64
	for _, r := range refs {
		w.WriteVarint(r.id - prev)
		prev = r.id
	}
	if hasTags {
		protogol.EncodeTags(w, s.strings, s.arena, tags)
	}
	return s.appendRecord(p, RecordWay, w.Bytes())
}

// writeGhostWays writes a ghost way, holding only the nodes that live
// there, into every distinct node-pile whose tile sits deeper than
// pairZoom — the piles a reader visits independently of the pair's own
// two piles and that otherwise wouldn't see any trace of this way.
func (s *Sorter) writeGhostWays(wayID int64, pairZoom int, refs []wayNodeRef) error {
	var order []coord.Pile
	byPile := make(map[coord.Pile][]wayNodeRef)
	for _, r := range refs {
		if s.catalog.TileOfPile(r.pile).Zoom <= pairZoom {
			continue
		}
		if _, ok := byPile[r.pile]; !ok {
			order = append(order, r.pile)
		}
		byPile[r.pile] = append(byPile[r.pile], r)
	}

	for _, p := range order {
		nodes := byPile[p]
		w := protogol.NewWriter()
		idDelta := wayID - s.lastWayID[p]
		s.lastWayID[p] = wayID
		w.WriteUvarint(protogol.EncodeTaggedDelta2(idDelta, false, false))
		w.WriteUvarint(encodeNodeCount(len(nodes), false))
		var prev int64
		for _, n := range nodes {
			w.WriteVarint(n.id - prev)
			prev = n.id
		}
		if err := s.appendRecord(p, RecordGhostWay, w.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
