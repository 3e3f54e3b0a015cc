package validator

import (
	"github.com/geodesk/golbuild/internal/coord"
)

// tileOutput is everything one tile's worker pass produced, collected for
// the single output goroutine to apply (§4.8 "output thread"): the bounds
// contribution this tile made toward any way or relation whose own record
// lives elsewhere, this tile's finished export table, and a few counters.
type tileOutput struct {
	pile coord.Pile

	exportTable []byte

	wayBoundsContrib map[int64]coord.Bounds
	relBoundsContrib map[int64]coord.Bounds

	orphanNodes         int
	relationNodeOrphans int
	sharedLocationNodes int
}

func newTileOutput(p coord.Pile) *tileOutput {
	return &tileOutput{
		pile:             p,
		wayBoundsContrib: make(map[int64]coord.Bounds),
		relBoundsContrib: make(map[int64]coord.Bounds),
	}
}

func (o *tileOutput) addWayBounds(id int64, b coord.Bounds) {
	if b.IsEmpty() {
		return
	}
	o.wayBoundsContrib[id] = o.wayBoundsContrib[id].Union(b)
}

func (o *tileOutput) addRelBounds(id int64, b coord.Bounds) {
	if b.IsEmpty() {
		return
	}
	o.relBoundsContrib[id] = o.relBoundsContrib[id].Union(b)
}

// processTile runs the three validation passes over a decoded tile and
// builds its export table. It is the Engine's WorkerFunc body: everything
// it touches is local to m and out, so it is safe to run concurrently
// with other tiles in the same batch. Cross-tile state (v.wayBounds,
// v.foreignRelationBounds) is only ever read here, never written — it is
// only written by applyTileOutput, the single output goroutine, and the
// batch barrier between zoom levels (and between the two color groups of
// one zoom level) guarantees every write a tile could depend on has
// already landed before that tile's own batch starts.
func (v *Validator) processTile(m *tileModel) *tileOutput {
	out := newTileOutput(m.pile)

	for i := len(m.relIDs) - 1; i >= 0; i-- {
		v.processRelation(m, m.rels[m.relIDs[i]], out)
	}
	for _, id := range m.wayIDs {
		v.processWay(m, m.ways[id], out)
	}
	v.processGhostWays(m, out)
	v.processNodes(m, out)
	v.pushMemberships(m, out)
	v.buildExportTable(m, out)

	return out
}

// processRelation implements §4.8 step 1. Members that are local ways or
// relations are processed first if they haven't been already, so a
// relation of relations always sees its children's finished bounds and
// export bits.
func (v *Validator) processRelation(m *tileModel, rel *vRelation, out *tileOutput) {
	if rel.processed {
		return
	}
	rel.processed = true

	bounds := coord.EmptyBounds()
	if rel.hasLocator {
		rel.exportBits.Set(exportBitIndex(0, rel.dir))
	}

	for _, mem := range rel.members {
		switch mem.typ {
		case coord.FeatureNode:
			if n, ok := m.nodes[mem.id]; ok {
				n.flags |= flagRelationNode
				bounds = bounds.UnionCoord(n.xy)
			}
		case coord.FeatureWay:
			if w, ok := m.ways[mem.id]; ok {
				v.processWay(m, w, out)
				bounds = bounds.Union(w.bounds)
				rel.exportBits.InPlaceUnion(w.exportBits)
			} else {
				bounds = bounds.Union(v.wayBoundsOf(mem.id))
			}
		case coord.FeatureRelation:
			if child, ok := m.rels[mem.id]; ok {
				v.processRelation(m, child, out)
				bounds = bounds.Union(child.bounds)
				rel.exportBits.InPlaceUnion(child.exportBits)
			} else {
				bounds = bounds.Union(v.foreignRelationBounds(mem.id))
			}
		}
	}

	rel.bounds = bounds
	out.addRelBounds(rel.id, bounds)
}

// processWay implements §4.8 step 2: bounds come from every referenced
// node this tile has decoded locally, unioned with whatever deeper child
// tiles already contributed via ghost ways (v.wayBounds, read under the
// batch-ordering invariant documented on processTile). A way's own pile
// is always at or shallower than every ghost pile that references it, so
// by the time its own batch runs, every ghost contribution is already in
// place and the union computed here is the way's final bounds.
func (v *Validator) processWay(m *tileModel, w *vWay, out *tileOutput) {
	if w.processed {
		return
	}
	w.processed = true

	if w.hasLocator {
		w.exportBits.Set(exportBitIndex(0, w.dir))
	}

	bounds := v.wayBoundsOf(w.id)
	for _, nid := range w.nodeIDs {
		if n, ok := m.nodes[nid]; ok {
			n.flags |= flagWayNode
			bounds = bounds.UnionCoord(n.xy)
		}
	}
	w.bounds = bounds
	out.addWayBounds(w.id, bounds)
}

// processGhostWays unions each ghost way's locally-known node coordinates
// into that way's bounds contribution, for a deeper tile that holds no
// trace of the way itself beyond the subset of its nodes that live here.
func (v *Validator) processGhostWays(m *tileModel, out *tileOutput) {
	for _, g := range m.ghosts {
		bounds := coord.EmptyBounds()
		for _, nid := range g.nodeIDs {
			if n, ok := m.nodes[nid]; ok {
				n.flags |= flagWayNode
				bounds = bounds.UnionCoord(n.xy)
			}
		}
		out.addWayBounds(g.wayID, bounds)
	}
}

// processNodes implements §4.8 step 3: any two local nodes sharing a
// coordinate are flagged NODE_SHARES_LOCATION (and so promoted to feature
// status regardless of tags), then every untouched, untagged node is
// counted as an orphan.
func (v *Validator) processNodes(m *tileModel, out *tileOutput) {
	byCoord := make(map[coord.Coordinate][]*vNode, len(m.nodeIDs))
	for _, id := range m.nodeIDs {
		n := m.nodes[id]
		byCoord[n.xy] = append(byCoord[n.xy], n)
	}
	for _, group := range byCoord {
		if len(group) < 2 {
			continue
		}
		for _, n := range group {
			n.flags |= flagSharesLocation
		}
		out.sharedLocationNodes += len(group)
	}

	for _, id := range m.nodeIDs {
		n := m.nodes[id]
		if len(n.tags) == 0 && n.flags == 0 {
			n.flags |= flagOrphan
			out.orphanNodes++
			if n.flags&flagRelationNode != 0 {
				out.relationNodeOrphans++
			}
		}
	}
}

// pushMemberships carries each local feature's finished bounds up to
// whatever foreign relation references it (§4.6 "Relations" step 3's
// membership records exist for exactly this: a feature's own tile is the
// only place that knows its bounds, so it pushes that contribution to
// the relation's accumulator rather than the relation's tile reaching
// back down for it).
func (v *Validator) pushMemberships(m *tileModel, out *tileOutput) {
	for _, mem := range m.memberships {
		b := coord.EmptyBounds()
		switch mem.typ {
		case coord.FeatureNode:
			if n, ok := m.nodes[mem.id]; ok {
				n.flags |= flagRelationNode
				b = b.UnionCoord(n.xy)
			}
		case coord.FeatureWay:
			if w, ok := m.ways[mem.id]; ok {
				b = w.bounds
			}
		case coord.FeatureRelation:
			if r, ok := m.rels[mem.id]; ok {
				b = r.bounds
			}
		}
		out.addRelBounds(mem.relID, b)
	}
}
