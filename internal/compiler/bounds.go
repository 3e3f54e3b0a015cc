package compiler

import "github.com/geodesk/golbuild/internal/coord"

// buildWayBounds computes w's bounds from whichever of its nodes live in
// m locally, falling back to res for the rest (§4.9's TileModel has to
// reassemble geometry the sort phase scattered across piles). Memoized
// on w.bounds/w.processed since a way can be referenced by more than one
// local relation.
func buildWayBounds(m *tileModel, w *cWay, res *resolver) coord.Bounds {
	if w.processed {
		return w.bounds
	}
	w.processed = true
	bounds := coord.EmptyBounds()
	for _, nid := range w.nodeIDs {
		if n, ok := m.nodes[nid]; ok {
			bounds = bounds.UnionCoord(n.xy)
		} else if xy, ok := res.nodeCoord(nid); ok {
			bounds = bounds.UnionCoord(xy)
		}
	}
	w.bounds = bounds
	return bounds
}

// buildRelationBounds computes r's bounds by unioning its members',
// recursing into local way/relation members first and falling back to
// res for anything not present in m. depth guards against a reference
// cycle that should never reach here (internal/superrel already
// resolved every cycle before the sort phase wrote these relations).
func buildRelationBounds(m *tileModel, r *cRelation, res *resolver, depth int) coord.Bounds {
	if r.processed {
		return r.bounds
	}
	r.processed = true
	bounds := coord.EmptyBounds()
	if depth > 32 {
		r.bounds = bounds
		return bounds
	}
	for _, mem := range r.members {
		switch mem.typ {
		case coord.FeatureNode:
			if n, ok := m.nodes[mem.id]; ok {
				bounds = bounds.UnionCoord(n.xy)
			} else if xy, ok := res.nodeCoord(mem.id); ok {
				bounds = bounds.UnionCoord(xy)
			}
		case coord.FeatureWay:
			if w, ok := m.ways[mem.id]; ok {
				bounds = bounds.Union(buildWayBounds(m, w, res))
			} else {
				bounds = bounds.Union(res.wayBounds(mem.id))
			}
		case coord.FeatureRelation:
			if child, ok := m.rels[mem.id]; ok {
				bounds = bounds.Union(buildRelationBounds(m, child, res, depth+1))
			} else {
				bounds = bounds.Union(res.relationBounds(mem.id, depth+1))
			}
		}
	}
	r.bounds = bounds
	return bounds
}
