package sorter

import (
	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/osmsource"
	"github.com/geodesk/golbuild/internal/protogol"
)

// Node projects the node's coordinates, looks up its pile, and writes a
// node record (Δid tagged with has-tags bit, Δx, Δy, [tag bytes]) per
// §4.6. A node whose pile cannot be resolved (it falls outside every
// catalogued tile, which shouldn't happen once the catalog always
// contains at least the root tile, but is defensive-checked anyway) is
// logged and skipped, not fatal.
func (s *Sorter) Node(id int64, lon100nd, lat100nd int64, tags []osmsource.Tag) error {
	xy := coord.FromOSMUnits(lon100nd, lat100nd)
	p := s.catalog.PileOfCoordinate(xy)
	if !p.Valid() {
		s.stats.NodesDropped++
		return nil
	}

	s.nodeBatch.Put(uint64(id), uint64(p))

	tagList := s.resolveTags(tags)
	hasTags := len(tagList) > 0

	w := protogol.NewWriter()
	idDelta := id - s.lastNodeID[p]
	s.lastNodeID[p] = id
	w.WriteUvarint(protogol.EncodeTaggedDelta(idDelta, hasTags))
	w.WriteVarint(int64(xy.X) - int64(s.lastNodeX[p]))
	w.WriteVarint(int64(xy.Y) - int64(s.lastNodeY[p]))
	s.lastNodeX[p] = xy.X
	s.lastNodeY[p] = xy.Y
	if hasTags {
		protogol.EncodeTags(w, s.strings, s.arena, tagList)
	}

	return s.appendRecord(p, RecordNode, w.Bytes())
}
