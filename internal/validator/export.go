package validator

import (
	"sort"

	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/protogol"
)

// RecordExportTable marks the one record a tile's own batch appends to
// its pile once validation finishes: the Hilbert-sorted list of
// TypedFeatureIds the compiler indexes from (§4.8 step 5). It shares the
// pile file's "type byte, then body" convention but lives outside
// sorter.RecordType's range so the two phases' record kinds never
// collide on disk. Exported because the compiler, a later phase reading
// the same piles, needs to recognize and decode it.
const RecordExportTable = 64

// hilbertSortZoom is the zoom level used purely as a sort key quantizer
// for the export table; it has nothing to do with the tile pyramid's own
// configured zoom levels.
const hilbertSortZoom = 24

type exportEntry struct {
	id      coord.TypedFeatureId
	hilbert uint64
}

// buildExportTable assembles and appends §4.8 step 5's export table: every
// tagged node, every node flagged NODE_SHARES_LOCATION, and every local
// way and relation, Hilbert-sorted by a representative coordinate.
func (v *Validator) buildExportTable(m *tileModel, out *tileOutput) {
	var entries []exportEntry
	for _, id := range m.nodeIDs {
		n := m.nodes[id]
		if len(n.tags) == 0 && n.flags&flagSharesLocation == 0 {
			continue
		}
		entries = append(entries, exportEntry{
			id:      coord.NewTypedFeatureId(n.id, coord.FeatureNode),
			hilbert: hilbertKeyForCoord(n.xy),
		})
	}
	for _, id := range m.wayIDs {
		w := m.ways[id]
		entries = append(entries, exportEntry{
			id:      coord.NewTypedFeatureId(w.id, coord.FeatureWay),
			hilbert: hilbertKeyForBounds(w.bounds),
		})
	}
	for _, id := range m.relIDs {
		r := m.rels[id]
		entries = append(entries, exportEntry{
			id:      coord.NewTypedFeatureId(r.id, coord.FeatureRelation),
			hilbert: hilbertKeyForBounds(r.bounds),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].hilbert < entries[j].hilbert })

	w := protogol.NewWriter()
	w.WriteByte(RecordExportTable)
	w.WriteUvarint(uint64(len(entries)))
	for _, e := range entries {
		w.WriteUvarint(uint64(e.id))
	}
	out.exportTable = w.Bytes()
}

// DecodeExportTable reads back the export table r is positioned just past
// the RecordExportTable marker byte of (i.e. the caller has already read
// and checked that type byte). Shared with internal/compiler, the other
// reader of this record.
func DecodeExportTable(r *protogol.Reader) ([]coord.TypedFeatureId, error) {
	count, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	out := make([]coord.TypedFeatureId, count)
	for i := range out {
		v, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		out[i] = coord.TypedFeatureId(v)
	}
	return out, nil
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
