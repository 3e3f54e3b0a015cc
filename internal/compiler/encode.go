package compiler

import "github.com/geodesk/golbuild/internal/protogol"

// writeTags appends a feature's tags as a count followed by
// length-prefixed key/value pairs. The compiled tile is this repo's own
// format (§4.9 only specifies "tag tables", not a byte layout), so tags
// are stored as plain resolved strings rather than re-deriving GST codes
// a reader would need the string table for anyway.
func writeTags(w *protogol.Writer, tags []protogol.Tag) {
	w.WriteUvarint(uint64(len(tags)))
	for _, t := range tags {
		w.WriteLengthPrefixed(t.Key)
		w.WriteLengthPrefixed(t.Value)
	}
}

func encodeNodeBody(n *cNode) []byte {
	w := protogol.NewWriter()
	w.WriteVarint(n.id)
	w.WriteVarint(int64(n.xy.X))
	w.WriteVarint(int64(n.xy.Y))
	writeTags(w, n.tags)
	return w.Bytes()
}

func encodeWayBody(w *cWay) []byte {
	out := protogol.NewWriter()
	out.WriteVarint(w.id)
	out.WriteVarint(int64(w.bounds.MinX))
	out.WriteVarint(int64(w.bounds.MinY))
	out.WriteVarint(int64(w.bounds.MaxX))
	out.WriteVarint(int64(w.bounds.MaxY))
	out.WriteUvarint(uint64(len(w.nodeIDs)))
	for _, nid := range w.nodeIDs {
		out.WriteVarint(nid)
	}
	writeTags(out, w.tags)
	return out.Bytes()
}

func encodeRelationBody(r *cRelation) []byte {
	out := protogol.NewWriter()
	out.WriteVarint(r.id)
	out.WriteVarint(int64(r.bounds.MinX))
	out.WriteVarint(int64(r.bounds.MinY))
	out.WriteVarint(int64(r.bounds.MaxX))
	out.WriteVarint(int64(r.bounds.MaxY))
	out.WriteUvarint(uint64(len(r.members)))
	for _, m := range r.members {
		out.WriteByte(byte(m.typ))
		out.WriteVarint(m.id)
		out.WriteLengthPrefixed(m.role)
	}
	writeTags(out, r.tags)
	return out.Bytes()
}
