package protogol

import (
	"fmt"

	"github.com/geodesk/golbuild/internal/stringcat"
)

// Tag is a single key/value pair as the sorter sees it, before encoding.
type Tag struct {
	Key, Value string
}

// EncodeTags writes tags as alternating key/value StringRefs, terminated
// by the reserved ref 0 — the GST's first entry, the empty string, which
// can never legitimately occur as a tag key. Strings not present in cat's
// GST are appended to arena and referenced by literal offset.
func EncodeTags(w *Writer, cat *stringcat.Catalog, arena *LiteralArena, tags []Tag) {
	for _, tag := range tags {
		w.WriteUvarint(uint64(resolveRef(cat.KeyRef, arena, tag.Key)))
		w.WriteUvarint(uint64(resolveRef(cat.ValueRef, arena, tag.Value)))
	}
	w.WriteUvarint(0)
}

func resolveRef(lookup func(string) (stringcat.StringRef, bool), arena *LiteralArena, s string) stringcat.StringRef {
	if ref, ok := lookup(s); ok {
		return ref
	}
	return stringcat.NewLiteralRef(arena.Append(s))
}

// DecodeTags reads back a tag list written by EncodeTags.
func DecodeTags(r *Reader, cat *stringcat.Catalog, arena *LiteralArena) ([]Tag, error) {
	var tags []Tag
	for {
		keyVal, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		if keyVal == 0 {
			return tags, nil
		}
		key, err := resolveString(stringcat.StringRef(keyVal), cat, arena)
		if err != nil {
			return nil, fmt.Errorf("protogol: decoding tag key: %w", err)
		}
		valVal, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		value, err := resolveString(stringcat.StringRef(valVal), cat, arena)
		if err != nil {
			return nil, fmt.Errorf("protogol: decoding tag value: %w", err)
		}
		tags = append(tags, Tag{Key: key, Value: value})
	}
}

func resolveString(ref stringcat.StringRef, cat *stringcat.Catalog, arena *LiteralArena) (string, error) {
	if ref.IsGlobal() {
		s, ok := cat.StringAt(ref.GlobalCode())
		if !ok {
			return "", fmt.Errorf("unresolvable global string code %d", ref.GlobalCode())
		}
		return s, nil
	}
	return arena.String(ref.LiteralOffset())
}
