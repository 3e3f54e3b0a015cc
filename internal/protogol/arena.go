package protogol

import "fmt"

// LiteralArena holds the length-prefixed literal strings a proto-string
// falls back to when it isn't in the GST or frequent-string table (§3
// "Proto-string encoding": "a 29-bit offset to a literal length-prefixed
// short string within an arena").
type LiteralArena struct {
	buf []byte
}

// NewLiteralArena returns an empty arena.
func NewLiteralArena() *LiteralArena {
	return &LiteralArena{}
}

// Append writes s as a length-prefixed entry and returns its byte offset,
// suitable for wrapping with stringcat.NewLiteralRef.
func (a *LiteralArena) Append(s string) uint32 {
	offset := uint32(len(a.buf))
	w := Writer{buf: a.buf}
	w.WriteLengthPrefixed(s)
	a.buf = w.buf
	return offset
}

// String reads back the entry at offset.
func (a *LiteralArena) String(offset uint32) (string, error) {
	if int(offset) >= len(a.buf) {
		return "", fmt.Errorf("protogol: literal offset %d out of range (arena size %d)", offset, len(a.buf))
	}
	r := NewReader(a.buf[offset:])
	return r.ReadLengthPrefixed()
}

// Bytes returns the arena's backing buffer, as written to a pile file.
func (a *LiteralArena) Bytes() []byte { return a.buf }

// Len returns the arena's current size in bytes.
func (a *LiteralArena) Len() int { return len(a.buf) }
