// Package protogol implements the proto-string wire encoding the sorter
// writes into pile files and the validator/compiler read back (§3
// "Proto-string encoding", §4.6).
package protogol

import "encoding/binary"

// Writer accumulates a byte stream using the varint encodings the pile
// writer needs: unsigned for proto-string refs and counts, signed
// (zigzag) for coordinate and id deltas.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated byte stream.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// WriteByte appends a single raw byte.
func (w *Writer) WriteByte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBytes appends raw bytes verbatim.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteUvarint appends v as an unsigned LEB128 varint.
func (w *Writer) WriteUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

// WriteVarint appends v as a signed, zigzag-encoded varint — the encoding
// §6 calls "signed-varint deltas" for node-list deltas.
func (w *Writer) WriteVarint(v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

// WriteLengthPrefixed appends s as a varint byte-length followed by its
// raw bytes, the shape a LiteralArena entry takes.
func (w *Writer) WriteLengthPrefixed(s string) {
	w.WriteUvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// EncodeTaggedDelta packs a signed delta together with a single boolean
// flag into one unsigned value, zigzag-encoding the delta first and then
// shifting it up to make room for the flag bit. This is the node record's
// "Δid tagged with has-tags bit" (§4.6).
func EncodeTaggedDelta(delta int64, flag bool) uint64 {
	u := zigzag(delta) << 1
	if flag {
		u |= 1
	}
	return u
}

// DecodeTaggedDelta inverts EncodeTaggedDelta.
func DecodeTaggedDelta(u uint64) (delta int64, flag bool) {
	flag = u&1 != 0
	delta = unzigzag(u >> 1)
	return
}

// EncodeTaggedDelta2 is EncodeTaggedDelta generalized to two independent
// flag bits, for record headers that need to disambiguate more than one
// optional field from the delta alone (a way or relation record's
// has-tags bit plus whether it also carries a locator byte).
func EncodeTaggedDelta2(delta int64, flagA, flagB bool) uint64 {
	u := zigzag(delta) << 2
	if flagA {
		u |= 1
	}
	if flagB {
		u |= 2
	}
	return u
}

// DecodeTaggedDelta2 inverts EncodeTaggedDelta2.
func DecodeTaggedDelta2(u uint64) (delta int64, flagA, flagB bool) {
	flagA = u&1 != 0
	flagB = u&2 != 0
	delta = unzigzag(u >> 2)
	return
}

func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
