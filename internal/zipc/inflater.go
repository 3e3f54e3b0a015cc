package zipc

import (
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Inflate decompresses a raw DEFLATE block, verifying that the result is
// exactly uncompressedSize bytes and that its CRC32C checksum matches
// expectedChecksum. Mirrors the original's Inflater::inflateRaw, minus
// the chunked file-offset plumbing: callers here already hold the
// compressed bytes in memory, courtesy of golstore's blob store having
// already read the archive section into memory.
func Inflate(compressed []byte, uncompressedSize int, expectedChecksum uint32) ([]byte, error) {
	fr := flate.NewReader(nil)
	defer fr.Close()
	if err := fr.(flate.Resetter).Reset(&byteReader{compressed}, nil); err != nil {
		return nil, fmt.Errorf("zipc: resetting inflater: %w", err)
	}

	out := make([]byte, uncompressedSize)
	n, err := io.ReadFull(fr, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("zipc: inflating: %w", err)
	}
	if n != uncompressedSize {
		return nil, fmt.Errorf("zipc: decompressed size mismatch: got %d, want %d", n, uncompressedSize)
	}
	// A well-formed raw-deflate block ends exactly at its last byte; a
	// further read should report EOF, never more data.
	var extra [1]byte
	if m, _ := fr.Read(extra[:]); m > 0 {
		return nil, fmt.Errorf("zipc: compressed data size mismatch: trailing bytes after declared size")
	}

	if got := crc32.Checksum(out, castagnoli); got != expectedChecksum {
		return nil, fmt.Errorf("zipc: checksum mismatch: got %08x, want %08x", got, expectedChecksum)
	}
	return out, nil
}

// byteReader adapts a byte slice to io.Reader without pulling in
// bytes.Reader's extra seeking API, which flate.Resetter doesn't need.
type byteReader struct {
	b []byte
}

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

// Checksum computes the CRC32C (Castagnoli) checksum Inflate verifies
// against, for callers (the compiler, principally) that need to produce
// one alongside a Deflate call.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}
