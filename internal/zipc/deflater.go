// Package zipc is the narrow compression interface the builder's core
// depends on (§1 Non-goals: "zlib compression, used through a narrow
// interface" is an external collaborator's concern, not the build
// pipeline's). The compiler calls Deflater to compress tile blobs;
// Inflate is used by `gol check` to decompress them again when it reads a
// finished GOL.
package zipc

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/flate"
)

// Deflater compresses a single buffer's worth of data with raw DEFLATE
// (no zlib or gzip framing), mirroring the narrow shape of the original
// source's Deflater: feed chunks, then call Finish once.
//
// The original's finish() calls inflate(&stream_, Z_FINISH) on a
// deflate stream, which is almost certainly a bug (a REDESIGN FLAG in
// the distilled spec). Finish here correctly drives the compression
// finish path instead: Close on the flate.Writer, which flushes any
// pending input and writes the final block.
type Deflater struct {
	buf *bytes.Buffer
	fw  *flate.Writer
	err error
	fin bool
}

// NewDeflater creates a Deflater at the given compression level
// (flate.DefaultCompression is a reasonable default; flate.BestCompression
// matches what the teacher's pmtiles writer uses for its own gzip output).
func NewDeflater(level int) (*Deflater, error) {
	buf := &bytes.Buffer{}
	fw, err := flate.NewWriter(buf, level)
	if err != nil {
		return nil, fmt.Errorf("zipc: creating deflater: %w", err)
	}
	return &Deflater{buf: buf, fw: fw}, nil
}

// AddChunk compresses another chunk of the uncompressed input. Calling
// it after Finish is a programming error.
func (d *Deflater) AddChunk(data []byte) error {
	if d.fin {
		return fmt.Errorf("zipc: AddChunk called after Finish")
	}
	if d.err != nil {
		return d.err
	}
	if _, err := d.fw.Write(data); err != nil {
		d.err = fmt.Errorf("zipc: deflating chunk: %w", err)
		return d.err
	}
	return nil
}

// Finish flushes and closes the underlying stream and returns the
// complete compressed output. Safe to call exactly once.
func (d *Deflater) Finish() ([]byte, error) {
	if d.fin {
		return nil, fmt.Errorf("zipc: Finish called twice")
	}
	d.fin = true
	if d.err != nil {
		return nil, d.err
	}
	if err := d.fw.Close(); err != nil {
		return nil, fmt.Errorf("zipc: finishing deflate stream: %w", err)
	}
	return d.buf.Bytes(), nil
}

// Deflate compresses data in a single call, for callers that already
// have the whole buffer in hand (the compiler's tile blobs, built in
// one shot per tile, never need AddChunk's incremental form).
func Deflate(data []byte, level int) ([]byte, error) {
	d, err := NewDeflater(level)
	if err != nil {
		return nil, err
	}
	if err := d.AddChunk(data); err != nil {
		return nil, err
	}
	return d.Finish()
}
