// Package pile implements the Pile File: a single scratch file holding one
// append-only page chain per tile, shared by the sorter, validator, and
// compiler phases.
//
// The design is lifted from the teacher's DiskTileStore: a dedicated,
// lock-free page allocator (an atomically-bumped file-length counter, so
// concurrent writers claim disjoint byte ranges without a mutex) plus
// direct pread/pwrite via *os.File, rather than the buffered,
// encode-then-spill path DiskTileStore used for raster tiles. A Pile File
// has no in-memory cache to spill: every Append goes straight to its
// claimed page.
package pile

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/geodesk/golbuild/internal/coord"
)

// PageSize is the fixed page size for every pile's page chain, per §4.3.
const PageSize = 16 * 1024

// pageHeaderSize is the in-page bookkeeping: 8 bytes for the next page's
// file offset (0 meaning "no next page") and 4 bytes for the number of
// payload bytes used in this page.
const pageHeaderSize = 8 + 4

// PayloadSize is the number of data bytes that fit in one page.
const PayloadSize = PageSize - pageHeaderSize

// headerMagic identifies a pile file on disk.
const headerMagic = uint32(0x676f6c70) // "golp"

// pileHead is the per-pile bookkeeping, held only in memory: the first and
// last page of the pile's chain, and how many bytes are used in the last
// page (so Append knows where to resume writing). Create reserves room for
// a head table after the file header, but nothing writes these records
// there.
type pileHead struct {
	mu         sync.Mutex
	headOffset int64
	tailOffset int64
	tailUsed   int32
}

func (h *pileHead) isEmpty() bool {
	return h.headOffset == 0
}

// fileHeaderSize precedes the pile-head table in the file: magic (4),
// pile count (4), page size (4), reserved (4).
const fileHeaderSize = 16

// File is a single growable scratch file partitioned into one preallocated
// region per tile, each a chain of fixed-size pages. Writes within a pile
// are serialized by the caller (§4.3): a pile is written by at most one
// worker at a time, but different piles may be written concurrently by
// different workers, so page allocation (extending the file) is the only
// operation this type must make safe across goroutines.
type File struct {
	f         *os.File
	pileCount int
	heads     []pileHead // index 1..pileCount used; index 0 reserved ("absent")

	// nextPageOffset is the lock-free bump allocator for new pages. It
	// starts just past the fixed header + pile-head table.
	nextPageOffset atomic.Int64

	headerRegionSize int64
}

// Create makes a new pile file at path with room for pileCount piles
// (1-based; pile 0 is reserved for "absent" and never used).
// reserveForPile1 preallocates extra room immediately after the header for
// pile 1, which in practice holds a disproportionate share of low-zoom
// data (the root tile) and benefits from not immediately chaining out.
func Create(path string, pileCount int, reserveForPile1 int) (*File, error) {
	if pileCount < 1 {
		return nil, fmt.Errorf("pile: pileCount must be >= 1, got %d", pileCount)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("pile: create %s: %w", path, err)
	}

	headerRegionSize := int64(fileHeaderSize + (pileCount+1)*pileHeadRecordSize)

	pf := &File{
		f:                f,
		pileCount:        pileCount,
		heads:            make([]pileHead, pileCount+1),
		headerRegionSize: headerRegionSize,
	}
	pf.nextPageOffset.Store(headerRegionSize)

	if err := pf.writeFileHeader(); err != nil {
		f.Close()
		return nil, err
	}

	if reserveForPile1 > 0 {
		if err := pf.Preallocate(1, reserveForPile1); err != nil {
			f.Close()
			return nil, err
		}
	}

	return pf, nil
}

// pileHeadRecordSize is the on-disk size of one pileHead: head offset (8),
// tail offset (8), tail used (4), reserved (4).
const pileHeadRecordSize = 8 + 8 + 4 + 4

func (pf *File) writeFileHeader() error {
	buf := make([]byte, fileHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], headerMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(pf.pileCount))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(PageSize))
	_, err := pf.f.WriteAt(buf, 0)
	return err
}

func (pf *File) checkPile(p coord.Pile) error {
	if int(p) < 1 || int(p) > pf.pileCount {
		return fmt.Errorf("pile: pile %d out of range [1, %d]", p, pf.pileCount)
	}
	return nil
}

// allocatePage claims one fresh page via the lock-free bump allocator and
// returns its file offset. The page's bytes are zero (a sparse file reads
// back as zero before anything is written there), so the "next offset"
// field defaults to 0 ("no next page") until a later append chains past it.
func (pf *File) allocatePage() int64 {
	return pf.nextPageOffset.Add(PageSize) - PageSize
}

// Preallocate reserves roughly estimatedSize bytes of page chain for pile
// before the pile is first written, per §4.3's "preallocate(pile,
// estimated_size) called once per pile before use". This does not write
// any payload. It links the reserved pages into the pile's chain and sets
// the tail to the last of them, so Append starts writing in that last
// page: the earlier reserved pages stay empty, and Append allocates a new
// page once the last one is full.
func (pf *File) Preallocate(p coord.Pile, estimatedSize int) error {
	if err := pf.checkPile(p); err != nil {
		return err
	}
	h := &pf.heads[p]
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.isEmpty() {
		return fmt.Errorf("pile: pile %d already in use", p)
	}

	pages := (estimatedSize + PayloadSize - 1) / PayloadSize
	if pages < 1 {
		pages = 1
	}

	first := pf.allocatePage()
	prev := first
	for i := 1; i < pages; i++ {
		next := pf.allocatePage()
		if err := pf.writeNextPointer(prev, next); err != nil {
			return err
		}
		prev = next
	}

	h.headOffset = first
	h.tailOffset = prev
	h.tailUsed = 0
	return nil
}

func (pf *File) writeNextPointer(pageOffset, nextOffset int64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(nextOffset))
	_, err := pf.f.WriteAt(buf, pageOffset)
	return err
}

// Append writes data to the end of pile p's page chain, allocating new
// pages as needed. A single call is atomic: the pile's lock is held for
// the whole call, so a concurrent Load never sees an append in progress,
// and if a write fails partway the pile's tail (and the old tail page's
// byte count) is rolled back, so Load sees none of this call's bytes.
func (pf *File) Append(p coord.Pile, data []byte) (err error) {
	if err := pf.checkPile(p); err != nil {
		return err
	}
	h := &pf.heads[p]
	h.mu.Lock()
	defer h.mu.Unlock()

	origHead, origTail, origUsed := h.headOffset, h.tailOffset, h.tailUsed
	defer func() {
		if err != nil {
			if origHead != 0 {
				pf.writeUsed(origTail, origUsed)
			}
			h.headOffset, h.tailOffset, h.tailUsed = origHead, origTail, origUsed
		}
	}()

	if h.isEmpty() {
		first := pf.allocatePage()
		h.headOffset = first
		h.tailOffset = first
		h.tailUsed = 0
	}

	for len(data) > 0 {
		room := PayloadSize - int(h.tailUsed)
		if room == 0 {
			next := pf.allocatePage()
			if err := pf.writeNextPointer(h.tailOffset, next); err != nil {
				return err
			}
			h.tailOffset = next
			h.tailUsed = 0
			room = PayloadSize
		}

		n := room
		if n > len(data) {
			n = len(data)
		}
		payloadOffset := h.tailOffset + pageHeaderSize + int64(h.tailUsed)
		if _, err := pf.f.WriteAt(data[:n], payloadOffset); err != nil {
			return fmt.Errorf("pile: append to pile %d: %w", p, err)
		}
		h.tailUsed += int32(n)
		if err := pf.writeUsed(h.tailOffset, h.tailUsed); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (pf *File) writeUsed(pageOffset int64, used int32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(used))
	_, err := pf.f.WriteAt(buf, pageOffset+8)
	return err
}

// Load reads the full contents of pile p's page chain back into memory.
func (pf *File) Load(p coord.Pile) ([]byte, error) {
	if err := pf.checkPile(p); err != nil {
		return nil, err
	}
	h := &pf.heads[p]
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.isEmpty() {
		return nil, nil
	}

	var out []byte
	offset := h.headOffset
	for offset != 0 {
		hdr := make([]byte, pageHeaderSize)
		if _, err := pf.f.ReadAt(hdr, offset); err != nil {
			return nil, fmt.Errorf("pile: load pile %d: read page header: %w", p, err)
		}
		next := int64(binary.LittleEndian.Uint64(hdr[0:8]))
		used := int32(binary.LittleEndian.Uint32(hdr[8:12]))

		payload := make([]byte, used)
		if used > 0 {
			if _, err := pf.f.ReadAt(payload, offset+pageHeaderSize); err != nil {
				return nil, fmt.Errorf("pile: load pile %d: read page payload: %w", p, err)
			}
		}
		out = append(out, payload...)

		if offset == h.tailOffset {
			break
		}
		offset = next
	}
	return out, nil
}

// Size reports the number of bytes currently on disk for the pile file,
// including preallocated but unwritten pages.
func (pf *File) Size() int64 {
	return pf.nextPageOffset.Load()
}

// Close flushes and closes the underlying file. It does not remove it —
// callers decide whether the work directory (and this file within it)
// survives past the build, per §3's lifecycle rules.
func (pf *File) Close() error {
	return pf.f.Close()
}

// Name returns the file's path on disk.
func (pf *File) Name() string {
	return pf.f.Name()
}
