// Package golstore is a stand-in for the GOL blob store: the on-disk page
// allocator and transaction layer spec.md treats as an external
// collaborator (§1, §6 "Output"). It implements just enough of that
// contract — BlobStore — for the compiler to register finished tile blobs
// against, and a reference BlobStore backed by a single flat archive file
// so the pipeline can be built and tested end to end without a real GOL
// reader/writer.
package golstore

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// Entry locates one compiled tile blob within the archive: which pile it
// is, where its bytes start, how long they are, and how many consecutive
// piles (by number) share this same entry's shape (a run-length
// optimization for contiguous identical-size writes, e.g. empty tiles).
type Entry struct {
	Pile      uint32
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// buildDirectory takes entries (any order) and produces a serialized,
// gzip-compressed directory, splitting into root + leaf sections once the
// entry count exceeds one compressed block's comfortable size. The split
// point and leaf size are the teacher's PMTiles v3 constants; nothing
// about them is specific to raster tiles.
func buildDirectory(entries []Entry) (rootDir []byte, leafDirs []byte, err error) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Pile < entries[j].Pile
	})

	optimized := optimizeRunLengths(entries)

	const maxRootEntries = 16384
	if len(optimized) <= maxRootEntries {
		rootDir, err = serializeDirectory(optimized)
		return rootDir, nil, err
	}

	const leafSize = 4096
	numLeaves := (len(optimized) + leafSize - 1) / leafSize

	type leafInfo struct {
		firstPile uint32
		offset    uint64
		length    uint64
	}

	var leafBuf bytes.Buffer
	leaves := make([]leafInfo, 0, numLeaves)

	for i := 0; i < len(optimized); i += leafSize {
		end := i + leafSize
		if end > len(optimized) {
			end = len(optimized)
		}
		chunk := optimized[i:end]

		leafData, serErr := serializeDirectory(chunk)
		if serErr != nil {
			return nil, nil, serErr
		}

		leaves = append(leaves, leafInfo{
			firstPile: chunk[0].Pile,
			offset:    uint64(leafBuf.Len()),
			length:    uint64(len(leafData)),
		})
		leafBuf.Write(leafData)
	}

	rootEntries := make([]Entry, len(leaves))
	for i, l := range leaves {
		rootEntries[i] = Entry{
			Pile:      l.firstPile,
			Offset:    l.offset,
			Length:    uint32(l.length),
			RunLength: 0, // 0 marks a leaf-directory pointer, not a tile
		}
	}

	rootDir, err = serializeDirectory(rootEntries)
	return rootDir, leafBuf.Bytes(), err
}

func serializeDirectory(entries []Entry) ([]byte, error) {
	var raw bytes.Buffer
	buf := make([]byte, binary.MaxVarintLen64)

	n := binary.PutUvarint(buf, uint64(len(entries)))
	raw.Write(buf[:n])

	var lastPile uint32
	for _, e := range entries {
		delta := uint64(e.Pile - lastPile)
		n = binary.PutUvarint(buf, delta)
		raw.Write(buf[:n])
		lastPile = e.Pile
	}

	for _, e := range entries {
		n = binary.PutUvarint(buf, uint64(e.RunLength))
		raw.Write(buf[:n])
	}

	for _, e := range entries {
		n = binary.PutUvarint(buf, uint64(e.Length))
		raw.Write(buf[:n])
	}

	var lastOffset uint64
	for i, e := range entries {
		var val uint64
		if i > 0 && e.Offset == lastOffset+uint64(entries[i-1].Length) {
			val = 0 // contiguous with previous entry
		} else {
			val = e.Offset + 1 // +1 so 0 can mean "contiguous"
		}
		n = binary.PutUvarint(buf, val)
		raw.Write(buf[:n])
		lastOffset = e.Offset
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

// DeserializeDirectory decompresses and parses a directory built by
// buildDirectory/serializeDirectory.
func DeserializeDirectory(data []byte) ([]Entry, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("golstore: directory gzip reader: %w", err)
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("golstore: decompressing directory: %w", err)
	}

	r := bytes.NewReader(raw)

	numEntries, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("golstore: reading entry count: %w", err)
	}

	entries := make([]Entry, numEntries)

	var lastPile uint32
	for i := uint64(0); i < numEntries; i++ {
		delta, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("golstore: reading pile delta %d: %w", i, err)
		}
		lastPile += uint32(delta)
		entries[i].Pile = lastPile
	}

	for i := uint64(0); i < numEntries; i++ {
		rl, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("golstore: reading run length %d: %w", i, err)
		}
		entries[i].RunLength = uint32(rl)
	}

	for i := uint64(0); i < numEntries; i++ {
		length, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("golstore: reading length %d: %w", i, err)
		}
		entries[i].Length = uint32(length)
	}

	var lastOffset uint64
	for i := uint64(0); i < numEntries; i++ {
		val, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("golstore: reading offset %d: %w", i, err)
		}
		if val == 0 && i > 0 {
			entries[i].Offset = lastOffset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = val - 1
		}
		lastOffset = entries[i].Offset
	}

	return entries, nil
}

// optimizeRunLengths merges consecutive entries whose pile numbers,
// offsets, and lengths form a contiguous run, the same way a chain of
// identically-shaped empty tiles collapses to one directory entry.
func optimizeRunLengths(entries []Entry) []Entry {
	if len(entries) == 0 {
		return entries
	}

	result := make([]Entry, 0, len(entries))
	current := entries[0]
	current.RunLength = 1

	for i := 1; i < len(entries); i++ {
		e := entries[i]
		expectedPile := current.Pile + current.RunLength
		expectedOffset := current.Offset + uint64(current.Length)*uint64(current.RunLength)

		if e.Pile == expectedPile && e.Offset == expectedOffset && e.Length == current.Length {
			current.RunLength++
		} else {
			result = append(result, current)
			current = e
			current.RunLength = 1
		}
	}
	result = append(result, current)

	return result
}
