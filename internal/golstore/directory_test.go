package golstore

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"testing"
)

func TestOptimizeRunLengths_Empty(t *testing.T) {
	result := optimizeRunLengths(nil)
	if len(result) != 0 {
		t.Errorf("optimizeRunLengths(nil) = %v, want empty", result)
	}
}

func TestOptimizeRunLengths_SingleEntry(t *testing.T) {
	entries := []Entry{{Pile: 5, Offset: 0, Length: 100, RunLength: 1}}
	result := optimizeRunLengths(entries)
	if len(result) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result))
	}
	if result[0].RunLength != 1 {
		t.Errorf("RunLength = %d, want 1", result[0].RunLength)
	}
}

func TestOptimizeRunLengths_Consecutive(t *testing.T) {
	entries := []Entry{
		{Pile: 10, Offset: 0, Length: 100, RunLength: 1},
		{Pile: 11, Offset: 100, Length: 100, RunLength: 1},
		{Pile: 12, Offset: 200, Length: 100, RunLength: 1},
	}
	result := optimizeRunLengths(entries)
	if len(result) != 1 {
		t.Fatalf("expected 1 merged entry, got %d", len(result))
	}
	if result[0].Pile != 10 {
		t.Errorf("Pile = %d, want 10", result[0].Pile)
	}
	if result[0].RunLength != 3 {
		t.Errorf("RunLength = %d, want 3", result[0].RunLength)
	}
}

func TestOptimizeRunLengths_NonContiguous(t *testing.T) {
	entries := []Entry{
		{Pile: 10, Offset: 0, Length: 100, RunLength: 1},
		{Pile: 15, Offset: 100, Length: 100, RunLength: 1},
	}
	result := optimizeRunLengths(entries)
	if len(result) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result))
	}
}

func TestOptimizeRunLengths_DifferentLengths(t *testing.T) {
	entries := []Entry{
		{Pile: 10, Offset: 0, Length: 100, RunLength: 1},
		{Pile: 11, Offset: 100, Length: 200, RunLength: 1},
	}
	result := optimizeRunLengths(entries)
	if len(result) != 2 {
		t.Fatalf("expected 2 entries (different lengths), got %d", len(result))
	}
}

func TestBuildDirectory_SmallSet(t *testing.T) {
	entries := make([]Entry, 10)
	offset := uint64(0)
	for i := 0; i < 10; i++ {
		entries[i] = Entry{
			Pile:      uint32(i + 1),
			Offset:    offset,
			Length:    100,
			RunLength: 1,
		}
		offset += 100
	}

	rootDir, leafDirs, err := buildDirectory(entries)
	if err != nil {
		t.Fatalf("buildDirectory: %v", err)
	}
	if len(leafDirs) != 0 {
		t.Errorf("expected no leaf dirs for small set, got %d bytes", len(leafDirs))
	}
	if len(rootDir) == 0 {
		t.Fatal("root dir is empty")
	}

	decompressed := decompressGzipT(t, rootDir)
	numEntries, n := binary.Uvarint(decompressed)
	if n <= 0 {
		t.Fatal("failed to read entry count from directory")
	}
	if numEntries == 0 || numEntries > 10 {
		t.Errorf("directory entry count = %d, want 1-10", numEntries)
	}
}

func TestBuildDirectory_RoundTripsThroughDeserialize(t *testing.T) {
	entries := []Entry{
		{Pile: 1, Offset: 0, Length: 50, RunLength: 1},
		{Pile: 2, Offset: 50, Length: 75, RunLength: 1},
		{Pile: 9, Offset: 125, Length: 20, RunLength: 1},
	}
	rootDir, leafDirs, err := buildDirectory(append([]Entry{}, entries...))
	if err != nil {
		t.Fatal(err)
	}
	if len(leafDirs) != 0 {
		t.Fatalf("expected no leaf dirs, got %d bytes", len(leafDirs))
	}

	got, err := DeserializeDirectory(rootDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if got[i] != e {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], e)
		}
	}
}

func TestSerializeDirectory_RoundTrip(t *testing.T) {
	entries := []Entry{
		{Pile: 1, Offset: 0, Length: 100, RunLength: 1},
		{Pile: 2, Offset: 100, Length: 200, RunLength: 1},
		{Pile: 6, Offset: 300, Length: 150, RunLength: 3},
	}

	data, err := serializeDirectory(entries)
	if err != nil {
		t.Fatalf("serializeDirectory: %v", err)
	}

	decompressed := decompressGzipT(t, data)
	r := bytes.NewReader(decompressed)

	numEntries := readUvarint(t, r)
	if numEntries != 3 {
		t.Fatalf("numEntries = %d, want 3", numEntries)
	}

	var piles []uint64
	var last uint64
	for i := uint64(0); i < numEntries; i++ {
		delta := readUvarint(t, r)
		id := last + delta
		piles = append(piles, id)
		last = id
	}
	if piles[0] != 1 || piles[1] != 2 || piles[2] != 6 {
		t.Errorf("piles = %v, want [1, 2, 6]", piles)
	}

	var runLengths []uint64
	for i := uint64(0); i < numEntries; i++ {
		runLengths = append(runLengths, readUvarint(t, r))
	}
	if runLengths[0] != 1 || runLengths[1] != 1 || runLengths[2] != 3 {
		t.Errorf("runLengths = %v, want [1, 1, 3]", runLengths)
	}
}

func decompressGzipT(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer r.Close()
	result, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading gzip: %v", err)
	}
	return result
}

func readUvarint(t *testing.T, r io.ByteReader) uint64 {
	t.Helper()
	v, err := binary.ReadUvarint(r)
	if err != nil {
		t.Fatalf("ReadUvarint: %v", err)
	}
	return v
}
