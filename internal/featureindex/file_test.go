package featureindex

import (
	"path/filepath"
	"testing"
)

func TestMappedIndex_CreatePutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.idx")
	idx, err := Create(path, 18)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer idx.Close()

	if err := idx.Put(42, 12345); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := idx.Put(1_000_000, 999); err != nil {
		t.Fatalf("Put (sparse, far index): %v", err)
	}
	if got := idx.Get(42); got != 12345 {
		t.Errorf("Get(42) = %d, want 12345", got)
	}
	if got := idx.Get(1_000_000); got != 999 {
		t.Errorf("Get(1000000) = %d, want 999", got)
	}
	if got := idx.Get(43); got != 0 {
		t.Errorf("Get(43) (never written) = %d, want 0", got)
	}
}

func TestMappedIndex_GrowsPastInitialSegment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.idx")
	idx, err := Create(path, 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer idx.Close()

	// An index far enough out (byte offset just past one SegmentSize) to
	// require growing into a second chunk.
	farIndex := uint64(SegmentSize)/2 + 1000
	if err := idx.Put(farIndex, 7); err != nil {
		t.Fatalf("Put past first segment: %v", err)
	}
	if got := idx.Get(farIndex); got != 7 {
		t.Errorf("Get(farIndex) = %d, want 7", got)
	}
}

func TestMappedIndex_OpenReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.idx")
	idx, err := Create(path, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := idx.Put(5, 100); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	if got := reopened.Get(5); got != 100 {
		t.Errorf("Get(5) after reopen = %d, want 100", got)
	}
}

func TestFastFeatureIndex_BuffersUntilFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fast.idx")
	idx, err := Create(path, 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer idx.Close()

	fast := NewFastFeatureIndex(idx)
	fast.Put(1, 10)
	fast.Put(2, 20)
	if idx.Get(1) != 0 {
		t.Error("target should be unaffected before Flush")
	}
	if fast.Len() != 2 {
		t.Errorf("Len() = %d, want 2", fast.Len())
	}
	if err := fast.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if idx.Get(1) != 10 || idx.Get(2) != 20 {
		t.Errorf("Get(1)=%d Get(2)=%d after Flush, want 10 and 20", idx.Get(1), idx.Get(2))
	}
	if fast.Len() != 0 {
		t.Errorf("Len() after Flush = %d, want 0", fast.Len())
	}
}

func TestFastFeatureIndex_RepeatedIdKeepsLastValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fast2.idx")
	idx, err := Create(path, 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer idx.Close()

	fast := NewFastFeatureIndex(idx)
	fast.Put(9, 1)
	fast.Put(9, 2)
	if err := fast.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := idx.Get(9); got != 2 {
		t.Errorf("Get(9) = %d, want 2 (last write wins)", got)
	}
}
