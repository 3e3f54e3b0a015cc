package golstore

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/geodesk/golbuild/internal/coord"
)

// BlobStore is the narrow interface the compiler (§4.9) registers finished
// tile blobs against. The real GOL page allocator/transaction layer is an
// external collaborator (§1 Non-goals); this interface is all the core
// needs from it.
type BlobStore interface {
	// PutTile registers a compiled tile blob for the given pile. Safe for
	// concurrent use across distinct piles, matching the compiler's own
	// per-tile worker model.
	PutTile(pile coord.Pile, blob []byte) error
	// Finish writes out everything gathered so far plus the manifest
	// (string table, indexed keys, settings, guid/revision) and returns
	// the number of distinct tile blobs actually stored (after dedup).
	Finish(manifest Manifest) (tileContents int, err error)
}

// dedupEntry records the location of a previously written blob in the
// temp file, keyed by content hash, so identical tiles (common for
// low-density or ocean-only regions of the pyramid) are stored once.
type dedupEntry struct {
	offset uint64
	length uint32
}

// FileWriter is the reference BlobStore: a two-pass archive writer
// adapted from the teacher's pmtiles.Writer. Pass 1 appends tile blobs to
// a temp file as they arrive from compiler workers, deduplicating by
// FNV-64a content hash; Finish rewrites the temp file in pile order
// ("clustering", so the final archive's tile data follows the same order
// as its directory) and assembles the final file.
type FileWriter struct {
	outputPath string
	tmpDir     string

	tmpFile   *os.File
	tmpOffset uint64
	entries   []Entry
	dedup     map[uint64]dedupEntry
	mu        sync.Mutex
	finished  bool

	dedupHits int64
}

// NewFileWriter creates a BlobStore that assembles its archive at
// outputPath, using tmpDir (or outputPath's directory, if empty) for
// scratch data.
func NewFileWriter(outputPath, tmpDir string) (*FileWriter, error) {
	if tmpDir == "" {
		tmpDir = filepath.Dir(outputPath)
	}
	tmpFile, err := os.CreateTemp(tmpDir, "gol-tiles-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("golstore: creating temp file: %w", err)
	}
	return &FileWriter{
		outputPath: outputPath,
		tmpDir:     tmpDir,
		tmpFile:    tmpFile,
		entries:    make([]Entry, 0, 1024),
		dedup:      make(map[uint64]dedupEntry),
	}, nil
}

func blobHash(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// PutTile implements BlobStore.
func (w *FileWriter) PutTile(pile coord.Pile, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}
	hash := blobHash(blob)

	w.mu.Lock()
	defer w.mu.Unlock()

	if de, ok := w.dedup[hash]; ok && de.length == uint32(len(blob)) {
		w.entries = append(w.entries, Entry{
			Pile:      uint32(pile),
			Offset:    de.offset,
			Length:    de.length,
			RunLength: 1,
		})
		w.dedupHits++
		return nil
	}

	offset := w.tmpOffset
	n, err := w.tmpFile.Write(blob)
	if err != nil {
		return fmt.Errorf("golstore: writing tile blob: %w", err)
	}
	w.tmpOffset += uint64(n)

	w.dedup[hash] = dedupEntry{offset: offset, length: uint32(n)}
	w.entries = append(w.entries, Entry{
		Pile:      uint32(pile),
		Offset:    offset,
		Length:    uint32(len(blob)),
		RunLength: 1,
	})
	return nil
}

// Finish implements BlobStore.
func (w *FileWriter) Finish(manifest Manifest) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished {
		return 0, fmt.Errorf("golstore: already finished")
	}
	w.finished = true

	sort.Slice(w.entries, func(i, j int) bool { return w.entries[i].Pile < w.entries[j].Pile })

	if err := w.clusterTileData(); err != nil {
		return 0, fmt.Errorf("golstore: clustering tile data: %w", err)
	}

	rootDir, leafDirs, err := buildDirectory(w.entries)
	if err != nil {
		return 0, fmt.Errorf("golstore: building directory: %w", err)
	}

	strings, err := serializeStrings(manifest.GST, manifest.IndexedKeys)
	if err != nil {
		return 0, err
	}
	settings := serializeSettings(manifest.Settings)

	guid := manifest.GUID
	if guid == uuid.Nil {
		guid = uuid.New()
	}

	header := Header{
		GUID:      guid,
		Revision:  manifest.Revision,
		TileCount: uint32(len(w.entries)),
		MinZoom:   uint8(manifest.MinZoom),
		MaxZoom:   uint8(manifest.MaxZoom),
	}

	sectionStart := uint64(HeaderSize + 80)
	header.DirectoryOffset = sectionStart
	header.DirectoryLength = uint64(len(rootDir))
	header.LeafDirOffset = header.DirectoryOffset + header.DirectoryLength
	header.LeafDirLength = uint64(len(leafDirs))
	header.StringsOffset = header.LeafDirOffset + header.LeafDirLength
	header.StringsLength = uint64(len(strings))
	header.SettingsOffset = header.StringsOffset + header.StringsLength
	header.SettingsLength = uint64(len(settings))
	header.TileDataOffset = header.SettingsOffset + header.SettingsLength
	header.TileDataLength = w.tmpOffset

	outFile, err := os.Create(w.outputPath)
	if err != nil {
		return 0, fmt.Errorf("golstore: creating output file: %w", err)
	}
	defer outFile.Close()

	for _, chunk := range [][]byte{
		header.Serialize(), header.SerializeSections(),
		rootDir, leafDirs, strings, settings,
	} {
		if _, err := outFile.Write(chunk); err != nil {
			return 0, fmt.Errorf("golstore: writing section: %w", err)
		}
	}

	if _, err := w.tmpFile.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("golstore: seeking temp file: %w", err)
	}
	if _, err := io.Copy(outFile, w.tmpFile); err != nil {
		return 0, fmt.Errorf("golstore: copying tile data: %w", err)
	}

	tmpPath := w.tmpFile.Name()
	w.tmpFile.Close()
	os.Remove(tmpPath)

	return len(w.entries) - int(w.dedupHits), nil
}

// clusterTileData rewrites the temp file so blob data follows pile order,
// the same "clustering" pass the teacher's Writer does for tile-ID order.
func (w *FileWriter) clusterTileData() error {
	newTmp, err := os.CreateTemp(w.tmpDir, "gol-clustered-*.tmp")
	if err != nil {
		return fmt.Errorf("creating clustered temp file: %w", err)
	}

	buf := make([]byte, 256*1024)
	var newOffset uint64

	type remap struct {
		newOffset uint64
		length    uint32
	}
	seen := make(map[uint64]remap)

	for i := range w.entries {
		e := &w.entries[i]

		if m, ok := seen[e.Offset]; ok && m.length == e.Length {
			e.Offset = m.newOffset
			continue
		}

		blobLen := int64(e.Length)
		if blobLen > int64(len(buf)) {
			buf = make([]byte, blobLen)
		}
		if _, err := w.tmpFile.ReadAt(buf[:blobLen], int64(e.Offset)); err != nil {
			return fmt.Errorf("reading blob at offset %d: %w", e.Offset, err)
		}
		if _, err := newTmp.Write(buf[:blobLen]); err != nil {
			return fmt.Errorf("writing blob at new offset %d: %w", newOffset, err)
		}

		oldOffset := e.Offset
		e.Offset = newOffset
		seen[oldOffset] = remap{newOffset: newOffset, length: e.Length}
		newOffset += uint64(blobLen)
	}

	oldPath := w.tmpFile.Name()
	w.tmpFile.Close()
	os.Remove(oldPath)

	w.tmpFile = newTmp
	w.tmpOffset = newOffset
	return nil
}

// Abort cleans up scratch resources without writing the output file.
func (w *FileWriter) Abort() {
	if w.tmpFile != nil {
		tmpPath := w.tmpFile.Name()
		w.tmpFile.Close()
		os.Remove(tmpPath)
	}
}
