package featureindex

import "os"

// SegmentSize is the granularity the backing file grows and, on a
// sparse-file-aware filesystem, dematerializes in (§4.4).
const SegmentSize = 1 << 30 // 1 GiB

// MappedIndex is a PackedArray backed by a memory-mapped, sparse scratch
// file. It grows the file (and remaps) in SegmentSize chunks whenever a
// Put would otherwise fall past the current mapping.
type MappedIndex struct {
	file   *os.File
	width  uint
	data   []byte
	packed *PackedArray
}

// Create opens path for read-write, truncating any existing content, and
// maps its first segment.
func Create(path string, width uint) (*MappedIndex, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	m := &MappedIndex{file: f, width: width}
	if err := m.growTo(SegmentSize); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

// Open maps an existing index file at its current size, rounded up to the
// next segment boundary.
func Open(path string, width uint) (*MappedIndex, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	m := &MappedIndex{file: f, width: width}
	size := info.Size()
	if size < SegmentSize {
		size = SegmentSize
	}
	if err := m.growTo(size); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

// growTo ensures the mapping covers at least size bytes, truncating the
// file up to the next SegmentSize boundary and remapping if needed.
func (m *MappedIndex) growTo(size int64) error {
	if m.data != nil && int64(len(m.data)) >= size {
		return nil
	}
	segments := (size + SegmentSize - 1) / SegmentSize
	newSize := segments * SegmentSize
	if err := m.file.Truncate(newSize); err != nil {
		return err
	}
	return m.remap(newSize)
}

func (m *MappedIndex) remap(size int64) error {
	if m.data != nil {
		if err := munmapFile(m.data); err != nil {
			return err
		}
	}
	data, err := mmapFileRW(m.file.Fd(), int(size))
	if err != nil {
		return err
	}
	m.data = data
	m.packed = NewPackedArray(data, m.width)
	return nil
}

// ensureCapacity grows the mapping if index falls past the current one.
func (m *MappedIndex) ensureCapacity(index uint64) error {
	bitEnd := (index + 1) * uint64(m.width)
	byteEnd := int64((bitEnd + 7) / 8)
	return m.growTo(byteEnd)
}

// Put writes value at index, growing the backing file first if needed.
func (m *MappedIndex) Put(index uint64, value uint64) error {
	if err := m.ensureCapacity(index); err != nil {
		return err
	}
	m.packed.Put(index, value)
	return nil
}

// Get reads the value at index. An index past the current mapping reads
// as 0 (the zero value every feature-id index uses for "absent"), rather
// than growing the file on a read path.
func (m *MappedIndex) Get(index uint64) uint64 {
	bitEnd := (index + 1) * uint64(m.width)
	byteEnd := (bitEnd + 7) / 8
	if byteEnd > uint64(len(m.data)) {
		return 0
	}
	return m.packed.Get(index)
}

// Width returns the configured field width in bits.
func (m *MappedIndex) Width() uint { return m.width }

// Sync flushes the mapped pages to the backing file.
func (m *MappedIndex) Sync() error {
	return m.file.Sync()
}

// Close unmaps the file and closes the descriptor.
func (m *MappedIndex) Close() error {
	if m.data != nil {
		if err := munmapFile(m.data); err != nil {
			return err
		}
		m.data = nil
	}
	return m.file.Close()
}
