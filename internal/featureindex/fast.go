package featureindex

// FastFeatureIndex buffers a single worker's put() calls so they can be
// applied to the shared MappedIndex as one batch at a phase or block
// boundary, rather than racing other workers over partial-word writes to
// the same backing page (§4.4 "Concurrency").
type FastFeatureIndex struct {
	target *MappedIndex
	ids    []uint64
	values []uint64
}

// NewFastFeatureIndex creates a batch buffer flushing into target.
func NewFastFeatureIndex(target *MappedIndex) *FastFeatureIndex {
	return &FastFeatureIndex{target: target}
}

// Put buffers an id -> value mapping. Entries are applied in Flush in the
// order they were buffered, so a repeated id within one batch keeps its
// most recent value.
func (f *FastFeatureIndex) Put(id uint64, value uint64) {
	f.ids = append(f.ids, id)
	f.values = append(f.values, value)
}

// Len returns the number of buffered, not-yet-flushed entries.
func (f *FastFeatureIndex) Len() int { return len(f.ids) }

// Flush applies every buffered entry to the target index and clears the
// buffer. This is the only point at which this worker's entries become
// visible to other workers reading the shared index.
func (f *FastFeatureIndex) Flush() error {
	for i, id := range f.ids {
		if err := f.target.Put(id, f.values[i]); err != nil {
			return err
		}
	}
	f.ids = f.ids[:0]
	f.values = f.values[:0]
	return nil
}
