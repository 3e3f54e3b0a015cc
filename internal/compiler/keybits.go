package compiler

import (
	"github.com/geodesk/golbuild/internal/buildutil"
	"github.com/geodesk/golbuild/internal/protogol"
)

// keyBits is a branch's "indexed-key categories present" summary (§4.9):
// bit (category-1) is set if any feature under that branch carries a tag
// whose key belongs to that category. A query can skip a whole branch
// without descending into it once it knows which categories it cares
// about aren't present anywhere below.
type keyBits uint32

// categoryLookup maps a tag key to its 1-based index category; a key that
// isn't indexed at all is absent, so a lookup of it yields 0.
type categoryLookup map[string]int

func newCategoryLookup(keys []buildutil.IndexedKey) categoryLookup {
	m := make(categoryLookup, len(keys))
	for _, k := range keys {
		m[k.Key] = k.Category
	}
	return m
}

// bitsFor computes the keyBits for one feature's tags.
func (c categoryLookup) bitsFor(tags []protogol.Tag) keyBits {
	var bits keyBits
	for _, tag := range tags {
		if cat, ok := c[tag.Key]; ok && cat >= 1 && cat <= buildutil.MaxIndexCategories {
			bits |= 1 << uint(cat-1)
		}
	}
	return bits
}
