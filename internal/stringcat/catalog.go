package stringcat

import (
	"sort"
	"strconv"
)

// CoreStrings are the GST's first 5 reserved entries, always present at
// indices 0-4 regardless of configuration (§3 "Global string table").
var CoreStrings = []string{"", "no", "yes", "outer", "inner"}

// Config controls how Build turns accumulated counters into a Catalog.
type Config struct {
	// IndexedKeys are written into the GST right after the 5 core
	// strings, in order, regardless of usage count.
	IndexedKeys []string
	// MaxStrings caps the GST's final size (256..65533 per the CLI
	// surface, §6); 0 means DefaultMaxStrings.
	MaxStrings int
	// MinProtoStringUsage is the minimum total count (key+value) a
	// non-required string needs to enter the proto-string table at all
	// (§4.1 step 2); 0 means DefaultMinProtoStringUsage.
	MinProtoStringUsage uint64
}

const (
	DefaultMaxStrings          = 65_533
	DefaultMinProtoStringUsage = 100

	maxFrequentAnyKind = 512
	maxFrequentKeys    = 8192
)

// StringRef is how the sorter/compiler refer to a string once it has been
// through the catalog: either an embedded global (GST) code, with the high
// bit clear, or an offset into a literal-string arena, tagged with the high
// bit, for strings that didn't make the cut (§3 "Proto-string encoding").
type StringRef uint32

const literalRefTag = uint32(1) << 31

// NewGlobalRef wraps a GST code (0..65535) as a StringRef.
func NewGlobalRef(code uint16) StringRef {
	return StringRef(uint32(code))
}

// NewLiteralRef wraps an arena byte offset as a StringRef. offset must fit
// in 31 bits (the proto-string encoding's "29-bit offset" is a wire-format
// detail of the packed varint; StringRef itself just needs the tag bit
// free).
func NewLiteralRef(offset uint32) StringRef {
	return StringRef(literalRefTag | offset)
}

func (r StringRef) IsGlobal() bool { return uint32(r)&literalRefTag == 0 }

func (r StringRef) GlobalCode() uint16 {
	return uint16(uint32(r) &^ literalRefTag)
}

func (r StringRef) LiteralOffset() uint32 {
	return uint32(r) &^ literalRefTag
}

// Catalog is the finished product of a build step (§4.1): the GST itself,
// plus the two lookups the sorter and validator/compiler need.
type Catalog struct {
	GST []string

	// keyRefs/valueRefs map a literal string to the StringRef the sorter
	// should encode for it, when used as a key or value respectively
	// (the two "parallel tables" of §3 "Proto-string encoding").
	keyRefs   map[string]StringRef
	valueRefs map[string]StringRef

	// byCode maps a GST code back to its string, for the
	// validator/compiler's (type, proto_code) -> string lookup.
	byCode map[uint16]string
}

// FromGST rebuilds a decode-only Catalog from an already-finished global
// string table, the GST a build's manifest persists (§6 "Output"). It
// has no use encoding new tags (keyRefs/valueRefs stay nil; KeyRef/
// ValueRef would panic), only resolving codes back to strings via
// StringAt — all a post-hoc reader like gol check needs.
func FromGST(gst []string) *Catalog {
	byCode := make(map[uint16]string, len(gst))
	for i, s := range gst {
		byCode[uint16(i)] = s
	}
	return &Catalog{GST: gst, byCode: byCode}
}

// KeyRef returns the StringRef the sorter should write for s used as a
// tag key, and whether s made it into the proto-string table at all
// (strings below the usage threshold and not required fall back to a
// literal encoding the caller must supply its own arena offset for).
func (c *Catalog) KeyRef(s string) (StringRef, bool) {
	ref, ok := c.keyRefs[s]
	return ref, ok
}

// ValueRef is KeyRef's counterpart for tag/role values.
func (c *Catalog) ValueRef(s string) (StringRef, bool) {
	ref, ok := c.valueRefs[s]
	return ref, ok
}

// StringAt resolves a GST code back to its string.
func (c *Catalog) StringAt(code uint16) (string, bool) {
	s, ok := c.byCode[code]
	return s, ok
}

// isCanonicalNarrowNumeric reports whether s is a small, canonically
// formatted decimal integer (§4.1 step 3: "strings that encode
// canonically as narrow numeric tag values are never added" to the GST,
// so the sorter writes them to the literal-string arena like any other
// string the catalog has no ref for).
func isCanonicalNarrowNumeric(s string) bool {
	if s == "" {
		return false
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return false
	}
	if strconv.FormatInt(n, 10) != s {
		return false // rejects "+5", "007", "-0", etc.
	}
	return n >= -(1<<20) && n < (1<<20)
}

// Build consumes the Builder's accumulated counters and produces a
// Catalog, following §4.1 steps 2-4. It does not mutate the Builder, so a
// caller could in principle call Build more than once (not something the
// pipeline does, but nothing here forbids it).
func (b *Builder) Build(cfg Config) *Catalog {
	maxStrings := cfg.MaxStrings
	if maxStrings <= 0 {
		maxStrings = DefaultMaxStrings
	}
	minUsage := cfg.MinProtoStringUsage
	if minUsage == 0 {
		minUsage = DefaultMinProtoStringUsage
	}

	b.mu.Lock()
	all := make([]*Counter, 0, len(b.counters))
	for _, c := range b.counters {
		all = append(all, c)
	}
	b.mu.Unlock()

	// Step 2: keep required strings plus anything at/above the usage gate.
	proto := make([]*Counter, 0, len(all))
	for _, c := range all {
		if c.Required || c.Total() >= minUsage {
			proto = append(proto, c)
		}
	}

	indexedSet := make(map[string]bool, len(cfg.IndexedKeys))
	for _, k := range cfg.IndexedKeys {
		indexedSet[k] = true
	}
	coreSet := make(map[string]bool, len(CoreStrings))
	for _, s := range CoreStrings {
		coreSet[s] = true
	}

	gst := make([]string, 0, maxStrings)
	placed := make(map[string]bool, maxStrings)

	// Step 3a: 5 core strings.
	gst = append(gst, CoreStrings...)
	for _, s := range CoreStrings {
		placed[s] = true
	}

	// Step 3b: configured indexed keys, in order.
	for _, k := range cfg.IndexedKeys {
		if placed[k] {
			continue
		}
		gst = append(gst, k)
		placed[k] = true
	}

	remaining := make([]*Counter, 0, len(proto))
	for _, c := range proto {
		if placed[c.String] || isCanonicalNarrowNumeric(c.String) {
			continue
		}
		remaining = append(remaining, c)
	}

	// Step 3c: up to 512 most-used strings of any kind (key or value).
	sort.Slice(remaining, func(i, j int) bool {
		if remaining[i].Total() != remaining[j].Total() {
			return remaining[i].Total() > remaining[j].Total()
		}
		return remaining[i].String < remaining[j].String // deterministic tie-break
	})
	gst, remaining = takeUpTo(gst, remaining, placed, maxFrequentAnyKind, maxStrings)

	// Step 3d: up to 8K most-used keys (KeyCount > 0), among what's left.
	keysOnly := make([]*Counter, 0, len(remaining))
	for _, c := range remaining {
		if c.KeyCount > 0 {
			keysOnly = append(keysOnly, c)
		}
	}
	sort.Slice(keysOnly, func(i, j int) bool {
		if keysOnly[i].KeyCount != keysOnly[j].KeyCount {
			return keysOnly[i].KeyCount > keysOnly[j].KeyCount
		}
		return keysOnly[i].String < keysOnly[j].String
	})
	var consumed map[string]bool
	gst, consumed = takeUpToKeys(gst, keysOnly, placed, maxFrequentKeys, maxStrings)
	remaining = filterOutConsumed(remaining, consumed)

	// Step 3e: remaining strings, most-used first, up to maxStrings.
	sort.Slice(remaining, func(i, j int) bool {
		if remaining[i].Total() != remaining[j].Total() {
			return remaining[i].Total() > remaining[j].Total()
		}
		return remaining[i].String < remaining[j].String
	})
	gst, _ = takeUpTo(gst, remaining, placed, len(remaining), maxStrings)

	cat := &Catalog{
		GST:       gst,
		keyRefs:   make(map[string]StringRef, len(gst)),
		valueRefs: make(map[string]StringRef, len(gst)),
		byCode:    make(map[uint16]string, len(gst)),
	}
	for i, s := range gst {
		code := uint16(i)
		ref := NewGlobalRef(code)
		cat.keyRefs[s] = ref
		cat.valueRefs[s] = ref
		cat.byCode[code] = s
	}
	return cat
}

func takeUpTo(gst []string, candidates []*Counter, placed map[string]bool, limit, maxStrings int) ([]string, []*Counter) {
	taken := 0
	var leftover []*Counter
	for _, c := range candidates {
		if placed[c.String] {
			continue
		}
		if taken >= limit || len(gst) >= maxStrings {
			leftover = append(leftover, c)
			continue
		}
		gst = append(gst, c.String)
		placed[c.String] = true
		taken++
	}
	return gst, leftover
}

func takeUpToKeys(gst []string, candidates []*Counter, placed map[string]bool, limit, maxStrings int) ([]string, map[string]bool) {
	taken := 0
	consumed := make(map[string]bool, limit)
	for _, c := range candidates {
		if placed[c.String] {
			continue
		}
		if taken >= limit || len(gst) >= maxStrings {
			continue
		}
		gst = append(gst, c.String)
		placed[c.String] = true
		consumed[c.String] = true
		taken++
	}
	return gst, consumed
}

func filterOutConsumed(in []*Counter, consumed map[string]bool) []*Counter {
	out := in[:0]
	for _, c := range in {
		if !consumed[c.String] {
			out = append(out, c)
		}
	}
	return out
}
