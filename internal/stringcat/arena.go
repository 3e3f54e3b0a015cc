// Package stringcat builds the Global String Table (§4.1): per-worker
// arenas count how often each distinct string appears as a tag key or tag
// value, a global aggregator merges and culls those counts, and Builder
// turns the survivors into a GST plus the lookups the sorter and
// validator/compiler need to translate between literal strings and
// proto-string codes.
package stringcat

// Counter tracks one string's usage as a tag key and/or tag value.
// Required strings (the reserved core five plus configured indexed keys)
// bypass the minimum-usage gate when the catalog is built.
type Counter struct {
	String     string
	KeyCount   uint64
	ValueCount uint64
	Required   bool
}

func (c *Counter) Total() uint64 { return c.KeyCount + c.ValueCount }

// Arena is a per-worker accumulator of string counters, keyed by string so
// repeated occurrences of the same string within one worker's block batch
// are counted in place rather than appended. Analyzer workers hold one
// Arena each and flush it into the global aggregator (Builder) when full
// or at end of input.
type Arena struct {
	counters map[string]*Counter
}

// NewArena creates an empty per-worker arena.
func NewArena() *Arena {
	return &Arena{counters: make(map[string]*Counter)}
}

// ObserveKey records one occurrence of s as a tag key.
func (a *Arena) ObserveKey(s string) {
	a.counter(s).KeyCount++
}

// ObserveValue records one occurrence of s as a tag value (or a relation
// member role, which the analyzer counts "as values", §4.5).
func (a *Arena) ObserveValue(s string) {
	a.counter(s).ValueCount++
}

func (a *Arena) counter(s string) *Counter {
	c, ok := a.counters[s]
	if !ok {
		c = &Counter{String: s}
		a.counters[s] = c
	}
	return c
}

// Len returns the number of distinct strings currently held, the
// "arena fills" signal a worker uses to decide when to flush (§4.1 step 1).
func (a *Arena) Len() int { return len(a.counters) }

// Reset clears the arena for reuse after a flush.
func (a *Arena) Reset() {
	a.counters = make(map[string]*Counter)
}

// Counters returns the arena's counters, in no particular order. Callers
// must not retain the returned Counter pointers past the next Reset.
func (a *Arena) Counters() []*Counter {
	out := make([]*Counter, 0, len(a.counters))
	for _, c := range a.counters {
		out = append(out, c)
	}
	return out
}
