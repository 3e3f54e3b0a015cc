package stringcat

import "sync"

// DefaultMinStringCount is the starting culling threshold (§4.1 step 1):
// "If the global arena fills, it culls strings whose total count is below
// min_string_count, then doubles min_string_count."
const DefaultMinStringCount = 2

// DefaultGlobalArenaCap is how many distinct strings the global aggregator
// tolerates before it culls. Planet-scale builds see millions of distinct
// strings (typos, house numbers mistagged as free text, etc.); without a
// cap the aggregator's map would grow without bound before a single cull
// pass ever ran.
const DefaultGlobalArenaCap = 4_000_000

// Builder is the global aggregator: it merges worker Arenas, culls rarely
// used strings once the merged set grows too large, and — once the input
// is exhausted — produces a Catalog.
type Builder struct {
	mu             sync.Mutex
	counters       map[string]*Counter
	minStringCount uint64
	arenaCap       int
}

// NewBuilder creates an aggregator that starts culling below
// DefaultMinStringCount once it holds more than cap distinct strings
// (pass 0 for DefaultGlobalArenaCap).
func NewBuilder(cap int) *Builder {
	if cap <= 0 {
		cap = DefaultGlobalArenaCap
	}
	return &Builder{
		counters:       make(map[string]*Counter),
		minStringCount: DefaultMinStringCount,
		arenaCap:       cap,
	}
}

// MergeArena folds one worker's Arena into the global counts. Safe for
// concurrent use by multiple analyzer workers.
func (b *Builder) MergeArena(a *Arena) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range a.Counters() {
		b.mergeLocked(c)
	}
	if len(b.counters) > b.arenaCap {
		b.cullLocked()
	}
}

// MarkRequired ensures s is present and flagged Required, bypassing the
// minimum-usage gate at Build time regardless of how often it was
// actually observed. Used for the 5 reserved core strings and every
// configured indexed key.
func (b *Builder) MarkRequired(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.counters[s]
	if !ok {
		c = &Counter{String: s}
		b.counters[s] = c
	}
	c.Required = true
}

func (b *Builder) mergeLocked(c *Counter) {
	existing, ok := b.counters[c.String]
	if !ok {
		cp := *c
		b.counters[c.String] = &cp
		return
	}
	existing.KeyCount += c.KeyCount
	existing.ValueCount += c.ValueCount
	existing.Required = existing.Required || c.Required
}

// cullLocked drops every non-required counter below minStringCount, then
// doubles minStringCount (§4.1 step 1).
func (b *Builder) cullLocked() {
	for k, c := range b.counters {
		if !c.Required && c.Total() < b.minStringCount {
			delete(b.counters, k)
		}
	}
	b.minStringCount *= 2
}

// Len returns the number of distinct strings currently retained.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.counters)
}
