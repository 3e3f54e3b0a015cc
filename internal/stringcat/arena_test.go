package stringcat

import "testing"

func TestArena_ObserveKeyAndValue(t *testing.T) {
	a := NewArena()
	a.ObserveKey("highway")
	a.ObserveKey("highway")
	a.ObserveValue("unclassified")

	counters := a.Counters()
	byString := make(map[string]*Counter, len(counters))
	for _, c := range counters {
		byString[c.String] = c
	}

	if byString["highway"].KeyCount != 2 {
		t.Errorf("highway KeyCount = %d, want 2", byString["highway"].KeyCount)
	}
	if byString["unclassified"].ValueCount != 1 {
		t.Errorf("unclassified ValueCount = %d, want 1", byString["unclassified"].ValueCount)
	}
}

func TestArena_Reset(t *testing.T) {
	a := NewArena()
	a.ObserveKey("foo")
	if a.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", a.Len())
	}
	a.Reset()
	if a.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", a.Len())
	}
}

func TestCounter_Total(t *testing.T) {
	c := &Counter{KeyCount: 3, ValueCount: 4}
	if c.Total() != 7 {
		t.Errorf("Total() = %d, want 7", c.Total())
	}
}
