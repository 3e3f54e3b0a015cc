package stringcat

import "testing"

func TestBuilder_MergeArena_AccumulatesCounts(t *testing.T) {
	b := NewBuilder(0)
	a1 := NewArena()
	a1.ObserveKey("highway")
	b.MergeArena(a1)

	a2 := NewArena()
	a2.ObserveKey("highway")
	b.MergeArena(a2)

	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
}

func TestBuilder_CullsBelowThresholdWhenOverCap(t *testing.T) {
	b := NewBuilder(2) // tiny cap to force a cull pass quickly
	for i := 0; i < 3; i++ {
		a := NewArena()
		a.ObserveValue(string(rune('a' + i)))
		b.MergeArena(a)
	}
	if b.Len() > 2 {
		t.Errorf("Len() = %d after cull, want <= 2 (cap)", b.Len())
	}
}

func TestBuilder_MarkRequired_SurvivesCull(t *testing.T) {
	b := NewBuilder(1)
	b.MarkRequired("keep_me")
	a := NewArena()
	a.ObserveValue("noise")
	b.MergeArena(a)

	cat := b.Build(Config{MinProtoStringUsage: 1000})
	found := false
	for _, s := range cat.GST {
		if s == "keep_me" {
			found = true
		}
	}
	if !found {
		t.Error("required string did not survive culling")
	}
}
