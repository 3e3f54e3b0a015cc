package coord

import "testing"

func TestTypedFeatureId_RoundTrip(t *testing.T) {
	cases := []struct {
		id int64
		ty FeatureType
	}{
		{1, FeatureNode},
		{42, FeatureWay},
		{1 << 40, FeatureRelation},
	}
	for _, c := range cases {
		f := NewTypedFeatureId(c.id, c.ty)
		if f.ID() != c.id {
			t.Errorf("ID() = %d, want %d", f.ID(), c.id)
		}
		if f.Type() != c.ty {
			t.Errorf("Type() = %v, want %v", f.Type(), c.ty)
		}
	}
}

func TestPile_Absent(t *testing.T) {
	if PileAbsent.Valid() {
		t.Error("PileAbsent should not be valid")
	}
	if !Pile(1).Valid() {
		t.Error("pile 1 should be valid")
	}
}

func TestPilePair_RoundTrip(t *testing.T) {
	pp := NewPilePair(Pile(7), TwinE)
	if pp.Pile() != 7 {
		t.Errorf("Pile() = %d, want 7", pp.Pile())
	}
	if pp.Dir() != TwinE {
		t.Errorf("Dir() = %v, want TwinE", pp.Dir())
	}
	if pp.IsSingle() {
		t.Error("a pair with TwinE should not be single")
	}

	single := NewPilePair(Pile(3), TwinNone)
	if !single.IsSingle() {
		t.Error("a pair with TwinNone should be single")
	}
}

func TestTwinDirection_Opposite(t *testing.T) {
	pairs := []struct{ d, want TwinDirection }{
		{TwinN, TwinS},
		{TwinS, TwinN},
		{TwinE, TwinW},
		{TwinW, TwinE},
		{TwinNone, TwinNone},
	}
	for _, p := range pairs {
		if got := p.d.Opposite(); got != p.want {
			t.Errorf("%v.Opposite() = %v, want %v", p.d, got, p.want)
		}
	}
}
