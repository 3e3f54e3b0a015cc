package coord

import "testing"

func TestNewTilePair_OrdersTilesAndNamesDirection(t *testing.T) {
	a := Tile{Zoom: 4, Column: 3, Row: 3}
	east := Tile{Zoom: 4, Column: 4, Row: 3}

	p := NewTilePair(a, east)
	if p.A != a || p.B != east || p.Dir != TwinE {
		t.Errorf("NewTilePair(a,east) = %+v, want A=a B=east Dir=TwinE", p)
	}

	// Same inputs, reversed order, should produce the same pair.
	p2 := NewTilePair(east, a)
	if p2 != p {
		t.Errorf("NewTilePair(east,a) = %+v, want %+v", p2, p)
	}
}

func TestNewTilePair_SameTileIsSingle(t *testing.T) {
	a := Tile{Zoom: 2, Column: 1, Row: 1}
	p := NewTilePair(a, a)
	if !p.IsSingle() {
		t.Errorf("NewTilePair(a,a) should be single")
	}
}

func TestTile_NeighborRoundTripsWithNewTilePair(t *testing.T) {
	a := Tile{Zoom: 6, Column: 10, Row: 20}
	for _, dir := range []TwinDirection{TwinE, TwinS} {
		b := a.Neighbor(dir)
		p := NewTilePair(a, b)
		if p.Dir != dir {
			t.Errorf("Neighbor(%v) then NewTilePair gave Dir=%v", dir, p.Dir)
		}
	}
}

func TestCombineTilePairs_SameTileCollapsesToSingle(t *testing.T) {
	a := SingleTile(Tile{Zoom: 5, Column: 2, Row: 2})
	got := CombineTilePairs(a, a)
	if !got.IsSingle() || got.A != a.A {
		t.Errorf("CombineTilePairs(a,a) = %+v, want single %+v", got, a.A)
	}
}

func TestCombineTilePairs_AdjacentTilesFormAPair(t *testing.T) {
	a := SingleTile(Tile{Zoom: 5, Column: 2, Row: 2})
	b := SingleTile(Tile{Zoom: 5, Column: 3, Row: 2})
	got := CombineTilePairs(a, b)
	if got.IsSingle() {
		t.Fatalf("CombineTilePairs(a,b) = %+v, want a 2-tile pair", got)
	}
	if got.Dir != TwinE {
		t.Errorf("Dir = %v, want TwinE", got.Dir)
	}
}

func TestCombineTilePairs_DistantTilesZoomOutToCommonAncestor(t *testing.T) {
	a := SingleTile(Tile{Zoom: 8, Column: 0, Row: 0})
	b := SingleTile(Tile{Zoom: 8, Column: 255, Row: 255})
	got := CombineTilePairs(a, b)
	if got.A.Zoom != 0 {
		t.Errorf("CombineTilePairs of far-apart tiles should zoom out to 0, got zoom %d", got.A.Zoom)
	}
}
