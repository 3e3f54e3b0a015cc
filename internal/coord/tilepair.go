package coord

// TwinDirection encodes the edge-neighbor relationship of a TilePair: the
// low two bits of a PilePair. 0 means "no twin, single tile".
type TwinDirection uint8

const (
	TwinNone TwinDirection = 0
	TwinN    TwinDirection = 1
	TwinW    TwinDirection = 2
	TwinS    TwinDirection = 3
	TwinE    TwinDirection = 4
)

func (d TwinDirection) String() string {
	switch d {
	case TwinNone:
		return "none"
	case TwinN:
		return "N"
	case TwinW:
		return "W"
	case TwinS:
		return "S"
	case TwinE:
		return "E"
	default:
		return "?"
	}
}

// Opposite returns the direction the twin tile would use to name this one.
func (d TwinDirection) Opposite() TwinDirection {
	switch d {
	case TwinN:
		return TwinS
	case TwinS:
		return TwinN
	case TwinE:
		return TwinW
	case TwinW:
		return TwinE
	default:
		return TwinNone
	}
}

// TilePair is an ordered pair of tiles at the same zoom whose union forms a
// 1x2 or 2x1 rectangle, or a degenerate single-tile pair when a feature
// fits in one tile. A is always the west (or north) tile of the two; Dir
// names B's position relative to A (E or S).
type TilePair struct {
	A, B Tile
	Dir  TwinDirection
}

// SingleTile returns the degenerate pair naming just t.
func SingleTile(t Tile) TilePair {
	return TilePair{A: t, B: t, Dir: TwinNone}
}

// IsSingle reports whether p names only one tile.
func (p TilePair) IsSingle() bool {
	return p.Dir == TwinNone
}

// NewTilePair builds the pair for two edge-adjacent tiles at the same zoom,
// ordering them so A precedes B and Dir names B relative to A. It panics if
// a and b are not the same zoom and edge-adjacent, which would indicate a
// bug in the caller's tile-pair construction rather than a recoverable
// condition.
func NewTilePair(a, b Tile) TilePair {
	if a == b {
		return SingleTile(a)
	}
	if a.Zoom != b.Zoom {
		panic("coord: tile pair members must share a zoom level")
	}
	dc := int64(b.Column) - int64(a.Column)
	dr := int64(b.Row) - int64(a.Row)
	switch {
	case dc == 1 && dr == 0:
		return TilePair{A: a, B: b, Dir: TwinE}
	case dc == -1 && dr == 0:
		return TilePair{A: b, B: a, Dir: TwinE}
	case dr == 1 && dc == 0:
		return TilePair{A: a, B: b, Dir: TwinS}
	case dr == -1 && dc == 0:
		return TilePair{A: b, B: a, Dir: TwinS}
	default:
		panic("coord: tile pair members must be edge-adjacent")
	}
}

// Neighbor returns the tile adjacent to t in the given direction, at t's
// own zoom. TwinNone returns t itself. Only E and S are meaningful since a
// canonicalized TilePair never names N or W (NewTilePair always orders its
// tiles so the second lies east or south of the first).
func (t Tile) Neighbor(dir TwinDirection) Tile {
	switch dir {
	case TwinE:
		return Tile{Zoom: t.Zoom, Column: t.Column + 1, Row: t.Row}
	case TwinS:
		return Tile{Zoom: t.Zoom, Column: t.Column, Row: t.Row + 1}
	default:
		return t
	}
}

// Bounds returns the union of both tiles' coordinate bounds.
func (p TilePair) Bounds() Bounds {
	return p.A.Bounds().Union(p.B.Bounds())
}

// CombineTilePairs returns the smallest tile pair that covers both a and
// b, zooming out as needed until the two pairs' ancestor tiles collapse
// to one tile or a single edge-adjacent pair. Used by the relation sorter
// and the super-relation resolver to accumulate a tile pair across
// several members, each already reduced to its own pair.
func CombineTilePairs(a, b TilePair) TilePair {
	zoom := a.A.Zoom
	if b.A.Zoom < zoom {
		zoom = b.A.Zoom
	}
	for {
		tiles := uniqueTiles(a.A.Parent(zoom), a.B.Parent(zoom), b.A.Parent(zoom), b.B.Parent(zoom))
		switch len(tiles) {
		case 1:
			return SingleTile(tiles[0])
		case 2:
			if pair, ok := tryTilePair(tiles[0], tiles[1]); ok {
				return pair
			}
		}
		if zoom == 0 {
			// No common pair exists even at zoom 0: fall back to the
			// world tile, which covers everything.
			return SingleTile(Tile{Zoom: 0})
		}
		zoom--
	}
}

func uniqueTiles(ts ...Tile) []Tile {
	var out []Tile
	for _, t := range ts {
		found := false
		for _, u := range out {
			if u == t {
				found = true
				break
			}
		}
		if !found {
			out = append(out, t)
		}
	}
	return out
}

// tryTilePair is NewTilePair without the panic: it reports false instead
// of panicking when a and b aren't edge-adjacent at the same zoom.
func tryTilePair(a, b Tile) (TilePair, bool) {
	if a == b {
		return SingleTile(a), true
	}
	if a.Zoom != b.Zoom {
		return TilePair{}, false
	}
	dc := int64(b.Column) - int64(a.Column)
	dr := int64(b.Row) - int64(a.Row)
	switch {
	case dc == 1 && dr == 0:
		return TilePair{A: a, B: b, Dir: TwinE}, true
	case dc == -1 && dr == 0:
		return TilePair{A: b, B: a, Dir: TwinE}, true
	case dr == 1 && dc == 0:
		return TilePair{A: a, B: b, Dir: TwinS}, true
	case dr == -1 && dc == 0:
		return TilePair{A: b, B: a, Dir: TwinS}, true
	default:
		return TilePair{}, false
	}
}

// NormalizeTilePair reduces a pair to the first zoom, at or below the
// pair's own, at which both tiles' ancestors are present in the given
// catalog lookup. lookup reports false for a tile not yet catalogued. This is the tile-catalog operation named in §4.2;
// it lives here because it only needs Tile arithmetic, not the rest of the
// catalog's state.
func NormalizeTilePair(p TilePair, zoomLevels []int, lookup func(Tile) bool) TilePair {
	zoom := p.A.Zoom
	a, b := p.A, p.B
	for zoom > 0 && !(lookup(a) && lookup(b)) {
		zoom = ParentZoomOf(zoomLevels, zoom)
		a = p.A.Parent(zoom)
		b = p.B.Parent(zoom)
		if a == b {
			return SingleTile(a)
		}
	}
	return NewTilePair(a, b)
}
