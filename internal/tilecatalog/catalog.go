package tilecatalog

import (
	"github.com/geodesk/golbuild/internal/buildutil"
	"github.com/geodesk/golbuild/internal/coord"
)

// Defaults mirror BuildSettings' compiled-in values: a pyramid capped at
// 65535 tiles, and a subtree collapsed to its parent zoom once its
// aggregate node count drops below 75000.
const (
	DefaultMinTileDensity = 75_000
	DefaultMaxTiles       = (1 << 16) - 1
)

// Config controls how Build turns a NodeCountGrid into a Catalog.
type Config struct {
	// ZoomLevels is the configured tile pyramid. Zero means
	// coord.DefaultZoomLevels ({0,2,4,6,8,10,12}).
	ZoomLevels buildutil.ZoomLevels
	// MinTileDensity is the minimum aggregate node count a subtree needs
	// to be split further rather than collapsed to its parent zoom. Zero
	// means DefaultMinTileDensity.
	MinTileDensity uint64
	// MaxTiles caps the pyramid's total tile count. Zero or negative
	// means DefaultMaxTiles.
	MaxTiles int
}

// Catalog is the finished tile pyramid: which tiles exist, their 1-based
// pile numbers, and the lookups the sorter/validator/compiler need to
// place a feature into one or two piles (§4.2).
type Catalog struct {
	zoomLevels buildutil.ZoomLevels
	tileToPile map[coord.Tile]coord.Pile
	pileToTile []coord.Tile // 1-based; index 0 is unused
	cellToPile []coord.Pile // GridSize*GridSize, zoom-12 cell grid
}

// Build subdivides the world recursively, starting from the coarsest
// configured zoom level, descending through each subsequent configured
// level as long as a subtree's node density clears MinTileDensity and the
// tile budget isn't exhausted. The resulting leaves are sorted into the
// Tile total order (zoom, then Hilbert index) and numbered 1..N; pile 0
// stays reserved for "absent".
func Build(grid *NodeCountGrid, cfg Config) *Catalog {
	zoomLevels := cfg.ZoomLevels
	if zoomLevels == 0 {
		zoomLevels, _ = buildutil.NewZoomLevels(coord.DefaultZoomLevels...)
	}
	minDensity := cfg.MinTileDensity
	if minDensity == 0 {
		minDensity = DefaultMinTileDensity
	}
	maxTiles := cfg.MaxTiles
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}

	sat := BuildSAT(grid)
	zoomList := zoomLevels.Levels()

	var leaves []coord.Tile
	// planned counts every tile the pyramid will end up with so far:
	// finished leaves plus tiles still waiting to be subdivided.
	var planned int
	var subdivide func(t coord.Tile)
	subdivide = func(t coord.Tile) {
		side := uint32(GridSize >> uint(t.Zoom))
		col0, row0 := t.Column*side, t.Row*side
		density := sat.RectSum(col0, row0, col0+side, row0+side)

		nextZoom, hasNext := nextConfiguredZoom(zoomList, t.Zoom)
		if !hasNext || density < minDensity {
			leaves = append(leaves, t)
			return
		}

		delta := uint(nextZoom - t.Zoom)
		n := uint32(1) << delta
		childCount := int(n) * int(n)
		if planned-1+childCount > maxTiles {
			// Splitting would blow the tile budget; keep t as a leaf
			// instead of only partially expanding it.
			leaves = append(leaves, t)
			return
		}
		planned += childCount - 1

		for dr := uint32(0); dr < n; dr++ {
			for dc := uint32(0); dc < n; dc++ {
				subdivide(coord.Tile{
					Zoom:   nextZoom,
					Column: t.Column*n + dc,
					Row:    t.Row*n + dr,
				})
			}
		}
	}

	z0 := zoomList[0]
	n0 := uint32(1) << uint(z0)
	planned = int(n0) * int(n0)
	for r := uint32(0); r < n0; r++ {
		for c := uint32(0); c < n0; c++ {
			subdivide(coord.Tile{Zoom: z0, Column: c, Row: r})
		}
	}

	coord.SortTilesByHilbert(leaves)

	cat := &Catalog{
		zoomLevels: zoomLevels,
		tileToPile: make(map[coord.Tile]coord.Pile, len(leaves)),
		pileToTile: make([]coord.Tile, len(leaves)+1),
		cellToPile: make([]coord.Pile, GridSize*GridSize),
	}
	for i, t := range leaves {
		pile := coord.Pile(i + 1)
		cat.tileToPile[t] = pile
		cat.pileToTile[pile] = t
		cat.fillCells(t, pile)
	}
	return cat
}

func nextConfiguredZoom(zoomList []int, zoom int) (int, bool) {
	for _, z := range zoomList {
		if z > zoom {
			return z, true
		}
	}
	return 0, false
}

func (c *Catalog) fillCells(t coord.Tile, pile coord.Pile) {
	side := uint32(GridSize >> uint(t.Zoom))
	col0, row0 := t.Column*side, t.Row*side
	for r := row0; r < row0+side; r++ {
		base := int(r) * GridSize
		for col := col0; col < col0+side; col++ {
			c.cellToPile[base+int(col)] = pile
		}
	}
}

// TileCount returns the number of catalogued tiles (N, with piles 1..N).
func (c *Catalog) TileCount() int { return len(c.pileToTile) - 1 }

// ZoomLevels returns the configured pyramid this catalog was built with.
func (c *Catalog) ZoomLevels() buildutil.ZoomLevels { return c.zoomLevels }

// Tiles returns every catalogued tile, in pile order (pile 1 first).
func (c *Catalog) Tiles() []coord.Tile {
	if len(c.pileToTile) == 0 {
		return nil
	}
	return c.pileToTile[1:]
}

// PileOfTile returns t's pile, or PileAbsent if t was never catalogued
// (either it fell below the density cutoff or isn't a leaf).
func (c *Catalog) PileOfTile(t coord.Tile) coord.Pile {
	return c.tileToPile[t]
}

// TileOfPile inverts PileOfTile. p must be a valid, in-range pile.
func (c *Catalog) TileOfPile(p coord.Pile) coord.Tile {
	return c.pileToTile[p]
}

// PileOfTileOrParent climbs from t towards coarser configured zooms until
// it finds a catalogued ancestor, returning PileAbsent only if even the
// coarsest configured zoom has no pile covering t.
func (c *Catalog) PileOfTileOrParent(t coord.Tile) coord.Pile {
	zoomList := c.zoomLevels.Levels()
	zoom, cur := t.Zoom, t
	for {
		if p := c.tileToPile[cur]; p.Valid() {
			return p
		}
		if zoom <= zoomList[0] {
			return coord.PileAbsent
		}
		zoom = coord.ParentZoomOf(zoomList, zoom)
		cur = t.Parent(zoom)
	}
}

// PileOfCoordinate resolves a coordinate to its pile in O(1), via the
// zoom-12 cell grid built during Build.
func (c *Catalog) PileOfCoordinate(xy coord.Coordinate) coord.Pile {
	col, row := coord.Cell12(xy)
	return c.cellToPile[cellIndex(col, row)]
}

// PilePairOfTilePair packs pair's primary pile and twin direction into a
// PilePair. Only pair.A is looked up; pair.A is always catalogued once
// NormalizeTilePair has run, since normalization guarantees both tiles of
// the returned pair share a catalogued zoom.
func (c *Catalog) PilePairOfTilePair(pair coord.TilePair) coord.PilePair {
	p := c.PileOfTile(pair.A)
	if !p.Valid() {
		return coord.PilePair(0)
	}
	return coord.NewPilePair(p, pair.Dir)
}

// TilePairOfPilePair reverses PilePairOfTilePair: it recovers the tile pair
// a PilePair was built from, using only A's pile and the packed direction.
func (c *Catalog) TilePairOfPilePair(pp coord.PilePair) coord.TilePair {
	a := c.TileOfPile(pp.Pile())
	dir := pp.Dir()
	b := a.Neighbor(dir)
	if dir == coord.TwinNone {
		return coord.SingleTile(a)
	}
	return coord.TilePair{A: a, B: b, Dir: dir}
}

// NormalizeTilePair reduces pair to the first zoom, at or below its own,
// at which both tiles are catalogued.
func (c *Catalog) NormalizeTilePair(pair coord.TilePair) coord.TilePair {
	zoomList := c.zoomLevels.Levels()
	return coord.NormalizeTilePair(pair, zoomList, func(t coord.Tile) bool {
		return c.tileToPile[t].Valid()
	})
}
