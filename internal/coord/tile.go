package coord

import "sort"

// Tile is a triple (zoom, column, row). The builder only ever works with
// zooms 0 through 12; Column and Row each range over [0, 2^zoom).
type Tile struct {
	Zoom        int
	Column, Row uint32
}

// signBit flips the sign bit of a two's-complement int32 so that ordinary
// unsigned comparison on the result matches signed comparison on the
// original value. It is its own inverse.
func signBit(v int32) uint32 {
	return uint32(v) ^ 0x80000000
}

func unsignBit(v uint32) int32 {
	return int32(v ^ 0x80000000)
}

// span returns the width, in projected-coordinate units, of one tile at the
// given zoom level. zoom 0 spans the entire 2^32 coordinate range.
func span(zoom int) uint64 {
	return uint64(1) << uint(32-zoom)
}

// TileAt returns the tile at the given zoom level containing c.
func TileAt(zoom int, c Coordinate) Tile {
	ux, uy := uint64(signBit(c.X)), uint64(signBit(c.Y))
	s := span(zoom)
	return Tile{Zoom: zoom, Column: uint32(ux / s), Row: uint32(uy / s)}
}

// Cell12 is the zoom-12 node-count grid cell containing c, as used by the
// analyzer's dense 4096x4096 counter table.
func Cell12(c Coordinate) (col, row uint32) {
	t := TileAt(12, c)
	return t.Column, t.Row
}

// Bounds returns the coordinate-space bounding box of t.
func (t Tile) Bounds() Bounds {
	s := span(t.Zoom)
	minXu := uint64(t.Column) * s
	minYu := uint64(t.Row) * s
	maxXu := minXu + s - 1
	maxYu := minYu + s - 1
	return Bounds{
		MinX: unsignBit(uint32(minXu)),
		MinY: unsignBit(uint32(minYu)),
		MaxX: unsignBit(uint32(maxXu)),
		MaxY: unsignBit(uint32(maxYu)),
	}
}

// Parent returns the ancestor of t at the given (coarser) zoom level.
// Parent panics if parentZoom > t.Zoom, which would not be an ancestor.
func (t Tile) Parent(parentZoom int) Tile {
	if parentZoom > t.Zoom {
		panic("coord: Parent zoom must be <= tile zoom")
	}
	shift := uint(t.Zoom - parentZoom)
	return Tile{Zoom: parentZoom, Column: t.Column >> shift, Row: t.Row >> shift}
}

// Hilbert returns t's position on the Hilbert curve at its own zoom level.
// Combined with Zoom, this gives the Tile total order required by §3: tiles
// are ordered first by zoom, then by Hilbert index within that zoom.
func (t Tile) Hilbert() uint64 {
	n := uint64(1) << uint(t.Zoom)
	return xyToHilbert(uint64(t.Column), uint64(t.Row), n)
}

// Less implements the Tile total order: by zoom, then by Hilbert index.
func (t Tile) Less(other Tile) bool {
	if t.Zoom != other.Zoom {
		return t.Zoom < other.Zoom
	}
	return t.Hilbert() < other.Hilbert()
}

// DefaultZoomLevels is the tile pyramid used when no --levels option is
// given: zooms 0, 2, 4, 6, 8, 10, 12.
var DefaultZoomLevels = []int{0, 2, 4, 6, 8, 10, 12}

// ParentZoomOf returns the nearest configured zoom level that is strictly
// less than z (the deepest such level), i.e. the zoom a tile pair normalizes to when it is not yet
// catalogued at z. levels must be sorted ascending. If z is already at or
// below the coarsest configured level, that level is returned unchanged —
// there is nowhere coarser to go.
func ParentZoomOf(levels []int, z int) int {
	best := levels[0]
	for _, lv := range levels {
		if lv < z {
			best = lv
		}
	}
	return best
}

// IsConfiguredZoom reports whether z appears in levels.
func IsConfiguredZoom(levels []int, z int) bool {
	for _, lv := range levels {
		if lv == z {
			return true
		}
	}
	return false
}

// SortTilesByHilbert sorts tiles in place by the Tile total order (zoom,
// then Hilbert index). Unlike the teacher's SortTilesByHilbert, which
// assumed a single zoom level per call, this accepts a mixed-zoom slice
// because the tile catalog, export tables, and pile numbering all need a
// stable order across the whole pyramid.
func SortTilesByHilbert(tiles []Tile) {
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].Less(tiles[j]) })
}
