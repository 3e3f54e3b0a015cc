// Package tilecatalog builds and queries the tile pyramid a GOL build
// assigns to its features: which zoom levels get their own tiles, how many
// tiles exist, and the mapping between a tile, its 1-based pile number, and
// the coordinates that fall inside it (§4.2 "Tile Catalog & Tile Index").
package tilecatalog

// GridSize is the side length of the zoom-12 node-count grid: one cell per
// zoom-12 tile column/row (§3 "Node-count grid").
const GridSize = 1 << 12

// NodeCountGrid is a dense GridSize x GridSize counter table accumulating
// the number of nodes seen in each zoom-12 cell. The analyzer gives each
// worker its own grid so workers never contend on a shared counter; Merge
// folds a worker's grid into the aggregate once it finishes a batch.
type NodeCountGrid struct {
	counts []uint32 // row-major, GridSize*GridSize
}

// NewNodeCountGrid allocates a zeroed grid.
func NewNodeCountGrid() *NodeCountGrid {
	return &NodeCountGrid{counts: make([]uint32, GridSize*GridSize)}
}

func cellIndex(col, row uint32) int {
	return int(row)*GridSize + int(col)
}

// Increment adds one node observation to the cell at (col, row).
func (g *NodeCountGrid) Increment(col, row uint32) {
	g.counts[cellIndex(col, row)]++
}

// Count returns the accumulated node count of a single cell.
func (g *NodeCountGrid) Count(col, row uint32) uint32 {
	return g.counts[cellIndex(col, row)]
}

// Merge adds other's counts into g, cell by cell. g and other must have
// been built with NewNodeCountGrid (same size).
func (g *NodeCountGrid) Merge(other *NodeCountGrid) {
	for i, c := range other.counts {
		g.counts[i] += c
	}
}

// SAT is a summed-area table (integral image) over a NodeCountGrid. It
// turns the rectangle-density queries the catalog builder runs at every
// candidate tile, at every configured zoom level, into O(1) lookups
// instead of an O(cells) scan.
type SAT struct {
	sums []uint64 // (GridSize+1) x (GridSize+1)
}

// BuildSAT computes the summed-area table of g. This is the one O(cells)
// pass the catalog builder makes over the grid; every density query after
// that is four array reads.
func BuildSAT(g *NodeCountGrid) *SAT {
	stride := GridSize + 1
	sums := make([]uint64, stride*stride)
	for r := 0; r < GridSize; r++ {
		var rowSum uint64
		rowBase := r * GridSize
		curBase := (r + 1) * stride
		prevBase := r * stride
		for c := 0; c < GridSize; c++ {
			rowSum += uint64(g.counts[rowBase+c])
			sums[curBase+c+1] = sums[prevBase+c+1] + rowSum
		}
	}
	return &SAT{sums: sums}
}

// RectSum returns the total node count over the half-open cell rectangle
// [col0,col1) x [row0,row1).
func (s *SAT) RectSum(col0, row0, col1, row1 uint32) uint64 {
	stride := GridSize + 1
	a := s.sums[int(row1)*stride+int(col1)]
	b := s.sums[int(row0)*stride+int(col1)]
	c := s.sums[int(row1)*stride+int(col0)]
	d := s.sums[int(row0)*stride+int(col0)]
	return a - b - c + d
}
