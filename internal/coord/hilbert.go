package coord

// xyToHilbert converts (x, y) to a Hilbert curve index for an n x n grid.
// n must be a power of two. This is the same construction the teacher uses
// to order tile-pyramid work queues; here it backs the Tile total order
// itself, not just scheduling.
func xyToHilbert(x, y, n uint64) uint64 {
	var d uint64
	s := n / 2
	for s > 0 {
		var rx, ry uint64
		if (x & s) > 0 {
			rx = 1
		}
		if (y & s) > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		if ry == 0 {
			if rx == 1 {
				x = s*2 - 1 - x
				y = s*2 - 1 - y
			}
			x, y = y, x
		}
		s /= 2
	}
	return d
}

// hilbertToXY is the inverse of xyToHilbert: it maps a Hilbert index d on
// an n x n grid back to its cell. No other code in the module calls it.
func hilbertToXY(d, n uint64) (x, y uint64) {
	t := d
	for s := uint64(1); s < n; s *= 2 {
		rx := uint64(1) & (t / 2)
		ry := uint64(1) & (t ^ rx)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x
				y = s - 1 - y
			}
			x, y = y, x
		}
		x += s * rx
		y += s * ry
		t /= 4
	}
	return
}
