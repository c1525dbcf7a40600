package coord

import (
	"image"
	"sort"
)

// HilbertIndex converts (x, y) to its position on the Hilbert curve that
// fills an n×n grid. n must be a power of two.
func HilbertIndex(x, y, n uint64) uint64 {
	var d uint64
	for s := n / 2; s > 0; s /= 2 {
		var rx, ry uint64
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
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
	}
	return d
}

// SortByHilbert orders tile addresses (X = col, Y = row) of one pyramid
// level along the Hilbert curve, so neighbouring jobs touch neighbouring
// children and the read cache stays warm.
func SortByHilbert(level int, tiles []image.Point) {
	if len(tiles) <= 1 {
		return
	}
	n := uint64(1) << uint(level)

	// Compute each index once instead of on every comparison.
	indices := make([]uint64, len(tiles))
	for i, t := range tiles {
		indices[i] = HilbertIndex(uint64(t.X), uint64(t.Y), n)
	}
	sort.Sort(hilbertSorter{tiles: tiles, indices: indices})
}

type hilbertSorter struct {
	tiles   []image.Point
	indices []uint64
}

func (s hilbertSorter) Len() int           { return len(s.tiles) }
func (s hilbertSorter) Less(i, j int) bool { return s.indices[i] < s.indices[j] }
func (s hilbertSorter) Swap(i, j int) {
	s.tiles[i], s.tiles[j] = s.tiles[j], s.tiles[i]
	s.indices[i], s.indices[j] = s.indices[j], s.indices[i]
}

// HilbertPoint is the inverse of HilbertIndex.
func HilbertPoint(d, n uint64) (x, y uint64) {
	for s := uint64(1); s < n; s *= 2 {
		rx := 1 & (d / 2)
		ry := 1 & (d ^ rx)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x
				y = s - 1 - y
			}
			x, y = y, x
		}
		x += s * rx
		y += s * ry
		d /= 4
	}
	return x, y
}
