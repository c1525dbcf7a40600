package coord

import (
	"image"
	"math"

	"github.com/paulmach/orb"
)

// The pyramid grid spans 360° in both axes: X runs over [-180, 180] and Y
// over [180, -180], so only the middle half of the rows carries latitudes.
const (
	gridMinX = -180.0
	gridMaxY = 180.0
	gridSpan = 360.0
)

// TileBound returns the lon/lat extent of a pyramid tile, with latitudes
// clipped to [-90, 90]. Tiles entirely outside the latitude range return an
// empty bound at the nearest pole.
func TileBound(level, col, row int) orb.Bound {
	span := gridSpan / float64(int64(1)<<uint(level))
	minX := gridMinX + float64(col)*span
	maxY := gridMaxY - float64(row)*span
	return orb.Bound{
		Min: orb.Point{minX, clampLat(maxY - span)},
		Max: orb.Point{minX + span, clampLat(maxY)},
	}
}

// TileRange returns the tiles of a level that intersect b, as a rectangle in
// (col, row) space clipped to the level's grid.
func TileRange(level int, b orb.Bound) image.Rectangle {
	n := 1 << uint(level)
	span := gridSpan / float64(n)
	minCol := int(math.Floor((b.Min[0] - gridMinX) / span))
	maxCol := int(math.Ceil((b.Max[0] - gridMinX) / span))
	minRow := int(math.Floor((gridMaxY - b.Max[1]) / span))
	maxRow := int(math.Ceil((gridMaxY - b.Min[1]) / span))
	if maxCol == minCol {
		maxCol++
	}
	if maxRow == minRow {
		maxRow++
	}
	return image.Rect(minCol, minRow, maxCol, maxRow).Intersect(image.Rect(0, 0, n, n))
}

func clampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}
