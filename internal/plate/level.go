// Package plate places georeferenced imagery into a Plate Carrée tile
// pyramid and maintains the pyramid's coarser levels.
//
// Level L of the pyramid is a tileSize·2^L pixel square spanning 360° of
// longitude and 360° of Y, from +180 at the top row to −180 at the bottom;
// only the middle half of the rows carries data. Level 0 is a single tile.
package plate

import (
	"image"
	"math"
	"math/bits"

	"github.com/pspoerri/platepyramid/internal/georef"
)

// MaxLevel is the deepest level addressable in a store.
const MaxLevel = 30

// GeoreferenceForLevel returns the reference shared by every tile of level.
// The result depends only on (level, tileSize).
func GeoreferenceForLevel(level, tileSize int) georef.GeoReference {
	scale := 360 / (float64(tileSize) * math.Exp2(float64(level)))
	return georef.New().WithTransform(georef.Matrix3x3{
		{scale, 0, -180},
		{0, -scale, 180},
		{0, 0, 1},
	})
}

// LevelForResolution maps a resolution in pixels per 360° to the coarsest
// level at least that fine: ceil(log2(res)) − log2(tileSize), never below 0.
// tileSize must be a power of two.
func LevelForResolution(res float64, tileSize int) int {
	level := int(math.Ceil(math.Log2(res))) - bits.TrailingZeros(uint(tileSize))
	if level < 0 {
		return 0
	}
	return level
}

// levelPixels is the pixel extent of one axis of level.
func levelPixels(level, tileSize int) int {
	return tileSize << uint(level)
}

// tileRect is the pixel rectangle of tile (col, row) in its level.
func tileRect(col, row, tileSize int) image.Rectangle {
	return image.Rect(col*tileSize, row*tileSize, (col+1)*tileSize, (row+1)*tileSize)
}

// tilesCovering returns the tiles of level touching the pixel rectangle r,
// clipped to the level's grid.
func tilesCovering(r image.Rectangle, level, tileSize int) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	n := 1 << uint(level)
	tr := image.Rect(
		floorDiv(r.Min.X, tileSize), floorDiv(r.Min.Y, tileSize),
		floorDiv(r.Max.X-1, tileSize)+1, floorDiv(r.Max.Y-1, tileSize)+1,
	)
	return tr.Intersect(image.Rect(0, 0, n, n))
}

// parentRegion is the tile region one level up covering r.
func parentRegion(r image.Rectangle) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(floorDiv(r.Min.X, 2), floorDiv(r.Min.Y, 2), (r.Max.X+1)/2, (r.Max.Y+1)/2)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
