package georef

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pspoerri/platepyramid/internal/coord"
)

// MaxResolution caps LocalResolution. Degenerate Jacobians (a point mapping
// to the same output pixel in both directions) would otherwise yield +Inf.
const MaxResolution = 1 << 30

// bboxEpsilon absorbs rounding in the forward mapping so that a source edge
// landing exactly on a destination pixel edge does not grow the box.
const bboxEpsilon = 1e-6

// bboxSamples is the number of steps taken along each edge and center line
// of a source rectangle when estimating its forward footprint.
const bboxSamples = 256

// GeoTransform maps pixels of a source reference to pixels of a destination
// reference. Datums are not compared: both sides are assumed to share one
// ellipsoid.
type GeoTransform struct {
	src, dst         GeoReference
	srcProj, dstProj coord.Projection
	sameCRS          bool
}

// NewGeoTransform resolves both projections. An unparseable proj4 string
// fails with an error wrapping coord.ErrUnknownProjection.
func NewGeoTransform(src, dst GeoReference) (*GeoTransform, error) {
	t := &GeoTransform{src: src, dst: dst}
	if src.Proj4() == dst.Proj4() || (src.IsLonLat() && dst.IsLonLat()) {
		t.sameCRS = true
		return t, nil
	}
	var err error
	if t.srcProj, err = coord.Parse(src.Proj4()); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if t.dstProj, err = coord.Parse(dst.Proj4()); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	return t, nil
}

func (t *GeoTransform) Source() GeoReference      { return t.src }
func (t *GeoTransform) Destination() GeoReference { return t.dst }

// Forward maps a source pixel to a destination pixel.
func (t *GeoTransform) Forward(px, py float64) (float64, float64) {
	x, y := t.src.PixelToPoint(px, py)
	if !t.sameCRS {
		x, y = t.dstProj.FromWGS84(t.srcProj.ToWGS84(x, y))
	}
	return t.dst.PointToPixel(x, y)
}

// Reverse maps a destination pixel back to a source pixel.
func (t *GeoTransform) Reverse(px, py float64) (float64, float64) {
	x, y := t.dst.PixelToPoint(px, py)
	if !t.sameCRS {
		x, y = t.srcProj.FromWGS84(t.dstProj.ToWGS84(x, y))
	}
	return t.src.PointToPixel(x, y)
}

// ForwardBBox returns the destination pixels covered by the source pixels in
// r. The outline of r (pixel edges, not centers) and its two center lines are
// sampled; points that fail to project are ignored. The result is empty if
// none project.
func (t *GeoTransform) ForwardBBox(r image.Rectangle) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	x0, y0 := float64(r.Min.X)-0.5, float64(r.Min.Y)-0.5
	x1, y1 := float64(r.Max.X)-0.5, float64(r.Max.Y)-0.5
	xm, ym := (x0+x1)/2, (y0+y1)/2

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	add := func(sx, sy float64) {
		dx, dy := t.Forward(sx, sy)
		if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
			return
		}
		minX, maxX = math.Min(minX, dx), math.Max(maxX, dx)
		minY, maxY = math.Min(minY, dy), math.Max(maxY, dy)
	}
	for i := 0; i <= bboxSamples; i++ {
		f := float64(i) / bboxSamples
		x := x0 + f*(x1-x0)
		y := y0 + f*(y1-y0)
		add(x, y0)
		add(x, y1)
		add(x, ym)
		add(x0, y)
		add(x1, y)
		add(xm, y)
	}
	if minX > maxX || minY > maxY {
		return image.Rectangle{}
	}
	// Destination pixel i covers [i-0.5, i+0.5).
	return image.Rect(
		int(math.Floor(minX+0.5+bboxEpsilon)), int(math.Floor(minY+0.5+bboxEpsilon)),
		int(math.Ceil(maxX+0.5-bboxEpsilon)), int(math.Ceil(maxY+0.5-bboxEpsilon)),
	)
}

// LocalResolution estimates how many source pixels would span the full 360°
// circumference at source pixel (px, py), assuming the destination is
// lon/lat. The finer of the two axis directions wins. The result is capped
// at MaxResolution; non-finite input yields NaN.
func (t *GeoTransform) LocalResolution(px, py float64) float64 {
	ox, oy := t.Forward(px, py)
	ax, ay := t.Forward(px+1, py)
	bx, by := t.Forward(px, py+1)

	m := t.dst.Transform()
	degPerDstPixel := math.Hypot(m[0][0], m[1][0])

	dx := floats.Norm([]float64{ax - ox, ay - oy}, 2) * degPerDstPixel
	dy := floats.Norm([]float64{bx - ox, by - oy}, 2) * degPerDstPixel
	deg := math.Min(dx, dy)
	if math.IsNaN(deg) {
		return math.NaN()
	}
	res := 360 / deg
	if res > MaxResolution {
		return MaxResolution
	}
	return res
}
