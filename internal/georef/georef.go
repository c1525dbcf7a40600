// Package georef maps raster pixel coordinates to projected coordinates and
// between two georeferenced rasters.
package georef

import (
	"fmt"
	"math"

	"github.com/pspoerri/platepyramid/internal/coord"
)

// Matrix3x3 is a homogeneous 2-D transform. Affine georeferences keep the
// last row at (0, 0, 1).
type Matrix3x3 [3][3]float64

// Identity returns the identity matrix.
func Identity() Matrix3x3 {
	return Matrix3x3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Apply transforms (x, y) and divides by the homogeneous coordinate.
func (m Matrix3x3) Apply(x, y float64) (float64, float64) {
	w := m[2][0]*x + m[2][1]*y + m[2][2]
	return (m[0][0]*x + m[0][1]*y + m[0][2]) / w,
		(m[1][0]*x + m[1][1]*y + m[1][2]) / w
}

// Inverse returns the inverse of m. A singular matrix yields NaN entries.
func (m Matrix3x3) Inverse() Matrix3x3 {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]

	A := e*i - f*h
	B := -(d*i - f*g)
	C := d*h - e*g
	det := a*A + b*B + c*C
	if det == 0 {
		nan := math.NaN()
		return Matrix3x3{{nan, nan, nan}, {nan, nan, nan}, {nan, nan, nan}}
	}
	inv := 1 / det
	return Matrix3x3{
		{A * inv, -(b*i - c*h) * inv, (b*f - c*e) * inv},
		{B * inv, (a*i - c*g) * inv, -(a*f - c*d) * inv},
		{C * inv, -(a*h - b*g) * inv, (a*e - b*d) * inv},
	}
}

// PixelInterpretation says which part of a pixel the transform addresses.
type PixelInterpretation int

const (
	// PixelAsArea: the transform maps the upper-left corner of pixel (0, 0);
	// pixel centers sit at half-integer offsets.
	PixelAsArea PixelInterpretation = iota
	// PixelAsPoint: the transform maps the center of pixel (0, 0).
	PixelAsPoint
)

func (p PixelInterpretation) String() string {
	if p == PixelAsPoint {
		return "PixelAsPoint"
	}
	return "PixelAsArea"
}

// Datum describes the reference ellipsoid.
type Datum struct {
	Name      string
	SemiMajor float64
	SemiMinor float64
}

// WGS84 is the default datum.
var WGS84 = Datum{Name: "WGS_1984", SemiMajor: 6378137, SemiMinor: 6356752.314245179}

// GeoReference ties raster pixels to a coordinate reference system. It is a
// value type: the With methods return modified copies and never touch the
// receiver, so a reference can be shared between goroutines.
type GeoReference struct {
	transform Matrix3x3
	inverse   Matrix3x3
	datum     Datum
	proj4     string
	pixel     PixelInterpretation
}

// New returns a lon/lat WGS84 reference with an identity transform, so one
// pixel is one degree.
func New() GeoReference {
	return GeoReference{
		transform: Identity(),
		inverse:   Identity(),
		datum:     WGS84,
		proj4:     coord.LonLatProj4,
		pixel:     PixelAsArea,
	}
}

func (r GeoReference) Transform() Matrix3x3                     { return r.transform }
func (r GeoReference) Datum() Datum                             { return r.datum }
func (r GeoReference) Proj4() string                            { return r.proj4 }
func (r GeoReference) PixelInterpretation() PixelInterpretation { return r.pixel }

// IsLonLat reports whether projected coordinates are longitude/latitude degrees.
func (r GeoReference) IsLonLat() bool { return coord.IsLonLat(r.proj4) }

func (r GeoReference) WithTransform(m Matrix3x3) GeoReference {
	r.transform = m
	r.inverse = m.Inverse()
	return r
}

func (r GeoReference) WithDatum(d Datum) GeoReference {
	r.datum = d
	return r
}

func (r GeoReference) WithProj4(s string) GeoReference {
	r.proj4 = s
	return r
}

func (r GeoReference) WithPixelInterpretation(p PixelInterpretation) GeoReference {
	r.pixel = p
	return r
}

func (r GeoReference) pixelOffset() float64 {
	if r.pixel == PixelAsArea {
		return 0.5
	}
	return 0
}

// PixelToPoint maps the center of pixel (px, py) to projected coordinates.
func (r GeoReference) PixelToPoint(px, py float64) (x, y float64) {
	off := r.pixelOffset()
	return r.transform.Apply(px+off, py+off)
}

// PointToPixel is the inverse of PixelToPoint.
func (r GeoReference) PointToPixel(x, y float64) (px, py float64) {
	off := r.pixelOffset()
	px, py = r.inverse.Apply(x, y)
	return px - off, py - off
}

// PixelToLonLat maps pixel (px, py) to WGS84 degrees. Unknown projections
// yield NaN.
func (r GeoReference) PixelToLonLat(px, py float64) (lon, lat float64) {
	x, y := r.PixelToPoint(px, py)
	if r.IsLonLat() {
		return x, y
	}
	p, err := coord.Parse(r.proj4)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	return p.ToWGS84(x, y)
}

func (r GeoReference) String() string {
	t := r.transform
	return fmt.Sprintf("GeoReference{proj4=%q datum=%s pixel=%s scale=(%g, %g) origin=(%g, %g)}",
		r.proj4, r.datum.Name, r.pixel, t[0][0], t[1][1], t[0][2], t[1][2])
}
