package georef

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pspoerri/platepyramid/internal/coord"
)

func affine(sx, ox, sy, oy float64) Matrix3x3 {
	return Matrix3x3{{sx, 0, ox}, {0, sy, oy}, {0, 0, 1}}
}

func TestMatrixInverse(t *testing.T) {
	m := Matrix3x3{{2, 0.5, 10}, {-0.25, -3, 40}, {0, 0, 1}}
	inv := m.Inverse()
	x, y := m.Apply(7, -3)
	bx, by := inv.Apply(x, y)
	assert.InDelta(t, 7, bx, 1e-12)
	assert.InDelta(t, -3, by, 1e-12)

	singular := Matrix3x3{{1, 2, 0}, {2, 4, 0}, {0, 0, 1}}
	assert.True(t, math.IsNaN(singular.Inverse()[0][0]))
}

func TestPixelInterpretation(t *testing.T) {
	area := New().WithTransform(affine(1, -180, -1, 90))
	point := area.WithPixelInterpretation(PixelAsPoint)

	x, y := area.PixelToPoint(0, 0)
	assert.Equal(t, -179.5, x)
	assert.Equal(t, 89.5, y)

	x, y = point.PixelToPoint(0, 0)
	assert.Equal(t, -180.0, x)
	assert.Equal(t, 90.0, y)

	// The copy does not leak back into the original.
	assert.Equal(t, PixelAsArea, area.PixelInterpretation())

	px, py := area.PointToPixel(-179.5, 89.5)
	assert.InDelta(t, 0, px, 1e-12)
	assert.InDelta(t, 0, py, 1e-12)
}

func TestPixelToLonLat(t *testing.T) {
	merc := New().
		WithProj4(coord.WebMercatorProj4).
		WithTransform(affine(1000, 0, -1000, 0)).
		WithPixelInterpretation(PixelAsPoint)
	lon, lat := merc.PixelToLonLat(0, 0)
	assert.InDelta(t, 0, lon, 1e-9)
	assert.InDelta(t, 0, lat, 1e-9)

	bad := New().WithProj4("+proj=nonsense")
	lon, _ = bad.PixelToLonLat(0, 0)
	assert.True(t, math.IsNaN(lon))
}

func TestNewGeoTransformUnknownProjection(t *testing.T) {
	src := New().WithProj4("+proj=nonsense")
	_, err := NewGeoTransform(src, New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, coord.ErrUnknownProjection))
}

func TestForwardReverseLonLat(t *testing.T) {
	// 0.5° source pixels onto 0.25° destination pixels.
	src := New().WithTransform(affine(0.5, 10, -0.5, 50))
	dst := New().WithTransform(affine(0.25, -180, -0.25, 180))
	tr, err := NewGeoTransform(src, dst)
	require.NoError(t, err)

	dx, dy := tr.Forward(0, 0)
	// Source pixel center (10.25, 49.75) lands on destination (761, 521)
	// before the half-pixel area offset.
	assert.InDelta(t, 760.5, dx, 1e-9)
	assert.InDelta(t, 520.5, dy, 1e-9)

	sx, sy := tr.Reverse(dx, dy)
	assert.InDelta(t, 0, sx, 1e-9)
	assert.InDelta(t, 0, sy, 1e-9)
}

func TestForwardBBoxAligned(t *testing.T) {
	src := New().WithTransform(affine(0.25, 0, -0.25, 45))
	dst := New().WithTransform(affine(0.25, -180, -0.25, 180))
	tr, err := NewGeoTransform(src, dst)
	require.NoError(t, err)

	got := tr.ForwardBBox(image.Rect(0, 0, 40, 20))
	assert.Equal(t, image.Rect(720, 540, 760, 560), got)

	assert.True(t, tr.ForwardBBox(image.Rectangle{}).Empty())
}

func TestForwardBBoxUpsampled(t *testing.T) {
	// One source pixel spans two destination pixels.
	src := New().WithTransform(affine(0.5, 0, -0.5, 0))
	dst := New().WithTransform(affine(0.25, -180, -0.25, 180))
	tr, err := NewGeoTransform(src, dst)
	require.NoError(t, err)

	got := tr.ForwardBBox(image.Rect(0, 0, 4, 4))
	assert.Equal(t, image.Rect(720, 720, 728, 728), got)
}

func TestLocalResolutionLonLat(t *testing.T) {
	dst := New()
	for _, tc := range []struct {
		scale float64
		want  float64
	}{
		{1, 360},
		{0.5, 720},
		{360.0 / 4096, 4096},
	} {
		src := New().WithTransform(affine(tc.scale, -30, -tc.scale, 20))
		tr, err := NewGeoTransform(src, dst)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, tr.LocalResolution(3, 7), 1e-6)
	}
}

func TestLocalResolutionUsesFinerAxis(t *testing.T) {
	src := New().WithTransform(affine(1, 0, -0.25, 0))
	tr, err := NewGeoTransform(src, New())
	require.NoError(t, err)
	assert.InDelta(t, 1440, tr.LocalResolution(0, 0), 1e-9)
}

func TestLocalResolutionCapped(t *testing.T) {
	src := New().WithTransform(affine(1e-12, 0, -1e-12, 0))
	tr, err := NewGeoTransform(src, New())
	require.NoError(t, err)
	assert.Equal(t, float64(MaxResolution), tr.LocalResolution(0, 0))
}

func TestLocalResolutionProjected(t *testing.T) {
	// 1 km Web Mercator pixels at the equator are about 0.009°.
	src := New().
		WithProj4(coord.WebMercatorProj4).
		WithTransform(affine(1000, 0, -1000, 0))
	tr, err := NewGeoTransform(src, New())
	require.NoError(t, err)
	res := tr.LocalResolution(0, 0)
	assert.InDelta(t, coord.EarthCircumference/1000, res, 1)
}
