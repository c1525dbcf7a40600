package pixel

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gray8 = GrayA[uint8]

func TestFromVecClamps(t *testing.T) {
	tests := []struct {
		name string
		in   Vec
		want gray8
	}{
		{"in range", Vec{100, 100, 100, 255}, gray8{V: 100, A: 255}},
		{"rounds", Vec{99.6, 0, 0, 254.5}, gray8{V: 100, A: 255}},
		{"negative", Vec{-20, 0, 0, -1}, gray8{V: 0, A: 0}},
		{"overflow", Vec{300, 0, 0, 1000}, gray8{V: 255, A: 255}},
		{"nan", Vec{math.NaN(), 0, 0, 255}, gray8{V: 0, A: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gray8{}.FromVec(tt.in))
		})
	}
}

func TestFromVecSignedAndFloat(t *testing.T) {
	assert.Equal(t, GrayA[int16]{V: -32768, A: 32767}, GrayA[int16]{}.FromVec(Vec{-1e6, 0, 0, 1e6}))
	assert.Equal(t, GrayA[float32]{V: 1234.5, A: 1}, GrayA[float32]{}.FromVec(Vec{1234.5, 0, 0, 1}))
}

func TestMax(t *testing.T) {
	assert.Equal(t, 255.0, gray8{}.Max())
	assert.Equal(t, 32767.0, GrayA[int16]{}.Max())
	assert.Equal(t, 1.0, GrayA[float32]{}.Max())
	assert.Equal(t, 255.0, RGBA[uint8]{}.Max())
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindGrayA8, KindOf[GrayA[uint8]]())
	assert.Equal(t, KindGrayA16, KindOf[GrayA[int16]]())
	assert.Equal(t, KindGrayAF32, KindOf[GrayA[float32]]())
	assert.Equal(t, KindRGBA8, KindOf[RGBA[uint8]]())
	assert.Equal(t, KindUnknown, KindOf[RGBA[uint16]]())

	for _, k := range []Kind{KindGrayA8, KindGrayA16, KindGrayAF32, KindRGBA8} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("cmyk")
	assert.Error(t, err)
}

func TestPasteClipsAndCrop(t *testing.T) {
	dst := NewImage[gray8](4, 4)
	src := Uniform(3, 3, gray8{V: 7, A: 255})
	dst.Paste(src, 2, 2)

	assert.Equal(t, gray8{}, dst.At(1, 1))
	assert.Equal(t, gray8{V: 7, A: 255}, dst.At(2, 2))
	assert.Equal(t, gray8{V: 7, A: 255}, dst.At(3, 3))

	c := dst.Crop(image.Rect(2, 2, 6, 6))
	assert.Equal(t, 4, c.W)
	assert.Equal(t, gray8{V: 7, A: 255}, c.At(1, 1))
	assert.Equal(t, gray8{}, c.At(2, 2))
}

func TestIsTransparentAndOver(t *testing.T) {
	img := NewImage[RGBA[uint8]](2, 2)
	assert.True(t, img.IsTransparent())

	top := NewImage[RGBA[uint8]](2, 2)
	top.Set(1, 0, RGBA[uint8]{R: 9, A: 255})
	img.Fill(RGBA[uint8]{B: 3, A: 255})
	img.Over(top)
	assert.False(t, img.IsTransparent())
	assert.Equal(t, RGBA[uint8]{R: 9, A: 255}, img.At(1, 0))
	assert.Equal(t, RGBA[uint8]{B: 3, A: 255}, img.At(0, 0))
}

func TestSeparableConvolveConstantField(t *testing.T) {
	src := Uniform(8, 8, gray8{V: 100, A: 255})
	out := SeparableConvolve(src, BoxKernel2, BoxKernel2, 1, 1, ConstantEdge)
	defer PutImage(out)
	for _, p := range out.Pix {
		require.Equal(t, gray8{V: 100, A: 255}, p)
	}
}

func TestSeparableConvolveAveragesNeighbours(t *testing.T) {
	src := NewImage[GrayA[float32]](4, 1)
	for x := range 4 {
		src.Set(x, 0, GrayA[float32]{V: float32(x * 10), A: 1})
	}
	out := SeparableConvolve(src, BoxKernel2, []float64{1}, 1, 0, ConstantEdge)
	assert.InDelta(t, 5, out.At(0, 0).V, 1e-6)
	assert.InDelta(t, 25, out.At(2, 0).V, 1e-6)
	// Replicated edge: (30 + 30) / 2.
	assert.InDelta(t, 30, out.At(3, 0).V, 1e-6)

	zeroed := SeparableConvolve(src, BoxKernel2, []float64{1}, 1, 0, ZeroEdge)
	assert.InDelta(t, 15, zeroed.At(3, 0).V, 1e-6)
	assert.InDelta(t, 0.5, zeroed.At(3, 0).A, 1e-6)
}

func TestSubsample(t *testing.T) {
	src := NewImage[gray8](4, 4)
	for y := range 4 {
		for x := range 4 {
			src.Set(x, y, gray8{V: uint8(y*4 + x), A: 255})
		}
	}
	out := Subsample(src, 2)
	require.Equal(t, 2, out.W)
	require.Equal(t, 2, out.H)
	assert.Equal(t, uint8(0), out.At(0, 0).V)
	assert.Equal(t, uint8(2), out.At(1, 0).V)
	assert.Equal(t, uint8(8), out.At(0, 1).V)
	assert.Equal(t, uint8(10), out.At(1, 1).V)
}

func TestSampleBicubic(t *testing.T) {
	src := Uniform(8, 8, gray8{V: 100, A: 255})

	assert.Equal(t, gray8{V: 100, A: 255}, SampleBicubic(src, 3.5, 4.25))
	assert.Equal(t, gray8{V: 100, A: 255}, SampleBicubic(src, 4, 4))
	assert.Equal(t, gray8{}, SampleBicubic(src, -5, 3))
	assert.Equal(t, gray8{}, SampleBicubic(src, 3, 20))
	assert.Equal(t, gray8{}, SampleBicubic(src, math.NaN(), 3))

	// Past the edge the zero extension fades alpha but keeps the color.
	edge := SampleBicubic(src, 7.5, 4)
	assert.Equal(t, uint8(100), edge.V)
	assert.Less(t, edge.A, uint8(255))
	assert.Greater(t, edge.A, uint8(0))
}

func TestBicubicKernel(t *testing.T) {
	assert.Equal(t, 1.0, bicubic(0))
	assert.Equal(t, 0.0, bicubic(1))
	assert.Equal(t, 0.0, bicubic(2))
	for _, x := range []float64{0.1, 0.5, 1.3, 1.9} {
		assert.InDelta(t, bicubic(x), bicubicLUT(x), 1e-4)
	}
}

func TestPoolReturnsZeroedImage(t *testing.T) {
	img := GetImage[gray8](16, 16)
	img.Fill(gray8{V: 1, A: 1})
	PutImage(img)

	again := GetImage[gray8](16, 16)
	assert.True(t, again.IsTransparent())
	assert.Equal(t, 16*16, len(again.Pix))

	other := GetImage[RGBA[uint8]](16, 16)
	assert.Equal(t, 16*16, len(other.Pix))
	PutImage[gray8](nil)
}

func TestFromImageAndToNRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	rgba := FromImage[RGBA[uint8]](src)
	assert.Equal(t, RGBA[uint8]{R: 200, G: 100, B: 50, A: 255}, rgba.At(0, 0))
	assert.True(t, rgba.At(1, 0).IsTransparent())

	back := ToNRGBA(rgba)
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, back.NRGBAAt(0, 0))

	gray := FromImage[GrayA[uint8]](src)
	assert.Equal(t, uint8(0.299*200+0.587*100+0.114*50+0.5), gray.At(0, 0).V)

	g16 := image.NewGray16(image.Rect(0, 0, 1, 1))
	g16.SetGray16(0, 0, color.Gray16{Y: uint16(0xffff)}) // -1 as int16
	elev := FromImage[GrayA[int16]](g16)
	assert.Equal(t, GrayA[int16]{V: -1, A: 32767}, elev.At(0, 0))
}
