package pixel

import (
	"image"
	"image/color"
)

// FromImage converts a decoded image into an Image[P]. Channels are scaled
// from the 16-bit color model to P's channel range. Gray targets take the
// luma of color sources. A 16-bit gray source feeding a 16-bit gray target
// keeps its raw sample bits, which preserves signed elevation data.
func FromImage[P Pixel[P]](src image.Image) *Image[P] {
	b := src.Bounds()
	dst := NewImage[P](b.Dx(), b.Dy())
	var zero P
	kind := KindOf[P]()

	if g16, ok := src.(*image.Gray16); ok && kind == KindGrayA16 {
		for y := 0; y < dst.H; y++ {
			for x := 0; x < dst.W; x++ {
				v := g16.Gray16At(b.Min.X+x, b.Min.Y+y).Y
				dst.Pix[y*dst.W+x] = zero.FromVec(Vec{float64(int16(v)), 0, 0, zero.Max()})
			}
		}
		return dst
	}

	scale := zero.Max() / 0xffff
	for y := 0; y < dst.H; y++ {
		for x := 0; x < dst.W; x++ {
			c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			v := Vec{float64(c.R), float64(c.G), float64(c.B), float64(c.A)}.Scale(scale)
			if kind.IsGray() {
				v[0] = 0.299*v[0] + 0.587*v[1] + 0.114*v[2]
			}
			dst.Pix[y*dst.W+x] = zero.FromVec(v)
		}
	}
	return dst
}

// ToNRGBA renders m as an 8-bit image for the raster codecs, scaling each
// channel from P's range to [0, 255].
func ToNRGBA[P Pixel[P]](m *Image[P]) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.W, m.H))
	var zero P
	scale := 255 / zero.Max()
	for i, p := range m.Pix {
		v := p.Vec().Scale(scale)
		off := i * 4
		out.Pix[off+0] = clampByte(v[0])
		out.Pix[off+1] = clampByte(v[1])
		out.Pix[off+2] = clampByte(v[2])
		out.Pix[off+3] = clampByte(v[3])
	}
	return out
}

// clampByte rounds v to the nearest uint8, clamping to [0, 255].
func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
