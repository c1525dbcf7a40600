package encode

import (
	"image"
	"image/color"
	"image/png"
	"math"
)

func init() {
	register(&Codec{
		Name:   "terrarium",
		Decode: png.Decode,
		NewEncoder: func(int) (Encoder, error) {
			return terrariumEncoder{}, nil
		},
	}, "terrarium")
}

// terrariumEncoder writes PNG tiles whose RGB already carries Terrarium
// elevation; see ElevationToTerrarium.
type terrariumEncoder struct{}

func (terrariumEncoder) Encode(img image.Image) ([]byte, error) { return encodePNG(img) }
func (terrariumEncoder) Format() string                         { return "terrarium" }
func (terrariumEncoder) PMTileType() uint8                      { return TileTypePNG }
func (terrariumEncoder) FileExtension() string                  { return ".png" }

// terrariumOffset shifts elevations so that the 24-bit code is unsigned.
const terrariumOffset = 32768

// ElevationToTerrarium packs an elevation in meters as
// R·256 + G + B/256 − 32768, clamped to the representable range. NaN and
// infinities become a transparent pixel.
func ElevationToTerrarium(elevation float64) color.RGBA {
	if math.IsNaN(elevation) || math.IsInf(elevation, 0) {
		return color.RGBA{}
	}
	// Work in 1/256 m steps so the three bytes fall out of one integer.
	code := math.Floor((elevation + terrariumOffset) * 256)
	code = math.Max(0, math.Min(code, 1<<24-1))
	v := uint32(code)
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// TerrariumToElevation decodes a Terrarium pixel. A transparent pixel is NaN.
func TerrariumToElevation(c color.RGBA) float64 {
	if c.A == 0 {
		return math.NaN()
	}
	v := uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	return float64(v)/256 - terrariumOffset
}
