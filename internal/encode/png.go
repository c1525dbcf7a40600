package encode

import (
	"bytes"
	"image"
	"image/png"
)

func init() {
	register(&Codec{
		Name:   "png",
		Decode: png.Decode,
		NewEncoder: func(int) (Encoder, error) {
			return &PNGEncoder{}, nil
		},
	}, "png", "image/png")
}

// PNGEncoder encodes tiles as PNG.
type PNGEncoder struct{}

func (e *PNGEncoder) Encode(img image.Image) ([]byte, error) {
	return encodePNG(img)
}

func (e *PNGEncoder) Format() string        { return "png" }
func (e *PNGEncoder) PMTileType() uint8     { return TileTypePNG }
func (e *PNGEncoder) FileExtension() string { return ".png" }

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
