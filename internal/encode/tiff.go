//go:build !notiff

package encode

import (
	"bytes"
	"image"

	"golang.org/x/image/tiff"
)

func init() {
	register(&Codec{
		Name:   "tiff",
		Decode: tiff.Decode,
		NewEncoder: func(int) (Encoder, error) {
			return &TIFFEncoder{}, nil
		},
	}, "tif", "tiff", "image/tiff")
}

// TIFFEncoder writes deflate-compressed TIFF. PMTiles has no tile type for
// it, so it is meant for single-tile dumps rather than archives.
type TIFFEncoder struct{}

func (e *TIFFEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *TIFFEncoder) Format() string        { return "tiff" }
func (e *TIFFEncoder) PMTileType() uint8     { return TileTypeUnknown }
func (e *TIFFEncoder) FileExtension() string { return ".tif" }
