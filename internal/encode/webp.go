//go:build !nowebp

package encode

import (
	"bytes"
	"image"

	"github.com/gen2brain/webp"
)

func init() {
	register(&Codec{
		Name:   "webp",
		Decode: webp.Decode,
		NewEncoder: func(quality int) (Encoder, error) {
			if quality <= 0 {
				quality = 85
			}
			return &WebPEncoder{Quality: quality}, nil
		},
	}, "webp", "image/webp")
}

// WebPEncoder encodes tiles as WebP using a pure-Go (WASM-based) encoder.
// A system libwebp is picked up via purego when present.
type WebPEncoder struct {
	Quality int
}

func (e *WebPEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: e.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *WebPEncoder) Format() string        { return "webp" }
func (e *WebPEncoder) PMTileType() uint8     { return TileTypeWebP }
func (e *WebPEncoder) FileExtension() string { return ".webp" }
