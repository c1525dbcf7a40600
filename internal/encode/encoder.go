package encode

import (
	"fmt"
	"image"
)

// Tile types as numbered in the PMTiles v3 header.
const (
	TileTypeUnknown = 0
	TileTypeMVT     = 1
	TileTypePNG     = 2
	TileTypeJPEG    = 3
	TileTypeWebP    = 4
	TileTypeAVIF    = 5
)

// Encoder encodes an image into tile bytes.
type Encoder interface {
	// Encode encodes an image to bytes in the tile format.
	Encode(img image.Image) ([]byte, error)

	// Format returns the format name (e.g. "jpeg", "png", "webp").
	Format() string

	// PMTileType returns the PMTiles tile type constant.
	PMTileType() uint8

	// FileExtension returns the appropriate file extension.
	FileExtension() string
}

// NewEncoder creates an encoder for the given type token and quality.
func NewEncoder(typ string, quality int) (Encoder, error) {
	c, err := Lookup(typ)
	if err != nil {
		return nil, err
	}
	if c.NewEncoder == nil {
		return nil, fmt.Errorf("%w: %s is decode-only", ErrUnsupportedFormat, c.Name)
	}
	return c.NewEncoder(quality)
}
