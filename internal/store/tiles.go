package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"github.com/pspoerri/platepyramid/internal/pixel"
)

// Tiles reads and writes typed tiles through a Store. The payload is one
// byte naming the pixel kind followed by the snappy-compressed little-endian
// pixel array.
type Tiles[P pixel.Pixel[P]] struct {
	store Store
	kind  pixel.Kind
	size  int
}

// NewTiles binds pixel type P to s.
func NewTiles[P pixel.Pixel[P]](s Store) *Tiles[P] {
	return &Tiles[P]{store: s, kind: pixel.KindOf[P](), size: s.TileSize()}
}

func (t *Tiles[P]) Store() Store     { return t.store }
func (t *Tiles[P]) TileSize() int    { return t.size }
func (t *Tiles[P]) Kind() pixel.Kind { return t.kind }

// ReadTile returns a pooled tile; release it with pixel.PutImage.
func (t *Tiles[P]) ReadTile(ctx context.Context, addr Address, version Version, exact bool) (*pixel.Image[P], error) {
	data, err := t.store.Get(ctx, addr, version, exact)
	if err != nil {
		return nil, err
	}
	img := pixel.GetImage[P](t.size, t.size)
	if err := t.decode(data, img); err != nil {
		pixel.PutImage(img)
		return nil, fmt.Errorf("%s@%d: %w", addr, version, err)
	}
	return img, nil
}

// WriteTile stores img, which must be TileSize×TileSize.
func (t *Tiles[P]) WriteTile(ctx context.Context, addr Address, version Version, img *pixel.Image[P]) error {
	if img.W != t.size || img.H != t.size {
		return fmt.Errorf("tile %s is %dx%d, store expects %dx%d", addr, img.W, img.H, t.size, t.size)
	}
	data, err := t.encode(img)
	if err != nil {
		return err
	}
	return t.store.Put(ctx, addr, version, data)
}

func (t *Tiles[P]) encode(img *pixel.Image[P]) ([]byte, error) {
	var raw bytes.Buffer
	raw.Grow(binary.Size(img.Pix))
	if err := binary.Write(&raw, binary.LittleEndian, img.Pix); err != nil {
		return nil, err
	}
	out := make([]byte, 1, 1+snappy.MaxEncodedLen(raw.Len()))
	out[0] = byte(t.kind)
	return append(out, snappy.Encode(nil, raw.Bytes())...), nil
}

func (t *Tiles[P]) decode(data []byte, img *pixel.Image[P]) error {
	if len(data) < 1 {
		return fmt.Errorf("empty payload: %w", ErrCorruptTile)
	}
	if k := pixel.Kind(data[0]); k != t.kind {
		return fmt.Errorf("pixel kind %s, want %s: %w", k, t.kind, ErrCorruptTile)
	}
	raw, err := snappy.Decode(nil, data[1:])
	if err != nil {
		return fmt.Errorf("decompressing: %v: %w", err, ErrCorruptTile)
	}
	if want := binary.Size(img.Pix); len(raw) != want {
		return fmt.Errorf("payload has %d bytes, want %d: %w", len(raw), want, ErrCorruptTile)
	}
	return binary.Read(bytes.NewReader(raw), binary.LittleEndian, img.Pix)
}

// Addresses lists the tiles of level visible at version.
func (t *Tiles[P]) Addresses(ctx context.Context, level int, version Version) ([]Address, error) {
	return t.store.Addresses(ctx, level, version)
}

// CarryForward makes the latest tile at or before version readable at
// exactly version by copying its payload. It reports whether a copy was
// made; tiles already present at version, or absent altogether, are left
// alone.
func (t *Tiles[P]) CarryForward(ctx context.Context, addr Address, version Version) (bool, error) {
	_, err := t.store.Get(ctx, addr, version, true)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrTileNotFound) {
		return false, err
	}
	data, err := t.store.Get(ctx, addr, version, false)
	if errors.Is(err, ErrTileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := t.store.Put(ctx, addr, version, data); err != nil {
		return false, err
	}
	return true, nil
}
