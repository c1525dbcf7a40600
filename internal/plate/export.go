package plate

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/pspoerri/platepyramid/internal/coord"
	"github.com/pspoerri/platepyramid/internal/encode"
	"github.com/pspoerri/platepyramid/internal/pixel"
	"github.com/pspoerri/platepyramid/internal/store"
)

// TileWriter receives encoded tiles. pmtiles.Writer implements it; calls
// arrive from several goroutines.
type TileWriter interface {
	WriteTile(z, x, y int, data []byte) error
}

// ExportStats summarizes an export.
type ExportStats struct {
	Tiles    int64
	Bytes    int64
	MinLevel int
	MaxLevel int
	// Bounds is the lon/lat extent of the exported tiles.
	Bounds orb.Bound
}

// Export encodes every tile of levels 0..maxLevel visible at version and
// hands it to w. Gray pyramids exported as terrarium are treated as
// elevation in meters; everything else is converted to 8-bit RGBA.
func (p *Pyramid[P]) Export(ctx context.Context, version store.Version, maxLevel int, enc encode.Encoder, w TileWriter) (ExportStats, error) {
	lister, ok := p.tiles.(TileLister)
	if !ok {
		return ExportStats{}, fmt.Errorf("tile store cannot list tiles")
	}
	render := ToImage[P]
	if enc.Format() == "terrarium" {
		if !pixel.KindOf[P]().IsGray() {
			return ExportStats{}, fmt.Errorf("terrarium export needs a gray pyramid, have %s", pixel.KindOf[P]())
		}
		render = ToTerrarium[P]
	}

	stats := ExportStats{MinLevel: -1, MaxLevel: -1}
	var tiles, size atomic.Int64
	var mu sync.Mutex
	haveBounds := false
	for level := 0; level <= maxLevel; level++ {
		addrs, err := lister.Addresses(ctx, level, version)
		if err != nil {
			return stats, err
		}
		if len(addrs) == 0 {
			continue
		}
		if stats.MinLevel < 0 {
			stats.MinLevel = level
		}
		stats.MaxLevel = level

		bar := p.newBar(fmt.Sprintf("Export %2d", level), len(addrs))
		err = p.run(ctx, addrs, func(ctx context.Context, a store.Address) (bool, error) {
			img, err := p.tiles.ReadTile(ctx, a, version, false)
			if err != nil {
				return false, err
			}
			data, err := enc.Encode(render(img))
			pixel.PutImage(img)
			if err != nil {
				return false, fmt.Errorf("encoding tile %s: %w", a, err)
			}
			if err := w.WriteTile(a.Level, a.Col, a.Row, data); err != nil {
				return false, fmt.Errorf("writing tile %s: %w", a, err)
			}
			tiles.Add(1)
			size.Add(int64(len(data)))

			b := coord.TileBound(a.Level, a.Col, a.Row)
			mu.Lock()
			if haveBounds {
				stats.Bounds = stats.Bounds.Union(b)
			} else {
				stats.Bounds, haveBounds = b, true
			}
			mu.Unlock()
			return true, nil
		}, bar)
		bar.Finish()
		if err != nil {
			return stats, err
		}
	}
	stats.Tiles = tiles.Load()
	stats.Bytes = size.Load()
	return stats, nil
}

// ToImage converts a tile to 8-bit RGBA.
func ToImage[P pixel.Pixel[P]](m *pixel.Image[P]) image.Image {
	return pixel.ToNRGBA(m)
}

// ToTerrarium encodes a gray tile's values as Terrarium elevation.
// Transparent pixels stay transparent.
func ToTerrarium[P pixel.Pixel[P]](m *pixel.Image[P]) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			p := m.Pix[y*m.W+x]
			if p.IsTransparent() {
				out.SetRGBA(x, y, color.RGBA{})
				continue
			}
			out.SetRGBA(x, y, encode.ElevationToTerrarium(p.Vec()[0]))
		}
	}
	return out
}
