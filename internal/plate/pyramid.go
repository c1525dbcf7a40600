package plate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/pspoerri/platepyramid/internal/coord"
	"github.com/pspoerri/platepyramid/internal/georef"
	"github.com/pspoerri/platepyramid/internal/pixel"
	"github.com/pspoerri/platepyramid/internal/store"
)

// Options configures a Pyramid.
type Options struct {
	// Concurrency is the number of tiles processed in parallel per level.
	Concurrency int
	// Preblur applies the [0.5, 0.5] box filter before decimation.
	Preblur bool
	// Progress, if set, receives a progress bar per level.
	Progress io.Writer
}

// TileLister lists the tiles of a level visible at a version.
type TileLister interface {
	Addresses(ctx context.Context, level int, version store.Version) ([]store.Address, error)
}

// carrier copies older tiles forward so exact-version reads see them.
// store.Tiles implements it.
type carrier interface {
	CarryForward(ctx context.Context, addr store.Address, version store.Version) (bool, error)
}

// Pyramid ingests images into leaf tiles and keeps the levels above them
// up to date.
type Pyramid[P pixel.Pixel[P]] struct {
	tiles TileStore[P]
	synth *Synthesizer[P]
	opts  Options
	log   logrus.FieldLogger
}

// NewPyramid builds a pyramid over tiles. A nil logger uses the logrus
// standard logger.
func NewPyramid[P pixel.Pixel[P]](tiles TileStore[P], opts Options, logger logrus.FieldLogger) *Pyramid[P] {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	return &Pyramid[P]{
		tiles: tiles,
		synth: NewSynthesizer(tiles, logger),
		opts:  opts,
		log:   logger,
	}
}

func (p *Pyramid[P]) TileSize() int { return p.tiles.TileSize() }

// Stats counts tiles handled by one phase.
type Stats struct {
	Written int64
	Skipped int64
}

// IngestResult describes one ingested image.
type IngestResult struct {
	Plan
	// BBox is the destination bounding box in level pixels.
	BBox image.Rectangle
	// Tiles is the leaf tile range at Plan.Level.
	Tiles image.Rectangle
	// Leaves counts leaf tiles written and skipped as transparent.
	Leaves Stats
	// Mipmap counts parent tiles regenerated above the leaves.
	Mipmap Stats
}

// Ingest places src into the pyramid at version. Each touched leaf tile is
// composited over the latest tile at or before version, so new opaque
// pixels replace old ones and transparent pixels keep them. The levels
// above are then regenerated with Mipmap.
func (p *Pyramid[P]) Ingest(ctx context.Context, src *pixel.Image[P], ref georef.GeoReference, version store.Version) (*IngestResult, error) {
	pl, err := TransformImage(src, ref, p.TileSize(), p.log)
	if err != nil {
		return nil, err
	}
	res := &IngestResult{Plan: pl.Plan, BBox: pl.BBox, Tiles: pl.View.TileRange()}
	if res.Tiles.Empty() {
		p.log.WithField("bbox", pl.BBox).Warn("Image does not touch the pyramid grid")
		return res, nil
	}

	level := pl.Level
	addrs := regionAddresses(res.Tiles, level)
	var written, skipped atomic.Int64
	bar := p.newBar(fmt.Sprintf("Level %2d (leaf)", level), len(addrs))
	err = p.run(ctx, addrs, func(ctx context.Context, a store.Address) (bool, error) {
		ok, err := p.writeLeaf(ctx, pl.View, a, version)
		if err != nil {
			return false, err
		}
		if ok {
			written.Add(1)
		} else {
			skipped.Add(1)
		}
		return ok, nil
	}, bar)
	bar.Finish()
	res.Leaves = Stats{Written: written.Load(), Skipped: skipped.Load()}
	if err != nil {
		return res, err
	}

	res.Mipmap, err = p.Mipmap(ctx, level, res.Tiles, version)
	return res, err
}

func (p *Pyramid[P]) writeLeaf(ctx context.Context, view *View[P], a store.Address, version store.Version) (bool, error) {
	img := view.Tile(a.Col, a.Row)
	defer pixel.PutImage(img)
	if img.IsTransparent() {
		return false, nil
	}
	existing, err := p.tiles.ReadTile(ctx, a, version, false)
	switch {
	case errors.Is(err, store.ErrTileNotFound):
		return true, p.tiles.WriteTile(ctx, a, version, img)
	case err != nil:
		return false, err
	}
	defer pixel.PutImage(existing)
	existing.Over(img)
	return true, p.tiles.WriteTile(ctx, a, version, existing)
}

// Mipmap regenerates every ancestor of the tiles in region (tile
// coordinates at level) up to level 0, one level at a time. Older tiles
// next to the region are first carried forward to version when the tile
// store supports it, so exact-version child reads still see them.
func (p *Pyramid[P]) Mipmap(ctx context.Context, level int, region image.Rectangle, version store.Version) (Stats, error) {
	var total Stats
	cf, canCarry := p.tiles.(carrier)
	for l := level - 1; l >= 0; l-- {
		n := 1 << uint(l)
		region = parentRegion(region).Intersect(image.Rect(0, 0, n, n))
		if region.Empty() {
			break
		}

		if canCarry {
			children := image.Rectangle{Min: region.Min.Mul(2), Max: region.Max.Mul(2)}
			err := p.run(ctx, regionAddresses(children, l+1), func(ctx context.Context, a store.Address) (bool, error) {
				return cf.CarryForward(ctx, a, version)
			}, nil)
			if err != nil {
				return total, fmt.Errorf("level %d: %w", l+1, err)
			}
		}

		addrs := regionAddresses(region, l)
		var written, skipped atomic.Int64
		bar := p.newBar(fmt.Sprintf("Level %2d", l), len(addrs))
		err := p.run(ctx, addrs, func(ctx context.Context, a store.Address) (bool, error) {
			ok, err := p.synth.GenerateMipmapTile(ctx, a.Col, a.Row, a.Level, version, p.opts.Preblur)
			if err != nil {
				return false, fmt.Errorf("mipmap %s: %w", a, err)
			}
			if ok {
				written.Add(1)
			} else {
				skipped.Add(1)
			}
			return ok, nil
		}, bar)
		bar.Finish()
		total.Written += written.Load()
		total.Skipped += skipped.Load()
		if err != nil {
			return total, err
		}
		p.log.WithFields(logrus.Fields{
			"level":   l,
			"written": written.Load(),
			"skipped": skipped.Load(),
		}).Debug("Level complete")
	}
	return total, nil
}

// Rebuild regenerates all levels above level from the tiles visible at
// version.
func (p *Pyramid[P]) Rebuild(ctx context.Context, level int, version store.Version) (Stats, error) {
	lister, ok := p.tiles.(TileLister)
	if !ok {
		return Stats{}, fmt.Errorf("tile store cannot list tiles")
	}
	addrs, err := lister.Addresses(ctx, level, version)
	if err != nil {
		return Stats{}, err
	}
	var region image.Rectangle
	for _, a := range addrs {
		region = region.Union(image.Rect(a.Col, a.Row, a.Col+1, a.Row+1))
	}
	if region.Empty() {
		return Stats{}, nil
	}
	return p.Mipmap(ctx, level, region, version)
}

func (p *Pyramid[P]) newBar(label string, total int) *progressBar {
	if p.opts.Progress == nil {
		return nil
	}
	return newProgressBar(p.opts.Progress, label, int64(total))
}

// run feeds addrs to Concurrency workers. The first error cancels the rest
// and is returned.
func (p *Pyramid[P]) run(ctx context.Context, addrs []store.Address, fn func(context.Context, store.Address) (bool, error), bar *progressBar) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan store.Address, p.opts.Concurrency*2)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	for w := 0; w < p.opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				ok, err := fn(ctx, a)
				if err != nil {
					select {
					case errCh <- err:
					default:
					}
					cancel()
					return
				}
				bar.Increment(ok)
			}
		}()
	}

feed:
	for _, a := range addrs {
		select {
		case jobs <- a:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	return ctx.Err()
}

// regionAddresses lists the tiles of r at level in Hilbert order, so
// neighbouring jobs share children.
func regionAddresses(r image.Rectangle, level int) []store.Address {
	pts := make([]image.Point, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			pts = append(pts, image.Pt(x, y))
		}
	}
	coord.SortByHilbert(level, pts)
	out := make([]store.Address, len(pts))
	for i, pt := range pts {
		out[i] = store.Address{Col: pt.X, Row: pt.Y, Level: level}
	}
	return out
}
