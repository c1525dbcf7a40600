package plate

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pspoerri/platepyramid/internal/pixel"
	"github.com/pspoerri/platepyramid/internal/store"
)

// TileStore is the typed tile access the pyramid needs. store.Tiles
// implements it.
type TileStore[P pixel.Pixel[P]] interface {
	TileSize() int
	// ReadTile returns a pooled image or an error wrapping
	// store.ErrTileNotFound.
	ReadTile(ctx context.Context, addr store.Address, version store.Version, exact bool) (*pixel.Image[P], error)
	WriteTile(ctx context.Context, addr store.Address, version store.Version, img *pixel.Image[P]) error
}

// childResult is the outcome of reading one child quadrant: either a tile
// or absent.
type childResult[P pixel.Pixel[P]] struct {
	img     *pixel.Image[P]
	present bool
}

func present[P pixel.Pixel[P]](img *pixel.Image[P]) childResult[P] {
	return childResult[P]{img: img, present: true}
}

func absent[P pixel.Pixel[P]]() childResult[P] {
	return childResult[P]{}
}

func (c childResult[P]) release() {
	if c.present {
		pixel.PutImage(c.img)
	}
}

// Synthesizer builds a parent tile from its four children. It holds no
// state between calls; concurrent calls for distinct addresses are safe.
type Synthesizer[P pixel.Pixel[P]] struct {
	tiles TileStore[P]
	log   logrus.FieldLogger
}

// NewSynthesizer returns a synthesizer over tiles. A nil logger uses the
// logrus standard logger.
func NewSynthesizer[P pixel.Pixel[P]](tiles TileStore[P], logger logrus.FieldLogger) *Synthesizer[P] {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Synthesizer[P]{tiles: tiles, log: logger}
}

func (s *Synthesizer[P]) readChild(ctx context.Context, addr store.Address, version store.Version) (childResult[P], error) {
	s.log.WithField("tile", addr).Debug("Reading tile")
	img, err := s.tiles.ReadTile(ctx, addr, version, true)
	if errors.Is(err, store.ErrTileNotFound) {
		return absent[P](), nil
	}
	if err != nil {
		return absent[P](), err
	}
	return present(img), nil
}

// GenerateMipmapTile rebuilds tile (col, row, level) at version from the
// four tiles below it, read at exactly version. Missing children count as
// transparent. With preblur the 2T×2T mosaic is averaged with a [0.5, 0.5]
// kernel in both directions before every other pixel is kept. A fully
// transparent result is not written. written reports whether a tile was
// stored.
func (s *Synthesizer[P]) GenerateMipmapTile(ctx context.Context, col, row, level int, version store.Version, preblur bool) (written bool, err error) {
	addr := store.Address{Col: col, Row: row, Level: level}
	t := s.tiles.TileSize()

	var children [4]childResult[P]
	defer func() {
		for _, c := range children {
			c.release()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for k := range children {
		child := addr.Child(k%2, k/2)
		g.Go(func() error {
			r, err := s.readChild(gctx, child, version)
			children[k] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	mosaic := pixel.GetImage[P](2*t, 2*t)
	defer pixel.PutImage(mosaic)
	for k, c := range children {
		if c.present {
			mosaic.Paste(c.img, (k%2)*t, (k/2)*t)
		}
	}

	out := downsample(mosaic, preblur)
	defer pixel.PutImage(out)

	if out.IsTransparent() {
		s.log.WithField("tile", addr).Debug("Skipping transparent tile")
		return false, nil
	}
	s.log.WithField("tile", addr).Debug("Writing")
	if err := s.tiles.WriteTile(ctx, addr, version, out); err != nil {
		return false, err
	}
	return true, nil
}

// downsample halves src in both directions. The result comes from the pool.
func downsample[P pixel.Pixel[P]](src *pixel.Image[P], preblur bool) *pixel.Image[P] {
	if !preblur {
		return pixel.Subsample(src, 2)
	}
	blurred := pixel.SeparableConvolve(src, pixel.BoxKernel2, pixel.BoxKernel2, 1, 1, pixel.ConstantEdge)
	defer pixel.PutImage(blurred)
	return pixel.Subsample(blurred, 2)
}
