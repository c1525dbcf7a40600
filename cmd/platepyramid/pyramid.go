package main

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/pspoerri/platepyramid/internal/config"
	"github.com/pspoerri/platepyramid/internal/encode"
	"github.com/pspoerri/platepyramid/internal/geotiff"
	"github.com/pspoerri/platepyramid/internal/pixel"
	"github.com/pspoerri/platepyramid/internal/plate"
	"github.com/pspoerri/platepyramid/internal/store"
)

// pyramid hides the pixel type parameter from the commands.
type pyramid interface {
	ingest(ctx context.Context, path, proj4 string, version store.Version) error
	rebuild(ctx context.Context, level int, version store.Version) error
	export(ctx context.Context, version store.Version, maxLevel int, enc encode.Encoder, w plate.TileWriter) (plate.ExportStats, error)
	describe(w io.Writer, path, proj4 string) error
}

// newPyramid instantiates the pyramid for kind. A nil store yields a
// pyramid that can only describe images.
func newPyramid(kind pixel.Kind, s store.Store, cfg *config.Config) (pyramid, error) {
	switch kind {
	case pixel.KindGrayA8:
		return newTyped[pixel.GrayA[uint8]](s, cfg), nil
	case pixel.KindGrayA16:
		return newTyped[pixel.GrayA[int16]](s, cfg), nil
	case pixel.KindGrayAF32:
		return newTyped[pixel.GrayA[float32]](s, cfg), nil
	case pixel.KindRGBA8:
		return newTyped[pixel.RGBA[uint8]](s, cfg), nil
	}
	return nil, fmt.Errorf("unsupported pixel type %s", kind)
}

type typed[P pixel.Pixel[P]] struct {
	cfg *config.Config
	pyr *plate.Pyramid[P]
}

func newTyped[P pixel.Pixel[P]](s store.Store, cfg *config.Config) *typed[P] {
	t := &typed[P]{cfg: cfg}
	if s == nil {
		return t
	}
	opts := plate.Options{Concurrency: cfg.Workers(), Preblur: cfg.Preblur}
	if cfg.Verbose {
		opts.Progress = os.Stderr
	}
	t.pyr = plate.NewPyramid[P](store.NewTiles[P](s), opts, log.StandardLogger())
	return t
}

func (t *typed[P]) ingest(ctx context.Context, path, proj4 string, version store.Version) error {
	img, ref, err := geotiff.Load[P](path, proj4)
	if err != nil {
		return err
	}
	res, err := t.pyr.Ingest(ctx, img, ref, version)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"image":   path,
		"level":   res.Level,
		"tiles":   res.Tiles,
		"leaves":  res.Leaves.Written,
		"empty":   res.Leaves.Skipped,
		"parents": res.Mipmap.Written,
	}).Info("Ingested")
	return nil
}

func (t *typed[P]) rebuild(ctx context.Context, level int, version store.Version) error {
	stats, err := t.pyr.Rebuild(ctx, level, version)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"level":   level,
		"version": version,
		"written": stats.Written,
		"skipped": stats.Skipped,
	}).Info("Rebuilt mipmaps")
	return nil
}

func (t *typed[P]) export(ctx context.Context, version store.Version, maxLevel int, enc encode.Encoder, w plate.TileWriter) (plate.ExportStats, error) {
	return t.pyr.Export(ctx, version, maxLevel, enc, w)
}

func (t *typed[P]) describe(w io.Writer, path, proj4 string) error {
	img, ref, err := geotiff.Load[P](path, proj4)
	if err != nil {
		return err
	}
	pl, err := plate.TransformImage(img, ref, t.cfg.TileSize, log.StandardLogger())
	if err != nil {
		return err
	}
	lon, lat := pl.Ref.PixelToLonLat(float64(img.W)/2, float64(img.H)/2)

	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprintf(w, "Size: %d x %d\n", img.W, img.H)
	fmt.Fprintf(w, "Reference: %s\n", pl.Ref)
	fmt.Fprintf(w, "Center: lon=%f lat=%f\n", lon, lat)
	fmt.Fprintf(w, "Resolution samples (center, left, right, top, bottom): %.1f\n", pl.Samples)
	fmt.Fprintf(w, "Working resolution: %.1f px/360°\n", pl.Resolution)
	fmt.Fprintf(w, "Level: %d (tile size %d)\n", pl.Level, t.cfg.TileSize)
	fmt.Fprintf(w, "Bounding box (level pixels): %v\n", pl.BBox)
	fmt.Fprintf(w, "Tiles: %v\n", pl.View.TileRange())
	return nil
}
