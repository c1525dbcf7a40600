package plate

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/pspoerri/platepyramid/internal/georef"
	"github.com/pspoerri/platepyramid/internal/pixel"
)

// View is a lazily reprojected image in the pixel space of one pyramid
// level. Nothing is computed until a window is rasterized; a View over a
// deep level describes far more pixels than could ever be allocated.
type View[P pixel.Pixel[P]] struct {
	src      *pixel.Image[P]
	tr       *georef.GeoTransform
	bbox     image.Rectangle
	level    int
	tileSize int
}

// Place reprojects src, referenced by the corrected ref, into level. It
// returns the view, the destination bounding box in level pixels (not
// clipped to the grid) and the input-to-level transform. Output pixels are
// bicubic samples of src; positions beyond src read as transparent.
func Place[P pixel.Pixel[P]](src *pixel.Image[P], ref georef.GeoReference, level, tileSize int) (*View[P], image.Rectangle, *georef.GeoTransform, error) {
	out := GeoreferenceForLevel(level, tileSize).WithDatum(ref.Datum())
	tr, err := georef.NewGeoTransform(ref, out)
	if err != nil {
		return nil, image.Rectangle{}, nil, fmt.Errorf("placing image: %w", err)
	}
	bbox := tr.ForwardBBox(src.Bounds())
	v := &View[P]{src: src, tr: tr, bbox: bbox, level: level, tileSize: tileSize}
	return v, bbox, tr, nil
}

// Placement bundles a plan with the view it produced.
type Placement[P pixel.Pixel[P]] struct {
	Plan
	View *View[P]
	BBox image.Rectangle
}

// TransformImage plans and places src in one step and logs the outcome.
func TransformImage[P pixel.Pixel[P]](src *pixel.Image[P], ref georef.GeoReference, tileSize int, logger logrus.FieldLogger) (*Placement[P], error) {
	plan, err := PlanImage(src.W, src.H, ref, tileSize)
	if err != nil {
		return nil, err
	}
	view, bbox, _, err := Place(src, plan.Ref, plan.Level, tileSize)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"level":      plan.Level,
			"bbox":       bbox,
			"resolution": plan.Resolution,
		}).Info("Placing image")
	}
	return &Placement[P]{Plan: plan, View: view, BBox: bbox}, nil
}

func (v *View[P]) Level() int                      { return v.level }
func (v *View[P]) BBox() image.Rectangle           { return v.bbox }
func (v *View[P]) Transform() *georef.GeoTransform { return v.tr }

// At evaluates the single level pixel (x, y).
func (v *View[P]) At(x, y int) P {
	var zero P
	if !image.Pt(x, y).In(v.bbox) {
		return zero
	}
	sx, sy := v.tr.Reverse(float64(x), float64(y))
	return pixel.SampleBicubic(v.src, sx, sy)
}

// Rasterize evaluates the level pixels in r. The image comes from the pool;
// release it with pixel.PutImage.
func (v *View[P]) Rasterize(r image.Rectangle) *pixel.Image[P] {
	dst := pixel.GetImage[P](r.Dx(), r.Dy())
	in := r.Intersect(v.bbox)
	for y := in.Min.Y; y < in.Max.Y; y++ {
		row := dst.Pix[(y-r.Min.Y)*dst.W:]
		for x := in.Min.X; x < in.Max.X; x++ {
			sx, sy := v.tr.Reverse(float64(x), float64(y))
			row[x-r.Min.X] = pixel.SampleBicubic(v.src, sx, sy)
		}
	}
	return dst
}

// Tile rasterizes tile (col, row) of the view's level.
func (v *View[P]) Tile(col, row int) *pixel.Image[P] {
	return v.Rasterize(tileRect(col, row, v.tileSize))
}

// TileRange returns the tiles of the level the view touches.
func (v *View[P]) TileRange() image.Rectangle {
	return tilesCovering(v.bbox, v.level, v.tileSize)
}
