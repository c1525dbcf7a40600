package geotiff

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/pspoerri/platepyramid/internal/coord"
	"github.com/pspoerri/platepyramid/internal/georef"
)

// GeoKey IDs.
const (
	keyModelType      = 1024
	keyRasterType     = 1025
	keyGeographicType = 2048
	keyProjectedType  = 3072
)

const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2

	rasterPixelIsArea  = 1
	rasterPixelIsPoint = 2

	userDefined = 32767
)

var (
	// ErrNotGeoreferenced is returned when neither a model transformation nor
	// a tiepoint with pixel scale is present.
	ErrNotGeoreferenced = errors.New("image is not georeferenced")
	// ErrNoProjection is returned when the CRS cannot be resolved and no
	// override was given.
	ErrNoProjection = errors.New("no usable projection")
)

// Info describes the georeferencing of a GeoTIFF file.
type Info struct {
	Width, Height int
	EPSG          int
	ModelType     int
	RasterType    int
	Proj4         string
	NoData        *float64
}

// geoKeys maps key ID to its SHORT value. Keys stored in the double or ASCII
// parameter tags are skipped.
func geoKeys(dir []uint16) map[uint16]int {
	keys := make(map[uint16]int)
	if len(dir) < 4 {
		return keys
	}
	n := int(dir[3])
	for i := 0; i < n; i++ {
		base := 4 + i*4
		if base+3 >= len(dir) {
			break
		}
		if dir[base+1] == 0 {
			keys[dir[base]] = int(dir[base+3])
		}
	}
	return keys
}

// modelTransform returns the raster-to-model affine of d.
func modelTransform(d *directory) (georef.Matrix3x3, error) {
	if m := d.ModelTransformation; len(m) >= 16 {
		return georef.Matrix3x3{
			{m[0], m[1], m[3]},
			{m[4], m[5], m[7]},
			{0, 0, 1},
		}, nil
	}
	if len(d.ModelPixelScale) < 2 || len(d.ModelTiepoint) < 6 {
		return georef.Matrix3x3{}, ErrNotGeoreferenced
	}
	sx, sy := d.ModelPixelScale[0], d.ModelPixelScale[1]
	tp := d.ModelTiepoint
	i, j, x, y := tp[0], tp[1], tp[3], tp[4]
	return georef.Matrix3x3{
		{sx, 0, x - i*sx},
		{0, -sy, y + j*sy},
		{0, 0, 1},
	}, nil
}

// resolve turns the parsed directory into a reference. A non-empty proj4
// replaces whatever CRS the keys name. Info is filled as far as parsing got,
// even on error.
func resolve(d *directory, proj4 string) (georef.GeoReference, Info, error) {
	keys := geoKeys(d.GeoKeys)
	info := Info{
		Width:      int(d.Width),
		Height:     int(d.Height),
		ModelType:  keys[keyModelType],
		RasterType: keys[keyRasterType],
	}
	if code := keys[keyProjectedType]; code != 0 && code != userDefined {
		info.EPSG = code
	} else if code := keys[keyGeographicType]; code != 0 && code != userDefined {
		info.EPSG = code
	}
	if d.NoData != "" {
		if v, err := strconv.ParseFloat(d.NoData, 64); err == nil && !math.IsNaN(v) {
			info.NoData = &v
		}
	}

	switch {
	case proj4 != "":
		info.Proj4 = proj4
	case info.EPSG != 0:
		s, err := coord.Proj4ForEPSG(info.EPSG)
		if err != nil {
			return georef.GeoReference{}, info, fmt.Errorf("%w: %w", ErrNoProjection, err)
		}
		info.Proj4 = s
	case info.ModelType == modelTypeGeographic:
		info.Proj4 = coord.LonLatProj4
	}

	m, err := modelTransform(d)
	if err != nil {
		return georef.GeoReference{}, info, err
	}
	if info.Proj4 == "" {
		return georef.GeoReference{}, info, ErrNoProjection
	}
	ref := georef.New().WithTransform(m).WithProj4(info.Proj4)
	if info.RasterType == rasterPixelIsPoint {
		ref = ref.WithPixelInterpretation(georef.PixelAsPoint)
	}
	return ref, info, nil
}
