// Package geotiff reads georeferenced rasters: GeoTIFF tags and ESRI world
// file sidecars.
package geotiff

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pspoerri/platepyramid/internal/encode"
	"github.com/pspoerri/platepyramid/internal/georef"
	"github.com/pspoerri/platepyramid/internal/pixel"
)

// ReadGeoReference parses the GeoTIFF tags of the first image in r. A
// non-empty proj4 overrides the CRS named by the GeoKeys.
func ReadGeoReference(r io.ReadSeeker, proj4 string) (georef.GeoReference, Info, error) {
	d, err := readDirectory(r)
	if err != nil {
		return georef.GeoReference{}, Info{}, err
	}
	return resolve(d, proj4)
}

// ReadFile opens path and reads its GeoTIFF tags.
func ReadFile(path, proj4 string) (georef.GeoReference, Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return georef.GeoReference{}, Info{}, err
	}
	defer f.Close()
	ref, info, err := ReadGeoReference(f, proj4)
	if err != nil {
		return ref, info, fmt.Errorf("%s: %w", path, err)
	}
	return ref, info, nil
}

func isTIFF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}

// Load decodes the image at path and georeferences it. A sidecar world file
// wins over embedded GeoTIFF tags. For gray pixel types, samples equal to the
// GDAL nodata value become transparent.
func Load[P pixel.Pixel[P]](path, proj4 string) (*pixel.Image[P], georef.GeoReference, error) {
	var (
		ref  georef.GeoReference
		info Info
		err  error
	)
	if isTIFF(path) {
		ref, info, err = ReadFile(path, proj4)
	} else {
		err = ErrNotGeoreferenced
	}

	if wf := FindWorldFile(path); wf != "" {
		w, werr := ParseWorldFile(wf)
		if werr != nil {
			return nil, georef.GeoReference{}, werr
		}
		crs := proj4
		if crs == "" {
			crs = info.Proj4
		}
		img, derr := decode[P](path, info.NoData)
		if derr != nil {
			return nil, georef.GeoReference{}, derr
		}
		if crs == "" {
			if crs, err = inferProj4(w, img.W, img.H); err != nil {
				return nil, georef.GeoReference{}, fmt.Errorf("%s: %w", wf, err)
			}
		}
		return img, w.GeoReference(crs), nil
	}

	if err != nil {
		return nil, georef.GeoReference{}, err
	}
	img, err := decode[P](path, info.NoData)
	if err != nil {
		return nil, georef.GeoReference{}, err
	}
	return img, ref, nil
}

func decode[P pixel.Pixel[P]](path string, nodata *float64) (*pixel.Image[P], error) {
	src, err := encode.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	img := pixel.FromImage[P](src)
	if nodata != nil && pixel.KindOf[P]().IsGray() {
		var zero P
		for i, p := range img.Pix {
			if p.Vec()[0] == *nodata {
				img.Pix[i] = zero
			}
		}
	}
	return img, nil
}
