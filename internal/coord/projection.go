package coord

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownProjection is returned when a projection string or EPSG code
// cannot be resolved.
var ErrUnknownProjection = errors.New("unknown projection")

// LonLatProj4 is the proj4 definition of unprojected WGS84 coordinates.
const LonLatProj4 = "+proj=longlat +datum=WGS84 +no_defs"

// WebMercatorProj4 is the proj4 definition of spherical web mercator.
const WebMercatorProj4 = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"

// Projection converts between a source CRS and WGS84 longitude/latitude.
type Projection interface {
	// ToWGS84 converts source CRS coordinates to WGS84 longitude/latitude (degrees).
	ToWGS84(x, y float64) (lon, lat float64)

	// FromWGS84 converts WGS84 longitude/latitude (degrees) to source CRS coordinates.
	FromWGS84(lon, lat float64) (x, y float64)

	// Proj4 returns the proj4 definition of the source CRS.
	Proj4() string
}

// IsLonLat reports whether a proj4 string describes unprojected
// longitude/latitude coordinates. The empty string counts as lon/lat.
func IsLonLat(proj4 string) bool {
	return proj4 == "" || strings.Contains(proj4, "+proj=longlat") || strings.Contains(proj4, "+proj=latlong")
}

// WGS84Identity is a no-op projection for data already in lon/lat degrees.
type WGS84Identity struct{}

func (w *WGS84Identity) ToWGS84(x, y float64) (lon, lat float64)   { return x, y }
func (w *WGS84Identity) FromWGS84(lon, lat float64) (x, y float64) { return lon, lat }
func (w *WGS84Identity) Proj4() string                             { return LonLatProj4 }

var parsed sync.Map // proj4 string → Projection

// Parse resolves a proj4 definition. Lon/lat and spherical mercator use the
// built-in closed forms; everything else goes through the proj4 engine.
func Parse(proj4 string) (Projection, error) {
	if IsLonLat(proj4) {
		return &WGS84Identity{}, nil
	}
	if p, ok := parsed.Load(proj4); ok {
		return p.(Projection), nil
	}

	var p Projection
	if isSphericalMercator(proj4) {
		p = &WebMercatorProj{}
	} else {
		var err error
		p, err = newProj4Projection(proj4)
		if err != nil {
			return nil, err
		}
	}
	parsed.Store(proj4, p)
	return p, nil
}

func isSphericalMercator(proj4 string) bool {
	return strings.Contains(proj4, "+proj=merc") &&
		strings.Contains(proj4, "+a=6378137") &&
		strings.Contains(proj4, "+b=6378137")
}

// Proj4ForEPSG returns the proj4 definition for a supported EPSG code:
// geographic WGS84/NAD83, web mercator, world mercator and the WGS84 UTM zones.
func Proj4ForEPSG(code int) (string, error) {
	switch {
	case code == 4326:
		return LonLatProj4, nil
	case code == 4269:
		return "+proj=longlat +datum=NAD83 +no_defs", nil
	case code == 3857 || code == 900913:
		return WebMercatorProj4, nil
	case code == 3395:
		return "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs", nil
	case code > 32600 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), nil
	case code > 32700 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), nil
	}
	return "", fmt.Errorf("EPSG:%d: %w", code, ErrUnknownProjection)
}

// ForEPSG returns a Projection for the given EPSG code.
func ForEPSG(code int) (Projection, error) {
	s, err := Proj4ForEPSG(code)
	if err != nil {
		return nil, err
	}
	return Parse(s)
}
