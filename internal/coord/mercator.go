package coord

import "math"

const (
	// EarthCircumference is the equatorial circumference of the web mercator
	// sphere in meters.
	EarthCircumference = 2 * math.Pi * 6378137
	// OriginShift is the easting of the antimeridian.
	OriginShift = EarthCircumference / 2
)

// WebMercatorProj is spherical mercator, EPSG:3857.
type WebMercatorProj struct{}

func (*WebMercatorProj) Proj4() string { return WebMercatorProj4 }

func (*WebMercatorProj) ToWGS84(x, y float64) (lon, lat float64) {
	lon = x / OriginShift * 180
	lat = (2*math.Atan(math.Exp(y/OriginShift*math.Pi)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

func (*WebMercatorProj) FromWGS84(lon, lat float64) (x, y float64) {
	x = lon / 180 * OriginShift
	y = math.Log(math.Tan((90+lat)*math.Pi/360)) / math.Pi * OriginShift
	return x, y
}
