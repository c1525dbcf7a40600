package coord

import (
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"
)

// proj4Projection delegates to the proj4 engine for CRSs without a closed
// form here (UTM, ellipsoidal mercator, conic projections, ...).
type proj4Projection struct {
	def     string
	toWGS   proj.Transformer
	fromWGS proj.Transformer
}

func newProj4Projection(def string) (*proj4Projection, error) {
	src, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %v: %w", def, err, ErrUnknownProjection)
	}
	wgs, err := proj.Parse(LonLatProj4)
	if err != nil {
		return nil, fmt.Errorf("parsing WGS84: %w", err)
	}
	toWGS, err := src.NewTransform(wgs)
	if err != nil {
		return nil, fmt.Errorf("transform %q to WGS84: %v: %w", def, err, ErrUnknownProjection)
	}
	fromWGS, err := wgs.NewTransform(src)
	if err != nil {
		return nil, fmt.Errorf("transform WGS84 to %q: %v: %w", def, err, ErrUnknownProjection)
	}
	return &proj4Projection{def: def, toWGS: toWGS, fromWGS: fromWGS}, nil
}

func (p *proj4Projection) Proj4() string { return p.def }

// ToWGS84 returns NaN for points the projection cannot invert.
func (p *proj4Projection) ToWGS84(x, y float64) (lon, lat float64) {
	lon, lat, err := p.toWGS(x, y)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	return lon, lat
}

// FromWGS84 returns NaN for points outside the projection's domain.
func (p *proj4Projection) FromWGS84(lon, lat float64) (x, y float64) {
	x, y, err := p.fromWGS(lon, lat)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	return x, y
}
