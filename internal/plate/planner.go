package plate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pspoerri/platepyramid/internal/georef"
)

// MinResolution is the floor of the working resolution, in pixels per 360°.
// It keeps tiny or degenerate inputs from selecting a nonsensical level.
const MinResolution = 256

// CorrectLongitude fixes lon/lat references whose longitudes fall outside
// [-180, 180]: an origin east of 180° moves one turn west, and an image
// whose top-right pixel still lies west of −180° moves one turn east. Both
// checks run, in that order. Projected references are returned unchanged.
func CorrectLongitude(ref georef.GeoReference, cols int) georef.GeoReference {
	if !ref.IsLonLat() {
		return ref
	}
	m := ref.Transform()
	if m[0][2] > 180 {
		m[0][2] -= 360
		ref = ref.WithTransform(m)
	}
	if lon, _ := ref.PixelToPoint(float64(cols-1), 0); lon < -180 {
		m[0][2] += 360
		ref = ref.WithTransform(m)
	}
	return ref
}

// Plan is the placement decision for one input image.
type Plan struct {
	// Ref is the corrected input reference.
	Ref georef.GeoReference
	// Level is the pyramid level the image is written to.
	Level int
	// Resolution is the working resolution in pixels per 360°.
	Resolution float64
	// Samples are the local resolutions at the center, left, right, top and
	// bottom sample points.
	Samples [5]float64
}

// PlanImage corrects ref for a cols×rows image and picks its level. It only
// fails when a projection cannot be resolved; degenerate geometry yields
// meaningless numbers instead.
func PlanImage(cols, rows int, ref georef.GeoReference, tileSize int) (Plan, error) {
	corrected := CorrectLongitude(ref, cols)

	// Only the output projection matters here; level 0 keeps the scale sane.
	out := GeoreferenceForLevel(0, tileSize).WithDatum(corrected.Datum())
	tr, err := georef.NewGeoTransform(corrected, out)
	if err != nil {
		return Plan{}, fmt.Errorf("planning: %w", err)
	}

	cx, cy := cols/2, rows/2
	dx, dy := cols/4, rows/4
	points := [5][2]int{
		{cx, cy},
		{cx - dx, cy},
		{cx + dx, cy},
		{cx, cy - dy},
		{cx, cy + dy},
	}
	p := Plan{Ref: corrected}
	for i, pt := range points {
		p.Samples[i] = tr.LocalResolution(float64(pt[0]), float64(pt[1]))
	}
	p.Resolution = WorkingResolution(p.Samples[:])
	p.Level = LevelForResolution(p.Resolution, tileSize)
	return p, nil
}

// WorkingResolution is the largest of MinResolution and samples. NaN
// samples are ignored.
func WorkingResolution(samples []float64) float64 {
	vals := make([]float64, 0, len(samples)+1)
	vals = append(vals, MinResolution)
	for _, s := range samples {
		if !math.IsNaN(s) {
			vals = append(vals, s)
		}
	}
	return floats.Max(vals)
}
