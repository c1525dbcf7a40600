package geotiff

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pspoerri/platepyramid/internal/coord"
	"github.com/pspoerri/platepyramid/internal/georef"
)

// WorldFile holds the six affine parameters of an ESRI world file. X and Y
// address the center of the upper-left pixel.
type WorldFile struct {
	A, D, B, E, C, F float64
}

// Transform returns the pixel-center affine x = A·col + B·row + C,
// y = D·col + E·row + F.
func (w WorldFile) Transform() georef.Matrix3x3 {
	return georef.Matrix3x3{
		{w.A, w.B, w.C},
		{w.D, w.E, w.F},
		{0, 0, 1},
	}
}

// GeoReference returns a PixelAsPoint reference in the given CRS.
func (w WorldFile) GeoReference(proj4 string) georef.GeoReference {
	return georef.New().
		WithTransform(w.Transform()).
		WithPixelInterpretation(georef.PixelAsPoint).
		WithProj4(proj4)
}

// ParseWorldFile reads the six lines of a world file.
func ParseWorldFile(path string) (WorldFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return WorldFile{}, err
	}
	defer f.Close()

	var vals []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(vals) < 6 {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return WorldFile{}, fmt.Errorf("%s line %d: %w", path, len(vals)+1, err)
		}
		vals = append(vals, v)
	}
	if err := scanner.Err(); err != nil {
		return WorldFile{}, err
	}
	if len(vals) < 6 {
		return WorldFile{}, fmt.Errorf("%s: expected 6 values, got %d", path, len(vals))
	}
	w := WorldFile{A: vals[0], D: vals[1], B: vals[2], E: vals[3], C: vals[4], F: vals[5]}
	if w.A == 0 && w.B == 0 || w.D == 0 && w.E == 0 {
		return WorldFile{}, fmt.Errorf("%s: degenerate transform", path)
	}
	return w, nil
}

// worldFileExts maps an image extension to its short sidecar extension.
var worldFileExts = map[string]string{
	".tif":  ".tfw",
	".tiff": ".tfw",
	".jpg":  ".jgw",
	".jpeg": ".jgw",
	".png":  ".pgw",
	".webp": ".wpw",
}

// FindWorldFile returns the sidecar world file of imagePath, or "" if there
// is none. The short form (.tfw), the appended form (.tifw) and .wld are
// tried in that order, in both cases.
func FindWorldFile(imagePath string) string {
	ext := filepath.Ext(imagePath)
	base := strings.TrimSuffix(imagePath, ext)
	lower := strings.ToLower(ext)

	var candidates []string
	if short, ok := worldFileExts[lower]; ok {
		candidates = append(candidates, short)
	}
	if len(lower) > 1 {
		candidates = append(candidates, lower+"w")
	}
	candidates = append(candidates, ".wld")

	for _, c := range candidates {
		for _, p := range []string{base + c, base + strings.ToUpper(c)} {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// inferProj4 guesses the CRS of a world file that came without one: values
// inside the lon/lat range are taken as degrees, anything within the web
// mercator extent as EPSG:3857.
func inferProj4(w WorldFile, cols, rows int) (string, error) {
	ref := w.GeoReference(coord.LonLatProj4)
	x0, y0 := ref.PixelToPoint(0, 0)
	x1, y1 := ref.PixelToPoint(float64(cols-1), float64(rows-1))
	inside := func(limX, limY float64) bool {
		for _, p := range [][2]float64{{x0, y0}, {x1, y1}} {
			if p[0] < -limX || p[0] > limX || p[1] < -limY || p[1] > limY {
				return false
			}
		}
		return true
	}
	switch {
	case inside(360, 90):
		return coord.LonLatProj4, nil
	case inside(coord.OriginShift, coord.OriginShift):
		return coord.WebMercatorProj4, nil
	}
	return "", ErrNoProjection
}
