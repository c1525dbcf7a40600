package pixel

import "math"

// bicubic computes the Catmull-Rom (a = -0.5) bicubic kernel value:
//
//	W(x) = 1.5|x|³ - 2.5|x|² + 1         for |x| ≤ 1
//	W(x) = -0.5|x|³ + 2.5|x|² - 4|x| + 2 for 1 < |x| ≤ 2
//	W(x) = 0                              for |x| > 2
func bicubic(x float64) float64 {
	if x < 0 {
		x = -x
	}
	if x >= 2 {
		return 0
	}
	x2 := x * x
	x3 := x2 * x
	if x <= 1 {
		return 1.5*x3 - 2.5*x2 + 1
	}
	return -0.5*x3 + 2.5*x2 - 4*x + 2
}

// bicubicLUTSize is the number of table entries over [0, 2).
const bicubicLUTSize = 1024

var bicubicTable [bicubicLUTSize]float64

func init() {
	for i := range bicubicLUTSize {
		bicubicTable[i] = bicubic(float64(i) * 2.0 / bicubicLUTSize)
	}
}

// bicubicLUT evaluates the kernel via table lookup with linear interpolation.
func bicubicLUT(x float64) float64 {
	if x < 0 {
		x = -x
	}
	if x >= 2 {
		return 0
	}
	pos := x * (bicubicLUTSize / 2.0)
	idx := int(pos)
	if idx >= bicubicLUTSize-1 {
		return bicubicTable[bicubicLUTSize-1]
	}
	frac := pos - float64(idx)
	return bicubicTable[idx]*(1-frac) + bicubicTable[idx+1]*frac
}

// SampleBicubic interpolates src at the continuous position (fx, fy), where
// integer coordinates are pixel centers. Taps outside src read the zero
// pixel. Transparent taps are left out of the color sum so they do not
// darken the result; alpha uses the full kernel so coverage fades at edges.
func SampleBicubic[P Pixel[P]](src *Image[P], fx, fy float64) P {
	var zero P
	if math.IsNaN(fx) || math.IsNaN(fy) ||
		fx <= -2 || fy <= -2 || fx >= float64(src.W)+1 || fy >= float64(src.H)+1 {
		return zero
	}

	const n = 4
	ix0 := int(math.Floor(fx)) - 1
	iy0 := int(math.Floor(fy)) - 1

	var wx, wy [n]float64
	for k := range n {
		wx[k] = bicubicLUT(fx - float64(ix0+k))
		wy[k] = bicubicLUT(fy - float64(iy0+k))
	}

	var color Vec
	var alpha, wColor float64
	for ky := range n {
		y := iy0 + ky
		if y < 0 || y >= src.H || wy[ky] == 0 {
			continue
		}
		row := src.Pix[y*src.W : (y+1)*src.W]
		for kx := range n {
			x := ix0 + kx
			if x < 0 || x >= src.W {
				continue
			}
			wt := wx[kx] * wy[ky]
			if wt == 0 {
				continue
			}
			p := row[x]
			if p.IsTransparent() {
				continue
			}
			v := p.Vec()
			alpha += v[3] * wt
			color = color.Add(v.Scale(wt))
			wColor += wt
		}
	}

	if wColor <= 0 || alpha <= 0 {
		return zero
	}
	color = color.Scale(1 / wColor)
	color[3] = alpha
	return zero.FromVec(color)
}
