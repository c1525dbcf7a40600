package pixel

// EdgeExtension selects how pixels outside an image are read while filtering.
type EdgeExtension int

const (
	// ZeroEdge reads the zero (transparent) pixel outside the image.
	ZeroEdge EdgeExtension = iota
	// ConstantEdge replicates the nearest edge pixel.
	ConstantEdge
)

// BoxKernel2 is the two-tap averaging kernel used before 2× decimation.
var BoxKernel2 = []float64{0.5, 0.5}

// SeparableConvolve filters src with kx along rows and then ky along
// columns. Output pixel x is Σ k[i]·src[x+center-i], so a two-tap kernel
// with center 1 averages each pixel with its right (or lower) neighbour.
// The result has the dimensions of src and comes from the pool.
func SeparableConvolve[P Pixel[P]](src *Image[P], kx, ky []float64, cx, cy int, edge EdgeExtension) *Image[P] {
	w, h := src.W, src.H
	tmp := make([]Vec, w*h)

	for y := 0; y < h; y++ {
		row := src.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc Vec
			for i, k := range kx {
				sx, ok := extend(x+cx-i, w, edge)
				if !ok {
					continue
				}
				acc = acc.Add(row[sx].Vec().Scale(k))
			}
			tmp[y*w+x] = acc
		}
	}

	dst := GetImage[P](w, h)
	var zero P
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc Vec
			for i, k := range ky {
				sy, ok := extend(y+cy-i, h, edge)
				if !ok {
					continue
				}
				acc = acc.Add(tmp[sy*w+x].Scale(k))
			}
			dst.Pix[y*w+x] = zero.FromVec(acc)
		}
	}
	return dst
}

// extend maps i into [0, n) according to edge. ok is false when the
// position reads the zero pixel.
func extend(i, n int, edge EdgeExtension) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	if edge == ZeroEdge {
		return 0, false
	}
	return clamp(i, 0, n-1), true
}

// Subsample keeps every factor-th pixel in both directions, starting at
// (0, 0). The result comes from the pool.
func Subsample[P Pixel[P]](src *Image[P], factor int) *Image[P] {
	w := (src.W + factor - 1) / factor
	h := (src.H + factor - 1) / factor
	dst := GetImage[P](w, h)
	for y := 0; y < h; y++ {
		srow := src.Pix[y*factor*src.W:]
		drow := dst.Pix[y*w : (y+1)*w]
		for x := range drow {
			drow[x] = srow[x*factor]
		}
	}
	return dst
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
