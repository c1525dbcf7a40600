package pixel

import "image"

// Image is a row-major pixel buffer.
type Image[P Pixel[P]] struct {
	Pix  []P
	W, H int
}

// NewImage allocates a w×h image with every pixel zero (transparent).
func NewImage[P Pixel[P]](w, h int) *Image[P] {
	return &Image[P]{Pix: make([]P, w*h), W: w, H: h}
}

// Uniform allocates a w×h image filled with p.
func Uniform[P Pixel[P]](w, h int, p P) *Image[P] {
	img := NewImage[P](w, h)
	img.Fill(p)
	return img
}

// Bounds returns (0,0)-(W,H).
func (m *Image[P]) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.W, m.H)
}

// At returns the pixel at (x, y). Out-of-range coordinates return the zero pixel.
func (m *Image[P]) At(x, y int) P {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		var zero P
		return zero
	}
	return m.Pix[y*m.W+x]
}

// Set writes p at (x, y). Out-of-range coordinates are ignored.
func (m *Image[P]) Set(x, y int, p P) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	m.Pix[y*m.W+x] = p
}

// Fill sets every pixel to p.
func (m *Image[P]) Fill(p P) {
	for i := range m.Pix {
		m.Pix[i] = p
	}
}

// Clear resets every pixel to zero.
func (m *Image[P]) Clear() {
	clear(m.Pix)
}

// Paste copies src into m with its top-left corner at (x0, y0), clipped to m.
func (m *Image[P]) Paste(src *Image[P], x0, y0 int) {
	r := src.Bounds().Add(image.Pt(x0, y0)).Intersect(m.Bounds())
	if r.Empty() {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst := m.Pix[y*m.W+r.Min.X : y*m.W+r.Max.X]
		sy := y - y0
		copy(dst, src.Pix[sy*src.W+r.Min.X-x0:])
	}
}

// Crop returns a copy of the pixels inside r. Parts of r outside m are zero.
func (m *Image[P]) Crop(r image.Rectangle) *Image[P] {
	out := NewImage[P](r.Dx(), r.Dy())
	out.Paste(m, -r.Min.X, -r.Min.Y)
	return out
}

// IsTransparent reports whether every pixel has zero alpha.
func (m *Image[P]) IsTransparent() bool {
	for _, p := range m.Pix {
		if !p.IsTransparent() {
			return false
		}
	}
	return true
}

// Over writes every non-transparent pixel of src onto m at the same position.
// Both images must have the same dimensions.
func (m *Image[P]) Over(src *Image[P]) {
	for i, p := range src.Pix {
		if !p.IsTransparent() {
			m.Pix[i] = p
		}
	}
}
