package pixel

import "sync"

// poolKey identifies a pool by image dimensions and pixel type. zero holds
// the zero pixel so each instantiation gets its own pools.
type poolKey struct {
	w, h int
	zero any
}

// pools maps poolKey → *sync.Pool of *Image[P]. Only a couple of sizes
// (tile and double tile) exist per run, so the map stays tiny.
var pools sync.Map

// GetImage returns a zeroed w×h image from the pool, or allocates a new one.
func GetImage[P Pixel[P]](w, h int) *Image[P] {
	var zero P
	if p, ok := pools.Load(poolKey{w, h, zero}); ok {
		if v := p.(*sync.Pool).Get(); v != nil {
			img := v.(*Image[P])
			img.Clear()
			return img
		}
	}
	return NewImage[P](w, h)
}

// PutImage returns img to the pool. Nil images are ignored; the caller must
// not touch img afterwards.
func PutImage[P Pixel[P]](img *Image[P]) {
	if img == nil {
		return
	}
	var zero P
	p, _ := pools.LoadOrStore(poolKey{img.W, img.H, zero}, &sync.Pool{})
	p.(*sync.Pool).Put(img)
}
