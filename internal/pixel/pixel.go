package pixel

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Channel is the set of numeric types a pixel channel can be stored as.
type Channel interface {
	constraints.Integer | constraints.Float
}

// Vec holds the channels of one pixel as float64 in R, G, B, A order.
// Gray pixels replicate their value into the first three slots.
type Vec [4]float64

// Add returns v + o.
func (v Vec) Add(o Vec) Vec {
	return Vec{v[0] + o[0], v[1] + o[1], v[2] + o[2], v[3] + o[3]}
}

// Scale returns v * f.
func (v Vec) Scale(f float64) Vec {
	return Vec{v[0] * f, v[1] * f, v[2] * f, v[3] * f}
}

// Pixel is the capability set the pyramid algorithms need from a pixel
// type: a zero value (the Go zero value, which is fully transparent), an
// alpha test, and conversion to and from float arithmetic for filtering.
//
// P is the implementing type itself, so algorithms are written as
// func F[P Pixel[P]](...).
type Pixel[P any] interface {
	comparable
	// IsTransparent reports whether the alpha channel is zero.
	IsTransparent() bool
	// Vec widens the pixel to float64 channels.
	Vec() Vec
	// FromVec narrows v back to the pixel type, rounding and clamping
	// integer channels. The receiver is ignored.
	FromVec(v Vec) P
	// Max is the channel value meaning full intensity and full opacity.
	Max() float64
}

// GrayA is a gray value with alpha.
type GrayA[T Channel] struct {
	V, A T
}

func (p GrayA[T]) IsTransparent() bool { return p.A == 0 }

func (p GrayA[T]) Vec() Vec {
	v := float64(p.V)
	return Vec{v, v, v, float64(p.A)}
}

func (GrayA[T]) FromVec(v Vec) GrayA[T] {
	return GrayA[T]{V: fromFloat[T](v[0]), A: fromFloat[T](v[3])}
}

func (GrayA[T]) Max() float64 { return channelMax[T]() }

// RGBA is a non-premultiplied color with alpha.
type RGBA[T Channel] struct {
	R, G, B, A T
}

func (p RGBA[T]) IsTransparent() bool { return p.A == 0 }

func (p RGBA[T]) Vec() Vec {
	return Vec{float64(p.R), float64(p.G), float64(p.B), float64(p.A)}
}

func (RGBA[T]) FromVec(v Vec) RGBA[T] {
	return RGBA[T]{
		R: fromFloat[T](v[0]),
		G: fromFloat[T](v[1]),
		B: fromFloat[T](v[2]),
		A: fromFloat[T](v[3]),
	}
}

func (RGBA[T]) Max() float64 { return channelMax[T]() }

// Kind identifies one of the pixel instantiations a pyramid can be built with.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindGrayA8
	KindGrayA16
	KindGrayAF32
	KindRGBA8
)

var kindNames = map[Kind]string{
	KindGrayA8:   "graya8",
	KindGrayA16:  "graya16",
	KindGrayAF32: "grayaf32",
	KindRGBA8:    "rgba8",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsGray reports whether the kind carries a single value channel.
func (k Kind) IsGray() bool {
	return k == KindGrayA8 || k == KindGrayA16 || k == KindGrayAF32
}

// ParseKind maps a name such as "rgba8" to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown pixel type %q (supported: graya8, graya16, grayaf32, rgba8)", s)
}

// KindOf returns the Kind of the pixel type P, or KindUnknown.
func KindOf[P any]() Kind {
	var zero P
	switch any(zero).(type) {
	case GrayA[uint8]:
		return KindGrayA8
	case GrayA[int16]:
		return KindGrayA16
	case GrayA[float32]:
		return KindGrayAF32
	case RGBA[uint8]:
		return KindRGBA8
	}
	return KindUnknown
}

// channelRange returns the representable range of T.
func channelRange[T Channel]() (lo, hi float64) {
	var zero T
	switch any(zero).(type) {
	case float32, float64:
		return math.Inf(-1), math.Inf(1)
	case uint8:
		return 0, math.MaxUint8
	case uint16:
		return 0, math.MaxUint16
	case uint32:
		return 0, math.MaxUint32
	case int8:
		return math.MinInt8, math.MaxInt8
	case int16:
		return math.MinInt16, math.MaxInt16
	case int32:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}

func channelMax[T Channel]() float64 {
	_, hi := channelRange[T]()
	if math.IsInf(hi, 1) {
		return 1
	}
	return hi
}

// fromFloat converts v to T, rounding and clamping for integer channels.
func fromFloat[T Channel](v float64) T {
	lo, hi := channelRange[T]()
	if math.IsInf(hi, 1) {
		return T(v)
	}
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return T(v)
}
