package pmtiles

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// HeaderSize is the length of a v3 header in bytes.
const HeaderSize = 127

const magic = "PMTiles"

// Compression values of the header's compression fields.
const (
	CompressionUnknown uint8 = iota
	CompressionNone
	CompressionGzip
	CompressionBrotli
	CompressionZstd
)

// ErrInvalidHeader is returned for data that is not a v3 archive header.
var ErrInvalidHeader = errors.New("invalid PMTiles header")

// Header is the fixed-size header at the start of an archive. Bounds and
// Center are in degrees; on disk they are stored as E7 integers.
type Header struct {
	RootDirOffset       uint64
	RootDirLength       uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirOffset       uint64
	LeafDirLength       uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	NumAddressedTiles   uint64
	NumTileEntries      uint64
	NumTileContents     uint64
	Clustered           bool
	InternalCompression uint8
	TileCompression     uint8
	TileType            uint8
	MinZoom             uint8
	MaxZoom             uint8
	Bounds              orb.Bound
	CenterZoom          uint8
	Center              orb.Point
}

// NewHeader fills the descriptive fields from opts. Offsets are set when
// the archive is finalized.
func NewHeader(opts WriterOptions) Header {
	return Header{
		Clustered:           true,
		InternalCompression: CompressionGzip,
		// Raster tiles arrive already compressed.
		TileCompression: CompressionNone,
		TileType:        opts.TileType,
		MinZoom:         uint8(opts.MinZoom),
		MaxZoom:         uint8(opts.MaxZoom),
		Bounds:          opts.Bounds,
		CenterZoom:      uint8((opts.MinZoom + opts.MaxZoom) / 2),
		Center:          opts.Bounds.Center(),
	}
}

func (h *Header) offsets() []*uint64 {
	return []*uint64{
		&h.RootDirOffset, &h.RootDirLength,
		&h.MetadataOffset, &h.MetadataLength,
		&h.LeafDirOffset, &h.LeafDirLength,
		&h.TileDataOffset, &h.TileDataLength,
		&h.NumAddressedTiles, &h.NumTileEntries, &h.NumTileContents,
	}
}

func (h *Header) positions() []*float64 {
	return []*float64{
		&h.Bounds.Min[0], &h.Bounds.Min[1],
		&h.Bounds.Max[0], &h.Bounds.Max[1],
	}
}

// Serialize encodes the header.
func (h *Header) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf, magic)
	buf[7] = 3

	le := binary.LittleEndian
	for i, p := range h.offsets() {
		le.PutUint64(buf[8+8*i:], *p)
	}
	if h.Clustered {
		buf[96] = 1
	}
	buf[97] = h.InternalCompression
	buf[98] = h.TileCompression
	buf[99] = h.TileType
	buf[100] = h.MinZoom
	buf[101] = h.MaxZoom
	for i, p := range h.positions() {
		le.PutUint32(buf[102+4*i:], toE7(*p))
	}
	buf[118] = h.CenterZoom
	le.PutUint32(buf[119:], toE7(h.Center[0]))
	le.PutUint32(buf[123:], toE7(h.Center[1]))
	return buf
}

// DeserializeHeader decodes a header written by Serialize or any other v3
// writer.
func DeserializeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes", ErrInvalidHeader, len(buf))
	}
	if string(buf[:7]) != magic {
		return h, fmt.Errorf("%w: bad magic %q", ErrInvalidHeader, buf[:7])
	}
	if buf[7] != 3 {
		return h, fmt.Errorf("%w: version %d", ErrInvalidHeader, buf[7])
	}

	le := binary.LittleEndian
	for i, p := range h.offsets() {
		*p = le.Uint64(buf[8+8*i:])
	}
	h.Clustered = buf[96] == 1
	h.InternalCompression = buf[97]
	h.TileCompression = buf[98]
	h.TileType = buf[99]
	h.MinZoom = buf[100]
	h.MaxZoom = buf[101]
	for i, p := range h.positions() {
		*p = fromE7(le.Uint32(buf[102+4*i:]))
	}
	h.CenterZoom = buf[118]
	h.Center = orb.Point{fromE7(le.Uint32(buf[119:])), fromE7(le.Uint32(buf[123:]))}
	return h, nil
}

func toE7(v float64) uint32 {
	return uint32(int32(math.Round(v * 1e7)))
}

func fromE7(v uint32) float64 {
	return float64(int32(v)) / 1e7
}
