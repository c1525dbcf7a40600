package geotiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// TIFF tag IDs read from the first image directory.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoASCIIParams      = 34737
	tagGDALNoData          = 42113
)

// TIFF data types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndef     = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
	dtLong8     = 16
	dtSLong8    = 17
	dtIFD8      = 18
)

// directory holds the georeferencing tags of a TIFF's first image.
type directory struct {
	Width               uint32
	Height              uint32
	ModelPixelScale     []float64
	ModelTiepoint       []float64
	ModelTransformation []float64
	GeoKeys             []uint16
	GeoDoubleParams     []float64
	GeoASCIIParams      string
	NoData              string
}

type tiffEntry struct {
	Tag      uint16
	DataType uint16
	Count    uint64
	Value    []byte
}

// readDirectory parses the header and first IFD of a classic or BigTIFF
// stream.
func readDirectory(r io.ReadSeeker) (*directory, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading TIFF header: %w", err)
	}

	var bo binary.ByteOrder
	switch string(header[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid TIFF byte order: %x", header[0:2])
	}

	magic := bo.Uint16(header[2:4])
	if magic != 42 && magic != 43 {
		return nil, fmt.Errorf("invalid TIFF magic: %d", magic)
	}
	big := magic == 43

	var offset uint64
	if big {
		var rest [8]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return nil, fmt.Errorf("reading BigTIFF header: %w", err)
		}
		offset = bo.Uint64(rest[:])
	} else {
		offset = uint64(bo.Uint32(header[4:8]))
	}

	entries, err := readEntries(r, bo, offset, big)
	if err != nil {
		return nil, fmt.Errorf("parsing IFD at offset %d: %w", offset, err)
	}
	return buildDirectory(entries, bo), nil
}

func readEntries(r io.ReadSeeker, bo binary.ByteOrder, offset uint64, big bool) ([]tiffEntry, error) {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}

	countSize, entrySize, inline := 2, 12, 4
	if big {
		countSize, entrySize, inline = 8, 20, 8
	}
	buf := make([]byte, countSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	var n uint64
	if big {
		n = bo.Uint64(buf)
	} else {
		n = uint64(bo.Uint16(buf))
	}

	raw := make([]byte, int(n)*entrySize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}
	entries := make([]tiffEntry, n)
	for i := range entries {
		b := raw[i*entrySize : (i+1)*entrySize]
		e := tiffEntry{Tag: bo.Uint16(b[0:2]), DataType: bo.Uint16(b[2:4])}
		if big {
			e.Count = bo.Uint64(b[4:12])
			e.Value = append([]byte(nil), b[12:20]...)
		} else {
			e.Count = uint64(bo.Uint32(b[4:8]))
			e.Value = append([]byte(nil), b[8:12]...)
		}
		entries[i] = e
	}

	// Values larger than the inline slot live at the offset it holds.
	for i := range entries {
		e := &entries[i]
		size := int(e.Count) * dataTypeSize(e.DataType)
		if size <= inline {
			continue
		}
		var at uint64
		if big {
			at = bo.Uint64(e.Value)
		} else {
			at = uint64(bo.Uint32(e.Value))
		}
		if _, err := r.Seek(int64(at), io.SeekStart); err != nil {
			return nil, err
		}
		e.Value = make([]byte, size)
		if _, err := io.ReadFull(r, e.Value); err != nil {
			return nil, fmt.Errorf("tag %d: %w", e.Tag, err)
		}
	}
	return entries, nil
}

func dataTypeSize(dt uint16) int {
	switch dt {
	case dtByte, dtASCII, dtSByte, dtUndef:
		return 1
	case dtShort, dtSShort:
		return 2
	case dtLong, dtSLong, dtFloat:
		return 4
	case dtRational, dtSRational, dtDouble, dtLong8, dtSLong8, dtIFD8:
		return 8
	default:
		return 1
	}
}

func buildDirectory(entries []tiffEntry, bo binary.ByteOrder) *directory {
	d := &directory{}
	for _, e := range entries {
		switch e.Tag {
		case tagImageWidth:
			d.Width = uint32Value(e, bo)
		case tagImageLength:
			d.Height = uint32Value(e, bo)
		case tagModelPixelScale:
			d.ModelPixelScale = float64Values(e, bo)
		case tagModelTiepoint:
			d.ModelTiepoint = float64Values(e, bo)
		case tagModelTransformation:
			d.ModelTransformation = float64Values(e, bo)
		case tagGeoKeyDirectory:
			d.GeoKeys = uint16Values(e, bo)
		case tagGeoDoubleParams:
			d.GeoDoubleParams = float64Values(e, bo)
		case tagGeoASCIIParams:
			d.GeoASCIIParams = asciiValue(e)
		case tagGDALNoData:
			d.NoData = asciiValue(e)
		}
	}
	return d
}

func uint32Value(e tiffEntry, bo binary.ByteOrder) uint32 {
	switch e.DataType {
	case dtShort:
		return uint32(bo.Uint16(e.Value))
	case dtLong:
		return bo.Uint32(e.Value)
	case dtLong8:
		return uint32(bo.Uint64(e.Value))
	default:
		return uint32(e.Value[0])
	}
}

func uint16Values(e tiffEntry, bo binary.ByteOrder) []uint16 {
	out := make([]uint16, e.Count)
	for i := range out {
		out[i] = bo.Uint16(e.Value[i*2:])
	}
	return out
}

func float64Values(e tiffEntry, bo binary.ByteOrder) []float64 {
	out := make([]float64, e.Count)
	for i := range out {
		switch e.DataType {
		case dtDouble:
			out[i] = math.Float64frombits(bo.Uint64(e.Value[i*8:]))
		case dtFloat:
			out[i] = float64(math.Float32frombits(bo.Uint32(e.Value[i*4:])))
		}
	}
	return out
}

func asciiValue(e tiffEntry) string {
	n := min(int(e.Count), len(e.Value))
	return strings.TrimRight(string(e.Value[:n]), "\x00 ")
}
