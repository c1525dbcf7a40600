package pmtiles

import (
	"bytes"
	"cmp"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/pspoerri/platepyramid/internal/coord"
)

// Directory limits: a root directory holds at most maxRootEntries entries,
// beyond that the entries go into leaves of leafSize entries each.
const (
	maxRootEntries = 16384
	leafSize       = 4096
)

// Entry is one run of tiles in a directory. RunLength 0 marks a pointer
// to a leaf directory.
type Entry struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// levelStart returns the first tile ID of zoom z.
func levelStart(z int) uint64 {
	// Sum of 4^i for i < z.
	return ((uint64(1) << (2 * uint(z))) - 1) / 3
}

// ZXYToTileID maps a tile to its position along the per-zoom Hilbert curves.
func ZXYToTileID(z, x, y int) uint64 {
	n := uint64(1) << uint(z)
	return levelStart(z) + coord.HilbertIndex(uint64(x), uint64(y), n)
}

// TileIDToZXY is the inverse of ZXYToTileID.
func TileIDToZXY(id uint64) (z, x, y int) {
	for levelStart(z+1) <= id {
		z++
	}
	hx, hy := coord.HilbertPoint(id-levelStart(z), uint64(1)<<uint(z))
	return z, int(hx), int(hy)
}

func sortByTileID(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.TileID, b.TileID)
	})
}

// buildDirectory sorts entries, merges contiguous runs and serializes them.
// Large sets are split into leaf directories that the root points to.
func buildDirectory(entries []Entry) (root, leaves []byte, err error) {
	sortByTileID(entries)
	runs := optimizeRunLengths(entries)
	if len(runs) <= maxRootEntries {
		root, err = serializeDirectory(runs)
		return root, nil, err
	}

	var buf bytes.Buffer
	var pointers []Entry
	for chunk := range slices.Chunk(runs, leafSize) {
		data, err := serializeDirectory(chunk)
		if err != nil {
			return nil, nil, err
		}
		pointers = append(pointers, Entry{
			TileID: chunk[0].TileID,
			Offset: uint64(buf.Len()),
			Length: uint32(len(data)),
		})
		buf.Write(data)
	}
	root, err = serializeDirectory(pointers)
	return root, buf.Bytes(), err
}

// serializeDirectory writes entries column by column as varints: tile ID
// deltas, run lengths, lengths, then offsets where 0 means "directly after
// the previous entry" and anything else is offset+1. The result is gzipped.
func serializeDirectory(entries []Entry) ([]byte, error) {
	raw := binary.AppendUvarint(nil, uint64(len(entries)))
	var last uint64
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, e.TileID-last)
		last = e.TileID
	}
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, uint64(e.RunLength))
	}
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, uint64(e.Length))
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			raw = append(raw, 0)
			continue
		}
		raw = binary.AppendUvarint(raw, e.Offset+1)
	}
	return compressGzip(raw)
}

// DeserializeDirectory parses a gzipped directory.
func DeserializeDirectory(data []byte) ([]Entry, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gr.Close()
	raw, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("decompressing directory: %w", err)
	}

	r := bytes.NewReader(raw)
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("reading entry count: %w", err)
	}
	if n > uint64(len(raw)) {
		return nil, fmt.Errorf("entry count %d exceeds directory size", n)
	}
	entries := make([]Entry, n)

	column := func(name string, set func(i int, v uint64)) error {
		for i := range entries {
			v, err := binary.ReadUvarint(r)
			if err != nil {
				return fmt.Errorf("reading %s %d: %w", name, i, err)
			}
			set(i, v)
		}
		return nil
	}
	var id uint64
	if err := column("tile ID", func(i int, v uint64) {
		id += v
		entries[i].TileID = id
	}); err != nil {
		return nil, err
	}
	if err := column("run length", func(i int, v uint64) { entries[i].RunLength = uint32(v) }); err != nil {
		return nil, err
	}
	if err := column("length", func(i int, v uint64) { entries[i].Length = uint32(v) }); err != nil {
		return nil, err
	}
	if err := column("offset", func(i int, v uint64) {
		if v == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = v - 1
		}
	}); err != nil {
		return nil, err
	}
	return entries, nil
}

// optimizeRunLengths merges consecutive tile IDs that point at the same blob
// into one entry.
func optimizeRunLengths(entries []Entry) []Entry {
	if len(entries) == 0 {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	cur := entries[0]
	cur.RunLength = 1
	for _, e := range entries[1:] {
		if e.TileID == cur.TileID+uint64(cur.RunLength) && e.Offset == cur.Offset && e.Length == cur.Length {
			cur.RunLength++
			continue
		}
		out = append(out, cur)
		cur = e
		cur.RunLength = 1
	}
	return append(out, cur)
}

func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
