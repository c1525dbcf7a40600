package pmtiles

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
)

// Tile types.
const (
	TileTypeUnknown uint8 = 0
	TileTypeMVT     uint8 = 1
	TileTypePNG     uint8 = 2
	TileTypeJPEG    uint8 = 3
	TileTypeWebP    uint8 = 4
	TileTypeAVIF    uint8 = 5
)

var tileTypeNames = map[uint8]string{
	TileTypeMVT:  "pbf",
	TileTypePNG:  "png",
	TileTypeJPEG: "jpg",
	TileTypeWebP: "webp",
	TileTypeAVIF: "avif",
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	MinZoom     int
	MaxZoom     int
	Bounds      orb.Bound
	TileType    uint8
	TileSize    int
	TempDir     string
	Name        string
	Description string
	Attribution string
}

var errFinalized = errors.New("archive already finalized")

// blob locates tile bytes in the spill file.
type blob struct {
	offset uint64
	length uint32
}

// Writer assembles an archive in two passes. Tiles are appended to a spill
// file as they arrive; Finalize orders them by tile ID and writes the
// directories, metadata and data. Identical tiles are stored once.
type Writer struct {
	path string
	opts WriterOptions

	mu      sync.Mutex
	spill   *os.File
	size    uint64
	entries []Entry
	blobs   map[uint64]blob
	done    bool
}

// NewWriter creates the spill file next to path unless opts.TempDir is set.
func NewWriter(path string, opts WriterOptions) (*Writer, error) {
	dir := opts.TempDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	spill, err := os.CreateTemp(dir, "pmtiles-spill-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating spill file: %w", err)
	}
	return &Writer{
		path:  path,
		opts:  opts,
		spill: spill,
		blobs: make(map[uint64]blob),
	}, nil
}

func contentHash(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// WriteTile adds one tile. Empty data is ignored. Safe for concurrent use.
func (w *Writer) WriteTile(z, x, y int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	id := ZXYToTileID(z, x, y)
	key := contentHash(data)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return errFinalized
	}
	b, ok := w.blobs[key]
	if !ok || b.length != uint32(len(data)) {
		if _, err := w.spill.Write(data); err != nil {
			return fmt.Errorf("spilling tile %d/%d/%d: %w", z, x, y, err)
		}
		b = blob{offset: w.size, length: uint32(len(data))}
		w.size += uint64(len(data))
		w.blobs[key] = b
	}
	w.entries = append(w.entries, Entry{TileID: id, Offset: b.offset, Length: b.length, RunLength: 1})
	return nil
}

// SetExtent replaces the bounds and zoom range given at construction, for
// callers that only know them once every tile is written.
func (w *Writer) SetExtent(bounds orb.Bound, minZoom, maxZoom int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opts.Bounds = bounds
	w.opts.MinZoom = minZoom
	w.opts.MaxZoom = maxZoom
}

// Finalize writes the archive. The output appears under its final name only
// once it is complete.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return errFinalized
	}
	w.done = true
	defer w.removeSpill()

	// Tile data follows directory order so the archive is clustered.
	data, err := w.cluster()
	if err != nil {
		return fmt.Errorf("clustering tile data: %w", err)
	}
	defer os.Remove(data.Name())
	defer data.Close()

	root, leaves, err := buildDirectory(w.entries)
	if err != nil {
		return fmt.Errorf("building directory: %w", err)
	}
	meta, err := w.metadata()
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	h := NewHeader(w.opts)
	h.RootDirOffset = HeaderSize
	h.RootDirLength = uint64(len(root))
	h.MetadataOffset = h.RootDirOffset + h.RootDirLength
	h.MetadataLength = uint64(len(meta))
	h.LeafDirOffset = h.MetadataOffset + h.MetadataLength
	h.LeafDirLength = uint64(len(leaves))
	h.TileDataOffset = h.LeafDirOffset + h.LeafDirLength
	h.TileDataLength = w.size
	h.NumAddressedTiles = uint64(len(w.entries))
	h.NumTileEntries = uint64(len(optimizeRunLengths(w.entries)))
	h.NumTileContents = uint64(len(w.blobs))

	partial := w.path + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := writeArchive(out, &h, root, meta, leaves, data); err != nil {
		out.Close()
		os.Remove(partial)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return err
	}
	return os.Rename(partial, w.path)
}

func writeArchive(out io.Writer, h *Header, root, meta, leaves []byte, data io.ReadSeeker) error {
	bw := bufio.NewWriterSize(out, 1<<20)
	for _, part := range []struct {
		name string
		b    []byte
	}{
		{"header", h.Serialize()},
		{"root directory", root},
		{"metadata", meta},
		{"leaf directories", leaves},
	} {
		if _, err := bw.Write(part.b); err != nil {
			return fmt.Errorf("writing %s: %w", part.name, err)
		}
	}
	if _, err := data.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.Copy(bw, data); err != nil {
		return fmt.Errorf("copying tile data: %w", err)
	}
	return bw.Flush()
}

// cluster sorts the entries by tile ID and copies each blob, on its first
// use, into a new spill file in that order. Shared blobs stay shared.
func (w *Writer) cluster() (*os.File, error) {
	dir := w.opts.TempDir
	if dir == "" {
		dir = filepath.Dir(w.path)
	}
	out, err := os.CreateTemp(dir, "pmtiles-data-*.tmp")
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*os.File, error) {
		out.Close()
		os.Remove(out.Name())
		return nil, err
	}

	sortByTileID(w.entries)
	moved := make(map[uint64]uint64, len(w.blobs))
	bw := bufio.NewWriterSize(out, 1<<20)
	buf := make([]byte, 0, 256*1024)
	var size uint64
	for i := range w.entries {
		e := &w.entries[i]
		if off, ok := moved[e.Offset]; ok {
			e.Offset = off
			continue
		}
		buf = slices.Grow(buf[:0], int(e.Length))[:e.Length]
		if _, err := w.spill.ReadAt(buf, int64(e.Offset)); err != nil {
			return fail(fmt.Errorf("reading blob at %d: %w", e.Offset, err))
		}
		if _, err := bw.Write(buf); err != nil {
			return fail(err)
		}
		moved[e.Offset] = size
		e.Offset = size
		size += uint64(e.Length)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	w.size = size
	return out, nil
}

func (w *Writer) removeSpill() {
	if w.spill == nil {
		return
	}
	w.spill.Close()
	os.Remove(w.spill.Name())
	w.spill = nil
}

// Abort discards the archive.
func (w *Writer) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	w.removeSpill()
}

// metadata returns the gzipped JSON metadata. Tiles address the square
// Plate Carrée quadtree: level 0 spans 360° in both directions.
func (w *Writer) metadata() ([]byte, error) {
	name := w.opts.Name
	if name == "" {
		name = "platepyramid"
	}
	format := tileTypeNames[w.opts.TileType]
	if format == "" {
		format = "unknown"
	}
	b, c := w.opts.Bounds, w.opts.Bounds.Center()
	meta := map[string]any{
		"name":      name,
		"format":    format,
		"type":      "baselayer",
		"crs":       "EPSG:4326",
		"tile_grid": "plate-carree-quadtree",
		"minzoom":   strconv.Itoa(w.opts.MinZoom),
		"maxzoom":   strconv.Itoa(w.opts.MaxZoom),
		"bounds":    fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.Min[0], b.Min[1], b.Max[0], b.Max[1]),
		"center":    fmt.Sprintf("%.6f,%.6f,%d", c[0], c[1], (w.opts.MinZoom+w.opts.MaxZoom)/2),
	}
	if w.opts.TileSize > 0 {
		meta["tile_size"] = w.opts.TileSize
	}
	if w.opts.Description != "" {
		meta["description"] = w.opts.Description
	}
	if w.opts.Attribution != "" {
		meta["attribution"] = w.opts.Attribution
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(meta); err != nil {
		return nil, err
	}
	return compressGzip(bytes.TrimSpace(buf.Bytes()))
}
