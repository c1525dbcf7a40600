package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// ErrTileNotFound is returned by ReadTile for tiles the archive lacks.
var ErrTileNotFound = errors.New("tile not in archive")

// maxLeafDepth bounds directory recursion on malformed archives.
const maxLeafDepth = 4

// Reader reads an archive written by Writer or any other v3 writer that
// gzips its directories.
type Reader struct {
	file   *os.File
	header Header
	// entries are tile runs sorted by tile ID, leaves already resolved.
	entries []Entry
}

// OpenReader parses the header and every directory of the archive at path.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{file: f}
	if err := r.load(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) load() error {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r.file, buf); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	h, err := DeserializeHeader(buf)
	if err != nil {
		return err
	}
	if h.InternalCompression != CompressionGzip {
		return fmt.Errorf("unsupported directory compression %d", h.InternalCompression)
	}
	r.header = h
	return r.walk(h.RootDirOffset, h.RootDirLength, 0)
}

func (r *Reader) walk(offset, length uint64, depth int) error {
	if depth > maxLeafDepth {
		return fmt.Errorf("leaf directories nested deeper than %d", maxLeafDepth)
	}
	data := make([]byte, length)
	if _, err := r.file.ReadAt(data, int64(offset)); err != nil {
		return fmt.Errorf("reading directory at %d: %w", offset, err)
	}
	entries, err := DeserializeDirectory(data)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.RunLength > 0 {
			r.entries = append(r.entries, e)
			continue
		}
		if err := r.walk(r.header.LeafDirOffset+e.Offset, uint64(e.Length), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) Header() Header { return r.header }

// find returns the run containing id.
func (r *Reader) find(id uint64) (Entry, bool) {
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].TileID > id })
	if i == 0 {
		return Entry{}, false
	}
	e := r.entries[i-1]
	if id >= e.TileID+uint64(e.RunLength) {
		return Entry{}, false
	}
	return e, true
}

// ReadTile returns the stored bytes of tile z/x/y.
func (r *Reader) ReadTile(z, x, y int) ([]byte, error) {
	e, ok := r.find(ZXYToTileID(z, x, y))
	if !ok {
		return nil, fmt.Errorf("%d/%d/%d: %w", z, x, y, ErrTileNotFound)
	}
	data := make([]byte, e.Length)
	if _, err := r.file.ReadAt(data, int64(r.header.TileDataOffset+e.Offset)); err != nil {
		return nil, fmt.Errorf("reading tile %d/%d/%d: %w", z, x, y, err)
	}
	return data, nil
}

// TilesAtZoom lists the [z, x, y] of every tile at zoom z in tile ID order.
func (r *Reader) TilesAtZoom(z int) [][3]int {
	lo, hi := levelStart(z), levelStart(z+1)
	var out [][3]int
	start := sort.Search(len(r.entries), func(i int) bool {
		e := r.entries[i]
		return e.TileID+uint64(e.RunLength) > lo
	})
	for _, e := range r.entries[start:] {
		if e.TileID >= hi {
			break
		}
		for id := max(e.TileID, lo); id < e.TileID+uint64(e.RunLength) && id < hi; id++ {
			_, x, y := TileIDToZXY(id)
			out = append(out, [3]int{z, x, y})
		}
	}
	return out
}

// NumTiles counts addressed tiles.
func (r *Reader) NumTiles() int {
	n := 0
	for _, e := range r.entries {
		n += int(e.RunLength)
	}
	return n
}

// Metadata decodes the JSON metadata. An archive without metadata yields nil.
func (r *Reader) Metadata() (map[string]any, error) {
	if r.header.MetadataLength == 0 {
		return nil, nil
	}
	raw := make([]byte, r.header.MetadataLength)
	if _, err := r.file.ReadAt(raw, int64(r.header.MetadataOffset)); err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	gr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decompressing metadata: %w", err)
	}
	defer gr.Close()
	var meta map[string]any
	if err := json.NewDecoder(gr).Decode(&meta); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	return meta, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}
