package pmtiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestWriter(t *testing.T, name string) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	w, err := NewWriter(path, WriterOptions{
		MinZoom:  0,
		MaxZoom:  2,
		Bounds:   bound(-180, -90, 180, 90),
		TileType: TileTypePNG,
		TileSize: 256,
		Name:     "test",
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w, path
}

func openTestReader(t *testing.T, path string) *Reader {
	t.Helper()
	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestWriterReaderRoundTrip(t *testing.T) {
	w, path := newTestWriter(t, "round.pmtiles")
	tiles := map[[3]int]string{
		{0, 0, 0}: "root",
		{1, 0, 0}: "nw",
		{1, 1, 0}: "ne",
		{1, 0, 1}: "sw",
		{2, 3, 3}: "corner",
	}
	for k, v := range tiles {
		if err := w.WriteTile(k[0], k[1], k[2], []byte(v)); err != nil {
			t.Fatalf("WriteTile %v: %v", k, err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := os.Stat(path + ".partial"); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}

	r := openTestReader(t, path)
	h := r.Header()
	if h.NumAddressedTiles != 5 || h.NumTileContents != 5 || !h.Clustered {
		t.Errorf("header = %+v", h)
	}
	if h.MinZoom != 0 || h.MaxZoom != 2 || h.TileType != TileTypePNG {
		t.Errorf("zoom/type = %d-%d/%d", h.MinZoom, h.MaxZoom, h.TileType)
	}
	for k, v := range tiles {
		got, err := r.ReadTile(k[0], k[1], k[2])
		if err != nil {
			t.Fatalf("ReadTile %v: %v", k, err)
		}
		if string(got) != v {
			t.Errorf("tile %v = %q, want %q", k, got, v)
		}
	}
	if _, err := r.ReadTile(2, 0, 0); !errors.Is(err, ErrTileNotFound) {
		t.Errorf("missing tile err = %v", err)
	}

	if got := r.TilesAtZoom(1); len(got) != 3 {
		t.Errorf("TilesAtZoom(1) = %v", got)
	}
	if got := r.TilesAtZoom(2); len(got) != 1 || got[0] != [3]int{2, 3, 3} {
		t.Errorf("TilesAtZoom(2) = %v", got)
	}
	if r.NumTiles() != 5 {
		t.Errorf("NumTiles = %d", r.NumTiles())
	}

	meta, err := r.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta["name"] != "test" || meta["format"] != "png" || meta["crs"] != "EPSG:4326" {
		t.Errorf("metadata = %v", meta)
	}
	if meta["bounds"] != "-180.000000,-90.000000,180.000000,90.000000" {
		t.Errorf("bounds = %v", meta["bounds"])
	}
}

func TestWriterDeduplicates(t *testing.T) {
	w, path := newTestWriter(t, "dedup.pmtiles")
	uniform := []byte("uniform-tile")
	for _, k := range [][3]int{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {1, 1, 1}} {
		if err := w.WriteTile(k[0], k[1], k[2], uniform); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.WriteTile(1, 1, 0, []byte("unique")); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r := openTestReader(t, path)
	h := r.Header()
	if h.NumAddressedTiles != 5 || h.NumTileContents != 2 {
		t.Errorf("addressed=%d contents=%d", h.NumAddressedTiles, h.NumTileContents)
	}
	// IDs 0..3 share the uniform blob and collapse into one run.
	if h.NumTileEntries != 2 {
		t.Errorf("entries = %d, want 2", h.NumTileEntries)
	}
	if h.TileDataLength != uint64(len(uniform)+len("unique")) {
		t.Errorf("tile data length = %d", h.TileDataLength)
	}
	got, err := r.ReadTile(1, 1, 1)
	if err != nil || string(got) != string(uniform) {
		t.Errorf("ReadTile = %q, %v", got, err)
	}
}

func TestWriterSkipsEmptyTiles(t *testing.T) {
	w, path := newTestWriter(t, "empty.pmtiles")
	if err := w.WriteTile(0, 0, 0, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteTile(1, 0, 0, []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	if n := openTestReader(t, path).NumTiles(); n != 1 {
		t.Errorf("NumTiles = %d, want 1", n)
	}
}

func TestWriterSetExtent(t *testing.T) {
	w, path := newTestWriter(t, "extent.pmtiles")
	if err := w.WriteTile(3, 5, 2, []byte("x")); err != nil {
		t.Fatal(err)
	}
	w.SetExtent(bound(45, 0, 90, 45), 3, 3)
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}
	h := openTestReader(t, path).Header()
	if h.MinZoom != 3 || h.MaxZoom != 3 || h.CenterZoom != 3 {
		t.Errorf("zooms = %d %d %d", h.MinZoom, h.MaxZoom, h.CenterZoom)
	}
	if h.Bounds != bound(45, 0, 90, 45) {
		t.Errorf("bounds = %v", h.Bounds)
	}
	if h.Center[0] != 67.5 || h.Center[1] != 22.5 {
		t.Errorf("center = %v", h.Center)
	}
}

func TestWriterFinalizeTwice(t *testing.T) {
	w, _ := newTestWriter(t, "twice.pmtiles")
	if err := w.Finalize(); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if err := w.Finalize(); err == nil {
		t.Error("second Finalize should fail")
	}
	if err := w.WriteTile(0, 0, 0, []byte("late")); err == nil {
		t.Error("WriteTile after Finalize should fail")
	}
}

func TestWriterAbort(t *testing.T) {
	w, path := newTestWriter(t, "aborted.pmtiles")
	spill := w.spill.Name()
	if err := w.WriteTile(0, 0, 0, []byte("data")); err != nil {
		t.Fatal(err)
	}
	w.Abort()
	for _, p := range []string{path, spill} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists after Abort", p)
		}
	}
}

func TestWriterConcurrent(t *testing.T) {
	w, path := newTestWriter(t, "concurrent.pmtiles")
	const maxZoom = 3
	var wg sync.WaitGroup
	errs := make(chan error, 128)
	total := 0
	for z := 0; z <= maxZoom; z++ {
		n := 1 << z
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				total++
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- w.WriteTile(z, x, y, []byte(fmt.Sprintf("%d/%d/%d", z, x, y)))
				}()
			}
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("WriteTile: %v", err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatal(err)
	}

	r := openTestReader(t, path)
	if r.NumTiles() != total {
		t.Fatalf("NumTiles = %d, want %d", r.NumTiles(), total)
	}
	got, err := r.ReadTile(3, 6, 1)
	if err != nil || string(got) != "3/6/1" {
		t.Errorf("ReadTile(3,6,1) = %q, %v", got, err)
	}
}
