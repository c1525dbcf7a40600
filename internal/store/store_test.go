package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pspoerri/platepyramid/internal/pixel"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "tiles.db"), 4)
	require.NoError(t, err)
	stores := map[string]Store{
		"memory": NewMemoryStore(4),
		"sqlite": sq,
		"cached": NewCachedStore(NewMemoryStore(4), 1<<20),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreVersionSemantics(t *testing.T) {
	ctx := context.Background()
	a := Address{Col: 1, Row: 2, Level: 3}
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, a, 5, []byte("v5")))
			require.NoError(t, s.Put(ctx, a, 9, []byte("v9")))

			got, err := s.Get(ctx, a, 5, true)
			require.NoError(t, err)
			assert.Equal(t, []byte("v5"), got)

			_, err = s.Get(ctx, a, 7, true)
			assert.True(t, errors.Is(err, ErrTileNotFound), "exact read of missing version")

			got, err = s.Get(ctx, a, 7, false)
			require.NoError(t, err)
			assert.Equal(t, []byte("v5"), got)

			got, err = s.Get(ctx, a, 100, false)
			require.NoError(t, err)
			assert.Equal(t, []byte("v9"), got)

			_, err = s.Get(ctx, a, 4, false)
			assert.True(t, errors.Is(err, ErrTileNotFound))

			_, err = s.Get(ctx, Address{Level: 3}, 9, false)
			assert.True(t, errors.Is(err, ErrTileNotFound))
		})
	}
}

func TestStoreOverwriteSameVersion(t *testing.T) {
	ctx := context.Background()
	a := Address{Col: 0, Row: 0, Level: 0}
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, a, 1, []byte("old")))
			_, err := s.Get(ctx, a, 1, true)
			require.NoError(t, err)
			require.NoError(t, s.Put(ctx, a, 1, []byte("new")))
			got, err := s.Get(ctx, a, 1, true)
			require.NoError(t, err)
			assert.Equal(t, []byte("new"), got)
		})
	}
}

func TestStoreListing(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, Address{Col: 1, Row: 0, Level: 1}, 2, []byte{1}))
			require.NoError(t, s.Put(ctx, Address{Col: 0, Row: 1, Level: 1}, 3, []byte{1}))
			require.NoError(t, s.Put(ctx, Address{Col: 0, Row: 0, Level: 1}, 7, []byte{1}))
			require.NoError(t, s.Put(ctx, Address{Col: 0, Row: 0, Level: 0}, 3, []byte{1}))

			vs, err := s.Versions(ctx)
			require.NoError(t, err)
			assert.Equal(t, []Version{2, 3, 7}, vs)

			addrs, err := s.Addresses(ctx, 1, 3)
			require.NoError(t, err)
			assert.Equal(t, []Address{{Col: 1, Row: 0, Level: 1}, {Col: 0, Row: 1, Level: 1}}, addrs)

			assert.Equal(t, 4, s.TileSize())
		})
	}
}

func TestSQLiteTileSizeRecorded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.db")

	_, err := OpenSQLite(path, 0)
	require.Error(t, err)

	s, err := OpenSQLite(path, 512)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 512, s.TileSize())
	require.NoError(t, s.Close())

	_, err = OpenSQLite(path, 256)
	assert.Error(t, err)
}

// countingStore counts reads that reach the backing store.
type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, addr Address, version Version, exact bool) ([]byte, error) {
	c.gets++
	return c.Store.Get(ctx, addr, version, exact)
}

func TestCachedStoreCachesExactReads(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewMemoryStore(4)}
	c := NewCachedStore(inner, 1<<20)
	defer c.Close()

	a := Address{Col: 0, Row: 0, Level: 0}
	require.NoError(t, c.Put(ctx, a, 1, []byte("x")))

	for i := 0; i < 3; i++ {
		got, err := c.Get(ctx, a, 1, true)
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), got)
	}
	assert.Equal(t, 1, inner.gets)

	// Latest-at-or-before reads bypass the cache.
	_, err := c.Get(ctx, a, 5, false)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.gets)

	// Misses are not cached.
	_, err = c.Get(ctx, a, 2, true)
	assert.True(t, errors.Is(err, ErrTileNotFound))
	_, err = c.Get(ctx, a, 2, true)
	assert.True(t, errors.Is(err, ErrTileNotFound))
	assert.Equal(t, 4, inner.gets)
}

func TestAddress(t *testing.T) {
	a := Address{Col: 5, Row: 3, Level: 3}
	assert.True(t, a.Valid())
	assert.Equal(t, Address{Col: 2, Row: 1, Level: 2}, a.Parent())
	assert.Equal(t, Address{Col: 11, Row: 6, Level: 4}, a.Child(1, 0))
	assert.Equal(t, a, a.Child(1, 1).Parent())
	assert.Equal(t, "3/5/3", a.String())

	assert.False(t, Address{Col: 8, Row: 0, Level: 3}.Valid())
	assert.False(t, Address{Col: 0, Row: -1, Level: 3}.Valid())
	assert.False(t, Address{Level: -1}.Valid())
}

func TestTilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(4)
	tiles := NewTiles[pixel.GrayA[int16]](s)

	img := pixel.NewImage[pixel.GrayA[int16]](4, 4)
	img.Set(1, 2, pixel.GrayA[int16]{V: -1234, A: 32767})
	img.Set(3, 3, pixel.GrayA[int16]{V: 8848, A: 32767})
	a := Address{Col: 0, Row: 0, Level: 0}
	require.NoError(t, tiles.WriteTile(ctx, a, 1, img))

	got, err := tiles.ReadTile(ctx, a, 1, true)
	require.NoError(t, err)
	defer pixel.PutImage(got)
	assert.Equal(t, img.Pix, got.Pix)

	_, err = tiles.ReadTile(ctx, a, 2, true)
	assert.True(t, errors.Is(err, ErrTileNotFound))

	err = tiles.WriteTile(ctx, a, 1, pixel.NewImage[pixel.GrayA[int16]](2, 2))
	assert.Error(t, err)
}

func TestTilesRejectsForeignPayload(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	a := Address{Col: 0, Row: 0, Level: 0}

	rgba := NewTiles[pixel.RGBA[uint8]](s)
	require.NoError(t, rgba.WriteTile(ctx, a, 1, pixel.NewImage[pixel.RGBA[uint8]](2, 2)))

	gray := NewTiles[pixel.GrayA[uint8]](s)
	_, err := gray.ReadTile(ctx, a, 1, true)
	assert.True(t, errors.Is(err, ErrCorruptTile))

	require.NoError(t, s.Put(ctx, a, 2, []byte{byte(pixel.KindGrayA8), 0xff, 0x00}))
	_, err = gray.ReadTile(ctx, a, 2, true)
	assert.True(t, errors.Is(err, ErrCorruptTile))

	require.NoError(t, s.Put(ctx, a, 3, nil))
	_, err = gray.ReadTile(ctx, a, 3, true)
	assert.True(t, errors.Is(err, ErrCorruptTile))
}

func TestTilesCarryForward(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	tiles := NewTiles[pixel.GrayA[uint8]](s)
	a := Address{Col: 0, Row: 0, Level: 0}
	img := pixel.Uniform(2, 2, pixel.GrayA[uint8]{V: 7, A: 255})
	require.NoError(t, tiles.WriteTile(ctx, a, 1, img))

	copied, err := tiles.CarryForward(ctx, a, 3)
	require.NoError(t, err)
	assert.True(t, copied)
	got, err := tiles.ReadTile(ctx, a, 3, true)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, got.Pix)
	pixel.PutImage(got)

	copied, err = tiles.CarryForward(ctx, a, 3)
	require.NoError(t, err)
	assert.False(t, copied)

	copied, err = tiles.CarryForward(ctx, Address{Col: 1, Row: 1, Level: 1}, 3)
	require.NoError(t, err)
	assert.False(t, copied)
}
