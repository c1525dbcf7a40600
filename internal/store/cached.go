package store

import (
	"context"
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"
)

const cacheTTL = 10 * time.Minute

// cachedTile lets ccache account entries by payload size.
type cachedTile []byte

func (c cachedTile) Size() int64 { return int64(len(c)) + 64 }

// CachedStore adds a read-through LRU cache in front of a Store. Only exact
// reads are cached: their result cannot change unless the same version is
// rewritten, and Put evicts that key. Misses are never cached. Returned
// payloads are shared and must not be modified.
type CachedStore struct {
	Store
	cache    *ccache.Cache[cachedTile]
	inflight singleflight.Group
}

// NewCachedStore wraps s with a cache holding roughly maxBytes of payload.
func NewCachedStore(s Store, maxBytes int64) *CachedStore {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	return &CachedStore{
		Store: s,
		cache: ccache.New(ccache.Configure[cachedTile]().MaxSize(maxBytes).ItemsToPrune(64)),
	}
}

func cacheKey(addr Address, version Version) string {
	return fmt.Sprintf("%d/%d/%d@%d", addr.Level, addr.Col, addr.Row, version)
}

func (c *CachedStore) Get(ctx context.Context, addr Address, version Version, exact bool) ([]byte, error) {
	if !exact {
		return c.Store.Get(ctx, addr, version, false)
	}
	key := cacheKey(addr, version)
	if item := c.cache.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}
	v, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		data, err := c.Store.Get(ctx, addr, version, true)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, cachedTile(data), cacheTTL)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *CachedStore) Put(ctx context.Context, addr Address, version Version, data []byte) error {
	err := c.Store.Put(ctx, addr, version, data)
	c.cache.Delete(cacheKey(addr, version))
	return err
}

// Close stops the cache and closes the wrapped store.
func (c *CachedStore) Close() error {
	c.cache.Stop()
	return c.Store.Close()
}
