package store

import (
	"context"
	"sort"
	"sync"
)

type versionedTile struct {
	version Version
	data    []byte
}

// MemoryStore keeps every tile version in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	tiles    map[Address][]versionedTile // ascending by version
	tileSize int
}

// NewMemoryStore creates an empty store for tiles of tileSize×tileSize pixels.
func NewMemoryStore(tileSize int) *MemoryStore {
	return &MemoryStore{
		tiles:    make(map[Address][]versionedTile, 64),
		tileSize: tileSize,
	}
}

func (s *MemoryStore) TileSize() int { return s.tileSize }

func (s *MemoryStore) Get(ctx context.Context, addr Address, version Version, exact bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	vs := s.tiles[addr]
	// First entry newer than version; the candidate sits just before it.
	i := sort.Search(len(vs), func(i int) bool { return vs[i].version > version })
	if i == 0 {
		return nil, notFound(addr, version)
	}
	vt := vs[i-1]
	if exact && vt.version != version {
		return nil, notFound(addr, version)
	}
	return vt.data, nil
}

func (s *MemoryStore) Put(ctx context.Context, addr Address, version Version, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.tiles[addr]
	i := sort.Search(len(vs), func(i int) bool { return vs[i].version >= version })
	if i < len(vs) && vs[i].version == version {
		vs[i].data = buf
		return nil
	}
	vs = append(vs, versionedTile{})
	copy(vs[i+1:], vs[i:])
	vs[i] = versionedTile{version: version, data: buf}
	s.tiles[addr] = vs
	return nil
}

func (s *MemoryStore) Versions(ctx context.Context) ([]Version, error) {
	s.mu.RLock()
	seen := make(map[Version]struct{})
	for _, vs := range s.tiles {
		for _, vt := range vs {
			seen[vt.version] = struct{}{}
		}
	}
	s.mu.RUnlock()

	out := make([]Version, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryStore) Addresses(ctx context.Context, level int, version Version) ([]Address, error) {
	s.mu.RLock()
	var out []Address
	for addr, vs := range s.tiles {
		if addr.Level == level && len(vs) > 0 && vs[0].version <= version {
			out = append(out, addr)
		}
	}
	s.mu.RUnlock()
	sortAddresses(out)
	return out, nil
}

// Len returns the number of stored (address, version) pairs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, vs := range s.tiles {
		n += len(vs)
	}
	return n
}

func (s *MemoryStore) Close() error { return nil }

func sortAddresses(addrs []Address) {
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Row != addrs[j].Row {
			return addrs[i].Row < addrs[j].Row
		}
		return addrs[i].Col < addrs[j].Col
	})
}
