// Package store persists versioned pyramid tiles.
//
// A Store holds opaque tile payloads addressed by (col, row, level) and a
// Version. Reads either demand an exact version or accept the latest version
// at or before the requested one. Tiles wraps a Store with typed pixel
// buffers.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTileNotFound is returned when no tile matches an address and version.
	// Sparse pyramids produce it routinely.
	ErrTileNotFound = errors.New("tile not found")
	// ErrCorruptTile is returned when a payload does not decode to a tile of
	// the expected pixel type and size.
	ErrCorruptTile = errors.New("corrupt tile")
)

// Version is a transaction id. Higher versions are newer.
type Version int64

// Address locates a tile in the pyramid.
type Address struct {
	Col, Row, Level int
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Level, a.Col, a.Row)
}

// Valid reports whether the address lies inside its level's 2^L × 2^L grid.
func (a Address) Valid() bool {
	if a.Level < 0 || a.Level > 30 {
		return false
	}
	n := 1 << uint(a.Level)
	return a.Col >= 0 && a.Row >= 0 && a.Col < n && a.Row < n
}

// Parent returns the tile one level up that covers a.
func (a Address) Parent() Address {
	return Address{Col: a.Col / 2, Row: a.Row / 2, Level: a.Level - 1}
}

// Child returns quadrant (i, j), each 0 or 1, one level down.
func (a Address) Child(i, j int) Address {
	return Address{Col: 2*a.Col + i, Row: 2*a.Row + j, Level: a.Level + 1}
}

// Store is a versioned tile store. Implementations are safe for concurrent
// use.
type Store interface {
	// Get returns the payload at addr. With exact set only version itself
	// matches; otherwise the newest version <= version does. Missing tiles
	// yield an error wrapping ErrTileNotFound.
	Get(ctx context.Context, addr Address, version Version, exact bool) ([]byte, error)
	// Put stores data at (addr, version), replacing any previous payload.
	Put(ctx context.Context, addr Address, version Version, data []byte) error
	// TileSize is the edge length in pixels of every tile in the store.
	TileSize() int
	// Versions lists every version holding at least one tile, ascending.
	Versions(ctx context.Context) ([]Version, error)
	// Addresses lists the tiles of a level visible at version, that is
	// having some version <= version, ordered by row then column.
	Addresses(ctx context.Context, level int, version Version) ([]Address, error)
	Close() error
}

func notFound(addr Address, version Version) error {
	return fmt.Errorf("%s@%d: %w", addr, version, ErrTileNotFound)
}
