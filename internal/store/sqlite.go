package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3" // import sqlite3 driver
)

// SQLiteStore keeps tiles in a single SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	tileSize int
}

// OpenSQLite opens or creates a tile database. A tileSize of 0 adopts the
// size recorded in an existing database; a non-zero size must match it.
func OpenSQLite(path string, tileSize int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One connection: the database is opened in exclusive locking mode and
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	stmts := []string{
		"PRAGMA synchronous=0",
		"PRAGMA locking_mode=EXCLUSIVE",
		"PRAGMA journal_mode=DELETE",
		`create table if not exists tiles (
			level integer not null,
			col integer not null,
			row integer not null,
			version integer not null,
			data blob not null,
			primary key (level, col, row, version))`,
		"create table if not exists metadata (name text primary key, value text)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", path, err)
		}
	}

	s := &SQLiteStore{db: db}
	stored, err := s.metadata("tile_size")
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if tileSize <= 0 {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: new store needs a tile size", path)
		}
		if _, err := db.Exec("insert into metadata (name, value) values ('tile_size', ?)", strconv.Itoa(tileSize)); err != nil {
			db.Close()
			return nil, err
		}
		s.tileSize = tileSize
	case err != nil:
		db.Close()
		return nil, err
	default:
		n, err := strconv.Atoi(stored)
		if err != nil || n <= 0 {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: bad tile_size %q", path, stored)
		}
		if tileSize > 0 && tileSize != n {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: tile size %d does not match stored %d", path, tileSize, n)
		}
		s.tileSize = n
	}
	return s, nil
}

func (s *SQLiteStore) metadata(name string) (string, error) {
	var v string
	err := s.db.QueryRow("select value from metadata where name = ?", name).Scan(&v)
	return v, err
}

func (s *SQLiteStore) TileSize() int { return s.tileSize }

func (s *SQLiteStore) Get(ctx context.Context, addr Address, version Version, exact bool) ([]byte, error) {
	q := "select data from tiles where level = ? and col = ? and row = ? and version = ?"
	if !exact {
		q = "select data from tiles where level = ? and col = ? and row = ? and version <= ? order by version desc limit 1"
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, q, addr.Level, addr.Col, addr.Row, int64(version)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(addr, version)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s@%d: %w", addr, version, err)
	}
	return data, nil
}

func (s *SQLiteStore) Put(ctx context.Context, addr Address, version Version, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		"insert or replace into tiles (level, col, row, version, data) values (?, ?, ?, ?, ?)",
		addr.Level, addr.Col, addr.Row, int64(version), data)
	if err != nil {
		return fmt.Errorf("writing %s@%d: %w", addr, version, err)
	}
	return nil
}

func (s *SQLiteStore) Versions(ctx context.Context) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, "select distinct version from tiles order by version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Version
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, Version(v))
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Addresses(ctx context.Context, level int, version Version) ([]Address, error) {
	rows, err := s.db.QueryContext(ctx,
		"select distinct col, row from tiles where level = ? and version <= ? order by row, col",
		level, int64(version))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Address
	for rows.Next() {
		a := Address{Level: level}
		if err := rows.Scan(&a.Col, &a.Row); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close analyzes and closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("ANALYZE;"); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
