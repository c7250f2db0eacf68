package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/notam-cache/notam-cache/notam"
)

// SQLiteStore is a Provider backed by a single SQLite file.
// Writes are serialized through a mutex since SQLite allows only one
// writer at a time.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex sync.Mutex
}

// NewSQLiteStore opens (or creates) the cache database at the given
// path. An empty path opens a shared in-memory database.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", notam.ErrStore, err)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value BLOB,
			expiration INTEGER
		)`,
		"CREATE INDEX IF NOT EXISTS expiration_idx ON cache (expiration)",
		`CREATE TABLE IF NOT EXISTS stats_daily (
			day TEXT PRIMARY KEY,
			hits INTEGER NOT NULL DEFAULT 0,
			misses INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS stats_monthly (
			month TEXT PRIMARY KEY,
			hits INTEGER NOT NULL DEFAULT 0,
			misses INTEGER NOT NULL DEFAULT 0
		)`,
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("%w: init sqlite schema: %v", notam.ErrStore, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var expiration int64
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT expiration, value FROM cache WHERE key = ?", key,
	).Scan(&expiration, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %q: %v", notam.ErrStore, key, err)
	}
	if time.Now().After(time.Unix(expiration, 0)) {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, expires time.Time, value []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, value, expiration) VALUES (?, ?, ?)",
		key, value, expires.Unix())
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", notam.ErrStore, key, err)
	}
	return nil
}

func (s *SQLiteStore) Purge(ctx context.Context, key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: purge %q: %v", notam.ErrStore, key, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM cache WHERE expiration <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired: %v", notam.ErrStore, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired: %v", notam.ErrStore, err)
	}
	return deleted, nil
}

func (s *SQLiteStore) CountRequest(ctx context.Context, day string, hit bool) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	hits, misses := 0, 1
	if hit {
		hits, misses = 1, 0
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stats_daily (day, hits, misses) VALUES (?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			hits = hits + excluded.hits,
			misses = misses + excluded.misses`,
		day, hits, misses)
	if err != nil {
		return fmt.Errorf("%w: count request: %v", notam.ErrStore, err)
	}
	return nil
}

func (s *SQLiteStore) RollupStats(ctx context.Context, cutoff string) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: rollup stats: %v", notam.ErrStore, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stats_monthly (month, hits, misses)
		SELECT substr(day, 1, 7), sum(hits), sum(misses)
		FROM stats_daily WHERE day < ?
		GROUP BY substr(day, 1, 7)
		ON CONFLICT(month) DO UPDATE SET
			hits = hits + excluded.hits,
			misses = misses + excluded.misses`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: rollup stats: %v", notam.ErrStore, err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM stats_daily WHERE day < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: rollup stats: %v", notam.ErrStore, err)
	}
	rolled, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rollup stats: %v", notam.ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: rollup stats: %v", notam.ErrStore, err)
	}
	return rolled, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
