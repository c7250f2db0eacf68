package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notam-cache/notam-cache/notam"
)

// PostgresStore is a Provider backed by a relational table, for
// deployments where several replicas share one cache.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the given DSN and ensures the cache and
// counter tables exist.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", notam.ErrStore, err)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value BYTEA,
			expiration BIGINT
		)`,
		"CREATE INDEX IF NOT EXISTS cache_expiration_idx ON cache (expiration)",
		`CREATE TABLE IF NOT EXISTS stats_daily (
			day TEXT PRIMARY KEY,
			hits BIGINT NOT NULL DEFAULT 0,
			misses BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS stats_monthly (
			month TEXT PRIMARY KEY,
			hits BIGINT NOT NULL DEFAULT 0,
			misses BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%w: init postgres schema: %v", notam.ErrStore, err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var expiration int64
	var value []byte
	err := p.pool.QueryRow(ctx,
		"SELECT expiration, value FROM cache WHERE key = $1", key,
	).Scan(&expiration, &value)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (p *PostgresStore) Put(ctx context.Context, key string, expires time.Time, value []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO cache (key, value, expiration) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			expiration = excluded.expiration`,
		key, value, expires.Unix())
	if err != nil {
		return fmt.Errorf("%w: put %q: %v", notam.ErrStore, key, err)
	}
	return nil
}

func (p *PostgresStore) Purge(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM cache WHERE key = $1", key); err != nil {
		return fmt.Errorf("%w: purge %q: %v", notam.ErrStore, key, err)
	}
	return nil
}

func (p *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		"DELETE FROM cache WHERE expiration <= $1", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired: %v", notam.ErrStore, err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) CountRequest(ctx context.Context, day string, hit bool) error {
	hits, misses := 0, 1
	if hit {
		hits, misses = 1, 0
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO stats_daily (day, hits, misses) VALUES ($1, $2, $3)
		ON CONFLICT (day) DO UPDATE SET
			hits = stats_daily.hits + excluded.hits,
			misses = stats_daily.misses + excluded.misses`,
		day, hits, misses)
	if err != nil {
		return fmt.Errorf("%w: count request: %v", notam.ErrStore, err)
	}
	return nil
}

func (p *PostgresStore) RollupStats(ctx context.Context, cutoff string) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: rollup stats: %v", notam.ErrStore, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO stats_monthly (month, hits, misses)
		SELECT substr(day, 1, 7), sum(hits), sum(misses)
		FROM stats_daily WHERE day < $1
		GROUP BY substr(day, 1, 7)
		ON CONFLICT (month) DO UPDATE SET
			hits = stats_monthly.hits + excluded.hits,
			misses = stats_monthly.misses + excluded.misses`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: rollup stats: %v", notam.ErrStore, err)
	}
	tag, err := tx.Exec(ctx, "DELETE FROM stats_daily WHERE day < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: rollup stats: %v", notam.ErrStore, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: rollup stats: %v", notam.ErrStore, err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
