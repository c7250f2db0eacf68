package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// providers under test; postgres needs a running server and is covered
// by the same contract through its identical SQL shape.
func testProviders(t *testing.T) map[string]Provider {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Provider{
		"memory": NewMemStore(),
		"sqlite": sqlite,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, p := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, p.Put(ctx, "k", time.Now().Add(time.Minute), []byte("v")))

			value, ok, err := p.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("v"), value)
		})
	}
}

func TestGetMissesOnUnknownKey(t *testing.T) {
	for name, p := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := p.Get(context.Background(), "nope")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestGetMissesOnExpiredEntry(t *testing.T) {
	for name, p := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, p.Put(ctx, "k", time.Now().Add(-time.Second), []byte("v")))

			_, ok, err := p.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestPutOverwrites(t *testing.T) {
	for name, p := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, p.Put(ctx, "k", time.Now().Add(time.Minute), []byte("old")))
			require.NoError(t, p.Put(ctx, "k", time.Now().Add(time.Minute), []byte("new")))

			value, ok, err := p.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("new"), value)
		})
	}
}

func TestDeleteExpiredReclaimsOnlyExpiredRows(t *testing.T) {
	for name, p := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, p.Put(ctx, "dead", time.Now().Add(-time.Minute), []byte("x")))
			require.NoError(t, p.Put(ctx, "alive", time.Now().Add(time.Minute), []byte("y")))

			deleted, err := p.DeleteExpired(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 1, deleted)

			_, ok, err := p.Get(ctx, "alive")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestPurge(t *testing.T) {
	for name, p := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, p.Put(ctx, "k", time.Now().Add(time.Minute), []byte("v")))
			require.NoError(t, p.Purge(ctx, "k"))

			_, ok, err := p.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCountersAccumulateAndRollUp(t *testing.T) {
	for name, p := range testProviders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, p.CountRequest(ctx, "2024-05-01", true))
			require.NoError(t, p.CountRequest(ctx, "2024-05-01", true))
			require.NoError(t, p.CountRequest(ctx, "2024-05-02", false))
			require.NoError(t, p.CountRequest(ctx, "2024-06-01", true))

			// roll up everything before June: two May days
			rolled, err := p.RollupStats(ctx, "2024-06-01")
			require.NoError(t, err)
			assert.EqualValues(t, 2, rolled)

			// a second pass has nothing left to do
			rolled, err = p.RollupStats(ctx, "2024-06-01")
			require.NoError(t, err)
			assert.EqualValues(t, 0, rolled)
		})
	}
}
