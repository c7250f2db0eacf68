// Package store provides the expiring key-value backends used for
// response and token caching. The backing table maps a key to a value
// with an expiration; reads of expired entries behave as misses and
// the rows are reclaimed lazily by the maintenance janitor.
package store

import (
	"context"
	"sync"
	"time"
)

// Provider is an expiring key-value store.
// It also keeps the daily hit/miss counters that the janitor rolls up
// into monthly aggregates. The counters are purely observational.
//
// Implementations must be safe for concurrent use. Put must be
// idempotent by overwrite: two writers racing on the same key is fine,
// last write wins.
type Provider interface {
	// Get returns the value for the given key, if it exists.
	// It also returns a boolean indicating whether retrieval was
	// successful. If the entry has expired, the boolean is false; the
	// expired row is left for the janitor.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores the value under the given key with an expiration.
	Put(ctx context.Context, key string, expires time.Time, value []byte) error
	// Purge removes the entry for the given key.
	Purge(ctx context.Context, key string) error
	// DeleteExpired removes every entry whose expiration has passed
	// and reports how many rows were reclaimed.
	DeleteExpired(ctx context.Context) (int64, error)
	// CountRequest increments the hit or miss counter for a day
	// (formatted as 2006-01-02).
	CountRequest(ctx context.Context, day string, hit bool) error
	// RollupStats folds daily counters older than the cutoff day into
	// monthly rows and reports how many days were rolled up.
	RollupStats(ctx context.Context, cutoff string) (int64, error)
	// Close releases the underlying backend.
	Close() error
}

type memEntry struct {
	expires time.Time
	value   []byte
}

type memStat struct {
	hits   int64
	misses int64
}

// MemStore is an in-memory Provider, mainly for tests and local runs.
type MemStore struct {
	mutex   sync.RWMutex
	entries map[string]memEntry
	daily   map[string]memStat
	monthly map[string]memStat
}

func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[string]memEntry),
		daily:   make(map[string]memStat),
		monthly: make(map[string]memStat),
	}
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expires) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemStore) Put(_ context.Context, key string, expires time.Time, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.entries[key] = memEntry{expires, value}
	return nil
}

func (m *MemStore) Purge(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemStore) DeleteExpired(_ context.Context) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var deleted int64
	now := time.Now()
	for key, entry := range m.entries {
		if now.After(entry.expires) {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemStore) CountRequest(_ context.Context, day string, hit bool) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	stat := m.daily[day]
	if hit {
		stat.hits++
	} else {
		stat.misses++
	}
	m.daily[day] = stat
	return nil
}

func (m *MemStore) RollupStats(_ context.Context, cutoff string) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var rolled int64
	for day, stat := range m.daily {
		if day >= cutoff {
			continue
		}
		month := monthOf(day)
		agg := m.monthly[month]
		agg.hits += stat.hits
		agg.misses += stat.misses
		m.monthly[month] = agg
		delete(m.daily, day)
		rolled++
	}
	return rolled, nil
}

func (m *MemStore) Close() error {
	return nil
}

// monthOf truncates a 2006-01-02 day key to its 2006-01 month key.
func monthOf(day string) string {
	if len(day) < 7 {
		return day
	}
	return day[:7]
}
