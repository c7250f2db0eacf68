// Package cache implements the read-through caching policy in front of
// an upstream fetcher, plus the periodic maintenance janitor.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/notam-cache/notam-cache/notam"
	"github.com/notam-cache/notam-cache/store"
	"github.com/notam-cache/notam-cache/upstream"
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = time.Hour

// ResponseCache wraps an upstream fetcher with the read-through
// policy: serve the stored serialized response while it is unexpired,
// otherwise fetch, store and return. It never fails on its own; all
// failures propagate unchanged from the store or the fetcher.
type ResponseCache struct {
	store   store.Provider
	fetcher upstream.Fetcher
	ttl     time.Duration
	group   singleflight.Group
	log     zerolog.Logger
}

func New(st store.Provider, fetcher upstream.Fetcher, ttl time.Duration, log zerolog.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		store:   st,
		fetcher: fetcher,
		ttl:     ttl,
		log:     log.With().Str("component", "cache").Logger(),
	}
}

// GetOrFetch returns the serialized canonical response for the query.
// On a hit the stored value is returned verbatim, with no revalidation
// against the upstream. Concurrent misses on the same key are
// coalesced into a single upstream fetch; the store upsert is
// idempotent by overwrite, so a lost race is harmless.
func (c *ResponseCache) GetOrFetch(ctx context.Context, q notam.Query) ([]byte, error) {
	key := Key(q)

	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		c.count(ctx, true)
		c.log.Trace().Str("key", key).Msg("Cache hit")
		return value, nil
	}
	c.count(ctx, false)

	result, err, _ := c.group.Do(key, func() (any, error) {
		fetchID := uuid.NewString()
		log := c.log.With().Str("key", key).Str("fetch", fetchID).Logger()
		log.Debug().Msg("Cache miss, fetching from upstream")

		res, err := c.fetcher.FetchAll(ctx, q)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal canonical response: %v", notam.ErrProtocol, err)
		}
		if err := c.store.Put(ctx, key, time.Now().Add(c.ttl), value); err != nil {
			return nil, err
		}
		log.Debug().Int("items", res.TotalCount).Time("expires", time.Now().Add(c.ttl)).Msg("Stored upstream response")
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// count updates the daily hit/miss counters. Counting is
// observational only and must never fail the triggering request.
func (c *ResponseCache) count(ctx context.Context, hit bool) {
	day := time.Now().UTC().Format("2006-01-02")
	if err := c.store.CountRequest(ctx, day, hit); err != nil {
		c.log.Warn().Err(err).Msg("Could not update request counters")
	}
}
