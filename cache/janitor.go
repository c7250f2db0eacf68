package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/notam-cache/notam-cache/store"
)

// DefaultJanitorInterval is used when no interval is configured.
const DefaultJanitorInterval = 5 * time.Minute

// Janitor periodically reclaims expired cache rows and rolls the daily
// hit/miss counters into monthly aggregates. It runs decoupled from
// request handling: requests never wait for maintenance, and a failed
// sweep only leaves stale rows behind for the next one.
type Janitor struct {
	store    store.Provider
	interval time.Duration
	log      zerolog.Logger
}

func NewJanitor(st store.Provider, interval time.Duration, log zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &Janitor{
		store:    st,
		interval: interval,
		log:      log.With().Str("component", "janitor").Logger(),
	}
}

// Run sweeps on every tick until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.log.Info().Dur("interval", j.interval).Msg("Starting maintenance loop")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("Stopping maintenance loop")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// sweep performs one maintenance pass. Failures are logged and
// swallowed.
func (j *Janitor) sweep(ctx context.Context) {
	deleted, err := j.store.DeleteExpired(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("Could not delete expired entries")
	} else if deleted > 0 {
		j.log.Debug().Int64("deleted", deleted).Msg("Reclaimed expired entries")
	}

	// roll up every day before the current month
	cutoff := time.Now().UTC().Format("2006-01") + "-01"
	rolled, err := j.store.RollupStats(ctx, cutoff)
	if err != nil {
		j.log.Warn().Err(err).Msg("Could not roll up request counters")
	} else if rolled > 0 {
		j.log.Debug().Int64("days", rolled).Msg("Rolled up request counters")
	}
}
