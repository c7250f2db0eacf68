// Package upstream fetches notices from the provider and normalizes
// the result into the canonical single-page response shape. The two
// provider integration strategies (legacy paginated API and the
// authenticated envelope API) are two implementations of one Fetcher.
package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/notam-cache/notam-cache/notam"
)

// Fetcher aggregates the upstream result set for a query into one
// canonical response. It fails with notam.ErrUpstream on any non-2xx
// status, transport failure or undecodable body; no partial results
// are ever returned. Fetchers never touch the cache.
type Fetcher interface {
	FetchAll(ctx context.Context, q notam.Query) (notam.CanonicalResponse, error)
}

// requestTimeout bounds every upstream call. Timeouts surface as
// upstream errors and are not retried here.
const requestTimeout = 30 * time.Second

func defaultClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: requestTimeout}
}

// canonical builds the single-page result. The page metadata always
// reports page 1 of 1 so callers cannot observe the aggregation
// strategy; items is never nil so the serialized form always carries
// an array.
func canonical(items []notam.Record, pageSize int) notam.CanonicalResponse {
	if items == nil {
		items = make([]notam.Record, 0)
	}
	return notam.CanonicalResponse{
		PageNum:    1,
		PageSize:   pageSize,
		TotalCount: len(items),
		TotalPages: 1,
		Items:      items,
	}
}
