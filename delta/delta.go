// Package delta computes the change set between the current server
// snapshot and a client-supplied known-record snapshot.
package delta

import (
	"fmt"

	"github.com/notam-cache/notam-cache/notam"
)

// Compute filters the canonical response down to the records the
// client does not yet know about, and reports the ids that vanished
// from the server side. It never mutates its inputs.
//
// A record whose id or lastUpdated is absent or not a string is
// unconditionally included, as not-yet-known. For the rest, a record
// is included iff its id is missing from known or its lastUpdated
// differs from the known marker by exact string comparison. No
// timestamp parsing, no tolerance window: two lexical forms of the
// same instant count as changed. Freshness here is a cache
// invalidation signal, not a semantic timestamp comparison.
//
// The only failure is a canonical input without an items array, which
// indicates a logic defect upstream of this function.
func Compute(canonical notam.CanonicalResponse, known *notam.KnownSnapshot) (notam.DeltaResponse, error) {
	if canonical.Items == nil {
		return notam.DeltaResponse{}, fmt.Errorf("%w: canonical response has no items", notam.ErrProtocol)
	}

	serverIDs := make(map[string]string, len(canonical.Items))
	filtered := make([]notam.Record, 0, len(canonical.Items))
	for _, rec := range canonical.Items {
		id, hasID := rec.ID()
		lastUpdated, hasLU := rec.LastUpdated()
		if hasID {
			serverIDs[id] = lastUpdated
		}
		if !hasID || !hasLU {
			filtered = append(filtered, rec)
			continue
		}
		if knownLU, ok := known.Get(id); !ok || knownLU != lastUpdated {
			filtered = append(filtered, rec)
		}
	}

	removed := make([]string, 0)
	known.Each(func(id, _ string) {
		if _, ok := serverIDs[id]; !ok {
			removed = append(removed, id)
		}
	})

	return notam.DeltaResponse{
		CanonicalResponse: notam.CanonicalResponse{
			PageNum:    1,
			PageSize:   canonical.PageSize,
			TotalCount: len(filtered),
			TotalPages: 1,
			Items:      filtered,
		},
		Delta:      true,
		RemovedIDs: removed,
	}, nil
}
