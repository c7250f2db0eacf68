// Package notam defines the wire types shared by the cache, delta and
// upstream layers: opaque notice records, the canonical single-page
// response shape, and the client-supplied known-record snapshot.
package notam

// Record is one notice as received from the upstream provider.
// The content is passed through unmodified; the core only ever reads
// the id and lastUpdated fields.
type Record map[string]any

// ID returns the record identifier, if present as a string.
func (r Record) ID() (string, bool) {
	id, ok := r["id"].(string)
	return id, ok
}

// LastUpdated returns the last-modified marker, if present as a string.
// The value is opaque; it is only ever compared for exact equality.
func (r Record) LastUpdated() (string, bool) {
	lu, ok := r["lastUpdated"].(string)
	return lu, ok
}

// CanonicalResponse is the normalized, fully-aggregated representation
// of a (possibly multi-page) upstream result set. It always denotes a
// single logical page: callers cannot observe how many upstream pages
// were actually fetched.
type CanonicalResponse struct {
	PageNum    int      `json:"pageNum"`
	PageSize   int      `json:"pageSize,omitempty"`
	TotalCount int      `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
	Items      []Record `json:"items"`
}

// DeltaResponse is a CanonicalResponse filtered down to the records
// that changed relative to a known snapshot, plus the ids that
// disappeared from the server side.
type DeltaResponse struct {
	CanonicalResponse
	Delta      bool     `json:"delta"`
	RemovedIDs []string `json:"removedIds"`
}

// Query holds the validated inputs that distinguish one upstream
// request from another. Coordinates and radius are kept in their
// validated textual form so that cache keys and upstream parameters
// never drift through float re-formatting.
type Query struct {
	Longitude string
	Latitude  string
	Radius    string
	PageSize  int
	Format    string
}
