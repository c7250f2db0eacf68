package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/notam-cache/notam-cache/notam"
)

// Key derives the cache key for a query. It hashes every
// query-distinguishing input, so identical effective queries map to
// the same key and differing ones collide only with sha256 odds.
func Key(q notam.Query) string {
	h := sha256.New()
	fmt.Fprintf(h, "lon=%s\nlat=%s\nradius=%s\npageSize=%d\nformat=%s",
		q.Longitude, q.Latitude, q.Radius, q.PageSize, q.Format)
	return "resp:" + hex.EncodeToString(h.Sum(nil))
}
