package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/notam-cache/notam-cache/notam"
)

// PaginatedFetcher talks to the legacy provider API, which
// authenticates with static API-key headers and pages its results.
// It follows the pagination until exhausted and returns the union of
// all pages, or nothing at all if any page fails.
type PaginatedFetcher struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	log          zerolog.Logger
}

func NewPaginatedFetcher(baseURL, clientID, clientSecret string, client *http.Client, log zerolog.Logger) *PaginatedFetcher {
	return &PaginatedFetcher{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       defaultClient(client),
		log:          log.With().Str("component", "upstream").Str("variant", "paginated").Logger(),
	}
}

// upstreamPage mirrors one page of the legacy response. The pagination
// metadata is decoded leniently: when it is absent or not numeric, the
// page received is treated as the whole result set.
type upstreamPage struct {
	PageNum    any            `json:"pageNum"`
	TotalPages any            `json:"totalPages"`
	Items      []notam.Record `json:"items"`
}

func (f *PaginatedFetcher) FetchAll(ctx context.Context, q notam.Query) (notam.CanonicalResponse, error) {
	items := make([]notam.Record, 0)
	pageNum := 1
	for {
		page, err := f.fetchPage(ctx, q, pageNum)
		if err != nil {
			return notam.CanonicalResponse{}, err
		}
		items = append(items, page.Items...)

		declared, okNum := asInt(page.PageNum)
		total, okTotal := asInt(page.TotalPages)
		if !okNum || !okTotal || declared >= total {
			break
		}
		pageNum = declared + 1
	}
	f.log.Debug().Int("pages", pageNum).Int("items", len(items)).Msg("Aggregated upstream pages")
	return canonical(items, q.PageSize), nil
}

func (f *PaginatedFetcher) fetchPage(ctx context.Context, q notam.Query, pageNum int) (upstreamPage, error) {
	var page upstreamPage

	params := url.Values{}
	params.Set("locationLongitude", q.Longitude)
	params.Set("locationLatitude", q.Latitude)
	params.Set("locationRadius", q.Radius)
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	params.Set("pageNum", strconv.Itoa(pageNum))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return page, fmt.Errorf("%w: build request: %v", notam.ErrUpstream, err)
	}
	req.Header.Set("client_id", f.clientID)
	req.Header.Set("client_secret", f.clientSecret)

	res, err := f.client.Do(req)
	if err != nil {
		return page, fmt.Errorf("%w: page %d: %v", notam.ErrUpstream, pageNum, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return page, fmt.Errorf("%w: page %d: status %d: %s", notam.ErrUpstream, pageNum, res.StatusCode, body)
	}
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return page, fmt.Errorf("%w: page %d: decode body: %v", notam.ErrUpstream, pageNum, err)
	}
	return page, nil
}

// asInt reads a JSON number as an int. Anything else counts as
// malformed pagination metadata.
func asInt(v any) (int, bool) {
	n, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(n), true
}
