package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/notam-cache/notam-cache/notam"
)

// TokenSource supplies a bearer token for the authenticated variant.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// EnvelopeFetcher talks to the authenticated provider API, which wraps
// the records of the whole result set in a single provider-specific
// envelope instead of paging them.
type EnvelopeFetcher struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	log     zerolog.Logger
}

func NewEnvelopeFetcher(baseURL string, tokens TokenSource, client *http.Client, log zerolog.Logger) *EnvelopeFetcher {
	return &EnvelopeFetcher{
		baseURL: baseURL,
		tokens:  tokens,
		client:  defaultClient(client),
		log:     log.With().Str("component", "upstream").Str("variant", "envelope").Logger(),
	}
}

type envelope struct {
	Status string                     `json:"status"`
	Data   map[string]json.RawMessage `json:"data"`
}

func (f *EnvelopeFetcher) FetchAll(ctx context.Context, q notam.Query) (notam.CanonicalResponse, error) {
	bearer, err := f.tokens.Token(ctx)
	if err != nil {
		return notam.CanonicalResponse{}, err
	}

	format := strings.ToLower(q.Format)
	if format == "" {
		format = "geojson"
	}

	params := url.Values{}
	params.Set("locationLongitude", q.Longitude)
	params.Set("locationLatitude", q.Latitude)
	params.Set("locationRadius", q.Radius)
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	params.Set("responseFormat", format)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return notam.CanonicalResponse{}, fmt.Errorf("%w: build request: %v", notam.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	res, err := f.client.Do(req)
	if err != nil {
		return notam.CanonicalResponse{}, fmt.Errorf("%w: %v", notam.ErrUpstream, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return notam.CanonicalResponse{}, fmt.Errorf("%w: status %d: %s", notam.ErrUpstream, res.StatusCode, body)
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return notam.CanonicalResponse{}, fmt.Errorf("%w: decode body: %v", notam.ErrUpstream, err)
	}
	if env.Status != "Success" {
		return notam.CanonicalResponse{}, fmt.Errorf("%w: status %q", notam.ErrUpstream, env.Status)
	}
	raw, ok := env.Data[format]
	if !ok {
		return notam.CanonicalResponse{}, fmt.Errorf("%w: response is missing %s data", notam.ErrUpstream, format)
	}
	var items []notam.Record
	if err := json.Unmarshal(raw, &items); err != nil {
		return notam.CanonicalResponse{}, fmt.Errorf("%w: decode %s data: %v", notam.ErrUpstream, format, err)
	}

	f.log.Debug().Int("items", len(items)).Msg("Fetched upstream envelope")
	return canonical(items, q.PageSize), nil
}
