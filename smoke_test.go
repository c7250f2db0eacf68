package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notam-cache/notam-cache/cache"
	"github.com/notam-cache/notam-cache/notam"
	"github.com/notam-cache/notam-cache/store"
	"github.com/notam-cache/notam-cache/token"
	"github.com/notam-cache/notam-cache/upstream"
)

// TestEndToEnd wires the real token provider, envelope fetcher, cache
// and handler against stub auth and provider servers and walks through
// the full request flow.
func TestEndToEnd(t *testing.T) {
	tokenExchanges := 0
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenExchanges++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-e2e",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(auth.Close)

	providerCalls := 0
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
		require.Equal(t, "Bearer tok-e2e", r.Header.Get("Authorization"))
		assert.Equal(t, "8.5622", r.URL.Query().Get("locationLongitude"))
		assert.Equal(t, "50.0379", r.URL.Query().Get("locationLatitude"))
		assert.Equal(t, "5", r.URL.Query().Get("locationRadius"))
		json.NewEncoder(w).Encode(map[string]any{
			"status": "Success",
			"data": map[string]any{
				"geojson": []map[string]any{
					{"id": "A", "lastUpdated": "T1", "text": "crane near threshold"},
					{"id": "B", "lastUpdated": "T1", "text": "taxiway B closed"},
				},
			},
		})
	}))
	t.Cleanup(provider.Close)

	st := store.NewMemStore()
	tokens := token.NewProvider(token.Config{
		AuthURL:      auth.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, st, nil, zerolog.Nop())
	fetcher := upstream.NewEnvelopeFetcher(provider.URL, tokens, nil, zerolog.Nop())
	responses := cache.New(st, fetcher, time.Minute, zerolog.Nop())
	s := newServer(responses, Config{
		Upstream: UpstreamConfig{Variant: VariantEnvelope, Format: FormatGeoJSON},
	}, zerolog.Nop())

	query := "/?locationLongitude=8.5622&locationLatitude=50.0379&locationRadius=5"

	// full fetch populates the cache
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, query, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var full notam.CanonicalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	assert.Equal(t, 2, full.TotalCount)

	// delta against a snapshot that already knows A at T1
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, query, strings.NewReader(`{"known":{"A":"T1"}}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var filtered notam.DeltaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	assert.True(t, filtered.Delta)
	require.Len(t, filtered.Items, 1)
	id, _ := filtered.Items[0].ID()
	assert.Equal(t, "B", id)
	assert.Equal(t, []string{}, filtered.RemovedIDs)

	// a snapshot entry the server no longer has comes back removed
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, query, strings.NewReader(`{"known":{"A":"T1","C":"T0"}}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	assert.Equal(t, []string{"C"}, filtered.RemovedIDs)

	// all three requests were served from one upstream fetch and one
	// token exchange
	assert.Equal(t, 1, providerCalls)
	assert.Equal(t, 1, tokenExchanges)
}

func TestEndToEndUpstreamOutage(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	}))
	t.Cleanup(auth.Close)

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(provider.Close)

	st := store.NewMemStore()
	tokens := token.NewProvider(token.Config{
		AuthURL:      auth.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, st, nil, zerolog.Nop())
	fetcher := upstream.NewEnvelopeFetcher(provider.URL, tokens, nil, zerolog.Nop())
	responses := cache.New(st, fetcher, time.Minute, zerolog.Nop())
	s := newServer(responses, Config{
		Upstream: UpstreamConfig{Variant: VariantEnvelope, Format: FormatGeoJSON},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?lon=8&lat=50&radius=5", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
