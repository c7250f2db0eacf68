package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notam-cache/notam-cache/notam"
	"github.com/notam-cache/notam-cache/store"
)

func authServer(t *testing.T, exchanges *int, response map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*exchanges++
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(authURL string) *Provider {
	return NewProvider(Config{
		AuthURL:      authURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, store.NewMemStore(), nil, zerolog.Nop())
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	exchanges := 0
	srv := authServer(t, &exchanges, map[string]any{
		"access_token": "tok-1",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	p := newTestProvider(srv.URL)

	first, err := p.Token(context.Background())
	require.NoError(t, err)
	second, err := p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", first)
	assert.Equal(t, "tok-1", second)
	assert.Equal(t, 1, exchanges, "second call should be served from cache")
}

func TestShortLivedTokenStillCached(t *testing.T) {
	// expires_in below the margin: the 60s floor must keep the token
	// cached instead of exchanging on every call
	exchanges := 0
	srv := authServer(t, &exchanges, map[string]any{
		"access_token": "tok-short",
		"token_type":   "Bearer",
		"expires_in":   10,
	})
	p := newTestProvider(srv.URL)

	_, err := p.Token(context.Background())
	require.NoError(t, err)
	_, err = p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, exchanges)
}

func TestMissingExpiryDefaultsInsteadOfFailing(t *testing.T) {
	exchanges := 0
	srv := authServer(t, &exchanges, map[string]any{
		"access_token": "tok-noexp",
		"token_type":   "Bearer",
	})
	p := newTestProvider(srv.URL)

	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-noexp", tok)

	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, exchanges)
}

func TestMissingCredentialsIsConfigError(t *testing.T) {
	p := NewProvider(Config{}, store.NewMemStore(), nil, zerolog.Nop())
	_, err := p.Token(context.Background())
	assert.ErrorIs(t, err, notam.ErrConfig)
}

func TestEndpointFailureIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	p := newTestProvider(srv.URL)

	_, err := p.Token(context.Background())
	assert.ErrorIs(t, err, notam.ErrUpstream)
}

func TestEmptyTokenIsUpstreamErrorAndNotCached(t *testing.T) {
	exchanges := 0
	srv := authServer(t, &exchanges, map[string]any{
		"token_type": "Bearer",
		"expires_in": 3600,
	})
	p := newTestProvider(srv.URL)

	_, err := p.Token(context.Background())
	require.ErrorIs(t, err, notam.ErrUpstream)

	// a failed exchange must not poison the cache
	_, err = p.Token(context.Background())
	require.ErrorIs(t, err, notam.ErrUpstream)
	assert.Equal(t, 2, exchanges)
}
