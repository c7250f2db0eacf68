// Package token acquires bearer tokens for the authenticated upstream
// variant via an OAuth client-credentials exchange and caches them in
// the expiring key-value store.
package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/notam-cache/notam-cache/notam"
	"github.com/notam-cache/notam-cache/store"
)

const (
	// defaultExpiresIn is assumed when the token endpoint does not
	// report an expiry.
	defaultExpiresIn = 1800 * time.Second
	// expiryMargin is subtracted from the reported expiry so a token
	// is never served right at its deadline.
	expiryMargin = 30 * time.Second
	// minTTL is the floor for cached tokens, avoiding cache churn on
	// misconfigured or very short-lived tokens.
	minTTL = 60 * time.Second
)

// Config carries the client-credentials parameters.
type Config struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
}

// Provider performs the exchange and caches the resulting bearer token.
// Concurrent misses may issue duplicate exchanges; every exchange
// yields an equally valid token, so the last write simply wins.
type Provider struct {
	config Config
	store  store.Provider
	client *http.Client
	log    zerolog.Logger
}

func NewProvider(config Config, st store.Provider, client *http.Client, log zerolog.Logger) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{
		config: config,
		store:  st,
		client: client,
		log:    log.With().Str("component", "token").Logger(),
	}
}

// Token returns a valid bearer token, reusing the cached one when it
// has not yet reached its expiry margin. A failed exchange is never
// cached.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if p.config.AuthURL == "" || p.config.ClientID == "" || p.config.ClientSecret == "" {
		return "", fmt.Errorf("%w: missing auth credentials", notam.ErrConfig)
	}

	key := cacheKey(p.config.AuthURL, p.config.ClientID)
	if value, ok, err := p.store.Get(ctx, key); err != nil {
		return "", err
	} else if ok {
		p.log.Trace().Str("key", key).Msg("Token served from cache")
		return string(value), nil
	}

	exchange := clientcredentials.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		TokenURL:     p.config.AuthURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tok, err := exchange.Token(context.WithValue(ctx, oauth2.HTTPClient, p.client))
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", notam.ErrUpstream, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token endpoint returned an empty token", notam.ErrUpstream)
	}

	expiresIn := defaultExpiresIn
	if !tok.Expiry.IsZero() {
		expiresIn = time.Until(tok.Expiry)
	}
	ttl := expiresIn - expiryMargin
	if ttl < minTTL {
		ttl = minTTL
	}

	if err := p.store.Put(ctx, key, time.Now().Add(ttl), []byte(tok.AccessToken)); err != nil {
		return "", err
	}
	p.log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Token exchanged and cached")
	return tok.AccessToken, nil
}

// cacheKey derives a deterministic store key from the auth endpoint
// and client id. The secret is deliberately left out of the key.
func cacheKey(authURL, clientID string) string {
	sum := sha256.Sum256([]byte(authURL + "\n" + clientID))
	return "token:" + hex.EncodeToString(sum[:])
}
