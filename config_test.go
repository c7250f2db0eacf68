package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, VariantEnvelope, config.Upstream.Variant)
	assert.Equal(t, FormatGeoJSON, config.Upstream.Format)
	assert.Equal(t, time.Hour, config.Cache.TTL)
	assert.Equal(t, 5*time.Minute, config.Cache.JanitorInterval)
	assert.Equal(t, "sqlite", config.Store.Provider)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("UPSTREAM_URL", "https://notams.example/api")
	t.Setenv("UPSTREAM_VARIANT", "paginated")
	t.Setenv("CACHE_TTL", "30m")

	config, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Port)
	assert.Equal(t, "https://notams.example/api", config.Upstream.URL)
	assert.Equal(t, VariantPaginated, config.Upstream.Variant)
	assert.Equal(t, 30*time.Minute, config.Cache.TTL)
}

func TestLoadConfigFileOverridesEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")

	filename := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(filename, []byte("port: 7070\nupstream:\n  url: https://from-file.example\n"), 0644))

	config, err := loadConfig(filename)
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Port)
	assert.Equal(t, "https://from-file.example", config.Upstream.URL)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Upstream: UpstreamConfig{URL: "https://notams.example", Variant: VariantEnvelope, Format: FormatGeoJSON},
		Auth:     AuthConfig{URL: "https://auth.example", ClientID: "id", ClientSecret: "secret"},
	}
	assert.NoError(t, valid.Validate())

	missingURL := valid
	missingURL.Upstream.URL = ""
	assert.Error(t, missingURL.Validate())

	missingAuth := valid
	missingAuth.Auth.ClientSecret = ""
	assert.Error(t, missingAuth.Validate())

	paginated := valid
	paginated.Upstream.Variant = VariantPaginated
	paginated.Auth = AuthConfig{}
	assert.NoError(t, paginated.Validate())

	badVariant := valid
	badVariant.Upstream.Variant = "soap"
	assert.Error(t, badVariant.Validate())

	badFormat := valid
	badFormat.Upstream.Format = "CSV"
	assert.Error(t, badFormat.Validate())
}
