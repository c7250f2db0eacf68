package main

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Variant and format selectors.
const (
	VariantPaginated = "paginated"
	VariantEnvelope  = "envelope"

	FormatGeoJSON = "GEOJSON"
	FormatAIXM    = "AIXM"
)

// Config is the explicit configuration passed into every component at
// construction time. It is read from the environment, optionally
// overridden by a YAML config file, with a few command-line flags on
// top of both.
type Config struct {
	Port       int    `env:"PORT" envDefault:"8080" yaml:"port"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"debug" yaml:"logLevel"`
	Production bool   `env:"PRODUCTION" yaml:"production"`

	Upstream UpstreamConfig `envPrefix:"UPSTREAM_" yaml:"upstream"`
	Auth     AuthConfig     `envPrefix:"AUTH_" yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Store    StoreConfig    `yaml:"store"`
}

// UpstreamConfig selects and parameterizes the provider integration.
type UpstreamConfig struct {
	URL     string `env:"URL" yaml:"url"`
	Variant string `env:"VARIANT" envDefault:"envelope" yaml:"variant"`
	Format  string `env:"FORMAT" envDefault:"GEOJSON" yaml:"format"`
	// API-key headers for the legacy paginated variant.
	ClientID     string `env:"CLIENT_ID" yaml:"clientId"`
	ClientSecret string `env:"CLIENT_SECRET" yaml:"clientSecret"`
}

// AuthConfig carries the client-credentials exchange parameters for
// the authenticated envelope variant.
type AuthConfig struct {
	URL          string `env:"URL" yaml:"url"`
	ClientID     string `env:"CLIENT_ID" yaml:"clientId"`
	ClientSecret string `env:"CLIENT_SECRET" yaml:"clientSecret"`
}

type CacheConfig struct {
	TTL             time.Duration `env:"CACHE_TTL" envDefault:"1h" yaml:"ttl"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"5m" yaml:"janitorInterval"`
}

type StoreConfig struct {
	Provider    string `env:"CACHE_PROVIDER" envDefault:"sqlite" yaml:"provider"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./cache.db" yaml:"sqlitePath"`
	PostgresDSN string `env:"DATABASE_URL" yaml:"postgresDsn"`
}

// loadConfig reads the environment first and then, if given, lets the
// config file override it.
func loadConfig(filename string) (Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return config, err
	}
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, err
		}
	}
	return config, nil
}

// Validate checks that the selected variant has everything it needs.
func (c Config) Validate() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream URL is required")
	}
	switch c.Upstream.Variant {
	case VariantPaginated:
	case VariantEnvelope:
		if c.Auth.URL == "" || c.Auth.ClientID == "" || c.Auth.ClientSecret == "" {
			return fmt.Errorf("envelope variant needs auth url, client id and client secret")
		}
	default:
		return fmt.Errorf("unsupported upstream variant: %s", c.Upstream.Variant)
	}
	switch c.Upstream.Format {
	case FormatGeoJSON, FormatAIXM:
	default:
		return fmt.Errorf("unsupported response format: %s", c.Upstream.Format)
	}
	return nil
}
