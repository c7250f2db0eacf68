package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/notam-cache/notam-cache/cache"
	"github.com/notam-cache/notam-cache/store"
	"github.com/notam-cache/notam-cache/token"
	"github.com/notam-cache/notam-cache/upstream"
)

var (
	configFilenameFlag string
	portFlag           int
	providerFlag       string
	verbosityTraceFlag bool
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&providerFlag, "provider", "", "Caching provider to use (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	config, err := loadConfig(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load config")
	}
	if portFlag != 0 {
		config.Port = portFlag
	}
	if providerFlag != "" {
		config.Store.Provider = providerFlag
	}

	logLevel, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		logLevel = zerolog.DebugLevel
	}
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := newStore(ctx, config.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open cache store")
	}
	defer st.Close()

	fetcher := newFetcher(config, st)
	responses := cache.New(st, fetcher, config.Cache.TTL, log.Logger)

	janitor := cache.NewJanitor(st, config.Cache.JanitorInterval, log.Logger)
	go janitor.Run(ctx)

	srv := newServer(responses, config, log.Logger)

	addr := fmt.Sprintf(":%d", config.Port)
	log.Info().
		Str("addr", addr).
		Str("variant", config.Upstream.Variant).
		Str("provider", config.Store.Provider).
		Msg("Starting notam-cache")
	if err := http.ListenAndServe(addr, srv); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func newStore(ctx context.Context, config StoreConfig) (store.Provider, error) {
	switch config.Provider {
	case "sqlite":
		return store.NewSQLiteStore(config.SQLitePath)
	case "memory":
		return store.NewMemStore(), nil
	case "postgres":
		return store.NewPostgresStore(ctx, config.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", config.Provider)
	}
}

func newFetcher(config Config, st store.Provider) upstream.Fetcher {
	client := &http.Client{Timeout: 30 * time.Second}
	if config.Upstream.Variant == VariantPaginated {
		return upstream.NewPaginatedFetcher(
			config.Upstream.URL,
			config.Upstream.ClientID,
			config.Upstream.ClientSecret,
			client,
			log.Logger,
		)
	}
	tokens := token.NewProvider(token.Config{
		AuthURL:      config.Auth.URL,
		ClientID:     config.Auth.ClientID,
		ClientSecret: config.Auth.ClientSecret,
	}, st, client, log.Logger)
	return upstream.NewEnvelopeFetcher(config.Upstream.URL, tokens, client, log.Logger)
}
