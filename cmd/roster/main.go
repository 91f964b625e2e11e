// Package main runs the roster HTTP service: load submission, search profiles and KPIs
// over a PostgreSQL store, with load-completed events published to Kafka when configured.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/correlator-io/roster/internal/aliasing"
	"github.com/correlator-io/roster/internal/api"
	"github.com/correlator-io/roster/internal/api/middleware"
	"github.com/correlator-io/roster/internal/config"
	"github.com/correlator-io/roster/internal/events"
	"github.com/correlator-io/roster/internal/storage"
)

const name = "roster"

// Set at build time via -ldflags "-X main.Version=...".
var (
	Version   = "1.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s (commit %s, built %s)\n", name, Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	serverConfig := api.LoadServerConfig()
	serverConfig.Version = Version

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting roster service",
		slog.String("service", name),
		slog.String("version", Version),
		slog.String("git_commit", GitCommit),
	)

	rateLimitConfig := middleware.LoadConfig()
	rateLimiter := middleware.NewInMemoryRateLimiter(rateLimitConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", rateLimitConfig.GlobalRPS),
		slog.Int("client_rps", rateLimitConfig.ClientRPS),
		slog.Bool("trust_forwarded_for", rateLimitConfig.TrustForwardedFor),
	)

	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		rateLimiter.Close()

		return err
	}

	defer func() {
		_ = dbConn.Close()
	}()

	aliasConfig, err := aliasing.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load alias configuration", slog.String("error", err.Error()))
		rateLimiter.Close()

		return err
	}

	resolver := aliasing.NewResolver(aliasConfig)

	publisher := events.NewPublisher(events.LoadConfig(), logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close event publisher", slog.String("error", err.Error()))
		}
	}()

	store, err := storage.NewLoadStore(dbConn,
		storage.WithConfig(storageConfig),
		storage.WithLogger(logger),
		storage.WithAliasResolver(resolver),
		storage.WithNotifier(publisher),
	)
	if err != nil {
		logger.Error("Failed to create load store", slog.String("error", err.Error()))
		rateLimiter.Close()

		return err
	}

	logger.Info("Load store initialized",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Bool("skip_view_refresh", storageConfig.SkipViewRefresh),
		slog.Bool("strict_validation", storageConfig.StrictValidation),
		slog.Int("aliases", resolver.AliasCount()),
		slog.Int("alias_patterns", resolver.PatternCount()),
	)

	var apiKeyStore storage.APIKeyStore

	if config.GetEnvBool("ROSTER_AUTH_ENABLED", false) {
		keyStore, err := storage.NewKeyStore(dbConn, logger)
		if err != nil {
			logger.Error("Failed to create API key store", slog.String("error", err.Error()))
			rateLimiter.Close()

			return err
		}

		apiKeyStore = keyStore
	} else {
		logger.Warn("API key authentication disabled, write endpoints are open",
			slog.String("hint", "set ROSTER_AUTH_ENABLED=true in production"))
	}

	server := api.NewServer(serverConfig, store, apiKeyStore, rateLimiter, logger)

	if err := server.Start(); err != nil {
		logger.Error("Server stopped with error", slog.String("error", err.Error()))

		return err
	}

	logger.Info("Roster service stopped")

	return nil
}
