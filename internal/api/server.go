package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/correlator-io/roster/internal/api/middleware"
	"github.com/correlator-io/roster/internal/records"
	"github.com/correlator-io/roster/internal/search"
	"github.com/correlator-io/roster/internal/storage"
)

type (
	// Store is everything the API needs from the storage layer.
	//
	// Implemented by: storage.LoadStore.
	Store interface {
		records.Loader
		search.Store

		HealthCheck(ctx context.Context) error
	}

	// Server represents the HTTP API server.
	Server struct {
		httpServer  *http.Server
		handler     http.Handler
		logger      *slog.Logger
		config      *ServerConfig
		startTime   time.Time
		store       Store
		apiKeyStore storage.APIKeyStore
		rateLimiter middleware.RateLimiter
	}
)

// NewServer wires routes and the middleware chain.
//
// A nil logger logs JSON to stdout at cfg.LogLevel. A nil apiKeyStore leaves the write
// endpoints open, and a nil rateLimiter disables rate limiting.
func NewServer(
	cfg *ServerConfig,
	store Store,
	apiKeyStore storage.APIKeyStore,
	rateLimiter middleware.RateLimiter,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	}

	server := &Server{
		logger:      logger,
		config:      cfg,
		store:       store,
		apiKeyStore: apiKeyStore,
		rateLimiter: rateLimiter,
	}

	mux := http.NewServeMux()
	healthPaths := server.setupRoutes(mux)

	if apiKeyStore != nil {
		logger.Info("API key authentication enabled for write endpoints")
	} else {
		logger.Warn("APIKeyStore not configured - write endpoints accept unauthenticated requests")
	}

	if rateLimiter != nil {
		logger.Info("Rate limiting middleware enabled")
	} else {
		logger.Warn("RateLimiter not configured - rate limiting middleware disabled")
	}

	// Recovery wraps everything after it. Rate-limited requests never reach the request logger.
	server.handler = middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(rateLimiter, logger, cfg.TrustForwardedFor, healthPaths...),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.CORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:              cfg.Address(),
		Handler:           server.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return server
}

// requireKey guards a write route with an API key check. Without a key store it returns h.
func (s *Server) requireKey(permission string, h http.HandlerFunc) http.HandlerFunc {
	if s.apiKeyStore == nil {
		return h
	}

	return middleware.RequireAPIKey(s.apiKeyStore, permission, s.logger)(h).ServeHTTP
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until SIGINT or SIGTERM and then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting roster API server",
			slog.String("address", s.config.Address()),
			slog.String("version", s.version()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Int64("max_request_size", s.config.MaxRequestSize),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("Received shutdown signal", slog.Any("cause", context.Cause(ctx)))

		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stops the InMemoryRateLimiter cleanup goroutine.
	if limiter, ok := s.rateLimiter.(interface{ Close() }); ok {
		limiter.Close()
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}

func (s *Server) version() string {
	if s.config.Version == "" {
		return "dev"
	}

	return s.config.Version
}
