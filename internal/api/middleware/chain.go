// Package middleware provides the HTTP middleware stack of the roster API.
package middleware

import (
	"log/slog"
	"net/http"
)

// Option wraps a handler with one middleware.
type Option func(http.Handler) http.Handler

// Apply wraps handler so that the first option becomes the outermost middleware.
//
// Example:
//
//	handler := middleware.Apply(mux,
//	    middleware.WithCorrelationID(),
//	    middleware.WithRecovery(logger),
//	    middleware.WithRequestLogger(logger),
//	    middleware.WithRateLimit(limiter, logger, false, "/ping", "/ready"),
//	    middleware.WithCORS(corsConfig),
//	)
func Apply(handler http.Handler, options ...Option) http.Handler {
	for i := len(options) - 1; i >= 0; i-- {
		handler = options[i](handler)
	}

	return handler
}

func passThrough(next http.Handler) http.Handler {
	return next
}

// WithCorrelationID adds correlation id propagation.
func WithCorrelationID() Option {
	return CorrelationID()
}

// WithRecovery adds panic recovery.
func WithRecovery(logger *slog.Logger) Option {
	return Recovery(logger)
}

// WithRateLimit adds rate limiting. A nil limiter disables it.
func WithRateLimit(limiter RateLimiter, logger *slog.Logger, trustForwardedFor bool, exempt ...string) Option {
	if limiter == nil {
		return passThrough
	}

	return RateLimit(limiter, logger, trustForwardedFor, exempt...)
}

// WithRequestLogger adds access logging.
func WithRequestLogger(logger *slog.Logger) Option {
	return RequestLogger(logger)
}

// WithCORS adds CORS handling. It is skipped when no origin is allowed.
func WithCORS(cfg CORSConfig) Option {
	if len(cfg.AllowedOrigins) == 0 {
		return passThrough
	}

	return CORS(cfg)
}
