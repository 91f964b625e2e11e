// Package api provides the HTTP API of the roster service: load submission, search profile
// and KPI queries, and health checks.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/correlator-io/roster/internal/api/middleware"
	"github.com/correlator-io/roster/internal/config"
)

const (
	defaultPort            int    = 8080
	maxPort                int    = 65535
	defaultHost            string = "0.0.0.0"
	defaultCORSMaxAge      int    = 86400
	defaultReadTimeout            = 30 * time.Second
	defaultWriteTimeout           = 5 * time.Minute // a load run plus view refresh can be slow
	defaultShutdownTimeout        = 30 * time.Second
	defaultLogLevel               = slog.LevelInfo
	defaultMaxRequestSize  int64  = 32 << 20
)

var (
	// ErrInvalidPort indicates the port number is outside valid range (1-65535).
	ErrInvalidPort = errors.New("invalid port")

	// ErrEmptyHost indicates the server host address is empty.
	ErrEmptyHost = errors.New("host cannot be empty")

	// ErrInvalidReadTimeout indicates the read timeout is zero or negative.
	ErrInvalidReadTimeout = errors.New("read timeout must be positive")

	// ErrInvalidWriteTimeout indicates the write timeout is zero or negative.
	ErrInvalidWriteTimeout = errors.New("write timeout must be positive")

	// ErrInvalidShutdownTimeout indicates the shutdown timeout is zero or negative.
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")

	// ErrInvalidMaxRequestSize indicates the max request size is zero or negative.
	ErrInvalidMaxRequestSize = errors.New("max request size must be positive")
)

// ServerConfig holds HTTP server configuration. Runtime dependencies are passed to NewServer.
type ServerConfig struct {
	Port               int
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           slog.Level
	MaxRequestSize     int64
	TrustForwardedFor  bool
	Version            string
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int
}

// LoadServerConfig reads ROSTER_* server settings from the environment.
// CORS is disabled unless ROSTER_CORS_ALLOWED_ORIGINS is set.
func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:              config.GetEnvInt("ROSTER_PORT", defaultPort),
		Host:              config.GetEnvStr("ROSTER_HOST", defaultHost),
		ReadTimeout:       config.GetEnvDuration("ROSTER_READ_TIMEOUT", defaultReadTimeout),
		WriteTimeout:      config.GetEnvDuration("ROSTER_WRITE_TIMEOUT", defaultWriteTimeout),
		ShutdownTimeout:   config.GetEnvDuration("ROSTER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		LogLevel:          config.GetEnvLogLevel("ROSTER_LOG_LEVEL", defaultLogLevel),
		MaxRequestSize:    config.GetEnvInt64("ROSTER_MAX_REQUEST_SIZE", defaultMaxRequestSize),
		TrustForwardedFor: config.GetEnvBool("ROSTER_TRUST_FORWARDED_FOR", false),
		CORSAllowedOrigins: config.ParseCommaSeparatedList(
			config.GetEnvStr("ROSTER_CORS_ALLOWED_ORIGINS", ""),
		),
		CORSAllowedMethods: config.ParseCommaSeparatedList(
			config.GetEnvStr("ROSTER_CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
		),
		CORSAllowedHeaders: config.ParseCommaSeparatedList(
			config.GetEnvStr("ROSTER_CORS_ALLOWED_HEADERS", "Content-Type,X-Correlation-ID,X-Api-Key,Authorization"),
		),
		CORSMaxAge: config.GetEnvInt("ROSTER_CORS_MAX_AGE", defaultCORSMaxAge),
	}
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSConfig converts the CORS fields for the middleware.
func (c *ServerConfig) CORSConfig() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: c.CORSAllowedMethods,
		AllowedHeaders: c.CORSAllowedHeaders,
		ExposedHeaders: []string{middleware.CorrelationIDHeader},
		MaxAge:         c.CORSMaxAge,
	}
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > maxPort {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, maxPort)
	}

	if c.Host == "" {
		return ErrEmptyHost
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	if c.MaxRequestSize <= 0 {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidMaxRequestSize, c.MaxRequestSize)
	}

	return nil
}
