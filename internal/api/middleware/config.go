package middleware

import (
	"time"

	"github.com/correlator-io/roster/internal/config"
)

// Config holds rate limiter configuration.
//
// Two token buckets guard the API: a global bucket shared by every request and one bucket per
// client address. A burst of 0 is computed as 2 × rate.
type Config struct {
	GlobalRPS   int // Default: 100
	ClientRPS   int // Default: 20
	GlobalBurst int
	ClientBurst int

	// TrustForwardedFor keys clients on the first X-Forwarded-For hop instead of the peer address.
	// Enable only behind a proxy that overwrites the header.
	TrustForwardedFor bool

	CleanupInterval time.Duration // Default: 5 minutes
	IdleTimeout     time.Duration // Default: 1 hour
	MaxClients      int           // Default: 10,000
}

// LoadConfig reads ROSTER_* rate limit settings from the environment.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS:   config.GetEnvInt("ROSTER_GLOBAL_RPS", defaultGlobalRPS),
		ClientRPS:   config.GetEnvInt("ROSTER_CLIENT_RPS", defaultClientRPS),
		GlobalBurst: config.GetEnvInt("ROSTER_GLOBAL_BURST", 0),
		ClientBurst: config.GetEnvInt("ROSTER_CLIENT_BURST", 0),

		TrustForwardedFor: config.GetEnvBool("ROSTER_TRUST_FORWARDED_FOR", false),

		CleanupInterval: config.GetEnvDuration("ROSTER_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval),
		IdleTimeout:     config.GetEnvDuration("ROSTER_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxClients:      config.GetEnvInt("ROSTER_RATE_LIMIT_MAX_CLIENTS", defaultMaxClients),
	}
}
