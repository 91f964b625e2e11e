package api

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadServerConfig(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	for _, key := range []string{
		"ROSTER_PORT", "ROSTER_HOST", "ROSTER_WRITE_TIMEOUT", "ROSTER_LOG_LEVEL",
		"ROSTER_MAX_REQUEST_SIZE", "ROSTER_CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadServerConfig()

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultHost, cfg.Host)
	assert.Equal(t, defaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, defaultMaxRequestSize, cfg.MaxRequestSize)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.NoError(t, cfg.Validate())

	t.Setenv("ROSTER_PORT", "9191")
	t.Setenv("ROSTER_WRITE_TIMEOUT", "90s")
	t.Setenv("ROSTER_LOG_LEVEL", "debug")
	t.Setenv("ROSTER_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg = LoadServerConfig()

	assert.Equal(t, "0.0.0.0:9191", cfg.Address())
	assert.Equal(t, 90*time.Second, cfg.WriteTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSConfig().AllowedOrigins)
}

func TestServerConfigValidate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		want   error
	}{
		{name: "port zero", mutate: func(c *ServerConfig) { c.Port = 0 }, want: ErrInvalidPort},
		{name: "port too high", mutate: func(c *ServerConfig) { c.Port = 70000 }, want: ErrInvalidPort},
		{name: "empty host", mutate: func(c *ServerConfig) { c.Host = "" }, want: ErrEmptyHost},
		{name: "read timeout", mutate: func(c *ServerConfig) { c.ReadTimeout = 0 }, want: ErrInvalidReadTimeout},
		{name: "write timeout", mutate: func(c *ServerConfig) { c.WriteTimeout = -1 }, want: ErrInvalidWriteTimeout},
		{name: "shutdown timeout", mutate: func(c *ServerConfig) { c.ShutdownTimeout = 0 }, want: ErrInvalidShutdownTimeout},
		{name: "request size", mutate: func(c *ServerConfig) { c.MaxRequestSize = 0 }, want: ErrInvalidMaxRequestSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}
