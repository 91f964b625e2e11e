package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier    int     = 2
	defaultMaxClients          int     = 10_000
	defaultGlobalRPS           int     = 100
	defaultClientRPS           int     = 20
	thresholdMultiplier        float64 = 0.8
	rateLimiterCleanupInterval         = 5 * time.Minute
	rateLimiterIdleTimeout             = 1 * time.Hour
)

type (
	// RateLimiter decides whether a request from clientKey may proceed.
	RateLimiter interface {
		Allow(clientKey string) bool
	}

	// InMemoryRateLimiter implements RateLimiter with golang.org/x/time/rate token buckets:
	// one global bucket plus one bucket per client, created lazily. Client buckets idle longer
	// than IdleTimeout are evicted by a background sweep. When MaxClients buckets exist, unknown
	// clients are served by the global bucket alone.
	InMemoryRateLimiter struct {
		global        *rate.Limiter
		clients       map[string]*clientLimiter
		mu            sync.RWMutex
		cleanupTicker *time.Ticker
		done          chan struct{}
		closeOnce     sync.Once

		clientRPS   int
		clientBurst int
		idleTimeout time.Duration
		maxClients  int
		warned      bool
	}

	clientLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}
)

// NewInMemoryRateLimiter starts a limiter and its cleanup goroutine. Call Close to stop it.
func NewInMemoryRateLimiter(cfg *Config) *InMemoryRateLimiter {
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = rateLimiterCleanupInterval
	}

	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}

	rl := &InMemoryRateLimiter{
		global:        rate.NewLimiter(rate.Limit(cfg.GlobalRPS), computeBurstCapacity(cfg.GlobalRPS, cfg.GlobalBurst)),
		clients:       make(map[string]*clientLimiter),
		cleanupTicker: time.NewTicker(cleanupInterval),
		done:          make(chan struct{}),
		clientRPS:     cfg.ClientRPS,
		clientBurst:   computeBurstCapacity(cfg.ClientRPS, cfg.ClientBurst),
		idleTimeout:   idleTimeout,
		maxClients:    maxClients,
	}

	go rl.sweep()

	return rl
}

// computeBurstCapacity returns burstOverride when set, otherwise 2 × rate.
func computeBurstCapacity(rate, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rate * burstCapacityMultiplier
}

// Allow checks the global bucket first and then the client's own bucket.
func (rl *InMemoryRateLimiter) Allow(clientKey string) bool {
	if !rl.global.Allow() {
		return false
	}

	cl := rl.clientFor(clientKey)
	if cl == nil {
		return true
	}

	cl.mu.Lock()
	cl.lastAccess = time.Now()
	cl.mu.Unlock()

	return cl.limiter.Allow()
}

func (rl *InMemoryRateLimiter) clientFor(clientKey string) *clientLimiter {
	rl.mu.RLock()
	cl, ok := rl.clients[clientKey]
	rl.mu.RUnlock()

	if ok {
		return cl
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, ok = rl.clients[clientKey]; ok {
		return cl
	}

	count := len(rl.clients)
	if count >= rl.maxClients {
		return nil
	}

	if !rl.warned && count >= int(float64(rl.maxClients)*thresholdMultiplier) {
		rl.warned = true

		slog.Warn("Rate limiter approaching max clients",
			slog.Int("current_clients", count),
			slog.Int("max_clients", rl.maxClients),
		)
	}

	cl = &clientLimiter{
		limiter:    rate.NewLimiter(rate.Limit(rl.clientRPS), rl.clientBurst),
		lastAccess: time.Now(),
	}
	rl.clients[clientKey] = cl

	return cl
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *InMemoryRateLimiter) Close() {
	rl.closeOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.done)
	})
}

func (rl *InMemoryRateLimiter) sweep() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

// cleanup evicts client buckets idle longer than idleTimeout.
func (rl *InMemoryRateLimiter) cleanup() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, cl := range rl.clients {
		cl.mu.Lock()
		idle := now.Sub(cl.lastAccess)
		cl.mu.Unlock()

		if idle > rl.idleTimeout {
			delete(rl.clients, key)
		}
	}

	if len(rl.clients) < int(float64(rl.maxClients)*thresholdMultiplier) {
		rl.warned = false
	}
}

// clientCount is used by tests.
func (rl *InMemoryRateLimiter) clientCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return len(rl.clients)
}

// ClientKey identifies the caller for per-client limiting: the peer host, or the first
// X-Forwarded-For hop when trustForwardedFor is set.
func ClientKey(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// RateLimit rejects requests over the limit with 429 and a Retry-After header.
// Paths listed in exempt (health checks) bypass the limiter.
func RateLimit(
	limiter RateLimiter,
	logger *slog.Logger,
	trustForwardedFor bool,
	exempt ...string,
) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(exempt))
	for _, path := range exempt {
		skip[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)

				return
			}

			key := ClientKey(r, trustForwardedFor)
			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					slog.String("client", key),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", GetCorrelationID(r.Context())),
				)

				w.Header().Set("Retry-After", "1")
				writeProblem(w, r, logger, http.StatusTooManyRequests,
					"Rate limit exceeded. Please retry after some time.")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
