package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/harborlight/beacon/pkg/httputil"
)

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate allowed per client.
	RequestsPerMinute int
	// Burst allows short spikes above the sustained rate.
	Burst int
}

// IntakeRateLimitConfig returns the limits for the public submission
// form. Tight on purpose: a legitimate submitter files one form, not
// dozens a minute.
func IntakeRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 10,
		Burst:             5,
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks a token bucket per client IP.
type RateLimiter struct {
	config  *RateLimitConfig
	clients map[string]*client
	mu      sync.Mutex
}

// NewRateLimiter creates a rate limiter and starts evicting idle
// client buckets in the background.
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = IntakeRateLimitConfig()
	}

	rl := &RateLimiter{
		config:  config,
		clients: make(map[string]*client),
	}
	go rl.evictLoop()
	return rl
}

// Allow checks whether the given client may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &client{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.config.RequestsPerMinute)/60.0), rl.config.Burst),
		}
		rl.clients[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.mu.Lock()
		for key, c := range rl.clients {
			if c.lastSeen.Before(cutoff) {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware answers 429 for clients over their rate.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r)) {
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the client by IP, trusting X-Forwarded-For when
// present since the server normally sits behind a proxy.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
