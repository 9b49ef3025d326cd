// Package middleware holds HTTP middleware for the read API.
package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/prodigy-ranking/backend/pkg/logger"
)

// idleAfter drops a client's limiter once it has been quiet this long
const idleAfter = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SharedLimiter is a quota counted across every API replica
type SharedLimiter interface {
	Enabled() bool
	Allow(ctx context.Context, id string) (bool, int, error)
	Window() time.Duration
}

// RateLimiter is a per-client token bucket keyed by remote IP,
// optionally backed by a shared quota
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	visitors map[string]*visitor
	mu       sync.Mutex
	now      func() time.Time

	shared SharedLimiter
	logger *logger.Logger
}

// NewRateLimiter allows rps requests per second per client with the given burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// WithShared adds a cross-replica quota checked after the local bucket.
// Shared limiter errors are logged and the request is let through.
func (l *RateLimiter) WithShared(shared SharedLimiter, log *logger.Logger) *RateLimiter {
	l.shared = shared
	l.logger = log
	return l
}

// Allow reports whether a request from key may proceed
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	// sweep piggybacks on traffic
	if len(l.visitors) > 1024 {
		for k, other := range l.visitors {
			if now.Sub(other.lastSeen) > idleAfter {
				delete(l.visitors, k)
			}
		}
	}

	return v.limiter.AllowN(now, 1)
}

// Middleware rejects over-limit requests with 429
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(1, int(1/float64(l.rps))))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !l.Allow(key) {
			tooMany(w, retryAfter)
			return
		}
		if !l.allowShared(r.Context(), key) {
			tooMany(w, strconv.Itoa(max(1, int(l.shared.Window().Seconds()))))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allowShared(ctx context.Context, key string) bool {
	if l.shared == nil || !l.shared.Enabled() {
		return true
	}
	allowed, _, err := l.shared.Allow(ctx, key)
	if err != nil {
		if l.logger != nil {
			l.logger.WithError(err).Warn("Shared rate limit check failed")
		}
		return true
	}
	return allowed
}

func tooMany(w http.ResponseWriter, retryAfter string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", retryAfter)
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "rate limit exceeded",
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
