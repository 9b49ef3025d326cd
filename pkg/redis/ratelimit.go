package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims, counts and records in one round trip
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	end
	return {0, 0}
`)

// WindowLimiter is a sliding-window rate limit shared by every process on the same Redis
// ⭐ SSOT: cross-replica quotas live here; per-process buckets stay in the API middleware
type WindowLimiter struct {
	client *Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
	seq    atomic.Uint64
}

// NewWindowLimiter allows limit requests per window for each key
func NewWindowLimiter(client *Client, prefix string, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Key returns the Redis key counting requests for id
func (l *WindowLimiter) Key(id string) string {
	return fmt.Sprintf("%s:ratelimit:%s", l.prefix, id)
}

// Enabled reports whether the limiter enforces anything
func (l *WindowLimiter) Enabled() bool {
	return l != nil && l.client.Enabled() && l.limit > 0
}

// Allow checks if a request for id fits the window.
// Returns (allowed, remaining, error). A disabled limiter allows everything.
func (l *WindowLimiter) Allow(ctx context.Context, id string) (bool, int, error) {
	if !l.Enabled() {
		return true, l.limit, nil
	}

	now := l.now()
	nowMs := now.UnixMilli()
	// unique member so two hits in the same millisecond both count
	member := fmt.Sprintf("%d-%d", now.UnixNano(), l.seq.Add(1))

	result, err := slidingWindow.Run(ctx, l.client.Redis(), []string{l.Key(id)},
		nowMs,
		nowMs-l.window.Milliseconds(),
		l.limit,
		l.window.Milliseconds(),
		member,
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values", len(result))
	}

	allowed, _ := result[0].(int64)
	remaining, _ := result[1].(int64)
	return allowed == 1, int(remaining), nil
}

// Window returns the configured window
func (l *WindowLimiter) Window() time.Duration {
	return l.window
}
