package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/prodigy-ranking/backend/pkg/logger"
)

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "burst exhausted")
	assert.True(t, l.Allow("b"), "clients are independent")

	now = now.Add(1 * time.Second)
	assert.True(t, l.Allow("a"), "refilled")
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(0.5, 1)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/teams", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:5000").Code)

	limited := request("10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code, "same host, other port")
	assert.Equal(t, "2", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "rate limit exceeded")

	assert.Equal(t, http.StatusOK, request("10.0.0.2:5000").Code)
}

// quotaLimiter allows n requests per id, or fails every call
type quotaLimiter struct {
	n    int
	seen map[string]int
	err  error
}

func (q *quotaLimiter) Enabled() bool         { return true }
func (q *quotaLimiter) Window() time.Duration { return time.Minute }

func (q *quotaLimiter) Allow(_ context.Context, id string) (bool, int, error) {
	if q.err != nil {
		return false, 0, q.err
	}
	q.seen[id]++
	return q.seen[id] <= q.n, max(0, q.n-q.seen[id]), nil
}

func TestRateLimiter_Shared(t *testing.T) {
	tests := []struct {
		name   string
		shared *quotaLimiter
		want   []int
	}{
		{
			name:   "shared quota applies after local bucket",
			shared: &quotaLimiter{n: 2, seen: map[string]int{}},
			want:   []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:   "shared failure lets requests through",
			shared: &quotaLimiter{err: errors.New("redis down")},
			want:   []int{http.StatusOK, http.StatusOK, http.StatusOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewRateLimiter(100, 100).WithShared(tt.shared, logger.Nop())
			handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			for i, want := range tt.want {
				req := httptest.NewRequest(http.MethodGet, "/api/v1/teams", nil)
				req.RemoteAddr = "10.0.0.1:5000"
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)
				assert.Equal(t, want, rec.Code, "request %d", i)
				if want == http.StatusTooManyRequests {
					assert.Equal(t, "60", rec.Header().Get("Retry-After"))
				}
			}
		})
	}
}
