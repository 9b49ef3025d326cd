package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodigy-ranking/backend/internal/api/handlers"
	"github.com/prodigy-ranking/backend/internal/api/middleware"
	"github.com/prodigy-ranking/backend/internal/api/stream"
	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/config"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// memReader serves fixed records for one season
type memReader struct {
	season  string
	ratings []contracts.CategoryRatingRecord
	teams   []contracts.TeamRankingRecord
	playoff []contracts.PlayoffProbabilityRecord
	err     error
	lastQ   contracts.LeaderboardQuery
}

func (m *memReader) check(season string) error {
	if m.err != nil {
		return m.err
	}
	if season != m.season {
		return contracts.ErrNotFound
	}
	return nil
}

func (m *memReader) LatestRun(_ context.Context, season string) (*contracts.RunSummary, error) {
	if err := m.check(season); err != nil {
		return nil, err
	}
	return &contracts.RunSummary{RunID: "r1", Season: season}, nil
}

func (m *memReader) PlayerRating(_ context.Context, season, playerID string) (*contracts.CategoryRatingRecord, error) {
	if err := m.check(season); err != nil {
		return nil, err
	}
	for i := range m.ratings {
		if m.ratings[i].PlayerID == playerID {
			return &m.ratings[i], nil
		}
	}
	return nil, contracts.ErrNotFound
}

func (m *memReader) Leaderboard(_ context.Context, season string, q contracts.LeaderboardQuery) ([]contracts.CategoryRatingRecord, error) {
	m.lastQ = q
	if err := m.check(season); err != nil {
		return nil, err
	}
	return m.ratings, nil
}

func (m *memReader) TeamRankings(_ context.Context, season string) ([]contracts.TeamRankingRecord, error) {
	if err := m.check(season); err != nil {
		return nil, err
	}
	return m.teams, nil
}

func (m *memReader) PlayoffOdds(_ context.Context, season string) ([]contracts.PlayoffProbabilityRecord, error) {
	if err := m.check(season); err != nil {
		return nil, err
	}
	return m.playoff, nil
}

func newTestRouter(reader contracts.ResultReader, limiter *middleware.RateLimiter) http.Handler {
	if limiter == nil {
		limiter = middleware.NewRateLimiter(1000, 1000)
	}
	log := logger.Nop()
	return NewRouter(handlers.NewRankingHandler(reader, "2025-26", log), stream.NewHub(log), limiter, log)
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestRouter(t *testing.T) {
	reader := &memReader{
		season:  "2025-26",
		ratings: []contracts.CategoryRatingRecord{{PlayerID: "p01", Name: "Avery Stone", Overall: 88}},
		teams:   []contracts.TeamRankingRecord{{TeamID: "loomis", Rank: 1, OverallRating: 97}},
	}
	router := newTestRouter(reader, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{"health", "/health", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "ok", body["status"])
		}},
		{"latest run", "/api/v1/runs/latest", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "r1", body["run_id"])
		}},
		{"unknown season", "/api/v1/runs/latest?season=1999-00", http.StatusNotFound, nil},
		{"player", "/api/v1/players/p01", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "Avery Stone", body["name"])
			assert.Equal(t, 88.0, body["overall"])
		}},
		{"unknown player", "/api/v1/players/nobody", http.StatusNotFound, nil},
		{"leaderboard", "/api/v1/leaderboard?birth_year=2008&position=LD&limit=10", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, 1.0, body["count"])
			assert.Equal(t, contracts.LeaderboardQuery{BirthYear: 2008, Position: contracts.PositionDefense, Limit: 10}, reader.lastQ)
		}},
		{"bad position", "/api/v1/leaderboard?position=QB", http.StatusBadRequest, nil},
		{"bad limit", "/api/v1/leaderboard?limit=-1", http.StatusBadRequest, nil},
		{"teams", "/api/v1/teams", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, 1.0, body["count"])
		}},
		{"empty playoff is a list", "/api/v1/playoff", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, []interface{}{}, body["teams"])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, router, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestRouter_ReaderFailure(t *testing.T) {
	router := newTestRouter(&memReader{season: "2025-26", err: errors.New("connection refused")}, nil)

	rec, body := get(t, router, "/api/v1/teams")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"], "internal errors are not leaked")
}

func TestRouter_RateLimited(t *testing.T) {
	router := newTestRouter(&memReader{season: "2025-26"}, middleware.NewRateLimiter(0.1, 1))

	rec, _ := get(t, router, "/api/v1/teams")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = get(t, router, "/api/v1/teams")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = get(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code, "health is not limited")
}

func TestNewServer_Timeouts(t *testing.T) {
	tests := []struct {
		name      string
		api       config.APIConfig
		wantRead  time.Duration
		wantWrite time.Duration
		wantIdle  time.Duration
	}{
		{
			name:      "zero config falls back",
			wantRead:  15 * time.Second,
			wantWrite: 15 * time.Second,
			wantIdle:  60 * time.Second,
		},
		{
			name:      "configured timeouts are applied",
			api:       config.APIConfig{ReadTimeout: 5 * time.Second, WriteTimeout: 45 * time.Second, IdleTimeout: 2 * time.Minute},
			wantRead:  5 * time.Second,
			wantWrite: 45 * time.Second,
			wantIdle:  2 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&config.Config{Port: "0", API: tt.api}, logger.Nop(), http.NewServeMux())
			assert.Equal(t, ":0", s.httpServer.Addr)
			assert.Equal(t, tt.wantRead, s.httpServer.ReadTimeout)
			assert.Equal(t, tt.wantWrite, s.httpServer.WriteTimeout)
			assert.Equal(t, tt.wantIdle, s.httpServer.IdleTimeout)
		})
	}
}

func TestServer_ShutdownStopsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := stream.NewHub(logger.Nop())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	s := New(&config.Config{Port: "0"}, logger.Nop(), hub)
	s.OnShutdown(cancel)
	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub still running after shutdown")
	}
}
