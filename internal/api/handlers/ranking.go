package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// RankingHandler serves published rankings
// ⭐ SSOT: read endpoints never compute; they only read the current run
type RankingHandler struct {
	reader        contracts.ResultReader
	defaultSeason string
	logger        *logger.Logger
}

// NewRankingHandler creates a new ranking handler
func NewRankingHandler(reader contracts.ResultReader, defaultSeason string, log *logger.Logger) *RankingHandler {
	return &RankingHandler{
		reader:        reader,
		defaultSeason: defaultSeason,
		logger:        log,
	}
}

func (h *RankingHandler) season(r *http.Request) string {
	if s := r.URL.Query().Get("season"); s != "" {
		return s
	}
	return h.defaultSeason
}

// GetLatestRun returns the current run summary
// GET /api/v1/runs/latest?season=2025-26
func (h *RankingHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.reader.LatestRun(r.Context(), h.season(r))
	if err != nil {
		respondReadError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// GetPlayer returns one player's ratings
// GET /api/v1/players/{id}?season=2025-26
func (h *RankingHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["id"]

	rating, err := h.reader.PlayerRating(r.Context(), h.season(r), playerID)
	if err != nil {
		respondReadError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rating)
}

// GetLeaderboard returns players ordered by overall rating
// GET /api/v1/leaderboard?season=&birth_year=2008&position=D&limit=50&offset=0
func (h *RankingHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q, err := parseLeaderboardQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	board, err := h.reader.Leaderboard(r.Context(), h.season(r), q)
	if err != nil {
		respondReadError(w, h.logger, err)
		return
	}
	if board == nil {
		board = []contracts.CategoryRatingRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"season":  h.season(r),
		"count":   len(board),
		"players": board,
	})
}

// GetTeams returns team rankings
// GET /api/v1/teams?season=2025-26
func (h *RankingHandler) GetTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.reader.TeamRankings(r.Context(), h.season(r))
	if err != nil {
		respondReadError(w, h.logger, err)
		return
	}
	if teams == nil {
		teams = []contracts.TeamRankingRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"season": h.season(r),
		"count":  len(teams),
		"teams":  teams,
	})
}

// GetPlayoff returns playoff probabilities
// GET /api/v1/playoff?season=2025-26
func (h *RankingHandler) GetPlayoff(w http.ResponseWriter, r *http.Request) {
	odds, err := h.reader.PlayoffOdds(r.Context(), h.season(r))
	if err != nil {
		respondReadError(w, h.logger, err)
		return
	}
	if odds == nil {
		odds = []contracts.PlayoffProbabilityRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"season": h.season(r),
		"count":  len(odds),
		"teams":  odds,
	})
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseLeaderboardQuery(r *http.Request) (contracts.LeaderboardQuery, error) {
	values := r.URL.Query()
	var q contracts.LeaderboardQuery

	ints := []struct {
		name string
		dest *int
	}{
		{"birth_year", &q.BirthYear},
		{"limit", &q.Limit},
		{"offset", &q.Offset},
	}
	for _, p := range ints {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, queryError("invalid " + p.name)
		}
		*p.dest = n
	}

	if raw := values.Get("position"); raw != "" {
		pos, err := contracts.ParsePosition(raw)
		if err != nil {
			return q, queryError("invalid position")
		}
		q.Position = pos
	}

	return q, nil
}
