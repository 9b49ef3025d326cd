package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/logger"
	"github.com/prodigy-ranking/backend/pkg/redis"
)

const (
	// KeyPrefix scopes every key this service writes
	KeyPrefix = "prodigy"

	// previous run keys stay readable this long after a flip
	retiredRunTTL = 10 * time.Minute
)

// Run-scoped key parts
const (
	partSummary = "summary"
	partRatings = "ratings" // hash: player_id → rating JSON
	partTeams   = "teams"
	partPlayoff = "playoff"
)

// CurrentKey holds the run id readers should use for a season
func CurrentKey(season string) string {
	return fmt.Sprintf("%s:season:%s:current", KeyPrefix, season)
}

// RunKey addresses one part of a published run
func RunKey(season, runID, part string) string {
	return fmt.Sprintf("%s:season:%s:run:%s:%s", KeyPrefix, season, runID, part)
}

func runKeys(season, runID string) []string {
	return []string{
		RunKey(season, runID, partSummary),
		RunKey(season, runID, partRatings),
		RunKey(season, runID, partTeams),
		RunKey(season, runID, partPlayoff),
	}
}

// RedisSink writes a run under run-scoped keys, then flips the season pointer
// ⭐ SSOT: readers resolve CurrentKey first, so a half-written run is never visible
type RedisSink struct {
	client *redis.Client
	cache  *redis.Cache
	logger *logger.Logger
}

// NewRedisSink creates a new Redis result sink; cache may be nil
func NewRedisSink(client *redis.Client, cache *redis.Cache, log *logger.Logger) *RedisSink {
	return &RedisSink{
		client: client,
		cache:  cache,
		logger: log,
	}
}

// Name returns the sink name
func (s *RedisSink) Name() string {
	return "redis"
}

// Publish writes the run keys, flips the pointer and drops read-through cache entries
func (s *RedisSink) Publish(ctx context.Context, out *contracts.RunOutput) error {
	if !s.client.Enabled() {
		s.logger.Debug("Redis disabled, skipping publish")
		return nil
	}
	rdb := s.client.Redis()

	summaryJSON, err := json.Marshal(out.Summary())
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	teamsJSON, err := json.Marshal(out.Teams)
	if err != nil {
		return fmt.Errorf("marshal teams: %w", err)
	}
	playoffJSON, err := json.Marshal(out.Playoff)
	if err != nil {
		return fmt.Errorf("marshal playoff: %w", err)
	}
	ratings := make(map[string]interface{}, len(out.Ratings))
	for i := range out.Ratings {
		data, err := json.Marshal(out.Ratings[i])
		if err != nil {
			return fmt.Errorf("marshal rating of %s: %w", out.Ratings[i].PlayerID, err)
		}
		ratings[out.Ratings[i].PlayerID] = data
	}

	// 1. run-scoped keys
	_, err = rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, RunKey(out.Season, out.RunID, partSummary), summaryJSON, 0)
		pipe.Set(ctx, RunKey(out.Season, out.RunID, partTeams), teamsJSON, 0)
		pipe.Set(ctx, RunKey(out.Season, out.RunID, partPlayoff), playoffJSON, 0)
		pipe.Del(ctx, RunKey(out.Season, out.RunID, partRatings))
		if len(ratings) > 0 {
			pipe.HSet(ctx, RunKey(out.Season, out.RunID, partRatings), ratings)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write run keys: %w", err)
	}

	// 2. atomic pointer flip
	previous, err := rdb.SetArgs(ctx, CurrentKey(out.Season), out.RunID, goredis.SetArgs{Get: true}).Result()
	if err != nil && !redis.IsNil(err) {
		return fmt.Errorf("flip current run: %w", err)
	}

	// 3. retire the previous run and the read-through cache
	if previous != "" && previous != out.RunID {
		for _, key := range runKeys(out.Season, previous) {
			if err := rdb.Expire(ctx, key, retiredRunTTL).Err(); err != nil {
				s.logger.WithError(err).WithField("key", key).Warn("Failed to expire retired run key")
			}
		}
	}
	if s.cache != nil {
		if _, err := s.cache.DeletePrefix(ctx, redis.SeasonPrefix(out.Season)); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate read cache")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"run_id":   out.RunID,
		"season":   out.Season,
		"previous": previous,
		"players":  len(out.Ratings),
	}).Info("Flipped current run")

	return nil
}

// RedisReader serves the current run of a season from Redis
type RedisReader struct {
	client *redis.Client
}

// NewRedisReader creates a new Redis result reader
func NewRedisReader(client *redis.Client) *RedisReader {
	return &RedisReader{client: client}
}

func (r *RedisReader) currentRun(ctx context.Context, season string) (string, error) {
	if !r.client.Enabled() {
		return "", fmt.Errorf("redis disabled: %w", contracts.ErrNotFound)
	}
	runID, err := r.client.Redis().Get(ctx, CurrentKey(season)).Result()
	if redis.IsNil(err) {
		return "", fmt.Errorf("season %s: %w", season, contracts.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get current run: %w", err)
	}
	return runID, nil
}

func (r *RedisReader) getJSON(ctx context.Context, season, part string, dest interface{}) error {
	runID, err := r.currentRun(ctx, season)
	if err != nil {
		return err
	}
	data, err := r.client.Redis().Get(ctx, RunKey(season, runID, part)).Bytes()
	if redis.IsNil(err) {
		return fmt.Errorf("run %s %s: %w", runID, part, contracts.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", part, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", part, err)
	}
	return nil
}

// LatestRun returns the current run summary
func (r *RedisReader) LatestRun(ctx context.Context, season string) (*contracts.RunSummary, error) {
	var run contracts.RunSummary
	if err := r.getJSON(ctx, season, partSummary, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// PlayerRating returns one player's rating from the current run
func (r *RedisReader) PlayerRating(ctx context.Context, season, playerID string) (*contracts.CategoryRatingRecord, error) {
	runID, err := r.currentRun(ctx, season)
	if err != nil {
		return nil, err
	}
	data, err := r.client.Redis().HGet(ctx, RunKey(season, runID, partRatings), playerID).Bytes()
	if redis.IsNil(err) {
		return nil, fmt.Errorf("player %s: %w", playerID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get player rating: %w", err)
	}

	var rec contracts.CategoryRatingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal player rating: %w", err)
	}
	return &rec, nil
}

// Leaderboard filters and orders the current run's ratings in memory
func (r *RedisReader) Leaderboard(ctx context.Context, season string, q contracts.LeaderboardQuery) ([]contracts.CategoryRatingRecord, error) {
	runID, err := r.currentRun(ctx, season)
	if err != nil {
		return nil, err
	}
	all, err := r.client.Redis().HGetAll(ctx, RunKey(season, runID, partRatings)).Result()
	if err != nil {
		return nil, fmt.Errorf("get ratings: %w", err)
	}

	board := make([]contracts.CategoryRatingRecord, 0, len(all))
	for _, raw := range all {
		var rec contracts.CategoryRatingRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal rating: %w", err)
		}
		if q.BirthYear != 0 && rec.BirthYear != q.BirthYear {
			continue
		}
		if q.Position != "" && rec.Position != q.Position {
			continue
		}
		board = append(board, rec)
	}

	return Page(SortLeaderboard(board), q), nil
}

// TeamRankings returns the current run's team records
func (r *RedisReader) TeamRankings(ctx context.Context, season string) ([]contracts.TeamRankingRecord, error) {
	var teams []contracts.TeamRankingRecord
	if err := r.getJSON(ctx, season, partTeams, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// PlayoffOdds returns the current run's playoff records
func (r *RedisReader) PlayoffOdds(ctx context.Context, season string) ([]contracts.PlayoffProbabilityRecord, error) {
	var odds []contracts.PlayoffProbabilityRecord
	if err := r.getJSON(ctx, season, partPlayoff, &odds); err != nil {
		return nil, err
	}
	return odds, nil
}

// SortLeaderboard orders by overall, then total points, then player id
func SortLeaderboard(board []contracts.CategoryRatingRecord) []contracts.CategoryRatingRecord {
	sort.SliceStable(board, func(i, j int) bool {
		a, b := board[i], board[j]
		if a.Overall != b.Overall {
			return a.Overall > b.Overall
		}
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		return a.PlayerID < b.PlayerID
	})
	return board
}

// Page applies the query's limit and offset with the reader defaults
func Page(board []contracts.CategoryRatingRecord, q contracts.LeaderboardQuery) []contracts.CategoryRatingRecord {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	offset := max(q.Offset, 0)
	if offset >= len(board) {
		return []contracts.CategoryRatingRecord{}
	}
	return board[offset:min(offset+limit, len(board))]
}
