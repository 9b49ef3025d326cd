package publish

import (
	"context"
	"fmt"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/redis"
)

// CachedReader puts a read-through cache in front of another reader.
// Entries live under redis.SeasonPrefix, which every publish drops.
type CachedReader struct {
	next  contracts.ResultReader
	cache *redis.Cache
}

// NewCachedReader wraps next with cache
func NewCachedReader(next contracts.ResultReader, cache *redis.Cache) *CachedReader {
	return &CachedReader{
		next:  next,
		cache: cache,
	}
}

// LatestRun returns the cached run summary
func (r *CachedReader) LatestRun(ctx context.Context, season string) (*contracts.RunSummary, error) {
	return redis.GetOrSet(ctx, r.cache, redis.SeasonPrefix(season)+"run", redis.TTLLong, func() (*contracts.RunSummary, error) {
		return r.next.LatestRun(ctx, season)
	})
}

// PlayerRating returns a cached player rating
func (r *CachedReader) PlayerRating(ctx context.Context, season, playerID string) (*contracts.CategoryRatingRecord, error) {
	return redis.GetOrSet(ctx, r.cache, redis.PlayerRatingKey(season, playerID), redis.TTLMedium, func() (*contracts.CategoryRatingRecord, error) {
		return r.next.PlayerRating(ctx, season, playerID)
	})
}

// Leaderboard returns a cached leaderboard page
func (r *CachedReader) Leaderboard(ctx context.Context, season string, q contracts.LeaderboardQuery) ([]contracts.CategoryRatingRecord, error) {
	return redis.GetOrSet(ctx, r.cache, LeaderboardKey(season, q), redis.TTLShort, func() ([]contracts.CategoryRatingRecord, error) {
		return r.next.Leaderboard(ctx, season, q)
	})
}

// TeamRankings returns cached team records
func (r *CachedReader) TeamRankings(ctx context.Context, season string) ([]contracts.TeamRankingRecord, error) {
	return redis.GetOrSet(ctx, r.cache, redis.TeamRankingsKey(season), redis.TTLMedium, func() ([]contracts.TeamRankingRecord, error) {
		return r.next.TeamRankings(ctx, season)
	})
}

// PlayoffOdds returns cached playoff records
func (r *CachedReader) PlayoffOdds(ctx context.Context, season string) ([]contracts.PlayoffProbabilityRecord, error) {
	return redis.GetOrSet(ctx, r.cache, redis.PlayoffKey(season), redis.TTLMedium, func() ([]contracts.PlayoffProbabilityRecord, error) {
		return r.next.PlayoffOdds(ctx, season)
	})
}

// LeaderboardKey identifies one filtered leaderboard page
func LeaderboardKey(season string, q contracts.LeaderboardQuery) string {
	return fmt.Sprintf("%sleaderboard:%d:%s:%d:%d", redis.SeasonPrefix(season), q.BirthYear, q.Position, q.Limit, q.Offset)
}
