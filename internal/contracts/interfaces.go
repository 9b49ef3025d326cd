package contracts

import "context"

// SnapshotSource reads one consistent population snapshot (S0)
// ⭐ SSOT: the only way the pipeline sees raw data
type SnapshotSource interface {
	Load(ctx context.Context, season string) (*Snapshot, error)
}

// ResultSink publishes a full derived set, replacing the previous one atomically
// ⭐ SSOT: keyed by (player_id | team_id, season)
type ResultSink interface {
	Name() string
	Publish(ctx context.Context, out *RunOutput) error
}

// LeaderboardQuery filters a player leaderboard
type LeaderboardQuery struct {
	BirthYear int
	Position  Position
	Limit     int
	Offset    int
}

// ResultReader serves published results
type ResultReader interface {
	LatestRun(ctx context.Context, season string) (*RunSummary, error)
	PlayerRating(ctx context.Context, season, playerID string) (*CategoryRatingRecord, error)
	Leaderboard(ctx context.Context, season string, q LeaderboardQuery) ([]CategoryRatingRecord, error)
	TeamRankings(ctx context.Context, season string) ([]TeamRankingRecord, error)
	PlayoffOdds(ctx context.Context, season string) ([]PlayoffProbabilityRecord, error)
}
