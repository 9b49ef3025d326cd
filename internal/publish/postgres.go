package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/database"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 500
)

// seasonTables are replaced as a whole on every publish
var seasonTables = []string{
	"ranking.player_factors",
	"ranking.player_ratings",
	"ranking.team_rankings",
	"ranking.playoff_probabilities",
}

// PostgresSink replaces a season's derived rows in one transaction
// ⭐ SSOT: delete-season-then-insert; readers never see a mixed run
type PostgresSink struct {
	db     *database.DB
	logger *logger.Logger
}

// NewPostgresSink creates a new Postgres result sink
func NewPostgresSink(db *database.DB, log *logger.Logger) *PostgresSink {
	return &PostgresSink{
		db:     db,
		logger: log,
	}
}

// Name returns the sink name
func (s *PostgresSink) Name() string {
	return "postgres"
}

// Publish writes the run record and every derived row
func (s *PostgresSink) Publish(ctx context.Context, out *contracts.RunOutput) error {
	reportJSON, err := json.Marshal(out.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	return s.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, table := range seasonTables {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE season = $1`, out.Season); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		batch := &pgx.Batch{}

		batch.Queue(`
			INSERT INTO ranking.runs (run_id, season, ruleset_hash, started_at, finished_at, published_at, report)
			VALUES ($1, $2, $3, $4, $5, NOW(), $6)
			ON CONFLICT (run_id) DO UPDATE SET
				published_at = NOW(),
				report = EXCLUDED.report`,
			out.RunID, out.Season, out.RulesetHash, out.StartedAt, out.FinishedAt, reportJSON)

		if err := queueFactors(batch, out); err != nil {
			return err
		}
		if err := queueRatings(batch, out); err != nil {
			return err
		}
		queueTeams(batch, out)
		queuePlayoff(batch, out)

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert batch statement %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}

		s.logger.WithFields(map[string]interface{}{
			"run_id":  out.RunID,
			"season":  out.Season,
			"players": len(out.Ratings),
			"teams":   len(out.Teams),
			"playoff": len(out.Playoff),
		}).Info("Replaced season rows")

		return nil
	})
}

// PruneRuns deletes run records beyond the newest keep per season.
// Derived rows are replaced on publish, so only ranking.runs grows.
func (s *PostgresSink) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	query := `
		DELETE FROM ranking.runs
		WHERE run_id IN (
			SELECT run_id FROM (
				SELECT run_id, ROW_NUMBER() OVER (PARTITION BY season ORDER BY published_at DESC, run_id DESC) AS n
				FROM ranking.runs
			) ranked
			WHERE n > $1
		)`

	tag, err := s.db.Pool.Exec(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func queueFactors(batch *pgx.Batch, out *contracts.RunOutput) error {
	query := `
		INSERT INTO ranking.player_factors
			(player_id, season, run_id, total_points, performance_total, direct_load_total, coverage, factors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i := range out.Factors {
		f := &out.Factors[i]
		factorsJSON, err := json.Marshal(f.Factors)
		if err != nil {
			return fmt.Errorf("marshal factors of %s: %w", f.PlayerID, err)
		}
		batch.Queue(query, f.PlayerID, out.Season, out.RunID,
			f.TotalPoints, f.PerformanceTotal, f.DirectLoadTotal, f.Coverage, factorsJSON)
	}
	return nil
}

func queueRatings(batch *pgx.Batch, out *contracts.RunOutput) error {
	query := `
		INSERT INTO ranking.player_ratings
			(player_id, season, run_id, name, birth_year, position, peer_group, overall,
			 performance, level, visibility, achievements, physical, trending,
			 sums, percentiles, total_points, total_percentile, overall_percentile, peer_rank, peer_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	for i := range out.Ratings {
		r := &out.Ratings[i]
		groupJSON, err := json.Marshal(r.PeerGroup)
		if err != nil {
			return fmt.Errorf("marshal peer group of %s: %w", r.PlayerID, err)
		}
		sumsJSON, err := json.Marshal(r.Sums)
		if err != nil {
			return fmt.Errorf("marshal sums of %s: %w", r.PlayerID, err)
		}
		pctJSON, err := json.Marshal(r.Percentiles)
		if err != nil {
			return fmt.Errorf("marshal percentiles of %s: %w", r.PlayerID, err)
		}

		batch.Queue(query, r.PlayerID, out.Season, out.RunID, r.Name, r.BirthYear, string(r.Position), groupJSON, r.Overall,
			r.Ratings.Performance, r.Ratings.Level, r.Ratings.Visibility, r.Ratings.Achievements, r.Ratings.Physical, r.Ratings.Trending,
			sumsJSON, pctJSON, r.TotalPoints, r.TotalPercentile, r.OverallPercentile, r.PeerRank, r.PeerSize)
	}
	return nil
}

func queueTeams(batch *pgx.Batch, out *contracts.RunOutput) {
	query := `
		INSERT INTO ranking.team_rankings
			(team_id, season, run_id, name, rank, roster_size, matched_count, match_rate,
			 avg_score, median_score, max_score, total_score, roster_rating, overall_rating, performance_blend)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	for i := range out.Teams {
		t := &out.Teams[i]
		batch.Queue(query, t.TeamID, out.Season, out.RunID, t.Name, t.Rank, t.RosterSize, t.MatchedCount, t.MatchRate,
			t.AvgScore, t.MedianScore, t.MaxScore, t.TotalScore, t.RosterRating, t.OverallRating, t.PerformanceBlend)
	}
}

func queuePlayoff(batch *pgx.Batch, out *contracts.RunOutput) {
	query := `
		INSERT INTO ranking.playoff_probabilities
			(team_id, season, run_id, name, rank, overall_rating, classification, enrollment,
			 elite_bid, elite_champ, large_bid, large_champ, small_bid, small_champ)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	for i := range out.Playoff {
		p := &out.Playoff[i]
		batch.Queue(query, p.TeamID, out.Season, out.RunID, p.Name, p.Rank, p.OverallRating, string(p.Classification), p.Enrollment,
			p.EliteBid, p.EliteChamp, p.LargeBid, p.LargeChamp, p.SmallBid, p.SmallChamp)
	}
}

// PostgresReader serves published results from the ranking schema
type PostgresReader struct {
	db *database.DB
}

// NewPostgresReader creates a new Postgres result reader
func NewPostgresReader(db *database.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

// LatestRun returns the most recently published run of a season
func (r *PostgresReader) LatestRun(ctx context.Context, season string) (*contracts.RunSummary, error) {
	query := `
		SELECT run_id, season, ruleset_hash, started_at, finished_at, report
		FROM ranking.runs
		WHERE season = $1
		ORDER BY published_at DESC, finished_at DESC
		LIMIT 1
	`

	var (
		run        contracts.RunSummary
		reportJSON []byte
	)
	err := r.db.Pool.QueryRow(ctx, query, season).Scan(
		&run.RunID, &run.Season, &run.RulesetHash, &run.StartedAt, &run.FinishedAt, &reportJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run for season %s: %w", season, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	if err := json.Unmarshal(reportJSON, &run.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}

	return &run, nil
}

const ratingColumns = `
	player_id, name, birth_year, position, peer_group, overall,
	performance, level, visibility, achievements, physical, trending,
	sums, percentiles, total_points, total_percentile, overall_percentile, peer_rank, peer_size`

// PlayerRating returns one player's published rating
func (r *PostgresReader) PlayerRating(ctx context.Context, season, playerID string) (*contracts.CategoryRatingRecord, error) {
	query := `SELECT ` + ratingColumns + ` FROM ranking.player_ratings WHERE season = $1 AND player_id = $2`

	rec, err := scanRating(r.db.Pool.QueryRow(ctx, query, season, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", playerID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query player rating: %w", err)
	}
	return rec, nil
}

// Leaderboard returns ratings ordered by overall, best first.
// Zero-valued filters match everything.
func (r *PostgresReader) Leaderboard(ctx context.Context, season string, q contracts.LeaderboardQuery) ([]contracts.CategoryRatingRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	query := `SELECT ` + ratingColumns + `
		FROM ranking.player_ratings
		WHERE season = $1
		  AND ($2 = 0 OR birth_year = $2)
		  AND ($3 = '' OR position = $3)
		ORDER BY overall DESC, total_points DESC, player_id
		LIMIT $4 OFFSET $5`

	rows, err := r.db.Pool.Query(ctx, query, season, q.BirthYear, string(q.Position), limit, max(q.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []contracts.CategoryRatingRecord
	for rows.Next() {
		rec, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return out, nil
}

// TeamRankings returns a season's teams, ranked teams first
func (r *PostgresReader) TeamRankings(ctx context.Context, season string) ([]contracts.TeamRankingRecord, error) {
	query := `
		SELECT team_id, name, season, rank, roster_size, matched_count, match_rate,
		       avg_score, median_score, max_score, total_score, roster_rating, overall_rating, performance_blend
		FROM ranking.team_rankings
		WHERE season = $1
		ORDER BY rank = 0, rank, overall_rating DESC, team_id
	`

	rows, err := r.db.Pool.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("query team rankings: %w", err)
	}
	defer rows.Close()

	var out []contracts.TeamRankingRecord
	for rows.Next() {
		var t contracts.TeamRankingRecord
		if err := rows.Scan(&t.TeamID, &t.Name, &t.Season, &t.Rank, &t.RosterSize, &t.MatchedCount, &t.MatchRate,
			&t.AvgScore, &t.MedianScore, &t.MaxScore, &t.TotalScore, &t.RosterRating, &t.OverallRating, &t.PerformanceBlend); err != nil {
			return nil, fmt.Errorf("scan team ranking: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team rankings: %w", err)
	}
	return out, nil
}

// PlayoffOdds returns a season's playoff probabilities ordered by rank
func (r *PostgresReader) PlayoffOdds(ctx context.Context, season string) ([]contracts.PlayoffProbabilityRecord, error) {
	query := `
		SELECT team_id, name, season, rank, overall_rating, classification, enrollment,
		       elite_bid, elite_champ, large_bid, large_champ, small_bid, small_champ
		FROM ranking.playoff_probabilities
		WHERE season = $1
		ORDER BY rank
	`

	rows, err := r.db.Pool.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("query playoff odds: %w", err)
	}
	defer rows.Close()

	var out []contracts.PlayoffProbabilityRecord
	for rows.Next() {
		var (
			p     contracts.PlayoffProbabilityRecord
			class string
		)
		if err := rows.Scan(&p.TeamID, &p.Name, &p.Season, &p.Rank, &p.OverallRating, &class, &p.Enrollment,
			&p.EliteBid, &p.EliteChamp, &p.LargeBid, &p.LargeChamp, &p.SmallBid, &p.SmallChamp); err != nil {
			return nil, fmt.Errorf("scan playoff odds: %w", err)
		}
		p.Classification = contracts.Classification(class)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playoff odds: %w", err)
	}
	return out, nil
}

func scanRating(row pgx.Row) (*contracts.CategoryRatingRecord, error) {
	var (
		rec                          contracts.CategoryRatingRecord
		position                     string
		groupJSON, sumsJSON, pctJSON []byte
	)
	err := row.Scan(
		&rec.PlayerID, &rec.Name, &rec.BirthYear, &position, &groupJSON, &rec.Overall,
		&rec.Ratings.Performance, &rec.Ratings.Level, &rec.Ratings.Visibility,
		&rec.Ratings.Achievements, &rec.Ratings.Physical, &rec.Ratings.Trending,
		&sumsJSON, &pctJSON, &rec.TotalPoints, &rec.TotalPercentile, &rec.OverallPercentile, &rec.PeerRank, &rec.PeerSize,
	)
	if err != nil {
		return nil, err
	}

	rec.Position = contracts.Position(position)
	if err := json.Unmarshal(groupJSON, &rec.PeerGroup); err != nil {
		return nil, fmt.Errorf("unmarshal peer group: %w", err)
	}
	if err := json.Unmarshal(sumsJSON, &rec.Sums); err != nil {
		return nil, fmt.Errorf("unmarshal sums: %w", err)
	}
	if err := json.Unmarshal(pctJSON, &rec.Percentiles); err != nil {
		return nil, fmt.Errorf("unmarshal percentiles: %w", err)
	}
	return &rec, nil
}
