package s0_snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/database"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

// PostgresSource reads a snapshot from the ranking schema
// ⭐ SSOT: one REPEATABLE READ, READ ONLY transaction per snapshot
type PostgresSource struct {
	db     *database.DB
	logger *logger.Logger
}

// NewPostgresSource creates a new Postgres snapshot source
func NewPostgresSource(db *database.DB, log *logger.Logger) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: log,
	}
}

// Load reads players, raw inputs, teams and rosters for a season
func (s *PostgresSource) Load(ctx context.Context, season string) (*contracts.Snapshot, error) {
	snap := &contracts.Snapshot{
		Season:  season,
		TakenAt: time.Now().UTC(),
		Source:  "postgres",
	}

	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := s.db.WithTx(ctx, opts, func(tx pgx.Tx) error {
		players, err := s.loadPlayers(ctx, tx, season)
		if err != nil {
			return err
		}
		teams, err := s.loadTeams(ctx, tx, season)
		if err != nil {
			return err
		}
		snap.Players, snap.Teams = players, teams
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", season, err)
	}

	if len(snap.Players) == 0 && len(snap.Teams) == 0 {
		return nil, fmt.Errorf("season %s: %w", season, contracts.ErrNoSnapshot)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"season":  season,
		"players": len(snap.Players),
		"teams":   len(snap.Teams),
	}).Info("Loaded snapshot from postgres")

	return snap, nil
}

// loadPlayers returns every player with at least one raw input row for the season.
// Unparseable positions are skipped with a warning.
func (s *PostgresSource) loadPlayers(ctx context.Context, tx pgx.Tx, season string) ([]contracts.PlayerInput, error) {
	query := `
		SELECT p.player_id, p.name, p.birth_year, p.position, COALESCE(p.nationality, ''),
		       i.factor_code, i.value, i.label
		FROM ranking.players p
		JOIN ranking.player_raw_inputs i ON i.player_id = p.player_id AND i.season = $1
		ORDER BY p.player_id, i.factor_code
	`

	rows, err := tx.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var players []contracts.PlayerInput
	skipped := make(map[string]struct{})
	for rows.Next() {
		var (
			id, name, position, nationality, code string
			birthYear                             int
			value                                 *float64
			label                                 *string
		)
		if err := rows.Scan(&id, &name, &birthYear, &position, &nationality, &code, &value, &label); err != nil {
			return nil, fmt.Errorf("scan player input: %w", err)
		}

		if _, bad := skipped[id]; bad {
			continue
		}

		n := len(players)
		if n == 0 || players[n-1].PlayerID != id {
			pos, err := contracts.ParsePosition(position)
			if err != nil {
				skipped[id] = struct{}{}
				s.logger.WithFields(map[string]interface{}{
					"player_id": id,
					"position":  position,
				}).Warn("Skipping player with unknown position")
				continue
			}
			players = append(players, contracts.PlayerInput{
				PlayerID:    id,
				Name:        name,
				BirthYear:   birthYear,
				Position:    pos,
				Nationality: nationality,
				Inputs:      make(map[string]contracts.RawInput),
			})
			n++
		}

		players[n-1].Inputs[code] = contracts.RawInput{Value: value, Label: label}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player inputs: %w", err)
	}

	return players, nil
}

func (s *PostgresSource) loadTeams(ctx context.Context, tx pgx.Tx, season string) ([]contracts.TeamInput, error) {
	query := `
		SELECT team_id, name, COALESCE(rank, 0),
		       games_played, wins, losses, ties, goals_for, goals_against
		FROM ranking.teams
		WHERE season = $1
		ORDER BY team_id
	`

	rows, err := tx.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}

	var teams []contracts.TeamInput
	index := make(map[string]int)
	for rows.Next() {
		var (
			t                     contracts.TeamInput
			gp, w, l, ties, gf, a *int
		)
		if err := rows.Scan(&t.TeamID, &t.Name, &t.Rank, &gp, &w, &l, &ties, &gf, &a); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan team: %w", err)
		}
		if gp != nil {
			t.Standings = &contracts.Standings{
				GamesPlayed:  *gp,
				Wins:         deref(w),
				Losses:       deref(l),
				Ties:         deref(ties),
				GoalsFor:     deref(gf),
				GoalsAgainst: deref(a),
			}
		}
		index[t.TeamID] = len(teams)
		teams = append(teams, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate teams: %w", err)
	}

	rosterQuery := `
		SELECT team_id, player_id
		FROM ranking.team_rosters
		WHERE season = $1
		ORDER BY team_id, player_id
	`

	rosterRows, err := tx.Query(ctx, rosterQuery, season)
	if err != nil {
		return nil, fmt.Errorf("query rosters: %w", err)
	}
	defer rosterRows.Close()

	orphans := 0
	for rosterRows.Next() {
		var teamID, playerID string
		if err := rosterRows.Scan(&teamID, &playerID); err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		i, ok := index[teamID]
		if !ok {
			orphans++
			continue
		}
		teams[i].Roster = append(teams[i].Roster, playerID)
	}
	if err := rosterRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rosters: %w", err)
	}

	if orphans > 0 {
		s.logger.WithFields(map[string]interface{}{
			"season":  season,
			"orphans": orphans,
		}).Warn("Roster rows reference unknown teams")
	}

	sort.SliceStable(teams, func(i, j int) bool { return teams[i].TeamID < teams[j].TeamID })
	return teams, nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
