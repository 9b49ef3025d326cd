package s0_snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/internal/testutil/pgtest"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

const fixture = "testdata/snapshot.yaml"

func loadFixture(t *testing.T) *contracts.Snapshot {
	t.Helper()
	snap, err := NewFileSource(fixture, logger.Nop()).Load(context.Background(), "2025-26")
	require.NoError(t, err)
	return snap
}

func TestFileSource_Load(t *testing.T) {
	snap := loadFixture(t)

	assert.Equal(t, "2025-26", snap.Season)
	assert.Equal(t, "fixture", snap.Source)
	assert.False(t, snap.TakenAt.IsZero())
	require.Len(t, snap.Players, 10)
	require.Len(t, snap.Teams, 5)

	p01 := snap.Players[0]
	assert.Equal(t, contracts.PositionForward, p01.Position, "C parses to F")
	require.NotNil(t, p01.Inputs["F01"].Value)
	assert.Equal(t, 12000.0, *p01.Inputs["F01"].Value)
	require.NotNil(t, p01.Inputs["F13"].Label)
	assert.Equal(t, "USHL", *p01.Inputs["F13"].Label)

	assert.Equal(t, contracts.PositionGoalie, snap.Players[7].Position, "GK parses to G")
	assert.True(t, snap.Players[9].Inputs["F13"].IsAbsent(), "empty mapping is explicit absence")

	loomis := snap.Teams[0]
	require.NotNil(t, loomis.Standings)
	assert.Equal(t, 12, loomis.Standings.GamesPlayed)
	assert.Nil(t, snap.Teams[1].Standings)
	assert.Equal(t, 0, snap.Teams[3].Rank)
}

func TestFileSource_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("season mismatch", func(t *testing.T) {
		_, err := NewFileSource(fixture, logger.Nop()).Load(ctx, "2024-25")
		assert.ErrorIs(t, err, contracts.ErrNoSnapshot)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileSource("testdata/nope.yaml", logger.Nop()).Load(ctx, "2025-26")
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewFileSource(fixture, logger.Nop()).Load(cctx, "2025-26")
		assert.ErrorIs(t, err, context.Canceled)
	})

	docs := map[string]string{
		"unknown key":      "season: x\nplayers: []\nteams: []\nowner: me\n",
		"bad position":     "season: x\nplayers:\n  - { player_id: a, name: A, birth_year: 2008, position: Z }\n",
		"duplicate player": "season: x\nplayers:\n  - { player_id: a, name: A, birth_year: 2008, position: F }\n  - { player_id: a, name: B, birth_year: 2008, position: D }\n",
		"duplicate team":   "season: x\nteams:\n  - { team_id: t, name: T, rank: 1 }\n  - { team_id: t, name: U, rank: 2 }\n",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snap.yaml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
			_, err := NewFileSource(path, logger.Nop()).Load(ctx, "")
			assert.Error(t, err)
		})
	}
}

func TestQualityGate_Check(t *testing.T) {
	rules, _, err := ruleset.Load("../../configs/ruleset.yaml")
	require.NoError(t, err)

	report := NewQualityGate(rules, DefaultMinFactorCoverage, logger.Nop()).Check(loadFixture(t))

	assert.Equal(t, 10, report.Players)
	assert.Equal(t, 5, report.Teams)
	assert.Equal(t, 4, report.RankedTeams)
	assert.Len(t, report.Factors, len(rules.Factors))

	byCode := make(map[string]contracts.FactorCoverage)
	for _, fc := range report.Factors {
		byCode[fc.Code] = fc
		assert.GreaterOrEqual(t, fc.Rate, 0.0)
		assert.LessOrEqual(t, fc.Rate, 1.0)
	}

	assert.Equal(t, contracts.FactorCoverage{Code: "F13", Applicable: 10, Covered: 9, Rate: 0.9}, byCode["F13"])
	assert.Equal(t, contracts.FactorCoverage{Code: "F03", Applicable: 6, Covered: 6, Rate: 1}, byCode["F03"])
	assert.Equal(t, contracts.FactorCoverage{Code: "F01", Applicable: 10, Covered: 4, Rate: 0.4}, byCode["F01"])
	assert.Equal(t, 2, byCode["F06"].Applicable, "goalie-only factor")

	assert.Greater(t, report.AvgRate, 0.0)
	assert.Less(t, report.AvgRate, 1.0)
}

func TestQualityGate_SkipsInactive(t *testing.T) {
	rules, _, err := ruleset.Load("../../configs/ruleset.yaml")
	require.NoError(t, err)
	for i := range rules.Factors {
		rules.Factors[i].Active = rules.Factors[i].Code == "F13"
	}

	report := NewQualityGate(rules, DefaultMinFactorCoverage, logger.Nop()).Check(loadFixture(t))
	require.Len(t, report.Factors, 1)
	assert.Equal(t, 0.9, report.AvgRate)
}

func TestPostgresSource_Load(t *testing.T) {
	db := pgtest.Start(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seed := []string{
		`INSERT INTO ranking.players (player_id, name, birth_year, position, nationality) VALUES
			('p1', 'One', 2008, 'C', 'USA'),
			('p2', 'Two', 2008, 'LD', NULL),
			('p3', 'Three', 2009, 'XX', NULL)`,
		`INSERT INTO ranking.player_raw_inputs (player_id, season, factor_code, value, label) VALUES
			('p1', '2025-26', 'F01', 1200, NULL),
			('p1', '2025-26', 'F13', NULL, 'USHL'),
			('p2', '2025-26', 'F04', NULL, NULL),
			('p3', '2025-26', 'F01', 10, NULL),
			('p1', '2024-25', 'F01', 99, NULL)`,
		`INSERT INTO ranking.teams (team_id, season, name, rank, games_played, wins, losses, ties, goals_for, goals_against) VALUES
			('t1', '2025-26', 'Team One', 1, 10, 7, 2, 1, 30, 15),
			('t2', '2025-26', 'Team Two', NULL, NULL, NULL, NULL, NULL, NULL, NULL)`,
		`INSERT INTO ranking.team_rosters (team_id, season, player_id) VALUES
			('t1', '2025-26', 'p1'),
			('t1', '2025-26', 'p2'),
			('t9', '2025-26', 'p2')`,
	}
	for _, stmt := range seed {
		_, err := db.Pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	snap, err := NewPostgresSource(db, logger.Nop()).Load(ctx, "2025-26")
	require.NoError(t, err)

	assert.Equal(t, "postgres", snap.Source)
	require.Len(t, snap.Players, 2, "unknown position is skipped")
	assert.Equal(t, "p1", snap.Players[0].PlayerID)
	assert.Equal(t, contracts.PositionForward, snap.Players[0].Position)
	assert.Equal(t, "USA", snap.Players[0].Nationality)
	require.NotNil(t, snap.Players[0].Inputs["F01"].Value)
	assert.Equal(t, 1200.0, *snap.Players[0].Inputs["F01"].Value, "other seasons are not read")
	assert.Equal(t, "USHL", *snap.Players[0].Inputs["F13"].Label)
	assert.True(t, snap.Players[1].Inputs["F04"].IsAbsent())

	require.Len(t, snap.Teams, 2)
	assert.Equal(t, []string{"p1", "p2"}, snap.Teams[0].Roster)
	require.NotNil(t, snap.Teams[0].Standings)
	assert.Equal(t, 7, snap.Teams[0].Standings.Wins)
	assert.Equal(t, 0, snap.Teams[1].Rank)
	assert.Nil(t, snap.Teams[1].Standings)

	_, err = NewPostgresSource(db, logger.Nop()).Load(ctx, "1999-00")
	assert.ErrorIs(t, err, contracts.ErrNoSnapshot)
}
