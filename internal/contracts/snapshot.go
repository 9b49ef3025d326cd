package contracts

import (
	"fmt"
	"time"
)

// Snapshot is one consistent, immutable read of the population
// ⭐ SSOT: every derived record is a pure function of one Snapshot
type Snapshot struct {
	Season  string        `json:"season" yaml:"season"`
	TakenAt time.Time     `json:"taken_at" yaml:"taken_at"`
	Source  string        `json:"source" yaml:"source"`
	Players []PlayerInput `json:"players" yaml:"players"`
	Teams   []TeamInput   `json:"teams" yaml:"teams"`
}

// Validate checks identity uniqueness and positions
func (s *Snapshot) Validate() error {
	if s.Season == "" {
		return fmt.Errorf("snapshot: season is empty")
	}

	players := make(map[string]struct{}, len(s.Players))
	for i, p := range s.Players {
		if p.PlayerID == "" {
			return fmt.Errorf("snapshot: player %d has empty player_id", i)
		}
		if _, dup := players[p.PlayerID]; dup {
			return fmt.Errorf("snapshot: duplicate player_id %s", p.PlayerID)
		}
		players[p.PlayerID] = struct{}{}
		if _, err := ParsePosition(string(p.Position)); err != nil {
			return fmt.Errorf("snapshot: player %s: %w", p.PlayerID, err)
		}
	}

	teams := make(map[string]struct{}, len(s.Teams))
	for i, t := range s.Teams {
		if t.TeamID == "" {
			return fmt.Errorf("snapshot: team %d has empty team_id", i)
		}
		if _, dup := teams[t.TeamID]; dup {
			return fmt.Errorf("snapshot: duplicate team_id %s", t.TeamID)
		}
		teams[t.TeamID] = struct{}{}
		if t.Rank < 0 {
			return fmt.Errorf("snapshot: team %s has negative rank", t.TeamID)
		}
	}

	return nil
}

// FactorCoverage is the share of applicable players with an input for one factor
type FactorCoverage struct {
	Code       string  `json:"code"`
	Applicable int     `json:"applicable"`
	Covered    int     `json:"covered"`
	Rate       float64 `json:"rate"`
}

// CoverageReport summarizes raw-input coverage of a snapshot
type CoverageReport struct {
	Players     int              `json:"players"`
	Teams       int              `json:"teams"`
	RankedTeams int              `json:"ranked_teams"`
	Factors     []FactorCoverage `json:"factors"`
	AvgRate     float64          `json:"avg_rate"`
}
