package contracts

// Standings are optional season results used by the team performance blend
type Standings struct {
	GamesPlayed  int `json:"games_played" yaml:"games_played"`
	Wins         int `json:"wins" yaml:"wins"`
	Losses       int `json:"losses" yaml:"losses"`
	Ties         int `json:"ties" yaml:"ties"`
	GoalsFor     int `json:"goals_for" yaml:"goals_for"`
	GoalsAgainst int `json:"goals_against" yaml:"goals_against"`
}

// WinPct returns (W + 0.5·T) / GP, 0 when no games were played
func (s Standings) WinPct() float64 {
	if s.GamesPlayed <= 0 {
		return 0
	}
	return (float64(s.Wins) + 0.5*float64(s.Ties)) / float64(s.GamesPlayed)
}

// GoalDiffPerGame returns (GF − GA) / GP, 0 when no games were played
func (s Standings) GoalDiffPerGame() float64 {
	if s.GamesPlayed <= 0 {
		return 0
	}
	return float64(s.GoalsFor-s.GoalsAgainst) / float64(s.GamesPlayed)
}

// TeamInput is one team as read from the snapshot
// ⭐ SSOT: S0 → S4/S5 team contract
type TeamInput struct {
	TeamID    string     `json:"team_id" yaml:"team_id"`
	Name      string     `json:"name" yaml:"name"`
	Rank      int        `json:"rank" yaml:"rank"` // authoritative rank, 0 = not ranked
	Roster    []string   `json:"roster" yaml:"roster"`
	Standings *Standings `json:"standings,omitempty" yaml:"standings,omitempty"`
}

// TeamRankingRecord is the S4 output for one team
type TeamRankingRecord struct {
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
	Season string `json:"season"`
	Rank   int    `json:"rank"`

	RosterSize   int     `json:"roster_size"`
	MatchedCount int     `json:"matched_count"`
	MatchRate    float64 `json:"match_rate"`

	AvgScore    float64 `json:"avg_score"`
	MedianScore float64 `json:"median_score"`
	MaxScore    float64 `json:"max_score"`
	TotalScore  float64 `json:"total_score"`

	RosterRating     int  `json:"roster_rating"`  // band-only rating
	OverallRating    int  `json:"overall_rating"` // 70–99
	PerformanceBlend bool `json:"performance_blend"`
}

// Classification is a playoff subgroup: A = Large, B = Small
type Classification string

const (
	ClassificationLarge Classification = "Large"
	ClassificationSmall Classification = "Small"
)

// PlayoffProbabilityRecord is the S5 output for one team.
// Large and Small fields are mutually exclusive.
type PlayoffProbabilityRecord struct {
	TeamID         string         `json:"team_id"`
	Name           string         `json:"name"`
	Season         string         `json:"season"`
	Rank           int            `json:"rank"`
	OverallRating  int            `json:"overall_rating"`
	Classification Classification `json:"classification"`
	Enrollment     int            `json:"enrollment"`

	EliteBid   float64 `json:"elite_bid"`
	EliteChamp float64 `json:"elite_champ"`
	LargeBid   float64 `json:"large_bid"`
	LargeChamp float64 `json:"large_champ"`
	SmallBid   float64 `json:"small_bid"`
	SmallChamp float64 `json:"small_champ"`
}

// ClassBid returns the bid for the team's own classification
func (r *PlayoffProbabilityRecord) ClassBid() float64 {
	if r.Classification == ClassificationLarge {
		return r.LargeBid
	}
	return r.SmallBid
}

// ClassChamp returns the championship odds for the team's own classification
func (r *PlayoffProbabilityRecord) ClassChamp() float64 {
	if r.Classification == ClassificationLarge {
		return r.LargeChamp
	}
	return r.SmallChamp
}
