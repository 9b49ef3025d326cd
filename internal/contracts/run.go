package contracts

import "time"

// TeamIssue records why a team was left out of a playoff pass
type TeamIssue struct {
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RunReport counts what a pass did and what it had to leave out.
// Partial failures are reported here instead of aborting the run.
type RunReport struct {
	Players       int            `json:"players"`
	Teams         int            `json:"teams"`
	PeerGroups    int            `json:"peer_groups"`
	ExcludedTeams int            `json:"excluded_teams"` // unresolved classification
	UnrankedTeams int            `json:"unranked_teams"` // missing authoritative rank
	Issues        []TeamIssue    `json:"issues,omitempty"`
	Coverage      CoverageReport `json:"coverage"`
}

// RunOutput is the full derived set of one pass.
// Published as a whole; sinks replace, never patch.
type RunOutput struct {
	RunID       string    `json:"run_id"`
	Season      string    `json:"season"`
	RulesetHash string    `json:"ruleset_hash"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	Factors []PlayerFactorRecord       `json:"factors"`
	Ratings []CategoryRatingRecord     `json:"ratings"`
	Teams   []TeamRankingRecord        `json:"teams"`
	Playoff []PlayoffProbabilityRecord `json:"playoff"`

	Report RunReport `json:"report"`
}

// RunSummary is the metadata of a published run
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Season      string    `json:"season"`
	RulesetHash string    `json:"ruleset_hash"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Report      RunReport `json:"report"`
}

// Summary returns the run metadata without records
func (o *RunOutput) Summary() RunSummary {
	return RunSummary{
		RunID:       o.RunID,
		Season:      o.Season,
		RulesetHash: o.RulesetHash,
		StartedAt:   o.StartedAt,
		FinishedAt:  o.FinishedAt,
		Report:      o.Report,
	}
}
