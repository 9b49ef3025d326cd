package contracts

// Pipeline stage definitions (SSOT)
// Every log line, run report and DB row uses these constants.
//
// Flow:
//   S0 → S1 → S2 → S3 → S4 → S5 → publish
//   Snapshot  Factors  Percentile  Ratings  Teams  Playoff

// Stage represents a pipeline stage
type Stage string

const (
	// StageSnapshot S0: one consistent population read
	// Responsibility: players, raw inputs, rosters, authoritative ranks, coverage report
	// Location: internal/s0_snapshot/
	StageSnapshot Stage = "S0_SNAPSHOT"

	// StageFactors S1: factor normalization and aggregation
	// Responsibility: curve evaluation, clamping, totals, category sums
	// Location: internal/s1_factors/
	StageFactors Stage = "S1_FACTORS"

	// StagePercentile S2: peer-group percentiles
	// Responsibility: (birth year, position) groups, count-of-lower percentile, peer rank
	// Location: internal/s2_percentile/
	StagePercentile Stage = "S2_PERCENTILE"

	// StageRatings S3: 1–99 ratings
	// Responsibility: position formula tables, category ratings, overall rating
	// Location: internal/s3_ratings/
	StageRatings Stage = "S3_RATINGS"

	// StageTeams S4: team aggregation
	// Responsibility: roster matching, roster stats, 70–99 team overall
	// Location: internal/s4_teams/
	StageTeams Stage = "S4_TEAMS"

	// StagePlayoff S5: playoff probabilities
	// Responsibility: classification, elite and classification bid/championship odds
	// Location: internal/s5_playoff/
	StagePlayoff Stage = "S5_PLAYOFF"

	// StagePublish: atomic replace of the derived set in every sink
	// Location: internal/publish/
	StagePublish Stage = "PUBLISH"
)

// AllStages lists the stages in execution order
var AllStages = []Stage{
	StageSnapshot,
	StageFactors,
	StagePercentile,
	StageRatings,
	StageTeams,
	StagePlayoff,
	StagePublish,
}

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageSnapshot:
		return "S0"
	case StageFactors:
		return "S1"
	case StagePercentile:
		return "S2"
	case StageRatings:
		return "S3"
	case StageTeams:
		return "S4"
	case StagePlayoff:
		return "S5"
	case StagePublish:
		return "PUB"
	default:
		return "UNKNOWN"
	}
}

// Description returns a short description of the stage
func (s Stage) Description() string {
	switch s {
	case StageSnapshot:
		return "population snapshot"
	case StageFactors:
		return "factor normalization"
	case StagePercentile:
		return "peer-group percentiles"
	case StageRatings:
		return "1-99 ratings"
	case StageTeams:
		return "team aggregation"
	case StagePlayoff:
		return "playoff probabilities"
	case StagePublish:
		return "publish"
	default:
		return "unknown"
	}
}
