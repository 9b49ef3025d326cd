package s3_ratings

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/internal/s2_percentile"
)

func loadRules(t *testing.T) *ruleset.RuleSet {
	t.Helper()
	rs, _, err := ruleset.Load("../../configs/ruleset.yaml")
	require.NoError(t, err)
	return rs
}

func withPoints(id string, pos contracts.Position, points map[string]float64) *contracts.PlayerFactorRecord {
	rec := &contracts.PlayerFactorRecord{PlayerID: id, BirthYear: 2008, Position: pos}
	for code, pts := range points {
		rec.Factors = append(rec.Factors, contracts.FactorScore{Code: code, Points: pts, Covered: true, Active: true, Applicable: true})
		rec.TotalPoints += pts
	}
	return rec
}

// Hand-computed worked examples against the reference rule set.
func TestTransformer_WorkedExamples(t *testing.T) {
	tr := NewTransformer(loadRules(t))

	tests := []struct {
		name    string
		rec     *contracts.PlayerFactorRecord
		want    contracts.CategoryRatings
		overall int
	}{
		{
			// performance: 0.7·450/1000·99 + 0.3·270/600·99 = 44.55 → 45
			// level:       5000/5500·99 = 90
			// visibility:  1500/3000·99 = 49.5 → 50 (half away from zero)
			// achievements: 500/1500·99 = 33
			// physical:     425/600·99 = 70.125 → 70
			// trending:     130/250·99 = 51.48 → 51
			// overall: .03·45 + .70·90 + .19·50 + .03·33 + .05·70 = 78.34 → 78
			name: "prep forward",
			rec: withPoints("fwd", contracts.PositionForward, map[string]float64{
				"F03": 250, "F05": 200, "F08": 150, "F10": 120,
				"F13": 4500, "F14": 500,
				"F01": 1000, "F23": 200, "F24": 300,
				"F16": 500,
				"F02": 150, "F26": 100, "F27": 175,
				"F18": 80, "F19": 50,
			}),
			want:    contracts.CategoryRatings{Performance: 45, Level: 90, Visibility: 50, Achievements: 33, Physical: 70, Trending: 51},
			overall: 78,
		},
		{
			// performance: 0.7·600/800·99 + 0.3·250/500·99 = 66.825 → 67
			// level:       2800/5500·99 = 50.4 → 50
			// trending:    60/50·99 = 118.8 → clamped 99
			// empty categories floor at 1
			// overall: .03·67 + .70·50 + .19·1 + .03·1 + .05·1 = 37.28 → 37
			name: "goaltender with goalie formulas",
			rec: withPoints("g", contracts.PositionGoalie, map[string]float64{
				"F06": 400, "F07": 200, "F11": 150, "F12": 100,
				"F13": 2800,
				"F25": 60,
			}),
			want:    contracts.CategoryRatings{Performance: 67, Level: 50, Visibility: 1, Achievements: 1, Physical: 1, Trending: 99},
			overall: 37,
		},
		{
			name:    "no points floors every rating at 1",
			rec:     withPoints("d", contracts.PositionDefense, nil),
			want:    contracts.CategoryRatings{Performance: 1, Level: 1, Visibility: 1, Achievements: 1, Physical: 1, Trending: 1},
			overall: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tr.Transform(tt.rec, s2_percentile.Result{PlayerID: tt.rec.PlayerID})
			assert.Equal(t, tt.want, out.Ratings)
			assert.Equal(t, tt.overall, out.Overall)
		})
	}
}

func TestTransformer_SkaterTrendingIgnoresGoalieFormula(t *testing.T) {
	tr := NewTransformer(loadRules(t))

	// F25 = 50 is 99 for a goalie (cap 50) but 50/250·99 = 19.8 → 20 for a skater
	skater := withPoints("s", contracts.PositionForward, map[string]float64{"F25": 50})
	goalie := withPoints("g", contracts.PositionGoalie, map[string]float64{"F25": 50})

	assert.Equal(t, 20, tr.CategoryRating(skater, contracts.CategoryTrending))
	assert.Equal(t, 99, tr.CategoryRating(goalie, contracts.CategoryTrending))
}

func TestTransformer_CopiesStanding(t *testing.T) {
	tr := NewTransformer(loadRules(t))
	rec := withPoints("p", contracts.PositionForward, map[string]float64{"F13": 1000})
	rec.Name = "Sam Example"
	rec.CategorySums.Level = 1000

	standing := s2_percentile.Result{
		PlayerID:        "p",
		PeerGroup:       contracts.PeerGroup{BirthYear: 2008, Position: contracts.PositionForward},
		PeerSize:        12,
		PeerRank:        3,
		Percentiles:     contracts.CategoryValues{Level: 81.8},
		TotalPercentile: 81.8,
	}

	out := tr.Transform(rec, standing)
	assert.Equal(t, "Sam Example", out.Name)
	assert.Equal(t, 1000.0, out.Sums.Level)
	assert.Equal(t, 81.8, out.Percentiles.Level)
	assert.Equal(t, 3, out.PeerRank)
	assert.Equal(t, 12, out.PeerSize)
	assert.Equal(t, 1000.0, out.TotalPoints)
}

// Ratings stay within [1, 99] for arbitrary points, including NaN.
func TestTransformer_Bounded(t *testing.T) {
	rs := loadRules(t)
	tr := NewTransformer(rs)
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 200; trial++ {
		points := map[string]float64{}
		for _, f := range rs.Factors {
			points[f.Code] = rng.Float64() * f.MaxPoints * 3
		}
		if trial%10 == 0 {
			points["F13"] = math.NaN()
		}
		pos := []contracts.Position{contracts.PositionForward, contracts.PositionDefense, contracts.PositionGoalie}[trial%3]

		out := tr.Transform(withPoints("x", pos, points), s2_percentile.Result{})
		for _, cat := range contracts.AllCategories {
			r := out.Ratings.Get(cat)
			assert.GreaterOrEqual(t, r, 1)
			assert.LessOrEqual(t, r, 99)
		}
		assert.GreaterOrEqual(t, out.Overall, 1)
		assert.LessOrEqual(t, out.Overall, 99)
	}
}

func TestClampRound(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-5, 1},
		{0, 1},
		{1.49, 1},
		{49.5, 50},
		{98.5, 99},
		{150, 99},
		{math.NaN(), 1},
		{math.Inf(1), 99},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampRound(tt.in), "%v", tt.in)
	}
}
