package s5_playoff

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/internal/ruleset"
	"github.com/prodigy-ranking/backend/pkg/logger"
)

func playoffConfig() ruleset.PlayoffConfig {
	return ruleset.PlayoffConfig{
		LargeEnrollmentMin: 225,
		EliteBidTiers: []ruleset.BidTier{
			{FromRank: 1, ToRank: 4, High: 99, Low: 93},
			{FromRank: 5, ToRank: 8, High: 90, Low: 60},
			{FromRank: 9, ToRank: 12, High: 45, Low: 15},
			{FromRank: 13, ToRank: 16, High: 10, Low: 4},
		},
		EliteBidTail:      ruleset.BidTail{Start: 3, Step: 0.25, Floor: 0.5},
		ChampPoolSize:     12,
		Temperature:       10,
		MinEliteChamp:     0.1,
		EliteChampCap:     35,
		ClassBidRankFloor: 8,
		QualifyBuckets: []ruleset.QualifyBucket{
			{MaxPosition: 2, Probability: 0.95},
			{MaxPosition: 4, Probability: 0.85},
			{MaxPosition: 6, Probability: 0.65},
			{MaxPosition: 8, Probability: 0.40},
			{MaxPosition: 10, Probability: 0.20},
			{MaxPosition: 12, Probability: 0.08},
		},
		QualifyDefault: 0.02,
		ClassChampCap:  25,
	}
}

// fixedClassifier resolves every known id to the given classification
type fixedClassifier map[string]contracts.Classification

func (f fixedClassifier) Resolve(teamID, _ string) (Resolution, error) {
	c, ok := f[teamID]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %s", contracts.ErrUnresolvedClassification, teamID)
	}
	return Resolution{TeamID: teamID, Classification: c, Enrollment: 300, MatchedBy: "team_id"}, nil
}

func team(id string, rank, rating int) contracts.TeamRankingRecord {
	return contracts.TeamRankingRecord{TeamID: id, Name: strings.ToUpper(id), Rank: rank, OverallRating: rating}
}

func newEngine(classifier Classifier) *Engine {
	return NewEngine(playoffConfig(), classifier, logger.Nop())
}

// =============================================================================
// Engine
// =============================================================================

func TestEliteBid(t *testing.T) {
	e := newEngine(fixedClassifier{})

	tests := []struct {
		rank int
		want float64
	}{
		{1, 99},
		{2, 97},
		{4, 93},
		{5, 90},
		{6, 80},
		{8, 60},
		{9, 45},
		{12, 15},
		{13, 10},
		{16, 4},
		{17, 3},
		{18, 2.75},
		{27, 0.5},
		{120, 0.5},
		{0, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("rank_%d", tt.rank), func(t *testing.T) {
			assert.InDelta(t, tt.want, e.EliteBid(tt.rank), 1e-9)
		})
	}
}

func TestCompute_FourTeamScenario(t *testing.T) {
	classes := fixedClassifier{"a": contracts.ClassificationLarge, "b": contracts.ClassificationLarge,
		"c": contracts.ClassificationLarge, "d": contracts.ClassificationLarge}
	teams := []contracts.TeamRankingRecord{
		team("c", 3, 90), team("a", 1, 99), team("d", 4, 85), team("b", 2, 95),
	}

	res, err := newEngine(classes).Compute("2025-26", teams)
	require.NoError(t, err)
	require.Len(t, res.Records, 4)

	recs := res.Records
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{recs[0].TeamID, recs[1].TeamID, recs[2].TeamID, recs[3].TeamID})
	assert.Equal(t, 99.0, recs[0].EliteBid)
	assert.Equal(t, 93.0, recs[3].EliteBid)

	for i, r := range recs {
		assert.LessOrEqual(t, r.EliteChamp, 35.0)
		assert.Equal(t, 0.0, r.LargeBid)
		assert.Equal(t, 0.0, r.LargeChamp)
		assert.Equal(t, 0.0, r.SmallBid)
		assert.Equal(t, 0.0, r.SmallChamp)
		assert.Equal(t, "2025-26", r.Season)
		if i > 0 {
			assert.GreaterOrEqual(t, recs[i-1].EliteChamp, r.EliteChamp, "champ odds ordered by rating")
		}
	}
	assert.Equal(t, 35.0, recs[0].EliteChamp, "top share exceeds the cap")
}

func TestCompute_ClassBid(t *testing.T) {
	classes := fixedClassifier{}
	var teams []contracts.TeamRankingRecord
	for rank := 1; rank <= 20; rank++ {
		id := fmt.Sprintf("t%02d", rank)
		classes[id] = contracts.ClassificationSmall
		teams = append(teams, team(id, rank, 100-rank))
	}

	res, err := newEngine(classes).Compute("2025-26", teams)
	require.NoError(t, err)
	require.Len(t, res.Records, 20)

	byRank := func(rank int) contracts.PlayoffProbabilityRecord { return res.Records[rank-1] }

	for rank := 1; rank <= 8; rank++ {
		assert.Equal(t, 0.0, byRank(rank).SmallBid, "rank %d is inside the elite cutoff", rank)
		assert.Equal(t, 0.0, byRank(rank).SmallChamp)
	}

	// (1 − 0.45) · 0.95 · 100
	assert.InDelta(t, 52.25, byRank(9).SmallBid, 0.06)
	// (1 − 0.35) · 0.95 · 100
	assert.InDelta(t, 61.75, byRank(10).SmallBid, 0.06)
	// position 9 → 0.20; rank 17 elite bid 3
	assert.InDelta(t, 0.97*0.20*100, byRank(17).SmallBid, 0.06)
	// position 12 still inside the champ pool, 20 is position 12
	assert.Greater(t, byRank(20).SmallChamp, 0.0)

	for _, r := range res.Records {
		assert.LessOrEqual(t, r.SmallChamp, 25.0)
		assert.LessOrEqual(t, r.SmallChamp, r.SmallBid)
		assert.Equal(t, 0.0, r.LargeBid)
		assert.Equal(t, 0.0, r.LargeChamp)
	}
}

func TestCompute_ClassChampOutsidePool(t *testing.T) {
	classes := fixedClassifier{}
	var teams []contracts.TeamRankingRecord
	for rank := 1; rank <= 30; rank++ {
		id := fmt.Sprintf("t%02d", rank)
		classes[id] = contracts.ClassificationLarge
		teams = append(teams, team(id, rank, 99-rank))
	}

	res, err := newEngine(classes).Compute("2025-26", teams)
	require.NoError(t, err)

	// class field starts at rank 9; positions 1..12 are ranks 9..20
	assert.Greater(t, res.Records[19].LargeChamp, 0.0)
	assert.Equal(t, 0.0, res.Records[20].LargeChamp)
	assert.Greater(t, res.Records[20].LargeBid, 0.0)

	// outside the elite pool everyone gets the minimum
	assert.Equal(t, 0.1, res.Records[12].EliteChamp)
	assert.Equal(t, 0.1, res.Records[29].EliteChamp)
}

func TestCompute_EliteChampPoolByGlobalRank(t *testing.T) {
	classes := fixedClassifier{}
	var teams []contracts.TeamRankingRecord
	for rank := 1; rank <= 20; rank++ {
		id := fmt.Sprintf("t%02d", rank)
		if rank != 2 {
			classes[id] = contracts.ClassificationSmall
		}
		teams = append(teams, team(id, rank, 99-rank))
	}

	res, err := newEngine(classes).Compute("2025-26", teams)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Excluded)
	require.Len(t, res.Records, 19)

	byRank := make(map[int]contracts.PlayoffProbabilityRecord, len(res.Records))
	for _, r := range res.Records {
		byRank[r.Rank] = r
	}

	assert.Greater(t, byRank[12].EliteChamp, 0.1, "rank 12 stays in the pool")
	assert.Equal(t, 0.1, byRank[13].EliteChamp, "rank 13 does not replace the excluded rank 2")
	assert.Equal(t, 0.1, byRank[14].EliteChamp)

	total := 0.0
	for rank := 1; rank <= 12; rank++ {
		total += byRank[rank].EliteChamp
	}
	assert.InDelta(t, 100.0, total, 0.6, "eleven pool members share the whole mass")
}

func TestCompute_MutualExclusivity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	classes := fixedClassifier{}
	var teams []contracts.TeamRankingRecord

	for i, rank := range rng.Perm(60) {
		id := fmt.Sprintf("team-%d", i)
		if rng.Intn(2) == 0 {
			classes[id] = contracts.ClassificationLarge
		} else {
			classes[id] = contracts.ClassificationSmall
		}
		teams = append(teams, team(id, rank+1, 70+rng.Intn(30)))
	}

	res, err := newEngine(classes).Compute("2025-26", teams)
	require.NoError(t, err)
	require.Len(t, res.Records, 60)

	for _, r := range res.Records {
		if r.LargeBid > 0 || r.LargeChamp > 0 {
			assert.Zero(t, r.SmallBid, r.TeamID)
			assert.Zero(t, r.SmallChamp, r.TeamID)
		}
		if r.SmallBid > 0 || r.SmallChamp > 0 {
			assert.Zero(t, r.LargeBid, r.TeamID)
			assert.Zero(t, r.LargeChamp, r.TeamID)
		}
		assert.Equal(t, r.ClassBid(), map[contracts.Classification]float64{
			contracts.ClassificationLarge: r.LargeBid,
			contracts.ClassificationSmall: r.SmallBid,
		}[r.Classification])

		for _, v := range []float64{r.EliteBid, r.EliteChamp, r.LargeBid, r.LargeChamp, r.SmallBid, r.SmallChamp} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
			assert.InDelta(t, v, round1(v), 1e-9, "one decimal")
		}
	}
}

func TestCompute_Failures(t *testing.T) {
	t.Run("unresolved classification is excluded", func(t *testing.T) {
		classes := fixedClassifier{"a": contracts.ClassificationLarge}
		res, err := newEngine(classes).Compute("2025-26", []contracts.TeamRankingRecord{
			team("a", 1, 90), team("ghost", 2, 88),
		})
		require.NoError(t, err)
		assert.Len(t, res.Records, 1)
		assert.Equal(t, 1, res.Excluded)
		require.Len(t, res.Issues, 1)
		assert.Equal(t, "ghost", res.Issues[0].TeamID)
	})

	t.Run("missing rank is counted and left out of every pool", func(t *testing.T) {
		classes := fixedClassifier{"a": contracts.ClassificationLarge, "b": contracts.ClassificationLarge}
		res, err := newEngine(classes).Compute("2025-26", []contracts.TeamRankingRecord{
			team("a", 0, 99), team("b", 1, 80),
		})
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, "b", res.Records[0].TeamID)
		assert.Equal(t, 1, res.Unranked)
		assert.Contains(t, res.Issues[0].Reason, contracts.ErrMissingRank.Error())
		assert.Equal(t, 35.0, res.Records[0].EliteChamp, "sole pool member")
	})

	t.Run("duplicate rank fails the pass", func(t *testing.T) {
		classes := fixedClassifier{"a": contracts.ClassificationLarge, "b": contracts.ClassificationSmall}
		_, err := newEngine(classes).Compute("2025-26", []contracts.TeamRankingRecord{
			team("a", 3, 90), team("b", 3, 80),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, contracts.ErrDuplicateRank)
		assert.True(t, IsPassFailure(err))
	})
}

func TestCompute_Deterministic(t *testing.T) {
	classes := fixedClassifier{}
	var teams []contracts.TeamRankingRecord
	for rank := 1; rank <= 25; rank++ {
		id := fmt.Sprintf("t%02d", rank)
		classes[id] = contracts.ClassificationLarge
		if rank%3 == 0 {
			classes[id] = contracts.ClassificationSmall
		}
		teams = append(teams, team(id, rank, 99-rank))
	}

	first, err := newEngine(classes).Compute("2025-26", teams)
	require.NoError(t, err)
	second, err := newEngine(classes).Compute("2025-26", teams)
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
}

// =============================================================================
// Resolver
// =============================================================================

const testList = `
version: "test"
schools:
  - { team_id: kent, name: Kent School, aliases: [Kent], enrollment: 560 }
  - { team_id: kents-hill, name: Kents Hill School, aliases: [Kents Hill], enrollment: 190 }
  - { team_id: st-paul-s-school, name: St. Paul's School, aliases: ["St. Paul's"], enrollment: 540 }
  - { team_id: lakeside-academy, name: Lakeside Academy, aliases: [Lakeside], enrollment: 300 }
  - { team_id: lakeside-school, name: Lakeside School, aliases: [Lakeside], enrollment: 150 }
  - { team_id: tiny-giant, name: Tiny Giant Prep, enrollment: 90, classification: Large }
`

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	list, err := ParseReferenceList([]byte(testList))
	require.NoError(t, err)
	return NewResolver(list, 225)
}

func TestResolve(t *testing.T) {
	r := testResolver(t)

	tests := []struct {
		name      string
		teamID    string
		teamName  string
		wantID    string
		wantClass contracts.Classification
		matchedBy string
	}{
		{"team id exact", "kent", "whatever", "kent", contracts.ClassificationLarge, "team_id"},
		{"alias exact", "", "Kents Hill", "kents-hill", contracts.ClassificationSmall, "alias"},
		{"punctuation normalized", "", "ST PAULS", "st-paul-s-school", contracts.ClassificationLarge, "alias"},
		{"containment prefers longest alias", "", "Kents Hill School Varsity", "kents-hill", contracts.ClassificationSmall, "contains"},
		{"word boundary", "", "Kent School Boys Hockey", "kent", contracts.ClassificationLarge, "contains"},
		{"equal aliases pick smaller tier", "", "Lakeside", "lakeside-school", contracts.ClassificationSmall, "alias"},
		{"explicit classification wins over enrollment", "tiny-giant", "", "tiny-giant", contracts.ClassificationLarge, "team_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.teamID, tt.teamName)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.TeamID)
			assert.Equal(t, tt.wantClass, got.Classification)
			assert.Equal(t, tt.matchedBy, got.MatchedBy)
		})
	}
}

func TestResolve_Unresolved(t *testing.T) {
	r := testResolver(t)

	for _, name := range []string{"Unknown Prep", "Kentucky Academy", ""} {
		_, err := r.Resolve("", name)
		assert.ErrorIs(t, err, contracts.ErrUnresolvedClassification, name)
	}
}

func TestParseReferenceList_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "version: x\nschools:\n  - { team_id: a, name: A, enrollment: 1, colour: red }\n",
		"missing name":   "version: x\nschools:\n  - { team_id: a, enrollment: 1 }\n",
		"duplicate id":   "version: x\nschools:\n  - { team_id: a, name: A }\n  - { team_id: a, name: B }\n",
		"bad class name": "version: x\nschools:\n  - { team_id: a, name: A, classification: Medium }\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReferenceList([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "st pauls school", Normalize("St. Paul's   School"))
	assert.Equal(t, "bb n", Normalize("BB&N"))
	assert.Equal(t, "trinity pawling", Normalize(" Trinity-Pawling "))
	assert.Equal(t, "", Normalize("  ..  "))
	assert.Equal(t, "st-pauls-school", Slug("St. Paul's School"))
}

func TestReferenceListFile(t *testing.T) {
	list, err := LoadReferenceList(filepath.Join("..", "..", "configs", "classifications.yaml"))
	require.NoError(t, err)

	r := NewResolver(list, 225)
	assert.Greater(t, r.Len(), 40)
	assert.Equal(t, "2025-26", r.Version())

	got, err := r.Resolve("", "Northfield Mount Hermon School")
	require.NoError(t, err)
	assert.Equal(t, "nmh", got.TeamID)
	assert.Equal(t, contracts.ClassificationLarge, got.Classification)

	got, err = r.Resolve("", "Kents Hill")
	require.NoError(t, err)
	assert.Equal(t, contracts.ClassificationSmall, got.Classification)
}

// =============================================================================
// Importer
// =============================================================================

const memberTable = `<html><body>
<table><tr><th>Date</th><th>Opponent</th></tr><tr><td>1/1</td><td>X</td></tr></table>
<table class="members">
  <tr><th>School</th><th>State</th><th>Enrollment</th></tr>
  <tr><td> Kent   School </td><td>CT</td><td>560</td></tr>
  <tr><td>Phillips Exeter Academy</td><td>NH</td><td>1,080</td></tr>
  <tr><td>Hebron Academy</td><td>ME</td><td>-</td></tr>
  <tr><td>Kent School</td><td>CT</td><td>560</td></tr>
</table>
</body></html>`

func TestParseMemberTable(t *testing.T) {
	schools, err := ParseMemberTable(strings.NewReader(memberTable))
	require.NoError(t, err)
	require.Len(t, schools, 2)

	assert.Equal(t, School{TeamID: "kent-school", Name: "Kent School", Enrollment: 560}, schools[0])
	assert.Equal(t, 1080, schools[1].Enrollment)
	assert.Equal(t, "phillips-exeter-academy", schools[1].TeamID)
}

func TestParseMemberTable_NoTable(t *testing.T) {
	_, err := ParseMemberTable(strings.NewReader("<table><tr><th>Team</th></tr></table>"))
	assert.Error(t, err)
}

func TestImport_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "members.html")
	require.NoError(t, os.WriteFile(path, []byte(memberTable), 0o644))

	schools, err := NewImporter(nil).Import(context.Background(), path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeReferenceList(&buf, "2025-26", schools))

	list, err := ParseReferenceList(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, schools, list.Schools)

	_, err = NewImporter(nil).Import(context.Background(), "https://example.invalid/members")
	assert.Error(t, err, "url source needs a client")
}
