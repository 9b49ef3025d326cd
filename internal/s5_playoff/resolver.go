package s5_playoff

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/prodigy-ranking/backend/internal/contracts"
)

// School is one entry of the classification reference list
type School struct {
	TeamID         string                   `yaml:"team_id" json:"team_id"`
	Name           string                   `yaml:"name" json:"name"`
	Aliases        []string                 `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Enrollment     int                      `yaml:"enrollment" json:"enrollment"`
	Classification contracts.Classification `yaml:"classification,omitempty" json:"classification,omitempty"`
}

// ReferenceList is the versioned classification file
type ReferenceList struct {
	Version string   `yaml:"version" json:"version"`
	Schools []School `yaml:"schools" json:"schools"`
}

// Resolution is the outcome of a successful lookup
type Resolution struct {
	TeamID         string
	Name           string
	Classification contracts.Classification
	Enrollment     int
	MatchedBy      string // team_id, alias, contains
}

type aliasEntry struct {
	key    string // normalized
	school int
}

// Resolver maps team ids / names to a playoff classification.
// ⭐ SSOT: matching order is team_id exact → normalized alias exact → containment
type Resolver struct {
	version  string
	schools  []School
	largeMin int
	byID     map[string]int
	byAlias  map[string][]int
	aliases  []aliasEntry
	classes  []contracts.Classification
}

// LoadReferenceList reads and decodes a classification YAML file
func LoadReferenceList(path string) (*ReferenceList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classification list: %w", err)
	}
	return ParseReferenceList(data)
}

// ParseReferenceList decodes classification YAML; unknown keys are rejected
func ParseReferenceList(data []byte) (*ReferenceList, error) {
	var list ReferenceList
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to parse classification list: %w", err)
	}

	seen := make(map[string]struct{}, len(list.Schools))
	for i, s := range list.Schools {
		if s.TeamID == "" || s.Name == "" {
			return nil, fmt.Errorf("schools[%d]: team_id and name are required", i)
		}
		if _, dup := seen[s.TeamID]; dup {
			return nil, fmt.Errorf("schools[%d]: duplicate team_id %q", i, s.TeamID)
		}
		seen[s.TeamID] = struct{}{}

		switch s.Classification {
		case "", contracts.ClassificationLarge, contracts.ClassificationSmall:
		default:
			return nil, fmt.Errorf("schools[%d]: unknown classification %q", i, s.Classification)
		}
	}

	return &list, nil
}

// NewResolver indexes a reference list.
// largeMin is the enrollment at or above which a school is Large.
func NewResolver(list *ReferenceList, largeMin int) *Resolver {
	r := &Resolver{
		version:  list.Version,
		schools:  list.Schools,
		largeMin: largeMin,
		byID:     make(map[string]int, len(list.Schools)),
		byAlias:  make(map[string][]int),
		classes:  make([]contracts.Classification, len(list.Schools)),
	}

	for i, s := range list.Schools {
		r.byID[s.TeamID] = i
		r.classes[i] = classify(s, largeMin)

		names := append([]string{s.Name}, s.Aliases...)
		for _, name := range names {
			key := Normalize(name)
			if key == "" {
				continue
			}
			r.byAlias[key] = append(r.byAlias[key], i)
			r.aliases = append(r.aliases, aliasEntry{key: key, school: i})
		}
	}

	return r
}

// Version returns the reference list version
func (r *Resolver) Version() string {
	return r.version
}

// Len returns the number of schools in the list
func (r *Resolver) Len() int {
	return len(r.schools)
}

// Resolve finds the classification for a team.
// Returns ErrUnresolvedClassification when nothing matches; never defaults.
func (r *Resolver) Resolve(teamID, name string) (Resolution, error) {
	if i, ok := r.byID[teamID]; ok && teamID != "" {
		return r.resolution(i, "team_id"), nil
	}

	for _, candidate := range []string{name, teamID} {
		key := Normalize(candidate)
		if key == "" {
			continue
		}
		if hits := r.byAlias[key]; len(hits) > 0 {
			return r.resolution(r.pick(hits), "alias"), nil
		}
	}

	key := Normalize(name)
	if key == "" {
		key = Normalize(teamID)
	}
	if key == "" {
		return Resolution{}, fmt.Errorf("%w: empty team id and name", contracts.ErrUnresolvedClassification)
	}

	// containment: the longest alias wins
	best, bestLen := -1, 0
	padded := " " + key + " "
	for _, a := range r.aliases {
		if !strings.Contains(padded, " "+a.key+" ") && !strings.Contains(" "+a.key+" ", padded) {
			continue
		}
		switch {
		case best < 0 || len(a.key) > bestLen:
			best, bestLen = a.school, len(a.key)
		case len(a.key) == bestLen:
			best = r.smaller(best, a.school)
		}
	}

	if best < 0 {
		return Resolution{}, fmt.Errorf("%w: %s (%s)", contracts.ErrUnresolvedClassification, teamID, name)
	}
	return r.resolution(best, "contains"), nil
}

// pick chooses among schools sharing one exact alias
func (r *Resolver) pick(hits []int) int {
	best := hits[0]
	for _, i := range hits[1:] {
		best = r.smaller(best, i)
	}
	return best
}

// smaller returns the smaller-tier school: Small before Large, then lower enrollment
func (r *Resolver) smaller(a, b int) int {
	if r.classes[a] != r.classes[b] {
		if r.classes[a] == contracts.ClassificationSmall {
			return a
		}
		return b
	}
	if r.schools[b].Enrollment < r.schools[a].Enrollment {
		return b
	}
	return a
}

func (r *Resolver) resolution(i int, matchedBy string) Resolution {
	s := r.schools[i]
	return Resolution{
		TeamID:         s.TeamID,
		Name:           s.Name,
		Classification: r.classes[i],
		Enrollment:     s.Enrollment,
		MatchedBy:      matchedBy,
	}
}

func classify(s School, largeMin int) contracts.Classification {
	if s.Classification != "" {
		return s.Classification
	}
	if s.Enrollment >= largeMin {
		return contracts.ClassificationLarge
	}
	return contracts.ClassificationSmall
}

// Normalize lowercases, turns punctuation into spaces and collapses whitespace.
// Apostrophes are dropped so "St. Paul's" and "St Pauls" meet.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
