package ruleset

import (
	"context"
	"fmt"

	"github.com/prodigy-ranking/backend/pkg/database"
)

// FactorOverride changes one factor without a deploy.
// Nil fields keep the YAML value.
type FactorOverride struct {
	Code      string   `json:"code"`
	MaxPoints *float64 `json:"max_points,omitempty"`
	Active    *bool    `json:"is_active,omitempty"`
}

// ApplyOverrides returns a validated copy of rs with the overrides applied
func ApplyOverrides(rs *RuleSet, overrides []FactorOverride) (*RuleSet, error) {
	out, err := rs.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone rule set: %w", err)
	}

	for _, o := range overrides {
		f, ok := out.FactorByCode(o.Code)
		if !ok {
			return nil, ValidationError{"factor_config", fmt.Sprintf("override for unknown factor %s", o.Code)}
		}
		if o.MaxPoints != nil {
			f.MaxPoints = *o.MaxPoints
		}
		if o.Active != nil {
			f.Active = *o.Active
		}
	}

	if err := Validate(out); err != nil {
		return nil, fmt.Errorf("rule set invalid after overrides: %w", err)
	}
	return out, nil
}

// OverrideRepository reads factor overrides from ranking.factor_config
type OverrideRepository struct {
	db *database.DB
}

// NewOverrideRepository creates a new override repository
func NewOverrideRepository(db *database.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// Load returns every override row ordered by factor code
func (r *OverrideRepository) Load(ctx context.Context) ([]FactorOverride, error) {
	query := `
		SELECT factor_code, max_points, is_active
		FROM ranking.factor_config
		ORDER BY factor_code
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query factor overrides: %w", err)
	}
	defer rows.Close()

	var overrides []FactorOverride
	for rows.Next() {
		var o FactorOverride
		if err := rows.Scan(&o.Code, &o.MaxPoints, &o.Active); err != nil {
			return nil, fmt.Errorf("scan factor override: %w", err)
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factor overrides: %w", err)
	}

	return overrides, nil
}
