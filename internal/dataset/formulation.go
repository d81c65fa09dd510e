package dataset

import (
	"fmt"
	"strings"

	apperrors "blpcli/internal/errors"
)

// Formulation names the dataset columns that play each role in the demand
// model. Market, Share, and at least one Linear column are required.
// Nonlinear may be empty for a model without consumer heterogeneity, and an
// empty Instruments list means the linear characteristics instrument
// themselves. The same column may appear in several roles.
type Formulation struct {
	Market      string   `json:"market"`
	Share       string   `json:"share"`
	Linear      []string `json:"linear"`
	Nonlinear   []string `json:"nonlinear,omitempty"`
	Instruments []string `json:"instruments,omitempty"`
}

// DefaultFormulation returns the conventional column names with the
// characteristic lists left for the caller to fill in.
func DefaultFormulation() Formulation {
	return Formulation{
		Market: "market",
		Share:  "share",
	}
}

// Validate checks the formulation is complete and free of duplicate columns
// within a single role.
func (f Formulation) Validate() error {
	if strings.TrimSpace(f.Market) == "" {
		return apperrors.NewValidationError("formulation is missing the market column")
	}
	if strings.TrimSpace(f.Share) == "" {
		return apperrors.NewValidationError("formulation is missing the share column")
	}
	if strings.EqualFold(f.Market, f.Share) {
		return apperrors.NewValidationError("market and share must be distinct columns")
	}
	if len(f.Linear) == 0 {
		return apperrors.NewValidationError("formulation needs at least one linear characteristic column")
	}

	for role, cols := range map[string][]string{
		"linear":      f.Linear,
		"nonlinear":   f.Nonlinear,
		"instruments": f.Instruments,
	} {
		seen := make(map[string]struct{}, len(cols))
		for _, col := range cols {
			if strings.TrimSpace(col) == "" {
				return apperrors.NewValidationError(fmt.Sprintf("%s columns contain an empty name", role))
			}
			key := strings.ToLower(col)
			if _, dup := seen[key]; dup {
				return apperrors.NewValidationError(fmt.Sprintf("duplicate %s column %q", role, col)).
					WithContext("column", col)
			}
			seen[key] = struct{}{}
		}
	}
	return nil
}

// ParseColumns splits a comma-separated flag value into a trimmed column
// list, dropping empty entries.
func ParseColumns(s string) []string {
	parts := strings.Split(s, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cols = append(cols, trimmed)
		}
	}
	return cols
}
