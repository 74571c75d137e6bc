package stage

import (
	"github.com/neexlegal/neex-review/internal/review"
)

// Footprint records the observable size of every scoped context field.
// The session runner takes one before and one after each stage call; a
// change on a field the stage did not declare is a contract violation.
// Size-based observation keeps the per-clause cost negligible while still
// catching the realistic failure mode (a stage appending into the wrong
// collection).
type Footprint map[Field]int

// Observe captures the current field sizes.
func Observe(rc *review.Context) Footprint {
	return Footprint{
		FieldClauses:         len(rc.Clauses),
		FieldFeatures:        len(rc.Features),
		FieldAnalyses:        len(rc.Analyses),
		FieldScores:          len(rc.Scores),
		FieldRecommendations: len(rc.Recommendations),
	}
}

// Audit compares two footprints against a stage's declared write scope.
// It returns a *review.ContractViolationError for the first undeclared
// change found, or nil when the stage stayed within its contract.
func Audit(st Stage, before, after Footprint) error {
	declared := map[Field]struct{}{}
	for _, field := range st.Writes() {
		declared[field] = struct{}{}
	}
	for field, was := range before {
		if after[field] == was {
			continue
		}
		if _, ok := declared[field]; ok {
			continue
		}
		return &review.ContractViolationError{
			Stage:  st.Info().ID,
			Field:  string(field),
			Detail: "mutated outside declared write scope",
		}
	}
	return nil
}
