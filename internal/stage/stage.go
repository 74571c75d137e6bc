// internal/stage/stage.go
//
// The staged-processing contract every analysis phase implements. A stage
// declares which context fields it consumes and which it produces; the
// pipeline assembler checks the declarations before any processing starts
// so contract violations surface at session assembly, not mid-document.

package stage

import (
	"fmt"

	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/review"
)

// Field names one scoped region of the analysis context.
type Field string

const (
	// FieldClauses and FieldFeatures are source fields populated by the
	// external collaborators before the session starts. No stage may
	// declare them as outputs.
	FieldClauses  Field = "clauses"
	FieldFeatures Field = "features"

	FieldAnalyses        Field = "analyses"
	FieldScores          Field = "scores"
	FieldRecommendations Field = "recommendations"
)

func sourceField(f Field) bool {
	return f == FieldClauses || f == FieldFeatures
}

func knownField(f Field) bool {
	switch f {
	case FieldClauses, FieldFeatures, FieldAnalyses, FieldScores, FieldRecommendations:
		return true
	}
	return false
}

// Info describes a stage's identity.
type Info struct {
	ID          string
	Name        string
	Description string
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("stage: id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("stage: name is required for %s", i.ID)
	}
	return nil
}

// Stage is implemented by every analysis phase. Run processes one clause
// and mutates only the declared write scope. Run must be idempotent for a
// given (context, clause) pair so checkpoint resume can safely re-run it.
//
// Failures are reported as *review.StageError; recoverable ones leave the
// clause with a usable (possibly defaulted) result, non-recoverable ones
// abort the session.
type Stage interface {
	Info() Info
	Reads() []Field
	Writes() []Field
	Run(rc *review.Context, cl clause.Clause) error
}

// Base provides common plumbing for stages (identity + field scopes).
type Base struct {
	info   Info
	reads  []Field
	writes []Field
}

// NewBase seeds the helper with stage info.
func NewBase(info Info) Base {
	return Base{info: info}
}

// SetReads declares the required context fields.
func (b *Base) SetReads(fields ...Field) {
	b.reads = append([]Field{}, fields...)
}

// SetWrites declares the produced context fields.
func (b *Base) SetWrites(fields ...Field) {
	b.writes = append([]Field{}, fields...)
}

// Info implements Stage.Info.
func (b *Base) Info() Info {
	return b.info
}

// Reads implements Stage.Reads.
func (b *Base) Reads() []Field {
	return append([]Field{}, b.reads...)
}

// Writes implements Stage.Writes.
func (b *Base) Writes() []Field {
	return append([]Field{}, b.writes...)
}
