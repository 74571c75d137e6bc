// internal/review/types.go
//
// Result types accumulated by the analysis pipeline. The stages that
// produce them live in their own packages; this package holds only state
// so stages can share it without importing each other.

package review

import (
	"time"

	"github.com/neexlegal/neex-review/internal/clause"
)

// SeverityHint is the exposure layer's coarse vulnerability estimate. The
// risk assessor consumes it as a multiplicative prior, not a final score.
type SeverityHint string

const (
	SeverityNone     SeverityHint = "none"
	SeverityLow      SeverityHint = "low"
	SeverityElevated SeverityHint = "elevated"
	SeverityHigh     SeverityHint = "high"
)

// Prior converts the hint into the multiplier applied to raw category
// scores. Values above one are clamped back into [0,1] by the assessor.
func (s SeverityHint) Prior() float64 {
	switch s {
	case SeverityLow:
		return 1.0
	case SeverityElevated:
		return 1.15
	case SeverityHigh:
		return 1.3
	default:
		return 0.85
	}
}

// Analysis is the three-layer analysis owned by exactly one clause.
type Analysis struct {
	ClauseID int          `json:"clause_id"`
	Tags     []clause.Tag `json:"tags"`

	Interpretation string       `json:"interpretation"`
	Exposure       string       `json:"exposure"`
	Severity       SeverityHint `json:"severity"`
	Opportunities  []string     `json:"opportunities,omitempty"`

	KeyTerms []string `json:"key_terms,omitempty"`
	Question string   `json:"question,omitempty"`

	Tokens int `json:"tokens"`
	// Defaulted marks the minimal analysis substituted after a parse gap.
	Defaulted bool `json:"defaulted,omitempty"`
}

// RiskCategory enumerates the six fixed scoring categories.
type RiskCategory string

const (
	RiskFinancial    RiskCategory = "financial"
	RiskLegal        RiskCategory = "legal"
	RiskOperational  RiskCategory = "operational"
	RiskCompliance   RiskCategory = "compliance"
	RiskReputational RiskCategory = "reputational"
	RiskStrategic    RiskCategory = "strategic"
)

// RiskCategories returns all six categories in canonical order.
func RiskCategories() []RiskCategory {
	return []RiskCategory{RiskFinancial, RiskLegal, RiskOperational, RiskCompliance, RiskReputational, RiskStrategic}
}

// Classification is the risk tier derived from an aggregate score.
type Classification string

const (
	ClassNone       Classification = ""
	ClassProcedural Classification = "Procedural"
	ClassMaterial   Classification = "Material"
	ClassCritical   Classification = "Critical"
)

// Rank orders classifications so Critical dominates Material dominates
// Procedural. Higher is more severe.
func (c Classification) Rank() int {
	switch c {
	case ClassCritical:
		return 3
	case ClassMaterial:
		return 2
	case ClassProcedural:
		return 1
	default:
		return 0
	}
}

// ClassifyAggregate maps an aggregate score onto a classification given the
// configured boundaries. Boundaries are inclusive: an aggregate exactly at
// the critical threshold is Critical, exactly at the material threshold is
// Material. A zero aggregate emits no classification.
func ClassifyAggregate(aggregate, critical, material float64) Classification {
	switch {
	case aggregate >= critical:
		return ClassCritical
	case aggregate >= material:
		return ClassMaterial
	case aggregate > 0:
		return ClassProcedural
	default:
		return ClassNone
	}
}

// RiskScore is the per-clause multi-category score owned by one Analysis.
type RiskScore struct {
	ClauseID       int                      `json:"clause_id"`
	Raw            map[RiskCategory]float64 `json:"raw"`
	Factors        []string                 `json:"factors,omitempty"`
	Aggregate      float64                  `json:"aggregate"`
	Classification Classification           `json:"classification,omitempty"`
}

// Priority orders negotiation recommendations for presentation.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// Rank orders priorities; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Recommendation is one negotiation item produced by a rule match.
// Recommendations targeting the same clause are never merged, only ranked;
// overlapping same-priority matches share a GroupID for display.
type Recommendation struct {
	RuleID   string   `json:"rule_id"`
	ClauseID int      `json:"clause_id"`
	Priority Priority `json:"priority"`
	// Type is the suggested action kind: redline, addition, deletion,
	// clarification, flag, or accept.
	Type            string `json:"type"`
	SuggestedChange string `json:"suggested_change"`
	Rationale       string `json:"rationale,omitempty"`
	Strategy        string `json:"strategy,omitempty"`
	GroupID         string `json:"group_id,omitempty"`
}

// State enumerates the orchestrator's session phases.
type State string

const (
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Terminal reports whether no further processing can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// CheckpointReason names the threshold that tripped a pause.
type CheckpointReason string

const (
	ReasonClauseCount CheckpointReason = "clause-count"
	ReasonTokenBudget CheckpointReason = "token-budget"
)

// CheckpointRecord documents one mandatory human-review pause.
type CheckpointRecord struct {
	Seq              int              `json:"seq"`
	ClauseID         int              `json:"clause_id"`
	ClausesProcessed int              `json:"clauses_processed"`
	TokensProcessed  int              `json:"tokens_processed"`
	Reason           CheckpointReason `json:"reason"`
	// SnapshotRef points at the persisted partial-results snapshot.
	SnapshotRef string    `json:"snapshot_ref,omitempty"`
	At          time.Time `json:"at"`
}

// ErrorRecord is one entry in the session's recoverable-error log.
type ErrorRecord struct {
	ClauseID int       `json:"clause_id"`
	Stage    string    `json:"stage"`
	Cause    string    `json:"cause"`
	At       time.Time `json:"at"`
}
