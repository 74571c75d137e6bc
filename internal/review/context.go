package review

import (
	"fmt"
	"sort"
	"time"

	"github.com/neexlegal/neex-review/internal/clause"
)

// Context is the mutable accumulator threaded through one contract review
// session. It holds state and invariant checks only; stages own all logic.
// Stages mutate it exclusively within their declared write scope, and only
// the orchestrator advances checkpoint state.
type Context struct {
	SessionID string                     `json:"session_id"`
	Clauses   []clause.Clause            `json:"clauses"`
	Features  map[int]clause.Features    `json:"features,omitempty"`

	Analyses        map[int]Analysis  `json:"analyses"`
	Scores          map[int]RiskScore `json:"scores"`
	Recommendations []Recommendation  `json:"recommendations"`

	ClausesProcessed int `json:"clauses_processed"`
	TokensProcessed  int `json:"tokens_processed"`

	Checkpoints []CheckpointRecord `json:"checkpoints,omitempty"`
	Errors      []ErrorRecord      `json:"errors,omitempty"`
}

// NewContext seeds a context for one review session. The clause slice is
// not copied; callers hand over ownership at session start.
func NewContext(sessionID string, clauses []clause.Clause, features map[int]clause.Features) *Context {
	return &Context{
		SessionID: sessionID,
		Clauses:   clauses,
		Features:  features,
		Analyses:  map[int]Analysis{},
		Scores:    map[int]RiskScore{},
	}
}

// FeaturesFor returns the NLP bundle for a clause, which may be absent.
func (c *Context) FeaturesFor(id int) (clause.Features, bool) {
	f, ok := c.Features[id]
	return f, ok
}

// RecordError appends one recoverable-error record to the session log.
func (c *Context) RecordError(clauseID int, stage string, cause error, at time.Time) {
	c.Errors = append(c.Errors, ErrorRecord{
		ClauseID: clauseID,
		Stage:    stage,
		Cause:    cause.Error(),
		At:       at,
	})
}

// CheckComplete verifies the pipeline invariant after a terminal state:
// every processed clause carries exactly one analysis and one risk score.
func (c *Context) CheckComplete(processed int) error {
	for i := 0; i < processed && i < len(c.Clauses); i++ {
		id := c.Clauses[i].ID
		if _, ok := c.Analyses[id]; !ok {
			return fmt.Errorf("review: clause %d has no analysis", id)
		}
		if _, ok := c.Scores[id]; !ok {
			return fmt.Errorf("review: clause %d has no risk score", id)
		}
	}
	return nil
}

// DocumentRisk reduces clause classifications into the document-level
// result: the maximum classification present plus per-class counts. It is
// deliberately never an average, so one critical clause is not diluted by
// many benign ones.
func (c *Context) DocumentRisk() (Classification, map[Classification]int) {
	counts := map[Classification]int{}
	top := ClassNone
	for _, score := range c.Scores {
		if score.Classification == ClassNone {
			continue
		}
		counts[score.Classification]++
		if score.Classification.Rank() > top.Rank() {
			top = score.Classification
		}
	}
	return top, counts
}

// Summary condenses the session for the reporting collaborator.
type Summary struct {
	TotalClauses     int                    `json:"total_clauses"`
	ClausesProcessed int                    `json:"clauses_processed"`
	TokensProcessed  int                    `json:"tokens_processed"`
	DocumentRisk     Classification         `json:"document_risk,omitempty"`
	Classifications  map[Classification]int `json:"classifications"`
	Recommendations  map[Priority]int       `json:"recommendations"`
	Checkpoints      []CheckpointRecord     `json:"checkpoints,omitempty"`
	ErrorCount       int                    `json:"error_count"`
}

// Summarize builds the session summary from accumulated results.
func (c *Context) Summarize() Summary {
	top, counts := c.DocumentRisk()
	byPriority := map[Priority]int{}
	for _, rec := range c.Recommendations {
		byPriority[rec.Priority]++
	}
	return Summary{
		TotalClauses:     len(c.Clauses),
		ClausesProcessed: c.ClausesProcessed,
		TokensProcessed:  c.TokensProcessed,
		DocumentRisk:     top,
		Classifications:  counts,
		Recommendations:  byPriority,
		Checkpoints:      append([]CheckpointRecord{}, c.Checkpoints...),
		ErrorCount:       len(c.Errors),
	}
}

// Clone deep-copies the context so readers never observe a torn state.
// The orchestrator publishes clones as atomic snapshots; field-by-field
// mutation is never visible outside the pipeline goroutine.
func (c *Context) Clone() *Context {
	clone := &Context{
		SessionID:        c.SessionID,
		Clauses:          append([]clause.Clause{}, c.Clauses...),
		Analyses:         make(map[int]Analysis, len(c.Analyses)),
		Scores:           make(map[int]RiskScore, len(c.Scores)),
		Recommendations:  append([]Recommendation{}, c.Recommendations...),
		ClausesProcessed: c.ClausesProcessed,
		TokensProcessed:  c.TokensProcessed,
		Checkpoints:      append([]CheckpointRecord{}, c.Checkpoints...),
		Errors:           append([]ErrorRecord{}, c.Errors...),
	}
	if c.Features != nil {
		clone.Features = make(map[int]clause.Features, len(c.Features))
		for id, f := range c.Features {
			clone.Features[id] = f
		}
	}
	for id, analysis := range c.Analyses {
		analysis.Tags = append([]clause.Tag{}, analysis.Tags...)
		analysis.Opportunities = append([]string{}, analysis.Opportunities...)
		analysis.KeyTerms = append([]string{}, analysis.KeyTerms...)
		clone.Analyses[id] = analysis
	}
	for id, score := range c.Scores {
		raw := make(map[RiskCategory]float64, len(score.Raw))
		for cat, v := range score.Raw {
			raw[cat] = v
		}
		score.Raw = raw
		score.Factors = append([]string{}, score.Factors...)
		clone.Scores[id] = score
	}
	return clone
}

// RankRecommendations sorts the accumulated recommendations for
// presentation: priority first (Critical down to Low), then clause
// document order. The sort is stable so identical inputs always produce
// the identical ordered list.
func (c *Context) RankRecommendations() {
	sort.SliceStable(c.Recommendations, func(i, j int) bool {
		a, b := c.Recommendations[i], c.Recommendations[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.ClauseID < b.ClauseID
	})
}
