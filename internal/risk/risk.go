// Package risk implements the scoring stage of the review pipeline. Each
// analyzed clause is scored against six fixed categories using declarative
// signal tables, folded into a weighted aggregate, and classified.
//
// Two properties matter here. First, the aggregate always averages over
// all six category weights, so a clause risky in one category alone stays
// below the critical band unless other categories concur. Second, scoring
// is pure: identical clause text and analysis always produce the identical
// score, which is what makes checkpoint resume safe.
package risk

import (
	"fmt"
	"strings"

	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/config"
	"github.com/neexlegal/neex-review/internal/review"
	"github.com/neexlegal/neex-review/internal/stage"
)

// StageID identifies this stage in pipeline assembly and error records.
const StageID = "risk-assessor"

// Signal is one declarative risk heuristic. It fires when at least one
// Present term appears in the clause text and every Absent term is
// missing. Score contributes to the category's raw total.
type Signal struct {
	Present []string
	Absent  []string
	Score   float64
	Reason  string
}

// Fires evaluates the signal against lowercased clause text.
func (s Signal) Fires(text string) bool {
	hit := false
	for _, term := range s.Present {
		if strings.Contains(text, term) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	for _, term := range s.Absent {
		if strings.Contains(text, term) {
			return false
		}
	}
	return true
}

// signalTable holds the per-category heuristics. Terms mirror the risk
// language reviewers actually flag: missing caps, one-sided obligations,
// absent mitigations.
var signalTable = map[review.RiskCategory][]Signal{
	review.RiskFinancial: {
		{Present: []string{"liable", "liability"}, Absent: []string{"limit", "cap"}, Score: 0.55,
			Reason: "liability exposure without caps"},
		{Present: []string{"penalty", "liquidated damages"}, Absent: []string{"cap"}, Score: 0.35,
			Reason: "uncapped penalty exposure"},
		{Present: []string{"payment", "invoice"}, Absent: []string{"penalty", "interest"}, Score: 0.25,
			Reason: "payment terms lack late-payment protection"},
		{Present: []string{"currency", "exchange rate"}, Absent: []string{"hedg", "fixed rate"}, Score: 0.3,
			Reason: "currency exposure without hedging"},
	},
	review.RiskLegal: {
		{Present: []string{"unlimited liability", "personal guarantee", "joint and several"}, Score: 0.6,
			Reason: "extreme liability commitments"},
		{Present: []string{"indemnif"}, Absent: []string{"mutual", "reciprocal"}, Score: 0.45,
			Reason: "one-sided indemnification obligations"},
		{Present: []string{"terminat"}, Absent: []string{"cure"}, Score: 0.35,
			Reason: "termination without cure period"},
		{Present: []string{"foreign jurisdiction", "offshore", "international arbitration"}, Score: 0.35,
			Reason: "potentially unfavorable dispute venue"},
		{Present: []string{"warrant", "guarantee"}, Absent: []string{"disclaim"}, Score: 0.3,
			Reason: "broad warranty obligations without disclaimers"},
	},
	review.RiskOperational: {
		{Present: []string{"deliverable"}, Absent: []string{"specific", "acceptance"}, Score: 0.4,
			Reason: "vague deliverable specifications"},
		{Present: []string{"immediately", "within 24 hours", "within 48 hours"}, Score: 0.3,
			Reason: "tight performance timeline"},
		{Present: []string{"depend", "third party"}, Score: 0.25,
			Reason: "third-party dependencies"},
	},
	review.RiskCompliance: {
		{Present: []string{"data"}, Absent: []string{"gdpr", "privacy"}, Score: 0.4,
			Reason: "data handling without explicit privacy protections"},
		{Present: []string{"regulation", "compliance"}, Absent: []string{"current"}, Score: 0.3,
			Reason: "compliance obligations may lag current regulations"},
		{Present: []string{"payment", "financial", "money"}, Absent: []string{"aml"}, Score: 0.2,
			Reason: "financial operations without anti-money-laundering measures"},
	},
	review.RiskReputational: {
		{Present: []string{"public", "disclosure"}, Absent: []string{"confidential"}, Score: 0.3,
			Reason: "public disclosure without confidentiality protections"},
		{Present: []string{"quality"}, Absent: []string{"standard"}, Score: 0.2,
			Reason: "quality expectations without defined standards"},
	},
	review.RiskStrategic: {
		{Present: []string{"intellectual property", "copyright"}, Absent: []string{"license back", "retain"}, Score: 0.5,
			Reason: "intellectual property transfer without license-back rights"},
		{Present: []string{"exclusive"}, Absent: []string{"term"}, Score: 0.35,
			Reason: "indefinite exclusivity arrangements"},
	},
}

// Assessor is the scoring stage. It consumes the analyzer's output and
// writes one RiskScore per clause.
type Assessor struct {
	stage.Base

	weights    map[review.RiskCategory]float64
	thresholds config.ClassThresholds
	signals    map[review.RiskCategory][]Signal
}

// New builds the assessor from the loaded configuration.
func New(cfg *config.Config) *Assessor {
	a := &Assessor{
		Base: stage.NewBase(stage.Info{
			ID:          StageID,
			Name:        "Risk Assessor",
			Description: "scores clauses across six categories and classifies the aggregate",
		}),
		weights:    cfg.Review.Risk.Weights,
		thresholds: cfg.Review.Risk.Thresholds,
		signals:    signalTable,
	}
	a.SetReads(stage.FieldClauses, stage.FieldAnalyses)
	a.SetWrites(stage.FieldScores)
	return a
}

// Run scores one clause. The analyzer must have run first; a missing
// analysis is a pipeline ordering defect and aborts the session.
func (a *Assessor) Run(rc *review.Context, cl clause.Clause) error {
	analysis, ok := rc.Analyses[cl.ID]
	if !ok {
		return &review.StageError{
			Stage:       StageID,
			Recoverable: false,
			Cause:       fmt.Errorf("clause %d reached the assessor without an analysis", cl.ID),
		}
	}

	text := strings.ToLower(cl.Title + " " + cl.Text)
	prior := analysis.Severity.Prior()

	raw := make(map[review.RiskCategory]float64, len(a.weights))
	var factors []string
	var weightedSum, weightTotal float64

	for _, category := range review.RiskCategories() {
		var sum float64
		for _, signal := range a.signals[category] {
			if signal.Fires(text) {
				sum += signal.Score
				factors = append(factors, fmt.Sprintf("%s: %s", category, signal.Reason))
			}
		}
		score := clamp01(clamp01(sum) * prior)
		raw[category] = score

		weight := a.weights[category]
		weightedSum += score * weight
		weightTotal += weight
	}

	aggregate := weightedSum / weightTotal
	rc.Scores[cl.ID] = review.RiskScore{
		ClauseID:       cl.ID,
		Raw:            raw,
		Factors:        factors,
		Aggregate:      aggregate,
		Classification: review.ClassifyAggregate(aggregate, a.thresholds.Critical, a.thresholds.Material),
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
