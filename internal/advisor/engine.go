package advisor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/review"
	"github.com/neexlegal/neex-review/internal/stage"
)

// StageID identifies this stage in pipeline assembly and error records.
const StageID = "negotiation-advisor"

// Engine is the rule-evaluation stage. One engine serves one session; the
// rule set can be swapped at a checkpoint via SetRules, which affects only
// clauses processed afterwards.
type Engine struct {
	stage.Base

	rules    []Rule
	compiled map[string]compiledPattern
}

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// NewEngine builds the stage around a validated rule set.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{
		Base: stage.NewBase(stage.Info{
			ID:          StageID,
			Name:        "Negotiation Advisor",
			Description: "matches negotiation rules against analyzed clauses",
		}),
		rules:    append([]Rule{}, rules...),
		compiled: map[string]compiledPattern{},
	}
	e.SetReads(stage.FieldClauses, stage.FieldAnalyses, stage.FieldScores)
	e.SetWrites(stage.FieldRecommendations)
	return e
}

// Rules returns the active rule set.
func (e *Engine) Rules() []Rule {
	return append([]Rule{}, e.rules...)
}

// SetRules replaces the active rule set. Used by the orchestrator for a
// modify-and-continue decision; already-processed clauses keep the
// recommendations the old set produced.
func (e *Engine) SetRules(rules []Rule) {
	e.rules = append([]Rule{}, rules...)
}

// Run evaluates every rule against one analyzed clause. A rule that fails
// to evaluate (malformed pattern) is skipped for this clause and reported
// in a recoverable error; the other rules still run. Re-running on the
// same clause first drops its earlier recommendations, keeping the stage
// idempotent for checkpoint resume.
func (e *Engine) Run(rc *review.Context, cl clause.Clause) error {
	analysis, ok := rc.Analyses[cl.ID]
	if !ok {
		return &review.StageError{
			Stage:       StageID,
			Recoverable: false,
			Cause:       fmt.Errorf("clause %d reached the advisor without an analysis", cl.ID),
		}
	}
	score, ok := rc.Scores[cl.ID]
	if !ok {
		return &review.StageError{
			Stage:       StageID,
			Recoverable: false,
			Cause:       fmt.Errorf("clause %d reached the advisor without a risk score", cl.ID),
		}
	}

	text := strings.ToLower(cl.Title + " " + cl.Text)

	var matched []review.Recommendation
	var ruleErrs []error
	for _, rule := range e.rules {
		applies, err := e.evaluate(rule, analysis.Tags, text, score.Classification)
		if err != nil {
			ruleErrs = append(ruleErrs, &review.RuleError{RuleID: rule.ID, Cause: err})
			continue
		}
		if !applies {
			continue
		}
		matched = append(matched, review.Recommendation{
			RuleID:          rule.ID,
			ClauseID:        cl.ID,
			Priority:        review.Priority(rule.Priority),
			Type:            rule.Recommendation.Type,
			SuggestedChange: rule.Recommendation.SuggestedChange,
			Rationale:       rule.Recommendation.Rationale,
			Strategy:        rule.Recommendation.Strategy,
		})
	}
	groupOverlaps(cl.ID, matched)

	// Drop this clause's earlier recommendations before appending, so a
	// re-run after resume cannot duplicate them.
	kept := rc.Recommendations[:0]
	for _, rec := range rc.Recommendations {
		if rec.ClauseID != cl.ID {
			kept = append(kept, rec)
		}
	}
	rc.Recommendations = append(kept, matched...)

	if len(ruleErrs) > 0 {
		return &review.StageError{
			Stage:       StageID,
			Recoverable: true,
			Cause:       errors.Join(ruleErrs...),
		}
	}
	return nil
}

// evaluate tests one rule's conjunction against an analyzed clause.
func (e *Engine) evaluate(rule Rule, tags []clause.Tag, text string, class review.Classification) (bool, error) {
	c := rule.Conditions

	if c.MinClassification != "" {
		if class.Rank() < review.Classification(c.MinClassification).Rank() {
			return false, nil
		}
	}
	if len(c.Tags) > 0 {
		hit := false
		for _, raw := range c.Tags {
			if clause.HasTag(tags, clause.Tag(raw)) {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}
	if len(c.Contains) > 0 {
		hit := false
		for _, term := range c.Contains {
			if strings.Contains(text, term) {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}
	for _, term := range c.Lacks {
		if strings.Contains(text, term) {
			return false, nil
		}
	}
	if len(c.Matches) > 0 {
		hit := false
		for _, pattern := range c.Matches {
			re, err := e.compile(pattern)
			if err != nil {
				return false, err
			}
			if re.MatchString(text) {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}
	for _, pattern := range c.NotMatches {
		re, err := e.compile(pattern)
		if err != nil {
			return false, err
		}
		if re.MatchString(text) {
			return false, nil
		}
	}
	return true, nil
}

// compile caches compiled patterns, including failures, so a malformed
// pattern is reported once per clause without re-parsing.
func (e *Engine) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := e.compiled[pattern]; ok {
		return cached.re, cached.err
	}
	re, err := regexp.Compile("(?i)" + pattern)
	e.compiled[pattern] = compiledPattern{re: re, err: err}
	return re, err
}

// groupOverlaps marks same-priority recommendations on one clause whose
// suggested changes overlap. Matches are never dropped or merged; the
// shared group id only signals the overlap to the presentation layer.
func groupOverlaps(clauseID int, recs []review.Recommendation) {
	group := 0
	for i := range recs {
		if recs[i].GroupID != "" {
			continue
		}
		var members []int
		for j := i + 1; j < len(recs); j++ {
			if recs[j].GroupID != "" || recs[j].Priority != recs[i].Priority {
				continue
			}
			if suggestionsOverlap(recs[i].SuggestedChange, recs[j].SuggestedChange) {
				members = append(members, j)
			}
		}
		if len(members) == 0 {
			continue
		}
		group++
		id := fmt.Sprintf("clause-%d-%s-g%d", clauseID, strings.ToLower(string(recs[i].Priority)), group)
		recs[i].GroupID = id
		for _, j := range members {
			recs[j].GroupID = id
		}
	}
}

// suggestionsOverlap reports whether two suggested changes cover the same
// ground: one contains the other, or at least half the words of the
// shorter appear in the longer.
func suggestionsOverlap(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return true
	}
	wa, wb := strings.Fields(la), strings.Fields(lb)
	if len(wa) > len(wb) {
		wa, wb = wb, wa
	}
	if len(wa) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(wb))
	for _, w := range wb {
		set[w] = struct{}{}
	}
	shared := 0
	for _, w := range wa {
		if _, ok := set[w]; ok {
			shared++
		}
	}
	return shared*2 >= len(wa)
}
