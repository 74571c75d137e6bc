// Package advisor implements the negotiation rule engine, the final
// content stage of the review pipeline. Rules are data, never code: each
// one is a conjunction of declarative conditions plus a recommendation
// template, loaded from YAML. Every rule is evaluated against every
// analyzed clause independently, so one clause can trigger several rules.
package advisor

import (
	"fmt"
	"strings"

	"github.com/neexlegal/neex-review/internal/review"
)

// Conditions is the conjunction a rule tests against one analyzed clause.
// Within Tags and Contains one match suffices; Lacks and NotMatches
// require every listed term or pattern to be absent. Empty lists are
// skipped, not failed.
type Conditions struct {
	Tags              []string `yaml:"tags,omitempty"`
	Contains          []string `yaml:"contains,omitempty"`
	Lacks             []string `yaml:"lacks,omitempty"`
	Matches           []string `yaml:"matches,omitempty"`
	NotMatches        []string `yaml:"not_matches,omitempty"`
	MinClassification string   `yaml:"min_classification,omitempty"`
}

func (c Conditions) empty() bool {
	return len(c.Tags) == 0 && len(c.Contains) == 0 && len(c.Lacks) == 0 &&
		len(c.Matches) == 0 && len(c.NotMatches) == 0 && c.MinClassification == ""
}

// Template is the recommendation a matching rule emits.
type Template struct {
	Type            string `yaml:"type"`
	SuggestedChange string `yaml:"suggested_change"`
	Rationale       string `yaml:"rationale,omitempty"`
	Strategy        string `yaml:"strategy,omitempty"`
}

// Rule is one negotiation rule as declared in YAML.
type Rule struct {
	ID             string     `yaml:"id"`
	Name           string     `yaml:"name"`
	Priority       string     `yaml:"priority,omitempty"`
	Conditions     Conditions `yaml:"conditions"`
	Recommendation Template   `yaml:"recommendation"`
}

var recommendationTypes = map[string]struct{}{
	"redline": {}, "addition": {}, "deletion": {},
	"clarification": {}, "flag": {}, "accept": {},
}

// Validate enforces structural requirements. It never compiles regex
// patterns: a malformed pattern is an evaluation-time condition handled
// per clause so that one broken rule cannot block the rest of the set.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("advisor: rule id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("advisor: rule %s: name is required", r.ID)
	}
	if p := strings.TrimSpace(r.Priority); p != "" {
		if review.Priority(p).Rank() == 0 {
			return fmt.Errorf("advisor: rule %s: unknown priority %q", r.ID, r.Priority)
		}
	}
	if r.Conditions.empty() {
		return fmt.Errorf("advisor: rule %s: at least one condition is required", r.ID)
	}
	if mc := strings.TrimSpace(r.Conditions.MinClassification); mc != "" {
		if review.Classification(mc).Rank() == 0 {
			return fmt.Errorf("advisor: rule %s: unknown min_classification %q", r.ID, mc)
		}
	}
	if strings.TrimSpace(r.Recommendation.Type) == "" {
		return fmt.Errorf("advisor: rule %s: recommendation type is required", r.ID)
	}
	if _, ok := recommendationTypes[strings.ToLower(strings.TrimSpace(r.Recommendation.Type))]; !ok {
		return fmt.Errorf("advisor: rule %s: unknown recommendation type %q", r.ID, r.Recommendation.Type)
	}
	if strings.TrimSpace(r.Recommendation.SuggestedChange) == "" {
		return fmt.Errorf("advisor: rule %s: suggested_change is required", r.ID)
	}
	return nil
}

// Normalized returns a copy with trimmed fields, lowercased match terms,
// and the default Medium priority applied.
func (r Rule) Normalized() Rule {
	out := r
	out.ID = strings.TrimSpace(r.ID)
	out.Name = strings.TrimSpace(r.Name)
	out.Priority = strings.TrimSpace(r.Priority)
	if out.Priority == "" {
		out.Priority = string(review.PriorityMedium)
	}
	out.Conditions.Tags = upperAll(r.Conditions.Tags)
	out.Conditions.Contains = lowerAll(r.Conditions.Contains)
	out.Conditions.Lacks = lowerAll(r.Conditions.Lacks)
	out.Conditions.MinClassification = strings.TrimSpace(r.Conditions.MinClassification)
	out.Recommendation.Type = strings.ToLower(strings.TrimSpace(r.Recommendation.Type))
	out.Recommendation.SuggestedChange = strings.TrimSpace(r.Recommendation.SuggestedChange)
	return out
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}

func upperAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, strings.ToUpper(trimmed))
		}
	}
	return out
}
