package review

import (
	"fmt"
	"testing"
	"time"

	"github.com/neexlegal/neex-review/internal/clause"
)

func TestClassifyAggregateBoundariesAreExact(t *testing.T) {
	cases := []struct {
		aggregate float64
		want      Classification
	}{
		{0.70, ClassCritical},
		{0.6999, ClassMaterial},
		{0.35, ClassMaterial},
		{0.3499, ClassProcedural},
		{0.0001, ClassProcedural},
		{0, ClassNone},
		{1.0, ClassCritical},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v", tc.aggregate), func(t *testing.T) {
			if got := ClassifyAggregate(tc.aggregate, 0.70, 0.35); got != tc.want {
				t.Fatalf("ClassifyAggregate(%v) = %q, want %q", tc.aggregate, got, tc.want)
			}
		})
	}
}

func TestDocumentRiskIsMaximumNotAverage(t *testing.T) {
	c := NewContext("s", []clause.Clause{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}, {ID: 3, Text: "c"}}, nil)
	c.Scores[1] = RiskScore{ClauseID: 1, Classification: ClassProcedural}
	c.Scores[2] = RiskScore{ClauseID: 2, Classification: ClassProcedural}
	c.Scores[3] = RiskScore{ClauseID: 3, Classification: ClassCritical}

	top, counts := c.DocumentRisk()
	if top != ClassCritical {
		t.Fatalf("document risk = %q, want Critical despite many benign clauses", top)
	}
	if counts[ClassProcedural] != 2 || counts[ClassCritical] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestCheckCompleteDetectsOrphans(t *testing.T) {
	c := NewContext("s", []clause.Clause{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}, nil)
	c.Analyses[1] = Analysis{ClauseID: 1}
	c.Scores[1] = RiskScore{ClauseID: 1}
	if err := c.CheckComplete(1); err != nil {
		t.Fatalf("one fully processed clause should pass: %v", err)
	}
	if err := c.CheckComplete(2); err == nil {
		t.Fatal("expected orphan detection for clause 2")
	}
	c.Analyses[2] = Analysis{ClauseID: 2}
	if err := c.CheckComplete(2); err == nil {
		t.Fatal("expected missing-score detection for clause 2")
	}
	c.Scores[2] = RiskScore{ClauseID: 2}
	if err := c.CheckComplete(2); err != nil {
		t.Fatalf("complete context failed check: %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := NewContext("s", []clause.Clause{{ID: 1, Text: "a"}}, map[int]clause.Features{
		1: {KeyTerms: []string{"escrow"}},
	})
	c.Analyses[1] = Analysis{ClauseID: 1, Tags: []clause.Tag{clause.TagFIN}}
	c.Scores[1] = RiskScore{ClauseID: 1, Raw: map[RiskCategory]float64{RiskFinancial: 0.5}}
	c.Recommendations = append(c.Recommendations, Recommendation{RuleID: "r", ClauseID: 1})
	c.RecordError(1, "stage", fmt.Errorf("boom"), time.Now())

	snap := c.Clone()
	c.Analyses[1] = Analysis{ClauseID: 1, Tags: []clause.Tag{clause.TagDOC}}
	c.Scores[1].Raw[RiskFinancial] = 0.9
	c.Recommendations[0].RuleID = "mutated"
	c.ClausesProcessed = 99

	if snap.Analyses[1].Tags[0] != clause.TagFIN {
		t.Fatal("clone shares analyses with the original")
	}
	if snap.Scores[1].Raw[RiskFinancial] != 0.5 {
		t.Fatal("clone shares raw score maps with the original")
	}
	if snap.Recommendations[0].RuleID != "r" {
		t.Fatal("clone shares recommendations with the original")
	}
	if snap.ClausesProcessed != 0 {
		t.Fatal("clone shares counters with the original")
	}
}

func TestRankRecommendationsIsStableAndDeterministic(t *testing.T) {
	c := NewContext("s", nil, nil)
	c.Recommendations = []Recommendation{
		{RuleID: "low-1", ClauseID: 1, Priority: PriorityLow},
		{RuleID: "crit-9", ClauseID: 9, Priority: PriorityCritical},
		{RuleID: "high-5-a", ClauseID: 5, Priority: PriorityHigh},
		{RuleID: "high-2", ClauseID: 2, Priority: PriorityHigh},
		{RuleID: "high-5-b", ClauseID: 5, Priority: PriorityHigh},
	}
	c.RankRecommendations()

	want := []string{"crit-9", "high-2", "high-5-a", "high-5-b", "low-1"}
	for i, id := range want {
		if c.Recommendations[i].RuleID != id {
			t.Fatalf("position %d = %s, want %s (full: %+v)", i, c.Recommendations[i].RuleID, id, c.Recommendations)
		}
	}
}

func TestSummarizeCountsByPriority(t *testing.T) {
	c := NewContext("s", []clause.Clause{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}, nil)
	c.ClausesProcessed = 2
	c.TokensProcessed = 40
	c.Scores[1] = RiskScore{ClauseID: 1, Classification: ClassMaterial}
	c.Scores[2] = RiskScore{ClauseID: 2, Classification: ClassNone}
	c.Recommendations = []Recommendation{
		{ClauseID: 1, Priority: PriorityHigh},
		{ClauseID: 1, Priority: PriorityHigh},
		{ClauseID: 2, Priority: PriorityLow},
	}
	s := c.Summarize()
	if s.TotalClauses != 2 || s.ClausesProcessed != 2 || s.TokensProcessed != 40 {
		t.Fatalf("summary counters: %+v", s)
	}
	if s.DocumentRisk != ClassMaterial {
		t.Fatalf("document risk = %q", s.DocumentRisk)
	}
	if s.Recommendations[PriorityHigh] != 2 || s.Recommendations[PriorityLow] != 1 {
		t.Fatalf("recommendation counts = %v", s.Recommendations)
	}
	if s.Classifications[ClassMaterial] != 1 {
		t.Fatalf("classification counts = %v", s.Classifications)
	}
}
