package advisor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleRuleYAML = `rules:
  - id: uncapped-penalty
    name: Uncapped Penalty
    priority: High
    conditions:
      contains: [penalty]
      lacks: [cap]
    recommendation:
      type: addition
      suggested_change: Add a penalty cap
`

func TestParseRuleSetYAMLNormalizes(t *testing.T) {
	rules, err := ParseRuleSetYAML([]byte(`rules:
  - id: "  spaced-id  "
    name: Spaced
    conditions:
      tags: [fin]
      contains: [" Penalty "]
    recommendation:
      type: " Redline "
      suggested_change: Cap it
`))
	if err != nil {
		t.Fatalf("ParseRuleSetYAML returned error: %v", err)
	}
	rule := rules[0]
	if rule.ID != "spaced-id" {
		t.Fatalf("id = %q", rule.ID)
	}
	if rule.Priority != "Medium" {
		t.Fatalf("default priority = %q, want Medium", rule.Priority)
	}
	if rule.Conditions.Tags[0] != "FIN" || rule.Conditions.Contains[0] != "penalty" {
		t.Fatalf("conditions not normalized: %+v", rule.Conditions)
	}
	if rule.Recommendation.Type != "redline" {
		t.Fatalf("type = %q", rule.Recommendation.Type)
	}
}

func TestParseRuleSetYAMLRejectsBadRules(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty payload", "   "},
		{"no rules", "rules: []"},
		{"missing id", "rules:\n  - name: x\n    conditions: {contains: [a]}\n    recommendation: {type: flag, suggested_change: y}"},
		{"no conditions", "rules:\n  - id: x\n    name: x\n    recommendation: {type: flag, suggested_change: y}"},
		{"bad priority", "rules:\n  - id: x\n    name: x\n    priority: Urgent\n    conditions: {contains: [a]}\n    recommendation: {type: flag, suggested_change: y}"},
		{"bad type", "rules:\n  - id: x\n    name: x\n    conditions: {contains: [a]}\n    recommendation: {type: rewrite, suggested_change: y}"},
		{"bad min classification", "rules:\n  - id: x\n    name: x\n    conditions: {min_classification: Severe}\n    recommendation: {type: flag, suggested_change: y}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseRuleSetYAML([]byte(tc.yaml)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadRuleDirMissingIsEmpty(t *testing.T) {
	rules, err := LoadRuleDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("LoadRuleDir returned error: %v", err)
	}
	if rules != nil {
		t.Fatalf("expected nil rules, got %v", rules)
	}
}

func TestLoadRuleDirRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sampleRuleYAML), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := LoadRuleDir(dir); err == nil || !strings.Contains(err.Error(), "duplicates") {
		t.Fatalf("expected duplicate-id error, got %v", err)
	}
}

func TestLoadRulesOverridesDefaultsByID(t *testing.T) {
	dir := t.TempDir()
	override := `rules:
  - id: unlimited-liability
    name: Unlimited Liability (strict)
    priority: Critical
    conditions:
      contains: [liable]
    recommendation:
      type: redline
      suggested_change: Reject clause outright
`
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(sampleRuleYAML), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(dir)
	if err != nil {
		t.Fatalf("LoadRules returned error: %v", err)
	}
	if len(rules) != len(DefaultRules())+1 {
		t.Fatalf("len(rules) = %d, want %d", len(rules), len(DefaultRules())+1)
	}
	var overridden *Rule
	for i := range rules {
		if rules[i].ID == "unlimited-liability" {
			overridden = &rules[i]
		}
	}
	if overridden == nil || overridden.Priority != "Critical" || overridden.Name != "Unlimited Liability (strict)" {
		t.Fatalf("override not applied: %+v", overridden)
	}
}
