package advisor

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleSetDocument is the on-disk shape of a rule file.
type ruleSetDocument struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRuleSetYAML decodes and validates one rule-set payload.
func ParseRuleSetYAML(data []byte) ([]Rule, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("advisor: rule payload is empty")
	}
	var doc ruleSetDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("advisor: decode rules: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("advisor: rule payload declares no rules")
	}
	rules := make([]Rule, 0, len(doc.Rules))
	for _, rule := range doc.Rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		rules = append(rules, rule.Normalized())
	}
	return rules, nil
}

// LoadRuleFile reads a YAML file from disk and returns the parsed rules.
func LoadRuleFile(path string) ([]Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("advisor: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("advisor: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("advisor: read %s: %w", path, err)
	}
	rules, err := ParseRuleSetYAML(data)
	if err != nil {
		return nil, fmt.Errorf("advisor: %s: %w", path, err)
	}
	return rules, nil
}

// LoadRuleDir scans a directory for *.yaml rule files and returns the
// combined rule set, sorted by file then declaration order. A missing
// directory means "no overrides", not an error. Duplicate rule IDs across
// files are rejected so audit trails stay unambiguous.
func LoadRuleDir(dir string) ([]Rule, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("advisor: read %s: %w", trimmed, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var rules []Rule
	seen := map[string]string{}
	for _, name := range names {
		path := filepath.Join(trimmed, name)
		fileRules, err := LoadRuleFile(path)
		if err != nil {
			return nil, err
		}
		for _, rule := range fileRules {
			if prev, dup := seen[rule.ID]; dup {
				return nil, fmt.Errorf("advisor: rule %s in %s duplicates %s", rule.ID, path, prev)
			}
			seen[rule.ID] = path
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

// LoadRules combines the embedded defaults with the overrides found in
// dir. An override sharing an ID with a default replaces it in place;
// new IDs are appended in file order.
func LoadRules(dir string) ([]Rule, error) {
	rules := DefaultRules()
	overrides, err := LoadRuleDir(dir)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(rules))
	for i, rule := range rules {
		index[rule.ID] = i
	}
	for _, rule := range overrides {
		if i, ok := index[rule.ID]; ok {
			rules[i] = rule
			continue
		}
		index[rule.ID] = len(rules)
		rules = append(rules, rule)
	}
	return rules, nil
}

// DefaultRules returns the embedded rule set. The payload is known-good,
// so a parse failure is a build defect and panics.
func DefaultRules() []Rule {
	rules, err := ParseRuleSetYAML([]byte(defaultRulesYAML))
	if err != nil {
		panic(fmt.Sprintf("advisor: embedded rules invalid: %v", err))
	}
	return rules
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
