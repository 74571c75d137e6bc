// internal/config/config.go
//
// This package handles configuration and the .neex directory structure.
// Every project that runs contract reviews gets a .neex/ folder created in
// its root: sessions/ holds persisted session snapshots, logs/ the audit
// logbook, rules/ negotiation rule overrides.
//
// Everything the pipeline treats as tunable lives here: the tag set and its
// classification keyword patterns, the six risk category weights, the
// classification thresholds, the checkpoint thresholds, and the per-tag
// leverage points. Values ship as an embedded default document and can be
// overridden from .neex/config.yaml. Config is loaded once when a session
// starts and never mutated afterwards.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/review"
)

// NeexDir is the name of the directory we create in each project
const NeexDir = ".neex"

// CheckpointConfig holds the human-oversight thresholds. A pause triggers
// at a whole-clause boundary once either value is reached since the
// previous checkpoint.
type CheckpointConfig struct {
	ClauseInterval int `yaml:"clause_interval"`
	TokenBudget    int `yaml:"token_budget"`
}

// ClassThresholds holds the classification boundaries applied to the
// aggregate risk score. Both boundaries are inclusive.
type ClassThresholds struct {
	Critical float64 `yaml:"critical"`
	Material float64 `yaml:"material"`
}

// RiskConfig groups the scoring constants.
type RiskConfig struct {
	Weights    map[review.RiskCategory]float64 `yaml:"weights"`
	Thresholds ClassThresholds                 `yaml:"thresholds"`
}

// LeveragePoint is one configurable negotiation hook the analyzer may
// attach to a clause: Text is offered when every `when` term appears in
// the clause and every `lacks` term is absent.
type LeveragePoint struct {
	Text  string   `yaml:"text"`
	When  []string `yaml:"when,omitempty"`
	Lacks []string `yaml:"lacks,omitempty"`
}

// ReviewConfig models .neex/config.yaml.
type ReviewConfig struct {
	Version     int                        `yaml:"version"`
	Tags        []string                   `yaml:"tags"`
	TagPatterns map[string][]string        `yaml:"tag_patterns"`
	Risk        RiskConfig                 `yaml:"risk"`
	Checkpoint  CheckpointConfig           `yaml:"checkpoint"`
	Leverage    map[string][]LeveragePoint `yaml:"leverage"`
	RulesDir    string                     `yaml:"rules_dir,omitempty"`
}

// Config holds the runtime configuration for a review project.
type Config struct {
	// ProjectDir is the directory the review was started from
	ProjectDir string

	// NeexProjectDir is ProjectDir/.neex
	NeexProjectDir string

	Review ReviewConfig
}

// InitNeexDir creates the .neex directory structure in the given project
// directory and seeds the default config file when none exists.
//
// Structure created:
// .neex/
// ├── sessions/   <- Persisted session snapshots (JSON)
// ├── logs/       <- Audit logbook
// └── rules/      <- Negotiation rule overrides (YAML)
func InitNeexDir(projectDir string) error {
	neexDir := filepath.Join(projectDir, NeexDir)

	dirs := []string{
		filepath.Join(neexDir, "sessions"),
		filepath.Join(neexDir, "logs"),
		filepath.Join(neexDir, "rules"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureReviewConfig(filepath.Join(neexDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:     projectDir,
		NeexProjectDir: filepath.Join(projectDir, NeexDir),
		Review:         DefaultReviewConfig(),
	}

	if err := cfg.loadReviewConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SessionsDir returns the directory holding persisted session snapshots.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.NeexProjectDir, "sessions")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.NeexProjectDir, "logs")
}

// RulesDir returns the directory scanned for negotiation rule overrides.
func (c *Config) RulesDir() string {
	dir := strings.TrimSpace(c.Review.RulesDir)
	if dir == "" {
		dir = "rules"
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.NeexProjectDir, dir)
}

// ConfigPath returns the on-disk location for the review config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.NeexProjectDir, "config.yaml")
}

// Tags returns the configured tag set in declaration order.
func (c *Config) Tags() []clause.Tag {
	tags := make([]clause.Tag, 0, len(c.Review.Tags))
	for _, raw := range c.Review.Tags {
		tags = append(tags, clause.Tag(raw))
	}
	return tags
}

// TagPatterns returns the classification keyword lists keyed by tag.
func (c *Config) TagPatterns() map[clause.Tag][]string {
	out := make(map[clause.Tag][]string, len(c.Review.TagPatterns))
	for raw, patterns := range c.Review.TagPatterns {
		out[clause.Tag(raw)] = append([]string{}, patterns...)
	}
	return out
}

// Leverage returns the configured leverage points keyed by tag.
func (c *Config) Leverage() map[clause.Tag][]LeveragePoint {
	out := make(map[clause.Tag][]LeveragePoint, len(c.Review.Leverage))
	for raw, points := range c.Review.Leverage {
		out[clause.Tag(raw)] = append([]LeveragePoint{}, points...)
	}
	return out
}

func (c *Config) loadReviewConfig() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ReviewConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Review = parsed
	return nil
}

// DefaultReviewConfig parses the embedded default document. The defaults
// are known-good, so a decode failure here is a build defect and panics.
func DefaultReviewConfig() ReviewConfig {
	cfg, err := parseDefaults()
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

func parseDefaults() (ReviewConfig, error) {
	var cfg ReviewConfig
	if err := yaml.Unmarshal([]byte(defaultReviewConfigYAML), &cfg); err != nil {
		return ReviewConfig{}, err
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return ReviewConfig{}, err
	}
	return cfg, nil
}

func (rc *ReviewConfig) applyDefaults() {
	defaults := DefaultReviewConfig()
	if rc.Version == 0 {
		rc.Version = 1
	}
	if len(rc.Tags) == 0 {
		rc.Tags = defaults.Tags
	}
	if len(rc.TagPatterns) == 0 {
		rc.TagPatterns = defaults.TagPatterns
	}
	if len(rc.Risk.Weights) == 0 {
		rc.Risk.Weights = defaults.Risk.Weights
	}
	if rc.Risk.Thresholds.Critical == 0 {
		rc.Risk.Thresholds.Critical = defaults.Risk.Thresholds.Critical
	}
	if rc.Risk.Thresholds.Material == 0 {
		rc.Risk.Thresholds.Material = defaults.Risk.Thresholds.Material
	}
	if rc.Checkpoint.ClauseInterval == 0 {
		rc.Checkpoint.ClauseInterval = defaults.Checkpoint.ClauseInterval
	}
	if rc.Checkpoint.TokenBudget == 0 {
		rc.Checkpoint.TokenBudget = defaults.Checkpoint.TokenBudget
	}
	if len(rc.Leverage) == 0 {
		rc.Leverage = defaults.Leverage
	}
}

func (rc *ReviewConfig) normalize() {
	for i, tag := range rc.Tags {
		rc.Tags[i] = strings.ToUpper(strings.TrimSpace(tag))
	}

	patterns := make(map[string][]string, len(rc.TagPatterns))
	for tag, list := range rc.TagPatterns {
		cleaned := make([]string, 0, len(list))
		for _, pattern := range list {
			if trimmed := strings.TrimSpace(pattern); trimmed != "" {
				cleaned = append(cleaned, strings.ToLower(trimmed))
			}
		}
		patterns[strings.ToUpper(strings.TrimSpace(tag))] = cleaned
	}
	rc.TagPatterns = patterns

	leverage := make(map[string][]LeveragePoint, len(rc.Leverage))
	for tag, points := range rc.Leverage {
		leverage[strings.ToUpper(strings.TrimSpace(tag))] = points
	}
	rc.Leverage = leverage

	rc.RulesDir = strings.TrimSpace(rc.RulesDir)
}

func (rc *ReviewConfig) validate() error {
	if rc.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if len(rc.Tags) == 0 {
		return fmt.Errorf("tags list is required")
	}

	seen := map[string]struct{}{}
	hasFallback := false
	for i, tag := range rc.Tags {
		if tag == "" {
			return fmt.Errorf("tags[%d] is empty", i)
		}
		if _, dup := seen[tag]; dup {
			return fmt.Errorf("tags[%d] duplicates %q", i, tag)
		}
		seen[tag] = struct{}{}
		if clause.Tag(tag) == clause.TagDOC {
			hasFallback = true
		}
	}
	if !hasFallback {
		return fmt.Errorf("tag set must include the %s fallback tag", clause.TagDOC)
	}

	for tag := range rc.TagPatterns {
		if _, ok := seen[tag]; !ok {
			return fmt.Errorf("tag_patterns references unknown tag %q", tag)
		}
	}
	for tag, points := range rc.Leverage {
		if _, ok := seen[tag]; !ok {
			return fmt.Errorf("leverage references unknown tag %q", tag)
		}
		for i, point := range points {
			if strings.TrimSpace(point.Text) == "" {
				return fmt.Errorf("leverage[%s][%d]: text is required", tag, i)
			}
		}
	}

	for _, category := range review.RiskCategories() {
		weight, ok := rc.Risk.Weights[category]
		if !ok {
			return fmt.Errorf("risk.weights.%s is required", category)
		}
		if weight <= 0 {
			return fmt.Errorf("risk.weights.%s must be positive", category)
		}
	}
	for category := range rc.Risk.Weights {
		if !knownCategory(category) {
			return fmt.Errorf("risk.weights has unknown category %q", category)
		}
	}

	t := rc.Risk.Thresholds
	if t.Material <= 0 || t.Critical <= t.Material || t.Critical > 1 {
		return fmt.Errorf("risk.thresholds must satisfy 0 < material < critical <= 1")
	}
	if rc.Checkpoint.ClauseInterval <= 0 {
		return fmt.Errorf("checkpoint.clause_interval must be positive")
	}
	if rc.Checkpoint.TokenBudget <= 0 {
		return fmt.Errorf("checkpoint.token_budget must be positive")
	}
	return nil
}

func knownCategory(category review.RiskCategory) bool {
	for _, known := range review.RiskCategories() {
		if known == category {
			return true
		}
	}
	return false
}

func ensureReviewConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultReviewConfigYAML), 0644)
}
