// Package analyzer implements the tag-classification stage of the review
// pipeline. For each clause it assigns taxonomy tags from the configured
// keyword patterns, then layers interpretation (what the clause enables or
// controls), exposure (where the reviewing party is vulnerable), and
// opportunity (what leverage exists) on top, plus key terms and an
// investigatory question for the human reviewer.
//
// The stage reads the clause and feature source fields and writes only the
// analyses field. Blank clause text is a parse gap: a minimal defaulted
// analysis is written so downstream stages still find exactly one analysis
// for the clause, and a recoverable error is reported.
package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/neexlegal/neex-review/internal/clause"
	"github.com/neexlegal/neex-review/internal/config"
	"github.com/neexlegal/neex-review/internal/review"
	"github.com/neexlegal/neex-review/internal/stage"
)

// StageID identifies this stage in pipeline assembly and error records.
const StageID = "clause-analyzer"

// Analyzer is the first content stage of the pipeline.
type Analyzer struct {
	stage.Base

	tags     []clause.Tag
	patterns map[clause.Tag][]string
	leverage map[clause.Tag][]config.LeveragePoint
}

// New builds the analyzer from the loaded configuration.
func New(cfg *config.Config) *Analyzer {
	a := &Analyzer{
		Base: stage.NewBase(stage.Info{
			ID:          StageID,
			Name:        "Clause Analyzer",
			Description: "classifies clauses and produces the three-layer analysis",
		}),
		tags:     cfg.Tags(),
		patterns: cfg.TagPatterns(),
		leverage: cfg.Leverage(),
	}
	a.SetReads(stage.FieldClauses, stage.FieldFeatures)
	a.SetWrites(stage.FieldAnalyses)
	return a
}

// Run analyzes one clause and stores the result in the context. Re-running
// on the same clause overwrites the previous analysis with an identical
// one, so resume after a checkpoint is safe.
func (a *Analyzer) Run(rc *review.Context, cl clause.Clause) error {
	if strings.TrimSpace(cl.Text) == "" {
		rc.Analyses[cl.ID] = a.defaultAnalysis(cl)
		return &review.StageError{
			Stage:       StageID,
			Recoverable: true,
			Cause:       &review.ParseGapError{ClauseID: cl.ID, Reason: "clause text is empty"},
		}
	}

	combined := strings.ToLower(cl.Title + " " + cl.Text)
	tags := a.classify(combined)

	features, _ := rc.FeaturesFor(cl.ID)
	vulns := identifyVulnerabilities(combined, tags)

	analysis := review.Analysis{
		ClauseID:       cl.ID,
		Tags:           tags,
		Interpretation: interpret(cl.Text, tags),
		Exposure:       exposure(vulns, tags),
		Severity:       severityFor(combined, vulns),
		Opportunities:  a.opportunities(combined, tags),
		KeyTerms:       keyTerms(features),
		Question:       investigatoryQuestion(tags),
		Tokens:         clause.TokenCount(cl.Text),
	}
	rc.Analyses[cl.ID] = analysis
	return nil
}

// defaultAnalysis is the minimal substitute written after a parse gap.
func (a *Analyzer) defaultAnalysis(cl clause.Clause) review.Analysis {
	return review.Analysis{
		ClauseID:       cl.ID,
		Tags:           []clause.Tag{clause.TagDOC},
		Interpretation: "Clause text could not be analyzed; manual review required.",
		Exposure:       "Unknown exposure. The clause did not parse.",
		Severity:       review.SeverityNone,
		Question:       fallbackQuestion,
		Tokens:         clause.TokenCount(cl.Text),
		Defaulted:      true,
	}
}

// classify scores the configured keyword patterns against the combined
// title and body text. One matching pattern is enough to assign a tag.
// Tags come out in taxonomy declaration order so results are stable.
func (a *Analyzer) classify(combined string) []clause.Tag {
	var tags []clause.Tag
	for _, tag := range a.tags {
		for _, pattern := range a.patterns[tag] {
			if strings.Contains(combined, pattern) {
				tags = append(tags, tag)
				break
			}
		}
	}
	if len(tags) > 0 {
		return tags
	}
	// Fallback chain for clauses no pattern reaches.
	switch {
	case containsAny(combined, "payment", "fee", "cost"):
		return []clause.Tag{clause.TagFIN}
	case containsAny(combined, "termination", "breach"):
		return []clause.Tag{clause.TagTRM}
	case containsAny(combined, "legal", "jurisdiction", "law"):
		return []clause.Tag{clause.TagLEG}
	default:
		return []clause.Tag{clause.TagDOC}
	}
}

var interpretationFragments = []struct {
	tag  clause.Tag
	text string
}{
	{clause.TagTEC, "establishes technical requirements and deliverable specifications"},
	{clause.TagLEG, "defines legal obligations and protective mechanisms"},
	{clause.TagFIN, "governs financial terms and payment obligations"},
	{clause.TagIPX, "controls intellectual property rights and ownership"},
}

var mechanismPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)by means of ([^,.]+)`),
	regexp.MustCompile(`(?i)through ([^,.]+)`),
	regexp.MustCompile(`(?i)via ([^,.]+)`),
	regexp.MustCompile(`(?i)using ([^,.]+)`),
}

// interpret builds the "what does this clause enable or control" layer
// from tag-specific fragments plus any mechanism phrases in the text.
func interpret(text string, tags []clause.Tag) string {
	var parts []string
	for _, frag := range interpretationFragments {
		if clause.HasTag(tags, frag.tag) {
			parts = append(parts, frag.text)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "provides contractual terms and conditions")
	}

	mechanisms := identifyMechanisms(text)
	suffix := ""
	if len(mechanisms) > 0 {
		suffix = " through " + strings.Join(mechanisms, ", ")
	}
	return fmt.Sprintf("This clause %s%s.", strings.Join(parts, ", "), suffix)
}

// identifyMechanisms extracts up to three mechanism phrases.
func identifyMechanisms(text string) []string {
	var mechanisms []string
	for _, re := range mechanismPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			mechanisms = append(mechanisms, strings.TrimSpace(match[1]))
			if len(mechanisms) == 3 {
				return mechanisms
			}
		}
	}
	return mechanisms
}

// vulnerabilityIndicators groups phrasing that signals a weak position for
// the reviewing party regardless of clause category.
var vulnerabilityIndicators = map[string][]string{
	"asymmetric terms": {
		"solely responsible", "exclusively liable", "bears all costs",
		"at own expense", "without recourse",
	},
	"vague language": {
		"reasonable efforts", "best efforts", "commercially reasonable",
		"appropriate measures", "satisfactory performance",
	},
	"missing protections": {
		"without warranty", "as is", "no guarantee",
		"disclaim all liability", "exclude all warranties",
	},
}

// highRiskTerms force an immediate high severity hint when present.
var highRiskTerms = []string{
	"unlimited liability", "personal guarantee", "joint and several",
	"in perpetuity", "irrevocable", "unconditional",
}

// identifyVulnerabilities scans for generic indicators plus tag-specific
// missing-mitigation checks. Output is sorted for determinism.
func identifyVulnerabilities(combined string, tags []clause.Tag) []string {
	found := map[string]struct{}{}
	for category, indicators := range vulnerabilityIndicators {
		for _, indicator := range indicators {
			if strings.Contains(combined, indicator) {
				found[category+": "+indicator] = struct{}{}
			}
		}
	}

	tagCheck := func(tag clause.Tag, when, lacks, note string) {
		if clause.HasTag(tags, tag) && strings.Contains(combined, when) && !strings.Contains(combined, lacks) {
			found[note] = struct{}{}
		}
	}
	tagCheck(clause.TagFIN, "payment", "escrow", "financial: no escrow protection for payments")
	tagCheck(clause.TagFIN, "penalty", "cap", "financial: uncapped penalty exposure")
	tagCheck(clause.TagTEC, "sla", "remedy", "technical: sla without enforcement remedies")
	tagCheck(clause.TagTEC, "deliverable", "acceptance", "technical: no formal acceptance criteria")
	tagCheck(clause.TagLEG, "liability", "insurance", "legal: liability exposure without insurance requirements")

	out := make([]string, 0, len(found))
	for v := range found {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// tagExposures names the category-specific downside for each tag.
var tagExposures = map[clause.Tag]string{
	clause.TagFIN: "financial liability and payment disputes",
	clause.TagLEG: "legal liability and enforcement challenges",
	clause.TagTEC: "scope creep and delivery failures",
	clause.TagIPX: "intellectual property loss or disputes",
	clause.TagTRM: "unfavorable termination conditions",
	clause.TagCOM: "compliance violations and regulatory risks",
}

// exposure builds the "where is the reviewing party vulnerable" layer.
func exposure(vulns []string, tags []clause.Tag) string {
	if len(vulns) == 0 {
		return "No significant vulnerabilities identified in this clause."
	}
	text := "Potential vulnerabilities include: " + strings.Join(vulns, "; ")
	var concerns []string
	for _, tag := range tags {
		if concern, ok := tagExposures[tag]; ok {
			concerns = append(concerns, concern)
		}
	}
	if len(concerns) > 0 {
		text += ". Category-specific concerns: " + strings.Join(concerns, "; ") + "."
	}
	return text
}

// severityFor derives the coarse severity hint consumed by the risk
// assessor. Any high-risk term trumps the vulnerability count.
func severityFor(combined string, vulns []string) review.SeverityHint {
	for _, term := range highRiskTerms {
		if strings.Contains(combined, term) {
			return review.SeverityHigh
		}
	}
	switch n := len(vulns); {
	case n == 0:
		return review.SeverityNone
	case n == 1:
		return review.SeverityLow
	case n <= 3:
		return review.SeverityElevated
	default:
		return review.SeverityHigh
	}
}

// opportunities evaluates the configured leverage points for the clause.
func (a *Analyzer) opportunities(combined string, tags []clause.Tag) []string {
	var out []string
	for _, tag := range tags {
		for _, point := range a.leverage[tag] {
			if leverageApplies(combined, point) {
				out = append(out, point.Text)
			}
		}
	}
	return out
}

func leverageApplies(combined string, point config.LeveragePoint) bool {
	for _, term := range point.When {
		if !strings.Contains(combined, strings.ToLower(term)) {
			return false
		}
	}
	for _, term := range point.Lacks {
		if strings.Contains(combined, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// keyTerms carries over the external NLP collaborator's extraction,
// deduplicated and order-preserving.
func keyTerms(features clause.Features) []string {
	if len(features.KeyTerms) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, term := range features.KeyTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}

const fallbackQuestion = "Does this clause adequately protect the reviewing party's interests while maintaining commercial viability?"

// investigatoryQuestions keyed by the first matching tag in this order.
var investigatoryQuestions = []struct {
	tag      clause.Tag
	question string
}{
	{clause.TagFIN, "Are the payment terms clearly defined with adequate protection against non-payment?"},
	{clause.TagLEG, "Do the legal protections adequately safeguard the reviewing party's interests and limit liability exposure?"},
	{clause.TagTEC, "Are the technical requirements and deliverables specific enough to prevent scope disputes?"},
	{clause.TagIPX, "Does the reviewing party retain appropriate intellectual property rights and protections?"},
	{clause.TagTRM, "Are the termination conditions balanced and do they provide adequate exit protection?"},
	{clause.TagCOM, "Do the compliance requirements align with applicable regulations and industry standards?"},
}

func investigatoryQuestion(tags []clause.Tag) string {
	for _, entry := range investigatoryQuestions {
		if clause.HasTag(tags, entry.tag) {
			return entry.question
		}
	}
	return fallbackQuestion
}

func containsAny(text string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
