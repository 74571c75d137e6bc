// internal/clause/clause.go
//
// Shared data model for extracted contract clauses and the NLP feature
// bundles supplied by the external extraction collaborators. Everything in
// this package is plain data; the analysis pipeline never mutates a Clause
// after it enters a session.

package clause

import (
	"fmt"
	"strings"
)

// Span marks the byte range a clause occupies in the source document.
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Clause is one discrete numbered or lettered provision extracted from a
// contract. Instances are immutable once extracted.
type Clause struct {
	// ID is a stable sequence number assigned by the ingestion collaborator.
	// IDs are unique and monotonically increasing within one document.
	ID    int    `json:"id" yaml:"id"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Text  string `json:"text" yaml:"text"`
	Span  Span   `json:"span,omitempty" yaml:"span,omitempty"`
}

// Obligation is a duty detected by the external NLP collaborator.
type Obligation struct {
	Party  string `json:"party,omitempty" yaml:"party,omitempty"`
	Action string `json:"action" yaml:"action"`
}

// TemporalRef is a date or deadline reference detected by the external NLP
// collaborator.
type TemporalRef struct {
	Value   string `json:"value" yaml:"value"`
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Features bundles the per-clause output of the external NLP collaborator.
// The pipeline treats the contents as opaque beyond presence checks; a
// missing bundle degrades analysis quality, never correctness.
type Features struct {
	KeyTerms     []string      `json:"key_terms,omitempty" yaml:"key_terms,omitempty"`
	Obligations  []Obligation  `json:"obligations,omitempty" yaml:"obligations,omitempty"`
	TemporalRefs []TemporalRef `json:"temporal_refs,omitempty" yaml:"temporal_refs,omitempty"`
}

// Empty reports whether the bundle carries no extracted features at all.
func (f Features) Empty() bool {
	return len(f.KeyTerms) == 0 && len(f.Obligations) == 0 && len(f.TemporalRefs) == 0
}

// ValidateSequence checks the ingestion contract for a clause sequence:
// IDs must be unique and monotonically increasing. Empty text is NOT
// rejected here; it is a recoverable condition handled inside the pipeline.
func ValidateSequence(clauses []Clause) error {
	if len(clauses) == 0 {
		return fmt.Errorf("clause: document contains no clauses")
	}
	last := 0
	for i, cl := range clauses {
		if cl.ID <= 0 {
			return fmt.Errorf("clause: clauses[%d] has non-positive id %d", i, cl.ID)
		}
		if i > 0 && cl.ID <= last {
			return fmt.Errorf("clause: clauses[%d] id %d does not increase past %d", i, cl.ID, last)
		}
		last = cl.ID
	}
	return nil
}

// TokenCount is the deterministic tokenization used for checkpoint
// accounting: whitespace-separated words plus one token per four bytes.
// It is intentionally crude; the only requirement is that identical text
// always yields the identical count.
func TokenCount(text string) int {
	return len(strings.Fields(text)) + len(text)/4
}
