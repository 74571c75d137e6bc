package clause

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the ingestion payload handed to a review session: the
// extracted clause sequence plus any NLP feature bundles keyed by clause ID.
type Document struct {
	Title    string           `json:"title,omitempty" yaml:"title,omitempty"`
	Clauses  []Clause         `json:"clauses" yaml:"clauses"`
	Features map[int]Features `json:"features,omitempty" yaml:"features,omitempty"`
}

// LoadDocument reads an extracted-contract file. JSON is the interchange
// format produced by the extraction collaborators; YAML is accepted for
// hand-written fixtures.
func LoadDocument(path string) (*Document, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clause: read document %s: %w", path, err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(payload, &doc)
	default:
		err = json.Unmarshal(payload, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("clause: parse document %s: %w", path, err)
	}

	if err := ValidateSequence(doc.Clauses); err != nil {
		return nil, fmt.Errorf("clause: document %s: %w", path, err)
	}
	for id := range doc.Features {
		if !hasClause(doc.Clauses, id) {
			return nil, fmt.Errorf("clause: document %s: features reference unknown clause %d", path, id)
		}
	}
	return &doc, nil
}

func hasClause(clauses []Clause, id int) bool {
	for _, cl := range clauses {
		if cl.ID == id {
			return true
		}
	}
	return false
}
