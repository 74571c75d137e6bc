package clause

import (
	"fmt"
	"strings"
)

// Tag is one of the fixed category codes classifying a clause's subject
// matter. The canonical set has ten members; deployments may override the
// set through configuration, so Tag itself is just a normalized string.
type Tag string

const (
	TagTEC Tag = "TEC" // technical requirements, deliverables, SLAs
	TagLEG Tag = "LEG" // legal obligations and protections
	TagFIN Tag = "FIN" // financial terms and payment obligations
	TagCOM Tag = "COM" // compliance and regulatory
	TagIPX Tag = "IPX" // intellectual property
	TagTRM Tag = "TRM" // termination and breach
	TagDIS Tag = "DIS" // dispute resolution
	TagDOC Tag = "DOC" // document control; also the catch-all fallback
	TagEXE Tag = "EXE" // execution and signature formalities
	TagEXT Tag = "EXT" // external and third-party dependencies
)

// CanonicalTags returns the default ten-tag set in presentation order.
func CanonicalTags() []Tag {
	return []Tag{TagTEC, TagLEG, TagFIN, TagCOM, TagIPX, TagTRM, TagDIS, TagDOC, TagEXE, TagEXT}
}

// ParseTag normalizes a raw tag value against an allowed set.
func ParseTag(raw string, allowed []Tag) (Tag, error) {
	candidate := Tag(strings.ToUpper(strings.TrimSpace(raw)))
	if candidate == "" {
		return "", fmt.Errorf("clause: tag is empty")
	}
	for _, tag := range allowed {
		if tag == candidate {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("clause: unknown tag %q", raw)
}

// HasTag reports membership in a tag slice.
func HasTag(tags []Tag, want Tag) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
