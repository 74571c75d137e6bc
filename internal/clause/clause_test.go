package clause

import (
	"strings"
	"testing"
)

func TestValidateSequence(t *testing.T) {
	cases := []struct {
		name    string
		clauses []Clause
		wantErr bool
	}{
		{"empty document", nil, true},
		{"valid increasing ids", []Clause{{ID: 1, Text: "a"}, {ID: 3, Text: "b"}, {ID: 7, Text: "c"}}, false},
		{"duplicate id", []Clause{{ID: 1, Text: "a"}, {ID: 1, Text: "b"}}, true},
		{"decreasing id", []Clause{{ID: 2, Text: "a"}, {ID: 1, Text: "b"}}, true},
		{"non-positive id", []Clause{{ID: 0, Text: "a"}}, true},
		// Empty text is a recoverable pipeline condition, not an
		// ingestion failure.
		{"empty text allowed", []Clause{{ID: 1, Text: ""}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSequence(tc.clauses)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateSequence = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestTokenCountIsDeterministic(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("word ", 222))
	want := 222 + len(text)/4
	if got := TokenCount(text); got != want {
		t.Fatalf("TokenCount = %d, want %d", got, want)
	}
	if TokenCount(text) != TokenCount(text) {
		t.Fatal("identical text produced different counts")
	}
	if TokenCount("") != 0 {
		t.Fatalf("TokenCount(empty) = %d, want 0", TokenCount(""))
	}
}

func TestParseTag(t *testing.T) {
	allowed := CanonicalTags()
	tag, err := ParseTag(" fin ", allowed)
	if err != nil || tag != TagFIN {
		t.Fatalf("ParseTag = %v, %v", tag, err)
	}
	if _, err := ParseTag("XYZ", allowed); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}
