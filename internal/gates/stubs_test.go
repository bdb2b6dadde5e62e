package gates

import (
	"regexp"
	"testing"

	"github.com/burl-dev/burl/internal/diffengine"
)

func TestCheckStubsMatchesOnlyAllowedExtensions(t *testing.T) {
	patterns := []*regexp.Regexp{regexp.MustCompile(`(?i)\bTODO\b`)}
	lines := []diffengine.AddedLine{
		{File: "internal/frob.go", NewLine: 3, Content: "// TODO: finish this"},
		{File: "README.md", NewLine: 1, Content: "TODO section"},
		{File: "internal/frob.go", NewLine: 4, Content: "return nil"},
	}

	violations := CheckStubs(patterns, []string{"go"}, lines)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", violations)
	}
	if violations[0].File != "internal/frob.go" || violations[0].Line != 3 {
		t.Errorf("unexpected violation: %+v", violations[0])
	}
	if violations[0].Matched != "TODO" {
		t.Errorf("Matched = %q", violations[0].Matched)
	}
}

func TestCheckStubsNoMatchesReturnsNoViolations(t *testing.T) {
	patterns := []*regexp.Regexp{regexp.MustCompile(`unimplemented!\(\)`)}
	lines := []diffengine.AddedLine{{File: "internal/frob.go", NewLine: 1, Content: "func Frob() {}"}}

	violations := CheckStubs(patterns, []string{"go"}, lines)
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %+v", violations)
	}
}
