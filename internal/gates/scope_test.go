package gates

import "testing"

func TestCheckScopeMustNotTouchWinsOverAffectsGlobs(t *testing.T) {
	affects := []string{}
	affectsGlobs := []string{"internal/**/*.go"}
	mustNotTouch := []string{"internal/secrets/*.go"}
	changed := []string{"internal/secrets/keys.go"}

	violations := CheckScope(affects, affectsGlobs, mustNotTouch, changed)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", violations)
	}
	if violations[0].File != "internal/secrets/keys.go" {
		t.Errorf("unexpected violation file: %+v", violations[0])
	}
}

func TestCheckScopeRequiresAffectsOrGlobCoverage(t *testing.T) {
	affects := []string{"internal/frob/frob.go"}
	affectsGlobs := []string{"internal/bar/**/*.go"}
	var mustNotTouch []string

	changed := []string{
		"internal/frob/frob.go",
		"internal/bar/baz/qux.go",
		"internal/unrelated/file.go",
	}

	violations := CheckScope(affects, affectsGlobs, mustNotTouch, changed)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %+v", violations)
	}
	if violations[0].File != "internal/unrelated/file.go" {
		t.Errorf("unexpected violation: %+v", violations[0])
	}
}

func TestMatchDoubleStarSpansDirectories(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"internal/**/*.go", "internal/a/b/c.go", true},
		{"internal/**/*.go", "internal/c.go", true},
		{"internal/*/*.go", "internal/a/c.go", true},
		{"internal/*/*.go", "internal/a/b/c.go", false},
		{"**/*.go", "a/b/c.go", true},
		{"**/*.go", "c.go", true},
	}
	for _, tc := range cases {
		got := Match(tc.pattern, tc.name)
		if got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.pattern, tc.name, got, tc.want)
		}
	}
}
