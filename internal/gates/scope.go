// Package gates implements the validation checks run by the `validate`
// transition: scope enforcement against a task's declared affects/
// must_not_touch lists, stub-pattern detection over added lines, and
// execution of an optional build command or named validation profile.
package gates

import (
	"fmt"
	"path"
	"strings"
)

// ScopeViolation describes one changed file that fails scope enforcement.
type ScopeViolation struct {
	File   string
	Reason string
}

// CheckScope enforces that every changed file is covered by affects or
// affectsGlobs, and that none is matched by mustNotTouch. must_not_touch
// is checked first: a file matching both must_not_touch and affects_globs
// is still a violation.
func CheckScope(affects, affectsGlobs, mustNotTouch, changedFiles []string) []ScopeViolation {
	var violations []ScopeViolation

	for _, file := range changedFiles {
		clean := path.Clean(toSlash(file))

		if m, ok := matchAny(mustNotTouch, clean); ok {
			violations = append(violations, ScopeViolation{
				File:   file,
				Reason: fmt.Sprintf("matches must_not_touch pattern %q", m),
			})
			continue
		}

		if containsExact(affects, clean) {
			continue
		}
		if m, ok := matchAny(affectsGlobs, clean); ok {
			_ = m
			continue
		}

		violations = append(violations, ScopeViolation{
			File:   file,
			Reason: "not listed in affects and not matched by any affects_globs pattern",
		})
	}

	return violations
}

func containsExact(list []string, file string) bool {
	for _, entry := range list {
		if path.Clean(toSlash(entry)) == file {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, file string) (string, bool) {
	for _, p := range patterns {
		if Match(p, file) {
			return p, true
		}
	}
	return "", false
}

func toSlash(s string) string {
	return strings.ReplaceAll(s, `\`, "/")
}
