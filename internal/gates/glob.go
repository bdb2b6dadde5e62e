package gates

import (
	"path/filepath"
	"strings"
)

// Match reports whether name (a repo-relative, forward-slash path) matches
// pattern. Patterns are split into '/'-separated segments and matched
// segment-by-segment with path/filepath.Match semantics (so '*', '?', and
// '[...]' behave as usual within a segment), except that a literal '**'
// segment matches zero or more whole path segments, letting
// affects_globs/must_not_touch entries like "internal/**/generated/*.go"
// span arbitrary directory depth. No third-party glob package in the
// corpus implements this recursive-segment form, so it is hand-rolled
// here rather than reusing path/filepath.Match directly.
func Match(pattern, name string) bool {
	return matchSegments(splitSegments(pattern), splitSegments(name))
}

func splitSegments(s string) []string {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

func matchSegments(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}

	head := pattern[0]
	if head == "**" {
		if matchSegments(pattern[1:], name) {
			return true
		}
		if len(name) == 0 {
			return false
		}
		return matchSegments(pattern, name[1:])
	}

	if len(name) == 0 {
		return false
	}
	ok, err := filepath.Match(head, name[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], name[1:])
}
