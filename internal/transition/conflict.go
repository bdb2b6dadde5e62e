package transition

import (
	"path"
	"strings"

	"github.com/burl-dev/burl/internal/gates"
	"github.com/burl-dev/burl/internal/task"
)

// overlaps reports whether two tasks' declared scope overlaps: any exact
// affects path coincides, any affects_globs pattern is textually
// identical, any explicit affects path of one matches the other's
// affects_globs, or one pattern's fixed (non-wildcard) directory prefix
// is an ancestor of the other's.
func overlaps(a, b *task.Fields) bool {
	for _, p := range a.Affects {
		for _, q := range b.Affects {
			if clean(p) == clean(q) {
				return true
			}
		}
	}
	for _, gp := range a.AffectsGlobs {
		for _, gq := range b.AffectsGlobs {
			if gp == gq {
				return true
			}
			if globPrefixOverlap(gp, gq) {
				return true
			}
		}
	}
	for _, p := range a.Affects {
		for _, g := range b.AffectsGlobs {
			if gates.Match(g, clean(p)) {
				return true
			}
		}
	}
	for _, p := range b.Affects {
		for _, g := range a.AffectsGlobs {
			if gates.Match(g, clean(p)) {
				return true
			}
		}
	}
	return false
}

func clean(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// globPrefixOverlap reports whether two glob patterns' fixed (literal,
// no-wildcard) leading directory segments are in an ancestor relation,
// meaning one pattern's scope is necessarily contained in or overlapping
// the other's regardless of how their wildcard suffixes resolve.
func globPrefixOverlap(a, b string) bool {
	pa := fixedPrefixSegments(a)
	pb := fixedPrefixSegments(b)
	n := len(pa)
	if len(pb) < n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		if pa[i] != pb[i] {
			return false
		}
	}
	return true
}

func fixedPrefixSegments(pattern string) []string {
	segs := strings.Split(strings.Trim(clean(pattern), "/"), "/")
	var out []string
	for _, s := range segs {
		if strings.ContainsAny(s, "*?[") {
			break
		}
		out = append(out, s)
	}
	return out
}
