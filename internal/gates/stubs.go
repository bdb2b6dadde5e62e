package gates

import (
	"regexp"
	"strings"

	"github.com/burl-dev/burl/internal/diffengine"
)

// StubViolation describes one added line matching a stub pattern.
type StubViolation struct {
	File    string
	Line    int
	Pattern string
	Matched string
}

// CheckStubs scans addedLines for matches against patterns, restricted to
// files whose extension (without a leading dot, case-insensitively) is in
// allowedExtensions.
func CheckStubs(patterns []*regexp.Regexp, allowedExtensions []string, addedLines []diffengine.AddedLine) []StubViolation {
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	var violations []StubViolation
	for _, line := range addedLines {
		if _, ok := allowed[extensionOf(line.File)]; !ok {
			continue
		}
		for _, re := range patterns {
			if m := re.FindString(line.Content); m != "" {
				violations = append(violations, StubViolation{
					File:    line.File,
					Line:    line.NewLine,
					Pattern: re.String(),
					Matched: m,
				})
			}
		}
	}
	return violations
}

func extensionOf(file string) string {
	idx := strings.LastIndexByte(file, '.')
	if idx == -1 || idx == len(file)-1 {
		return ""
	}
	return strings.ToLower(file[idx+1:])
}
