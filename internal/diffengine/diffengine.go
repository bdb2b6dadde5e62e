// Package diffengine parses `git diff` output to extract the changed-file
// list and added-line records used by the validation gates.
package diffengine

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/burl-dev/burl/internal/gitrun"
)

// AddedLine is one newly-added line from a unified diff, with its
// resulting new-file line number.
type AddedLine struct {
	File    string
	NewLine int
	Content string
}

// ChangedFiles returns repo-relative forward-slash paths changed between
// base and HEAD, via `git diff --name-only <base>..HEAD`.
func ChangedFiles(r *gitrun.Runner, base string) ([]string, error) {
	lines, err := r.DiffNameOnly(base)
	if err != nil {
		return nil, fmt.Errorf("listing changed files against %s: %w", base, err)
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, filepath.ToSlash(l))
	}
	return out, nil
}

// AddedLines returns every added-line record between base and HEAD, via
// `git diff -U0 <base>..HEAD`.
func AddedLines(r *gitrun.Runner, base string) ([]AddedLine, error) {
	raw, err := r.DiffUnifiedZero(base)
	if err != nil {
		return nil, fmt.Errorf("diffing against %s: %w", base, err)
	}
	return ParseAddedLines(raw)
}

var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParseAddedLines parses raw unified-diff text (as produced by
// `git diff -U0`) into AddedLine records, tracking per-file new-line
// counters across hunk headers of the form `@@ -a,b +c,d @@`. Diff
// metadata lines (diff --git, index, ---/+++ file headers, mode changes)
// are never themselves treated as added lines.
func ParseAddedLines(diffText string) ([]AddedLine, error) {
	var (
		added       []AddedLine
		currentFile string
		newLineNum  int
		inHunk      bool
	)

	lines := strings.Split(diffText, "\n")
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			inHunk = false
			currentFile = ""

		case strings.HasPrefix(line, "rename to "):
			currentFile = strings.TrimPrefix(line, "rename to ")

		case strings.HasPrefix(line, "+++ "):
			path := strings.TrimPrefix(line, "+++ ")
			if path == "/dev/null" {
				currentFile = ""
			} else {
				currentFile = strings.TrimPrefix(trimDiffTimestamp(path), "b/")
			}
			inHunk = false

		case strings.HasPrefix(line, "--- "):
			// Old-side header; only relevant to confirm a file section
			// started. The new-side path from "+++" is authoritative for
			// added-line attribution.
			inHunk = false

		case strings.HasPrefix(line, "@@ "):
			m := hunkHeaderPattern.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("unparseable hunk header: %q", line)
			}
			newStart, err := strconv.Atoi(m[3])
			if err != nil {
				return nil, fmt.Errorf("parsing hunk new-start in %q: %w", line, err)
			}
			newLineNum = newStart
			inHunk = true

		case strings.HasPrefix(line, "\\ "):
			// "\ No newline at end of file" — not a content line.

		case inHunk && strings.HasPrefix(line, "+"):
			if currentFile == "" {
				return nil, fmt.Errorf("added line with no resolved file: %q", line)
			}
			added = append(added, AddedLine{
				File:    currentFile,
				NewLine: newLineNum,
				Content: strings.TrimPrefix(line, "+"),
			})
			newLineNum++

		case inHunk && strings.HasPrefix(line, "-"):
			// Old-side removal; does not advance the new-line counter.

		case inHunk && line == "":
			// A blank context line inside a hunk would advance both
			// counters, but -U0 output never emits context lines.
			newLineNum++
		}
	}

	return added, nil
}

// trimDiffTimestamp strips a trailing "\t<timestamp>" that some git
// configurations append to +++ /--- lines.
func trimDiffTimestamp(s string) string {
	if idx := strings.IndexByte(s, '\t'); idx != -1 {
		return s[:idx]
	}
	return s
}
