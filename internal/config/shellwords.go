package config

import (
	"fmt"
	"strings"
)

// SplitShellWords splits s into argv following POSIX-ish shell word rules:
// whitespace separates words, single and double quotes group a word
// (without performing any other shell expansion), and a backslash escapes
// the next character outside single quotes. No shell is invoked — this is
// purely a tokenizer so build_command and validation_profiles commands can
// be exec'd directly via os/exec with an argv array.
//
// No example in this project's dependency corpus ships a shell-word
// tokenizer (google/shlex, mvdan.cc/sh, etc. do not appear in any retrieved
// go.sum), so this is hand-rolled rather than grounded on a third-party
// library.
func SplitShellWords(s string) ([]string, error) {
	var words []string
	var current strings.Builder
	hasCurrent := false

	runes := []rune(s)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			if hasCurrent {
				words = append(words, current.String())
				current.Reset()
				hasCurrent = false
			}
			i++
		case c == '\'':
			hasCurrent = true
			i++
			start := i
			for i < len(runes) && runes[i] != '\'' {
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("unterminated single quote in %q", s)
			}
			current.WriteString(string(runes[start:i]))
			i++
		case c == '"':
			hasCurrent = true
			i++
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\') {
					current.WriteRune(runes[i+1])
					i += 2
					continue
				}
				current.WriteRune(runes[i])
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("unterminated double quote in %q", s)
			}
			i++
		case c == '\\':
			hasCurrent = true
			if i+1 < len(runes) {
				current.WriteRune(runes[i+1])
				i += 2
			} else {
				return nil, fmt.Errorf("trailing backslash in %q", s)
			}
		default:
			hasCurrent = true
			current.WriteRune(c)
			i++
		}
	}
	if hasCurrent {
		words = append(words, current.String())
	}
	return words, nil
}
