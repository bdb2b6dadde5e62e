// Package task parses and serializes task files: a structured YAML header
// delimited by `---` lines followed by an opaque markdown body. Unknown
// header keys round-trip unchanged; known fields get typed accessors and
// mutators.
package task

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Priority is one of the three levels a task header may declare.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// priorityRank orders priorities for claim selection: high > medium
// > low > unset.
func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Rank exposes priorityRank for callers outside the package (claim
// selection in internal/transition).
func Rank(p Priority) int { return priorityRank(p) }

// idPattern matches TASK-<NNN> with at least 3 digits, case-normalized
// uppercase by the caller before matching.
var idPattern = regexp.MustCompile(`^TASK-\d{3,}$`)

// ValidID reports whether id matches the canonical TASK-<NNN> form.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Fields is the typed projection of the header's known keys.
type Fields struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Priority Priority `yaml:"priority"`
	Created  time.Time `yaml:"created"`
	Tags     []string `yaml:"tags,omitempty"`

	AssignedTo string `yaml:"assigned_to,omitempty"`
	QAAttempts int    `yaml:"qa_attempts"`

	StartedAt   *time.Time `yaml:"started_at,omitempty"`
	SubmittedAt *time.Time `yaml:"submitted_at,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`

	Branch   string `yaml:"branch,omitempty"`
	Worktree string `yaml:"worktree,omitempty"`
	BaseSHA  string `yaml:"base_sha,omitempty"`

	Affects       []string `yaml:"affects,omitempty"`
	AffectsGlobs  []string `yaml:"affects_globs,omitempty"`
	MustNotTouch  []string `yaml:"must_not_touch,omitempty"`

	DependsOn []string `yaml:"depends_on,omitempty"`
}

// Task is a parsed task file: typed+raw header plus an opaque body.
type Task struct {
	Fields *Fields
	Body   []byte

	root       *yaml.Node
	lineEnding string
}

const delimiter = "---"

// ErrNoHeader is returned by Parse when data does not begin with a `---`
// fenced header block.
var ErrNoHeader = fmt.Errorf("task file does not start with a %q header block", delimiter)

// Parse reads a task file's bytes into a Task. It supports both CRLF and
// LF line endings and records which family was detected so Serialize can
// write the same family back.
func Parse(data []byte) (*Task, error) {
	lineEnding := "\n"
	if bytes.Contains(data, []byte("\r\n")) {
		lineEnding = "\r\n"
	}
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	lines := strings.Split(string(normalized), "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t") != delimiter {
		return nil, ErrNoHeader
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t") == delimiter {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return nil, fmt.Errorf("task file header is not closed with a %q line", delimiter)
	}

	headerText := strings.Join(lines[1:closeIdx], "\n")
	body := strings.Join(lines[closeIdx+1:], "\n")

	var root yaml.Node
	if strings.TrimSpace(headerText) == "" {
		root = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	} else if err := yaml.Unmarshal([]byte(headerText), &root); err != nil {
		return nil, fmt.Errorf("parsing header YAML: %w", err)
	} else if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			root = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		} else {
			root = *root.Content[0]
		}
	}

	fields := &Fields{}
	if strings.TrimSpace(headerText) != "" {
		if err := yaml.Unmarshal([]byte(headerText), fields); err != nil {
			return nil, fmt.Errorf("parsing known header fields: %w", err)
		}
	}

	return &Task{
		Fields:     fields,
		Body:       []byte(body),
		root:       &root,
		lineEnding: lineEnding,
	}, nil
}

// Serialize renders the task back to bytes: `---`, the header (known
// fields synced onto the original parse tree so unknown keys survive),
// `---`, then the body verbatim. Line endings match what Parse detected
// (defaulting to LF for a Task constructed fresh via New).
func (t *Task) Serialize() ([]byte, error) {
	if t.root == nil {
		t.root = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	if err := syncFields(t.root, t.Fields); err != nil {
		return nil, fmt.Errorf("syncing header fields: %w", err)
	}

	headerBytes, err := yaml.Marshal(t.root)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}
	headerText := strings.TrimRight(string(headerBytes), "\n")

	var buf bytes.Buffer
	buf.WriteString(delimiter)
	buf.WriteString("\n")
	if headerText != "" {
		buf.WriteString(headerText)
		buf.WriteString("\n")
	}
	buf.WriteString(delimiter)
	buf.WriteString("\n")
	buf.Write(t.Body)

	out := buf.Bytes()
	if t.lineEnding == "\r\n" {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	return out, nil
}

// New creates a fresh Task with the given known fields and an empty body.
// Used by the Task Index / `add` path when creating a task in READY.
func New(fields *Fields) *Task {
	return &Task{
		Fields:     fields,
		Body:       []byte(""),
		root:       &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"},
		lineEnding: "\n",
	}
}
