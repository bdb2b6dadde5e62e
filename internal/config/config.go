// Package config parses, validates, and forward-compatibly round-trips
// workflow_state_dir/config.yaml.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MergeStrategy selects how `approve` reconciles a task branch with main.
type MergeStrategy string

const (
	MergeRebaseFFOnly MergeStrategy = "rebase_ff_only"
	MergeFFOnly       MergeStrategy = "ff_only"
	MergeManual       MergeStrategy = "manual"
)

// ConflictPolicy selects how `claim` reacts to scope overlap with an
// in-flight task.
type ConflictPolicy string

const (
	ConflictFail ConflictPolicy = "fail"
	ConflictWarn ConflictPolicy = "warn"
	ConflictIgnore ConflictPolicy = "ignore"
)

// ValidationStep is one step of a named validation_profile.
type ValidationStep struct {
	Name                  string   `yaml:"name"`
	Command               string   `yaml:"command"`
	RunIfChangedExtensions []string `yaml:"run_if_changed_extensions,omitempty"`
	RunIfChangedGlobs      []string `yaml:"run_if_changed_globs,omitempty"`
}

// Config is the typed projection of config.yaml.
type Config struct {
	MainBranch     string `yaml:"main_branch"`
	Remote         string `yaml:"remote"`

	WorkflowBranch   string `yaml:"workflow_branch"`
	WorkflowWorktree string `yaml:"workflow_worktree"`

	WorkflowAutoCommit bool `yaml:"workflow_auto_commit"`
	WorkflowAutoPush   bool `yaml:"workflow_auto_push"`

	MergeStrategy   MergeStrategy  `yaml:"merge_strategy"`
	ConflictPolicy  ConflictPolicy `yaml:"conflict_policy"`

	PushMainOnApprove        bool `yaml:"push_main_on_approve"`
	PushTaskBranchOnSubmit   bool `yaml:"push_task_branch_on_submit"`

	LockStaleMinutes   int  `yaml:"lock_stale_minutes"`
	UseGlobalClaimLock bool `yaml:"use_global_claim_lock"`

	QAMaxAttempts          int  `yaml:"qa_max_attempts"`
	AutoPriorityBoostOnRetry bool `yaml:"auto_priority_boost_on_retry"`

	BuildCommand      string                     `yaml:"build_command,omitempty"`
	ValidationProfile string                     `yaml:"validation_profile,omitempty"`
	ValidationProfiles map[string][]ValidationStep `yaml:"validation_profiles,omitempty"`

	StubPatterns        []string `yaml:"stub_patterns"`
	StubCheckExtensions []string `yaml:"stub_check_extensions"`

	// compiled holds the compiled form of StubPatterns after Validate().
	compiled []*regexp.Regexp
}

// Defaults returns a Config with the documented default values applied.
func Defaults() *Config {
	return &Config{
		MainBranch:             "main",
		Remote:                 "origin",
		WorkflowBranch:         "burl",
		WorkflowWorktree:       ".burl",
		WorkflowAutoCommit:     true,
		WorkflowAutoPush:       false,
		MergeStrategy:          MergeRebaseFFOnly,
		ConflictPolicy:         ConflictWarn,
		PushMainOnApprove:      false,
		PushTaskBranchOnSubmit: false,
		LockStaleMinutes:       30,
		UseGlobalClaimLock:     false,
		QAMaxAttempts:          3,
		AutoPriorityBoostOnRetry: false,
		StubPatterns: []string{
			`(?i)\bTODO\b`,
			`unimplemented!\(\)`,
			`\bnot\s+implemented\b`,
			`panic\("stub"\)`,
		},
		StubCheckExtensions: []string{"go", "ts", "tsx", "js", "py", "rs"},
	}
}

// Document is a loaded config.yaml: the typed Config plus the raw parse
// tree needed to round-trip unknown keys untouched.
type Document struct {
	Config *Config
	root   *yaml.Node
}

// Load reads config.yaml at path. If the file does not exist, it returns a
// Document wrapping Defaults() with no backing root node (Save will create
// the file fresh). Load never applies Validate(); callers must call
// doc.Config.Validate() explicitly so that load-then-inspect and
// load-then-mutate-then-validate are both supported.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Document{Config: Defaults()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &Document{Config: cfg, root: &root}, nil
}

// Validate checks that every configured field has a recognized value.
// Uncompilable stub regexes are a user error, not a validation-gate failure.
func (c *Config) Validate() error {
	switch c.MergeStrategy {
	case MergeRebaseFFOnly, MergeFFOnly, MergeManual:
	default:
		return fmt.Errorf("invalid merge_strategy %q: must be one of rebase_ff_only, ff_only, manual", c.MergeStrategy)
	}

	switch c.ConflictPolicy {
	case ConflictFail, ConflictWarn, ConflictIgnore:
	default:
		return fmt.Errorf("invalid conflict_policy %q: must be one of fail, warn, ignore", c.ConflictPolicy)
	}

	if c.LockStaleMinutes <= 0 {
		return fmt.Errorf("lock_stale_minutes must be > 0, got %d", c.LockStaleMinutes)
	}

	if c.QAMaxAttempts < 1 {
		return fmt.Errorf("qa_max_attempts must be >= 1, got %d", c.QAMaxAttempts)
	}

	if len(c.StubCheckExtensions) == 0 {
		return fmt.Errorf("stub_check_extensions must not be empty")
	}
	for _, ext := range c.StubCheckExtensions {
		if ext != strings.ToLower(ext) {
			return fmt.Errorf("stub_check_extensions entry %q must be lowercase", ext)
		}
		if strings.HasPrefix(ext, ".") {
			return fmt.Errorf("stub_check_extensions entry %q must not have a leading dot", ext)
		}
	}

	compiled := make([]*regexp.Regexp, 0, len(c.StubPatterns))
	for _, pattern := range c.StubPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("stub_patterns entry %q does not compile as a regular expression: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	c.compiled = compiled

	return nil
}

// CompiledStubPatterns returns the regexes compiled by the last successful
// Validate() call.
func (c *Config) CompiledStubPatterns() []*regexp.Regexp {
	return c.compiled
}

// ParseBuildCommand splits build_command using shell-word rules (quoted
// strings preserved, no shell invoked).
func (c *Config) ParseBuildCommand() ([]string, error) {
	if c.BuildCommand == "" {
		return nil, nil
	}
	return SplitShellWords(c.BuildCommand)
}

// Save writes the Document back to path. Known fields are synced onto the
// original parse tree (when one exists) so unknown keys and their
// surrounding structure are preserved untouched; a Document with no
// backing root (fresh config) is marshaled directly from Config.
func (d *Document) Save(path string) error {
	var out []byte
	var err error

	if d.root != nil {
		if err := syncKnownFields(d.root, d.Config); err != nil {
			return fmt.Errorf("syncing config fields: %w", err)
		}
		out, err = yaml.Marshal(d.root)
	} else {
		out, err = yaml.Marshal(d.Config)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return writeFile(path, out)
}
