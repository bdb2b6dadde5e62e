// Package burlctx resolves the canonical workflow paths from any working
// directory inside a git repository.
package burlctx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/burl-dev/burl/internal/gitrun"
)

// ErrNoWorkflow is returned by Resolve when the workflow worktree has not
// been initialized. Callers other than `init` must surface this as a user
// error recommending `burl init`.
var ErrNoWorkflow = errors.New("workflow not initialized; run `burl init`")

// Context carries the canonical paths used by every command.
type Context struct {
	// RepoRoot is the toplevel of the git repository the command was
	// invoked from.
	RepoRoot string

	// WorkflowWorktree is <repo_root>/.burl, a dedicated git worktree
	// checked out to the workflow branch.
	WorkflowWorktree string

	// WorkflowStateDir is <workflow_worktree>/.workflow.
	WorkflowStateDir string

	// LocksDir is <workflow_state_dir>/locks.
	LocksDir string

	// EventsPath is <workflow_state_dir>/events/events.ndjson.
	EventsPath string

	// WorktreesRoot is <repo_root>/.worktrees, the parent of per-task
	// worktrees.
	WorktreesRoot string

	// ConfigPath is <workflow_state_dir>/config.yaml.
	ConfigPath string
}

const (
	workflowWorktreeName = ".burl"
	workflowStateDirName = ".workflow"
	worktreesRootName    = ".worktrees"
)

// Resolve locates the repo root from dir (or the process cwd if dir is
// empty) and derives the canonical paths. requireWorkflow is false only
// for `init`; for every other command a missing workflow state directory
// is an error.
func Resolve(dir string, requireWorkflow bool) (*Context, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		dir = cwd
	}

	root, err := gitrun.New(dir).RevParseToplevel()
	if err != nil {
		return nil, fmt.Errorf("resolving repository root from %s: %w", dir, err)
	}

	ctx := paths(root)

	if requireWorkflow {
		info, err := os.Stat(ctx.WorkflowStateDir)
		if err != nil || !info.IsDir() {
			return nil, ErrNoWorkflow
		}
	}

	return ctx, nil
}

// paths derives the fixed V1 layout from repoRoot. Configured
// workflow_branch/workflow_worktree values are accepted for forward
// compatibility (see internal/config) but never relocate this layout.
func paths(repoRoot string) *Context {
	workflowWorktree := filepath.Join(repoRoot, workflowWorktreeName)
	stateDir := filepath.Join(workflowWorktree, workflowStateDirName)
	return &Context{
		RepoRoot:         repoRoot,
		WorkflowWorktree: workflowWorktree,
		WorkflowStateDir: stateDir,
		LocksDir:         filepath.Join(stateDir, "locks"),
		EventsPath:       filepath.Join(stateDir, "events", "events.ndjson"),
		WorktreesRoot:    filepath.Join(repoRoot, worktreesRootName),
		ConfigPath:       filepath.Join(stateDir, "config.yaml"),
	}
}

// BucketDir returns the absolute path of a bucket directory.
func (c *Context) BucketDir(bucket string) string {
	return filepath.Join(c.WorkflowStateDir, bucket)
}

// TaskWorktreePath returns the canonical worktree path for a task branch
// name, e.g. <repo_root>/.worktrees/task-001-fix-foo.
func (c *Context) TaskWorktreePath(branchName string) string {
	return filepath.Join(c.WorktreesRoot, branchName)
}

// WorktreeLockPath returns the path used to serialize concurrent
// `git worktree` mutations (internal/gitrun.Runner.WithWorktreeLock).
func (c *Context) WorktreeLockPath() string {
	return filepath.Join(c.RepoRoot, ".git", "gt-worktree.flock")
}
