package transition

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/burl-dev/burl/internal/atomicfs"
	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/gitrun"
	"github.com/burl-dev/burl/internal/lockmgr"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/taskindex"
)

// Engine holds everything a transition needs: the resolved workflow
// paths, loaded+validated config, the actor name stamped into events, and
// a Now function so tests can fix the clock.
type Engine struct {
	Ctx    *burlctx.Context
	Config *config.Config
	Actor  string
	Now    func() time.Time

	main *gitrun.Runner
}

// New builds an Engine from a resolved context and loaded config.
func New(ctx *burlctx.Context, cfg *config.Config, actor string) *Engine {
	return &Engine{
		Ctx:    ctx,
		Config: cfg,
		Actor:  actor,
		Now:    func() time.Time { return time.Now().UTC() },
		main:   gitrun.New(ctx.RepoRoot).WithWorktreeLock(ctx.WorktreeLockPath()),
	}
}

// MainRunner is the gitrun.Runner rooted at the repository's main working
// tree (used for worktree/branch administration and main-branch merges).
func (e *Engine) MainRunner() *gitrun.Runner {
	return e.main
}

// workflowRunner is rooted at the workflow worktree (.burl), used to
// check cleanliness and commit workflow state.
func (e *Engine) workflowRunner() *gitrun.Runner {
	return gitrun.New(e.Ctx.WorkflowWorktree)
}

// buildIndex snapshots the current bucket placement of every task.
func (e *Engine) buildIndex() (*taskindex.Index, error) {
	idx, err := taskindex.Build(e.Ctx.WorkflowStateDir)
	if err != nil {
		return nil, userErrorf("scanning workflow state: %v", err)
	}
	return idx, nil
}

// loadTask reads and parses a task file at entry.Path.
func loadTask(entry taskindex.Entry) (*task.Task, error) {
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, userErrorf("reading task file %s: %v", entry.Path, err)
	}
	t, err := task.Parse(data)
	if err != nil {
		return nil, userErrorf("parsing task file %s: %v", entry.Path, err)
	}
	return t, nil
}

// requireClean enforces the clean-workflow-worktree precondition: this
// MUST run before acquiring workflow.lock to avoid deadlocking a stuck
// holder against an operator trying to inspect the worktree.
func (e *Engine) requireClean() error {
	st, err := e.workflowRunner().StatusPorcelain(false)
	if err != nil {
		return fmt.Errorf("checking workflow worktree status: %w", err)
	}
	if !st.Clean {
		return userErrorf("workflow worktree %s is not clean; commit, stash, or revert before continuing", e.Ctx.WorkflowWorktree)
	}
	return nil
}

// withWorkflowLock acquires workflow.lock, runs fn, and always releases —
// even when fn returns an error — surfacing a Release failure only if fn
// itself succeeded.
func (e *Engine) withWorkflowLock(action string, fn func() error) error {
	guard, err := lockmgr.Acquire(e.Ctx.LocksDir, "workflow", e.Actor, action)
	if err != nil {
		return err
	}
	err = fn()
	if relErr := guard.Release(); relErr != nil && err == nil {
		return fmt.Errorf("releasing workflow lock: %w", relErr)
	}
	return err
}

// moveTaskFile atomically renames a task file between bucket directories.
func (e *Engine) moveTaskFile(entry taskindex.Entry, to taskindex.Bucket) (string, error) {
	dstDir := e.Ctx.BucketDir(string(to))
	dst := filepath.Join(dstDir, filepath.Base(entry.Path))
	result, err := atomicfs.Rename(entry.Path, dst)
	if err != nil {
		return dst, fmt.Errorf("moving %s to %s bucket: %w", entry.ID, to, err)
	}
	if result.Degraded {
		return dst, nil
	}
	return dst, nil
}

// writeTask serializes t and atomically writes it back to path.
func writeTask(t *task.Task, path string) error {
	data, err := t.Serialize()
	if err != nil {
		return fmt.Errorf("serializing task: %w", err)
	}
	return atomicfs.WriteFile(path, data, 0644)
}

// commitWorkflowBranch stages and commits every change in the workflow
// worktree, then pushes when configured. An empty commit is permitted so
// callers that already wrote the same bytes (e.g. init re-run) don't
// error.
func (e *Engine) commitWorkflowBranch(message string) error {
	if !e.Config.WorkflowAutoCommit {
		return nil
	}
	wf := e.workflowRunner()
	if err := wf.AddAll(); err != nil {
		return fmt.Errorf("staging workflow worktree changes: %w", err)
	}
	if err := wf.Commit(message, true); err != nil {
		return fmt.Errorf("committing workflow branch: %w", err)
	}
	if e.Config.WorkflowAutoPush {
		if err := wf.Push(e.Config.Remote, e.Config.WorkflowBranch); err != nil {
			return fmt.Errorf("pushing workflow branch: %w", err)
		}
	}
	return nil
}

// appendEvent appends one event to the workflow event log.
func (e *Engine) appendEvent(action eventlog.Action, taskID string, details map[string]any) error {
	return eventlog.Append(e.Ctx.EventsPath, eventlog.Event{
		Ts:      e.Now(),
		Action:  action,
		Actor:   e.Actor,
		Task:    taskID,
		Details: details,
	})
}
