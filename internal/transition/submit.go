package transition

import (
	"fmt"
	"strings"

	"github.com/burl-dev/burl/internal/diffengine"
	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/gates"
	"github.com/burl-dev/burl/internal/gitrun"
	"github.com/burl-dev/burl/internal/lockmgr"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/taskindex"
)

// SubmitResult reports the outcome of a successful submit.
type SubmitResult struct {
	TaskID string
}

// Submit runs the submit transition (DOING -> QA).
func (e *Engine) Submit(id string) (*SubmitResult, error) {
	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}
	entry, ok := idx.Resolve(id)
	if !ok {
		return nil, userErrorf("task %s not found", id)
	}
	if entry.Bucket != taskindex.Doing {
		return nil, userErrorf("task %s is in %s, not DOING", id, entry.Bucket)
	}

	guard, err := lockmgr.Acquire(e.Ctx.LocksDir, entry.ID, e.Actor, "submit")
	if err != nil {
		return nil, err
	}
	defer func() { _ = guard.Release() }()

	t, err := loadTask(entry)
	if err != nil {
		return nil, err
	}
	if err := e.checkGitPreconditions(t.Fields); err != nil {
		return nil, err
	}

	taskRunner := gitrun.New(t.Fields.Worktree)
	violations, err := e.runScopeAndStubGates(taskRunner, t.Fields)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		detail := strings.Join(violations, "\n")
		if recErr := e.recordGateFailure(entry, t, "submit", detail); recErr != nil {
			return nil, recErr
		}
		return nil, &ValidationFailure{Msg: fmt.Sprintf("submit gates failed for %s:\n%s", entry.ID, detail)}
	}

	if e.Config.PushTaskBranchOnSubmit {
		if err := taskRunner.Push(e.Config.Remote, t.Fields.Branch); err != nil {
			return nil, fmt.Errorf("pushing task branch %s: %w", t.Fields.Branch, err)
		}
	}

	if err := e.requireClean(); err != nil {
		return nil, err
	}

	err = e.withWorkflowLock("submit", func() error {
		t.Submit(e.Now())
		if err := writeTask(t, entry.Path); err != nil {
			return err
		}
		if _, err := e.moveTaskFile(entry, taskindex.QA); err != nil {
			return fmt.Errorf("%w (repair recommended: task header updated but bucket move failed)", err)
		}
		if err := e.appendEvent(eventlog.ActionSubmit, entry.ID, nil); err != nil {
			return fmt.Errorf("appending submit event: %w", err)
		}
		return e.commitWorkflowBranch(fmt.Sprintf("burl: submit %s", entry.ID))
	})
	if err != nil {
		return nil, err
	}

	return &SubmitResult{TaskID: entry.ID}, nil
}

// checkGitPreconditions verifies the recorded worktree/branch/base_sha
// are consistent and that the task branch carries at least one commit
// over its base, shared by submit and validate.
func (e *Engine) checkGitPreconditions(fields *task.Fields) error {
	if fields.Worktree == "" {
		return userErrorf("task has no recorded worktree")
	}
	if fields.BaseSHA == "" {
		return userErrorf("task has no recorded base_sha")
	}
	taskRunner := gitrun.New(fields.Worktree)
	current, err := taskRunner.CurrentBranch()
	if err != nil {
		return fmt.Errorf("reading current branch in %s: %w", fields.Worktree, err)
	}
	if current != fields.Branch {
		return userErrorf("worktree %s is on branch %q, expected recorded branch %q", fields.Worktree, current, fields.Branch)
	}
	count, err := taskRunner.CommitCount(fields.BaseSHA, "HEAD")
	if err != nil {
		return fmt.Errorf("counting commits since base_sha: %w", err)
	}
	if count == 0 {
		return userErrorf("no commits in base_sha..HEAD; nothing to submit")
	}
	return nil
}

// runScopeAndStubGates diffs the task's branch against its base_sha and
// returns human-readable violation descriptions (empty when both gates
// pass).
func (e *Engine) runScopeAndStubGates(taskRunner *gitrun.Runner, fields *task.Fields) ([]string, error) {
	changed, err := diffengine.ChangedFiles(taskRunner, fields.BaseSHA)
	if err != nil {
		return nil, fmt.Errorf("listing changed files: %w", err)
	}
	added, err := diffengine.AddedLines(taskRunner, fields.BaseSHA)
	if err != nil {
		return nil, fmt.Errorf("parsing added lines: %w", err)
	}

	var violations []string
	for _, v := range gates.CheckScope(fields.Affects, fields.AffectsGlobs, fields.MustNotTouch, changed) {
		violations = append(violations, fmt.Sprintf("scope: %s: %s", v.File, v.Reason))
	}
	for _, v := range gates.CheckStubs(e.Config.CompiledStubPatterns(), e.Config.StubCheckExtensions, added) {
		violations = append(violations, fmt.Sprintf("stub: %s:%d matched %q (pattern %s)", v.File, v.Line, v.Matched, v.Pattern))
	}
	return violations, nil
}

// recordGateFailure appends the failure detail to the task's QA Report
// and an event, without moving the task out of its current bucket — the
// only state mutation a failed gate run is permitted to make.
func (e *Engine) recordGateFailure(entry taskindex.Entry, t *task.Task, action string, detail string) error {
	return e.withWorkflowLock(action+"-fail", func() error {
		t.AppendQAReportEntry(e.Now(), e.Actor, fmt.Sprintf("%s failed:\n%s", action, detail))
		if err := writeTask(t, entry.Path); err != nil {
			return err
		}
		if err := e.appendEvent(eventlog.Action(action), entry.ID, map[string]any{"result": "fail", "detail": detail}); err != nil {
			return fmt.Errorf("appending %s-failure event: %w", action, err)
		}
		return e.commitWorkflowBranch(fmt.Sprintf("burl: %s %s (failed)", action, entry.ID))
	})
}
