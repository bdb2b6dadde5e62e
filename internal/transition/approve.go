package transition

import (
	"fmt"

	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/gitrun"
	"github.com/burl-dev/burl/internal/lockmgr"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/taskindex"
	"github.com/burl-dev/burl/internal/worktree"
)

// ApproveResult reports the outcome of an approve attempt. Rejected is
// set (alongside TaskID, with WorktreeRemoved/BranchDeleted left false)
// when a merge-strategy step fails in a way the spec maps to
// reject-semantics rather than an aborted transition.
type ApproveResult struct {
	TaskID          string
	Rejected        *RejectResult
	WorktreeRemoved bool
	BranchDeleted   bool
}

// Approve runs the approve transition (QA -> DONE).
func (e *Engine) Approve(id string) (*ApproveResult, error) {
	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}
	entry, ok := idx.Resolve(id)
	if !ok {
		return nil, userErrorf("task %s not found", id)
	}
	if entry.Bucket != taskindex.QA {
		return nil, userErrorf("task %s is in %s, not QA", id, entry.Bucket)
	}

	guard, err := lockmgr.Acquire(e.Ctx.LocksDir, entry.ID, e.Actor, "approve")
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

	switch e.Config.MergeStrategy {
	case config.MergeManual:
		return nil, userErrorf("merge_strategy=manual is not implemented in V1; merge %s by hand and run `burl doctor --repair`", t.Fields.Branch)
	case config.MergeRebaseFFOnly:
		return e.approveRebaseFFOnly(entry, t)
	case config.MergeFFOnly:
		return e.approveFFOnly(entry, t)
	default:
		return nil, userErrorf("unknown merge_strategy %q", e.Config.MergeStrategy)
	}
}

func (e *Engine) approveRebaseFFOnly(entry taskindex.Entry, t *task.Task) (*ApproveResult, error) {
	if err := e.main.Fetch(e.Config.Remote, e.Config.MainBranch); err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", e.Config.Remote, e.Config.MainBranch, err)
	}
	remoteMain := e.Config.Remote + "/" + e.Config.MainBranch

	taskRunner := gitrun.New(t.Fields.Worktree)
	if err := taskRunner.RebaseOnto(remoteMain); err != nil {
		_ = taskRunner.AbortRebase()
		return e.rejectInstead(entry, t, "rebase conflict")
	}

	violations, err := e.runScopeAndStubGates(taskRunner, rebasedFields(t.Fields, remoteMain))
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		if recErr := e.recordGateFailure(entry, t, "approve", joinLines(violations)); recErr != nil {
			return nil, recErr
		}
		return e.rejectInstead(entry, t, "gate failure after rebase onto "+remoteMain)
	}

	if err := e.main.MergeFFOnly(t.Fields.Branch); err != nil {
		return e.rejectInstead(entry, t, "non-FF merge required")
	}

	return e.finishApprove(entry, t)
}

func (e *Engine) approveFFOnly(entry taskindex.Entry, t *task.Task) (*ApproveResult, error) {
	if err := e.main.Fetch(e.Config.Remote, e.Config.MainBranch); err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", e.Config.Remote, e.Config.MainBranch, err)
	}
	remoteMain := e.Config.Remote + "/" + e.Config.MainBranch

	ok, err := e.main.IsAncestor(remoteMain, t.Fields.Branch)
	if err != nil {
		return nil, fmt.Errorf("checking ancestry of %s on %s: %w", remoteMain, t.Fields.Branch, err)
	}
	if !ok {
		return e.rejectInstead(entry, t, "branch behind main; rebase required")
	}

	taskRunner := gitrun.New(t.Fields.Worktree)
	violations, err := e.runScopeAndStubGates(taskRunner, rebasedFields(t.Fields, remoteMain))
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		if recErr := e.recordGateFailure(entry, t, "approve", joinLines(violations)); recErr != nil {
			return nil, recErr
		}
		return e.rejectInstead(entry, t, "gate failure against "+remoteMain)
	}

	if err := e.main.FastForward(remoteMain); err != nil {
		return nil, fmt.Errorf("fast-forwarding local main to %s: %w", remoteMain, err)
	}
	if err := e.main.FastForward(t.Fields.Branch); err != nil {
		return e.rejectInstead(entry, t, "non-FF merge required")
	}

	return e.finishApprove(entry, t)
}

// rebasedFields returns a copy of fields with BaseSHA swapped to
// remoteMain, so gate re-validation diffs against the just-rebased-onto
// revision rather than the task's original recorded base_sha.
func rebasedFields(fields *task.Fields, remoteMain string) *task.Fields {
	clone := *fields
	clone.BaseSHA = remoteMain
	return &clone
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// rejectInstead runs the reject transition in place of completing
// approve, for the merge-strategy steps the spec maps to reject-semantics
// rather than an aborted-with-no-mutation approve.
func (e *Engine) rejectInstead(entry taskindex.Entry, t *task.Task, reason string) (*ApproveResult, error) {
	rejected, err := e.Reject(entry.ID, reason)
	if err != nil {
		return nil, err
	}
	return &ApproveResult{TaskID: entry.ID, Rejected: rejected}, nil
}

// finishApprove runs the best-effort cleanup and the workflow-state
// mutation phase after a successful merge. Long-running phases (rebase,
// external validation, merge) have already completed by the time this is
// called, so workflow.lock is only held for the bookkeeping below.
func (e *Engine) finishApprove(entry taskindex.Entry, t *task.Task) (*ApproveResult, error) {
	if e.Config.PushMainOnApprove {
		if err := e.main.Push(e.Config.Remote, e.Config.MainBranch); err != nil {
			return nil, fmt.Errorf("pushing %s: %w", e.Config.MainBranch, err)
		}
	}

	wtMgr := worktree.New(e.Ctx.RepoRoot, e.Ctx.WorktreesRoot, e.Ctx.WorktreeLockPath())
	worktreeRemoved := true
	cleanupDetails := map[string]any{}
	if err := wtMgr.RemoveTaskWorktree(t.Fields.Worktree); err != nil {
		worktreeRemoved = false
		cleanupDetails["worktree_cleanup_error"] = err.Error()
	}
	branchDeleted := true
	if err := wtMgr.DeleteBranch(t.Fields.Branch); err != nil {
		branchDeleted = false
		cleanupDetails["branch_cleanup_error"] = err.Error()
	}

	if err := e.requireClean(); err != nil {
		return nil, err
	}

	result := &ApproveResult{TaskID: entry.ID, WorktreeRemoved: worktreeRemoved, BranchDeleted: branchDeleted}

	err := e.withWorkflowLock("approve", func() error {
		t.Approve(e.Now())
		t.ClearGitState()
		if err := writeTask(t, entry.Path); err != nil {
			return err
		}
		if _, err := e.moveTaskFile(entry, taskindex.Done); err != nil {
			return fmt.Errorf("%w (repair recommended: task header updated but bucket move failed)", err)
		}
		if err := e.appendEvent(eventlog.ActionApprove, entry.ID, cleanupDetails); err != nil {
			return fmt.Errorf("appending approve event: %w", err)
		}
		return e.commitWorkflowBranch(fmt.Sprintf("burl: approve %s", entry.ID))
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
