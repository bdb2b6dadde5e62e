package transition

import (
	"fmt"
	"sort"

	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/lockmgr"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/taskindex"
	"github.com/burl-dev/burl/internal/worktree"
)

// ClaimResult reports the outcome of a successful claim.
type ClaimResult struct {
	TaskID           string
	Branch        string
	Worktree      string
	BaseSHA       string
	BranchCreated bool
	Warnings      []string
}

// candidate pairs a READY index entry with its parsed fields, used during
// ID-less selection.
type candidate struct {
	entry  taskindex.Entry
	fields *task.Fields
}

// Claim runs the claim transition. id may be empty, in which case the
// highest-priority, lowest-numbered READY task with satisfied
// dependencies is selected.
func (e *Engine) Claim(id string) (*ClaimResult, error) {
	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}

	if id != "" {
		return e.claimByID(idx, id)
	}
	return e.claimAuto(idx)
}

func (e *Engine) claimByID(idx *taskindex.Index, id string) (*ClaimResult, error) {
	entry, ok := idx.Resolve(id)
	if !ok {
		return nil, userErrorf("task %s not found", id)
	}
	if entry.Bucket != taskindex.Ready {
		return nil, userErrorf("task %s is in %s, not READY", id, entry.Bucket)
	}
	t, err := loadTask(entry)
	if err != nil {
		return nil, err
	}
	if unmet := e.unmetDependencies(idx, t.Fields); len(unmet) > 0 {
		return nil, userErrorf("task %s has unmet dependencies: %v", id, unmet)
	}

	guard, err := lockmgr.Acquire(e.Ctx.LocksDir, entry.ID, e.Actor, "claim")
	if err != nil {
		return nil, err
	}
	defer func() { _ = guard.Release() }()

	return e.completeClaim(idx, entry, t)
}

func (e *Engine) claimAuto(idx *taskindex.Index) (*ClaimResult, error) {
	var candidates []candidate
	for _, entry := range idx.ListBucket(taskindex.Ready) {
		t, err := loadTask(entry)
		if err != nil {
			return nil, err
		}
		if len(e.unmetDependencies(idx, t.Fields)) > 0 {
			continue
		}
		candidates = append(candidates, candidate{entry: entry, fields: t.Fields})
	}
	if len(candidates) == 0 {
		return nil, userErrorf("no READY task has all dependencies satisfied")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := task.Rank(candidates[i].fields.Priority), task.Rank(candidates[j].fields.Priority)
		if ri != rj {
			return ri > rj
		}
		return candidates[i].entry.Number < candidates[j].entry.Number
	})

	var claimLock *lockmgr.Guard
	if e.Config.UseGlobalClaimLock {
		guard, err := lockmgr.Acquire(e.Ctx.LocksDir, "claim", e.Actor, "claim")
		if err != nil {
			return nil, err
		}
		claimLock = guard
		defer func() { _ = claimLock.Release() }()
	}

	var lastErr error
	for _, c := range candidates {
		guard, err := lockmgr.Acquire(e.Ctx.LocksDir, c.entry.ID, e.Actor, "claim")
		if err != nil {
			if _, held := err.(*lockmgr.HeldError); held {
				lastErr = err
				continue
			}
			return nil, err
		}
		defer func() { _ = guard.Release() }()

		t, err := loadTask(c.entry)
		if err != nil {
			return nil, err
		}
		return e.completeClaim(idx, c.entry, t)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, userErrorf("no READY task is currently claimable")
}

func (e *Engine) unmetDependencies(idx *taskindex.Index, fields *task.Fields) []string {
	var unmet []string
	for _, dep := range fields.DependsOn {
		entry, ok := idx.Resolve(dep)
		if !ok || entry.Bucket != taskindex.Done {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

// completeClaim runs the conflict check, git mutations, and the
// workflow-state mutation phase once the caller holds the per-task lock
// for entry.
func (e *Engine) completeClaim(idx *taskindex.Index, entry taskindex.Entry, t *task.Task) (*ClaimResult, error) {
	warnings, err := e.checkClaimConflicts(idx, entry.ID, t.Fields)
	if err != nil {
		return nil, err
	}

	if err := e.main.Fetch(e.Config.Remote, e.Config.MainBranch); err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", e.Config.Remote, e.Config.MainBranch, err)
	}
	baseSHA, err := e.main.RevParse(e.Config.Remote + "/" + e.Config.MainBranch)
	if err != nil {
		return nil, fmt.Errorf("resolving %s/%s: %w", e.Config.Remote, e.Config.MainBranch, err)
	}

	branchName := worktree.BranchName(entry.Number, entry.Slug)
	wtMgr := worktree.New(e.Ctx.RepoRoot, e.Ctx.WorktreesRoot, e.Ctx.WorktreeLockPath())

	// Reuse already-recorded git state verbatim rather than re-deriving
	// it, per the re-claim rule: base_sha is never silently changed.
	effectiveBase := baseSHA
	reclaiming := t.Fields.Branch != "" || t.Fields.Worktree != "" || t.Fields.BaseSHA != ""
	if reclaiming {
		if t.Fields.Branch == "" || t.Fields.Worktree == "" || t.Fields.BaseSHA == "" {
			return nil, userErrorf("task %s has partially recorded git state; run `burl doctor --repair`", entry.ID)
		}
		branchName = t.Fields.Branch
		effectiveBase = t.Fields.BaseSHA
	}

	branchCreated, err := wtMgr.EnsureTaskBranch(branchName, effectiveBase)
	if err != nil {
		return nil, fmt.Errorf("ensuring task branch %s: %w", branchName, err)
	}

	worktreePath := wtMgr.TaskWorktreePath(branchName)
	if err := wtMgr.EnsureTaskWorktree(worktreePath, branchName); err != nil {
		if branchCreated {
			_ = wtMgr.DeleteBranch(branchName)
		}
		return nil, fmt.Errorf("ensuring task worktree at %s: %w", worktreePath, err)
	}

	if err := e.requireClean(); err != nil {
		return nil, err
	}

	result := &ClaimResult{
		TaskID:        entry.ID,
		Branch:        branchName,
		Worktree:      worktreePath,
		BaseSHA:       effectiveBase,
		BranchCreated: branchCreated,
		Warnings:      warnings,
	}

	err = e.withWorkflowLock("claim", func() error {
		if err := t.Claim(e.Actor, branchName, worktreePath, effectiveBase, e.Now()); err != nil {
			return userErrorf("claiming %s: %v", entry.ID, err)
		}
		if err := writeTask(t, entry.Path); err != nil {
			return err
		}
		if _, err := e.moveTaskFile(entry, taskindex.Doing); err != nil {
			return fmt.Errorf("%w (repair recommended: task header updated but bucket move failed)", err)
		}
		if err := e.appendEvent(eventlog.ActionClaim, entry.ID, map[string]any{
			"branch":   branchName,
			"worktree": worktreePath,
			"base_sha": effectiveBase,
		}); err != nil {
			return fmt.Errorf("appending claim event: %w", err)
		}
		return e.commitWorkflowBranch(fmt.Sprintf("burl: claim %s", entry.ID))
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (e *Engine) checkClaimConflicts(idx *taskindex.Index, claimingID string, fields *task.Fields) ([]string, error) {
	if e.Config.ConflictPolicy == config.ConflictIgnore {
		return nil, nil
	}

	var warnings []string
	for _, entry := range idx.ListBucket(taskindex.Doing) {
		if entry.ID == claimingID {
			continue
		}
		t, err := loadTask(entry)
		if err != nil {
			return nil, err
		}
		if overlaps(fields, t.Fields) {
			msg := fmt.Sprintf("scope overlaps with in-flight task %s", entry.ID)
			if e.Config.ConflictPolicy == config.ConflictFail {
				return nil, userErrorf("claiming %s: %s", claimingID, msg)
			}
			warnings = append(warnings, msg)
		}
	}
	return warnings, nil
}
