package transition

import (
	"fmt"
	"regexp"

	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/taskindex"
	"github.com/burl-dev/burl/internal/worktree"
)

// CleanedWorktree reports one worktree clean touched or would touch.
type CleanedWorktree struct {
	Branch  string
	Path    string
	Reason  string
	Removed bool
}

// CleanResult reports the outcome of a clean run.
type CleanResult struct {
	Worktrees []CleanedWorktree
}

var taskBranchPattern = regexp.MustCompile(`^task-(\d{3,})-[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// Clean removes task worktrees/branches whose task is DONE or no longer
// exists in the index at all (the same kind of leftover a crash right
// after approve's merge but before its cleanup step would produce).
// In-flight tasks (DOING/QA/READY-with-recorded-state/BLOCKED) are never
// touched. Without force, Clean only reports what it would do.
func (e *Engine) Clean(force bool) (*CleanResult, error) {
	idx, err := e.buildIndex()
	if err != nil {
		return nil, err
	}

	worktrees, err := e.main.WorktreeList()
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}

	wtMgr := worktree.New(e.Ctx.RepoRoot, e.Ctx.WorktreesRoot, e.Ctx.WorktreeLockPath())

	result := &CleanResult{}
	for _, wt := range worktrees {
		m := taskBranchPattern.FindStringSubmatch(wt.Branch)
		if m == nil {
			continue
		}
		taskID := taskindex.FormatID(atoiOrZero(m[1]))
		entry, found := idx.Resolve(taskID)
		var reason string
		switch {
		case !found:
			reason = "branch has no corresponding task file in any bucket"
		case entry.Bucket == taskindex.Done:
			reason = "task is DONE"
		default:
			continue // in-flight task, never touched
		}

		cw := CleanedWorktree{Branch: wt.Branch, Path: wt.Path, Reason: reason}
		if force {
			if err := wtMgr.RemoveTaskWorktree(wt.Path); err != nil {
				cw.Reason += fmt.Sprintf("; removal failed: %v", err)
			} else if err := wtMgr.DeleteBranch(wt.Branch); err != nil {
				cw.Reason += fmt.Sprintf("; worktree removed but branch deletion failed: %v", err)
			} else {
				cw.Removed = true
			}
		}
		result.Worktrees = append(result.Worktrees, cw)
	}

	if !force || len(result.Worktrees) == 0 {
		return result, nil
	}

	if err := e.requireClean(); err != nil {
		return nil, err
	}
	err = e.withWorkflowLock("clean", func() error {
		details := map[string]any{}
		for _, cw := range result.Worktrees {
			details[cw.Branch] = map[string]any{"removed": cw.Removed, "reason": cw.Reason}
		}
		if err := e.appendEvent(eventlog.ActionClean, "", details); err != nil {
			return fmt.Errorf("appending clean event: %w", err)
		}
		return e.commitWorkflowBranch("burl: clean")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
