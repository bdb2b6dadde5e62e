// Package worktree creates, reuses, and removes per-task Git worktrees and
// branches, and resolves base revisions against a remote.
package worktree

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/burl-dev/burl/internal/gitrun"
)

// ErrBranchDiverged is returned by EnsureTaskBranch when a pre-existing
// branch's history does not descend from the expected base revision.
var ErrBranchDiverged = errors.New("existing task branch does not descend from the expected base revision")

// ErrWorktreeMismatch is returned by EnsureTaskWorktree when a pre-existing
// path is registered to a different branch than expected.
var ErrWorktreeMismatch = errors.New("existing worktree path is registered to a different branch")

// BranchName renders the canonical branch name task-<NNN>-<slug>.
func BranchName(number int, slug string) string {
	return fmt.Sprintf("task-%03d-%s", number, slug)
}

// Manager operates git worktree/branch commands from the repository's main
// working tree.
type Manager struct {
	Main          *gitrun.Runner
	WorktreesRoot string
}

// New returns a Manager rooted at repoRoot, serializing worktree mutations
// through the shared flock at worktreeLockPath.
func New(repoRoot, worktreesRoot, worktreeLockPath string) *Manager {
	return &Manager{
		Main:          gitrun.New(repoRoot).WithWorktreeLock(worktreeLockPath),
		WorktreesRoot: worktreesRoot,
	}
}

// Fetch runs `git fetch <remote> <mainBranch>`.
func (m *Manager) Fetch(remote, mainBranch string) error {
	return m.Main.Fetch(remote, mainBranch)
}

// ResolveBaseSHA returns the SHA of <remote>/<mainBranch> after a Fetch.
func (m *Manager) ResolveBaseSHA(remote, mainBranch string) (string, error) {
	return m.Main.RevParse(remote + "/" + mainBranch)
}

// EnsureTaskBranch creates branch at baseSHA if absent (created=true), or
// validates that baseSHA is an ancestor of an existing branch's current
// tip (created=false): a reused branch is expected to carry commits on
// top of its recorded base, and must never have been rebased onto
// something else without the task's base_sha being updated to match.
func (m *Manager) EnsureTaskBranch(name, baseSHA string) (bool, error) {
	exists, err := m.Main.BranchExists(name)
	if err != nil {
		return false, fmt.Errorf("checking branch %s: %w", name, err)
	}
	if !exists {
		if err := m.Main.CreateBranchAt(name, baseSHA); err != nil {
			return false, err
		}
		return true, nil
	}

	ok, err := m.Main.IsAncestor(baseSHA, name)
	if err != nil {
		return false, fmt.Errorf("checking ancestry of %s on branch %s: %w", baseSHA, name, err)
	}
	if !ok {
		return false, fmt.Errorf("%w: base %s is not an ancestor of %s", ErrBranchDiverged, baseSHA, name)
	}
	return false, nil
}

// EnsureTaskWorktree creates a worktree at path for branch if absent, or
// validates that an existing path is registered for that branch.
func (m *Manager) EnsureTaskWorktree(path, branch string) error {
	worktrees, err := m.Main.WorktreeList()
	if err != nil {
		return fmt.Errorf("listing worktrees: %w", err)
	}
	for _, wt := range worktrees {
		if samePath(wt.Path, path) {
			if wt.Branch != branch {
				return fmt.Errorf("%w: %s is registered to %s, expected %s", ErrWorktreeMismatch, path, wt.Branch, branch)
			}
			return nil
		}
	}
	return m.Main.WorktreeAdd(path, branch)
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// RemoveTaskWorktree removes a task worktree. Callers on the approve
// cleanup path treat failures as non-fatal and record them in the
// event's details instead of aborting the transaction.
func (m *Manager) RemoveTaskWorktree(path string) error {
	return m.Main.WorktreeRemove(path, false)
}

// RemoveTaskWorktreeForce removes a task worktree even if it has
// uncommitted changes or is otherwise locked by git. Only `doctor
// --repair --force` emits this; it is never reached from a transition.
func (m *Manager) RemoveTaskWorktreeForce(path string) error {
	return m.Main.WorktreeRemove(path, true)
}

// DeleteBranch deletes a task branch (non-forced).
func (m *Manager) DeleteBranch(name string) error {
	return m.Main.DeleteBranch(name, false)
}

// TaskWorktreePath returns <worktrees_root>/<branch>.
func (m *Manager) TaskWorktreePath(branch string) string {
	return filepath.Join(m.WorktreesRoot, branch)
}
