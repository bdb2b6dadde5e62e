package worktree

import (
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-b", "main"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test User"},
		{"commit", "--allow-empty", "-m", "initial"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	return dir
}

func TestBranchNameAndEnsureTaskBranch(t *testing.T) {
	repo := initRepo(t)
	worktreesRoot := filepath.Join(repo, ".worktrees")
	m := New(repo, worktreesRoot, filepath.Join(repo, ".git", "gt-worktree.flock"))

	sha, err := m.Main.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}

	name := BranchName(1, "fix-foo")
	if name != "task-001-fix-foo" {
		t.Fatalf("BranchName = %q", name)
	}

	created, err := m.EnsureTaskBranch(name, sha)
	if err != nil {
		t.Fatalf("EnsureTaskBranch (create): %v", err)
	}
	if !created {
		t.Errorf("expected created=true on first EnsureTaskBranch")
	}
	// Idempotent: calling again with the same base should not error.
	created, err = m.EnsureTaskBranch(name, sha)
	if err != nil {
		t.Fatalf("EnsureTaskBranch (reuse): %v", err)
	}
	if created {
		t.Errorf("expected created=false on reuse")
	}
}

func TestEnsureTaskWorktreeCreateAndReuse(t *testing.T) {
	repo := initRepo(t)
	worktreesRoot := filepath.Join(repo, ".worktrees")
	m := New(repo, worktreesRoot, filepath.Join(repo, ".git", "gt-worktree.flock"))

	sha, err := m.Main.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}
	name := BranchName(1, "fix-foo")
	if _, err := m.EnsureTaskBranch(name, sha); err != nil {
		t.Fatalf("EnsureTaskBranch: %v", err)
	}

	path := m.TaskWorktreePath(name)
	if err := m.EnsureTaskWorktree(path, name); err != nil {
		t.Fatalf("EnsureTaskWorktree (create): %v", err)
	}
	if err := m.EnsureTaskWorktree(path, name); err != nil {
		t.Fatalf("EnsureTaskWorktree (reuse): %v", err)
	}

	if err := m.RemoveTaskWorktree(path); err != nil {
		t.Fatalf("RemoveTaskWorktree: %v", err)
	}
	if err := m.DeleteBranch(name); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
}

func TestEnsureTaskWorktreeMismatchFails(t *testing.T) {
	repo := initRepo(t)
	worktreesRoot := filepath.Join(repo, ".worktrees")
	m := New(repo, worktreesRoot, filepath.Join(repo, ".git", "gt-worktree.flock"))

	sha, err := m.Main.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}
	nameA := BranchName(1, "fix-foo")
	nameB := BranchName(2, "fix-bar")
	if _, err := m.EnsureTaskBranch(nameA, sha); err != nil {
		t.Fatal(err)
	}
	if _, err := m.EnsureTaskBranch(nameB, sha); err != nil {
		t.Fatal(err)
	}

	path := m.TaskWorktreePath(nameA)
	if err := m.EnsureTaskWorktree(path, nameA); err != nil {
		t.Fatalf("EnsureTaskWorktree: %v", err)
	}

	if err := m.EnsureTaskWorktree(path, nameB); err == nil {
		t.Fatalf("expected mismatch error reusing path for a different branch")
	}
}
