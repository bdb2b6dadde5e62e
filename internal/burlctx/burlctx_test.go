package burlctx

import (
	"os"
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
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	return dir
}

func TestResolveWithoutWorkflowFails(t *testing.T) {
	dir := initRepo(t)
	if _, err := Resolve(dir, true); err != ErrNoWorkflow {
		t.Fatalf("expected ErrNoWorkflow, got %v", err)
	}
}

func TestResolveDerivesCanonicalPaths(t *testing.T) {
	dir := initRepo(t)
	ctx, err := Resolve(dir, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ctx.WorkflowWorktree != filepath.Join(dir, ".burl") {
		t.Fatalf("unexpected workflow worktree: %s", ctx.WorkflowWorktree)
	}
	if ctx.WorkflowStateDir != filepath.Join(dir, ".burl", ".workflow") {
		t.Fatalf("unexpected state dir: %s", ctx.WorkflowStateDir)
	}
	if ctx.LocksDir != filepath.Join(dir, ".burl", ".workflow", "locks") {
		t.Fatalf("unexpected locks dir: %s", ctx.LocksDir)
	}
}

func TestResolveFromSubdirectory(t *testing.T) {
	dir := initRepo(t)
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	ctx, err := Resolve(sub, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ctx.RepoRoot != dir {
		// macOS temp dirs can be symlinked (/tmp -> /private/tmp); compare
		// real paths to avoid false failures.
		realDir, _ := filepath.EvalSymlinks(dir)
		realRoot, _ := filepath.EvalSymlinks(ctx.RepoRoot)
		if realRoot != realDir {
			t.Fatalf("got repo root %s, want %s", ctx.RepoRoot, dir)
		}
	}
}

func TestResolveSucceedsOnceInitialized(t *testing.T) {
	dir := initRepo(t)
	ctx, err := Resolve(dir, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := os.MkdirAll(ctx.WorkflowStateDir, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(dir, true); err != nil {
		t.Fatalf("Resolve after init: %v", err)
	}
}
