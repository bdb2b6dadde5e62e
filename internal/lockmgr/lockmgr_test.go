package lockmgr

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	guard, err := Acquire(dir, "TASK-001", "alice", "claim")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := Acquire(dir, "TASK-001", "bob", "claim"); err == nil {
		t.Fatalf("expected second acquire of same name to fail")
	} else {
		var held *HeldError
		if !errors.As(err, &held) {
			t.Fatalf("expected *HeldError, got %T: %v", err, err)
		}
		if held.Existing.Owner != "alice" {
			t.Fatalf("existing owner = %q, want alice", held.Existing.Owner)
		}
	}

	if err := guard.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// Now it should be acquirable again.
	guard2, err := Acquire(dir, "TASK-001", "bob", "claim")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = guard2.Release()
}

func TestListReportsStaleness(t *testing.T) {
	dir := t.TempDir()
	guard, err := Acquire(dir, "workflow", "alice", "submit")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer guard.Release()

	locks, err := List(dir, 30)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locks) != 1 {
		t.Fatalf("expected 1 lock, got %d", len(locks))
	}
	if locks[0].Stale {
		t.Fatalf("freshly created lock should not be stale")
	}

	locks, err = List(dir, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !locks[0].Stale {
		t.Fatalf("expected lock to be stale with 0-minute threshold")
	}
}

func TestClearRemovesNamedLock(t *testing.T) {
	dir := t.TempDir()
	if _, err := Acquire(dir, "claim", "alice", "claim"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	meta, err := Clear(dir, "claim")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if meta.Owner != "alice" {
		t.Fatalf("cleared lock owner = %q, want alice", meta.Owner)
	}

	if _, err := Clear(dir, "claim"); err == nil {
		t.Fatalf("expected error clearing an already-cleared lock")
	}

	if _, err := Acquire(dir, "claim", "bob", "claim"); err != nil {
		t.Fatalf("should be able to reacquire after clear: %v", err)
	}
}

func TestAcquireCreatesLocksDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "locks")
	guard, err := Acquire(dir, "workflow", "alice", "init")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer guard.Release()

	locks, err := List(dir, 30)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locks) != 1 {
		t.Fatalf("expected 1 lock after creating nested dir, got %d", len(locks))
	}
}

func TestAgeReflectsElapsedTime(t *testing.T) {
	dir := t.TempDir()
	guard, err := Acquire(dir, "workflow", "alice", "claim")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer guard.Release()

	time.Sleep(5 * time.Millisecond)
	locks, err := List(dir, 30)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if locks[0].Age <= 0 {
		t.Fatalf("expected positive age, got %v", locks[0].Age)
	}
}
