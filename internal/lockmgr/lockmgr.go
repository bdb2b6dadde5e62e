// Package lockmgr implements the exclusive-create named locks described in
// `workflow`, `claim`, and per-task `TASK-NNN` locks. Locks are
// machine-local and never committed to the workflow branch.
package lockmgr

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Metadata is the body written into a lock file.
type Metadata struct {
	// LockID disambiguates lock instances across process restarts that
	// happen to reuse the same PID.
	LockID    string    `json:"lock_id"`
	Owner     string    `json:"owner"`
	PID       int       `json:"pid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Action    string    `json:"action"`
}

// HeldError is returned by Acquire when the named lock is already held.
// It carries the existing lock's metadata so the caller can report owner
// and age so callers can name the violating artifact and suggest remediation.
type HeldError struct {
	Name     string
	Path     string
	Existing Metadata
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("lock %q held by %s (pid %d) since %s", e.Name, e.Existing.Owner, e.Existing.PID, e.Existing.CreatedAt.Format(time.RFC3339))
}

// Guard is an RAII-style handle on a held lock. Release deletes the lock
// file; callers must always defer Release() after a successful Acquire.
type Guard struct {
	path string
}

// Release deletes the lock file. Deletion failures are returned to the
// caller to log, never panicking — a lock guard's job is to release on
// every exit path, including error propagation, not to guarantee the
// delete succeeds.
func (g *Guard) Release() error {
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock %s: %w", g.path, err)
	}
	return nil
}

// Acquire attempts an exclusive-create of <locksDir>/<name>.lock. On
// collision it returns *HeldError wrapping the existing holder's metadata.
func Acquire(locksDir, name, owner, action string) (*Guard, error) {
	if err := os.MkdirAll(locksDir, 0755); err != nil {
		return nil, fmt.Errorf("creating locks directory %s: %w", locksDir, err)
	}
	path := filepath.Join(locksDir, name+".lock")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			existing, readErr := readMetadata(path)
			if readErr != nil {
				return nil, &HeldError{Name: name, Path: path, Existing: Metadata{Owner: "unknown"}}
			}
			return nil, &HeldError{Name: name, Path: path, Existing: *existing}
		}
		return nil, fmt.Errorf("creating lock file %s: %w", path, err)
	}

	meta := Metadata{
		LockID:    uuid.New().String(),
		Owner:     owner,
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC(),
		Action:    action,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("encoding lock metadata: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing lock metadata to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("closing lock file %s: %w", path, err)
	}

	return &Guard{path: path}, nil
}

func readMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Lock is one entry reported by List: a named lock file plus its age and
// staleness relative to staleMinutes.
type Lock struct {
	Name     string
	Path     string
	Metadata Metadata
	Age      time.Duration
	Stale    bool
}

// List enumerates every *.lock file under locksDir, including
// "workflow.lock", "claim.lock", and per-task locks.
func List(locksDir string, staleMinutes int) ([]Lock, error) {
	entries, err := os.ReadDir(locksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading locks directory %s: %w", locksDir, err)
	}

	now := time.Now().UTC()
	var locks []Lock
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		const suffix = ".lock"
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		path := filepath.Join(locksDir, name)
		meta, err := readMetadata(path)
		if err != nil {
			// A lock file that can't be parsed is still reported, with a
			// zero-value metadata, so `doctor`/`lock list` surface it
			// rather than silently skipping it.
			meta = &Metadata{Owner: "unknown"}
		}
		age := now.Sub(meta.CreatedAt)
		locks = append(locks, Lock{
			Name:     name[:len(name)-len(suffix)],
			Path:     path,
			Metadata: *meta,
			Age:      age,
			Stale:    age > time.Duration(staleMinutes)*time.Minute,
		})
	}
	return locks, nil
}

// Clear removes the named lock file unconditionally. Staleness is never
// auto-cleared — this is only ever invoked by the explicit
// `lock clear <name> --force` command.
func Clear(locksDir, name string) (*Metadata, error) {
	path := filepath.Join(locksDir, name+".lock")
	meta, readErr := readMetadata(path)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("lock %q not found at %s", name, path)
		}
		return nil, fmt.Errorf("removing lock file %s: %w", path, err)
	}
	if readErr != nil {
		return &Metadata{Owner: "unknown"}, nil
	}
	return meta, nil
}
