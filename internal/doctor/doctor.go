// Package doctor scans the workflow state for the inconsistencies that
// can survive a crash mid-transaction — a degraded rename leaving a task
// in two buckets, a header whose recorded git state doesn't match what
// its bucket implies, a worktree nothing references anymore, a lock
// nobody is going to release — and optionally repairs the ones that are
// safe to fix without a human deciding which side of the inconsistency
// is authoritative.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/burl-dev/burl/internal/atomicfs"
	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/gitrun"
	"github.com/burl-dev/burl/internal/lockmgr"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/taskindex"
	"github.com/burl-dev/burl/internal/worktree"
)

// Severity classifies a Finding for display and for deciding whether
// --repair may act on it automatically.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Finding is one diagnosed problem. Repaired is set after a --repair run
// attempts (and succeeds at) fixing it; a Finding left unset was either
// not auto-repairable or --repair wasn't requested.
type Finding struct {
	Category string
	Severity Severity
	Subject  string
	Detail   string
	Repaired bool
}

// Report is the full result of a doctor run.
type Report struct {
	Findings []Finding
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Clean reports whether no findings were raised.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// Run scans the workflow rooted at ctx. When repair is true, findings
// that are safe to fix without an operator's judgment call are fixed in
// place and marked Repaired. force only affects orphaned-worktree repair:
// it retries a failed removal with `git worktree remove --force` for a
// worktree that has uncommitted changes or is otherwise locked by git.
func Run(ctx *burlctx.Context, cfg *config.Config, repair, force bool) (*Report, error) {
	report := &Report{}

	entriesByID, duplicates, err := scanBuckets(ctx.WorkflowStateDir)
	if err != nil {
		return nil, err
	}
	for id, dupDirs := range duplicates {
		report.add(Finding{
			Category: "duplicate-task",
			Severity: SeverityCritical,
			Subject:  id,
			Detail: fmt.Sprintf(
				"task file found in more than one bucket (%v); likely a degraded rename left"+
					" a stale copy behind. Compare the copies by hand and delete the stale one"+
					" before retrying the transition — doctor will not guess which is authoritative.",
				dupDirs),
		})
	}

	referencedWorktrees := map[string]bool{}
	for id, entry := range entriesByID {
		t, err := loadTask(entry.Path)
		if err != nil {
			report.add(Finding{
				Category: "unparseable-task",
				Severity: SeverityCritical,
				Subject:  id,
				Detail:   fmt.Sprintf("%s: %v", entry.Path, err),
			})
			continue
		}
		if checkHeaderConsistency(report, id, entry.Bucket, t.Fields, repair) {
			if err := writeRepairedTask(t, entry.Path); err != nil {
				return nil, fmt.Errorf("writing repaired task %s: %w", id, err)
			}
		}
		if t.Fields.Worktree != "" {
			referencedWorktrees[filepath.Clean(t.Fields.Worktree)] = true
		}
	}

	if err := checkOrphanedWorktrees(report, ctx, referencedWorktrees, repair, force); err != nil {
		return nil, err
	}

	if err := checkLocks(report, ctx, cfg); err != nil {
		return nil, err
	}

	return report, nil
}

// scanBuckets walks every bucket directory directly (rather than
// taskindex.Build, which errors hard on the first duplicate) so a doctor
// run can report every inconsistency in one pass instead of stopping at
// the first one.
func scanBuckets(stateDir string) (map[string]taskindex.Entry, map[string][]string, error) {
	byID := map[string]taskindex.Entry{}
	dupBuckets := map[string][]string{}

	for _, bucket := range taskindex.Buckets {
		dir := filepath.Join(stateDir, string(bucket))
		des, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, fmt.Errorf("reading bucket directory %s: %w", dir, err)
		}
		for _, de := range des {
			if de.IsDir() {
				continue
			}
			m := taskFilenamePattern.FindStringSubmatch(de.Name())
			if m == nil {
				continue
			}
			id := "TASK-" + m[1]
			entry := taskindex.Entry{ID: id, Bucket: bucket, Path: filepath.Join(dir, de.Name())}
			if existing, ok := byID[id]; ok {
				dupBuckets[id] = append(dupBuckets[id], string(existing.Bucket), string(bucket))
				continue
			}
			byID[id] = entry
		}
	}
	return byID, dupBuckets, nil
}

var taskFilenamePattern = regexp.MustCompile(`^TASK-(\d{3,})-[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.md$`)

func loadTask(path string) (*task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return task.Parse(data)
}

// checkHeaderConsistency validates the git-state fields a bucket implies,
// per the same rules the transitions themselves enforce: a task either
// carries a fully-recorded branch/worktree/base_sha or none of them, and
// DONE always has them cleared. It returns true when repair mutated
// fields in place, so the caller knows to persist it.
func checkHeaderConsistency(report *Report, id string, bucket taskindex.Bucket, fields *task.Fields, repair bool) bool {
	set := fields.Branch != "" || fields.Worktree != "" || fields.BaseSHA != ""
	allSet := fields.Branch != "" && fields.Worktree != "" && fields.BaseSHA != ""
	if set && !allSet {
		report.add(Finding{
			Category: "partial-git-state",
			Severity: SeverityCritical,
			Subject:  id,
			Detail:   "branch/worktree/base_sha are partially recorded; claim will refuse to reuse or overwrite this. Fill in or clear the missing field(s) by hand.",
		})
	}

	switch bucket {
	case taskindex.Done:
		if set {
			finding := Finding{
				Category: "uncleared-git-state",
				Severity: SeverityWarning,
				Subject:  id,
				Detail:   "task is DONE but still carries branch/worktree/base_sha; approve's cleanup normally clears these.",
			}
			repaired := false
			if repair {
				fields.Branch, fields.Worktree, fields.BaseSHA = "", "", ""
				finding.Repaired = true
				repaired = true
			}
			report.add(finding)
			return repaired
		}
	case taskindex.Doing, taskindex.QA:
		if !allSet {
			report.add(Finding{
				Category: "missing-git-state",
				Severity: SeverityCritical,
				Subject:  id,
				Detail:   fmt.Sprintf("task is in %s but has no recorded branch/worktree/base_sha; run `burl claim %s` again or repair the header by hand.", bucket, id),
			})
		}
	}
	return false
}

func writeRepairedTask(t *task.Task, path string) error {
	data, err := t.Serialize()
	if err != nil {
		return err
	}
	return atomicfs.WriteFile(path, data, 0644)
}

// checkOrphanedWorktrees compares registered git worktrees under
// WorktreesRoot against the set of worktree paths any task still
// references, flagging (and, with repair, removing) the ones nothing
// points to anymore.
func checkOrphanedWorktrees(report *Report, ctx *burlctx.Context, referenced map[string]bool, repair, force bool) error {
	main := gitrun.New(ctx.RepoRoot)
	worktrees, err := main.WorktreeList()
	if err != nil {
		return fmt.Errorf("listing worktrees: %w", err)
	}

	root := filepath.Clean(ctx.WorktreesRoot)
	wtMgr := worktree.New(ctx.RepoRoot, ctx.WorktreesRoot, ctx.WorktreeLockPath())

	for _, wt := range worktrees {
		clean := filepath.Clean(wt.Path)
		rel, err := filepath.Rel(root, clean)
		if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
			continue
		}
		if referenced[clean] {
			continue
		}
		finding := Finding{
			Category: "orphaned-worktree",
			Severity: SeverityWarning,
			Subject:  wt.Branch,
			Detail:   fmt.Sprintf("worktree %s (branch %s) is registered but no task references it; likely left behind by an interrupted approve/abandoned claim.", wt.Path, wt.Branch),
		}
		if repair {
			removeErr := wtMgr.RemoveTaskWorktree(wt.Path)
			if removeErr != nil && force {
				removeErr = wtMgr.RemoveTaskWorktreeForce(wt.Path)
			}
			if removeErr != nil {
				finding.Detail += fmt.Sprintf(" removal failed: %v", removeErr)
			} else if err := wtMgr.DeleteBranch(wt.Branch); err != nil {
				finding.Detail += fmt.Sprintf(" worktree removed but branch deletion failed: %v", err)
			} else {
				finding.Repaired = true
			}
		}
		report.add(finding)
	}
	return nil
}

// checkLocks surfaces every lock file older than the configured
// lock_stale_minutes. Staleness is never auto-cleared by --repair: a
// stale lock might still be legitimately held by a slow operation, so
// clearing one is left to the explicit `burl lock clear --force`.
func checkLocks(report *Report, ctx *burlctx.Context, cfg *config.Config) error {
	locks, err := lockmgr.List(ctx.LocksDir, cfg.LockStaleMinutes)
	if err != nil {
		return fmt.Errorf("listing locks: %w", err)
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].Name < locks[j].Name })
	for _, l := range locks {
		if !l.Stale {
			continue
		}
		report.add(Finding{
			Category: "stale-lock",
			Severity: SeverityWarning,
			Subject:  l.Name,
			Detail: fmt.Sprintf(
				"lock %q held by %s (pid %d) since %s (age %s exceeds lock_stale_minutes=%d). "+
					"If that process is gone, run `burl lock clear %s --force`.",
				l.Name, l.Metadata.Owner, l.Metadata.PID, l.Metadata.CreatedAt.Format("2006-01-02T15:04:05Z"),
				l.Age.Round(1e9), cfg.LockStaleMinutes, l.Name),
		})
	}
	return nil
}
