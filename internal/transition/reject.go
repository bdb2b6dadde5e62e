package transition

import (
	"fmt"

	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/lockmgr"
	"github.com/burl-dev/burl/internal/taskindex"
)

// RejectResult reports the outcome of a reject.
type RejectResult struct {
	TaskID     string
	NewBucket  taskindex.Bucket
	QAAttempts int
}

// Reject runs the reject transition (QA -> READY or BLOCKED). reason must
// be non-empty.
func (e *Engine) Reject(id, reason string) (*RejectResult, error) {
	if reason == "" {
		return nil, userErrorf("reject requires a non-empty reason")
	}

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

	guard, err := lockmgr.Acquire(e.Ctx.LocksDir, entry.ID, e.Actor, "reject")
	if err != nil {
		return nil, err
	}
	defer func() { _ = guard.Release() }()

	t, err := loadTask(entry)
	if err != nil {
		return nil, err
	}

	attempts := t.IncrementQAAttempts()
	dest := taskindex.Ready
	if attempts >= e.Config.QAMaxAttempts {
		dest = taskindex.Blocked
	} else if e.Config.AutoPriorityBoostOnRetry {
		t.BoostPriority()
	}

	t.Reject()
	qaDetail := reason
	if dest == taskindex.Blocked {
		qaDetail = fmt.Sprintf("%s (max QA attempts reached)", reason)
	}
	t.AppendQAReportEntry(e.Now(), e.Actor, qaDetail)

	result := &RejectResult{TaskID: entry.ID, NewBucket: dest, QAAttempts: attempts}

	err = e.requireClean()
	if err != nil {
		return nil, err
	}

	err = e.withWorkflowLock("reject", func() error {
		if err := writeTask(t, entry.Path); err != nil {
			return err
		}
		if _, err := e.moveTaskFile(entry, dest); err != nil {
			return fmt.Errorf("%w (repair recommended: task header updated but bucket move failed)", err)
		}
		if err := e.appendEvent(eventlog.ActionReject, entry.ID, map[string]any{
			"reason":      reason,
			"qa_attempts": attempts,
			"new_bucket":  string(dest),
		}); err != nil {
			return fmt.Errorf("appending reject event: %w", err)
		}
		return e.commitWorkflowBranch(fmt.Sprintf("burl: reject %s -> %s", entry.ID, dest))
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
