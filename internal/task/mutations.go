package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrGitStateImmutable is returned when a caller tries to silently change
// branch/worktree/base_sha that are already recorded.
var ErrGitStateImmutable = errors.New("branch/worktree/base_sha are already recorded and cannot be silently changed")

// Claim stamps the fields set by the claim transition. It refuses to
// overwrite an already-recorded branch/worktree/base_sha; callers that
// intend a repair must clear those fields explicitly first.
func (t *Task) Claim(assignedTo, branch, worktree, baseSHA string, now time.Time) error {
	if t.Fields.Branch != "" && t.Fields.Branch != branch {
		return fmt.Errorf("%w: branch already set to %q", ErrGitStateImmutable, t.Fields.Branch)
	}
	if t.Fields.Worktree != "" && t.Fields.Worktree != worktree {
		return fmt.Errorf("%w: worktree already set to %q", ErrGitStateImmutable, t.Fields.Worktree)
	}
	if t.Fields.BaseSHA != "" && t.Fields.BaseSHA != baseSHA {
		return fmt.Errorf("%w: base_sha already set to %q (never silently changed on reuse)", ErrGitStateImmutable, t.Fields.BaseSHA)
	}

	t.Fields.AssignedTo = assignedTo
	t.Fields.Branch = branch
	t.Fields.Worktree = worktree
	t.Fields.BaseSHA = baseSHA
	startedAt := now.UTC()
	t.Fields.StartedAt = &startedAt
	return nil
}

// ClearGitState clears branch/worktree/base_sha. Only `approve` cleanup and
// explicit `doctor --repair` may call this.
func (t *Task) ClearGitState() {
	t.Fields.Branch = ""
	t.Fields.Worktree = ""
	t.Fields.BaseSHA = ""
}

// Submit stamps submitted_at.
func (t *Task) Submit(now time.Time) {
	submittedAt := now.UTC()
	t.Fields.SubmittedAt = &submittedAt
}

// Approve stamps completed_at.
func (t *Task) Approve(now time.Time) {
	completedAt := now.UTC()
	t.Fields.CompletedAt = &completedAt
}

// IncrementQAAttempts bumps qa_attempts by one and returns the new value.
func (t *Task) IncrementQAAttempts() int {
	t.Fields.QAAttempts++
	return t.Fields.QAAttempts
}

// Reject clears submitted_at, since the task is no longer "submitted".
// started_at and the recorded branch/worktree are kept so a retry can
// reuse them.
func (t *Task) Reject() {
	t.Fields.SubmittedAt = nil
}

// BoostPriority raises priority by one level (low->medium->high), used when
// auto_priority_boost_on_retry is enabled. It is a no-op at high.
func (t *Task) BoostPriority() {
	switch t.Fields.Priority {
	case PriorityLow:
		t.Fields.Priority = PriorityMedium
	case PriorityMedium:
		t.Fields.Priority = PriorityHigh
	}
}

const qaReportHeading = "## QA Report"

// AppendQAReportEntry appends a timestamped entry to the body's "## QA
// Report" section, creating the section heading if absent.
func (t *Task) AppendQAReportEntry(now time.Time, actor, text string) {
	entry := fmt.Sprintf("\n### %s — %s\n\n%s\n", now.UTC().Format(time.RFC3339), actor, strings.TrimSpace(text))

	body := string(t.Body)
	idx := strings.Index(body, qaReportHeading)
	if idx == -1 {
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		body += "\n" + qaReportHeading + "\n" + entry
		t.Body = []byte(body)
		return
	}

	// Append the new entry at the end of the QA Report section (before the
	// next "## " heading, or at the end of the body), so reports read in
	// chronological order matching the order reject/validate calls occurred.
	afterHeading := idx + len(qaReportHeading)
	insertAt := len(body)
	if next := strings.Index(body[afterHeading:], "\n## "); next != -1 {
		insertAt = afterHeading + next + 1
	}
	prefix := body[:insertAt]
	if !strings.HasSuffix(prefix, "\n") {
		prefix += "\n"
	}
	t.Body = []byte(prefix + entry + body[insertAt:])
}
