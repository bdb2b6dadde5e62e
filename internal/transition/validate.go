package transition

import (
	"context"
	"fmt"
	"strings"

	"github.com/burl-dev/burl/internal/diffengine"
	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/gates"
	"github.com/burl-dev/burl/internal/gitrun"
	"github.com/burl-dev/burl/internal/lockmgr"
	"github.com/burl-dev/burl/internal/taskindex"
)

// ValidateResult reports the per-gate outcome of a validate run.
type ValidateResult struct {
	TaskID   string
	Passed   bool
	Findings []string
}

// Validate runs scope, stub, and (when configured) external-command
// gates against a QA task without transitioning its bucket, recording a
// QA-report entry and event either way.
func (e *Engine) Validate(id string) (*ValidateResult, error) {
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

	guard, err := lockmgr.Acquire(e.Ctx.LocksDir, entry.ID, e.Actor, "validate")
	if err != nil {
		return nil, err
	}
	defer func() { _ = guard.Release() }()

	t, err := loadTask(entry)
	if err != nil {
		return nil, err
	}
	if err := e.checkGitPreconditions(t.Fields); err != nil {
		return nil, err
	}

	taskRunner := gitrun.New(t.Fields.Worktree)
	violations, err := e.runScopeAndStubGates(taskRunner, t.Fields)
	if err != nil {
		return nil, err
	}

	plan, err := gates.Plan(e.Config)
	if err != nil {
		return nil, userErrorf("resolving validation plan: %v", err)
	}
	changed, err := diffengine.ChangedFiles(taskRunner, t.Fields.BaseSHA)
	if err != nil {
		return nil, fmt.Errorf("listing changed files: %w", err)
	}
	for _, step := range plan {
		if !gates.ShouldRunStep(step, changed) {
			continue
		}
		result := gates.RunStep(context.Background(), t.Fields.Worktree, step)
		if !result.Passed {
			violations = append(violations, fmt.Sprintf("command %q failed:\n%s", step.Name, result.Output))
		}
	}

	passed := len(violations) == 0
	detail := "all gates passed"
	if !passed {
		detail = strings.Join(violations, "\n")
	}

	err = e.withWorkflowLock("validate", func() error {
		status := "pass"
		if !passed {
			status = "fail"
		}
		t.AppendQAReportEntry(e.Now(), e.Actor, fmt.Sprintf("validate %s:\n%s", status, detail))
		if err := writeTask(t, entry.Path); err != nil {
			return err
		}
		if err := e.appendEvent(eventlog.ActionValidate, entry.ID, map[string]any{"result": status}); err != nil {
			return fmt.Errorf("appending validate event: %w", err)
		}
		return e.commitWorkflowBranch(fmt.Sprintf("burl: validate %s (%s)", entry.ID, status))
	})
	if err != nil {
		return nil, err
	}

	result := &ValidateResult{TaskID: entry.ID, Passed: passed, Findings: violations}
	if !passed {
		return result, &ValidationFailure{Msg: fmt.Sprintf("validation failed for %s:\n%s", entry.ID, detail)}
	}
	return result, nil
}
