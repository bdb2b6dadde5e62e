package transition

import (
	"fmt"
	"path/filepath"

	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/taskindex"
)

// AddResult reports the outcome of a successful add.
type AddResult struct {
	TaskID string
	Path   string
}

// AddInput carries the fields a caller may set on a newly-created task;
// ID, Created, QAAttempts and every git/lifecycle field are assigned by
// Add itself.
type AddInput struct {
	Title        string
	Priority     task.Priority
	Tags         []string
	Affects      []string
	AffectsGlobs []string
	MustNotTouch []string
	DependsOn    []string
}

// Add creates a new task file in READY, allocating the next task number.
// The whole read-index/allocate-number/write-file/append-event/commit
// sequence runs under workflow.lock since the critical section is small
// and otherwise two concurrent `add` calls could allocate the same
// number.
func (e *Engine) Add(in AddInput) (*AddResult, error) {
	if in.Title == "" {
		return nil, userErrorf("add requires a non-empty title")
	}

	if err := e.requireClean(); err != nil {
		return nil, err
	}

	var result *AddResult
	err := e.withWorkflowLock("add", func() error {
		idx, err := e.buildIndex()
		if err != nil {
			return err
		}
		number := idx.NextNumber()
		id := taskindex.FormatID(number)
		slug := taskindex.Slugify(in.Title)

		fields := &task.Fields{
			ID:           id,
			Title:        in.Title,
			Priority:     in.Priority,
			Created:      e.Now(),
			Tags:         in.Tags,
			Affects:      in.Affects,
			AffectsGlobs: in.AffectsGlobs,
			MustNotTouch: in.MustNotTouch,
			DependsOn:    in.DependsOn,
		}
		t := task.New(fields)
		path := filepath.Join(e.Ctx.BucketDir(string(taskindex.Ready)), taskindex.Filename(number, slug))
		if err := writeTask(t, path); err != nil {
			return err
		}
		if err := e.appendEvent(eventlog.ActionAdd, id, map[string]any{"title": in.Title}); err != nil {
			return fmt.Errorf("appending add event: %w", err)
		}
		if err := e.commitWorkflowBranch(fmt.Sprintf("burl: add %s", id)); err != nil {
			return err
		}
		result = &AddResult{TaskID: id, Path: path}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
