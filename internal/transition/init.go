package transition

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/burl-dev/burl/internal/atomicfs"
	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/taskindex"
)

// InitResult reports what Init did, for the CLI to print a summary.
type InitResult struct {
	CreatedWorkflowWorktree bool
	WroteConfigTemplate     bool
}

// Init creates or attaches the workflow worktree, scaffolds
// .workflow/{buckets,locks,events}, writes a config.yaml template if
// absent, writes .workflow/.gitignore, and ensures .worktrees/ exists at
// the repo root. It is idempotent: re-running must not be destructive and
// must not error on pre-existing state.
func (e *Engine) Init() (*InitResult, error) {
	result := &InitResult{}

	if err := os.MkdirAll(e.Ctx.WorktreesRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", e.Ctx.WorktreesRoot, err)
	}

	created, err := e.ensureWorkflowWorktree()
	if err != nil {
		return nil, err
	}
	result.CreatedWorkflowWorktree = created

	for _, bucket := range taskindex.Buckets {
		dir := e.Ctx.BucketDir(string(bucket))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating bucket directory %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(e.Ctx.LocksDir, 0755); err != nil {
		return nil, fmt.Errorf("creating locks directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(e.Ctx.EventsPath), 0755); err != nil {
		return nil, fmt.Errorf("creating events directory: %w", err)
	}

	wroteConfig, err := e.ensureConfigTemplate()
	if err != nil {
		return nil, err
	}
	result.WroteConfigTemplate = wroteConfig

	if err := e.ensureGitignore(); err != nil {
		return nil, err
	}

	if err := e.appendEvent(eventlog.ActionInit, "", map[string]any{
		"created_workflow_worktree": result.CreatedWorkflowWorktree,
		"wrote_config_template":     result.WroteConfigTemplate,
	}); err != nil {
		return nil, fmt.Errorf("appending init event: %w", err)
	}

	if err := e.commitWorkflowBranch("burl: init"); err != nil {
		return nil, err
	}

	return result, nil
}

// ensureWorkflowWorktree creates .burl checked out to the workflow branch
// if it doesn't exist, creating the branch itself (from the current
// main-branch HEAD) when needed. If .burl already exists but is not
// registered as the workflow worktree, Init fails rather than silently
// adopting an unrelated directory.
func (e *Engine) ensureWorkflowWorktree() (bool, error) {
	worktrees, err := e.main.WorktreeList()
	if err != nil {
		return false, fmt.Errorf("listing worktrees: %w", err)
	}
	for _, wt := range worktrees {
		if filepath.Clean(wt.Path) == filepath.Clean(e.Ctx.WorkflowWorktree) {
			if wt.Branch != e.Config.WorkflowBranch {
				return false, userErrorf(
					"%s is already a worktree registered to branch %q, not the configured workflow_branch %q; remove it or fix workflow_branch before retrying",
					e.Ctx.WorkflowWorktree, wt.Branch, e.Config.WorkflowBranch)
			}
			return false, nil
		}
	}

	if info, statErr := os.Stat(e.Ctx.WorkflowWorktree); statErr == nil && info.IsDir() {
		return false, userErrorf(
			"%s exists but is not registered as a git worktree; move it aside and retry `burl init`",
			e.Ctx.WorkflowWorktree)
	}

	branchExists, err := e.main.BranchExists(e.Config.WorkflowBranch)
	if err != nil {
		return false, fmt.Errorf("checking workflow branch %s: %w", e.Config.WorkflowBranch, err)
	}
	if branchExists {
		if err := e.main.WorktreeAdd(e.Ctx.WorkflowWorktree, e.Config.WorkflowBranch); err != nil {
			return false, fmt.Errorf("attaching workflow worktree to existing branch %s: %w", e.Config.WorkflowBranch, err)
		}
		return true, nil
	}

	head, err := e.main.HeadCommit()
	if err != nil {
		return false, fmt.Errorf("resolving HEAD to seed workflow branch: %w", err)
	}
	if err := e.main.WorktreeAddNewBranch(e.Ctx.WorkflowWorktree, e.Config.WorkflowBranch, head); err != nil {
		return false, fmt.Errorf("creating workflow worktree and branch %s: %w", e.Config.WorkflowBranch, err)
	}
	return true, nil
}

func (e *Engine) ensureConfigTemplate() (bool, error) {
	if _, err := os.Stat(e.Ctx.ConfigPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("checking config path %s: %w", e.Ctx.ConfigPath, err)
	}

	doc := &config.Document{Config: config.Defaults()}
	if err := doc.Save(e.Ctx.ConfigPath); err != nil {
		return false, fmt.Errorf("writing config template: %w", err)
	}
	return true, nil
}

func (e *Engine) ensureGitignore() error {
	path := filepath.Join(e.Ctx.WorkflowStateDir, ".gitignore")
	const want = "locks/\n"

	if data, err := os.ReadFile(path); err == nil {
		if string(data) == want {
			return nil
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := atomicfs.WriteFile(path, []byte(want), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
