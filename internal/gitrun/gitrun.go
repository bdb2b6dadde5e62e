// Package gitrun provides a strongly typed wrapper for invoking `git` as a
// child process. No command is ever executed through a shell; argv is
// always passed as an array, and destructive flags are only emitted when a
// caller explicitly opts in.
package gitrun

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/gofrs/flock"
)

// Error carries the argv and captured output of a failed git invocation so
// callers can surface it when naming the violating artifact to the user.
type Error struct {
	Dir    string
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr != "" {
		return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), stderr)
	}
	return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Runner invokes git against a fixed working directory.
type Runner struct {
	Dir string

	// worktreeLock, when non-nil, is flocked around worktree add/remove
	// calls to serialize concurrent mutation of the shared
	// .git/worktrees administrative area. This is a belt-and-suspenders
	// measure layered underneath the workflow's own per-task
	// exclusive-create locks; it is never the sole race-safety mechanism.
	worktreeLock *flock.Flock
}

// New returns a Runner that executes git with the given working directory.
func New(dir string) *Runner {
	return &Runner{Dir: dir}
}

// WithWorktreeLock returns a copy of r that serializes worktree mutations
// through an flock held at lockPath (typically <repo_root>/.git/gt-worktree.flock).
func (r *Runner) WithWorktreeLock(lockPath string) *Runner {
	clone := *r
	clone.worktreeLock = flock.New(lockPath)
	return &clone
}

// Run executes `git <args...>` in r.Dir and returns trimmed stdout.
func (r *Runner) Run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &Error{
			Dir:    r.Dir,
			Args:   args,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// RunLines is Run but splits non-empty trimmed output into lines.
func (r *Runner) RunLines(args ...string) ([]string, error) {
	out, err := r.Run(args...)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func (r *Runner) withWorktreeLock(fn func() (string, error)) (string, error) {
	if r.worktreeLock == nil {
		return fn()
	}
	if err := r.worktreeLock.Lock(); err != nil {
		return "", fmt.Errorf("acquiring worktree flock: %w", err)
	}
	defer func() { _ = r.worktreeLock.Unlock() }()
	return fn()
}

// RevParseToplevel returns the absolute repo root for r.Dir.
func (r *Runner) RevParseToplevel() (string, error) {
	return r.Run("rev-parse", "--show-toplevel")
}

// RevParse resolves a ref (branch, tag, or symbolic) to a full SHA.
func (r *Runner) RevParse(ref string) (string, error) {
	return r.Run("rev-parse", ref)
}

// Fetch runs `git fetch <remote> <branch>`.
func (r *Runner) Fetch(remote, branch string) error {
	_, err := r.Run("fetch", remote, branch)
	return err
}

// CurrentBranch returns the checked-out branch name for r.Dir.
func (r *Runner) CurrentBranch() (string, error) {
	return r.Run("rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists reports whether a local branch exists.
func (r *Runner) BranchExists(name string) (bool, error) {
	_, err := r.Run("show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	var gerr *Error
	if exitErr, ok := err.(*Error); ok {
		gerr = exitErr
	}
	if gerr != nil {
		if _, isExit := gerr.Err.(*exec.ExitError); isExit {
			return false, nil
		}
	}
	return false, err
}

// CreateBranchAt creates branch `name` pointed at `startPoint` (e.g. a SHA).
func (r *Runner) CreateBranchAt(name, startPoint string) error {
	_, err := r.Run("branch", name, startPoint)
	return err
}

// DeleteBranch deletes a local branch. force must be explicitly requested
// by the caller; it maps to `-D` rather than `-d`.
func (r *Runner) DeleteBranch(name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := r.Run("branch", flag, name)
	return err
}

// WorktreeAdd creates a new worktree at path checked out to an existing
// branch. The branch must already exist (the Transition Engine creates
// branches explicitly before calling this).
func (r *Runner) WorktreeAdd(path, branch string) error {
	_, err := r.withWorktreeLock(func() (string, error) {
		return r.Run("worktree", "add", path, branch)
	})
	return err
}

// WorktreeAddNewBranch creates a new worktree at path, creating branch
// fresh at startPoint in the same operation (`git worktree add -b`).
func (r *Runner) WorktreeAddNewBranch(path, branch, startPoint string) error {
	_, err := r.withWorktreeLock(func() (string, error) {
		return r.Run("worktree", "add", "-b", branch, path, startPoint)
	})
	return err
}

// WorktreeRemove removes a worktree. force is never emitted implicitly.
func (r *Runner) WorktreeRemove(path string, force bool) error {
	_, err := r.withWorktreeLock(func() (string, error) {
		args := []string{"worktree", "remove", path}
		if force {
			args = append(args, "--force")
		}
		return r.Run(args...)
	})
	return err
}

// Worktree describes one entry from `git worktree list --porcelain`.
type Worktree struct {
	Path   string
	Branch string
	Commit string
}

// WorktreeList enumerates registered worktrees.
func (r *Runner) WorktreeList() ([]Worktree, error) {
	out, err := r.Run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var worktrees []Worktree
	var current Worktree
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = Worktree{}
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		}
	}
	if current.Path != "" {
		worktrees = append(worktrees, current)
	}
	return worktrees, nil
}

// Status is a parsed `git status --porcelain` result.
type Status struct {
	Clean    bool
	Modified []string
	Added    []string
	Deleted  []string
	Untracked []string
}

// StatusPorcelain runs `git status --porcelain --untracked-files=no` or
// `=all` and parses it. Passing includeUntracked=false implements the
// clean-workflow-worktree precondition that transitions require.
func (r *Runner) StatusPorcelain(includeUntracked bool) (*Status, error) {
	args := []string{"status", "--porcelain"}
	if includeUntracked {
		args = append(args, "--untracked-files=all")
	} else {
		args = append(args, "--untracked-files=no")
	}
	out, err := r.Run(args...)
	if err != nil {
		return nil, err
	}
	st := &Status{Clean: true}
	if out == "" {
		return st, nil
	}
	st.Clean = false
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		code := line[:2]
		file := line[3:]
		switch {
		case strings.Contains(code, "M"):
			st.Modified = append(st.Modified, file)
		case strings.Contains(code, "A"):
			st.Added = append(st.Added, file)
		case strings.Contains(code, "D"):
			st.Deleted = append(st.Deleted, file)
		case strings.Contains(code, "?"):
			st.Untracked = append(st.Untracked, file)
		}
	}
	return st, nil
}

// Push runs `git push <remote> <branch>` with no forced flags.
func (r *Runner) Push(remote, branch string) error {
	_, err := r.Run("push", remote, branch)
	return err
}

// MergeFFOnly runs `git merge --ff-only <branch>`.
func (r *Runner) MergeFFOnly(branch string) error {
	_, err := r.Run("merge", "--ff-only", branch)
	return err
}

// RebaseOnto rebases the current branch onto `onto`.
func (r *Runner) RebaseOnto(onto string) error {
	_, err := r.Run("rebase", onto)
	return err
}

// AbortRebase runs `git rebase --abort`, swallowing the error if no rebase
// is in progress.
func (r *Runner) AbortRebase() error {
	_, _ = r.Run("rebase", "--abort")
	return nil
}

// IsAncestor reports whether ancestor is an ancestor of descendant.
func (r *Runner) IsAncestor(ancestor, descendant string) (bool, error) {
	_, err := r.Run("merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	if gerr, ok := err.(*Error); ok {
		if _, isExit := gerr.Err.(*exec.ExitError); isExit {
			return false, nil
		}
	}
	return false, err
}

// MergeBase returns the merge-base commit of a and b.
func (r *Runner) MergeBase(a, b string) (string, error) {
	return r.Run("merge-base", a, b)
}

// CommitCount returns the number of commits in base..head.
func (r *Runner) CommitCount(base, head string) (int, error) {
	out, err := r.Run("rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, err
	}
	var n int
	if _, err := fmt.Sscanf(out, "%d", &n); err != nil {
		return 0, fmt.Errorf("parsing commit count %q: %w", out, err)
	}
	return n, nil
}

// DiffNameOnly runs `git diff --name-only <base>..HEAD`.
func (r *Runner) DiffNameOnly(base string) ([]string, error) {
	return r.RunLines("diff", "--name-only", base+"..HEAD")
}

// DiffUnifiedZero runs `git diff -U0 <base>..HEAD` and returns raw output
// for internal/diffengine to parse.
func (r *Runner) DiffUnifiedZero(base string) (string, error) {
	cmd := exec.Command("git", "diff", "-U0", base+"..HEAD")
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &Error{Dir: r.Dir, Args: cmd.Args, Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// FastForward fast-forwards the current branch to ref (`git merge --ff-only ref`).
func (r *Runner) FastForward(ref string) error {
	return r.MergeFFOnly(ref)
}

// AddAll stages every tracked and untracked change (`git add -A`).
func (r *Runner) AddAll() error {
	_, err := r.Run("add", "-A")
	return err
}

// Commit runs `git commit -m <message>`. allowEmpty controls whether an
// empty commit (no staged changes) is permitted, used by init when
// scaffolding produces no diff against an already-initialized state.
func (r *Runner) Commit(message string, allowEmpty bool) error {
	args := []string{"commit", "-m", message}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	_, err := r.Run(args...)
	return err
}

// HeadCommit returns the current HEAD commit SHA.
func (r *Runner) HeadCommit() (string, error) {
	return r.RevParse("HEAD")
}
