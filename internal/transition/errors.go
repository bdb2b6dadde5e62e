// Package transition implements the five-phase transaction scaffolding —
// preconditions, git/FS mutations, workflow-state mutation under
// workflow.lock, event append, workflow-branch commit — and the concrete
// claim/submit/validate/approve/reject/init transitions built on it.
package transition

import (
	"errors"
	"fmt"

	"github.com/burl-dev/burl/internal/gitrun"
	"github.com/burl-dev/burl/internal/lockmgr"
)

// Exit codes surfaced by cmd/burl: 0 success, 1 user/state error,
// 2 validation failure, 3 git failure, 4 lock acquisition failure.
const (
	ExitOK               = 0
	ExitUserError        = 1
	ExitValidationFailed = 2
	ExitGitFailure       = 3
	ExitLockFailure      = 4
)

// UserError wraps a precondition, configuration, or malformed-state
// failure (exit 1).
type UserError struct {
	Msg string
	Err error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}
func (e *UserError) Unwrap() error { return e.Err }

func userErrorf(format string, args ...any) error {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationFailure wraps a scope/stub/external-command gate failure
// (exit 2).
type ValidationFailure struct {
	Msg string
}

func (e *ValidationFailure) Error() string { return e.Msg }

// ExitCode classifies err into one of the four exit codes. Unclassified
// errors (including *gitrun.Error and *lockmgr.HeldError passed through
// unwrapped) default to the git/lock codes they carry; anything else not
// recognized here is a user error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var userErr *UserError
	if errors.As(err, &userErr) {
		return ExitUserError
	}
	var valErr *ValidationFailure
	if errors.As(err, &valErr) {
		return ExitValidationFailed
	}
	var heldErr *lockmgr.HeldError
	if errors.As(err, &heldErr) {
		return ExitLockFailure
	}
	var gitErr *gitrun.Error
	if errors.As(err, &gitErr) {
		return ExitGitFailure
	}
	return ExitUserError
}
