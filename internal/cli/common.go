package cli

import (
	"fmt"
	"os"
	"os/user"

	"golang.org/x/term"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/transition"
)

// exitError carries a classified exit code out of a RunE without cobra
// printing its own "Error:" line; the message has already been printed
// by fail().
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// fail prints err the way the rest of burl's commands expect (to stderr,
// no stack, no cobra usage banner) and returns an *exitError carrying the
// exit code transition.ExitCode classifies it as.
func fail(err error) error {
	fmt.Fprintf(os.Stderr, "%s: %v\n", Name(), err)
	return &exitError{code: transition.ExitCode(err)}
}

// actor resolves who to stamp into task headers and events: BURL_ACTOR,
// falling back to the OS user, falling back to "unknown".
func actor() string {
	if v := os.Getenv("BURL_ACTOR"); v != "" {
		return v
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// engine resolves the repository's burlctx.Context and loaded+validated
// config, then returns a ready-to-use transition.Engine. requireWorkflow
// is false only for `init`.
func engine(requireWorkflow bool) (*transition.Engine, *burlctx.Context, error) {
	ctx, err := burlctx.Resolve("", requireWorkflow)
	if err != nil {
		return nil, nil, err
	}
	doc, err := config.Load(ctx.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if err := doc.Config.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config at %s: %w", ctx.ConfigPath, err)
	}
	return transition.New(ctx, doc.Config, actor()), ctx, nil
}

// heading renders s bold when stdout is an interactive terminal, and
// plain otherwise (piped output, CI logs) so `status`/`lock list` stay
// grep-friendly when not attached to a TTY.
func heading(s string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}
