package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Command group IDs, used by subcommands to organize help output.
const (
	GroupLifecycle = "lifecycle"
	GroupInspect   = "inspect"
	GroupAdmin     = "admin"
)

var rootCmd = &cobra.Command{
	Use:           Name(),
	Short:         "burl orchestrates file-based, Git-backed agentic coding workflows",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cmdName := Name()
	rootCmd.Use = cmdName
	rootCmd.Long = fmt.Sprintf(`%s drives a task through READY -> DOING -> QA -> DONE (or BLOCKED)
entirely through files committed to a dedicated Git worktree and branch.
There is no server and no database: every command resolves the
repository's workflow state fresh, mutates it under a short-lived lock,
and commits the result.`, cmdName)

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupLifecycle, Title: "Task Lifecycle:"},
		&cobra.Group{ID: GroupInspect, Title: "Inspection:"},
		&cobra.Group{ID: GroupAdmin, Title: "Administration:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupInspect)
	rootCmd.SetCompletionCommandGroupID(GroupAdmin)
}

// Execute runs the root command and returns the process exit code.
// Subcommands report failures by returning an *exitError from RunE (see
// fail in common.go); anything else cobra surfaces on its own (usage
// errors, unknown flags) maps to exit code 1.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
