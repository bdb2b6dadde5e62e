package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var claimCmd = &cobra.Command{
	Use:     "claim [task-id]",
	GroupID: GroupLifecycle,
	Short:   "Claim a READY task, creating or reusing its branch and worktree",
	Long: `Claim a READY task, moving it to DOING.

With an explicit task ID, claims exactly that task (it must be READY and
have every dependency DONE). Without one, selects the highest-priority,
lowest-numbered READY task whose dependencies are satisfied.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		e, _, err := engine(true)
		if err != nil {
			return fail(err)
		}
		result, err := e.Claim(id)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("claimed %s\n  branch:   %s\n  worktree: %s\n  base_sha: %s\n", result.TaskID, result.Branch, result.Worktree, result.BaseSHA)
		for _, w := range result.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(claimCmd)
}
