package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanForce bool

var cleanCmd = &cobra.Command{
	Use:     "clean",
	GroupID: GroupAdmin,
	Short:   "Remove worktrees/branches for DONE or untracked tasks",
	Long: `Scans registered git worktrees for the task-<NNN>-<slug> naming
convention and reports which ones belong to a DONE task or to no task at
all in the index. In-flight tasks (READY, DOING, QA, BLOCKED) are never
touched.

Without --force, clean only reports what it would remove.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := engine(true)
		if err != nil {
			return fail(err)
		}
		result, err := e.Clean(cleanForce)
		if err != nil {
			return fail(err)
		}
		if len(result.Worktrees) == 0 {
			fmt.Println("nothing to clean")
			return nil
		}
		for _, wt := range result.Worktrees {
			status := "would remove"
			if cleanForce {
				status = "removed"
				if !wt.Removed {
					status = "failed"
				}
			}
			fmt.Printf("[%s] %s %s (%s)\n", status, wt.Branch, wt.Path, wt.Reason)
		}
		if !cleanForce {
			fmt.Println("re-run with --force to remove the above")
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "actually remove worktrees/branches instead of just reporting")
	rootCmd.AddCommand(cleanCmd)
}
