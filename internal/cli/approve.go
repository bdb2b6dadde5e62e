package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:     "approve <task-id>",
	GroupID: GroupLifecycle,
	Short:   "Merge a QA task's branch into main and move it to DONE",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := engine(true)
		if err != nil {
			return fail(err)
		}
		result, err := e.Approve(args[0])
		if err != nil {
			return fail(err)
		}
		if result.Rejected != nil {
			fmt.Printf("%s could not be merged and was sent back to %s\n", args[0], result.Rejected.NewBucket)
			return nil
		}
		fmt.Printf("%s merged and moved to DONE\n", result.TaskID)
		if !result.WorktreeRemoved {
			fmt.Println("  warning: worktree cleanup failed; see the approve event for detail")
		}
		if !result.BranchDeleted {
			fmt.Println("  warning: branch cleanup failed; see the approve event for detail")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(approveCmd)
}
