package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:     "submit <task-id>",
	GroupID: GroupLifecycle,
	Short:   "Submit a DOING task's branch for QA",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := engine(true)
		if err != nil {
			return fail(err)
		}
		result, err := e.Submit(args[0])
		if err != nil {
			return fail(err)
		}
		fmt.Printf("%s submitted to QA\n", result.TaskID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
}
