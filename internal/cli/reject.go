package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var rejectCmd = &cobra.Command{
	Use:     "reject <task-id> <reason...>",
	GroupID: GroupLifecycle,
	Short:   "Reject a QA task back to READY (or BLOCKED at the attempt limit)",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := engine(true)
		if err != nil {
			return fail(err)
		}
		reason := strings.Join(args[1:], " ")
		result, err := e.Reject(args[0], reason)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("%s rejected -> %s (qa_attempts=%d)\n", result.TaskID, result.NewBucket, result.QAAttempts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rejectCmd)
}
