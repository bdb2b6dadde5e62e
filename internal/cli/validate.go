package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:     "validate <task-id>",
	GroupID: GroupLifecycle,
	Short:   "Run scope, stub, and command gates against a QA task without transitioning it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, _, err := engine(true)
		if err != nil {
			return fail(err)
		}
		result, err := e.Validate(args[0])
		if err != nil {
			if result == nil {
				return fail(err)
			}
			for _, f := range result.Findings {
				fmt.Println(f)
			}
			return fail(err)
		}
		fmt.Printf("%s: all gates passed\n", result.TaskID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
