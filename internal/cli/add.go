package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/task"
	"github.com/burl-dev/burl/internal/transition"
)

var (
	addPriority     string
	addTags         []string
	addAffects      []string
	addAffectsGlobs []string
	addMustNotTouch []string
	addDependsOn    []string
)

var addCmd = &cobra.Command{
	Use:     "add <title>",
	GroupID: GroupLifecycle,
	Short:   "Create a new task in READY",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var priority task.Priority
		switch addPriority {
		case "", "high", "medium", "low":
			priority = task.Priority(addPriority)
		default:
			return fail(fmt.Errorf("--priority must be one of high, medium, low, got %q", addPriority))
		}

		e, _, err := engine(true)
		if err != nil {
			return fail(err)
		}
		result, err := e.Add(transition.AddInput{
			Title:        args[0],
			Priority:     priority,
			Tags:         addTags,
			Affects:      addAffects,
			AffectsGlobs: addAffectsGlobs,
			MustNotTouch: addMustNotTouch,
			DependsOn:    addDependsOn,
		})
		if err != nil {
			return fail(err)
		}
		fmt.Printf("created %s at %s\n", result.TaskID, result.Path)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addPriority, "priority", "", "high, medium, or low")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tag (repeatable)")
	addCmd.Flags().StringSliceVar(&addAffects, "affects", nil, "exact path this task may change (repeatable)")
	addCmd.Flags().StringSliceVar(&addAffectsGlobs, "affects-glob", nil, "glob pattern this task may change (repeatable)")
	addCmd.Flags().StringSliceVar(&addMustNotTouch, "must-not-touch", nil, "path or glob this task must never change (repeatable)")
	addCmd.Flags().StringSliceVar(&addDependsOn, "depends-on", nil, "task ID that must be DONE before this is claimable (repeatable)")
	rootCmd.AddCommand(addCmd)
}
