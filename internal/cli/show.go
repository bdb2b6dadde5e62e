package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/taskindex"
)

var showCmd = &cobra.Command{
	Use:     "show <task-id>",
	GroupID: GroupInspect,
	Short:   "Print a task file's current contents",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ctx, err := engine(true)
		if err != nil {
			return fail(err)
		}
		idx, err := taskindex.Build(ctx.WorkflowStateDir)
		if err != nil {
			return fail(err)
		}
		entry, ok := idx.Resolve(args[0])
		if !ok {
			return fail(fmt.Errorf("task %s not found", args[0]))
		}
		data, err := os.ReadFile(entry.Path)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("# %s (%s)\n", entry.ID, entry.Bucket)
		os.Stdout.Write(data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
