package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/taskindex"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: GroupInspect,
	Short:   "Summarize task counts per bucket",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ctx, err := engine(true)
		if err != nil {
			return fail(err)
		}
		idx, err := taskindex.Build(ctx.WorkflowStateDir)
		if err != nil {
			return fail(err)
		}
		for _, bucket := range taskindex.Buckets {
			entries := idx.ListBucket(bucket)
			fmt.Printf("%s %d\n", heading(fmt.Sprintf("%-8s", bucket)), len(entries))
			for _, e := range entries {
				fmt.Printf("  %s\n", e.ID)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
