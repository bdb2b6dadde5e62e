package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/gitrun"
)

var worktreeCmd = &cobra.Command{
	Use:     "worktree",
	GroupID: GroupInspect,
	Short:   "List every registered git worktree (main, workflow, and task worktrees)",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ctx, err := engine(true)
		if err != nil {
			return fail(err)
		}
		worktrees, err := gitrun.New(ctx.RepoRoot).WorktreeList()
		if err != nil {
			return fail(err)
		}
		for _, wt := range worktrees {
			fmt.Printf("%s\t%s\t%s\n", wt.Path, wt.Branch, wt.Commit)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(worktreeCmd)
}
