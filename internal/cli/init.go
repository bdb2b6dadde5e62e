package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/transition"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: GroupAdmin,
	Short:   "Create or attach the workflow worktree and scaffold workflow state",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := burlctx.Resolve("", false)
		if err != nil {
			return fail(err)
		}
		doc, err := config.Load(ctx.ConfigPath)
		if err != nil {
			return fail(err)
		}
		if err := doc.Config.Validate(); err != nil {
			return fail(fmt.Errorf("invalid config at %s: %w", ctx.ConfigPath, err))
		}
		e := transition.New(ctx, doc.Config, actor())

		result, err := e.Init()
		if err != nil {
			return fail(err)
		}
		if result.CreatedWorkflowWorktree {
			fmt.Printf("created workflow worktree at %s\n", ctx.WorkflowWorktree)
		} else {
			fmt.Printf("workflow worktree already present at %s\n", ctx.WorkflowWorktree)
		}
		if result.WroteConfigTemplate {
			fmt.Printf("wrote config template to %s\n", ctx.ConfigPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
