package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/eventlog"
	"github.com/burl-dev/burl/internal/lockmgr"
)

var lockCmd = &cobra.Command{
	Use:     "lock",
	GroupID: GroupAdmin,
	Short:   "Inspect and clear named locks",
}

var lockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every held lock, flagging stale ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, ctx, err := engine(true)
		if err != nil {
			return fail(err)
		}
		locks, err := lockmgr.List(ctx.LocksDir, e.Config.LockStaleMinutes)
		if err != nil {
			return fail(err)
		}
		if len(locks) == 0 {
			fmt.Println("no locks held")
			return nil
		}
		for _, l := range locks {
			name := l.Name
			if l.Stale {
				name = heading(l.Name) + " (stale)"
			}
			fmt.Printf("%-12s owner=%-12s pid=%-8d action=%-10s age=%s\n", name, l.Metadata.Owner, l.Metadata.PID, l.Metadata.Action, l.Age.Round(1e9))
		}
		return nil
	},
}

var lockClearForce bool

var lockClearCmd = &cobra.Command{
	Use:   "clear <name>",
	Short: "Remove a named lock file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !lockClearForce {
			return fail(fmt.Errorf("clearing a lock can race a process that still holds it; pass --force once you've confirmed the owner is gone"))
		}
		e, ctx, err := engine(true)
		if err != nil {
			return fail(err)
		}
		meta, err := lockmgr.Clear(ctx.LocksDir, args[0])
		if err != nil {
			return fail(err)
		}
		if err := eventlog.Append(ctx.EventsPath, eventlog.Event{
			Action: eventlog.ActionLockClear,
			Actor:  e.Actor,
			Details: map[string]any{
				"name":  args[0],
				"owner": meta.Owner,
				"action": meta.Action,
				"force": true,
			},
		}); err != nil {
			return fail(err)
		}
		fmt.Printf("cleared lock %q (was held by %s for action %q)\n", args[0], meta.Owner, meta.Action)
		return nil
	},
}

func init() {
	lockClearCmd.Flags().BoolVar(&lockClearForce, "force", false, "required; acknowledges the holder may still be running")
	lockCmd.AddCommand(lockListCmd, lockClearCmd)
	rootCmd.AddCommand(lockCmd)
}
