package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/doctor"
)

var (
	doctorRepair bool
	doctorForce  bool
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupAdmin,
	Short:   "Diagnose (and optionally repair) workflow-state inconsistencies",
	Long: `Scans every bucket and lock for the inconsistencies a crash mid-transaction
can leave behind: a task duplicated across buckets, a header whose git
state doesn't match its bucket, an orphaned worktree, a stale lock.

Without --repair, doctor only reports. With --repair, findings that are
safe to fix without a human judgment call (uncleared DONE git state,
orphaned worktrees) are fixed in place; everything else is still only
reported, with a suggested manual remedy.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, ctx, err := engine(true)
		if err != nil {
			return fail(err)
		}
		report, err := doctor.Run(ctx, e.Config, doctorRepair, doctorForce)
		if err != nil {
			return fail(err)
		}
		if report.Clean() {
			fmt.Println("no issues found")
			return nil
		}
		for _, f := range report.Findings {
			status := "repair recommended"
			if f.Repaired {
				status = "repaired"
			}
			fmt.Printf("[%s] %s: %s (%s)\n  %s\n", f.Severity, f.Category, f.Subject, status, f.Detail)
		}
		if !doctorRepair {
			return fail(fmt.Errorf("%d issue(s) found; re-run with --repair to fix what's safe to fix automatically", len(report.Findings)))
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorRepair, "repair", false, "fix findings that are safe to repair automatically")
	doctorCmd.Flags().BoolVar(&doctorForce, "force", false, "with --repair, also force-remove orphaned worktrees that git won't remove cleanly (uncommitted changes)")
	rootCmd.AddCommand(doctorCmd)
}
