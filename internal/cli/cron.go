package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCronCmd creates the cron command group.
func NewCronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect and trigger the task-cron loop",
	}
	cmd.AddCommand(newCronRunCmd(), newCronStatusCmd(), newCronCyclesCmd())
	return cmd
}

func newCronRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one task-cron cycle now",
		Long: `Run one task-cron cycle now.

Works even when the scheduled loop is disabled in settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			report, err := cc.Service.RunTaskCronCycle(cmd.Context())
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(report)
			}
			printf("Scanned %d task(s): %d todo, %d doing, %d blocked\n",
				report.ScannedTasks, report.TodoTasks, report.DoingTasks, report.BlockedTasks)
			printf("Sent %d flow(s), %d failed\n", report.Sent, report.Failed)
			for _, d := range report.Dispatches {
				if !d.OK {
					printf("  %s %s: %s\n", d.Target, d.Kind, d.Error)
				}
			}
			return nil
		},
	}
}

func newCronStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the task-cron state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			status := cc.Service.TaskCronStatus()
			if cc.Flags.JSON {
				return printJSON(status)
			}
			printf("Enabled:      %v\n", status.Enabled)
			printf("Running:      %v\n", status.Running)
			printf("Cycle active: %v\n", status.CycleActive)
			printf("Last cycle:   %s\n", formatUnixMilli(status.LastCycleAt))
			return nil
		},
	}
}

func newCronCyclesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "List recent task-cron cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			cycles, err := cc.Service.RecentCronCycles(limit)
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(cycles)
			}
			tw := newTable()
			defer tw.Flush()
			tw.Write([]byte("STARTED\tDISPATCHED\tERRORS\tDETAIL\n"))
			for _, c := range cycles {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n",
					formatUnixMilli(c.StartedAt), c.Dispatched, c.Errors, c.Detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "how many cycles to show")
	return cmd
}
