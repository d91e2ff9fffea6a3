package cli

import (
	"github.com/spf13/cobra"
)

// NewSettingsCmd creates the settings command group.
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change runtime settings",
	}
	cmd.AddCommand(newSettingsShowCmd(), newSettingsUpdateCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			current := cc.Service.GetSettings()
			if cc.Flags.JSON {
				return printJSON(current)
			}
			printf("Task cron enabled:        %v\n", current.TaskCronEnabled)
			printf("Max parallel flows:       %d\n", current.MaxParallelFlows)
			printf("Max in-progress minutes:  %d\n", current.MaxInProgressMinutes)
			printf("Top-down delegation:      %v (threshold %d)\n",
				current.TaskDelegationStrategies.TopDown.Enabled,
				current.TaskDelegationStrategies.TopDown.OpenTasksThreshold)
			printf("Bottom-up delegation:     %v (inactivity %dm)\n",
				current.TaskDelegationStrategies.BottomUp.Enabled,
				current.TaskDelegationStrategies.BottomUp.MaxInactivityMinutes)
			printf("Authentication:           %v\n", current.Authentication.Enabled)
			return nil
		},
	}
}

func newSettingsUpdateCmd() *cobra.Command {
	var (
		cronEnabled      bool
		maxFlows         int
		maxInProgress    int
		topDownEnabled   bool
		topDownThreshold int
		bottomUpEnabled  bool
		maxInactivity    int
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change settings",
		Long: `Change settings.

Only flags you pass are applied; everything else keeps its current
value. The running task-cron picks the change up immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			next := cc.Service.GetSettings()

			if cmd.Flags().Changed("cron-enabled") {
				next.TaskCronEnabled = cronEnabled
			}
			if cmd.Flags().Changed("max-parallel-flows") {
				next.MaxParallelFlows = maxFlows
			}
			if cmd.Flags().Changed("max-in-progress-minutes") {
				next.MaxInProgressMinutes = maxInProgress
			}
			if cmd.Flags().Changed("top-down") {
				next.TaskDelegationStrategies.TopDown.Enabled = topDownEnabled
			}
			if cmd.Flags().Changed("top-down-threshold") {
				next.TaskDelegationStrategies.TopDown.OpenTasksThreshold = topDownThreshold
			}
			if cmd.Flags().Changed("bottom-up") {
				next.TaskDelegationStrategies.BottomUp.Enabled = bottomUpEnabled
			}
			if cmd.Flags().Changed("max-inactivity-minutes") {
				next.TaskDelegationStrategies.BottomUp.MaxInactivityMinutes = maxInactivity
			}

			if err := cc.Service.UpdateSettings(next); err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(cc.Service.GetSettings())
			}
			printf("Settings updated\n")
			return nil
		},
	}

	cmd.Flags().BoolVar(&cronEnabled, "cron-enabled", true, "run the task-cron loop")
	cmd.Flags().IntVar(&maxFlows, "max-parallel-flows", 0, "parallel flow cap per cycle")
	cmd.Flags().IntVar(&maxInProgress, "max-in-progress-minutes", 0, "doing-status staleness limit")
	cmd.Flags().BoolVar(&topDownEnabled, "top-down", true, "managers delegate open tasks")
	cmd.Flags().IntVar(&topDownThreshold, "top-down-threshold", 0, "open tasks before a manager delegates")
	cmd.Flags().BoolVar(&bottomUpEnabled, "bottom-up", true, "idle agents notify managers")
	cmd.Flags().IntVar(&maxInactivity, "max-inactivity-minutes", 0, "idle minutes before notification")
	return cmd
}
