package cli

import (
	"github.com/spf13/cobra"

	"opengoat/internal/service"
)

// NewResetCmd creates the reset command.
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe the OpenGoat home and reinitialize",
		Long: `Wipe the OpenGoat home and reinitialize.

Destroys every agent, task, session, and history record, then
rebuilds a fresh scaffold. Requires --confirm ` + service.HardResetConfirmation + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			confirm, _ := cmd.Flags().GetString("confirm")
			report, err := cc.Service.HardReset(cmd.Context(), confirm)
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(report)
			}
			printf("Reset complete, fresh home at %s\n", report.Home)
			for _, w := range report.Warnings {
				printf("Warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().String("confirm", "", "must be the literal string "+service.HardResetConfirmation)
	return cmd
}
