package cli

import (
	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the OpenClaw runtime with the org",
		Long: `Reconcile the OpenClaw runtime with the org.

Registers missing runtime agents, repairs workspace links, prunes
orphans, and re-applies sandbox and skill policies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			report, err := cc.Service.SyncRuntimeDefaults(cmd.Context())
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(report)
			}
			printf("OpenClaw %s\n", report.Version)
			printf("Created %d, repaired %d, pruned %d runtime agent(s)\n",
				len(report.Created), len(report.Repaired), len(report.Deleted))
			for _, w := range report.Warnings {
				printf("Warning: %s\n", w)
			}
			return nil
		},
	}
}
