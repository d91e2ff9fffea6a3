package cli

import (
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the OpenGoat home directory",
		Long: `Initialize the OpenGoat home directory.

Creates the organization scaffold, the root manager agent, and the
default configuration, then syncs the OpenClaw runtime. Running init
on an existing home is safe; it only fills in what is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			report, err := cc.Service.Initialize(cmd.Context())
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(report)
			}
			if report.Created {
				printf("Initialized OpenGoat home at %s\n", report.Home)
			} else {
				printf("OpenGoat home at %s is already initialized\n", report.Home)
			}
			printf("Default agent: %s\n", report.DefaultAgent)
			if report.Sync != nil {
				printf("OpenClaw runtime: %s\n", report.Sync.Version)
			}
			for _, w := range report.Warnings {
				printf("Warning: %s\n", w)
			}
			return nil
		},
	}
}
