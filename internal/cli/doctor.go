package cli

import (
	"github.com/spf13/cobra"

	"opengoat/internal/errs"
)

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the OpenGoat installation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			report := cc.Service.Doctor(cmd.Context())
			if cc.Flags.JSON {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				printf("Home:             %s\n", report.Home)
				printf("Default agent:    %s\n", report.DefaultAgent)
				printf("Agents:           %d\n", report.AgentCount)
				printf("Tasks:            %d\n", report.TaskCount)
				if report.OpenClawVersion != "" {
					printf("OpenClaw version: %s\n", report.OpenClawVersion)
				}
				if len(report.Problems) == 0 {
					printf("No problems found\n")
				}
				for _, p := range report.Problems {
					printf("Problem: %s\n", p)
				}
			}
			if len(report.Problems) > 0 {
				return errs.Fatal("doctor found %d problem(s)", len(report.Problems))
			}
			return nil
		},
	}
}
