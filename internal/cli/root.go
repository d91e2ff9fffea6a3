// Package cli implements the opengoat command tree over the service
// facade.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/service"
	"opengoat/pkg/logger"
)

// GlobalFlags holds flags shared by every command.
type GlobalFlags struct {
	Verbose bool
	Quiet   bool
	JSON    bool
}

type cliContextKey struct{}

// CLIContext carries the loaded config and facade between PreRun and
// the command bodies.
type CLIContext struct {
	Config  *config.Config
	Service *service.Service
	Flags   *GlobalFlags
}

func getCLIContext(cmd *cobra.Command) *CLIContext {
	cc, _ := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	return cc
}

// NewRootCmd builds the root command and all subcommands.
func NewRootCmd() *cobra.Command {
	flags := &GlobalFlags{}

	rootCmd := &cobra.Command{
		Use:   "opengoat",
		Short: "OpenGoat agent organization control plane",
		Long: `OpenGoat manages an organization of AI agents: the reporting
tree, the task board, sessions, and the OpenClaw runtime that
executes agent flows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level := cfg.LogLevel
			if flags.Verbose {
				level = "debug"
			}
			if flags.Quiet {
				level = "error"
			}
			logger.Init(logger.Options{Level: level, Console: true})

			svc, err := service.New(service.Options{
				Home:         cfg.Home,
				DefaultAgent: cfg.DefaultAgent,
				PluginPath:   cfg.OpenClawPluginPath,
			})
			if err != nil {
				return err
			}

			cc := &CLIContext{Config: cfg, Service: svc, Flags: flags}
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			if cc == nil || cc.Service == nil {
				return nil
			}
			return cc.Service.Close(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "only log errors")
	rootCmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "machine-readable JSON output")

	rootCmd.AddCommand(
		NewInitCmd(),
		NewServeCmd(),
		NewSyncCmd(),
		NewDoctorCmd(),
		NewResetCmd(),
		NewVersionCmd(),
		NewAgentCmd(),
		NewTaskCmd(),
		NewSessionCmd(),
		NewRunCmd(),
		NewSkillCmd(),
		NewCronCmd(),
		NewSettingsCmd(),
		NewAuthCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps error kinds onto the documented exit codes.
func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindAuthorityDenied:
		return 2
	case errs.KindNotFound:
		return 3
	case errs.KindRuntimeSync:
		return 4
	case errs.KindTransient:
		return 5
	case errs.KindCancelled:
		return 130
	default:
		return 1
	}
}
