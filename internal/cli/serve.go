package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"opengoat/internal/gateway"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the OpenGoat gateway",
		Long: `Start the OpenGoat gateway.

Serves the REST API and the websocket event stream, and runs the
task-cron ticker in the background. The gateway listens on the
configured host and port (default: localhost:4780).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)

			if port, _ := cmd.Flags().GetInt("port"); port != 0 {
				cc.Config.Gateway.Port = port
			}
			if host, _ := cmd.Flags().GetString("host"); host != "" {
				cc.Config.Gateway.Host = host
			}

			if _, err := cc.Service.Initialize(cmd.Context()); err != nil {
				return err
			}
			if err := cc.Service.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return gateway.NewServer(cc.Config, cc.Service).Run(ctx)
		},
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")
	return cmd
}
