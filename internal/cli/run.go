package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"opengoat/internal/errs"
	"opengoat/internal/runner"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		sessionKey string
		forceNew   bool
		timeout    time.Duration
		extraArgs  []string
	)

	cmd := &cobra.Command{
		Use:   "run <agent-id> <message>...",
		Short: "Send a message to an agent and stream the reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			req := runner.RunRequest{
				AgentID:    args[0],
				SessionKey: sessionKey,
				Message:    strings.Join(args[1:], " "),
				Timeout:    timeout,
				ForceNew:   forceNew,
				ExtraArgs:  extraArgs,
			}

			events, err := cc.Service.RunStream(cmd.Context(), req)
			if err != nil {
				return err
			}

			var failure string
			for event := range events {
				switch event.Type {
				case runner.EventRunStarted:
					fmt.Fprintf(os.Stderr, "run started (session %s)\n", event.SessionKey)
				case runner.EventStdoutLine, runner.EventStderrLine:
					if cc.Flags.Verbose {
						fmt.Fprintln(os.Stderr, event.Text)
					}
				case runner.EventActivity:
					fmt.Fprintf(os.Stderr, "  %s\n", event.Text)
				case runner.EventRunCompleted:
					if cc.Flags.JSON {
						printJSON(event)
					} else {
						printf("%s\n", event.Text)
					}
				case runner.EventRunFailed:
					failure = event.Error
				}
			}
			if failure != "" {
				return errs.Fatal("run failed: %s", failure)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionKey, "session", "s", "", "session key (defaults to agent:main)")
	cmd.Flags().BoolVar(&forceNew, "new", false, "start a fresh provider session")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this long")
	cmd.Flags().StringSliceVar(&extraArgs, "extra-arg", nil, "extra provider CLI arguments (repeatable)")
	return cmd
}
