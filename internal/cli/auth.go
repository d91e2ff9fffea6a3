package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"opengoat/internal/errs"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage gateway authentication",
	}
	cmd.AddCommand(newAuthSetPasswordCmd(), newAuthDisableCmd())
	return cmd
}

func newAuthSetPasswordCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Enable basic auth on the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)

			if username == "" {
				printf("Username: ")
				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return errs.Validation("read username: %v", err)
				}
				username = strings.TrimSpace(line)
			}

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			again, err := readPassword("Repeat password: ")
			if err != nil {
				return err
			}
			if password != again {
				return errs.Validation("passwords do not match")
			}

			if err := cc.Service.SetAuthPassword(username, password); err != nil {
				return err
			}
			printf("Authentication enabled for %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when omitted)")
	return cmd
}

func newAuthDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Turn gateway authentication off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			next := cc.Service.GetSettings()
			next.Authentication.Enabled = false
			if err := cc.Service.UpdateSettings(next); err != nil {
				return err
			}
			printf("Authentication disabled\n")
			return nil
		},
	}
}

// readPassword prompts without echo when stdin is a terminal.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", errs.Validation("read password: %v", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", errs.Validation("read password: %v", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
