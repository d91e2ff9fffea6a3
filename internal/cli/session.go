package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewSessionCmd creates the session command group.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage agent sessions",
	}
	cmd.AddCommand(
		newSessionListCmd(),
		newSessionHistoryCmd(),
		newSessionRenameCmd(),
		newSessionRemoveCmd(),
	)
	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			list, err := cc.Service.ListSessions(args[0])
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(list)
			}
			tw := newTable()
			defer tw.Flush()
			tw.Write([]byte("KEY\tTITLE\tUPDATED\n"))
			for _, m := range list {
				tw.Write([]byte(strings.Join([]string{
					m.Key, m.Title, formatUnixMilli(m.UpdatedAt),
				}, "\t") + "\n"))
			}
			return nil
		},
	}
}

func newSessionHistoryCmd() *cobra.Command {
	var limit int
	var withCompaction bool
	cmd := &cobra.Command{
		Use:   "history <agent-id> <key>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			entries, err := cc.Service.SessionHistory(args[0], args[1], limit, withCompaction)
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(entries)
			}
			for _, e := range entries {
				printf("[%s] %s: %s\n", formatUnixMilli(e.At), e.Role, e.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "only the last N entries")
	cmd.Flags().BoolVar(&withCompaction, "with-compaction", false, "include compaction entries")
	return cmd
}

func newSessionRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <agent-id> <key> <title>",
		Short: "Retitle a session",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			meta, err := cc.Service.RenameSession(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(meta)
			}
			printf("Session %s is now %q\n", meta.Key, meta.Title)
			return nil
		},
	}
}

func newSessionRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <agent-id> <key>",
		Short: "Delete a session and its transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			if err := cc.Service.RemoveSession(args[0], args[1]); err != nil {
				return err
			}
			printf("Removed session %s\n", args[1])
			return nil
		},
	}
}
