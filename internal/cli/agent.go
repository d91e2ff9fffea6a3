package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"opengoat/internal/agents"
	"opengoat/internal/service"
)

// NewAgentCmd creates the agent command group.
func NewAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents and the reporting tree",
	}
	cmd.AddCommand(
		newAgentListCmd(),
		newAgentCreateCmd(),
		newAgentDeleteCmd(),
		newAgentInfoCmd(),
		newAgentSetManagerCmd(),
		newAgentSetProviderCmd(),
		newAgentReporteesCmd(),
	)
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			list, err := cc.Service.ListAgents()
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(list)
			}
			tw := newTable()
			defer tw.Flush()
			tw.Write([]byte("ID\tTYPE\tROLE\tREPORTS TO\tPROVIDER\n"))
			for _, a := range list {
				tw.Write([]byte(strings.Join([]string{
					a.ID, string(a.Type), a.Role, a.ReportsTo, a.Runtime.Provider,
				}, "\t") + "\n"))
			}
			return nil
		},
	}
}

func newAgentCreateCmd() *cobra.Command {
	var req service.CreateAgentRequest
	var agentType string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an agent; the id is derived from the name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			req.DisplayName = args[0]
			req.Type = agents.AgentType(agentType)
			agent, warnings, err := cc.Service.CreateAgent(cmd.Context(), req)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				printf("Warning: %s\n", w)
			}
			if cc.Flags.JSON {
				return printJSON(agent)
			}
			printf("Created agent %s reporting to %s\n", agent.ID, agent.ReportsTo)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "explicit id (defaults to the kebab-cased name)")
	cmd.Flags().StringVar(&req.Role, "role", "", "role title")
	cmd.Flags().StringVar(&req.Description, "description", "", "what this agent does")
	cmd.Flags().StringVar(&agentType, "type", "individual", "individual or manager")
	cmd.Flags().StringVar(&req.ReportsTo, "reports-to", "", "manager agent id")
	cmd.Flags().StringVar(&req.Provider, "provider", "", "provider id")
	cmd.Flags().StringSliceVar(&req.Tags, "tag", nil, "tags (repeatable)")
	cmd.Flags().IntVar(&req.Priority, "priority", 0, "dispatch priority")
	cmd.Flags().StringSliceVar(&req.Skills, "skill", nil, "skill ids to assign from the global library")
	return cmd
}

func newAgentDeleteCmd() *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			removed, err := cc.Service.DeleteAgent(cmd.Context(), args[0], cascade)
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(map[string][]string{"removed": removed})
			}
			printf("Removed %s\n", strings.Join(removed, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete every transitive reportee")
	return cmd
}

func newAgentInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Show agent details including workspace and skills",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			info, err := cc.Service.GetAgentInfo(args[0])
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(info)
			}
			printf("ID:           %s\n", info.Agent.ID)
			printf("Name:         %s\n", info.Agent.DisplayName)
			printf("Type:         %s\n", info.Agent.Type)
			printf("Role:         %s\n", info.Agent.Role)
			printf("Reports to:   %s\n", info.Agent.ReportsTo)
			printf("Provider:     %s\n", info.Provider.ID)
			printf("Workspace:    %s\n", info.WorkspacePath)
			printf("Onboarding:   %v\n", info.HasBootstrap)
			if len(info.Agent.Runtime.Skills.Assigned) > 0 {
				printf("Skills:       %s\n", strings.Join(info.Agent.Runtime.Skills.Assigned, ", "))
			}
			return nil
		},
	}
}

func newAgentSetManagerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-manager <id> <manager-id>",
		Short: "Move an agent under a different manager",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			if err := cc.Service.SetAgentManager(args[0], args[1]); err != nil {
				return err
			}
			printf("%s now reports to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newAgentSetProviderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-provider <id> <provider-id>",
		Short: "Switch an agent to a different provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			agent, warnings, err := cc.Service.SetAgentProvider(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, w := range warnings {
				printf("Warning: %s\n", w)
			}
			if cc.Flags.JSON {
				return printJSON(agent)
			}
			printf("%s now runs on %s\n", agent.ID, agent.Runtime.Provider)
			return nil
		},
	}
}

func newAgentReporteesCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reportees <id>",
		Short: "List an agent's reportees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			var (
				list []agents.Agent
				err  error
			)
			if all {
				list, err = cc.Service.ListAllReportees(args[0])
			} else {
				list, err = cc.Service.ListDirectReportees(args[0])
			}
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(list)
			}
			for _, a := range list {
				printf("%s\t%s\t%s\n", a.ID, a.Type, a.Role)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include transitive reportees")
	return cmd
}
