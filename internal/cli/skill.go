package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"opengoat/internal/skills"
)

// NewSkillCmd creates the skill command group. Without --agent the
// commands target the global skill library.
func NewSkillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Manage the skill library",
	}
	cmd.AddCommand(
		newSkillListCmd(),
		newSkillInstallCmd(),
		newSkillRemoveCmd(),
	)
	return cmd
}

func newSkillListCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List skills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			var (
				list []skills.Skill
				err  error
			)
			if agentID != "" {
				list, err = cc.Service.ListSkills(agentID)
			} else {
				list, err = cc.Service.ListGlobalSkills()
			}
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(list)
			}
			tw := newTable()
			defer tw.Flush()
			tw.Write([]byte("ID\tNAME\tDESCRIPTION\n"))
			for _, s := range list {
				tw.Write([]byte(strings.Join([]string{s.ID, s.Name, s.Description}, "\t") + "\n"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "list this agent's skills instead of the library")
	return cmd
}

func newSkillInstallCmd() *cobra.Command {
	var (
		agentID    string
		fromGlobal string
		fromURL    string
	)
	cmd := &cobra.Command{
		Use:   "install [path]",
		Short: "Install a skill from a directory, URL or the library",
		Long: `Install a skill from a directory, URL or the library.

Without --agent the skill lands in the global library. With --agent
it is installed into that agent's managed skills. --from-global
copies a library skill and --url fetches a SKILL.md instead of
reading a path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)

			if fromGlobal != "" {
				if agentID == "" {
					return cmd.Help()
				}
				skill, err := cc.Service.InstallSkillFromGlobal(agentID, fromGlobal)
				if err != nil {
					return err
				}
				if cc.Flags.JSON {
					return printJSON(skill)
				}
				printf("Installed %s for %s\n", skill.ID, agentID)
				return nil
			}

			src := skills.Source{URL: fromURL}
			if len(args) > 0 {
				src.Path = args[0]
			}
			if src.Path == "" && src.URL == "" {
				return cmd.Help()
			}
			var (
				skill skills.Skill
				err   error
			)
			if agentID != "" {
				skill, err = cc.Service.InstallSkill(agentID, src)
			} else {
				skill, err = cc.Service.InstallGlobalSkill(src)
			}
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(skill)
			}
			printf("Installed %s\n", skill.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "install for this agent instead of the library")
	cmd.Flags().StringVar(&fromGlobal, "from-global", "", "copy this library skill (requires --agent)")
	cmd.Flags().StringVar(&fromURL, "url", "", "fetch the SKILL.md from this http(s) URL")
	return cmd
}

func newSkillRemoveCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "remove <skill-id>",
		Short: "Remove a skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			var err error
			if agentID != "" {
				err = cc.Service.RemoveSkill(agentID, args[0])
			} else {
				err = cc.Service.RemoveGlobalSkill(args[0])
			}
			if err != nil {
				return err
			}
			printf("Removed %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "remove from this agent instead of the library")
	return cmd
}
