package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"opengoat/internal/tasks"
)

// NewTaskCmd creates the task command group.
func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the task board",
	}
	cmd.AddCommand(
		newTaskListCmd(),
		newTaskShowCmd(),
		newTaskCreateCmd(),
		newTaskStatusCmd(),
		newTaskBlockCmd(),
		newTaskArtifactCmd(),
		newTaskWorklogCmd(),
		newTaskDeleteCmd(),
	)
	return cmd
}

// taskActor reads --actor, defaulting to the human operator.
func taskActor(cmd *cobra.Command) string {
	actor, _ := cmd.Flags().GetString("actor")
	if actor == "" {
		return tasks.ActorUser
	}
	return actor
}

func addActorFlag(cmd *cobra.Command) {
	cmd.Flags().String("actor", "", "act as this agent instead of the operator")
}

func newTaskListCmd() *cobra.Command {
	var filter tasks.Filter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			if status != "" {
				st, err := tasks.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			list := cc.Service.ListTasks(filter)
			if cc.Flags.JSON {
				return printJSON(list)
			}
			tw := newTable()
			defer tw.Flush()
			tw.Write([]byte("ID\tSTATUS\tASSIGNEE\tTITLE\tUPDATED\n"))
			for _, t := range list {
				tw.Write([]byte(strings.Join([]string{
					t.ID, string(t.Status), t.Assignee, t.Title, formatUnixMilli(t.UpdatedAt),
				}, "\t") + "\n"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Assignee, "assignee", "", "filter by assignee")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "cap the result count")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			task, err := cc.Service.GetTask(args[0])
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(task)
			}
			printf("ID:        %s\n", task.ID)
			printf("Title:     %s\n", task.Title)
			printf("Status:    %s", task.Status)
			if task.StatusReason != "" {
				printf(" (%s)", task.StatusReason)
			}
			printf("\n")
			printf("Assignee:  %s\n", task.Assignee)
			printf("Created:   %s by %s\n", formatUnixMilli(task.CreatedAt), task.CreatedBy)
			if task.Description != "" {
				printf("Description:\n  %s\n", task.Description)
			}
			for _, b := range task.Blockers {
				printf("Blocker:   %s (%s, %s)\n", b.Reason, b.ByAgent, formatUnixMilli(b.At))
			}
			for _, a := range task.Artifacts {
				printf("Artifact:  %s %s\n", a.Path, a.Note)
			}
			for _, w := range task.Worklog {
				printf("Worklog:   [%s] %s: %s\n", formatUnixMilli(w.At), w.ByAgent, w.Note)
			}
			return nil
		},
	}
}

func newTaskCreateCmd() *cobra.Command {
	var req tasks.CreateRequest

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			req.Title = args[0]
			task, err := cc.Service.CreateTask(taskActor(cmd), req)
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(task)
			}
			printf("Created task %s assigned to %s\n", task.ID, task.Assignee)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Description, "description", "", "task description")
	cmd.Flags().StringVar(&req.Project, "project", "", "project label")
	cmd.Flags().StringVar(&req.Assignee, "assignee", "", "assignee agent id")
	addActorFlag(cmd)
	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a task to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			status, err := tasks.ParseStatus(args[1])
			if err != nil {
				return err
			}
			task, err := cc.Service.UpdateTaskStatus(taskActor(cmd), args[0], status, reason)
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(task)
			}
			printf("Task %s is now %s\n", task.ID, task.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the status changed")
	addActorFlag(cmd)
	return cmd
}

func newTaskBlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block <id> <reason>",
		Short: "Mark a task blocked",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			task, err := cc.Service.AddTaskBlocker(taskActor(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(task)
			}
			printf("Task %s blocked: %s\n", task.ID, args[1])
			return nil
		},
	}
	addActorFlag(cmd)
	return cmd
}

func newTaskArtifactCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "artifact <id> <path>",
		Short: "Attach an artifact path to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			task, err := cc.Service.AddTaskArtifact(taskActor(cmd), args[0], args[1], note)
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(task)
			}
			printf("Attached %s to task %s\n", args[1], task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "what the artifact is")
	addActorFlag(cmd)
	return cmd
}

func newTaskWorklogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worklog <id> <note>",
		Short: "Append a worklog note to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			task, err := cc.Service.AddTaskWorklog(taskActor(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(task)
			}
			printf("Logged work on task %s\n", task.ID)
			return nil
		},
	}
	addActorFlag(cmd)
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			removed, err := cc.Service.DeleteTask(taskActor(cmd), args...)
			if err != nil {
				return err
			}
			if cc.Flags.JSON {
				return printJSON(map[string][]string{"removed": removed})
			}
			printf("Deleted %s\n", strings.Join(removed, ", "))
			return nil
		},
	}
	addActorFlag(cmd)
	return cmd
}
