// Package taskcron drives the periodic task flow: every minute it
// plans who needs a nudge about the board and dispatches those messages
// through the run pipeline.
package taskcron

import (
	"fmt"
	"strings"
	"time"

	"opengoat/internal/tasks"
)

// DispatchKind classifies why an agent is being messaged.
type DispatchKind string

const (
	KindTodoList        DispatchKind = "todo-list"
	KindDoingTimeout    DispatchKind = "doing-timeout"
	KindPendingTimeout  DispatchKind = "pending-timeout"
	KindBlockedEscalate DispatchKind = "blocked-escalate"
	KindInactiveAgent   DispatchKind = "inactive-agent"
	KindTopDown         DispatchKind = "top-down"
)

// renderTodoList batches an agent's todo tasks into one message, one
// line per task.
func renderTodoList(list []tasks.Task) string {
	var b strings.Builder
	b.WriteString("You have open tasks on the board. Pick the next one up and move it to doing:\n")
	for _, t := range list {
		fmt.Fprintf(&b, "Task #%s: %s [%s]\n", t.ID, t.Title, t.Status)
	}
	b.WriteString("Use the task board to update status as you work.")
	return b.String()
}

// renderTaskNudge is the block layout used for stale and blocked tasks.
func renderTaskNudge(kind DispatchKind, t tasks.Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task ID: %s\n", t.ID)
	fmt.Fprintf(&b, "Title: %s\n", t.Title)
	fmt.Fprintf(&b, "Status: %s\n", t.Status)
	fmt.Fprintf(&b, "Since: %s\n", formatSince(t.StatusChangedAt, now))

	switch kind {
	case KindDoingTimeout:
		b.WriteString("This task has been in doing for a long time. " +
			"Post a worklog update, or move it to pending or blocked with a reason.")
	case KindPendingTimeout:
		b.WriteString("This task has been pending for a long time. " +
			"Check whether the wait is over and move it back to doing, or close it out.")
	case KindBlockedEscalate:
		b.WriteString("A task assigned to your reportee is blocked. " +
			"Review the blockers and unblock it or reassign the work.")
		if len(t.Blockers) > 0 {
			last := t.Blockers[len(t.Blockers)-1]
			fmt.Fprintf(&b, "\nLatest blocker: %s", last.Reason)
		}
	}
	return b.String()
}

// inactiveAgent is one quiet agent routed to a manager's notification.
type inactiveAgent struct {
	ID           string
	LastActivity int64
}

// renderInactiveAgents batches every inactive agent in a manager's
// reporting line into one message.
func renderInactiveAgents(list []inactiveAgent, now time.Time) string {
	var b strings.Builder
	b.WriteString("Inactive agents in your reporting line:\n")
	for _, a := range list {
		fmt.Fprintf(&b, "Agent ID: %s\n", a.ID)
		if a.LastActivity > 0 {
			fmt.Fprintf(&b, "Last activity: %s\n", formatSince(a.LastActivity, now))
		} else {
			b.WriteString("Last activity: never\n")
		}
	}
	b.WriteString("Check in with them, assign work from the board, " +
		"or adjust the org if a role is no longer needed.")
	return b.String()
}

// renderTopDown prompts the root when its open work runs low.
func renderTopDown(openTasks, threshold int) string {
	return fmt.Sprintf(
		"You have %d open tasks assigned to you, below the planning threshold of %d.\n"+
			"Review your goals, break upcoming work into tasks on the board, and delegate to your reportees.",
		openTasks, threshold)
}

// formatSince renders a millisecond timestamp as a rounded age.
func formatSince(atMs int64, now time.Time) string {
	age := now.Sub(time.UnixMilli(atMs))
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return "less than a minute ago"
	case age < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 48*time.Hour:
		return fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}
}
