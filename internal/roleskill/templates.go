package roleskill

import (
	"fmt"
	"strings"

	"opengoat/internal/provider"
)

func roleSkillName(roleKey string) string {
	if roleKey == provider.RoleManager {
		return "Board Manager"
	}
	return "Board Contributor"
}

func roleSkillDescription(roleKey string) string {
	if roleKey == provider.RoleManager {
		return "How to run the task board for your team: delegate, follow up, unblock."
	}
	return "How to work the task board: pick up tasks, keep status honest, raise blockers."
}

func renderRoleSkillBody(roleKey, agentID string) string {
	if roleKey == provider.RoleManager {
		return renderManagerBody(agentID)
	}
	return renderIndividualBody(agentID)
}

func renderManagerBody(agentID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Running the board\n\nYou are %s, a manager.\n\n", agentID)
	b.WriteString(`## Delegation

- Break incoming work into tasks with clear titles and descriptions.
- Assign each task to the reportee best placed to do it. Your reportees
  are linked under reportees/ in your workspace.
- Keep a small buffer of open tasks per reportee; idle reportees are a
  planning failure, not a reportee failure.

## Follow-up

- When notified that a task sits in doing or pending too long, ask the
  assignee for a concrete status and next step.
- When a task is blocked, either resolve the blocker yourself or
  escalate it upward with the blocker text intact.

## Status discipline

- Mark tasks done only when the result is verifiable.
- Cancel tasks that no longer matter instead of letting them rot.
`)
	return b.String()
}

func renderIndividualBody(agentID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Working the board\n\nYou are %s, an individual contributor.\n\n", agentID)
	b.WriteString(`## Picking up work

- When notified about todo tasks, move the one you start to doing.
- Work one task at a time; finish or yield before starting the next.

## Keeping status honest

- doing means actively worked on right now. If you pause, move the task
  to pending with a worklog note saying why.
- When you finish, add an artifact or worklog entry describing the
  result, then mark the task done.

## Blockers

- The moment you cannot proceed, add a blocker with the exact thing you
  are waiting for and move the task to blocked. Your manager is
  notified automatically.
`)
	return b.String()
}
