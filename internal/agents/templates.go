package agents

import (
	"fmt"
	"strings"
)

func renderAgentsFile(agent Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Workspace of %s\n\n", agent.DisplayName)
	b.WriteString(`This directory is your working home. Layout:

- ROLE.md — your role and responsibilities. Read it first.
- SOUL.md — how you communicate and carry yourself.
- skills/ — skill instructions available to you. Each skill is a
  directory with a SKILL.md.
- organization/ — shared organization material (wiki and notes),
  common to all agents.
`)
	if agent.IsManager() {
		b.WriteString(`- reportees/ — one link per agent reporting to you. Follow a link to
  read a reportee's workspace.
`)
	}
	b.WriteString(`
Tasks are assigned and tracked on the shared task board. When you are
notified about a task, update its status as you work and leave worklog
notes so your manager can follow progress.
`)
	return b.String()
}

func renderRoleFile(agent Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Role: %s\n\n", displayRole(agent))
	if agent.Description != "" {
		b.WriteString(agent.Description)
		b.WriteString("\n\n")
	}
	if agent.IsManager() {
		b.WriteString(`You are a manager. You delegate tasks to your reportees, keep the
task board moving, and escalate blockers you cannot resolve.
`)
	} else {
		b.WriteString(`You are an individual contributor. You execute assigned tasks, keep
their status current, and raise blockers early.
`)
	}
	return b.String()
}

func renderSoulFile(agent Agent) string {
	return fmt.Sprintf(`# Soul

You are %s. Be direct and concrete. Prefer showing work over
describing it. When unsure, say what you checked and what is still
open instead of guessing.
`, agent.DisplayName)
}

func renderBootstrapFile(agent Agent) string {
	var b strings.Builder
	b.WriteString(`# Welcome

You are new here. Before your first task:

1. Read ROLE.md and SOUL.md in this workspace.
2. Look through skills/ to see what you already know how to do.
`)
	if agent.IsManager() {
		b.WriteString("3. Check reportees/ to meet your team.\n")
	} else if agent.ReportsTo != "" {
		fmt.Fprintf(&b, "3. Your manager is %q. Introduce yourself in your first reply.\n", agent.ReportsTo)
	}
	b.WriteString(`
This file disappears after your first completed run.
`)
	return b.String()
}

func displayRole(agent Agent) string {
	if agent.Role != "" {
		return agent.Role
	}
	if agent.IsManager() {
		return "Manager"
	}
	return "Individual Contributor"
}
