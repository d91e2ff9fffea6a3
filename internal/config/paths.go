package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RootConfig is the persisted shape of <home>/config.json.
type RootConfig struct {
	DefaultAgent string `json:"defaultAgent"`
}

// Paths is pure path arithmetic over the OpenGoat home directory.
// It never touches the filesystem.
type Paths struct {
	Home string
}

// NewPaths returns path helpers rooted at home.
func NewPaths(home string) Paths {
	return Paths{Home: home}
}

// ConfigPath is <home>/config.json.
func (p Paths) ConfigPath() string { return filepath.Join(p.Home, "config.json") }

// SettingsPath is <home>/ui-settings.json.
func (p Paths) SettingsPath() string { return filepath.Join(p.Home, "ui-settings.json") }

// GatewayConfigPath is <home>/openclaw-gateway.json.
func (p Paths) GatewayConfigPath() string { return filepath.Join(p.Home, "openclaw-gateway.json") }

// HistoryDBPath is <home>/history.db.
func (p Paths) HistoryDBPath() string { return filepath.Join(p.Home, "history.db") }

// AgentsDir is <home>/agents.
func (p Paths) AgentsDir() string { return filepath.Join(p.Home, "agents") }

// AgentDir is <home>/agents/<id>.
func (p Paths) AgentDir(id string) string { return filepath.Join(p.AgentsDir(), id) }

// AgentConfigPath is <home>/agents/<id>/config.json.
func (p Paths) AgentConfigPath(id string) string { return filepath.Join(p.AgentDir(id), "config.json") }

// WorkspacesDir is <home>/workspaces.
func (p Paths) WorkspacesDir() string { return filepath.Join(p.Home, "workspaces") }

// WorkspaceDir is <home>/workspaces/<id>.
func (p Paths) WorkspaceDir(id string) string { return filepath.Join(p.WorkspacesDir(), id) }

// ReporteesDir is <workspace>/reportees, holding symlinks to reportee workspaces.
func (p Paths) ReporteesDir(id string) string { return filepath.Join(p.WorkspaceDir(id), "reportees") }

// OrganizationDir is <home>/organization.
func (p Paths) OrganizationDir() string { return filepath.Join(p.Home, "organization") }

// WikiDir is <home>/organization/wiki.
func (p Paths) WikiDir() string { return filepath.Join(p.OrganizationDir(), "wiki") }

// SessionsDir is <home>/sessions.
func (p Paths) SessionsDir() string { return filepath.Join(p.Home, "sessions") }

// AgentSessionsDir is <home>/sessions/<agentId>.
func (p Paths) AgentSessionsDir(agentID string) string {
	return filepath.Join(p.SessionsDir(), agentID)
}

// SessionDir is <home>/sessions/<agentId>/<slug>.
func (p Paths) SessionDir(agentID, slug string) string {
	return filepath.Join(p.AgentSessionsDir(agentID), slug)
}

// TasksDir is <home>/tasks.
func (p Paths) TasksDir() string { return filepath.Join(p.Home, "tasks") }

// TaskPath is <home>/tasks/<taskId>.json.
func (p Paths) TaskPath(id string) string { return filepath.Join(p.TasksDir(), id+".json") }

// SkillsDir is <home>/skills, the global skill library.
func (p Paths) SkillsDir() string { return filepath.Join(p.Home, "skills") }

// SkillDir is <home>/skills/<skillId>.
func (p Paths) SkillDir(id string) string { return filepath.Join(p.SkillsDir(), id) }

// Layout returns every directory Initialize must create.
func (p Paths) Layout() []string {
	return []string{
		p.Home,
		p.AgentsDir(),
		p.WorkspacesDir(),
		p.SessionsDir(),
		p.TasksDir(),
		p.SkillsDir(),
		p.OrganizationDir(),
		p.WikiDir(),
	}
}

// ExpandPath expands a ~ prefix to the user home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}

	if path == "~" {
		return os.UserHomeDir()
	}

	return path, nil
}
