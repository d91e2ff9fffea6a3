// Package agents owns the organization: agent records under
// <home>/agents, their workspaces, and the reports-to tree.
package agents

import (
	"context"
	"regexp"

	"opengoat/internal/provider"
)

// AgentType says whether an agent may hold reportees.
type AgentType string

const (
	TypeManager    AgentType = "manager"
	TypeIndividual AgentType = "individual"
)

// idPattern is the allowed shape of an agent id. The id doubles as the
// directory name under agents/ and workspaces/.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// DeriveID turns a display name into an agent id: lowercase, with
// every run of non-alphanumeric characters collapsed to a single
// hyphen, capped at the id length limit.
func DeriveID(name string) string {
	var b []byte
	hyphen := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
			fallthrough
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if hyphen && len(b) > 0 {
				b = append(b, '-')
			}
			hyphen = false
			b = append(b, byte(r))
		default:
			hyphen = true
		}
	}
	if len(b) > 64 {
		b = b[:64]
	}
	return string(b)
}

// Agent is the persisted shape of agents/<id>/config.json.
type Agent struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"displayName"`
	Role         string        `json:"role,omitempty"`
	Description  string        `json:"description,omitempty"`
	Type         AgentType     `json:"type"`
	ReportsTo    string        `json:"reportsTo,omitempty"`
	Discoverable bool          `json:"discoverable"`
	Tags         []string      `json:"tags,omitempty"`
	Priority     int           `json:"priority"`
	Runtime      RuntimeConfig `json:"runtime"`
	CreatedAt    int64         `json:"createdAt"`
	UpdatedAt    int64         `json:"updatedAt"`
}

// RuntimeConfig nests the provider binding and skill assignments.
type RuntimeConfig struct {
	Provider string           `json:"provider"`
	Skills   SkillAssignments `json:"skills"`
}

// SkillAssignments lists the skill ids assigned to the agent.
type SkillAssignments struct {
	Assigned []string `json:"assigned"`
}

// IsManager reports whether the agent may hold reportees.
func (a Agent) IsManager() bool { return a.Type == TypeManager }

// ProviderID returns the bound provider id, defaulted.
func (a Agent) ProviderID() string {
	if a.Runtime.Provider == "" {
		return provider.DefaultID
	}
	return a.Runtime.Provider
}

// RoleKey returns the provider profile role key for the agent type.
func (a Agent) RoleKey() string {
	if a.IsManager() {
		return provider.RoleManager
	}
	return provider.RoleIndividual
}

// Info bundles an agent with its resolved runtime context.
type Info struct {
	Agent         Agent             `json:"agent"`
	Provider      provider.Provider `json:"provider"`
	WorkspacePath string            `json:"workspacePath"`
	SkillDirs     []string          `json:"skillDirs"`
	HasBootstrap  bool              `json:"hasBootstrap"`
}

// CreateRequest carries the caller-supplied fields for a new agent.
type CreateRequest struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName,omitempty"`
	Role         string    `json:"role,omitempty"`
	Description  string    `json:"description,omitempty"`
	Type         AgentType `json:"type,omitempty"`
	ReportsTo    string    `json:"reportsTo,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Discoverable *bool     `json:"discoverable,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Priority     int       `json:"priority,omitempty"`
}

// UpdateRequest carries partial updates; nil fields stay untouched.
type UpdateRequest struct {
	DisplayName  *string  `json:"displayName,omitempty"`
	Role         *string  `json:"role,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Discoverable *bool    `json:"discoverable,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Priority     *int     `json:"priority,omitempty"`
}

// RuntimeSyncer mirrors agent lifecycle into a provider runtime.
// Implemented by the OpenClaw reconciler; failures surface as warnings.
type RuntimeSyncer interface {
	CreateAgent(ctx context.Context, id, workspace string) error
	DeleteAgent(ctx context.Context, id string) error
}

// RoleSkillSyncer keeps the managed role skill in each workspace skill
// dir in line with the agent's type and provider profile.
type RoleSkillSyncer interface {
	SyncAgent(agentID, roleKey, workspace string, profile provider.RuntimeProfile) error
}
