// Package provider holds the descriptors for the external runtimes
// OpenGoat can dispatch to, and the registry that resolves them.
package provider

// Kind distinguishes full agent runtimes from plain model CLIs.
type Kind string

const (
	// KindAgentRuntime providers keep their own agent registry that
	// OpenGoat reconciles (OpenClaw).
	KindAgentRuntime Kind = "agent-runtime"
	// KindModelCLI providers are stateless CLIs run inside the agent
	// workspace.
	KindModelCLI Kind = "model-cli"
)

// Role keys the role-skill sets in a runtime profile.
const (
	RoleManager    = "manager"
	RoleIndividual = "individual"
)

// Capabilities is a flat record of what a provider supports. Behavior
// differences between providers are expressed here, never by subtyping.
type Capabilities struct {
	Agent       bool `json:"agent"`
	Model       bool `json:"model"`
	Auth        bool `json:"auth"`
	Passthrough bool `json:"passthrough"`
	Reportees   bool `json:"reportees"`
	AgentCreate bool `json:"agentCreate"`
	AgentDelete bool `json:"agentDelete"`
}

// WorkingDirPolicy says where a provider process runs.
type WorkingDirPolicy string

const (
	// WorkingDirProviderDefault leaves cwd to the provider; it resolves
	// the workspace from its own agent registry.
	WorkingDirProviderDefault WorkingDirPolicy = "provider-default"
	// WorkingDirAgentWorkspace runs the CLI inside the agent workspace.
	WorkingDirAgentWorkspace WorkingDirPolicy = "agent-workspace"
)

// RuntimeProfile is the value object describing how agents on this
// provider are laid out on disk and which role skills they carry.
type RuntimeProfile struct {
	WorkingDir WorkingDirPolicy    `json:"workingDir"`
	SkillDirs  []string            `json:"skillDirs"`
	RoleSkills map[string][]string `json:"roleSkills"`
}

// RoleSkillIDs returns the role-skill ids for an agent role.
func (p RuntimeProfile) RoleSkillIDs(role string) []string {
	return p.RoleSkills[role]
}

// Provider describes one external runtime.
type Provider struct {
	ID           string         `json:"id"`
	DisplayName  string         `json:"displayName"`
	Kind         Kind           `json:"kind"`
	Capabilities Capabilities   `json:"capabilities"`
	Profile      RuntimeProfile `json:"profile"`

	// Command and InvokeArgs describe how model-cli providers are
	// executed; the user message is fed on stdin. Agent-runtime
	// providers are invoked through their own client instead.
	Command    string   `json:"command,omitempty"`
	InvokeArgs []string `json:"invokeArgs,omitempty"`
}

// ManagedRoleSkillIDs is every role-skill id OpenGoat has ever written,
// including retired spellings. Sync removes any of these that the
// current profile does not ask for.
var ManagedRoleSkillIDs = []string{
	"og-board-manager",
	"og-board-individual",
	"og-boards",
	"manager",
}
