package openclaw

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"opengoat/internal/agents"
	"opengoat/internal/config"
	"opengoat/internal/ports"
	"opengoat/internal/provider"
	"opengoat/internal/roleskill"
	"opengoat/pkg/logger"
)

// pluginManifest is the file that marks an OpenClaw plugin directory.
const pluginManifest = "openclaw.plugin.json"

// pluginIDs are the ids the OpenGoat plugin has shipped under, newest
// first. Enabling any one of them is enough.
var pluginIDs = []string{
	"openclaw-plugin",
	"opengoat-plugin",
	"openclaw-plugin-pack",
	"workspace",
}

// syncFanOut bounds the per-agent reconciliation goroutines.
const syncFanOut = 4

// SyncReport summarizes one reconciliation pass. Warnings carry every
// non-fatal step failure; the pass itself only fails when the runtime
// is unreachable or below the minimum version.
type SyncReport struct {
	Version  string   `json:"version,omitempty"`
	Created  []string `json:"created,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
	Repaired []string `json:"repaired,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Reconciler drives the OpenClaw runtime's inventory toward the
// OpenGoat home layout. It implements agents.RuntimeSyncer for the
// per-mutation create/delete mirroring.
type Reconciler struct {
	client     *Client
	agents     *agents.Store
	registry   *provider.Registry
	roleSkills *roleskill.Syncer
	fs         ports.Filesystem
	paths      config.Paths
	pluginPath string

	mu sync.Mutex // one sync at a time
}

// NewReconciler returns a reconciler over the given stores.
func NewReconciler(client *Client, store *agents.Store, registry *provider.Registry,
	roleSkills *roleskill.Syncer, fs ports.Filesystem, paths config.Paths, pluginPath string) *Reconciler {
	return &Reconciler{
		client:     client,
		agents:     store,
		registry:   registry,
		roleSkills: roleSkills,
		fs:         fs,
		paths:      paths,
		pluginPath: pluginPath,
	}
}

// CreateAgent mirrors an agent creation into the runtime.
func (r *Reconciler) CreateAgent(ctx context.Context, id, workspace string) error {
	return r.client.CreateAgent(ctx, id, workspace)
}

// DeleteAgent mirrors an agent deletion into the runtime.
func (r *Reconciler) DeleteAgent(ctx context.Context, id string) error {
	return r.client.DeleteAgent(ctx, id)
}

// SyncRuntimeDefaults runs the full reconciliation pass. Step failures
// past the version gate are collected as warnings so one broken step
// never leaves the rest of the inventory stale.
func (r *Reconciler) SyncRuntimeDefaults(ctx context.Context) (SyncReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var report SyncReport

	version, err := r.client.Version(ctx)
	if err != nil {
		return report, err
	}
	report.Version = version

	skillsInfo, err := r.client.ListSkills(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("skills list: %v", err))
	}

	local, err := r.agents.List()
	if err != nil {
		return report, err
	}
	localOnRuntime := make(map[string]agents.Agent)
	for _, a := range local {
		prov, err := r.registry.Get(a.ProviderID())
		if err != nil || !prov.Capabilities.AgentCreate {
			continue
		}
		localOnRuntime[a.ID] = a
	}

	inventory, invErr := r.client.ListAgents(ctx)
	if invErr != nil {
		// Never repair or delete from an incomplete picture.
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("agents inventory unavailable, skipping repair: %v", invErr))
	} else {
		r.repairAndPrune(ctx, inventory, localOnRuntime, &report)
	}

	r.ensureAgents(ctx, localOnRuntime, inventory, invErr == nil, &report)

	r.enforcePolicies(ctx, &report)
	r.configurePlugin(ctx, &report)
	r.syncRoleSkills(skillsInfo, &report)

	logger.Info().
		Str("version", version).
		Int("created", len(report.Created)).
		Int("deleted", len(report.Deleted)).
		Int("repaired", len(report.Repaired)).
		Int("warnings", len(report.Warnings)).
		Msg("openclaw runtime synced")
	return report, nil
}

// repairAndPrune fixes runtime agents whose workspace drifted away
// from <home>/workspaces/<id> and removes runtime agents OpenGoat no
// longer knows. Agents outside the OpenGoat workspace prefix belong to
// someone else and are never touched.
func (r *Reconciler) repairAndPrune(ctx context.Context, inventory []RuntimeAgent,
	local map[string]agents.Agent, report *SyncReport) {
	prefix := r.paths.WorkspacesDir() + string(filepath.Separator)

	for _, ra := range inventory {
		ours := strings.HasPrefix(ra.Workspace, prefix) || ra.Workspace == r.paths.WorkspaceDir(ra.ID)
		_, isLocal := local[ra.ID]

		switch {
		case isLocal && ra.Workspace != r.paths.WorkspaceDir(ra.ID):
			// Stale mapping: delete and recreate against the right path.
			if err := r.client.DeleteAgent(ctx, ra.ID); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("repair %s: %v", ra.ID, err))
				continue
			}
			if err := r.client.CreateAgent(ctx, ra.ID, r.paths.WorkspaceDir(ra.ID)); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("repair %s: %v", ra.ID, err))
				continue
			}
			report.Repaired = append(report.Repaired, ra.ID)
		case !isLocal && ours:
			if err := r.client.DeleteAgent(ctx, ra.ID); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("delete %s: %v", ra.ID, err))
				continue
			}
			report.Deleted = append(report.Deleted, ra.ID)
		}
	}
}

// ensureAgents registers every local agent the runtime is missing.
// Without a trustworthy inventory every local agent is ensured; the
// runtime treats re-adding an existing agent as success.
func (r *Reconciler) ensureAgents(ctx context.Context, local map[string]agents.Agent,
	inventory []RuntimeAgent, inventoryKnown bool, report *SyncReport) {
	known := make(map[string]bool)
	if inventoryKnown {
		for _, ra := range inventory {
			known[ra.ID] = true
		}
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(syncFanOut)
	for id := range local {
		if known[id] {
			continue
		}
		id := id
		g.Go(func() error {
			if err := r.client.CreateAgent(ctx, id, r.paths.WorkspaceDir(id)); err != nil {
				mu.Lock()
				report.Warnings = append(report.Warnings, fmt.Sprintf("create %s: %v", id, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Created = append(report.Created, id)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

// enforcePolicies applies the per-agent runtime policy OpenGoat
// requires: no sandbox, all tools, no runtime-side bootstrap.
func (r *Reconciler) enforcePolicies(ctx context.Context, report *SyncReport) {
	inventory, err := r.client.ListAgents(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("policy pass: %v", err))
		return
	}
	prefix := r.paths.WorkspacesDir() + string(filepath.Separator)
	for i, ra := range inventory {
		if !strings.HasPrefix(ra.Workspace, prefix) {
			continue
		}
		settings := [][2]string{
			{fmt.Sprintf("agents.list[%d].sandbox.mode", i), `"off"`},
			{fmt.Sprintf("agents.list[%d].tools.allow", i), `["*"]`},
			{fmt.Sprintf("agents.list[%d].skipBootstrap", i), `true`},
		}
		for _, kv := range settings {
			if err := r.client.ConfigSet(ctx, kv[0], kv[1]); err != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("policy %s: %v", ra.ID, err))
				break
			}
		}
	}
}

// configurePlugin makes sure the runtime loads the OpenGoat plugin:
// its directory is prepended to plugins.load.paths and one of the
// known plugin ids is enabled.
func (r *Reconciler) configurePlugin(ctx context.Context, report *SyncReport) {
	dir := r.resolvePluginDir()
	if dir == "" {
		return
	}

	paths, err := r.client.PluginPaths(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("plugin paths: %v", err))
		return
	}
	if !containsPath(paths, dir) {
		next := append([]string{dir}, dedupe(paths, dir)...)
		if err := r.client.SetPluginPaths(ctx, next); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("plugin paths: %v", err))
			return
		}
	}

	for _, id := range pluginIDs {
		if err := r.client.EnablePlugin(ctx, id); err == nil {
			logger.Debug().Str("plugin", id).Msg("openclaw plugin enabled")
			return
		}
	}
	report.Warnings = append(report.Warnings,
		fmt.Sprintf("could not enable the plugin under any known id (%s)", strings.Join(pluginIDs, ", ")))
}

// resolvePluginDir prefers the explicit override, then looks for the
// plugin manifest next to the installed binary.
func (r *Reconciler) resolvePluginDir() string {
	if r.pluginPath != "" {
		return r.pluginPath
	}
	bin, err := exec.LookPath(config.OpenClawCommand())
	if err != nil {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(bin), pluginManifest)
	if _, err := r.fs.Stat(candidate); err == nil {
		return filepath.Dir(candidate)
	}
	return ""
}

// syncRoleSkills re-enforces the role-skill invariant for every local
// agent and scrubs role skills out of the runtime's managed dir.
func (r *Reconciler) syncRoleSkills(skillsInfo SkillsInfo, report *SyncReport) {
	local, err := r.agents.List()
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("role skills: %v", err))
		return
	}
	for _, a := range local {
		prov, err := r.registry.Get(a.ProviderID())
		if err != nil {
			continue
		}
		if err := r.roleSkills.SyncAgent(a.ID, a.RoleKey(), r.paths.WorkspaceDir(a.ID), prov.Profile); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("role skills %s: %v", a.ID, err))
		}
	}
	if skillsInfo.ManagedSkillsDir != "" {
		if err := r.roleSkills.CleanDir(skillsInfo.ManagedSkillsDir); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("managed skills dir: %v", err))
		}
	}
}

func containsPath(paths []string, dir string) bool {
	for _, p := range paths {
		if filepath.Clean(p) == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

func dedupe(paths []string, dir string) []string {
	seen := map[string]bool{filepath.Clean(dir): true}
	var out []string
	for _, p := range paths {
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, p)
	}
	return out
}
