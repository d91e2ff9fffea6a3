package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/locks"
	"opengoat/internal/ports"
	"opengoat/internal/provider"
	"opengoat/pkg/logger"
)

// Store reads and mutates the organization on disk. Files are the
// source of truth; there is no in-memory cache to get stale.
type Store struct {
	fs       ports.Filesystem
	clock    ports.Clock
	paths    config.Paths
	registry *provider.Registry

	roleSkills RoleSkillSyncer
	runtime    RuntimeSyncer

	locks locks.KeyedMutex
}

// NewStore returns an agent store over the given home layout.
func NewStore(fs ports.Filesystem, clock ports.Clock, paths config.Paths, registry *provider.Registry) *Store {
	return &Store{fs: fs, clock: clock, paths: paths, registry: registry}
}

// SetRoleSkillSyncer wires the role-skill syncer (optional).
func (s *Store) SetRoleSkillSyncer(rs RoleSkillSyncer) { s.roleSkills = rs }

// SetRuntimeSyncer wires the provider runtime syncer (optional).
func (s *Store) SetRuntimeSyncer(rt RuntimeSyncer) { s.runtime = rt }

// ValidateID checks an agent id against the slug rules.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return errs.Validation("invalid agent id %q: must match %s", id, idPattern.String())
	}
	return nil
}

// List returns every agent: the root first, then the rest ordered
// case-insensitively by display name.
func (s *Store) List() ([]Agent, error) {
	entries, err := s.fs.ReadDir(s.paths.AgentsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agents dir: %w", err)
	}

	var out []Agent
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		agent, err := s.load(entry.Name())
		if err != nil {
			logger.Warn().Str("agent", entry.Name()).Err(err).Msg("skipping unreadable agent config")
			continue
		}
		out = append(out, agent)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].ReportsTo == "") != (out[j].ReportsTo == "") {
			return out[i].ReportsTo == ""
		}
		ni, nj := strings.ToLower(out[i].DisplayName), strings.ToLower(out[j].DisplayName)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get returns one agent.
func (s *Store) Get(id string) (Agent, error) {
	if err := ValidateID(id); err != nil {
		return Agent{}, err
	}
	agent, err := s.load(id)
	if err != nil {
		if os.IsNotExist(err) {
			return Agent{}, errs.NotFound("agent %q does not exist", id)
		}
		return Agent{}, err
	}
	return agent, nil
}

// Exists reports whether the agent directory is present.
func (s *Store) Exists(id string) bool {
	_, err := s.fs.Stat(s.paths.AgentConfigPath(id))
	return err == nil
}

// Create validates, persists and scaffolds a new agent. Calling it for
// an id that already exists leaves the files untouched and re-runs the
// runtime sync, so a create interrupted by a runtime failure can be
// retried verbatim.
func (s *Store) Create(ctx context.Context, req CreateRequest) (Agent, []string, error) {
	if req.ID == "" {
		req.ID = DeriveID(req.DisplayName)
	}
	if err := ValidateID(req.ID); err != nil {
		return Agent{}, nil, err
	}

	defer s.locks.Lock(req.ID)()

	if s.Exists(req.ID) {
		return s.syncExisting(ctx, req.ID)
	}

	agentType := req.Type
	if agentType == "" {
		agentType = TypeIndividual
	}
	if agentType != TypeManager && agentType != TypeIndividual {
		return Agent{}, nil, errs.Validation("unknown agent type %q", agentType)
	}

	providerID := req.Provider
	if providerID == "" {
		providerID = provider.DefaultID
	}
	prov, err := s.registry.Get(providerID)
	if err != nil {
		return Agent{}, nil, err
	}
	if agentType == TypeManager && !prov.Capabilities.Reportees {
		return Agent{}, nil, errs.AuthorityDenied(
			"provider %q does not support reportees; managers cannot run on it", prov.ID)
	}

	reportsTo, err := s.resolveManagerEdge(req.ID, req.ReportsTo)
	if err != nil {
		return Agent{}, nil, err
	}

	now := s.clock.Now().UnixMilli()
	agent := Agent{
		ID:           req.ID,
		DisplayName:  req.DisplayName,
		Role:         req.Role,
		Description:  req.Description,
		Type:         agentType,
		ReportsTo:    reportsTo,
		Discoverable: req.Discoverable == nil || *req.Discoverable,
		Tags:         req.Tags,
		Priority:     req.Priority,
		Runtime: RuntimeConfig{
			Provider: providerID,
			Skills:   SkillAssignments{Assigned: []string{}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if agent.DisplayName == "" {
		agent.DisplayName = agent.ID
	}

	if err := s.save(agent); err != nil {
		return Agent{}, nil, err
	}

	var warnings []string
	if err := s.scaffoldWorkspace(agent, prov); err != nil {
		// Roll the record back so a failed create leaves nothing behind.
		s.fs.RemoveAll(s.paths.AgentDir(agent.ID))
		s.fs.RemoveAll(s.paths.WorkspaceDir(agent.ID))
		return Agent{}, nil, err
	}
	if agent.ReportsTo != "" {
		if err := s.linkReportee(agent.ReportsTo, agent.ID); err != nil {
			warnings = append(warnings, fmt.Sprintf("reportee link: %v", err))
		}
	}
	warnings = append(warnings, s.syncRoleSkills(agent, prov)...)

	if s.runtime != nil && prov.Capabilities.AgentCreate {
		if err := s.runtime.CreateAgent(ctx, agent.ID, s.paths.WorkspaceDir(agent.ID)); err != nil {
			// New agent: a runtime refusal rolls back every local file.
			if agent.ReportsTo != "" {
				s.unlinkReportee(agent.ReportsTo, agent.ID)
			}
			s.fs.RemoveAll(s.paths.AgentDir(agent.ID))
			s.fs.RemoveAll(s.paths.WorkspaceDir(agent.ID))
			return Agent{}, warnings, errs.RuntimeSync("runtime create for %q failed: %v", agent.ID, err)
		}
	}

	logger.Info().Str("agent", agent.ID).Str("provider", prov.ID).Str("type", string(agent.Type)).
		Msg("agent created")
	return agent, warnings, nil
}

// syncExisting is the idempotent half of Create: the agent is already
// on disk, so only the role skills and the runtime registration are
// refreshed. Runtime trouble is a warning here, the local files stay.
func (s *Store) syncExisting(ctx context.Context, id string) (Agent, []string, error) {
	agent, err := s.Get(id)
	if err != nil {
		return Agent{}, nil, err
	}
	prov, err := s.registry.Get(agent.ProviderID())
	if err != nil {
		return Agent{}, nil, err
	}

	warnings := s.syncRoleSkills(agent, prov)
	if s.runtime != nil && prov.Capabilities.AgentCreate {
		if err := s.runtime.CreateAgent(ctx, agent.ID, s.paths.WorkspaceDir(agent.ID)); err != nil {
			warnings = append(warnings, fmt.Sprintf("runtime create: %v", err))
			logger.Warn().Str("agent", agent.ID).Err(err).Msg("runtime agent create failed")
		}
	}
	return agent, warnings, nil
}

// Delete removes an agent and returns the removed ids. With cascade,
// direct reportees are first reassigned to the deleted agent's own
// manager. Warnings carry non-fatal runtime trouble.
func (s *Store) Delete(ctx context.Context, id string, cascade bool) (removed, warnings []string, err error) {
	defer s.locks.Lock(id)()

	agent, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}

	reportees, err := s.ListDirectReportees(id)
	if err != nil {
		return nil, nil, err
	}
	if len(reportees) > 0 {
		if !cascade {
			return nil, nil, errs.Validation(
				"agent %q has %d direct reportees; reassign them or delete with cascade", id, len(reportees))
		}
		if agent.ReportsTo == "" {
			return nil, nil, errs.Validation(
				"cannot cascade-delete the root agent %q while it has reportees", id)
		}
		for _, r := range reportees {
			if err := s.SetManager(r.ID, agent.ReportsTo); err != nil {
				return nil, nil, fmt.Errorf("reassign reportee %s: %w", r.ID, err)
			}
		}
	}

	prov, provErr := s.registry.Get(agent.ProviderID())
	if provErr == nil && s.runtime != nil && prov.Capabilities.AgentDelete {
		if err := s.runtime.DeleteAgent(ctx, id); err != nil {
			warnings = append(warnings, fmt.Sprintf("runtime delete: %v", err))
			logger.Warn().Str("agent", id).Err(err).Msg("runtime agent delete failed")
		}
	}

	if agent.ReportsTo != "" {
		s.unlinkReportee(agent.ReportsTo, id)
	}
	if err := s.fs.RemoveAll(s.paths.AgentDir(id)); err != nil {
		return nil, warnings, fmt.Errorf("remove agent dir: %w", err)
	}
	if err := s.fs.RemoveAll(s.paths.WorkspaceDir(id)); err != nil {
		return nil, warnings, fmt.Errorf("remove workspace: %w", err)
	}

	logger.Info().Str("agent", id).Msg("agent deleted")
	return []string{id}, warnings, nil
}

// Update applies a partial update to mutable fields.
func (s *Store) Update(id string, req UpdateRequest) (Agent, error) {
	defer s.locks.Lock(id)()

	agent, err := s.Get(id)
	if err != nil {
		return Agent{}, err
	}

	if req.DisplayName != nil {
		agent.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		agent.Role = *req.Role
	}
	if req.Description != nil {
		agent.Description = *req.Description
	}
	if req.Discoverable != nil {
		agent.Discoverable = *req.Discoverable
	}
	if req.Tags != nil {
		agent.Tags = req.Tags
	}
	if req.Priority != nil {
		agent.Priority = *req.Priority
	}
	agent.UpdatedAt = s.clock.Now().UnixMilli()

	if err := s.save(agent); err != nil {
		return Agent{}, err
	}

	if req.Role != nil || req.Description != nil {
		if err := s.writeRoleFile(agent); err != nil {
			logger.Warn().Str("agent", id).Err(err).Msg("refresh ROLE.md failed")
		}
	}
	return agent, nil
}

// SetProvider rebinds the agent to another provider and re-syncs its
// workspace skill layout.
func (s *Store) SetProvider(ctx context.Context, id, providerID string) (Agent, []string, error) {
	defer s.locks.Lock(id)()

	agent, err := s.Get(id)
	if err != nil {
		return Agent{}, nil, err
	}
	prov, err := s.registry.Get(providerID)
	if err != nil {
		return Agent{}, nil, err
	}
	if agent.IsManager() && !prov.Capabilities.Reportees {
		return Agent{}, nil, errs.AuthorityDenied(
			"provider %q does not support reportees; manager %q cannot move to it", prov.ID, id)
	}

	agent.Runtime.Provider = prov.ID
	agent.UpdatedAt = s.clock.Now().UnixMilli()
	if err := s.save(agent); err != nil {
		return Agent{}, nil, err
	}

	var warnings []string
	if err := s.ensureSkillDirs(agent.ID, prov); err != nil {
		warnings = append(warnings, fmt.Sprintf("skill dirs: %v", err))
	}
	warnings = append(warnings, s.syncRoleSkills(agent, prov)...)

	if s.runtime != nil && prov.Capabilities.AgentCreate {
		if err := s.runtime.CreateAgent(ctx, agent.ID, s.paths.WorkspaceDir(agent.ID)); err != nil {
			warnings = append(warnings, fmt.Sprintf("runtime create: %v", err))
		}
	}
	return agent, warnings, nil
}

// AssignSkill records a skill id on the agent, deduplicated.
func (s *Store) AssignSkill(id, skillID string) (Agent, error) {
	defer s.locks.Lock(id)()

	agent, err := s.Get(id)
	if err != nil {
		return Agent{}, err
	}
	for _, existing := range agent.Runtime.Skills.Assigned {
		if existing == skillID {
			return agent, nil
		}
	}
	agent.Runtime.Skills.Assigned = append(agent.Runtime.Skills.Assigned, skillID)
	sort.Strings(agent.Runtime.Skills.Assigned)
	agent.UpdatedAt = s.clock.Now().UnixMilli()
	if err := s.save(agent); err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// UnassignSkill drops a skill id from the agent.
func (s *Store) UnassignSkill(id, skillID string) (Agent, error) {
	defer s.locks.Lock(id)()

	agent, err := s.Get(id)
	if err != nil {
		return Agent{}, err
	}
	kept := agent.Runtime.Skills.Assigned[:0]
	for _, existing := range agent.Runtime.Skills.Assigned {
		if existing != skillID {
			kept = append(kept, existing)
		}
	}
	agent.Runtime.Skills.Assigned = kept
	agent.UpdatedAt = s.clock.Now().UnixMilli()
	if err := s.save(agent); err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// GetInfo resolves an agent together with its runtime context.
func (s *Store) GetInfo(id string) (Info, error) {
	agent, err := s.Get(id)
	if err != nil {
		return Info{}, err
	}
	prov, err := s.registry.Get(agent.ProviderID())
	if err != nil {
		return Info{}, err
	}
	return Info{
		Agent:         agent,
		Provider:      prov,
		WorkspacePath: s.paths.WorkspaceDir(id),
		SkillDirs:     s.SkillDirs(id, prov),
		HasBootstrap:  s.HasBootstrap(id),
	}, nil
}

// EnsureDefaultAgent creates the root agent when the organization is
// empty. Returns the effective default agent id.
func (s *Store) EnsureDefaultAgent(ctx context.Context, id string) (string, []string, error) {
	if id == "" {
		id = "root"
	}
	if s.Exists(id) {
		return id, nil, nil
	}

	existing, err := s.List()
	if err != nil {
		return "", nil, err
	}
	if len(existing) > 0 {
		return "", nil, errs.Validation(
			"default agent %q does not exist but the organization is not empty", id)
	}

	_, warnings, err := s.Create(ctx, CreateRequest{
		ID:          id,
		DisplayName: "Root",
		Role:        "Chief of Staff",
		Description: "Top-level manager of the organization.",
		Type:        TypeManager,
	})
	if err != nil {
		return "", warnings, err
	}
	return id, warnings, nil
}

// resolveManagerEdge validates the reports-to target for a new agent.
// An empty target binds to the current root, or makes this agent the
// root when the organization is empty.
func (s *Store) resolveManagerEdge(id, reportsTo string) (string, error) {
	if reportsTo == "" {
		root, err := s.findRoot()
		if err != nil {
			return "", err
		}
		return root, nil // "" when the organization is empty
	}

	if reportsTo == id {
		return "", errs.Validation("agent %q cannot report to itself", id)
	}
	manager, err := s.Get(reportsTo)
	if err != nil {
		return "", err
	}
	mgrProv, err := s.registry.Get(manager.ProviderID())
	if err != nil {
		return "", err
	}
	if !mgrProv.Capabilities.Reportees {
		return "", errs.AuthorityDenied(
			"provider %q does not support reportees; %q cannot take reports", mgrProv.ID, reportsTo)
	}
	if !manager.IsManager() {
		return "", errs.Validation("agent %q is not a manager", reportsTo)
	}
	return reportsTo, nil
}

func (s *Store) findRoot() (string, error) {
	all, err := s.List()
	if err != nil {
		return "", err
	}
	for _, a := range all {
		if a.ReportsTo == "" {
			return a.ID, nil
		}
	}
	return "", nil
}

func (s *Store) load(id string) (Agent, error) {
	data, err := s.fs.ReadFile(s.paths.AgentConfigPath(id))
	if err != nil {
		return Agent{}, err
	}
	var agent Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return Agent{}, fmt.Errorf("parse agent config %s: %w", id, err)
	}
	return agent, nil
}

func (s *Store) save(agent Agent) error {
	if err := s.fs.MkdirAll(s.paths.AgentDir(agent.ID), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(agent, "", "  ")
	if err != nil {
		return err
	}
	return s.fs.WriteFileAtomic(s.paths.AgentConfigPath(agent.ID), append(data, '\n'), 0o644)
}

func (s *Store) syncRoleSkills(agent Agent, prov provider.Provider) []string {
	if s.roleSkills == nil {
		return nil
	}
	err := s.roleSkills.SyncAgent(agent.ID, agent.RoleKey(), s.paths.WorkspaceDir(agent.ID), prov.Profile)
	if err != nil {
		logger.Warn().Str("agent", agent.ID).Err(err).Msg("role skill sync failed")
		return []string{fmt.Sprintf("role skills: %v", err)}
	}
	return nil
}
