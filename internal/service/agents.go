package service

import (
	"context"
	"strings"

	"opengoat/internal/agents"
	"opengoat/internal/history"
	"opengoat/internal/provider"
	"opengoat/pkg/logger"
)

// CreateAgentRequest extends the store request with skills to assign
// right after creation.
type CreateAgentRequest struct {
	agents.CreateRequest
	Skills []string `json:"skills,omitempty"`
}

// ListAgents returns every agent, root first then by display name.
func (s *Service) ListAgents() ([]agents.Agent, error) {
	return s.agents.List()
}

// GetAgent returns one agent.
func (s *Service) GetAgent(id string) (agents.Agent, error) {
	return s.agents.Get(id)
}

// GetAgentInfo returns an agent with its resolved provider and paths.
func (s *Service) GetAgentInfo(id string) (agents.Info, error) {
	return s.agents.GetInfo(id)
}

// CreateAgent creates the agent, assigns any requested skills and
// records the action. Warnings carry non-fatal scaffolding trouble.
func (s *Service) CreateAgent(ctx context.Context, req CreateAgentRequest) (agents.Agent, []string, error) {
	agent, warnings, err := s.agents.Create(ctx, req.CreateRequest)
	if err != nil {
		return agents.Agent{}, warnings, err
	}

	for _, skillID := range req.Skills {
		updated, err := s.agents.AssignSkill(agent.ID, skillID)
		if err != nil {
			warnings = append(warnings, "assign skill "+skillID+": "+err.Error())
			continue
		}
		agent = updated
	}

	s.recordAction(agent.ID, history.ActionAgentCreated, agent.Role, "")
	return agent, warnings, nil
}

// DeleteAgent removes the agent; cascade first reassigns its direct
// reportees to the agent's own manager.
// The returned ids are everything that was deleted.
func (s *Service) DeleteAgent(ctx context.Context, id string, cascade bool) ([]string, error) {
	removed, warnings, err := s.agents.Delete(ctx, id, cascade)
	if err != nil {
		return removed, err
	}
	for _, w := range warnings {
		logger.Warn().Str("agent", id).Str("warning", w).Msg("agent delete warning")
	}
	for _, rid := range removed {
		if err := s.sessions.RemoveAgent(rid); err != nil {
			logger.Warn().Err(err).Str("agent", rid).Msg("could not remove sessions")
		}
		s.recordAction(rid, history.ActionAgentDeleted, "", "")
	}
	return removed, nil
}

// UpdateAgent applies a partial update.
func (s *Service) UpdateAgent(id string, req agents.UpdateRequest) (agents.Agent, error) {
	return s.agents.Update(id, req)
}

// SetAgentProvider switches the agent's provider and rescaffolds the
// provider-owned workspace pieces.
func (s *Service) SetAgentProvider(ctx context.Context, id, providerID string) (agents.Agent, []string, error) {
	return s.agents.SetProvider(ctx, id, providerID)
}

// SetAgentManager re-parents the agent under managerID.
func (s *Service) SetAgentManager(id, managerID string) error {
	return s.agents.SetManager(id, managerID)
}

// AssignAgentSkill assigns one skill to the agent.
func (s *Service) AssignAgentSkill(id, skillID string) (agents.Agent, error) {
	return s.agents.AssignSkill(id, skillID)
}

// UnassignAgentSkill removes one skill from the agent.
func (s *Service) UnassignAgentSkill(id, skillID string) (agents.Agent, error) {
	return s.agents.UnassignSkill(id, skillID)
}

// ListDirectReportees returns the agents reporting directly to id.
func (s *Service) ListDirectReportees(id string) ([]agents.Agent, error) {
	return s.agents.ListDirectReportees(id)
}

// ListAllReportees returns the whole subtree below id.
func (s *Service) ListAllReportees(id string) ([]agents.Agent, error) {
	return s.agents.ListAllReportees(id)
}

// ManagementChain returns the managers above id, nearest first.
func (s *Service) ManagementChain(id string) ([]agents.Agent, error) {
	return s.agents.ManagementChain(id)
}

// GetLastAction returns the most recent recorded action for an agent.
func (s *Service) GetLastAction(agentID string) (history.Action, bool, error) {
	return s.history.LastAction(agentID)
}

// ListActions returns the agent's recent actions, newest first.
func (s *Service) ListActions(agentID string, limit int) ([]history.Action, error) {
	return s.history.ListActions(agentID, limit)
}

// ListProviders returns the registered providers.
func (s *Service) ListProviders() []provider.Provider {
	return s.registry.List()
}

// recordAction writes to history, logging instead of failing: the
// mutation already happened.
func (s *Service) recordAction(agentID string, kind history.ActionKind, detail, sessionKey string) {
	if _, err := s.history.RecordAction(agentID, kind, strings.TrimSpace(detail), sessionKey); err != nil {
		logger.Warn().Err(err).Str("agent", agentID).Str("kind", string(kind)).
			Msg("could not record action")
	}
}
