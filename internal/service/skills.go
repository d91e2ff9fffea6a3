package service

import (
	"opengoat/internal/skills"
)

// ListGlobalSkills returns the skills in the shared library.
func (s *Service) ListGlobalSkills() ([]skills.Skill, error) {
	return s.skills.ListGlobal()
}

// InstallGlobalSkill adds a skill to the shared library.
func (s *Service) InstallGlobalSkill(src skills.Source) (skills.Skill, error) {
	return s.skills.InstallGlobal(src)
}

// RemoveGlobalSkill deletes a skill from the shared library.
func (s *Service) RemoveGlobalSkill(id string) error {
	return s.skills.RemoveGlobal(id)
}

// ListSkills returns the skills installed in an agent's workspace.
func (s *Service) ListSkills(agentID string) ([]skills.Skill, error) {
	targets, err := s.skillTargets(agentID)
	if err != nil {
		return nil, err
	}
	return s.skills.ListIn(targets)
}

// InstallSkill installs a skill from a source into an agent's
// workspace.
func (s *Service) InstallSkill(agentID string, src skills.Source) (skills.Skill, error) {
	targets, err := s.skillTargets(agentID)
	if err != nil {
		return skills.Skill{}, err
	}
	return s.skills.InstallInto(targets, src)
}

// InstallSkillFromGlobal copies a library skill into an agent's
// workspace.
func (s *Service) InstallSkillFromGlobal(agentID, id string) (skills.Skill, error) {
	targets, err := s.skillTargets(agentID)
	if err != nil {
		return skills.Skill{}, err
	}
	return s.skills.InstallGlobalInto(targets, id)
}

// RemoveSkill removes a skill from an agent's workspace. Role-managed
// skills are refused; unassign them instead.
func (s *Service) RemoveSkill(agentID, id string) error {
	targets, err := s.skillTargets(agentID)
	if err != nil {
		return err
	}
	return s.skills.RemoveFrom(targets, id)
}

// skillTargets resolves the provider-specific skill directories of an
// agent's workspace.
func (s *Service) skillTargets(agentID string) ([]string, error) {
	agent, err := s.agents.Get(agentID)
	if err != nil {
		return nil, err
	}
	prov, err := s.registry.Get(agent.ProviderID())
	if err != nil {
		return nil, err
	}
	return s.agents.SkillDirs(agentID, prov), nil
}
