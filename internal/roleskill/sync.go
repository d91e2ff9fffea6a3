// Package roleskill keeps the managed role skill in each workspace
// skill directory in line with the agent's type and provider profile.
// Exactly one role skill exists per agent per skill dir after a sync.
package roleskill

import (
	"fmt"
	"os"
	"path/filepath"

	"opengoat/internal/ports"
	"opengoat/internal/provider"
	"opengoat/internal/skills"
	"opengoat/pkg/logger"
)

// Syncer writes and removes role-skill directories.
type Syncer struct {
	fs ports.Filesystem
}

// NewSyncer returns a role-skill syncer.
func NewSyncer(fs ports.Filesystem) *Syncer {
	return &Syncer{fs: fs}
}

// SyncAgent enforces the role-skill invariant for one agent: the ids in
// profile.RoleSkills[roleKey] are present under every profile skill dir,
// and every other managed id is absent.
func (s *Syncer) SyncAgent(agentID, roleKey, workspace string, profile provider.RuntimeProfile) error {
	desired := make(map[string]bool)
	for _, id := range profile.RoleSkillIDs(roleKey) {
		desired[id] = true
	}

	for _, rel := range profile.SkillDirs {
		dir := filepath.Join(workspace, rel)
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create skill dir %s: %w", dir, err)
		}

		for _, id := range provider.ManagedRoleSkillIDs {
			if desired[id] {
				continue
			}
			path := filepath.Join(dir, id)
			if err := s.fs.RemoveAll(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove stale role skill %s: %w", path, err)
			}
		}

		for id := range desired {
			if err := s.writeRoleSkill(dir, id, agentID, roleKey); err != nil {
				return err
			}
		}
	}

	logger.Debug().Str("agent", agentID).Str("role", roleKey).Msg("role skills synced")
	return nil
}

// CleanDir removes every managed role-skill id from dir. Used against
// the runtime's managed-skills directory, which must never carry a role
// skill of its own.
func (s *Syncer) CleanDir(dir string) error {
	for _, id := range provider.ManagedRoleSkillIDs {
		path := filepath.Join(dir, id)
		if _, err := s.fs.Lstat(path); err != nil {
			continue
		}
		if err := s.fs.RemoveAll(path); err != nil {
			return fmt.Errorf("remove managed skill %s: %w", path, err)
		}
	}
	return nil
}

func (s *Syncer) writeRoleSkill(dir, skillID, agentID, roleKey string) error {
	skill := skills.Skill{
		ID:          skillID,
		Name:        roleSkillName(roleKey),
		Description: roleSkillDescription(roleKey),
		Body:        renderRoleSkillBody(roleKey, agentID),
		Metadata: &skills.OpenClawMeta{
			Requires: &skills.OpenClawRequires{Config: []string{"workspace"}},
		},
	}
	rendered, err := skills.RenderSkillMD(skill)
	if err != nil {
		return err
	}

	target := filepath.Join(dir, skillID)
	if err := s.fs.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create role skill dir %s: %w", target, err)
	}
	path := filepath.Join(target, skills.SkillFileName)
	return s.fs.WriteFileAtomic(path, rendered, 0o644)
}
