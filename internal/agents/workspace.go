package agents

import (
	"fmt"
	"os"
	"path/filepath"

	"opengoat/internal/provider"
	"opengoat/pkg/logger"
)

// BootstrapFileName is the onboarding sentinel. It stays in the
// workspace until the agent's first completed run.
const BootstrapFileName = "BOOTSTRAP.md"

// WorkspacePath returns the agent's workspace directory.
func (s *Store) WorkspacePath(id string) string {
	return s.paths.WorkspaceDir(id)
}

// SkillDirs returns the absolute skill directories for the agent under
// the given provider profile.
func (s *Store) SkillDirs(id string, prov provider.Provider) []string {
	ws := s.paths.WorkspaceDir(id)
	out := make([]string, 0, len(prov.Profile.SkillDirs))
	for _, rel := range prov.Profile.SkillDirs {
		out = append(out, filepath.Join(ws, rel))
	}
	return out
}

// HasBootstrap reports whether the onboarding sentinel is still present.
func (s *Store) HasBootstrap(id string) bool {
	_, err := s.fs.Stat(filepath.Join(s.paths.WorkspaceDir(id), BootstrapFileName))
	return err == nil
}

// ClearBootstrap removes the onboarding sentinel after the agent's
// first completed run.
func (s *Store) ClearBootstrap(id string) error {
	path := filepath.Join(s.paths.WorkspaceDir(id), BootstrapFileName)
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Rescaffold restores any missing workspace files and links without
// touching existing content.
func (s *Store) Rescaffold(id string) error {
	agent, err := s.Get(id)
	if err != nil {
		return err
	}
	prov, err := s.registry.Get(agent.ProviderID())
	if err != nil {
		return err
	}
	return s.scaffoldWorkspace(agent, prov)
}

// scaffoldWorkspace lays out the workspace for a new or repaired agent.
// Existing files are left alone so agents keep their own edits.
func (s *Store) scaffoldWorkspace(agent Agent, prov provider.Provider) error {
	ws := s.paths.WorkspaceDir(agent.ID)
	if err := s.fs.MkdirAll(ws, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	files := map[string]string{
		"AGENTS.md":       renderAgentsFile(agent),
		"ROLE.md":         renderRoleFile(agent),
		"SOUL.md":         renderSoulFile(agent),
		BootstrapFileName: renderBootstrapFile(agent),
	}
	for name, content := range files {
		path := filepath.Join(ws, name)
		if _, err := s.fs.Stat(path); err == nil {
			continue
		}
		if err := s.fs.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	if err := s.ensureSkillDirs(agent.ID, prov); err != nil {
		return err
	}
	if agent.IsManager() {
		if err := s.fs.MkdirAll(s.paths.ReporteesDir(agent.ID), 0o755); err != nil {
			return fmt.Errorf("create reportees dir: %w", err)
		}
	}
	return s.ensureOrganizationLink(agent.ID)
}

// ensureSkillDirs creates the profile's skill directories.
func (s *Store) ensureSkillDirs(id string, prov provider.Provider) error {
	for _, dir := range s.SkillDirs(id, prov) {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create skill dir %s: %w", dir, err)
		}
	}
	return nil
}

// ensureOrganizationLink points <workspace>/organization at the shared
// organization directory with a relative target.
func (s *Store) ensureOrganizationLink(id string) error {
	link := filepath.Join(s.paths.WorkspaceDir(id), "organization")
	if _, err := s.fs.Lstat(link); err == nil {
		return nil
	}
	if err := s.fs.Symlink(filepath.Join("..", "..", "organization"), link); err != nil {
		return fmt.Errorf("link organization: %w", err)
	}
	return nil
}

// linkReportee adds <manager ws>/reportees/<id> -> ../../<id>.
func (s *Store) linkReportee(managerID, id string) error {
	dir := s.paths.ReporteesDir(managerID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create reportees dir: %w", err)
	}
	link := filepath.Join(dir, id)
	if _, err := s.fs.Lstat(link); err == nil {
		return nil
	}
	if err := s.fs.Symlink(filepath.Join("..", "..", id), link); err != nil {
		return fmt.Errorf("link reportee %s under %s: %w", id, managerID, err)
	}
	return nil
}

// unlinkReportee removes the reportee symlink; a missing link is fine.
func (s *Store) unlinkReportee(managerID, id string) {
	link := filepath.Join(s.paths.ReporteesDir(managerID), id)
	if err := s.fs.Remove(link); err != nil && !os.IsNotExist(err) {
		logger.Warn().Str("manager", managerID).Str("reportee", id).Err(err).
			Msg("remove reportee link failed")
	}
}

// writeRoleFile refreshes ROLE.md after role or description edits.
func (s *Store) writeRoleFile(agent Agent) error {
	path := filepath.Join(s.paths.WorkspaceDir(agent.ID), "ROLE.md")
	return s.fs.WriteFile(path, []byte(renderRoleFile(agent)), 0o644)
}
