package roleskill

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"opengoat/internal/ports"
	"opengoat/internal/provider"
)

func openclawProfile() provider.RuntimeProfile {
	return provider.RuntimeProfile{
		WorkingDir: provider.WorkingDirProviderDefault,
		SkillDirs:  []string{"skills"},
		RoleSkills: map[string][]string{
			provider.RoleManager:    {"og-board-manager"},
			provider.RoleIndividual: {"og-board-individual"},
		},
	}
}

func TestSyncWritesExactlyOneRoleSkill(t *testing.T) {
	ws := t.TempDir()
	s := NewSyncer(ports.OS())

	if err := s.SyncAgent("lead", provider.RoleManager, ws, openclawProfile()); err != nil {
		t.Fatalf("SyncAgent: %v", err)
	}

	path := filepath.Join(ws, "skills", "og-board-manager", "SKILL.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("manager SKILL.md missing: %v", err)
	}
	if !strings.Contains(string(data), "lead") {
		t.Errorf("SKILL.md should name the agent, got:\n%s", data)
	}
	if !strings.HasPrefix(string(data), "---\n") {
		t.Error("SKILL.md should start with YAML frontmatter")
	}

	var managed int
	for _, id := range provider.ManagedRoleSkillIDs {
		if _, err := os.Stat(filepath.Join(ws, "skills", id)); err == nil {
			managed++
		}
	}
	if managed != 1 {
		t.Errorf("managed role-skill dirs = %d, want 1", managed)
	}
}

func TestSyncSwitchesRole(t *testing.T) {
	ws := t.TempDir()
	s := NewSyncer(ports.OS())
	profile := openclawProfile()

	if err := s.SyncAgent("eng", provider.RoleManager, ws, profile); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if err := s.SyncAgent("eng", provider.RoleIndividual, ws, profile); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if _, err := os.Stat(filepath.Join(ws, "skills", "og-board-manager")); !os.IsNotExist(err) {
		t.Error("manager role skill should be removed after demotion")
	}
	if _, err := os.Stat(filepath.Join(ws, "skills", "og-board-individual", "SKILL.md")); err != nil {
		t.Errorf("individual role skill missing: %v", err)
	}
}

func TestSyncRemovesLegacyIDs(t *testing.T) {
	ws := t.TempDir()
	legacy := filepath.Join(ws, "skills", "manager")
	if err := os.MkdirAll(legacy, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(legacy, "SKILL.md"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSyncer(ports.OS())
	if err := s.SyncAgent("eng", provider.RoleIndividual, ws, openclawProfile()); err != nil {
		t.Fatalf("SyncAgent: %v", err)
	}
	if _, err := os.Stat(legacy); !os.IsNotExist(err) {
		t.Error("legacy manager skill should be removed")
	}
}

func TestCleanDir(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"og-boards", "keep-me"} {
		if err := os.MkdirAll(filepath.Join(dir, id), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	s := NewSyncer(ports.OS())
	if err := s.CleanDir(dir); err != nil {
		t.Fatalf("CleanDir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "og-boards")); !os.IsNotExist(err) {
		t.Error("og-boards should be cleaned")
	}
	if _, err := os.Stat(filepath.Join(dir, "keep-me")); err != nil {
		t.Error("unmanaged dirs must be left alone")
	}
}

func TestSyncCoversEverySkillDir(t *testing.T) {
	ws := t.TempDir()
	profile := openclawProfile()
	profile.SkillDirs = []string{"skills", filepath.Join(".agents", "skills")}

	s := NewSyncer(ports.OS())
	if err := s.SyncAgent("eng", provider.RoleIndividual, ws, profile); err != nil {
		t.Fatalf("SyncAgent: %v", err)
	}
	for _, rel := range profile.SkillDirs {
		if _, err := os.Stat(filepath.Join(ws, rel, "og-board-individual", "SKILL.md")); err != nil {
			t.Errorf("role skill missing under %s: %v", rel, err)
		}
	}
}
