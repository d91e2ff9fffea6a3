package skills

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/ports"
)

func newTestService(t *testing.T) (*Service, config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	return NewService(ports.OS(), paths), paths
}

func writeSourceSkill(t *testing.T, id, body string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: " + id + "\ndescription: test skill\n---\n\n" + body + "\n"
	if err := os.WriteFile(filepath.Join(dir, SkillFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestInstallGlobalFromDirectory(t *testing.T) {
	svc, paths := newTestService(t)
	src := writeSourceSkill(t, "research", "Look things up.")

	skill, err := svc.InstallGlobal(Source{Path: src})
	if err != nil {
		t.Fatalf("InstallGlobal: %v", err)
	}
	if skill.ID != "research" {
		t.Errorf("id = %q", skill.ID)
	}

	if _, err := os.Stat(filepath.Join(paths.SkillDir("research"), SkillFileName)); err != nil {
		t.Errorf("SKILL.md not placed: %v", err)
	}

	list, err := svc.ListGlobal()
	if err != nil {
		t.Fatalf("ListGlobal: %v", err)
	}
	if len(list) != 1 || list[0].ID != "research" {
		t.Errorf("list = %+v", list)
	}
}

func TestInstallGlobalInline(t *testing.T) {
	svc, _ := newTestService(t)

	skill, err := svc.InstallGlobal(Source{Inline: &InlineSkill{
		ID:   "triage",
		Body: "Sort incoming work by urgency.",
	}})
	if err != nil {
		t.Fatalf("InstallGlobal inline: %v", err)
	}
	if skill.Name != "triage" {
		t.Errorf("name fallback = %q", skill.Name)
	}

	list, _ := svc.ListGlobal()
	if len(list) != 1 || list[0].Description != "" {
		t.Errorf("list = %+v", list)
	}
}

func TestInstallGlobalFromURL(t *testing.T) {
	svc, paths := newTestService(t)
	manifest := "---\nname: web-research\ndescription: fetched skill\n---\n\nLook things up online.\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/skills/web-research/SKILL.md" {
			w.Write([]byte(manifest))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	t.Run("id from the parent of SKILL.md", func(t *testing.T) {
		skill, err := svc.InstallGlobal(Source{URL: server.URL + "/skills/web-research/SKILL.md"})
		if err != nil {
			t.Fatalf("InstallGlobal url: %v", err)
		}
		if skill.ID != "web-research" || skill.Name != "web-research" {
			t.Errorf("skill = %+v", skill)
		}
		if _, err := os.Stat(filepath.Join(paths.SkillDir("web-research"), SkillFileName)); err != nil {
			t.Errorf("SKILL.md not placed: %v", err)
		}
	})

	t.Run("missing manifest", func(t *testing.T) {
		_, err := svc.InstallGlobal(Source{URL: server.URL + "/skills/ghost/SKILL.md"})
		if !errs.IsKind(err, errs.KindValidation) {
			t.Errorf("kind = %v, want Validation", errs.KindOf(err))
		}
	})

	t.Run("scheme must be http", func(t *testing.T) {
		_, err := svc.InstallGlobal(Source{URL: "ftp://example.com/SKILL.md"})
		if !errs.IsKind(err, errs.KindValidation) {
			t.Errorf("kind = %v, want Validation", errs.KindOf(err))
		}
	})
}

func TestSourceIsExactlyOneOf(t *testing.T) {
	svc, _ := newTestService(t)
	src := writeSourceSkill(t, "research", "Look things up.")

	cases := []struct {
		name string
		src  Source
	}{
		{"empty", Source{}},
		{"path and url", Source{Path: src, URL: "https://example.com/SKILL.md"}},
		{"path and inline", Source{Path: src, Inline: &InlineSkill{ID: "x", Body: "y"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.InstallGlobal(tc.src)
			if !errs.IsKind(err, errs.KindValidation) {
				t.Errorf("kind = %v, want Validation", errs.KindOf(err))
			}
		})
	}
}

func TestInstallIntoWorkspaceDirs(t *testing.T) {
	svc, _ := newTestService(t)
	src := writeSourceSkill(t, "research", "Look things up.")

	ws := t.TempDir()
	targets := []string{
		filepath.Join(ws, "skills"),
		filepath.Join(ws, ".agents", "skills"),
	}

	if _, err := svc.InstallInto(targets, Source{Path: src}); err != nil {
		t.Fatalf("InstallInto: %v", err)
	}
	for _, dir := range targets {
		if _, err := os.Stat(filepath.Join(dir, "research", SkillFileName)); err != nil {
			t.Errorf("missing copy under %s: %v", dir, err)
		}
	}

	t.Run("list dedups across dirs", func(t *testing.T) {
		list, err := svc.ListIn(targets)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("remove clears every dir", func(t *testing.T) {
		if err := svc.RemoveFrom(targets, "research"); err != nil {
			t.Fatalf("RemoveFrom: %v", err)
		}
		for _, dir := range targets {
			if _, err := os.Stat(filepath.Join(dir, "research")); !os.IsNotExist(err) {
				t.Errorf("copy still present under %s", dir)
			}
		}
	})
}

func TestManagedIDsAreRefused(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.InstallGlobal(Source{Inline: &InlineSkill{ID: "og-board-manager", Body: "x"}})
	if !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("install managed id: kind = %v", errs.KindOf(err))
	}

	err = svc.RemoveGlobal("og-boards")
	if !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("remove managed id: kind = %v", errs.KindOf(err))
	}
}

func TestRemoveGlobalMissing(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.RemoveGlobal("ghost")
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("kind = %v, want NotFound", errs.KindOf(err))
	}
}

func TestInstallGlobalIntoTargets(t *testing.T) {
	svc, _ := newTestService(t)
	src := writeSourceSkill(t, "research", "Look things up.")
	if _, err := svc.InstallGlobal(Source{Path: src}); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(t.TempDir(), "skills")
	if _, err := svc.InstallGlobalInto([]string{target}, "research"); err != nil {
		t.Fatalf("InstallGlobalInto: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "research", SkillFileName)); err != nil {
		t.Error("global skill not copied into target")
	}

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.InstallGlobalInto([]string{target}, "ghost")
		if !errs.IsKind(err, errs.KindNotFound) {
			t.Errorf("kind = %v", errs.KindOf(err))
		}
	})
}
