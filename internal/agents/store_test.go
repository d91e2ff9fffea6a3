package agents

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/ports"
	"opengoat/internal/ports/portstest"
	"opengoat/internal/provider"
)

func newTestStore(t *testing.T) (*Store, config.Paths, *portstest.FakeClock) {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	clock := portstest.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	store := NewStore(ports.OS(), clock, paths, provider.Builtins())
	return store, paths, clock
}

func mustCreate(t *testing.T, s *Store, req CreateRequest) Agent {
	t.Helper()
	agent, _, err := s.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create(%s): %v", req.ID, err)
	}
	return agent
}

func seedOrg(t *testing.T, s *Store) (root, eng Agent) {
	t.Helper()
	root = mustCreate(t, s, CreateRequest{ID: "lead", Type: TypeManager, DisplayName: "Lead"})
	eng = mustCreate(t, s, CreateRequest{ID: "engineer", Role: "Developer"})
	return root, eng
}

func TestCreatePersistsConfig(t *testing.T) {
	s, paths, _ := newTestStore(t)
	root, eng := seedOrg(t, s)

	if root.ReportsTo != "" {
		t.Errorf("first agent should be root, reportsTo = %q", root.ReportsTo)
	}
	if eng.ReportsTo != "lead" {
		t.Errorf("engineer should default under the root, got %q", eng.ReportsTo)
	}
	if eng.Type != TypeIndividual {
		t.Errorf("default type = %q", eng.Type)
	}
	if eng.ProviderID() != "openclaw" {
		t.Errorf("default provider = %q", eng.ProviderID())
	}

	data, err := os.ReadFile(paths.AgentConfigPath("engineer"))
	if err != nil {
		t.Fatalf("config.json missing: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("config.json unparseable: %v", err)
	}
	runtime, ok := raw["runtime"].(map[string]any)
	if !ok {
		t.Fatal("config.json missing runtime block")
	}
	skills, ok := runtime["skills"].(map[string]any)
	if !ok || skills["assigned"] == nil {
		t.Error("config.json missing runtime.skills.assigned")
	}
}

func TestCreateScaffoldsWorkspace(t *testing.T) {
	s, paths, _ := newTestStore(t)
	seedOrg(t, s)

	ws := paths.WorkspaceDir("engineer")
	for _, name := range []string{"AGENTS.md", "ROLE.md", "SOUL.md", "BOOTSTRAP.md"} {
		if _, err := os.Stat(filepath.Join(ws, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(ws, "skills")); err != nil {
		t.Errorf("missing openclaw skills dir: %v", err)
	}

	t.Run("organization symlink", func(t *testing.T) {
		target, err := os.Readlink(filepath.Join(ws, "organization"))
		if err != nil {
			t.Fatalf("organization link: %v", err)
		}
		if target != filepath.Join("..", "..", "organization") {
			t.Errorf("target = %q", target)
		}
	})

	t.Run("reportee symlink under manager", func(t *testing.T) {
		link := filepath.Join(paths.ReporteesDir("lead"), "engineer")
		target, err := os.Readlink(link)
		if err != nil {
			t.Fatalf("reportee link: %v", err)
		}
		if target != filepath.Join("..", "..", "engineer") {
			t.Errorf("target = %q", target)
		}
	})

	t.Run("role file carries the role", func(t *testing.T) {
		data, _ := os.ReadFile(filepath.Join(ws, "ROLE.md"))
		if !strings.Contains(string(data), "Developer") {
			t.Errorf("ROLE.md = %q", data)
		}
	})
}

func TestCreateRejections(t *testing.T) {
	s, _, _ := newTestStore(t)
	seedOrg(t, s)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateRequest
		kind errs.Kind
	}{
		{"bad id", CreateRequest{ID: "Bad_ID"}, errs.KindValidation},
		{"unknown provider", CreateRequest{ID: "x1", Provider: "gpt"}, errs.KindNotFound},
		{"manager on codex", CreateRequest{ID: "x2", Type: TypeManager, Provider: "codex"}, errs.KindAuthorityDenied},
		{"reports to ghost", CreateRequest{ID: "x3", ReportsTo: "ghost"}, errs.KindNotFound},
		{"reports to individual", CreateRequest{ID: "x4", ReportsTo: "engineer"}, errs.KindValidation},
		{"self manager", CreateRequest{ID: "x5", ReportsTo: "x5"}, errs.KindValidation},
		{"unknown type", CreateRequest{ID: "x6", Type: "contractor"}, errs.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := s.Create(ctx, tc.req)
			if err == nil {
				t.Fatal("create unexpectedly succeeded")
			}
			if errs.KindOf(err) != tc.kind {
				t.Errorf("kind = %v, want %v (%v)", errs.KindOf(err), tc.kind, err)
			}
		})
	}

	t.Run("manager denial names the provider", func(t *testing.T) {
		_, _, err := s.Create(ctx, CreateRequest{ID: "x7", Type: TypeManager, Provider: "codex"})
		if err == nil || !strings.Contains(err.Error(), "codex") {
			t.Errorf("error should name codex: %v", err)
		}
	})
}

type fakeRuntime struct {
	createErr error
	created   []string
	deleted   []string
}

func (f *fakeRuntime) CreateAgent(ctx context.Context, id, workspace string) error {
	f.created = append(f.created, id)
	return f.createErr
}

func (f *fakeRuntime) DeleteAgent(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestCreateIsIdempotent(t *testing.T) {
	s, paths, _ := newTestStore(t)
	seedOrg(t, s)
	ctx := context.Background()

	soul := filepath.Join(paths.WorkspaceDir("engineer"), "SOUL.md")
	if err := os.WriteFile(soul, []byte("hand-edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rt := &fakeRuntime{}
	s.SetRuntimeSyncer(rt)

	t.Run("existing agent is re-synced, files untouched", func(t *testing.T) {
		agent, _, err := s.Create(ctx, CreateRequest{ID: "engineer", DisplayName: "Someone Else"})
		if err != nil {
			t.Fatalf("repeat create: %v", err)
		}
		if agent.DisplayName != "engineer" {
			t.Errorf("display name overwritten: %q", agent.DisplayName)
		}
		data, _ := os.ReadFile(soul)
		if string(data) != "hand-edited\n" {
			t.Errorf("SOUL.md rewritten: %q", data)
		}
		if len(rt.created) != 1 || rt.created[0] != "engineer" {
			t.Errorf("runtime sync calls = %v", rt.created)
		}
	})

	t.Run("runtime trouble on re-sync is a warning", func(t *testing.T) {
		rt.createErr = errs.Transient("gateway down")
		_, warnings, err := s.Create(ctx, CreateRequest{ID: "engineer"})
		if err != nil {
			t.Fatalf("repeat create: %v", err)
		}
		if len(warnings) == 0 || !strings.Contains(warnings[0], "runtime create") {
			t.Errorf("warnings = %v", warnings)
		}
		if _, err := os.Stat(soul); err != nil {
			t.Errorf("workspace lost: %v", err)
		}
	})
}

func TestCreateRollsBackOnRuntimeFailure(t *testing.T) {
	s, paths, _ := newTestStore(t)
	seedOrg(t, s)
	ctx := context.Background()

	rt := &fakeRuntime{createErr: errs.Transient("gateway down")}
	s.SetRuntimeSyncer(rt)

	_, _, err := s.Create(ctx, CreateRequest{ID: "newbie"})
	if !errs.IsKind(err, errs.KindRuntimeSync) {
		t.Fatalf("kind = %v, want RuntimeSync (%v)", errs.KindOf(err), err)
	}
	if _, err := os.Stat(paths.AgentDir("newbie")); !os.IsNotExist(err) {
		t.Error("agent dir left behind")
	}
	if _, err := os.Stat(paths.WorkspaceDir("newbie")); !os.IsNotExist(err) {
		t.Error("workspace left behind")
	}
	if _, err := os.Lstat(filepath.Join(paths.ReporteesDir("lead"), "newbie")); !os.IsNotExist(err) {
		t.Error("reportee link left behind")
	}

	rt.createErr = nil
	if _, _, err := s.Create(ctx, CreateRequest{ID: "newbie"}); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
}

func TestCreateDerivesIDFromDisplayName(t *testing.T) {
	s, _, _ := newTestStore(t)
	seedOrg(t, s)

	agent := mustCreate(t, s, CreateRequest{DisplayName: "Research Analyst #2"})
	if agent.ID != "research-analyst-2" {
		t.Errorf("id = %q", agent.ID)
	}
	if agent.DisplayName != "Research Analyst #2" {
		t.Errorf("display name = %q", agent.DisplayName)
	}
}

func TestDeriveID(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Research Analyst", "research-analyst"},
		{"  QA -- Lead  ", "qa-lead"},
		{"Ops", "ops"},
		{"C3PO", "c3po"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := DeriveID(tc.name); got != tc.want {
			t.Errorf("DeriveID(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestListOrdersRootFirstThenDisplayName(t *testing.T) {
	s, _, _ := newTestStore(t)
	mustCreate(t, s, CreateRequest{ID: "zed", Type: TypeManager, DisplayName: "Zed"})
	mustCreate(t, s, CreateRequest{ID: "bob", DisplayName: "bob"})
	mustCreate(t, s, CreateRequest{ID: "alice", DisplayName: "Alice"})

	all, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, a := range all {
		ids = append(ids, a.ID)
	}
	want := []string{"zed", "alice", "bob"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("individual removes record, workspace and link", func(t *testing.T) {
		s, paths, _ := newTestStore(t)
		seedOrg(t, s)

		removed, _, err := s.Delete(ctx, "engineer", false)
		if err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if len(removed) != 1 || removed[0] != "engineer" {
			t.Errorf("removed = %v, want [engineer]", removed)
		}
		if _, err := os.Stat(paths.AgentDir("engineer")); !os.IsNotExist(err) {
			t.Error("agent dir still present")
		}
		if _, err := os.Stat(paths.WorkspaceDir("engineer")); !os.IsNotExist(err) {
			t.Error("workspace still present")
		}
		if _, err := os.Lstat(filepath.Join(paths.ReporteesDir("lead"), "engineer")); !os.IsNotExist(err) {
			t.Error("reportee link still present")
		}
	})

	t.Run("manager with reportees needs cascade", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		seedOrg(t, s)
		mustCreate(t, s, CreateRequest{ID: "mid", Type: TypeManager, ReportsTo: "lead"})
		if err := s.SetManager("engineer", "mid"); err != nil {
			t.Fatal(err)
		}

		_, _, err := s.Delete(ctx, "mid", false)
		if !errs.IsKind(err, errs.KindValidation) {
			t.Fatalf("kind = %v, want Validation", errs.KindOf(err))
		}

		if _, _, err := s.Delete(ctx, "mid", true); err != nil {
			t.Fatalf("cascade delete: %v", err)
		}
		eng, err := s.Get("engineer")
		if err != nil {
			t.Fatal(err)
		}
		if eng.ReportsTo != "lead" {
			t.Errorf("reportee reassigned to %q, want lead", eng.ReportsTo)
		}
	})

	t.Run("root with reportees cannot cascade", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		seedOrg(t, s)
		_, _, err := s.Delete(ctx, "lead", true)
		if !errs.IsKind(err, errs.KindValidation) {
			t.Errorf("kind = %v, want Validation", errs.KindOf(err))
		}
	})

	t.Run("missing agent", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		_, _, err := s.Delete(ctx, "ghost", false)
		if !errs.IsKind(err, errs.KindNotFound) {
			t.Errorf("kind = %v, want NotFound", errs.KindOf(err))
		}
	})
}

func TestUpdate(t *testing.T) {
	s, paths, clock := newTestStore(t)
	seedOrg(t, s)

	clock.Advance(time.Minute)
	role := "Senior Developer"
	priority := 5
	updated, err := s.Update("engineer", UpdateRequest{Role: &role, Priority: &priority})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Role != role || updated.Priority != 5 {
		t.Errorf("updated = %+v", updated)
	}
	if updated.UpdatedAt <= updated.CreatedAt {
		t.Error("updatedAt not advanced")
	}
	if updated.DisplayName != "engineer" {
		t.Errorf("untouched field changed: %q", updated.DisplayName)
	}

	data, _ := os.ReadFile(filepath.Join(paths.WorkspaceDir("engineer"), "ROLE.md"))
	if !strings.Contains(string(data), "Senior Developer") {
		t.Error("ROLE.md not refreshed after role change")
	}
}

func TestSetProvider(t *testing.T) {
	s, paths, _ := newTestStore(t)
	seedOrg(t, s)
	ctx := context.Background()

	t.Run("moves skill layout", func(t *testing.T) {
		agent, _, err := s.SetProvider(ctx, "engineer", "codex")
		if err != nil {
			t.Fatalf("SetProvider: %v", err)
		}
		if agent.ProviderID() != "codex" {
			t.Errorf("provider = %q", agent.ProviderID())
		}
		if _, err := os.Stat(filepath.Join(paths.WorkspaceDir("engineer"), ".agents", "skills")); err != nil {
			t.Errorf("codex skill dir missing: %v", err)
		}
	})

	t.Run("manager cannot move to model cli", func(t *testing.T) {
		_, _, err := s.SetProvider(ctx, "lead", "codex")
		if !errs.IsKind(err, errs.KindAuthorityDenied) {
			t.Errorf("kind = %v, want AuthorityDenied", errs.KindOf(err))
		}
	})
}

func TestSkillAssignments(t *testing.T) {
	s, _, _ := newTestStore(t)
	seedOrg(t, s)

	agent, err := s.AssignSkill("engineer", "research")
	if err != nil {
		t.Fatal(err)
	}
	agent, err = s.AssignSkill("engineer", "research")
	if err != nil {
		t.Fatal(err)
	}
	if len(agent.Runtime.Skills.Assigned) != 1 {
		t.Errorf("assigned = %v, want deduplicated", agent.Runtime.Skills.Assigned)
	}

	agent, err = s.UnassignSkill("engineer", "research")
	if err != nil {
		t.Fatal(err)
	}
	if len(agent.Runtime.Skills.Assigned) != 0 {
		t.Errorf("assigned = %v after unassign", agent.Runtime.Skills.Assigned)
	}
}

func TestEnsureDefaultAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("creates root in empty org", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		id, _, err := s.EnsureDefaultAgent(ctx, "")
		if err != nil {
			t.Fatal(err)
		}
		if id != "root" {
			t.Errorf("id = %q", id)
		}
		root, err := s.Get("root")
		if err != nil {
			t.Fatal(err)
		}
		if !root.IsManager() || root.ReportsTo != "" {
			t.Errorf("root = %+v", root)
		}
	})

	t.Run("existing default is kept", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		seedOrg(t, s)
		id, _, err := s.EnsureDefaultAgent(ctx, "lead")
		if err != nil || id != "lead" {
			t.Errorf("id = %q, err = %v", id, err)
		}
	})

	t.Run("missing default in non-empty org", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		seedOrg(t, s)
		_, _, err := s.EnsureDefaultAgent(ctx, "ghost")
		if !errs.IsKind(err, errs.KindValidation) {
			t.Errorf("kind = %v, want Validation", errs.KindOf(err))
		}
	})
}

func TestGetInfo(t *testing.T) {
	s, paths, _ := newTestStore(t)
	seedOrg(t, s)

	info, err := s.GetInfo("engineer")
	if err != nil {
		t.Fatal(err)
	}
	if info.Provider.ID != "openclaw" {
		t.Errorf("provider = %q", info.Provider.ID)
	}
	if info.WorkspacePath != paths.WorkspaceDir("engineer") {
		t.Errorf("workspace = %q", info.WorkspacePath)
	}
	if len(info.SkillDirs) != 1 || !strings.HasSuffix(info.SkillDirs[0], filepath.Join("engineer", "skills")) {
		t.Errorf("skill dirs = %v", info.SkillDirs)
	}
	if !info.HasBootstrap {
		t.Error("new agent should still carry BOOTSTRAP.md")
	}
}
