package openclaw

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"opengoat/internal/agents"
	"opengoat/internal/config"
	"opengoat/internal/ports"
	"opengoat/internal/ports/portstest"
	"opengoat/internal/provider"
	"opengoat/internal/roleskill"
)

type reconcilerFixture struct {
	runner *portstest.ScriptedRunner
	store  *agents.Store
	rec    *Reconciler
	paths  config.Paths
}

func newReconcilerFixture(t *testing.T, runner *portstest.ScriptedRunner) *reconcilerFixture {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	clock := portstest.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	registry := provider.Builtins()
	store := agents.NewStore(ports.OS(), clock, paths, registry)
	store.SetRoleSkillSyncer(roleskill.NewSyncer(ports.OS()))
	client := NewClient(runner, ports.OS(), paths)
	rec := NewReconciler(client, store, registry, roleskill.NewSyncer(ports.OS()), ports.OS(), paths, "")
	return &reconcilerFixture{runner: runner, store: store, rec: rec, paths: paths}
}

func stubsFor(version, agentsJSON string) []portstest.Stub {
	return []portstest.Stub{
		{Args: []string{"version", "--json"}, Result: ports.CommandResult{Stdout: version}},
		{Args: []string{"skills", "list", "--json"}, Result: ports.CommandResult{
			Stdout: `{"workspaceDir":"/tmp/oc/ws","managedSkillsDir":"/tmp/oc/skills"}`}},
		{Args: []string{"agents", "list", "--json"}, Result: ports.CommandResult{Stdout: agentsJSON}},
	}
}

func TestSyncCreatesMissingAgents(t *testing.T) {
	runner := &portstest.ScriptedRunner{Stubs: stubsFor(`{"version":"1.0.0"}`, `{"agents":[]}`)}
	f := newReconcilerFixture(t, runner)
	if _, _, err := f.store.Create(context.Background(), agents.CreateRequest{
		ID: "root", Type: agents.TypeManager}); err != nil {
		t.Fatal(err)
	}

	report, err := f.rec.SyncRuntimeDefaults(context.Background())
	if err != nil {
		t.Fatalf("SyncRuntimeDefaults: %v", err)
	}
	if len(report.Created) != 1 || report.Created[0] != "root" {
		t.Errorf("created = %v", report.Created)
	}

	calls := runner.CallsMatching("agents", "add", "root")
	if len(calls) == 0 {
		t.Fatal("expected an agents add call for root")
	}
	if !hasArgPair(calls[0].Args, "--workspace", f.paths.WorkspaceDir("root")) {
		t.Errorf("add should target the OpenGoat workspace, got %v", calls[0].Args)
	}
}

func TestSyncVersionGateAborts(t *testing.T) {
	runner := &portstest.ScriptedRunner{Stubs: stubsFor(`{"version":"0.5.0"}`, `{"agents":[]}`)}
	f := newReconcilerFixture(t, runner)

	if _, err := f.rec.SyncRuntimeDefaults(context.Background()); err == nil {
		t.Fatal("old runtime version must abort the sync")
	}
	if len(runner.CallsMatching("agents", "list")) != 0 {
		t.Error("no inventory calls should happen after a failed version gate")
	}
}

func TestSyncRepairsStaleMapping(t *testing.T) {
	runner := &portstest.ScriptedRunner{}
	f := newReconcilerFixture(t, runner)
	if _, _, err := f.store.Create(context.Background(), agents.CreateRequest{
		ID: "root", Type: agents.TypeManager}); err != nil {
		t.Fatal(err)
	}

	staleWS := filepath.Join(f.paths.WorkspacesDir(), "root-old")
	runner.Stubs = stubsFor(`{"version":"1.0.0"}`,
		`{"agents":[{"id":"root","workspace":"`+staleWS+`"}]}`)

	report, err := f.rec.SyncRuntimeDefaults(context.Background())
	if err != nil {
		t.Fatalf("SyncRuntimeDefaults: %v", err)
	}
	if len(report.Repaired) != 1 || report.Repaired[0] != "root" {
		t.Errorf("repaired = %v", report.Repaired)
	}
	if len(runner.CallsMatching("agents", "delete", "root")) == 0 {
		t.Error("repair should delete the stale registration first")
	}
	if len(runner.CallsMatching("agents", "add", "root")) == 0 {
		t.Error("repair should recreate against the right workspace")
	}
}

func TestSyncPrunesOrphansButNotForeignAgents(t *testing.T) {
	runner := &portstest.ScriptedRunner{}
	f := newReconcilerFixture(t, runner)

	orphanWS := f.paths.WorkspaceDir("ghost")
	runner.Stubs = stubsFor(`{"version":"1.0.0"}`,
		`{"agents":[{"id":"ghost","workspace":"`+orphanWS+`"},`+
			`{"id":"foreign","workspace":"/somewhere/else"}]}`)

	report, err := f.rec.SyncRuntimeDefaults(context.Background())
	if err != nil {
		t.Fatalf("SyncRuntimeDefaults: %v", err)
	}
	if len(report.Deleted) != 1 || report.Deleted[0] != "ghost" {
		t.Errorf("deleted = %v", report.Deleted)
	}
	if len(runner.CallsMatching("agents", "delete", "foreign")) != 0 {
		t.Error("foreign agents must never be deleted")
	}
}

func TestSyncSkipsRepairWhenInventoryUnavailable(t *testing.T) {
	runner := &portstest.ScriptedRunner{
		Stubs: []portstest.Stub{
			{Args: []string{"version", "--json"}, Result: ports.CommandResult{Stdout: `{"version":"1.0.0"}`}},
			{Args: []string{"skills", "list", "--json"}, Result: ports.CommandResult{
				Stdout: `{"workspaceDir":"","managedSkillsDir":""}`}},
			{Args: []string{"agents", "list", "--json"}, Result: ports.CommandResult{
				ExitCode: 1, Stderr: "boom\n"}},
		},
	}
	f := newReconcilerFixture(t, runner)
	if _, _, err := f.store.Create(context.Background(), agents.CreateRequest{
		ID: "root", Type: agents.TypeManager}); err != nil {
		t.Fatal(err)
	}

	report, err := f.rec.SyncRuntimeDefaults(context.Background())
	if err != nil {
		t.Fatalf("an unavailable inventory must not fail the pass: %v", err)
	}
	var warned bool
	for _, w := range report.Warnings {
		if strings.Contains(w, "inventory unavailable") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("warnings = %v, want an inventory warning", report.Warnings)
	}
	if len(runner.CallsMatching("agents", "delete")) != 0 {
		t.Error("nothing may be deleted from an incomplete picture")
	}
	if len(runner.CallsMatching("agents", "add", "root")) == 0 {
		t.Error("creation should still be ensured; re-adding is idempotent")
	}
}
