package openclaw

import (
	"context"
	"strings"
	"testing"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/ports"
	"opengoat/internal/ports/portstest"
)

func newTestClient(t *testing.T, runner *portstest.ScriptedRunner) (*Client, config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	return NewClient(runner, ports.OS(), paths), paths
}

func TestVersionGate(t *testing.T) {
	cases := []struct {
		name    string
		stdout  string
		wantErr errs.Kind
	}{
		{name: "supported", stdout: `{"version":"1.4.0"}`},
		{name: "noisy but supported", stdout: "Config warnings: x\n{\"version\":\"0.9.0\"}"},
		{name: "too old", stdout: `{"version":"0.8.2"}`, wantErr: errs.KindRuntimeSync},
		{name: "garbage", stdout: "no json", wantErr: errs.KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &portstest.ScriptedRunner{
				Stubs: []portstest.Stub{{
					Args:   []string{"version", "--json"},
					Result: ports.CommandResult{Stdout: tc.stdout},
				}},
			}
			client, _ := newTestClient(t, runner)

			_, err := client.Version(context.Background())
			if tc.wantErr == errs.KindUnknown {
				if err != nil {
					t.Fatalf("Version: %v", err)
				}
				return
			}
			if !errs.IsKind(err, tc.wantErr) {
				t.Errorf("err = %v, want kind %v", err, tc.wantErr)
			}
		})
	}
}

func TestListAgentsParsesNoisyOutput(t *testing.T) {
	runner := &portstest.ScriptedRunner{
		Stubs: []portstest.Stub{{
			Args: []string{"agents", "list", "--json"},
			Result: ports.CommandResult{
				Stdout: "Config warnings: deprecated\n" +
					`{"agents":[{"id":"root","workspace":"/ws/root"}]}`,
			},
		}},
	}
	client, _ := newTestClient(t, runner)

	agents, err := client.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "root" || agents[0].Workspace != "/ws/root" {
		t.Errorf("agents = %+v", agents)
	}
}

func TestCommandFailureCarriesRuntimeMessage(t *testing.T) {
	runner := &portstest.ScriptedRunner{
		Stubs: []portstest.Stub{{
			Args: []string{"agents", "delete", "ghost", "--json"},
			Result: ports.CommandResult{
				ExitCode: 1,
				Stdout:   `{"error":"agent ghost is locked"}`,
			},
		}},
	}
	client, _ := newTestClient(t, runner)

	err := client.DeleteAgent(context.Background(), "ghost")
	if !errs.IsKind(err, errs.KindRuntimeSync) {
		t.Fatalf("err = %v, want runtime-sync", err)
	}
	if got := err.Error(); !strings.Contains(got, "agent ghost is locked") {
		t.Errorf("error should carry the runtime message, got %q", got)
	}
}

func TestCreateAgentAlreadyExistsIsSuccess(t *testing.T) {
	runner := &portstest.ScriptedRunner{
		Stubs: []portstest.Stub{{
			Args: []string{"agents", "add", "root"},
			Result: ports.CommandResult{
				ExitCode: 1,
				Stderr:   "agent root already exists\n",
			},
		}},
	}
	client, _ := newTestClient(t, runner)

	if err := client.CreateAgent(context.Background(), "root", "/ws/root"); err != nil {
		t.Errorf("already-exists should be success, got %v", err)
	}
}

func TestGatewayConfigRoundTrip(t *testing.T) {
	client, _ := newTestClient(t, &portstest.ScriptedRunner{})

	cfg, err := client.GatewayConfig()
	if err != nil {
		t.Fatalf("default GatewayConfig: %v", err)
	}
	if cfg.Enabled {
		t.Error("gateway must default to disabled")
	}

	want := GatewayConfig{Enabled: true, URL: "http://127.0.0.1:8777", Token: "secret"}
	if err := client.SetGatewayConfig(want); err != nil {
		t.Fatalf("SetGatewayConfig: %v", err)
	}
	got, err := client.GatewayConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	t.Run("enabled without url is rejected", func(t *testing.T) {
		err := client.SetGatewayConfig(GatewayConfig{Enabled: true})
		if !errs.IsKind(err, errs.KindValidation) {
			t.Errorf("err = %v, want validation", err)
		}
	})
}

func TestInvokeBinaryParsesEnvelopeSessionID(t *testing.T) {
	runner := &portstest.ScriptedRunner{
		Stubs: []portstest.Stub{{
			Args: []string{"agent", "run", "eng"},
			Result: ports.CommandResult{
				Stdout: `{"runId":"r-2","status":"ok","result":{"sessionId":"s-77","payloads":[{"text":"done"}]}}`,
			},
		}},
	}
	client, _ := newTestClient(t, runner)

	res, err := client.Invoke(context.Background(), InvokeRequest{
		AgentID:   "eng",
		SessionID: "main",
		Message:   "hello",
	}, nil, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.SessionID != "s-77" {
		t.Errorf("sessionID = %q, want s-77", res.SessionID)
	}

	calls := runner.CallsMatching("agent", "run", "eng")
	if len(calls) != 1 {
		t.Fatalf("calls = %d", len(calls))
	}
	if !hasArgPair(calls[0].Args, "--session", "main") {
		t.Errorf("missing --session main in %v", calls[0].Args)
	}
	if !hasArgPair(calls[0].Args, "--message", "hello") {
		t.Errorf("missing --message hello in %v", calls[0].Args)
	}
}

func hasArgPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
