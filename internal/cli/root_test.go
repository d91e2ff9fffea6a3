package cli

import (
	"context"
	"testing"

	"opengoat/internal/config"
	"opengoat/internal/errs"
)

func TestExitCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errs.Validation("bad input"), 2},
		{"authority", errs.AuthorityDenied("not your reportee"), 2},
		{"not found", errs.NotFound("no such agent"), 3},
		{"runtime sync", errs.RuntimeSync("openclaw unreachable"), 4},
		{"transient", errs.Transient("queue full"), 5},
		{"cancelled", errs.Cancelled("interrupted"), 130},
		{"fatal", errs.Fatal("corrupt state"), 1},
		{"deadline counts as cancelled", context.DeadlineExceeded, 130},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestCommandTreeIsComplete(t *testing.T) {
	root := NewRootCmd()

	want := []string{
		"init", "serve", "sync", "doctor", "reset", "version",
		"agent", "task", "session", "run", "skill", "cron",
		"settings", "auth",
	}
	have := map[string]bool{}
	for _, cmd := range root.Commands() {
		have[cmd.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestVersionCommandRuns(t *testing.T) {
	t.Setenv("OPENGOAT_HOME", t.TempDir())
	config.Reset()
	t.Cleanup(config.Reset)

	root := NewRootCmd()
	root.SetArgs([]string{"version", "--json"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version: %v", err)
	}
}
