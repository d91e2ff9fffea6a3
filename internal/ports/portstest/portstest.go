// Package portstest provides scripted fakes for the ports used in tests.
package portstest

import (
	"context"
	"strings"
	"sync"
	"time"

	"opengoat/internal/ports"
)

// FakeClock is a settable Clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a clock frozen at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Stub matches an invocation whose args start with Args.
type Stub struct {
	Args   []string
	Result ports.CommandResult
	Err    error
}

// ScriptedRunner replays stubbed results and records every invocation.
type ScriptedRunner struct {
	mu    sync.Mutex
	Stubs []Stub
	// Default is returned when no stub matches.
	Default ports.CommandResult
	calls   []ports.CommandSpec
}

func (r *ScriptedRunner) Run(ctx context.Context, spec ports.CommandSpec) (ports.CommandResult, error) {
	return r.dispatch(ctx, spec, nil, nil)
}

func (r *ScriptedRunner) RunStreaming(ctx context.Context, spec ports.CommandSpec, onStdout, onStderr ports.LineHandler) (ports.CommandResult, error) {
	return r.dispatch(ctx, spec, onStdout, onStderr)
}

func (r *ScriptedRunner) dispatch(ctx context.Context, spec ports.CommandSpec, onStdout, onStderr ports.LineHandler) (ports.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.CommandResult{ExitCode: -1}, err
	}

	r.mu.Lock()
	r.calls = append(r.calls, spec)
	stub, ok := r.match(spec.Args)
	r.mu.Unlock()

	result := r.Default
	var err error
	if ok {
		result = stub.Result
		err = stub.Err
	}
	if onStdout != nil && result.Stdout != "" {
		for _, line := range strings.Split(strings.TrimRight(result.Stdout, "\n"), "\n") {
			onStdout(line)
		}
	}
	if onStderr != nil && result.Stderr != "" {
		for _, line := range strings.Split(strings.TrimRight(result.Stderr, "\n"), "\n") {
			onStderr(line)
		}
	}
	return result, err
}

func (r *ScriptedRunner) match(args []string) (Stub, bool) {
	for _, s := range r.Stubs {
		if len(args) < len(s.Args) {
			continue
		}
		matched := true
		for i, want := range s.Args {
			if args[i] != want {
				matched = false
				break
			}
		}
		if matched {
			return s, true
		}
	}
	return Stub{}, false
}

// Calls returns a copy of every recorded invocation.
func (r *ScriptedRunner) Calls() []ports.CommandSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.CommandSpec, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsMatching returns recorded invocations whose args start with prefix.
func (r *ScriptedRunner) CallsMatching(prefix ...string) []ports.CommandSpec {
	var out []ports.CommandSpec
	for _, call := range r.Calls() {
		if len(call.Args) < len(prefix) {
			continue
		}
		matched := true
		for i, want := range prefix {
			if call.Args[i] != want {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, call)
		}
	}
	return out
}
