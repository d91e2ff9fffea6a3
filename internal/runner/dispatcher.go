package runner

import (
	"context"
	"strings"
	"time"

	"opengoat/internal/agents"
	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/history"
	"opengoat/internal/openclaw"
	"opengoat/internal/ports"
	"opengoat/internal/provider"
	"opengoat/internal/sessions"
	"opengoat/pkg/logger"
)

// DefaultTimeout bounds a run when the request names none.
const DefaultTimeout = 15 * time.Minute

// logPollInterval paces the runtime log tail during a run.
const logPollInterval = 750 * time.Millisecond

// ActionRecorder is the slice of the history store the dispatcher needs.
type ActionRecorder interface {
	RecordAction(agentID string, kind history.ActionKind, detail, sessionKey string) (history.Action, error)
}

// RunRequest asks for one agent run.
type RunRequest struct {
	AgentID    string
	SessionKey string // defaults to agent:main
	Message    string
	Timeout    time.Duration
	ExtraArgs  []string // passthrough to the provider CLI
	ForceNew   bool     // rotate the provider session id first
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	AgentID    string        `json:"agentId"`
	SessionKey string        `json:"sessionKey"`
	Reply      string        `json:"reply"`
	ExitCode   int           `json:"exitCode"`
	Duration   time.Duration `json:"duration"`
	Activities []string      `json:"activities,omitempty"`
}

// Dispatcher executes runs with per-session serialization.
type Dispatcher struct {
	agents   *agents.Store
	registry *provider.Registry
	sessions *sessions.Store
	client   *openclaw.Client
	runner   ports.CommandRunner
	fs       ports.Filesystem
	clock    ports.Clock
	paths    config.Paths
	history  ActionRecorder // optional
	logDir   string         // openclaw runtime log dir, "" for the default
	queue    *runQueue
}

// NewDispatcher wires a dispatcher over the shared stores.
func NewDispatcher(
	agentStore *agents.Store,
	registry *provider.Registry,
	sessionStore *sessions.Store,
	client *openclaw.Client,
	commandRunner ports.CommandRunner,
	fs ports.Filesystem,
	clock ports.Clock,
	paths config.Paths,
) *Dispatcher {
	return &Dispatcher{
		agents:   agentStore,
		registry: registry,
		sessions: sessionStore,
		client:   client,
		runner:   commandRunner,
		fs:       fs,
		clock:    clock,
		paths:    paths,
		queue:    newRunQueue(16, 30*time.Second),
	}
}

// SetHistory wires the action recorder (optional).
func (d *Dispatcher) SetHistory(h ActionRecorder) { d.history = h }

// SetRuntimeLogDir overrides where runtime activity is tailed from.
func (d *Dispatcher) SetRuntimeLogDir(dir string) { d.logDir = dir }

// Pending reports queued runs for a session key of an agent.
func (d *Dispatcher) Pending(agentID, key string) int {
	return d.queue.pending(agentID + "/" + key)
}

// Shutdown drains the queue.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	return d.queue.shutdown(ctx)
}

// RunAgent executes one run synchronously. Runs sharing a session key
// are serialized; distinct keys proceed in parallel.
func (d *Dispatcher) RunAgent(ctx context.Context, req RunRequest) (RunResult, error) {
	return d.runQueued(ctx, req, nil)
}

// RunStream executes a run asynchronously and returns its event
// channel, closed after the terminal event.
func (d *Dispatcher) RunStream(ctx context.Context, req RunRequest) (<-chan Event, error) {
	if err := d.validate(&req); err != nil {
		return nil, err
	}
	events := make(chan Event, 64)
	go func() {
		defer close(events)
		emit := func(e Event) {
			select {
			case events <- e:
			default:
				// A slow consumer loses intermediate events, never the run.
			}
		}
		if _, err := d.runQueued(ctx, req, emit); err != nil {
			// An aborted run already delivered its completed event with
			// the partial output.
			if errs.IsKind(err, errs.KindCancelled) {
				return
			}
			select {
			case events <- RunFailed(req.AgentID, req.SessionKey, err):
			default:
			}
		}
	}()
	return events, nil
}

func (d *Dispatcher) validate(req *RunRequest) error {
	if req.SessionKey == "" {
		req.SessionKey = sessions.ScopeAgent + ":" + sessions.DefaultSlug
	}
	if _, _, err := sessions.ParseKey(req.SessionKey); err != nil {
		return err
	}
	if strings.TrimSpace(req.Message) == "" {
		return errs.Validation("run message must not be empty")
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	return nil
}

func (d *Dispatcher) runQueued(ctx context.Context, req RunRequest, emit func(Event)) (RunResult, error) {
	if err := d.validate(&req); err != nil {
		return RunResult{}, err
	}
	agent, err := d.agents.Get(req.AgentID)
	if err != nil {
		return RunResult{}, err
	}
	prov, err := d.registry.Get(agent.ProviderID())
	if err != nil {
		return RunResult{}, err
	}

	var result RunResult
	resultCh, err := d.queue.enqueue(req.AgentID+"/"+req.SessionKey, ctx, func(taskCtx context.Context) error {
		runCtx, cancel := context.WithTimeout(taskCtx, req.Timeout)
		defer cancel()
		var runErr error
		result, runErr = d.run(runCtx, req, agent, prov, emit)
		return runErr
	})
	if err != nil {
		return RunResult{}, err
	}
	if runErr := <-resultCh; runErr != nil {
		if emit == nil && ctx.Err() != nil {
			return RunResult{}, errs.Cancelled("run for %s cancelled: %v", req.AgentID, ctx.Err())
		}
		return RunResult{}, runErr
	}
	return result, nil
}

// run is the body of one dispatch, executed on the session worker.
func (d *Dispatcher) run(ctx context.Context, req RunRequest, agent agents.Agent, prov provider.Provider, emit func(Event)) (RunResult, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	key := req.SessionKey
	startedAt := d.clock.Now()

	if _, _, err := d.sessions.Prepare(req.AgentID, key, req.ForceNew); err != nil {
		return RunResult{}, err
	}
	if _, err := d.sessions.Append(req.AgentID, key, sessions.Entry{
		At:   startedAt.UnixMilli(),
		Role: "user",
		Text: req.Message,
	}); err != nil {
		return RunResult{}, err
	}

	emit(RunStarted(req.AgentID, key))
	logger.Info().Str("agent", req.AgentID).Str("session", key).Str("provider", prov.ID).Msg("run started")

	var invoke openclaw.InvokeResult
	var activities []string
	var err error
	switch prov.Kind {
	case provider.KindAgentRuntime:
		invoke, activities, err = d.invokeRuntime(ctx, req, emit, startedAt.UnixMilli())
	case provider.KindModelCLI:
		invoke, err = d.invokeModelCLI(ctx, req, prov, emit)
	default:
		err = errs.Fatal("provider %s has unknown kind %q", prov.ID, prov.Kind)
	}
	if err != nil {
		return RunResult{}, err
	}
	emit(InvocationCompleted(req.AgentID, key))

	aborted := ctx.Err() != nil ||
		(invoke.ExitCode != 0 && strings.Contains(invoke.Stderr, "aborted"))
	if aborted {
		// Partial output still belongs to the session; subscribers get
		// the terminal event with whatever arrived before the abort.
		partial := sanitizeReply(invoke.Stdout)
		if partial != "" {
			if _, err := d.sessions.Append(req.AgentID, key, sessions.Entry{
				At:   d.clock.Now().UnixMilli(),
				Role: "assistant",
				Text: partial,
			}); err != nil {
				logger.Warn().Err(err).Str("agent", req.AgentID).Msg("could not append partial output")
			}
		}
		emit(RunCompleted(req.AgentID, key, partial))
		return RunResult{}, errs.Cancelled("run for %s aborted", req.AgentID)
	}
	if invoke.ExitCode != 0 {
		return RunResult{}, errs.RuntimeSync("provider %s exited with %d: %s",
			prov.ID, invoke.ExitCode, strings.TrimSpace(openclaw.StripNoise(invoke.Stderr)))
	}

	reply := sanitizeReply(invoke.Stdout)
	if _, err := d.sessions.Append(req.AgentID, key, sessions.Entry{
		At:   d.clock.Now().UnixMilli(),
		Role: "assistant",
		Text: reply,
	}); err != nil {
		return RunResult{}, err
	}
	if invoke.SessionID != "" {
		if err := d.sessions.SetSessionID(req.AgentID, key, invoke.SessionID); err != nil {
			logger.Warn().Err(err).Str("agent", req.AgentID).Msg("could not pin provider session id")
		}
	}

	if d.agents.HasBootstrap(req.AgentID) {
		if err := d.agents.ClearBootstrap(req.AgentID); err != nil {
			logger.Warn().Err(err).Str("agent", req.AgentID).Msg("could not clear bootstrap sentinel")
		}
	}
	if d.history != nil {
		if _, err := d.history.RecordAction(req.AgentID, history.ActionRunCompleted, truncate(reply, 200), key); err != nil {
			logger.Warn().Err(err).Msg("could not record run in history")
		}
	}

	emit(RunCompleted(req.AgentID, key, reply))
	duration := d.clock.Now().Sub(startedAt)
	logger.Info().Str("agent", req.AgentID).Str("session", key).
		Dur("duration", duration).Msg("run completed")

	return RunResult{
		AgentID:    req.AgentID,
		SessionKey: key,
		Reply:      reply,
		ExitCode:   invoke.ExitCode,
		Duration:   duration,
		Activities: activities,
	}, nil
}

// invokeRuntime drives an OpenClaw run and tails the runtime log for
// activity while it is in flight.
func (d *Dispatcher) invokeRuntime(ctx context.Context, req RunRequest, emit func(Event), startedAtMs int64) (openclaw.InvokeResult, []string, error) {
	_, slug, err := sessions.ParseKey(req.SessionKey)
	if err != nil {
		return openclaw.InvokeResult{}, nil, err
	}

	tailer := openclaw.NewLogTailer(d.fs, d.logDir)
	tailer.Poll() // discard the backlog

	var activities []string
	done := make(chan struct{})
	tailDone := make(chan struct{})
	go func() {
		defer close(tailDone)
		ticker := time.NewTicker(logPollInterval)
		defer ticker.Stop()
		fallback := ""
		poll := func() {
			lines, err := tailer.Poll()
			if err != nil || len(lines) == 0 {
				return
			}
			extracted := openclaw.ExtractActivities(lines, "", fallback, startedAtMs)
			fallback = extracted.NextFallbackRunID
			for _, a := range extracted.Activities {
				activities = append(activities, a)
				emit(Activity(req.AgentID, req.SessionKey, a))
			}
		}
		for {
			select {
			case <-done:
				poll() // final sweep
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	result, err := d.client.Invoke(ctx, openclaw.InvokeRequest{
		AgentID:   req.AgentID,
		SessionID: slug,
		Message:   req.Message,
		ExtraArgs: req.ExtraArgs,
	}, func(line string) {
		emit(StdoutLine(req.AgentID, req.SessionKey, line))
	}, func(line string) {
		emit(StderrLine(req.AgentID, req.SessionKey, line))
	})

	close(done)
	<-tailDone
	return result, activities, err
}

// invokeModelCLI runs a plain model CLI with the message on stdin.
func (d *Dispatcher) invokeModelCLI(ctx context.Context, req RunRequest, prov provider.Provider, emit func(Event)) (openclaw.InvokeResult, error) {
	if prov.Command == "" {
		return openclaw.InvokeResult{}, errs.Fatal("provider %s has no command configured", prov.ID)
	}
	spec := ports.CommandSpec{
		Path:  prov.Command,
		Args:  append(append([]string{}, prov.InvokeArgs...), req.ExtraArgs...),
		Stdin: req.Message,
	}
	if prov.Profile.WorkingDir == provider.WorkingDirAgentWorkspace {
		spec.Dir = d.paths.WorkspaceDir(req.AgentID)
	}

	result, err := d.runner.RunStreaming(ctx, spec, func(line string) {
		emit(StdoutLine(req.AgentID, req.SessionKey, line))
	}, func(line string) {
		emit(StderrLine(req.AgentID, req.SessionKey, line))
	})
	if err != nil {
		if ctx.Err() != nil {
			return openclaw.InvokeResult{
				ExitCode: 1,
				Stdout:   result.Stdout,
				Stderr:   result.Stderr + "aborted\n",
			}, nil
		}
		return openclaw.InvokeResult{}, errs.RuntimeSync("%s failed: %v", prov.Command, err)
	}
	return openclaw.InvokeResult{
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}, nil
}

// sanitizeReply turns raw provider stdout into the transcript text: the
// envelope payloads when stdout parses as one, otherwise the cleaned
// raw output.
func sanitizeReply(stdout string) string {
	if _, joined, ok := openclaw.ParseEnvelope(stdout); ok {
		return joined
	}
	return provider.CleanOutput(openclaw.StripNoise(stdout))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
