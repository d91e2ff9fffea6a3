package taskcron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"opengoat/internal/history"
	"opengoat/internal/runner"
	"opengoat/internal/sessions"
	"opengoat/pkg/logger"
)

// dispatchTimeout bounds one cron-driven run.
const dispatchTimeout = 10 * time.Minute

// SessionKey routes the dispatch: organizational notifications land in
// the agent's notification session, task nudges in its main session.
func (d Dispatch) SessionKey() string {
	switch d.Kind {
	case KindInactiveAgent, KindTopDown:
		return sessions.ScopeAgent + ":agent_" + d.Target + "_notifications"
	default:
		return sessions.ScopeAgent + ":" + sessions.DefaultSlug
	}
}

// DispatchResult is one executed dispatch with its outcome.
type DispatchResult struct {
	Dispatch
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// AgentRunner is the slice of the dispatcher the executor needs.
type AgentRunner interface {
	RunAgent(ctx context.Context, req runner.RunRequest) (runner.RunResult, error)
}

// ActionRecorder is the slice of the history store the executor needs.
type ActionRecorder interface {
	RecordAction(agentID string, kind history.ActionKind, detail, sessionKey string) (history.Action, error)
}

// Executor runs the planned dispatches with bounded parallelism.
type Executor struct {
	runner  AgentRunner
	history ActionRecorder // optional
}

// NewExecutor wires an executor over the dispatcher.
func NewExecutor(agentRunner AgentRunner) *Executor {
	return &Executor{runner: agentRunner}
}

// SetHistory wires the action recorder (optional).
func (e *Executor) SetHistory(h ActionRecorder) { e.history = h }

// Execute runs every dispatch and reports each outcome in input order.
// One worker per target agent keeps that agent's dispatches FIFO; the
// global semaphore caps parallelism at maxParallel and a permit is only
// held while a run is in flight, so a busy agent never stalls the rest.
// Failures are recorded, never fatal to the cycle.
func (e *Executor) Execute(ctx context.Context, dispatches []Dispatch, maxParallel int) []DispatchResult {
	if maxParallel < 1 {
		maxParallel = 1
	}
	sem := semaphore.NewWeighted(int64(maxParallel))

	type queued struct {
		index int
		d     Dispatch
	}
	var targets []string
	queues := make(map[string][]queued)
	for i, d := range dispatches {
		if _, ok := queues[d.Target]; !ok {
			targets = append(targets, d.Target)
		}
		queues[d.Target] = append(queues[d.Target], queued{index: i, d: d})
	}

	results := make([]DispatchResult, len(dispatches))
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(q []queued) {
			defer wg.Done()
			for _, item := range q {
				res := DispatchResult{Dispatch: item.d}
				if err := sem.Acquire(ctx, 1); err != nil {
					res.Error = err.Error()
					results[item.index] = res
					continue
				}
				err := e.dispatch(ctx, item.d)
				sem.Release(1)
				if err != nil {
					res.Error = err.Error()
				} else {
					res.OK = true
				}
				results[item.index] = res
			}
		}(queues[target])
	}
	wg.Wait()
	return results
}

func (e *Executor) dispatch(ctx context.Context, d Dispatch) error {
	key := d.SessionKey()
	_, err := e.runner.RunAgent(ctx, runner.RunRequest{
		AgentID:    d.Target,
		SessionKey: key,
		Message:    d.Message,
		Timeout:    dispatchTimeout,
	})
	if err != nil {
		logger.Warn().Err(err).Str("agent", d.Target).Str("kind", string(d.Kind)).
			Msg("cron dispatch failed")
		return err
	}

	if e.history != nil {
		detail := string(d.Kind)
		if d.TaskID != "" {
			detail = fmt.Sprintf("%s %s", d.Kind, d.TaskID)
		}
		if _, err := e.history.RecordAction(d.Target, history.ActionCronDispatch, detail, key); err != nil {
			logger.Warn().Err(err).Msg("could not record cron dispatch")
		}
	}
	logger.Debug().Str("agent", d.Target).Str("kind", string(d.Kind)).Msg("cron dispatch completed")
	return nil
}
