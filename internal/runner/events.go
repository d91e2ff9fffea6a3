// Package runner dispatches agent runs: one queue worker per active
// session key, provider invocation, transcript persistence, and a
// stream of run events for the gateway and CLI.
package runner

import "time"

// EventType tags a run event.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventStdoutLine   EventType = "stdout_line"
	EventStderrLine   EventType = "stderr_line"
	EventActivity     EventType = "runtime_activity"
	EventInvocationOK EventType = "provider_invocation_completed"
	EventRunCompleted EventType = "run_completed"
	EventRunFailed    EventType = "run_failed"
)

// Event is one observable step of a run.
type Event struct {
	Type       EventType `json:"type"`
	At         int64     `json:"at"`
	AgentID    string    `json:"agentId"`
	SessionKey string    `json:"sessionKey"`
	Text       string    `json:"text,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func newEvent(t EventType, agentID, key, text string) Event {
	return Event{
		Type:       t,
		At:         time.Now().UnixMilli(),
		AgentID:    agentID,
		SessionKey: key,
		Text:       text,
	}
}

// RunStarted marks the beginning of a run.
func RunStarted(agentID, key string) Event {
	return newEvent(EventRunStarted, agentID, key, "")
}

// StdoutLine carries one provider stdout line.
func StdoutLine(agentID, key, line string) Event {
	return newEvent(EventStdoutLine, agentID, key, line)
}

// StderrLine carries one provider stderr line.
func StderrLine(agentID, key, line string) Event {
	return newEvent(EventStderrLine, agentID, key, line)
}

// Activity carries one translated runtime log activity.
func Activity(agentID, key, text string) Event {
	return newEvent(EventActivity, agentID, key, text)
}

// InvocationCompleted marks the provider process finishing.
func InvocationCompleted(agentID, key string) Event {
	return newEvent(EventInvocationOK, agentID, key, "")
}

// RunCompleted carries the final sanitized reply.
func RunCompleted(agentID, key, reply string) Event {
	return newEvent(EventRunCompleted, agentID, key, reply)
}

// RunFailed carries the terminal error.
func RunFailed(agentID, key string, err error) Event {
	e := newEvent(EventRunFailed, agentID, key, "")
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
