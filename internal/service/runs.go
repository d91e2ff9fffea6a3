package service

import (
	"context"

	"opengoat/internal/runner"
	"opengoat/internal/sessions"
)

// ListSessions returns session metadata for an agent, newest first.
func (s *Service) ListSessions(agentID string) ([]sessions.Meta, error) {
	return s.sessions.List(agentID)
}

// GetSession returns one session's metadata.
func (s *Service) GetSession(agentID, key string) (sessions.Meta, error) {
	return s.sessions.Get(agentID, key)
}

// PrepareSession ensures a session exists. The bool reports whether it
// was created by this call.
func (s *Service) PrepareSession(agentID, key string, forceNew bool) (sessions.Meta, bool, error) {
	return s.sessions.Prepare(agentID, key, forceNew)
}

// SessionHistory returns the most recent transcript entries.
func (s *Service) SessionHistory(agentID, key string, limit int, includeCompaction bool) ([]sessions.Entry, error) {
	return s.sessions.History(agentID, key, limit, includeCompaction)
}

// RenameSession sets a session's display title.
func (s *Service) RenameSession(agentID, key, title string) (sessions.Meta, error) {
	return s.sessions.Rename(agentID, key, title)
}

// RemoveSession deletes one session and its transcript.
func (s *Service) RemoveSession(agentID, key string) error {
	return s.sessions.Remove(agentID, key)
}

// Run dispatches one message to an agent and waits for the reply.
func (s *Service) Run(ctx context.Context, req runner.RunRequest) (runner.RunResult, error) {
	return s.dispatcher.RunAgent(ctx, req)
}

// RunStream dispatches one message and streams lifecycle events. The
// channel closes after the terminal event.
func (s *Service) RunStream(ctx context.Context, req runner.RunRequest) (<-chan runner.Event, error) {
	return s.dispatcher.RunStream(ctx, req)
}

// PendingRuns reports queued runs behind a session key.
func (s *Service) PendingRuns(agentID, key string) int {
	return s.dispatcher.Pending(agentID, key)
}
