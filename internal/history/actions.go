package history

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActionKind names a recorded event.
type ActionKind string

const (
	ActionAgentCreated      ActionKind = "agent-created"
	ActionAgentDeleted      ActionKind = "agent-deleted"
	ActionRunCompleted      ActionKind = "run-completed"
	ActionTaskCreated       ActionKind = "task-created"
	ActionTaskStatusChanged ActionKind = "task-status-changed"
	ActionCronDispatch      ActionKind = "cron-dispatch"
)

// Action is one recorded event for one agent.
type Action struct {
	ID         string     `json:"id"`
	AgentID    string     `json:"agentId"`
	Kind       ActionKind `json:"kind"`
	Detail     string     `json:"detail,omitempty"`
	SessionKey string     `json:"sessionKey,omitempty"`
	At         int64      `json:"at"`
}

// RecordAction inserts one action row.
func (db *DB) RecordAction(agentID string, kind ActionKind, detail, sessionKey string) (Action, error) {
	action := Action{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Kind:       kind,
		Detail:     detail,
		SessionKey: sessionKey,
		At:         time.Now().UnixMilli(),
	}
	_, err := db.Exec(
		"INSERT INTO actions (id, agent_id, kind, detail, session_key, at) VALUES (?, ?, ?, ?, ?, ?)",
		action.ID, action.AgentID, string(action.Kind), action.Detail, action.SessionKey, action.At,
	)
	if err != nil {
		return Action{}, err
	}
	return action, nil
}

// LastAction returns the most recent action for an agent, or ok=false
// when the agent has no history yet.
func (db *DB) LastAction(agentID string) (Action, bool, error) {
	row := db.QueryRow(
		"SELECT id, agent_id, kind, detail, session_key, at FROM actions WHERE agent_id = ? ORDER BY at DESC, id DESC LIMIT 1",
		agentID,
	)
	var a Action
	var kind string
	err := row.Scan(&a.ID, &a.AgentID, &kind, &a.Detail, &a.SessionKey, &a.At)
	if errors.Is(err, sql.ErrNoRows) {
		return Action{}, false, nil
	}
	if err != nil {
		return Action{}, false, err
	}
	a.Kind = ActionKind(kind)
	return a, true, nil
}

// ListActions returns up to limit recent actions for an agent, newest
// first.
func (db *DB) ListActions(agentID string, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		"SELECT id, agent_id, kind, detail, session_key, at FROM actions WHERE agent_id = ? ORDER BY at DESC, id DESC LIMIT ?",
		agentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var a Action
		var kind string
		if err := rows.Scan(&a.ID, &a.AgentID, &kind, &a.Detail, &a.SessionKey, &a.At); err != nil {
			return nil, err
		}
		a.Kind = ActionKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}
