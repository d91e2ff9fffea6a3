// Package tasks owns the shared task board: per-task JSON files under
// <home>/tasks, a constrained status machine, and the authority rules
// that keep agents inside their management chain.
package tasks

import (
	"opengoat/internal/agents"
	"opengoat/internal/errs"
)

// ActorUser is the human operator. The user outranks every authority
// rule.
const ActorUser = "user"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo      Status = "todo"
	StatusDoing     Status = "doing"
	StatusPending   Status = "pending"
	StatusBlocked   Status = "blocked"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusTodo, StatusDoing, StatusPending, StatusBlocked, StatusDone, StatusCancelled:
		return Status(s), nil
	default:
		return "", errs.Validation("unknown task status %q", s)
	}
}

// transitions is the legal edge set of the status machine.
var transitions = map[Status][]Status{
	StatusTodo:    {StatusDoing, StatusCancelled},
	StatusDoing:   {StatusPending, StatusBlocked, StatusDone, StatusTodo, StatusCancelled},
	StatusPending: {StatusDoing, StatusDone, StatusCancelled},
	StatusBlocked: {StatusDoing, StatusTodo, StatusCancelled},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Blocker records why a task cannot proceed.
type Blocker struct {
	ByAgent string `json:"byAgent"`
	Reason  string `json:"reason"`
	At      int64  `json:"at"`
}

// Artifact records a produced result.
type Artifact struct {
	ByAgent string `json:"byAgent"`
	Path    string `json:"path,omitempty"`
	Note    string `json:"note"`
	At      int64  `json:"at"`
}

// Worklog records a progress note.
type Worklog struct {
	ByAgent string `json:"byAgent"`
	Note    string `json:"note"`
	At      int64  `json:"at"`
}

// Task is the persisted shape of tasks/<id>.json.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Project         string     `json:"project,omitempty"`
	Status          Status     `json:"status"`
	StatusReason    string     `json:"statusReason,omitempty"`
	CreatedBy       string     `json:"createdBy"`
	Assignee        string     `json:"assignee"`
	Blockers        []Blocker  `json:"blockers,omitempty"`
	Artifacts       []Artifact `json:"artifacts,omitempty"`
	Worklog         []Worklog  `json:"worklog,omitempty"`
	CreatedAt       int64      `json:"createdAt"`
	UpdatedAt       int64      `json:"updatedAt"`
	StatusChangedAt int64      `json:"statusChangedAt"`
}

// CreateRequest carries the caller-supplied fields for a new task.
type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Project     string `json:"project,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Assignee string
	Status   Status
	Limit    int
}

// Org resolves reporting relations for the authority checks. The agent
// store satisfies it.
type Org interface {
	Exists(id string) bool
	ManagementChain(id string) ([]agents.Agent, error)
}
