package tasks

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/locks"
	"opengoat/internal/ports"
	"opengoat/pkg/logger"
)

// Store keeps the task board: per-task files on disk as the source of
// truth, plus an in-memory index rebuilt at startup.
type Store struct {
	fs    ports.Filesystem
	clock ports.Clock
	paths config.Paths
	org   Org

	mu    sync.RWMutex
	tasks map[string]Task

	locks locks.KeyedMutex
}

// NewStore returns a task store and loads the existing board from disk.
func NewStore(fs ports.Filesystem, clock ports.Clock, paths config.Paths, org Org) (*Store, error) {
	s := &Store{fs: fs, clock: clock, paths: paths, org: org, tasks: make(map[string]Task)}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload discards the in-memory index and rebuilds it from disk.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]Task)
	return s.loadAll()
}

// loadAll rebuilds the index from the tasks dir. Leftover temp files
// from interrupted writes are swept; unreadable records are skipped.
func (s *Store) loadAll() error {
	entries, err := s.fs.ReadDir(s.paths.TasksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read tasks dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".tmp-") {
			s.fs.Remove(s.paths.TasksDir() + string(os.PathSeparator) + name)
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := s.fs.ReadFile(s.paths.TaskPath(strings.TrimSuffix(name, ".json")))
		if err != nil {
			continue
		}
		var task Task
		if err := json.Unmarshal(data, &task); err != nil {
			logger.Warn().Str("file", name).Err(err).Msg("skipping unreadable task record")
			continue
		}
		s.tasks[task.ID] = task
	}
	return nil
}

// Get returns one task.
func (s *Store) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, errs.NotFound("task %q does not exist", id)
	}
	return task, nil
}

// List returns tasks matching the filter, oldest first.
func (s *Store) List(f Filter) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Task
	for _, t := range s.tasks {
		if f.Assignee != "" && t.Assignee != f.Assignee {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Create validates authority and persists a new task. The assignee
// defaults to the actor; an actor may only assign within its own
// subtree.
func (s *Store) Create(actor string, req CreateRequest) (Task, error) {
	if strings.TrimSpace(req.Title) == "" {
		return Task{}, errs.Validation("task title is required")
	}

	assignee := req.Assignee
	if assignee == "" {
		assignee = actor
	}
	if assignee == ActorUser {
		return Task{}, errs.Validation("tasks cannot be assigned to the user")
	}
	if !s.org.Exists(assignee) {
		return Task{}, errs.NotFound("assignee %q does not exist", assignee)
	}
	if err := s.checkAssignAuthority(actor, assignee); err != nil {
		return Task{}, err
	}

	status := StatusTodo
	if req.Status != "" {
		parsed, err := ParseStatus(req.Status)
		if err != nil {
			return Task{}, err
		}
		if parsed != StatusTodo && parsed != StatusDoing {
			return Task{}, errs.Validation("new tasks start in todo or doing, not %q", parsed)
		}
		status = parsed
	}

	now := s.clock.Now().UnixMilli()
	task := Task{
		ID:              s.newID(),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Project:         req.Project,
		Status:          status,
		CreatedBy:       actor,
		Assignee:        assignee,
		CreatedAt:       now,
		UpdatedAt:       now,
		StatusChangedAt: now,
	}

	if err := s.save(task); err != nil {
		return Task{}, err
	}
	logger.Info().Str("task", task.ID).Str("assignee", assignee).Str("by", actor).Msg("task created")
	return task, nil
}

// UpdateStatus applies one legal status transition.
func (s *Store) UpdateStatus(actor, id string, status Status, reason string) (Task, error) {
	defer s.locks.Lock(id)()

	task, err := s.Get(id)
	if err != nil {
		return Task{}, err
	}
	if task.Status == status {
		return task, nil
	}
	if task.Status.Terminal() {
		return Task{}, errs.Validation("task %s is %s; terminal states cannot change", id, task.Status)
	}
	if !CanTransition(task.Status, status) {
		return Task{}, errs.Validation("task %s cannot move %s → %s", id, task.Status, status)
	}
	if err := s.checkTransitionAuthority(actor, task, status); err != nil {
		return Task{}, err
	}
	if task.Status == StatusDoing && status == StatusPending && strings.TrimSpace(reason) == "" {
		return Task{}, errs.Validation("moving a task from doing to pending requires a reason")
	}

	now := s.clock.Now().UnixMilli()
	if status == StatusBlocked {
		if strings.TrimSpace(reason) == "" && len(task.Blockers) == 0 {
			return Task{}, errs.Validation("a blocked task needs at least one blocker; give a reason")
		}
		if strings.TrimSpace(reason) != "" {
			task.Blockers = append(task.Blockers, Blocker{ByAgent: actor, Reason: reason, At: now})
		}
	}

	task.Status = status
	task.StatusReason = reason
	task.UpdatedAt = now
	task.StatusChangedAt = now
	if err := s.save(task); err != nil {
		return Task{}, err
	}
	logger.Info().Str("task", id).Str("status", string(status)).Str("by", actor).Msg("task status changed")
	return task, nil
}

// AddBlocker appends a blocker entry.
func (s *Store) AddBlocker(actor, id, reason string) (Task, error) {
	if strings.TrimSpace(reason) == "" {
		return Task{}, errs.Validation("blocker reason is required")
	}
	return s.appendEntry(actor, id, func(task *Task, now int64) {
		task.Blockers = append(task.Blockers, Blocker{ByAgent: actor, Reason: reason, At: now})
	})
}

// AddArtifact appends an artifact entry.
func (s *Store) AddArtifact(actor, id, path, note string) (Task, error) {
	if strings.TrimSpace(path) == "" && strings.TrimSpace(note) == "" {
		return Task{}, errs.Validation("artifact needs a path or a note")
	}
	return s.appendEntry(actor, id, func(task *Task, now int64) {
		task.Artifacts = append(task.Artifacts, Artifact{ByAgent: actor, Path: path, Note: note, At: now})
	})
}

// AddWorklog appends a worklog entry.
func (s *Store) AddWorklog(actor, id, note string) (Task, error) {
	if strings.TrimSpace(note) == "" {
		return Task{}, errs.Validation("worklog note is required")
	}
	return s.appendEntry(actor, id, func(task *Task, now int64) {
		task.Worklog = append(task.Worklog, Worklog{ByAgent: actor, Note: note, At: now})
	})
}

// Delete removes tasks the actor is authorized to delete and returns
// the ids actually removed.
func (s *Store) Delete(actor string, ids []string) ([]string, error) {
	var removed []string
	for _, id := range ids {
		unlock := s.locks.Lock(id)
		task, err := s.Get(id)
		if err != nil {
			unlock()
			continue
		}
		if actor != ActorUser && actor != task.CreatedBy && actor != task.Assignee {
			unlock()
			continue
		}
		if err := s.fs.Remove(s.paths.TaskPath(id)); err != nil && !os.IsNotExist(err) {
			unlock()
			return removed, fmt.Errorf("remove task %s: %w", id, err)
		}
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
		removed = append(removed, id)
		unlock()
	}
	return removed, nil
}

// appendEntry runs an authority-checked append on one task.
func (s *Store) appendEntry(actor, id string, apply func(*Task, int64)) (Task, error) {
	defer s.locks.Lock(id)()

	task, err := s.Get(id)
	if err != nil {
		return Task{}, err
	}
	if err := s.checkWriteAuthority(actor, task); err != nil {
		return Task{}, err
	}

	now := s.clock.Now().UnixMilli()
	apply(&task, now)
	task.UpdatedAt = now
	if err := s.save(task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// checkAssignAuthority enforces that a creator may only assign to
// itself or into its own subtree.
func (s *Store) checkAssignAuthority(actor, assignee string) error {
	if actor == ActorUser || actor == assignee {
		return nil
	}
	chain, err := s.org.ManagementChain(assignee)
	if err != nil {
		return err
	}
	for _, mgr := range chain {
		if mgr.ID == actor {
			return nil
		}
	}
	return errs.AuthorityDenied(
		"%q cannot assign to %q: not the assignee and not in its management chain", actor, assignee)
}

// checkWriteAuthority allows the assignee, the creator, the user, and
// the assignee's management chain to write on a task.
func (s *Store) checkWriteAuthority(actor string, task Task) error {
	if actor == ActorUser || actor == task.Assignee || actor == task.CreatedBy {
		return nil
	}
	chain, err := s.org.ManagementChain(task.Assignee)
	if err == nil {
		for _, mgr := range chain {
			if mgr.ID == actor {
				return nil
			}
		}
	}
	return errs.AuthorityDenied("%q may not modify task %s assigned to %q", actor, task.ID, task.Assignee)
}

// checkTransitionAuthority narrows transitions further: only the
// assignee (or the user) picks up a todo task; terminal transitions
// also stay with creator and assignee.
func (s *Store) checkTransitionAuthority(actor string, task Task, to Status) error {
	if actor == ActorUser {
		return nil
	}
	if task.Status == StatusTodo && to == StatusDoing && actor != task.Assignee {
		return errs.AuthorityDenied("only the assignee %q may start task %s", task.Assignee, task.ID)
	}
	if (to == StatusDone || to == StatusCancelled) &&
		actor != task.Assignee && actor != task.CreatedBy {
		return errs.AuthorityDenied(
			"only the assignee or the creator may close task %s, not %q", task.ID, actor)
	}
	return s.checkWriteAuthority(actor, task)
}

func (s *Store) newID() string {
	for {
		raw := uuid.New()
		id := "T-" + hex.EncodeToString(raw[:3])
		s.mu.RLock()
		_, taken := s.tasks[id]
		s.mu.RUnlock()
		if !taken {
			return id
		}
	}
}

func (s *Store) save(task Task) error {
	if err := s.fs.MkdirAll(s.paths.TasksDir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return err
	}
	if err := s.fs.WriteFileAtomic(s.paths.TaskPath(task.ID), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write task %s: %w", task.ID, err)
	}
	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()
	return nil
}
