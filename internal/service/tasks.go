package service

import (
	"fmt"

	"opengoat/internal/history"
	"opengoat/internal/tasks"
)

// ListTasks returns the board filtered, oldest first.
func (s *Service) ListTasks(f tasks.Filter) []tasks.Task {
	return s.tasks.List(f)
}

// GetTask returns one task.
func (s *Service) GetTask(id string) (tasks.Task, error) {
	return s.tasks.Get(id)
}

// CreateTask creates a task on behalf of actor and records the action.
func (s *Service) CreateTask(actor string, req tasks.CreateRequest) (tasks.Task, error) {
	task, err := s.tasks.Create(actor, req)
	if err != nil {
		return tasks.Task{}, err
	}
	s.recordAction(task.Assignee, history.ActionTaskCreated, task.ID+" "+task.Title, "")
	return task, nil
}

// UpdateTaskStatus moves a task through the status machine and records
// the transition.
func (s *Service) UpdateTaskStatus(actor, id string, status tasks.Status, reason string) (tasks.Task, error) {
	task, err := s.tasks.UpdateStatus(actor, id, status, reason)
	if err != nil {
		return tasks.Task{}, err
	}
	s.recordAction(task.Assignee, history.ActionTaskStatusChanged,
		fmt.Sprintf("%s -> %s", task.ID, task.Status), "")
	return task, nil
}

// DeleteTask removes the tasks the actor is allowed to remove and
// returns their ids.
func (s *Service) DeleteTask(actor string, ids ...string) ([]string, error) {
	return s.tasks.Delete(actor, ids)
}

// AddTaskBlocker appends a blocker entry.
func (s *Service) AddTaskBlocker(actor, id, reason string) (tasks.Task, error) {
	return s.tasks.AddBlocker(actor, id, reason)
}

// AddTaskArtifact appends an artifact entry.
func (s *Service) AddTaskArtifact(actor, id, path, note string) (tasks.Task, error) {
	return s.tasks.AddArtifact(actor, id, path, note)
}

// AddTaskWorklog appends a worklog entry.
func (s *Service) AddTaskWorklog(actor, id, note string) (tasks.Task, error) {
	return s.tasks.AddWorklog(actor, id, note)
}
