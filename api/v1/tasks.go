package v1

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"opengoat/internal/tasks"
)

func (rt *Router) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := tasks.Filter{
		Assignee: q.Get("assignee"),
		Status:   tasks.Status(q.Get("status")),
		Limit:    limit,
	}
	respond(w, http.StatusOK, rt.svc.ListTasks(filter))
}

func (rt *Router) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := rt.svc.GetTask(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, task)
}

func (rt *Router) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.CreateRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	task, err := rt.svc.CreateTask(actorOf(r), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, task)
}

func (rt *Router) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	removed, err := rt.svc.DeleteTask(actorOf(r), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string][]string{"removed": removed})
}

func (rt *Router) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	status, err := tasks.ParseStatus(req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	task, err := rt.svc.UpdateTaskStatus(actorOf(r), mux.Vars(r)["id"], status, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, task)
}

func (rt *Router) handleTaskBlocker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	task, err := rt.svc.AddTaskBlocker(actorOf(r), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, task)
}

func (rt *Router) handleTaskArtifact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
		Note string `json:"note,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	task, err := rt.svc.AddTaskArtifact(actorOf(r), mux.Vars(r)["id"], req.Path, req.Note)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, task)
}

func (rt *Router) handleTaskWorklog(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	task, err := rt.svc.AddTaskWorklog(actorOf(r), mux.Vars(r)["id"], req.Note)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, task)
}
