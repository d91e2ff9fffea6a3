package v1

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"opengoat/internal/runner"
)

func (rt *Router) handleListSessions(w http.ResponseWriter, r *http.Request) {
	metas, err := rt.svc.ListSessions(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, metas)
}

func (rt *Router) handlePrepareSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	forceNew := r.URL.Query().Get("forceNew") == "true"
	meta, created, err := rt.svc.PrepareSession(vars["id"], vars["key"], forceNew)
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond(w, status, meta)
}

func (rt *Router) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	includeCompaction := r.URL.Query().Get("includeCompaction") == "true"
	entries, err := rt.svc.SessionHistory(vars["id"], vars["key"], limit, includeCompaction)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, entries)
}

func (rt *Router) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	vars := mux.Vars(r)
	meta, err := rt.svc.RenameSession(vars["id"], vars["key"], req.Title)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, meta)
}

func (rt *Router) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := rt.svc.RemoveSession(vars["id"], vars["key"]); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// runBody is the POST /run payload.
type runBody struct {
	AgentID    string   `json:"agentId"`
	SessionKey string   `json:"sessionKey,omitempty"`
	Message    string   `json:"message"`
	ForceNew   bool     `json:"forceNew,omitempty"`
	ExtraArgs  []string `json:"extraArgs,omitempty"`
	Stream     bool     `json:"stream,omitempty"`
}

// handleRun dispatches one message. With stream=true the lifecycle
// events are fanned out to websocket subscribers of the agent's topic
// and the response carries the terminal event; otherwise the call
// blocks and returns the full result.
func (rt *Router) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runBody
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	runReq := runner.RunRequest{
		AgentID:    req.AgentID,
		SessionKey: req.SessionKey,
		Message:    req.Message,
		ForceNew:   req.ForceNew,
		ExtraArgs:  req.ExtraArgs,
	}

	if !req.Stream || rt.hub == nil {
		result, err := rt.svc.Run(r.Context(), runReq)
		if err != nil {
			respondError(w, err)
			return
		}
		respond(w, http.StatusOK, result)
		return
	}

	events, err := rt.svc.RunStream(r.Context(), runReq)
	if err != nil {
		respondError(w, err)
		return
	}

	var terminal runner.Event
	for event := range events {
		rt.hub.Publish(req.AgentID, string(event.Type), event)
		switch event.Type {
		case runner.EventRunCompleted, runner.EventRunFailed:
			terminal = event
		}
	}
	respond(w, http.StatusOK, terminal)
}
