package v1

import (
	"net/http"

	"github.com/gorilla/mux"

	"opengoat/internal/agents"
	"opengoat/internal/service"
)

func (rt *Router) handleListAgents(w http.ResponseWriter, r *http.Request) {
	all, err := rt.svc.ListAgents()
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, all)
}

func (rt *Router) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := rt.svc.GetAgent(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, agent)
}

func (rt *Router) handleAgentInfo(w http.ResponseWriter, r *http.Request) {
	info, err := rt.svc.GetAgentInfo(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, info)
}

// createAgentResponse carries the agent and any scaffolding warnings.
type createAgentResponse struct {
	Agent    agents.Agent `json:"agent"`
	Warnings []string     `json:"warnings,omitempty"`
}

func (rt *Router) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAgentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	agent, warnings, err := rt.svc.CreateAgent(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, createAgentResponse{Agent: agent, Warnings: warnings})
}

func (rt *Router) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var req agents.UpdateRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	agent, err := rt.svc.UpdateAgent(mux.Vars(r)["id"], req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, agent)
}

func (rt *Router) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	cascade := r.URL.Query().Get("cascade") == "true"
	removed, err := rt.svc.DeleteAgent(r.Context(), mux.Vars(r)["id"], cascade)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string][]string{"removed": removed})
}

func (rt *Router) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	agent, warnings, err := rt.svc.SetAgentProvider(r.Context(), mux.Vars(r)["id"], req.Provider)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, createAgentResponse{Agent: agent, Warnings: warnings})
}

func (rt *Router) handleSetManager(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Manager string `json:"manager"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := rt.svc.SetAgentManager(id, req.Manager); err != nil {
		respondError(w, err)
		return
	}
	agent, err := rt.svc.GetAgent(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, agent)
}

func (rt *Router) handleReportees(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var (
		reportees []agents.Agent
		err       error
	)
	if r.URL.Query().Get("all") == "true" {
		reportees, err = rt.svc.ListAllReportees(id)
	} else {
		reportees, err = rt.svc.ListDirectReportees(id)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, reportees)
}

func (rt *Router) handleLastAction(w http.ResponseWriter, r *http.Request) {
	action, ok, err := rt.svc.GetLastAction(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	if !ok {
		respond(w, http.StatusOK, nil)
		return
	}
	respond(w, http.StatusOK, action)
}

func (rt *Router) handleListProviders(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, rt.svc.ListProviders())
}
