package v1

import (
	"net/http"

	"github.com/gorilla/mux"

	"opengoat/internal/skills"
)

// skillInstallBody accepts a source or a global library id.
type skillInstallBody struct {
	skills.Source
	FromGlobal string `json:"fromGlobal,omitempty"`
}

func (rt *Router) handleListGlobalSkills(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.ListGlobalSkills()
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (rt *Router) handleInstallGlobalSkill(w http.ResponseWriter, r *http.Request) {
	var req skills.Source
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	skill, err := rt.svc.InstallGlobalSkill(req)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, skill)
}

func (rt *Router) handleRemoveGlobalSkill(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.RemoveGlobalSkill(mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (rt *Router) handleListAgentSkills(w http.ResponseWriter, r *http.Request) {
	list, err := rt.svc.ListSkills(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, list)
}

func (rt *Router) handleInstallAgentSkill(w http.ResponseWriter, r *http.Request) {
	var req skillInstallBody
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	agentID := mux.Vars(r)["id"]

	var (
		skill skills.Skill
		err   error
	)
	if req.FromGlobal != "" {
		skill, err = rt.svc.InstallSkillFromGlobal(agentID, req.FromGlobal)
	} else {
		skill, err = rt.svc.InstallSkill(agentID, req.Source)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, skill)
}

func (rt *Router) handleRemoveAgentSkill(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := rt.svc.RemoveSkill(vars["id"], vars["skillId"]); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
