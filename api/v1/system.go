package v1

import (
	"net/http"
	"strconv"

	"opengoat/internal/config"
)

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (rt *Router) handleInit(w http.ResponseWriter, r *http.Request) {
	report, err := rt.svc.Initialize(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, report)
}

func (rt *Router) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := rt.svc.SyncRuntimeDefaults(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, report)
}

func (rt *Router) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm string `json:"confirm"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	report, err := rt.svc.HardReset(r.Context(), req.Confirm)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, report)
}

func (rt *Router) handleDoctor(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, rt.svc.Doctor(r.Context()))
}

func (rt *Router) handleCronRun(w http.ResponseWriter, r *http.Request) {
	cycle, err := rt.svc.RunTaskCronCycle(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, cycle)
}

func (rt *Router) handleCronStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, rt.svc.TaskCronStatus())
}

func (rt *Router) handleCronCycles(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cycles, err := rt.svc.RecentCronCycles(n)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, cycles)
}
