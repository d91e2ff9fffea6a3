package v1

import (
	"encoding/json"
	"net/http"

	"opengoat/internal/settings"
)

func (rt *Router) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, rt.svc.GetSettings())
}

func (rt *Router) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.Settings
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := rt.svc.UpdateSettings(req); err != nil {
		respondError(w, err)
		return
	}
	if rt.hub != nil {
		rt.hub.Publish("", "settings_changed", rt.svc.GetSettings())
	}
	respond(w, http.StatusOK, rt.svc.GetSettings())
}

func (rt *Router) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := rt.svc.SetAuthPassword(req.Username, req.Password); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (rt *Router) handleGetGatewayConfig(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.svc.GetOpenClawGatewayConfig()
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (rt *Router) handleSetGatewayConfig(w http.ResponseWriter, r *http.Request) {
	var doc json.RawMessage
	if err := decode(r, &doc); err != nil {
		respondError(w, err)
		return
	}
	if err := rt.svc.SetOpenClawGatewayConfig(doc); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
