package v1

import (
	"net/http"

	"github.com/gorilla/mux"

	"opengoat/internal/gateway/websocket"
	"opengoat/internal/service"
)

// Router wires the facade into /api/v1 routes.
type Router struct {
	svc *service.Service
	hub *websocket.Hub // optional, run events fan out here
}

// NewRouter returns a router over the facade.
func NewRouter(svc *service.Service, hub *websocket.Hub) *Router {
	return &Router{svc: svc, hub: hub}
}

// RegisterRoutes mounts every endpoint under /api/v1.
func (rt *Router) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", rt.handleHealth).Methods(http.MethodGet)

	// System lifecycle.
	api.HandleFunc("/system/init", rt.handleInit).Methods(http.MethodPost)
	api.HandleFunc("/system/sync", rt.handleSync).Methods(http.MethodPost)
	api.HandleFunc("/system/reset", rt.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/system/doctor", rt.handleDoctor).Methods(http.MethodGet)

	// Agents.
	api.HandleFunc("/agents", rt.handleListAgents).Methods(http.MethodGet)
	api.HandleFunc("/agents", rt.handleCreateAgent).Methods(http.MethodPost)
	api.HandleFunc("/agents/{id}", rt.handleGetAgent).Methods(http.MethodGet)
	api.HandleFunc("/agents/{id}", rt.handleUpdateAgent).Methods(http.MethodPatch)
	api.HandleFunc("/agents/{id}", rt.handleDeleteAgent).Methods(http.MethodDelete)
	api.HandleFunc("/agents/{id}/info", rt.handleAgentInfo).Methods(http.MethodGet)
	api.HandleFunc("/agents/{id}/provider", rt.handleSetProvider).Methods(http.MethodPut)
	api.HandleFunc("/agents/{id}/manager", rt.handleSetManager).Methods(http.MethodPut)
	api.HandleFunc("/agents/{id}/reportees", rt.handleReportees).Methods(http.MethodGet)
	api.HandleFunc("/agents/{id}/last-action", rt.handleLastAction).Methods(http.MethodGet)

	// Sessions and runs.
	api.HandleFunc("/agents/{id}/sessions", rt.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/agents/{id}/sessions/{key}", rt.handlePrepareSession).Methods(http.MethodPost)
	api.HandleFunc("/agents/{id}/sessions/{key}/history", rt.handleSessionHistory).Methods(http.MethodGet)
	api.HandleFunc("/agents/{id}/sessions/{key}", rt.handleRenameSession).Methods(http.MethodPatch)
	api.HandleFunc("/agents/{id}/sessions/{key}", rt.handleRemoveSession).Methods(http.MethodDelete)
	api.HandleFunc("/run", rt.handleRun).Methods(http.MethodPost)

	// Tasks.
	api.HandleFunc("/tasks", rt.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", rt.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", rt.handleGetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", rt.handleDeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/status", rt.handleTaskStatus).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id}/blockers", rt.handleTaskBlocker).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/artifacts", rt.handleTaskArtifact).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/worklogs", rt.handleTaskWorklog).Methods(http.MethodPost)

	// Skills.
	api.HandleFunc("/skills", rt.handleListGlobalSkills).Methods(http.MethodGet)
	api.HandleFunc("/skills", rt.handleInstallGlobalSkill).Methods(http.MethodPost)
	api.HandleFunc("/skills/{id}", rt.handleRemoveGlobalSkill).Methods(http.MethodDelete)
	api.HandleFunc("/agents/{id}/skills", rt.handleListAgentSkills).Methods(http.MethodGet)
	api.HandleFunc("/agents/{id}/skills", rt.handleInstallAgentSkill).Methods(http.MethodPost)
	api.HandleFunc("/agents/{id}/skills/{skillId}", rt.handleRemoveAgentSkill).Methods(http.MethodDelete)

	// Providers.
	api.HandleFunc("/providers", rt.handleListProviders).Methods(http.MethodGet)
	api.HandleFunc("/providers/openclaw/gateway", rt.handleGetGatewayConfig).Methods(http.MethodGet)
	api.HandleFunc("/providers/openclaw/gateway", rt.handleSetGatewayConfig).Methods(http.MethodPut)

	// Task cron.
	api.HandleFunc("/cron/run", rt.handleCronRun).Methods(http.MethodPost)
	api.HandleFunc("/cron/status", rt.handleCronStatus).Methods(http.MethodGet)
	api.HandleFunc("/cron/cycles", rt.handleCronCycles).Methods(http.MethodGet)

	// Settings.
	api.HandleFunc("/settings", rt.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", rt.handleUpdateSettings).Methods(http.MethodPut)
	api.HandleFunc("/settings/password", rt.handleSetPassword).Methods(http.MethodPost)
}
