package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

// RegisterRoutes регистрирует все маршруты API, /healthz и /metrics.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		RequestID(h.logger),
		AccessLog(),
		Recovery(),
	)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Truncate(time.Second))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Automation
	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.GetStatus)))
	mux.Handle("POST /api/v1/automation/start", chain(http.HandlerFunc(h.StartAutomation)))
	mux.Handle("POST /api/v1/automation/pause", chain(http.HandlerFunc(h.PauseAutomation)))
	mux.Handle("POST /api/v1/automation/resume", chain(http.HandlerFunc(h.ResumeAutomation)))
	mux.Handle("POST /api/v1/automation/stop", chain(http.HandlerFunc(h.StopAutomation)))

	// Fleet
	mux.Handle("GET /api/v1/fleet/slots", chain(http.HandlerFunc(h.ListSlots)))
	mux.Handle("POST /api/v1/fleet/slots", chain(http.HandlerFunc(h.LaunchSlot)))
	mux.Handle("POST /api/v1/fleet/kill-all", chain(http.HandlerFunc(h.KillAll)))
	mux.Handle("PUT /api/v1/fleet/settings", chain(http.HandlerFunc(h.UpdateFleetSettings)))

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("POST /api/v1/workflows", chain(http.HandlerFunc(h.CreateWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}", chain(http.HandlerFunc(h.GetWorkflow)))
	mux.Handle("PUT /api/v1/workflows/{id}", chain(http.HandlerFunc(h.UpdateWorkflow)))
	mux.Handle("PATCH /api/v1/workflows/{id}", chain(http.HandlerFunc(h.RenameWorkflow)))
	mux.Handle("DELETE /api/v1/workflows/{id}", chain(http.HandlerFunc(h.DeleteWorkflow)))
	mux.Handle("PUT /api/v1/workflows/{id}/default", chain(http.HandlerFunc(h.SetDefaultWorkflow)))
	mux.Handle("POST /api/v1/workflows/test", chain(http.HandlerFunc(h.TestWorkflow)))

	// Accounts
	mux.Handle("GET /api/v1/accounts", chain(http.HandlerFunc(h.ListAccounts)))
	mux.Handle("POST /api/v1/accounts", chain(http.HandlerFunc(h.CreateAccount)))
	mux.Handle("POST /api/v1/accounts/scan", chain(http.HandlerFunc(h.ScanAccounts)))
	mux.Handle("PUT /api/v1/accounts/{id}/active", chain(http.HandlerFunc(h.SetAccountActive)))
	mux.Handle("DELETE /api/v1/accounts/{id}", chain(http.HandlerFunc(h.DeleteAccount)))

	// Channels
	mux.Handle("GET /api/v1/channels", chain(http.HandlerFunc(h.ListChannels)))
	mux.Handle("POST /api/v1/channels", chain(http.HandlerFunc(h.CreateChannel)))
	mux.Handle("POST /api/v1/channels/bulk", chain(http.HandlerFunc(h.CreateChannelsBulk)))
	mux.Handle("DELETE /api/v1/channels", chain(http.HandlerFunc(h.ClearChannels)))
	mux.Handle("PUT /api/v1/channels/{id}/active", chain(http.HandlerFunc(h.SetChannelActive)))
	mux.Handle("DELETE /api/v1/channels/{id}", chain(http.HandlerFunc(h.DeleteChannel)))

	// Join requests
	mux.Handle("GET /api/v1/requests", chain(http.HandlerFunc(h.ListJoinRequests)))
	mux.Handle("DELETE /api/v1/requests", chain(http.HandlerFunc(h.ClearJoinRequests)))
	mux.Handle("DELETE /api/v1/requests/{account_id}/{channel_id}", chain(http.HandlerFunc(h.DeleteJoinRequest)))

	// Journal
	mux.Handle("GET /api/v1/logs", chain(http.HandlerFunc(h.ListLogs)))
	mux.Handle("DELETE /api/v1/logs", chain(http.HandlerFunc(h.ClearLogs)))
	mux.Handle("GET /api/v1/stats", chain(http.HandlerFunc(h.GetStats)))
}
