package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Autopilot/internal/control"
)

// ListSlots возвращает активные слоты флота.
// GET /api/v1/fleet/slots
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	fleet := h.control.Status().Fleet
	List(w, fleet.Slots, fleet.Count)
}

// LaunchSlot запускает (или переиспользует) процесс идентичности.
// POST /api/v1/fleet/slots
func (h *Handler) LaunchSlot(w http.ResponseWriter, r *http.Request) {
	var req LaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Identity == "" || req.TargetPath == "" {
		BadRequest(w, "identity and target_path are required")
		return
	}

	slot, err := h.control.Launch(r.Context(), req.Identity, req.TargetPath)
	if HandleError(w, h.logger, err, "") {
		return
	}
	Created(w, slot)
}

// KillAll закрывает все процессы флота.
// POST /api/v1/fleet/kill-all
func (h *Handler) KillAll(w http.ResponseWriter, r *http.Request) {
	Success(w, KillAllResponse{Killed: h.control.KillAll(r.Context())})
}

// UpdateFleetSettings меняет границы TTL новых слотов.
// PUT /api/v1/fleet/settings
func (h *Handler) UpdateFleetSettings(w http.ResponseWriter, r *http.Request) {
	var req control.SettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if HandleError(w, h.logger, h.control.UpdateSettings(r.Context(), req), "") {
		return
	}
	Success(w, h.control.Status().Fleet.Settings)
}
