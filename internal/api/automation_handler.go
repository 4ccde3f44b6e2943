package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// stopTimeout — сколько Stop ждёт завершения текущего узла.
const stopTimeout = 30 * time.Second

// GetStatus возвращает состояние контроллера и флота.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	Success(w, h.control.Status())
}

// StartAutomation запускает проход.
// POST /api/v1/automation/start
func (h *Handler) StartAutomation(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}
	if req.ItemsPerIdentity != nil && *req.ItemsPerIdentity <= 0 {
		BadRequest(w, "items_per_identity must be positive")
		return
	}

	opts := req.Options(h.control.Defaults())
	if HandleError(w, h.logger, h.control.Start(r.Context(), &opts), "") {
		return
	}
	Accepted(w, h.control.Status().Automation)
}

// PauseAutomation приостанавливает проход.
// POST /api/v1/automation/pause
func (h *Handler) PauseAutomation(w http.ResponseWriter, r *http.Request) {
	if HandleError(w, h.logger, h.control.Pause(), "") {
		return
	}
	Success(w, ActionResponse{Action: "pause", OK: true})
}

// ResumeAutomation продолжает проход.
// POST /api/v1/automation/resume
func (h *Handler) ResumeAutomation(w http.ResponseWriter, r *http.Request) {
	if HandleError(w, h.logger, h.control.Resume(), "") {
		return
	}
	Success(w, ActionResponse{Action: "resume", OK: true})
}

// StopAutomation останавливает проход и ждёт его завершения.
// POST /api/v1/automation/stop
func (h *Handler) StopAutomation(w http.ResponseWriter, r *http.Request) {
	// обрыв соединения клиента не должен прерывать остановку
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), stopTimeout)
	defer cancel()

	if HandleError(w, h.logger, h.control.Stop(ctx), "") {
		return
	}
	Success(w, h.control.Status().Automation)
}
