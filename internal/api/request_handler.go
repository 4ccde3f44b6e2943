package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 500
	maxHistoryLimit     = 5000
)

// ListJoinRequests возвращает историю заявок, новые первыми.
// GET /api/v1/requests?account_id=&limit=N
func (h *Handler) ListJoinRequests(w http.ResponseWriter, r *http.Request) {
	if h.requests == nil {
		NotFound(w, "join request store is not configured")
		return
	}

	accountID, ok := parseAccountFilter(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	history, err := h.requests.History(r.Context(), accountID, limit)
	if HandleError(w, h.logger, err, "") {
		return
	}
	List(w, history, len(history))
}

// ClearJoinRequests сбрасывает историю: всю или одного аккаунта.
// После сброса каналы снова считаются необработанными.
// DELETE /api/v1/requests?account_id=
func (h *Handler) ClearJoinRequests(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseAccountFilter(w, r)
	if !ok {
		return
	}

	n, err := h.control.ClearJoinRequests(r.Context(), accountID)
	if HandleError(w, h.logger, err, "") {
		return
	}
	Success(w, ClearResponse{Deleted: n})
}

// DeleteJoinRequest удаляет одну запись истории.
// DELETE /api/v1/requests/{account_id}/{channel_id}
func (h *Handler) DeleteJoinRequest(w http.ResponseWriter, r *http.Request) {
	if h.requests == nil {
		NotFound(w, "join request store is not configured")
		return
	}

	accountID, err := uuid.Parse(r.PathValue("account_id"))
	if err != nil {
		BadRequest(w, "invalid account id")
		return
	}
	channelID, err := uuid.Parse(r.PathValue("channel_id"))
	if err != nil {
		BadRequest(w, "invalid channel id")
		return
	}

	if HandleError(w, h.logger, h.requests.Delete(r.Context(), accountID, channelID), "join request not found") {
		return
	}
	NoContent(w)
}

// parseAccountFilter читает ?account_id=; пусто — uuid.Nil.
func parseAccountFilter(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	v := r.URL.Query().Get("account_id")
	if v == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(v)
	if err != nil {
		BadRequest(w, "invalid account_id filter")
		return uuid.Nil, false
	}
	return id, true
}
