package api

import (
	"net/http"
	"strconv"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// ListLogs возвращает последние записи журнала.
// GET /api/v1/logs?limit=N
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		NotFound(w, "log store is not configured")
		return
	}

	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = min(n, maxLogLimit)
	}

	entries, err := h.logs.List(r.Context(), limit)
	if HandleError(w, h.logger, err, "") {
		return
	}
	List(w, entries, len(entries))
}

// ClearLogs очищает журнал.
// DELETE /api/v1/logs
func (h *Handler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		NotFound(w, "log store is not configured")
		return
	}

	if HandleError(w, h.logger, h.logs.Clear(r.Context()), "") {
		return
	}
	NoContent(w)
}

// GetStats возвращает сводку результатов по аккаунтам.
// GET /api/v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		NotFound(w, "stats store is not configured")
		return
	}

	stats, err := h.stats.Stats(r.Context())
	if HandleError(w, h.logger, err, "") {
		return
	}
	List(w, stats, len(stats))
}
