package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Autopilot/internal/domain"
)

// ListAccounts возвращает аккаунты.
// GET /api/v1/accounts?active=true
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		NotFound(w, "account store is not configured")
		return
	}

	activeOnly, ok := parseActiveFilter(w, r)
	if !ok {
		return
	}

	accounts, err := h.accounts.List(r.Context(), activeOnly)
	if HandleError(w, h.logger, err, "") {
		return
	}
	List(w, accounts, len(accounts))
}

// CreateAccount добавляет аккаунт.
// POST /api/v1/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		NotFound(w, "account store is not configured")
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.PhoneNumber == "" {
		BadRequest(w, "phone_number is required")
		return
	}
	if req.FolderPath == "" && req.ExePath == "" {
		BadRequest(w, "folder_path or exe_path is required")
		return
	}

	account := &domain.Account{
		PhoneNumber: req.PhoneNumber,
		FolderPath:  req.FolderPath,
		ExePath:     req.ExePath,
		IsActive:    boolOr(req.IsActive, true),
	}
	if HandleError(w, h.logger, h.accounts.Create(r.Context(), account), "") {
		return
	}
	Created(w, account)
}

// ScanAccounts ищет портативные установки в папке и сохраняет их.
// Без keep_existing найденные аккаунты заменяют все существующие.
// POST /api/v1/accounts/scan
func (h *Handler) ScanAccounts(w http.ResponseWriter, r *http.Request) {
	var req ScanAccountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	result, err := h.control.ScanAccounts(r.Context(), strings.TrimSpace(req.Root), !req.KeepExisting)
	if HandleError(w, h.logger, err, "") {
		return
	}
	Success(w, result)
}

// SetAccountActive включает или выключает аккаунт.
// PUT /api/v1/accounts/{id}/active
func (h *Handler) SetAccountActive(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		NotFound(w, "account store is not configured")
		return
	}

	id, active, ok := parseSetActive(w, r, "invalid account id")
	if !ok {
		return
	}

	if HandleError(w, h.logger, h.accounts.SetActive(r.Context(), id, active), "account not found") {
		return
	}
	Success(w, ActionResponse{Action: activeAction(active), OK: true})
}

// DeleteAccount удаляет аккаунт вместе с его результатами.
// DELETE /api/v1/accounts/{id}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		NotFound(w, "account store is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid account id")
		return
	}

	if HandleError(w, h.logger, h.accounts.Delete(r.Context(), id), "account not found") {
		return
	}
	NoContent(w)
}

// ListChannels возвращает каналы.
// GET /api/v1/channels?active=true
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		NotFound(w, "channel store is not configured")
		return
	}

	activeOnly, ok := parseActiveFilter(w, r)
	if !ok {
		return
	}

	channels, err := h.channels.List(r.Context(), activeOnly)
	if HandleError(w, h.logger, err, "") {
		return
	}
	List(w, channels, len(channels))
}

// CreateChannel добавляет канал.
// POST /api/v1/channels
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		NotFound(w, "channel store is not configured")
		return
	}

	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	req.Link = strings.TrimSpace(req.Link)
	if req.Link == "" {
		BadRequest(w, "link is required")
		return
	}

	channel := &domain.Channel{
		Link:     req.Link,
		Name:     req.Name,
		IsActive: boolOr(req.IsActive, true),
	}
	if HandleError(w, h.logger, h.channels.Create(r.Context(), channel), "") {
		return
	}
	Created(w, channel)
}

// CreateChannelsBulk импортирует список ссылок. Известные ссылки пропускаются.
// POST /api/v1/channels/bulk
func (h *Handler) CreateChannelsBulk(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		NotFound(w, "channel store is not configured")
		return
	}

	var req BulkChannelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.Links) == 0 {
		BadRequest(w, "links are required")
		return
	}

	added, err := h.channels.CreateBulk(r.Context(), req.Links)
	if HandleError(w, h.logger, err, "") {
		return
	}
	Created(w, BulkChannelsResponse{Received: len(req.Links), Added: added})
}

// ClearChannels удаляет все каналы.
// DELETE /api/v1/channels
func (h *Handler) ClearChannels(w http.ResponseWriter, r *http.Request) {
	n, err := h.control.ClearChannels(r.Context())
	if HandleError(w, h.logger, err, "") {
		return
	}
	Success(w, ClearResponse{Deleted: n})
}

// SetChannelActive включает или выключает канал.
// PUT /api/v1/channels/{id}/active
func (h *Handler) SetChannelActive(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		NotFound(w, "channel store is not configured")
		return
	}

	id, active, ok := parseSetActive(w, r, "invalid channel id")
	if !ok {
		return
	}

	if HandleError(w, h.logger, h.channels.SetActive(r.Context(), id, active), "channel not found") {
		return
	}
	Success(w, ActionResponse{Action: activeAction(active), OK: true})
}

// DeleteChannel удаляет канал.
// DELETE /api/v1/channels/{id}
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	if h.channels == nil {
		NotFound(w, "channel store is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid channel id")
		return
	}

	if HandleError(w, h.logger, h.channels.Delete(r.Context(), id), "channel not found") {
		return
	}
	NoContent(w)
}

func parseActiveFilter(w http.ResponseWriter, r *http.Request) (bool, bool) {
	v := r.URL.Query().Get("active")
	if v == "" {
		return false, true
	}
	active, err := strconv.ParseBool(v)
	if err != nil {
		BadRequest(w, "invalid active filter")
		return false, false
	}
	return active, true
}

func parseSetActive(w http.ResponseWriter, r *http.Request, badIDMsg string) (uuid.UUID, bool, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, badIDMsg)
		return uuid.Nil, false, false
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		BadRequest(w, "active is required")
		return uuid.Nil, false, false
	}
	return id, *req.Active, true
}

func activeAction(active bool) string {
	if active {
		return "enable"
	}
	return "disable"
}
