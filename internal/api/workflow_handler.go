package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
)

// ListWorkflows возвращает список сценариев без графов.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.workflows.List(r.Context())
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]WorkflowSummary, len(workflows))
	for i, wf := range workflows {
		result[i] = WorkflowSummaryFromDomain(wf)
	}

	List(w, result, len(result))
}

// CreateWorkflow импортирует сценарий из JSON редактора.
// POST /api/v1/workflows
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if len(req.Graph) == 0 {
		BadRequest(w, "graph is required")
		return
	}

	graph, err := engine.ParseGraph(req.Graph)
	if err != nil {
		InvalidDocument(w, err)
		return
	}

	wf := &domain.Workflow{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		Graph:       *graph,
	}

	if HandleError(w, h.logger, h.workflows.Create(r.Context(), wf), "") {
		return
	}

	unknown := engine.UnknownKinds(graph)
	if len(unknown) > 0 {
		h.logger.Warn("workflow has nodes of unknown kinds", "workflow_id", wf.ID, "nodes", unknown)
	}

	Created(w, WorkflowResponse{Workflow: *wf, UnknownNodes: unknown})
}

// GetWorkflow возвращает сценарий по ID.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}

	Success(w, WorkflowResponse{Workflow: *wf, UnknownNodes: engine.UnknownKinds(&wf.Graph)})
}

// UpdateWorkflow сохраняет новую версию сценария из редактора.
// PUT /api/v1/workflows/{id}
func (h *Handler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}

	if req.Name != "" {
		wf.Name = req.Name
	}
	if req.Description != "" {
		wf.Description = req.Description
	}
	if len(req.Graph) > 0 {
		graph, err := engine.ParseGraph(req.Graph)
		if err != nil {
			InvalidDocument(w, err)
			return
		}
		wf.Graph = *graph
	}

	if HandleError(w, h.logger, h.workflows.Update(r.Context(), wf), "workflow not found") {
		return
	}

	Success(w, WorkflowResponse{Workflow: *wf, UnknownNodes: engine.UnknownKinds(&wf.Graph)})
}

// SetDefaultWorkflow делает сценарий исполняемым по умолчанию.
// PUT /api/v1/workflows/{id}/default
func (h *Handler) SetDefaultWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	if HandleError(w, h.logger, h.workflows.SetDefault(r.Context(), id), "workflow not found") {
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}
	Success(w, WorkflowSummaryFromDomain(*wf))
}

// RenameWorkflow меняет имя и описание, не трогая граф.
// PATCH /api/v1/workflows/{id}
func (h *Handler) RenameWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	var req RenameWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	if HandleError(w, h.logger, h.workflows.Rename(r.Context(), id, req.Name, req.Description), "workflow not found") {
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "workflow not found") {
		return
	}
	Success(w, WorkflowSummaryFromDomain(*wf))
}

// DeleteWorkflow удаляет сценарий.
// DELETE /api/v1/workflows/{id}
func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	if HandleError(w, h.logger, h.workflows.Delete(r.Context(), id), "workflow not found") {
		return
	}
	NoContent(w)
}

// TestWorkflow выполняет сухой прогон графа без реального ввода.
// POST /api/v1/workflows/test
func (h *Handler) TestWorkflow(w http.ResponseWriter, r *http.Request) {
	var req TestWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	var graph *domain.Graph
	switch {
	case len(req.Graph) > 0:
		g, err := engine.ParseGraph(req.Graph)
		if err != nil {
			InvalidDocument(w, err)
			return
		}
		graph = g
	case req.WorkflowID != nil:
		wf, err := h.workflows.GetByID(r.Context(), *req.WorkflowID)
		if HandleError(w, h.logger, err, "workflow not found") {
			return
		}
		graph = &wf.Graph
	default:
		BadRequest(w, "graph or workflow_id is required")
		return
	}

	result, err := h.control.TestWorkflow(r.Context(), graph)
	if HandleError(w, h.logger, err, "") {
		return
	}
	Success(w, result)
}
