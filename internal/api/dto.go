package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/orchestrator"
)

// Automation DTOs

// StartRequest — параметры прохода. Пустое тело — значения агента.
type StartRequest struct {
	ItemsPerIdentity *int  `json:"items_per_identity,omitempty"`
	ExcludeCompleted *bool `json:"exclude_completed,omitempty"`
}

// Options накладывает заданные поля на defaults.
func (r StartRequest) Options(defaults orchestrator.Options) orchestrator.Options {
	opts := defaults
	if r.ItemsPerIdentity != nil {
		opts.ItemsPerIdentity = *r.ItemsPerIdentity
	}
	if r.ExcludeCompleted != nil {
		opts.ExcludeCompleted = *r.ExcludeCompleted
	}
	return opts
}

// ActionResponse — результат команды без собственных данных.
type ActionResponse struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
}

// Fleet DTOs

// LaunchRequest — запрос на запуск процесса идентичности.
type LaunchRequest struct {
	Identity   string `json:"identity"`
	TargetPath string `json:"target_path"`
}

// KillAllResponse — сколько слотов закрыто.
type KillAllResponse struct {
	Killed int `json:"killed"`
}

// Workflow DTOs

// CreateWorkflowRequest — импорт сценария из редактора.
type CreateWorkflowRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsDefault   bool            `json:"is_default,omitempty"`
	Graph       json.RawMessage `json:"graph"`
}

// RenameWorkflowRequest — новое имя и, если задано, описание.
type RenameWorkflowRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// TestWorkflowRequest — сухой прогон: граф из редактора или сохранённый сценарий.
type TestWorkflowRequest struct {
	WorkflowID *uuid.UUID      `json:"workflow_id,omitempty"`
	Graph      json.RawMessage `json:"graph,omitempty"`
}

// WorkflowSummary — элемент списка сценариев.
type WorkflowSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"is_default"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkflowSummaryFromDomain конвертирует domain.Workflow в WorkflowSummary.
func WorkflowSummaryFromDomain(wf domain.Workflow) WorkflowSummary {
	return WorkflowSummary{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		IsDefault:   wf.IsDefault,
		Nodes:       len(wf.Graph.Nodes),
		Edges:       len(wf.Graph.Edges),
		UpdatedAt:   wf.UpdatedAt,
	}
}

// WorkflowResponse — сценарий целиком.
type WorkflowResponse struct {
	domain.Workflow

	// UnknownNodes — узлы с типами, которые агент пропустит.
	UnknownNodes []string `json:"unknown_nodes,omitempty"`
}

// Account & channel DTOs

// CreateAccountRequest — запрос на добавление аккаунта.
type CreateAccountRequest struct {
	PhoneNumber string `json:"phone_number"`
	FolderPath  string `json:"folder_path"`
	ExePath     string `json:"exe_path,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// CreateChannelRequest — запрос на добавление канала.
type CreateChannelRequest struct {
	Link     string `json:"link"`
	Name     string `json:"name,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// BulkChannelsRequest — список ссылок для импорта.
type BulkChannelsRequest struct {
	Links []string `json:"links"`
}

// BulkChannelsResponse — итог импорта.
type BulkChannelsResponse struct {
	Received int `json:"received"`
	Added    int `json:"added"`
}

// ScanAccountsRequest — поиск установок в папке.
// Пустой root — папка агента по умолчанию.
type ScanAccountsRequest struct {
	Root         string `json:"root,omitempty"`
	KeepExisting bool   `json:"keep_existing,omitempty"`
}

// ClearResponse — сколько записей удалено.
type ClearResponse struct {
	Deleted int64 `json:"deleted"`
}

// SetActiveRequest включает или выключает запись.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
