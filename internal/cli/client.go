package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из api, CLI не импортирует внутренние пакеты агента) ---

// Options — параметры прохода.
type Options struct {
	ItemsPerIdentity int  `json:"items_per_identity"`
	ExcludeCompleted bool `json:"exclude_completed"`
}

// Stats — счётчики прохода.
type Stats struct {
	ProcessedIdentities int `json:"processed_identities"`
	SkippedIdentities   int `json:"skipped_identities"`
	FailedIdentities    int `json:"failed_identities"`
	TotalItems          int `json:"total_items"`
	SuccessfulItems     int `json:"successful_items"`
	FailedItems         int `json:"failed_items"`
	CurrentLoop         int `json:"current_loop"`
}

// Identity — текущая идентичность.
type Identity struct {
	Key        string `json:"key"`
	TargetPath string `json:"target_path"`
}

// RunSummary — итог последнего запуска графа.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Identity   string `json:"identity"`
	Status     string `json:"status"`
	Cancelled  bool   `json:"cancelled,omitempty"`
	LastNodeID string `json:"last_node_id,omitempty"`
	Error      string `json:"error,omitempty"`
	Items      int    `json:"items"`
	FinishedAt string `json:"finished_at"`
}

// AutomationStatus — состояние Run Controller'а.
type AutomationStatus struct {
	Running         bool        `json:"running"`
	Paused          bool        `json:"paused"`
	Stopping        bool        `json:"stopping"`
	EngineState     string      `json:"engine_state"`
	CurrentIdentity *Identity   `json:"current_identity,omitempty"`
	Options         Options     `json:"options"`
	Stats           Stats       `json:"stats"`
	LastRun         *RunSummary `json:"last_run,omitempty"`
	StartedAt       string      `json:"started_at,omitempty"`
}

// Slot — слот флота. TTL и Remaining — в наносекундах, как их отдаёт API.
type Slot struct {
	Identity   string        `json:"identity"`
	Handle     int           `json:"handle"`
	TargetPath string        `json:"target_path"`
	StartedAt  string        `json:"started_at"`
	TTL        time.Duration `json:"ttl"`
	Remaining  time.Duration `json:"remaining"`
}

// FleetSettings — границы TTL в секундах.
type FleetSettings struct {
	MinTTLSec int `json:"min_ttl_sec"`
	MaxTTLSec int `json:"max_ttl_sec"`
}

// FleetStatus — состояние флота.
type FleetStatus struct {
	Slots    []Slot        `json:"slots"`
	Count    int           `json:"count"`
	MaxSlots int           `json:"max_slots"`
	Settings FleetSettings `json:"settings"`
}

// StatusResponse — ответ /api/v1/status.
type StatusResponse struct {
	Automation AutomationStatus `json:"automation"`
	Fleet      FleetStatus      `json:"fleet"`
}

// WorkflowSummary — элемент списка сценариев.
type WorkflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"is_default"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	UpdatedAt   string `json:"updated_at"`
}

// WorkflowResponse — сценарий целиком.
type WorkflowResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	IsDefault    bool            `json:"is_default"`
	Graph        json.RawMessage `json:"graph"`
	UnknownNodes []string        `json:"unknown_nodes,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// Account — учётная запись.
type Account struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
	FolderPath  string `json:"folder_path"`
	ExePath     string `json:"exe_path,omitempty"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
	LastUsed    string `json:"last_used,omitempty"`
}

// Channel — единица работы.
type Channel struct {
	ID        string `json:"id"`
	Link      string `json:"link"`
	Name      string `json:"name,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// JoinRequest — запись истории заявок.
type JoinRequest struct {
	AccountID   string `json:"account_id"`
	ChannelID   string `json:"channel_id"`
	Status      string `json:"status"`
	RequestedAt string `json:"requested_at"`
	PhoneNumber string `json:"phone_number"`
	ChannelLink string `json:"channel_link"`
	ChannelName string `json:"channel_name,omitempty"`
}

// DryRunResult — итог сухого прогона сценария.
type DryRunResult struct {
	RunID         string   `json:"run_id"`
	Status        string   `json:"status"`
	Error         string   `json:"error,omitempty"`
	LastNodeID    string   `json:"last_node_id,omitempty"`
	NodesExecuted int      `json:"nodes_executed"`
	NodesSkipped  int      `json:"nodes_skipped"`
	Identity      string   `json:"identity,omitempty"`
	Items         int      `json:"items"`
	Calls         []string `json:"calls"`
	Pauses        int      `json:"pauses"`
	TotalDelay    string   `json:"total_delay"`
}

// ScanResult — итог поиска аккаунтов.
type ScanResult struct {
	Root     string    `json:"root"`
	Found    []Account `json:"found"`
	Added    int       `json:"added"`
	Replaced bool      `json:"replaced"`
}

// --- Request types ---

// StartRequest — параметры старта. nil-поля — значения агента.
type StartRequest struct {
	ItemsPerIdentity *int  `json:"items_per_identity,omitempty"`
	ExcludeCompleted *bool `json:"exclude_completed,omitempty"`
}

// LaunchRequest — запуск процесса идентичности.
type LaunchRequest struct {
	Identity   string `json:"identity"`
	TargetPath string `json:"target_path"`
}

// CreateWorkflowRequest — импорт сценария.
type CreateWorkflowRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsDefault   bool            `json:"is_default,omitempty"`
	Graph       json.RawMessage `json:"graph"`
}

// CreateAccountRequest — добавление аккаунта.
type CreateAccountRequest struct {
	PhoneNumber string `json:"phone_number"`
	FolderPath  string `json:"folder_path,omitempty"`
	ExePath     string `json:"exe_path,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// CreateChannelRequest — добавление канала.
type CreateChannelRequest struct {
	Link     string `json:"link"`
	Name     string `json:"name,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// RenameWorkflowRequest — новое имя и, если задано, описание.
type RenameWorkflowRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// TestWorkflowRequest — сухой прогон сохранённого сценария или графа.
type TestWorkflowRequest struct {
	WorkflowID string          `json:"workflow_id,omitempty"`
	Graph      json.RawMessage `json:"graph,omitempty"`
}

// ScanAccountsRequest — поиск установок в папке агента.
type ScanAccountsRequest struct {
	Root         string `json:"root,omitempty"`
	KeepExisting bool   `json:"keep_existing,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул агент.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для API агента.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// stop ждёт завершения текущего узла на стороне агента
			Timeout: 60 * time.Second,
		},
	}
}

// --- Automation ---

// Status возвращает состояние агента.
func (c *Client) Status() (*StatusResponse, error) {
	var st StatusResponse
	err := c.get("/api/v1/status", &st)
	return &st, err
}

// Start запускает проход.
func (c *Client) Start(req StartRequest) (*AutomationStatus, error) {
	var st AutomationStatus
	err := c.post("/api/v1/automation/start", req, &st)
	return &st, err
}

// Pause приостанавливает проход.
func (c *Client) Pause() error {
	return c.post("/api/v1/automation/pause", nil, nil)
}

// Resume продолжает проход.
func (c *Client) Resume() error {
	return c.post("/api/v1/automation/resume", nil, nil)
}

// Stop останавливает проход.
func (c *Client) Stop() (*AutomationStatus, error) {
	var st AutomationStatus
	err := c.post("/api/v1/automation/stop", nil, &st)
	return &st, err
}

// --- Fleet ---

// ListSlots возвращает активные слоты.
func (c *Client) ListSlots() ([]Slot, error) {
	var slots []Slot
	err := c.list("/api/v1/fleet/slots", nil, &slots)
	return slots, err
}

// Launch запускает процесс идентичности.
func (c *Client) Launch(identity, targetPath string) (*Slot, error) {
	var slot Slot
	err := c.post("/api/v1/fleet/slots", LaunchRequest{Identity: identity, TargetPath: targetPath}, &slot)
	return &slot, err
}

// KillAll закрывает все процессы флота.
func (c *Client) KillAll() (int, error) {
	var resp struct {
		Killed int `json:"killed"`
	}
	err := c.post("/api/v1/fleet/kill-all", nil, &resp)
	return resp.Killed, err
}

// UpdateSettings меняет границы TTL.
func (c *Client) UpdateSettings(s FleetSettings) (*FleetSettings, error) {
	var out FleetSettings
	err := c.put("/api/v1/fleet/settings", s, &out)
	return &out, err
}

// --- Workflows ---

// ListWorkflows возвращает сценарии.
func (c *Client) ListWorkflows() ([]WorkflowSummary, error) {
	var workflows []WorkflowSummary
	err := c.list("/api/v1/workflows", nil, &workflows)
	return workflows, err
}

// GetWorkflow возвращает сценарий по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+url.PathEscape(id), &wf)
	return &wf, err
}

// CreateWorkflow импортирует сценарий.
func (c *Client) CreateWorkflow(req CreateWorkflowRequest) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows", req, &wf)
	return &wf, err
}

// UpdateWorkflow заменяет граф и (если заданы) имя и описание.
func (c *Client) UpdateWorkflow(id string, req CreateWorkflowRequest) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.put("/api/v1/workflows/"+url.PathEscape(id), req, &wf)
	return &wf, err
}

// SetDefaultWorkflow делает сценарий исполняемым по умолчанию.
func (c *Client) SetDefaultWorkflow(id string) (*WorkflowSummary, error) {
	var wf WorkflowSummary
	err := c.put("/api/v1/workflows/"+url.PathEscape(id)+"/default", nil, &wf)
	return &wf, err
}

// RenameWorkflow меняет имя и описание сценария.
func (c *Client) RenameWorkflow(id string, req RenameWorkflowRequest) (*WorkflowSummary, error) {
	var wf WorkflowSummary
	err := c.doData(http.MethodPatch, "/api/v1/workflows/"+url.PathEscape(id), req, &wf)
	return &wf, err
}

// DeleteWorkflow удаляет сценарий.
func (c *Client) DeleteWorkflow(id string) error {
	return c.doData(http.MethodDelete, "/api/v1/workflows/"+url.PathEscape(id), nil, nil)
}

// TestWorkflow выполняет сухой прогон.
func (c *Client) TestWorkflow(req TestWorkflowRequest) (*DryRunResult, error) {
	var res DryRunResult
	err := c.post("/api/v1/workflows/test", req, &res)
	return &res, err
}

// --- Accounts & channels ---

// ListAccounts возвращает аккаунты.
func (c *Client) ListAccounts(activeOnly bool) ([]Account, error) {
	var accounts []Account
	err := c.list("/api/v1/accounts", activeParams(activeOnly), &accounts)
	return accounts, err
}

// CreateAccount добавляет аккаунт.
func (c *Client) CreateAccount(req CreateAccountRequest) (*Account, error) {
	var a Account
	err := c.post("/api/v1/accounts", req, &a)
	return &a, err
}

// ScanAccounts ищет портативные установки в папке агента.
func (c *Client) ScanAccounts(req ScanAccountsRequest) (*ScanResult, error) {
	var res ScanResult
	err := c.post("/api/v1/accounts/scan", req, &res)
	return &res, err
}

// SetAccountActive включает или выключает аккаунт.
func (c *Client) SetAccountActive(id string, active bool) error {
	return c.put("/api/v1/accounts/"+url.PathEscape(id)+"/active", map[string]bool{"active": active}, nil)
}

// DeleteAccount удаляет аккаунт.
func (c *Client) DeleteAccount(id string) error {
	return c.doData(http.MethodDelete, "/api/v1/accounts/"+url.PathEscape(id), nil, nil)
}

// ListChannels возвращает каналы.
func (c *Client) ListChannels(activeOnly bool) ([]Channel, error) {
	var channels []Channel
	err := c.list("/api/v1/channels", activeParams(activeOnly), &channels)
	return channels, err
}

// CreateChannel добавляет канал.
func (c *Client) CreateChannel(req CreateChannelRequest) (*Channel, error) {
	var ch Channel
	err := c.post("/api/v1/channels", req, &ch)
	return &ch, err
}

// ImportChannels добавляет каналы списком. Возвращает число добавленных.
func (c *Client) ImportChannels(links []string) (int, error) {
	var resp struct {
		Added int `json:"added"`
	}
	err := c.post("/api/v1/channels/bulk", map[string][]string{"links": links}, &resp)
	return resp.Added, err
}

// ClearChannels удаляет все каналы.
func (c *Client) ClearChannels() (int64, error) {
	return c.clear("/api/v1/channels")
}

// SetChannelActive включает или выключает канал.
func (c *Client) SetChannelActive(id string, active bool) error {
	return c.put("/api/v1/channels/"+url.PathEscape(id)+"/active", map[string]bool{"active": active}, nil)
}

// DeleteChannel удаляет канал.
func (c *Client) DeleteChannel(id string) error {
	return c.doData(http.MethodDelete, "/api/v1/channels/"+url.PathEscape(id), nil, nil)
}

// --- Join requests ---

// ListJoinRequests возвращает историю заявок; пустой accountID — всех аккаунтов.
func (c *Client) ListJoinRequests(accountID string, limit int) ([]JoinRequest, error) {
	params := url.Values{}
	if accountID != "" {
		params.Set("account_id", accountID)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var history []JoinRequest
	err := c.list("/api/v1/requests", params, &history)
	return history, err
}

// ClearJoinRequests сбрасывает историю; пустой accountID — всех аккаунтов.
func (c *Client) ClearJoinRequests(accountID string) (int64, error) {
	path := "/api/v1/requests"
	if accountID != "" {
		path += "?" + url.Values{"account_id": []string{accountID}}.Encode()
	}
	return c.clear(path)
}

// DeleteJoinRequest удаляет одну запись истории.
func (c *Client) DeleteJoinRequest(accountID, channelID string) error {
	return c.doData(http.MethodDelete,
		"/api/v1/requests/"+url.PathEscape(accountID)+"/"+url.PathEscape(channelID), nil, nil)
}

func (c *Client) clear(path string) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	err := c.doData(http.MethodDelete, path, nil, &resp)
	return resp.Deleted, err
}

func activeParams(activeOnly bool) url.Values {
	if !activeOnly {
		return nil
	}
	return url.Values{"active": []string{"true"}}
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return &APIError{Status: resp.StatusCode}
	}
	return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}
