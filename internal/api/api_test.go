package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/control"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/fleet"
	"github.com/shaiso/Autopilot/internal/orchestrator"
	"github.com/shaiso/Autopilot/internal/repo"
	"github.com/shaiso/Autopilot/internal/telemetry"
)

type fakeController struct {
	mu      sync.Mutex
	running bool
	paused  bool
	opts    orchestrator.Options
}

func (c *fakeController) Start(_ context.Context, opts orchestrator.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return orchestrator.ErrAlreadyRunning
	}
	c.running, c.opts = true, opts
	return nil
}

func (c *fakeController) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return orchestrator.ErrNotRunning
	}
	c.paused = true
	return nil
}

func (c *fakeController) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return orchestrator.ErrNotRunning
	}
	c.paused = false
	return nil
}

func (c *fakeController) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return orchestrator.ErrNotRunning
	}
	c.running, c.paused = false, false
	return nil
}

func (c *fakeController) Status() orchestrator.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return orchestrator.Status{Running: c.running, Paused: c.paused, Options: c.opts}
}

func (c *fakeController) Defaults() orchestrator.Options {
	return orchestrator.DefaultOptions()
}

type memWorkflows struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Workflow
}

func (s *memWorkflows) List(context.Context) ([]domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Workflow
	for _, wf := range s.items {
		out = append(out, *wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memWorkflows) GetByID(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *wf
	return &cp, nil
}

func (s *memWorkflows) Create(_ context.Context, wf *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf.IsDefault {
		for _, other := range s.items {
			other.IsDefault = false
		}
	}
	wf.CreatedAt = time.Now()
	wf.UpdatedAt = wf.CreatedAt
	cp := *wf
	s.items[wf.ID] = &cp
	return nil
}

func (s *memWorkflows) Update(_ context.Context, wf *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[wf.ID]; !ok {
		return repo.ErrNotFound
	}
	wf.UpdatedAt = time.Now()
	cp := *wf
	s.items[wf.ID] = &cp
	return nil
}

func (s *memWorkflows) SetDefault(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repo.ErrNotFound
	}
	for wid, wf := range s.items {
		wf.IsDefault = wid == id
	}
	return nil
}

func (s *memWorkflows) Rename(_ context.Context, id uuid.UUID, name string, description *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.items[id]
	if !ok {
		return repo.ErrNotFound
	}
	wf.Name = name
	if description != nil {
		wf.Description = *description
	}
	return nil
}

func (s *memWorkflows) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

type memAccounts struct {
	items []domain.Account
}

func (s *memAccounts) Sync(ctx context.Context, accounts []domain.Account, replace bool) (int, error) {
	if replace {
		s.items = nil
	}
	added := 0
	for _, a := range accounts {
		if err := s.Create(ctx, &a); err == nil {
			added++
		}
	}
	return added, nil
}

func (s *memAccounts) List(_ context.Context, activeOnly bool) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range s.items {
		if !activeOnly || a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memAccounts) Create(_ context.Context, a *domain.Account) error {
	for _, other := range s.items {
		if other.PhoneNumber == a.PhoneNumber {
			return repo.ErrAlreadyExists
		}
	}
	a.ID = uuid.New()
	s.items = append(s.items, *a)
	return nil
}

func (s *memAccounts) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsActive = active
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *memAccounts) Delete(_ context.Context, id uuid.UUID) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

type memChannels struct {
	items []domain.Channel
}

func (s *memChannels) List(_ context.Context, activeOnly bool) ([]domain.Channel, error) {
	var out []domain.Channel
	for _, c := range s.items {
		if !activeOnly || c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memChannels) Create(_ context.Context, c *domain.Channel) error {
	c.ID = uuid.New()
	s.items = append(s.items, *c)
	return nil
}

func (s *memChannels) CreateBulk(_ context.Context, links []string) (int, error) {
	added := 0
	for _, link := range repo.NormalizeLinks(links) {
		known := false
		for _, c := range s.items {
			known = known || c.Link == link
		}
		if !known {
			s.items = append(s.items, domain.Channel{ID: uuid.New(), Link: link, IsActive: true})
			added++
		}
	}
	return added, nil
}

func (s *memChannels) DeleteAll(context.Context) (int64, error) {
	n := int64(len(s.items))
	s.items = nil
	return n, nil
}

func (s *memChannels) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsActive = active
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *memChannels) Delete(_ context.Context, id uuid.UUID) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

type memRequests struct {
	items      []repo.JoinRequest
	lastFilter uuid.UUID
	lastLimit  int
	clearedAll bool
}

func (s *memRequests) History(_ context.Context, accountID uuid.UUID, limit int) ([]repo.JoinRequest, error) {
	s.lastFilter, s.lastLimit = accountID, limit
	var out []repo.JoinRequest
	for _, jr := range s.items {
		if accountID == uuid.Nil || jr.AccountID == accountID {
			out = append(out, jr)
		}
	}
	return out, nil
}

func (s *memRequests) Delete(_ context.Context, accountID, channelID uuid.UUID) error {
	for i, jr := range s.items {
		if jr.AccountID == accountID && jr.ChannelID == channelID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *memRequests) ClearAll(context.Context) (int64, error) {
	n := int64(len(s.items))
	s.items = nil
	s.clearedAll = true
	return n, nil
}

func (s *memRequests) ClearForAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	var kept []repo.JoinRequest
	for _, jr := range s.items {
		if jr.AccountID != accountID {
			kept = append(kept, jr)
		}
	}
	n := int64(len(s.items) - len(kept))
	s.items = kept
	return n, nil
}

type memPreview struct{}

func (memPreview) ListIdentities(context.Context) ([]domain.Identity, error) {
	return []domain.Identity{{Key: "+111", AccountID: uuid.NewString(), TargetPath: "/accounts/+111/Telegram.exe"}}, nil
}

func (memPreview) PendingWork(context.Context, domain.Identity, int, bool) ([]domain.WorkItem, error) {
	return []domain.WorkItem{{ID: "c1", Value: "https://t.me/a"}}, nil
}

type memLogs struct {
	entries []repo.LogEntry
	limit   int
}

func (l *memLogs) List(_ context.Context, limit int) ([]repo.LogEntry, error) {
	l.limit = limit
	return l.entries, nil
}

func (l *memLogs) Clear(context.Context) error {
	l.entries = nil
	return nil
}

type testServer struct {
	mux       *http.ServeMux
	ctrl      *fakeController
	rec       *actuator.Recorder
	workflows *memWorkflows
	accounts  *memAccounts
	channels  *memChannels
	requests  *memRequests
	logs      *memLogs
}

// accountsDir — папка с установками, которую видит сервис в тестах.
var accountsDir = fstest.MapFS{
	"+111/Telegram.exe":         {Data: []byte("x")},
	"222/Telegram/Telegram.exe": {Data: []byte("x")},
	"notes/todo.txt":            {Data: []byte("x")},
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ts := &testServer{
		mux:       http.NewServeMux(),
		ctrl:      &fakeController{},
		rec:       actuator.NewRecorder(),
		workflows: &memWorkflows{items: make(map[uuid.UUID]*domain.Workflow)},
		accounts:  &memAccounts{},
		channels:  &memChannels{},
		requests:  &memRequests{},
		logs:      &memLogs{},
	}
	svc := control.NewService(control.Config{
		Controller: ts.ctrl,
		Fleet: fleet.New(fleet.Config{
			Actuator: ts.rec,
			MaxSlots: 3,
			MinTTL:   time.Minute,
			MaxTTL:   time.Minute,
			Logger:   logger,
		}),
		Channels:    ts.channels,
		Requests:    ts.requests,
		Accounts:    ts.accounts,
		Preview:     memPreview{},
		AccountsDir: "/accounts",
		OpenDir: func(root string) fs.FS {
			if root == "/accounts" {
				return accountsDir
			}
			return fstest.MapFS{}
		},
		Logger: logger,
	})
	NewHandler(Config{
		Control:   svc,
		Workflows: ts.workflows,
		Accounts:  ts.accounts,
		Channels:  ts.channels,
		Requests:  ts.requests,
		Logs:      ts.logs,
		Logger:    logger,
	}).RegisterRoutes(ts.mux)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			r = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp.Data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) ErrorCode {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp.Error.Code
}

const editorGraph = `{
	"nodes": [
		{"id": "n1", "type": "spawnTarget", "data": {"useDynamic": true}, "position": {"x": 0, "y": 0}},
		{"id": "n2", "type": "delay", "data": {"duration": 1}, "position": {"x": 0, "y": 100}},
		{"id": "n3", "type": "teleport", "data": {}, "position": {"x": 0, "y": 200}}
	],
	"edges": [
		{"id": "e1", "source": "n1", "target": "n2"},
		{"id": "e2", "source": "n2", "target": "n3"}
	]
}`

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "ok") {
		t.Errorf("healthz = %d %q", w.Code, w.Body.String())
	}
}

func TestAutomationLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/automation/pause", nil)
	if w.Code != http.StatusUnprocessableEntity || errorCode(t, w) != ErrCodeInvalidState {
		t.Fatalf("pause idle = %d %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodPost, "/api/v1/automation/start", `{"items_per_identity": 2}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start = %d %s", w.Code, w.Body.String())
	}
	st := decodeData[orchestrator.Status](t, w)
	if !st.Running || st.Options.ItemsPerIdentity != 2 || !st.Options.ExcludeCompleted {
		t.Errorf("status after start = %+v", st)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/automation/start", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second start = %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/automation/pause", nil)
	if w.Code != http.StatusOK || !ts.ctrl.Status().Paused {
		t.Errorf("pause = %d paused=%v", w.Code, ts.ctrl.Status().Paused)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/automation/resume", nil)
	if w.Code != http.StatusOK || ts.ctrl.Status().Paused {
		t.Errorf("resume = %d paused=%v", w.Code, ts.ctrl.Status().Paused)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/automation/stop", nil)
	if w.Code != http.StatusOK || ts.ctrl.Status().Running {
		t.Errorf("stop = %d running=%v", w.Code, ts.ctrl.Status().Running)
	}
}

func TestStartValidation(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{"items_per_identity": 0}`, `{"items_per_identity": -3}`, `not json`} {
		w := ts.do(t, http.MethodPost, "/api/v1/automation/start", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("start %s = %d, want 400", body, w.Code)
		}
	}
	if ts.ctrl.Status().Running {
		t.Error("controller started on invalid request")
	}
}

func TestFleetEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/fleet/slots", LaunchRequest{Identity: "alice", TargetPath: "/a/app"})
	if w.Code != http.StatusCreated {
		t.Fatalf("launch = %d %s", w.Code, w.Body.String())
	}
	slot := decodeData[fleet.SlotInfo](t, w)
	if slot.Identity != "alice" || slot.Handle == 0 {
		t.Errorf("slot = %+v", slot)
	}

	ts.rec.SetMissing("/gone")
	w = ts.do(t, http.MethodPost, "/api/v1/fleet/slots", LaunchRequest{Identity: "bob", TargetPath: "/gone"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("launch missing = %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/fleet/slots", `{"identity": ""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("launch empty = %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/fleet/slots", nil)
	slots := decodeData[[]fleet.SlotInfo](t, w)
	if len(slots) != 1 || slots[0].Identity != "alice" {
		t.Errorf("slots = %+v", slots)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/fleet/settings", control.SettingsPayload{MinTTLSec: 120, MaxTTLSec: 60})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid settings = %d", w.Code)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/fleet/settings", control.SettingsPayload{MinTTLSec: 60, MaxTTLSec: 120})
	if w.Code != http.StatusOK {
		t.Fatalf("settings = %d %s", w.Code, w.Body.String())
	}
	if got := decodeData[control.SettingsPayload](t, w); got.MaxTTLSec != 120 {
		t.Errorf("settings = %+v", got)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/fleet/kill-all", nil)
	if got := decodeData[KillAllResponse](t, w); got.Killed != 1 {
		t.Errorf("killed = %d, want 1", got.Killed)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if st := decodeData[control.Status](t, w); st.Fleet.Count != 0 || st.Fleet.MaxSlots != 3 {
		t.Errorf("status fleet = %+v", st.Fleet)
	}
}

func TestWorkflowEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/workflows",
		`{"name": "join", "is_default": true, "graph": `+editorGraph+`}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	created := decodeData[WorkflowResponse](t, w)
	if len(created.Graph.Nodes) != 3 || !created.IsDefault {
		t.Errorf("created = %+v", created)
	}
	if len(created.UnknownNodes) != 1 || created.UnknownNodes[0] != "n3" {
		t.Errorf("unknown nodes = %v, want [n3]", created.UnknownNodes)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/workflows",
		`{"name": "other", "graph": {"nodes": [{"id": "a", "type": "delay"}]}}`)
	other := decodeData[WorkflowResponse](t, w)

	w = ts.do(t, http.MethodGet, "/api/v1/workflows", nil)
	list := decodeData[[]WorkflowSummary](t, w)
	if len(list) != 2 || list[0].Name != "join" || list[0].Nodes != 3 || list[0].Edges != 2 {
		t.Errorf("list = %+v", list)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/workflows/"+other.ID.String()+"/default", nil)
	if w.Code != http.StatusOK || !decodeData[WorkflowSummary](t, w).IsDefault {
		t.Errorf("set default = %d %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/v1/workflows/"+created.ID.String(), nil)
	if got := decodeData[WorkflowResponse](t, w); got.IsDefault {
		t.Error("previous default still marked default")
	}

	w = ts.do(t, http.MethodPut, "/api/v1/workflows/"+other.ID.String(),
		`{"graph": {"nodes": [{"id": "a", "type": "delay"}, {"id": "b", "type": "delay"}], "edges": [{"source": "a", "target": "b"}]}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}
	updated := decodeData[WorkflowResponse](t, w)
	if updated.Name != "other" || len(updated.Graph.Nodes) != 2 || len(updated.Graph.Edges) != 1 {
		t.Errorf("updated = %+v", updated)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/workflows/"+other.ID.String(), `{"graph": {"nodes": []}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("update with empty graph = %d", w.Code)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/workflows/"+uuid.NewString(), `{"name": "ghost"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/workflows/"+uuid.NewString(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing = %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/workflows/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("get bad id = %d", w.Code)
	}
}

func TestCreateWorkflow_Invalid(t *testing.T) {
	ts := newTestServer(t)

	bodies := map[string]string{
		"no name":     `{"graph": {"nodes": [{"id": "a", "type": "delay"}]}}`,
		"no graph":    `{"name": "x"}`,
		"empty graph": `{"name": "x", "graph": {"nodes": []}}`,
		"dup ids":     `{"name": "x", "graph": {"nodes": [{"id": "a", "type": "delay"}, {"id": "a", "type": "delay"}]}}`,
		"bad edge":    `{"name": "x", "graph": {"nodes": [{"id": "a", "type": "delay"}], "edges": [{"source": "a", "target": "z"}]}}`,
	}
	for name, body := range bodies {
		w := ts.do(t, http.MethodPost, "/api/v1/workflows", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: code = %d, want 400", name, w.Code)
		}
	}
}

func TestAccountEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/accounts", `{"phone_number": " +100 ", "folder_path": "/opt/a"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	created := decodeData[domain.Account](t, w)
	if created.PhoneNumber != "+100" || !created.IsActive {
		t.Errorf("created = %+v", created)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/accounts", `{"phone_number": "+100", "folder_path": "/opt/b"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate = %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/v1/accounts", `{"phone_number": "+200"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no path = %d", w.Code)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/accounts/"+created.ID.String()+"/active", `{"active": false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("disable = %d %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodPut, "/api/v1/accounts/"+created.ID.String()+"/active", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("set active without flag = %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/accounts?active=true", nil)
	if got := decodeData[[]domain.Account](t, w); len(got) != 0 {
		t.Errorf("active accounts = %+v", got)
	}
	w = ts.do(t, http.MethodGet, "/api/v1/accounts?active=maybe", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad filter = %d", w.Code)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/accounts/"+created.ID.String(), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	w = ts.do(t, http.MethodDelete, "/api/v1/accounts/"+created.ID.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete again = %d", w.Code)
	}
}

func TestChannelEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/channels", `{"link": "https://t.me/+abc", "is_active": false}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	ch := decodeData[domain.Channel](t, w)
	if ch.IsActive {
		t.Error("channel created active despite is_active=false")
	}

	w = ts.do(t, http.MethodPost, "/api/v1/channels", `{"link": "  "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank link = %d", w.Code)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/channels/"+ch.ID.String()+"/active", `{"active": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("enable = %d", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/api/v1/channels?active=true", nil)
	if got := decodeData[[]domain.Channel](t, w); len(got) != 1 || got[0].Link != "https://t.me/+abc" {
		t.Errorf("active channels = %+v", got)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/channels/"+uuid.NewString()+"/active", `{"active": true}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("enable missing = %d", w.Code)
	}
}

func TestLogs(t *testing.T) {
	ts := newTestServer(t)
	ts.logs.entries = []repo.LogEntry{{ID: 1, Action: "loop_started", Status: repo.LogStatusInfo}}

	w := ts.do(t, http.MethodGet, "/api/v1/logs?limit=5000", nil)
	if got := decodeData[[]repo.LogEntry](t, w); len(got) != 1 || ts.logs.limit != maxLogLimit {
		t.Errorf("logs = %+v limit=%d", got, ts.logs.limit)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/logs?limit=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", w.Code)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/logs", nil)
	if w.Code != http.StatusNoContent || ts.logs.entries != nil {
		t.Errorf("clear = %d", w.Code)
	}

	// stats store не настроен
	w = ts.do(t, http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("stats = %d, want 404", w.Code)
	}
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	if rw.status != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rw.status, http.StatusTeapot)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("code = %d, want 500", w.Code)
	}

	// начатый ответ не перезаписывается
	h = Recovery()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late boom")
	}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusAccepted || w.Body.Len() != 0 {
		t.Errorf("after partial write = %d %q", w.Code, w.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var seen string
	h := Chain(RequestID(logger), AccessLog(), Recovery())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry.FromContext(r.Context()).Info("inside handler")
		seen = w.Header().Get(HeaderRequestID)
		NoContent(w)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/logs", nil)
	req.Header.Set(HeaderRequestID, "panel-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got != "panel-42" || seen != "panel-42" {
		t.Errorf("request id = %q (handler saw %q)", got, seen)
	}
	logs := buf.String()
	if strings.Count(logs, "request_id=panel-42") != 2 {
		t.Errorf("handler and access log should carry request id:\n%s", logs)
	}
	if !strings.Contains(logs, "status=204") {
		t.Errorf("access log without status:\n%s", logs)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(w.Header().Get(HeaderRequestID)); err != nil {
		t.Errorf("generated request id %q is not a uuid", w.Header().Get(HeaderRequestID))
	}
}

func TestWorkflowRenameDeleteAndDryRun(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/workflows", `{"name": "join", "description": "old", "graph": `+editorGraph+`}`)
	created := decodeData[WorkflowResponse](t, w)

	w = ts.do(t, http.MethodPatch, "/api/v1/workflows/"+created.ID.String(), `{"name": "join v2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d %s", w.Code, w.Body.String())
	}
	if got := decodeData[WorkflowSummary](t, w); got.Name != "join v2" || got.Description != "old" || got.Nodes != 3 {
		t.Errorf("renamed = %+v", got)
	}

	w = ts.do(t, http.MethodPatch, "/api/v1/workflows/"+created.ID.String(), `{"name": "join v3", "description": ""}`)
	if got := decodeData[WorkflowSummary](t, w); got.Description != "" {
		t.Errorf("description not cleared: %+v", got)
	}

	w = ts.do(t, http.MethodPatch, "/api/v1/workflows/"+created.ID.String(), `{"name": " "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("rename blank = %d", w.Code)
	}

	// сухой прогон сохранённого сценария: ввод только записывается
	w = ts.do(t, http.MethodPost, "/api/v1/workflows/test", `{"workflow_id": "`+created.ID.String()+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("dry run = %d %s", w.Code, w.Body.String())
	}
	dry := decodeData[control.DryRunResult](t, w)
	if dry.Status != string(domain.RunStateCompleted) || dry.NodesExecuted != 2 || dry.NodesSkipped != 1 {
		t.Errorf("dry run = %+v", dry)
	}
	if dry.Identity != "+111" || dry.Items != 1 {
		t.Errorf("dry run context = %+v", dry)
	}
	if len(ts.rec.Calls()) != 0 {
		t.Errorf("dry run touched the fleet actuator: %v", ts.rec.Methods())
	}

	w = ts.do(t, http.MethodPost, "/api/v1/workflows/test", `{"graph": {"nodes": [{"id": "a", "type": "keyPress", "data": {"key": "enter"}}]}}`)
	if got := decodeData[control.DryRunResult](t, w); len(got.Calls) != 1 || !strings.HasPrefix(got.Calls[0], "SendKey(") {
		t.Errorf("dry run calls = %v", got.Calls)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/workflows/test", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("dry run without graph = %d", w.Code)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/workflows/"+created.ID.String(), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	w = ts.do(t, http.MethodDelete, "/api/v1/workflows/"+created.ID.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete again = %d", w.Code)
	}
	w = ts.do(t, http.MethodPatch, "/api/v1/workflows/"+created.ID.String(), `{"name": "ghost"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("rename missing = %d", w.Code)
	}
}

func TestCreateWorkflow_SchemaViolationDetails(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/workflows",
		`{"name": "x", "graph": {"nodes": [{"id": "a", "type": 5}], "edges": [{"source": "a"}]}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", w.Code)
	}

	var resp struct {
		Error struct {
			Code    ErrorCode `json:"code"`
			Details []struct {
				Path    string `json:"path"`
				Message string `json:"message"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != ErrCodeBadRequest || len(resp.Error.Details) < 2 {
		t.Fatalf("error = %+v", resp.Error)
	}

	paths := make([]string, 0, len(resp.Error.Details))
	for _, d := range resp.Error.Details {
		paths = append(paths, d.Path)
	}
	joined := strings.Join(paths, ",")
	if !strings.Contains(joined, "/nodes/0/type") || !strings.Contains(joined, "/edges/0") {
		t.Errorf("violation paths = %v", paths)
	}
	if len(ts.workflows.items) != 0 {
		t.Error("invalid workflow stored")
	}
}

func TestChannelBulkAndClear(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/channels/bulk",
		BulkChannelsRequest{Links: []string{"https://t.me/a", " https://t.me/b ", "", "https://t.me/a"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("bulk = %d %s", w.Code, w.Body.String())
	}
	if got := decodeData[BulkChannelsResponse](t, w); got.Received != 4 || got.Added != 2 {
		t.Errorf("bulk = %+v", got)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/channels/bulk", BulkChannelsRequest{Links: []string{"https://t.me/b", "https://t.me/c"}})
	if got := decodeData[BulkChannelsResponse](t, w); got.Added != 1 {
		t.Errorf("second bulk added = %d, want 1", got.Added)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/channels/bulk", `{"links": []}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty bulk = %d", w.Code)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/channels", nil)
	if got := decodeData[ClearResponse](t, w); w.Code != http.StatusOK || got.Deleted != 3 {
		t.Errorf("clear = %d %+v", w.Code, got)
	}
	if len(ts.channels.items) != 0 {
		t.Errorf("channels left: %+v", ts.channels.items)
	}
}

func TestJoinRequestHistory(t *testing.T) {
	ts := newTestServer(t)
	alice, bob := uuid.New(), uuid.New()
	ch1, ch2 := uuid.New(), uuid.New()
	ts.requests.items = []repo.JoinRequest{
		{AccountID: alice, ChannelID: ch1, Status: domain.OutcomeSent},
		{AccountID: alice, ChannelID: ch2, Status: domain.OutcomeFailed},
		{AccountID: bob, ChannelID: ch1, Status: domain.OutcomeSent},
	}

	w := ts.do(t, http.MethodGet, "/api/v1/requests", nil)
	if got := decodeData[[]repo.JoinRequest](t, w); len(got) != 3 || ts.requests.lastLimit != defaultHistoryLimit {
		t.Errorf("history = %d items, limit %d", len(got), ts.requests.lastLimit)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/requests?account_id="+bob.String()+"&limit=99999", nil)
	if got := decodeData[[]repo.JoinRequest](t, w); len(got) != 1 || ts.requests.lastLimit != maxHistoryLimit {
		t.Errorf("bob history = %+v limit=%d", got, ts.requests.lastLimit)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/requests?account_id=nope", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad filter = %d", w.Code)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/requests/"+alice.String()+"/"+ch2.String(), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete one = %d", w.Code)
	}
	w = ts.do(t, http.MethodDelete, "/api/v1/requests/"+alice.String()+"/"+ch2.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete one again = %d", w.Code)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/requests?account_id="+alice.String(), nil)
	if got := decodeData[ClearResponse](t, w); got.Deleted != 1 || ts.requests.clearedAll {
		t.Errorf("clear alice = %+v", got)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/requests", nil)
	if got := decodeData[ClearResponse](t, w); got.Deleted != 1 || !ts.requests.clearedAll {
		t.Errorf("clear all = %+v", got)
	}
}

func TestScanAccounts(t *testing.T) {
	ts := newTestServer(t)
	ts.accounts.items = []domain.Account{{ID: uuid.New(), PhoneNumber: "+999", FolderPath: "/old"}}

	w := ts.do(t, http.MethodPost, "/api/v1/accounts/scan", `{"keep_existing": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("scan = %d %s", w.Code, w.Body.String())
	}
	res := decodeData[control.ScanResult](t, w)
	if len(res.Found) != 2 || res.Added != 2 || res.Replaced || len(ts.accounts.items) != 3 {
		t.Errorf("scan keep = %+v, stored %d", res, len(ts.accounts.items))
	}

	w = ts.do(t, http.MethodPost, "/api/v1/accounts/scan", nil)
	res = decodeData[control.ScanResult](t, w)
	if !res.Replaced || len(ts.accounts.items) != 2 {
		t.Errorf("scan replace = %+v, stored %+v", res, ts.accounts.items)
	}
	if ts.accounts.items[0].PhoneNumber != "+111" || ts.accounts.items[1].PhoneNumber != "222" {
		t.Errorf("scanned phones = %+v", ts.accounts.items)
	}

	// пустая папка не трогает аккаунты
	w = ts.do(t, http.MethodPost, "/api/v1/accounts/scan", `{"root": "/elsewhere"}`)
	if res := decodeData[control.ScanResult](t, w); len(res.Found) != 0 || len(ts.accounts.items) != 2 {
		t.Errorf("empty scan = %+v", res)
	}
}
