package control

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
	"github.com/shaiso/Autopilot/internal/fleet"
	"github.com/shaiso/Autopilot/internal/mq"
	"github.com/shaiso/Autopilot/internal/orchestrator"
)

type fakeController struct {
	mu       sync.Mutex
	running  bool
	paused   bool
	started  []orchestrator.Options
	stops    int
	defaults orchestrator.Options
}

func (c *fakeController) Start(_ context.Context, opts orchestrator.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return orchestrator.ErrAlreadyRunning
	}
	c.running = true
	c.started = append(c.started, opts)
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
	c.running = false
	c.paused = false
	c.stops++
	return nil
}

func (c *fakeController) Status() orchestrator.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return orchestrator.Status{Running: c.running, Paused: c.paused}
}

func (c *fakeController) Defaults() orchestrator.Options {
	return c.defaults
}

type memStore struct {
	min, max time.Duration
	err      error
	saves    int
}

func (s *memStore) SaveTTLBounds(_ context.Context, minTTL, maxTTL time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.min, s.max = minTTL, maxTTL
	s.saves++
	return nil
}

type fixture struct {
	svc   *Service
	ctrl  *fakeController
	fleet *fleet.Manager
	rec   *actuator.Recorder
	store *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctrl:  &fakeController{defaults: orchestrator.DefaultOptions()},
		rec:   actuator.NewRecorder(),
		store: &memStore{},
	}
	f.fleet = fleet.New(fleet.Config{
		Actuator: f.rec,
		MaxSlots: 2,
		MinTTL:   time.Minute,
		MaxTTL:   2 * time.Minute,
	})
	f.svc = NewService(Config{
		Controller: f.ctrl,
		Fleet:      f.fleet,
		Store:      f.store,
	})
	return f
}

// delivery собирает сообщение так, как его видит consumer после json.Unmarshal.
func delivery(t *testing.T, cmd Command) *mq.Delivery {
	t.Helper()
	body, err := json.Marshal(mq.Message{ID: "m1", Type: mq.MessageTypeCommand, Payload: cmd, Timestamp: time.Now()})
	require.NoError(t, err)

	var msg mq.Message
	require.NoError(t, json.Unmarshal(body, &msg))
	return &mq.Delivery{Message: msg}
}

func TestCommand_Validate(t *testing.T) {
	require.NoError(t, Command{Name: CommandStart}.Validate())
	require.NoError(t, Command{Name: CommandLaunch, Identity: "a", TargetPath: "/x"}.Validate())
	require.ErrorIs(t, Command{Name: CommandLaunch, Identity: "a"}.Validate(), ErrInvalidCommand)
	require.ErrorIs(t, Command{Name: CommandUpdateSettings}.Validate(), ErrInvalidCommand)
	require.ErrorIs(t, Command{Name: "reboot"}.Validate(), ErrUnknownCommand)
}

func TestSettingsPayload_RoundTrip(t *testing.T) {
	p := SettingsPayload{MinTTLSec: 180, MaxTTLSec: 900}
	s := p.FleetSettings()
	require.Equal(t, 3*time.Minute, s.MinTTL)
	require.Equal(t, 15*time.Minute, s.MaxTTL)
	require.Equal(t, p, PayloadFromSettings(s))
}

func TestService_StartUsesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Start(ctx, nil))
	require.ErrorIs(t, f.svc.Start(ctx, nil), orchestrator.ErrAlreadyRunning)
	require.NoError(t, f.svc.Stop(ctx))

	custom := orchestrator.Options{ItemsPerIdentity: 9}
	require.NoError(t, f.svc.Start(ctx, &custom))

	require.Equal(t, []orchestrator.Options{orchestrator.DefaultOptions(), custom}, f.ctrl.started)
}

func TestService_LaunchAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, err := f.svc.Launch(ctx, "alice", "/accounts/alice/app")
	require.NoError(t, err)
	require.Equal(t, "alice", slot.Identity)
	require.NotZero(t, slot.Handle)
	require.GreaterOrEqual(t, slot.TTL, time.Minute)
	require.LessOrEqual(t, slot.TTL, 2*time.Minute)

	st := f.svc.Status()
	require.Equal(t, 1, st.Fleet.Count)
	require.Equal(t, 2, st.Fleet.MaxSlots)
	require.Equal(t, SettingsPayload{MinTTLSec: 60, MaxTTLSec: 120}, st.Fleet.Settings)

	require.Equal(t, 1, f.svc.KillAll(ctx))
	require.Zero(t, f.svc.Status().Fleet.Count)
}

func TestService_UpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.UpdateSettings(ctx, SettingsPayload{MinTTLSec: 30, MaxTTLSec: 60}))
	require.Equal(t, fleet.Settings{MinTTL: 30 * time.Second, MaxTTL: time.Minute}, f.fleet.Settings())
	require.Equal(t, 30*time.Second, f.store.min)
	require.Equal(t, time.Minute, f.store.max)

	// неверные границы не доходят до хранилища
	err := f.svc.UpdateSettings(ctx, SettingsPayload{MinTTLSec: 60, MaxTTLSec: 30})
	require.ErrorIs(t, err, fleet.ErrInvalidSettings)
	require.Equal(t, 1, f.store.saves)

	f.store.err = errors.New("db down")
	err = f.svc.UpdateSettings(ctx, SettingsPayload{MinTTLSec: 10, MaxTTLSec: 20})
	require.Error(t, err)
	require.NotErrorIs(t, err, fleet.ErrInvalidSettings)
}

func TestDispatcher_Commands(t *testing.T) {
	f := newFixture(t)
	d := NewDispatcher(f.svc, nil)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, delivery(t, Command{Name: CommandStart})))
	require.True(t, f.ctrl.Status().Running)

	require.NoError(t, d.Handle(ctx, delivery(t, Command{Name: CommandPause})))
	require.True(t, f.ctrl.Status().Paused)

	require.NoError(t, d.Handle(ctx, delivery(t, Command{Name: CommandResume})))
	require.False(t, f.ctrl.Status().Paused)

	require.NoError(t, d.Handle(ctx, delivery(t, Command{Name: CommandLaunch, Identity: "bob", TargetPath: "/b"})))
	require.Equal(t, 1, f.fleet.Count())

	require.NoError(t, d.Handle(ctx, delivery(t, Command{
		Name:     CommandUpdateSettings,
		Settings: &SettingsPayload{MinTTLSec: 5, MaxTTLSec: 10},
	})))
	require.Equal(t, 5*time.Second, f.fleet.Settings().MinTTL)

	require.NoError(t, d.Handle(ctx, delivery(t, Command{Name: CommandKillAll})))
	require.Zero(t, f.fleet.Count())

	require.NoError(t, d.Handle(ctx, delivery(t, Command{Name: CommandStop})))
	require.Equal(t, 1, f.ctrl.stops)
}

func TestDispatcher_StartOptions(t *testing.T) {
	f := newFixture(t)
	d := NewDispatcher(f.svc, nil)

	opts := orchestrator.Options{ItemsPerIdentity: 3, ExcludeCompleted: false}
	require.NoError(t, d.Handle(context.Background(), delivery(t, Command{Name: CommandStart, Options: &opts})))
	require.Equal(t, []orchestrator.Options{opts}, f.ctrl.started)
}

func TestDispatcher_RejectsPermanentErrors(t *testing.T) {
	f := newFixture(t)
	d := NewDispatcher(f.svc, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		msg  *mq.Delivery
	}{
		{"unknown command", delivery(t, Command{Name: "reboot"})},
		{"launch without path", delivery(t, Command{Name: CommandLaunch, Identity: "x"})},
		{"pause when idle", delivery(t, Command{Name: CommandPause})},
		{"invalid settings", delivery(t, Command{Name: CommandUpdateSettings, Settings: &SettingsPayload{}})},
		{"wrong message type", &mq.Delivery{Message: mq.Message{Type: mq.MessageTypeEvent}}},
		{"bad payload", &mq.Delivery{Message: mq.Message{Type: mq.MessageTypeCommand, Payload: "start"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, d.Handle(ctx, tt.msg), mq.ErrReject)
		})
	}

	f.rec.SetMissing("/gone")
	err := d.Handle(ctx, delivery(t, Command{Name: CommandLaunch, Identity: "x", TargetPath: "/gone"}))
	require.ErrorIs(t, err, mq.ErrReject)
}

func TestDispatcher_RetriesTransientErrors(t *testing.T) {
	f := newFixture(t)
	d := NewDispatcher(f.svc, nil)
	f.store.err = errors.New("db down")

	err := d.Handle(context.Background(), delivery(t, Command{
		Name:     CommandUpdateSettings,
		Settings: &SettingsPayload{MinTTLSec: 5, MaxTTLSec: 10},
	}))
	require.Error(t, err)
	require.NotErrorIs(t, err, mq.ErrReject)
}

// raw собирает сообщение с произвольным payload.
func raw(t *testing.T, payload string) *mq.Delivery {
	t.Helper()
	var msg mq.Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":"m2","type":"`+string(mq.MessageTypeCommand)+`","payload":`+payload+`}`), &msg))
	return &mq.Delivery{Message: msg}
}

func TestDispatcher_RejectsSchemaViolations(t *testing.T) {
	f := newFixture(t)
	d := NewDispatcher(f.svc, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		payload string
	}{
		{"missing command", `{"options":{"items_per_identity":3}}`},
		{"settings as strings", `{"command":"update_settings","settings":{"min_ttl_sec":"5","max_ttl_sec":"10"}}`},
		{"settings without max", `{"command":"update_settings","settings":{"min_ttl_sec":5}}`},
		{"negative items", `{"command":"start","options":{"items_per_identity":-1}}`},
		{"launch with empty identity", `{"command":"launch","identity":"","target_path":"/a"}`},
		{"bad account id", `{"command":"clear_join_requests","account_id":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Handle(ctx, raw(t, tt.payload))
			require.ErrorIs(t, err, mq.ErrReject)
			require.Contains(t, err.Error(), "does not match schema")
		})
	}

	// ни одна команда не дошла до сервиса
	require.Empty(t, f.ctrl.started)
	require.Equal(t, time.Minute, f.fleet.Settings().MinTTL)
}

type memChannels struct{ n int64 }

func (c *memChannels) DeleteAll(context.Context) (int64, error) {
	n := c.n
	c.n = 0
	return n, nil
}

type memRequests struct {
	all       int
	byAccount []uuid.UUID
}

func (r *memRequests) ClearAll(context.Context) (int64, error) {
	r.all++
	return 7, nil
}

func (r *memRequests) ClearForAccount(_ context.Context, id uuid.UUID) (int64, error) {
	r.byAccount = append(r.byAccount, id)
	return 2, nil
}

type memAccounts struct {
	synced  []domain.Account
	replace bool
	calls   int
}

func (a *memAccounts) Sync(_ context.Context, accounts []domain.Account, replace bool) (int, error) {
	a.calls++
	a.synced = accounts
	a.replace = replace
	return len(accounts), nil
}

func TestDispatcher_ClearCommands(t *testing.T) {
	f := newFixture(t)
	channels := &memChannels{n: 4}
	requests := &memRequests{}
	f.svc = NewService(Config{Controller: f.ctrl, Fleet: f.fleet, Channels: channels, Requests: requests})
	d := NewDispatcher(f.svc, nil)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, delivery(t, Command{Name: CommandClearChannels})))
	require.Zero(t, channels.n)

	require.NoError(t, d.Handle(ctx, delivery(t, Command{Name: CommandClearJoinRequests})))
	require.Equal(t, 1, requests.all)

	id := uuid.New()
	require.NoError(t, d.Handle(ctx, delivery(t, Command{Name: CommandClearJoinRequests, AccountID: &id})))
	require.Equal(t, []uuid.UUID{id}, requests.byAccount)
}

func TestService_ClearWithoutStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClearChannels(ctx)
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = f.svc.ClearJoinRequests(ctx, uuid.Nil)
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = f.svc.ScanAccounts(ctx, "/accounts", true)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDiscoverAccounts(t *testing.T) {
	fsys := fstest.MapFS{
		"+7 900 111-22-33/Telegram.exe":     {Data: []byte("x")},
		"work/Telegram/Telegram.exe":        {Data: []byte("x")},
		"empty/readme.txt":                  {Data: []byte("x")},
		"dir-exe/Telegram.exe/inner.txt":    {Data: []byte("x")},
		"Telegram.exe":                      {Data: []byte("x")},
		"79001234567/Telegram/Telegram.exe": {Data: []byte("x")},
	}

	accounts, err := DiscoverAccounts(fsys, "/accounts", "Telegram.exe")
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	require.Equal(t, "+79001112233", accounts[0].PhoneNumber)
	require.Equal(t, filepath.Join("/accounts", "+7 900 111-22-33"), accounts[0].FolderPath)
	require.Equal(t, filepath.Join("/accounts", "+7 900 111-22-33", "Telegram.exe"), accounts[0].ExePath)
	require.True(t, accounts[0].IsActive)

	require.Equal(t, "79001234567", accounts[1].PhoneNumber)
	require.Equal(t, filepath.Join("/accounts", "79001234567", "Telegram", "Telegram.exe"), accounts[1].ExePath)

	// без цифр номер — имя папки целиком
	require.Equal(t, "work", accounts[2].PhoneNumber)
}

func TestService_ScanAccounts(t *testing.T) {
	f := newFixture(t)
	store := &memAccounts{}
	opened := ""
	f.svc = NewService(Config{
		Controller:  f.ctrl,
		Fleet:       f.fleet,
		Accounts:    store,
		AccountsDir: "/default",
		OpenDir: func(root string) fs.FS {
			opened = root
			if root == "/none" {
				return fstest.MapFS{"notes/a.txt": {Data: []byte("x")}}
			}
			return fstest.MapFS{"111/Telegram.exe": {Data: []byte("x")}}
		},
	})
	ctx := context.Background()

	res, err := f.svc.ScanAccounts(ctx, "", true)
	require.NoError(t, err)
	require.Equal(t, "/default", opened)
	require.Equal(t, 1, res.Added)
	require.True(t, res.Replaced)
	require.True(t, store.replace)
	require.Equal(t, "111", store.synced[0].PhoneNumber)

	// пустая папка не трогает хранилище
	res, err = f.svc.ScanAccounts(ctx, "/none", true)
	require.NoError(t, err)
	require.Empty(t, res.Found)
	require.Equal(t, 1, store.calls)

	f.svc = NewService(Config{Controller: f.ctrl, Fleet: f.fleet, Accounts: store})
	_, err = f.svc.ScanAccounts(ctx, "", false)
	require.ErrorIs(t, err, ErrNoAccountsDir)
}

type memPreview struct {
	ids  []domain.Identity
	work []domain.WorkItem
}

func (p *memPreview) ListIdentities(context.Context) ([]domain.Identity, error) {
	return p.ids, nil
}

func (p *memPreview) PendingWork(_ context.Context, _ domain.Identity, limit int, excludeCompleted bool) ([]domain.WorkItem, error) {
	if excludeCompleted || limit != DryRunItemLimit {
		return nil, errors.New("unexpected pending work query")
	}
	return p.work, nil
}

func TestService_TestWorkflow(t *testing.T) {
	f := newFixture(t)
	preview := &memPreview{
		ids: []domain.Identity{
			{Key: "+100", AccountID: uuid.NewString(), TargetPath: "/acc/100/app"},
			{Key: "+200", AccountID: uuid.NewString(), TargetPath: "/acc/200/app"},
		},
		work: []domain.WorkItem{{ID: "c1", Value: "https://t.me/a"}, {ID: "c2", Value: "https://t.me/b"}},
	}
	f.svc = NewService(Config{Controller: f.ctrl, Fleet: f.fleet, Preview: preview})

	graph, err := engine.ParseGraph([]byte(`{
		"nodes": [
			{"id": "1", "type": "delay", "data": {"duration": 2}},
			{"id": "2", "type": "pasteList", "data": {"channelCount": 5}},
			{"id": "3", "type": "keyCombo", "data": {"keys": ["ctrl", "a"]}}
		],
		"edges": [{"source": "1", "target": "2"}, {"source": "2", "target": "3"}]
	}`))
	require.NoError(t, err)

	start := time.Now()
	res, err := f.svc.TestWorkflow(context.Background(), graph)
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)

	require.Equal(t, string(domain.RunStateCompleted), res.Status)
	require.Equal(t, "+100", res.Identity)
	require.Equal(t, 2, res.Items)
	require.Equal(t, 3, res.NodesExecuted)
	require.NotEmpty(t, res.Calls)
	require.ElementsMatch(t, []string{"https://t.me/a", "https://t.me/b"}, res.Context[engine.KeyPastedItems])
	require.GreaterOrEqual(t, res.Pauses, 1)

	// флот и контроллер не затронуты
	require.Zero(t, f.fleet.Count())
	require.Empty(t, f.ctrl.started)

	_, err = f.svc.TestWorkflow(context.Background(), nil)
	require.Error(t, err)
}
