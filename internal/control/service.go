package control

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/fleet"
	"github.com/shaiso/Autopilot/internal/orchestrator"
	"github.com/shaiso/Autopilot/internal/steps"
)

// Controller — Run Controller.
type Controller interface {
	Start(ctx context.Context, opts orchestrator.Options) error
	Pause() error
	Resume() error
	Stop(ctx context.Context) error
	Status() orchestrator.Status
	Defaults() orchestrator.Options
}

// Fleet — Fleet Manager.
type Fleet interface {
	Acquire(ctx context.Context, identity, targetPath string) (actuator.Handle, error)
	KillAll(ctx context.Context) int
	ActiveSlots() []fleet.SlotInfo
	MaxSlots() int
	Settings() fleet.Settings
	UpdateSettings(s fleet.Settings) error
}

// SettingsStore сохраняет границы TTL между перезапусками.
type SettingsStore interface {
	SaveTTLBounds(ctx context.Context, minTTL, maxTTL time.Duration) error
}

// ChannelStore — массовые операции над каналами.
type ChannelStore interface {
	DeleteAll(ctx context.Context) (int64, error)
}

// RequestStore — сброс истории заявок.
type RequestStore interface {
	ClearAll(ctx context.Context) (int64, error)
	ClearForAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// AccountStore сохраняет найденные на диске аккаунты.
type AccountStore interface {
	Sync(ctx context.Context, accounts []domain.Account, replace bool) (int, error)
}

// WorkPreview — часть источника работы для сухого прогона.
type WorkPreview interface {
	ListIdentities(ctx context.Context) ([]domain.Identity, error)
	PendingWork(ctx context.Context, id domain.Identity, limit int, excludeCompleted bool) ([]domain.WorkItem, error)
}

// FleetStatus — снимок флота.
type FleetStatus struct {
	Slots    []fleet.SlotInfo `json:"slots"`
	Count    int              `json:"count"`
	MaxSlots int              `json:"max_slots"`
	Settings SettingsPayload  `json:"settings"`
}

// Status — состояние агента целиком.
type Status struct {
	Automation orchestrator.Status `json:"automation"`
	Fleet      FleetStatus         `json:"fleet"`
}

// Service — единая точка управления агентом для HTTP API и очереди.
type Service struct {
	controller Controller
	fleet      Fleet
	store      SettingsStore

	channels    ChannelStore
	requests    RequestStore
	accounts    AccountStore
	preview     WorkPreview
	registry    *steps.Registry
	binary      string
	accountsDir string
	openDir     func(root string) fs.FS

	logger *slog.Logger
}

// Config — конфигурация Service.
type Config struct {
	Controller Controller
	Fleet      Fleet

	// Store — необязателен; без него настройки живут до перезапуска.
	Store SettingsStore

	// Channels, Requests, Accounts — для обслуживающих операций;
	// без них операции возвращают ErrNotConfigured.
	Channels ChannelStore
	Requests RequestStore
	Accounts AccountStore

	// Preview — источник контекста для сухого прогона.
	// nil — прогон с пустым контекстом.
	Preview WorkPreview

	// Registry — обработчики узлов для сухого прогона.
	Registry *steps.Registry

	// TargetBinary — имя исполняемого файла в папке аккаунта.
	TargetBinary string

	// AccountsDir — папка с портативными установками по умолчанию.
	AccountsDir string

	// OpenDir открывает папку для поиска аккаунтов (по умолчанию os.DirFS).
	OpenDir func(root string) fs.FS

	Logger *slog.Logger
}

// NewService создаёт Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = steps.DefaultRegistry()
	}

	binary := cfg.TargetBinary
	if binary == "" {
		binary = domain.DefaultTargetBinary
	}

	openDir := cfg.OpenDir
	if openDir == nil {
		openDir = os.DirFS
	}

	return &Service{
		controller:  cfg.Controller,
		fleet:       cfg.Fleet,
		store:       cfg.Store,
		channels:    cfg.Channels,
		requests:    cfg.Requests,
		accounts:    cfg.Accounts,
		preview:     cfg.Preview,
		registry:    registry,
		binary:      binary,
		accountsDir: cfg.AccountsDir,
		openDir:     openDir,
		logger:      logger.With("component", "control"),
	}
}

// Status возвращает снимок контроллера и флота.
func (s *Service) Status() Status {
	slots := s.fleet.ActiveSlots()
	return Status{
		Automation: s.controller.Status(),
		Fleet: FleetStatus{
			Slots:    slots,
			Count:    len(slots),
			MaxSlots: s.fleet.MaxSlots(),
			Settings: PayloadFromSettings(s.fleet.Settings()),
		},
	}
}

// Defaults возвращает параметры прохода по умолчанию.
func (s *Service) Defaults() orchestrator.Options {
	return s.controller.Defaults()
}

// Start запускает проход. nil opts — параметры агента по умолчанию.
func (s *Service) Start(ctx context.Context, opts *orchestrator.Options) error {
	o := s.controller.Defaults()
	if opts != nil {
		o = *opts
	}
	return s.controller.Start(ctx, o)
}

// Pause приостанавливает проход.
func (s *Service) Pause() error {
	return s.controller.Pause()
}

// Resume продолжает проход.
func (s *Service) Resume() error {
	return s.controller.Resume()
}

// Stop останавливает проход и ждёт его завершения.
func (s *Service) Stop(ctx context.Context) error {
	return s.controller.Stop(ctx)
}

// KillAll завершает все процессы флота.
func (s *Service) KillAll(ctx context.Context) int {
	n := s.fleet.KillAll(ctx)
	s.logger.Info("fleet killed", "slots", n)
	return n
}

// Launch запускает (или переиспользует) процесс идентичности.
func (s *Service) Launch(ctx context.Context, identity, targetPath string) (fleet.SlotInfo, error) {
	h, err := s.fleet.Acquire(ctx, identity, targetPath)
	if err != nil {
		return fleet.SlotInfo{}, err
	}

	for _, slot := range s.fleet.ActiveSlots() {
		if slot.Identity == identity {
			return slot, nil
		}
	}
	return fleet.SlotInfo{Identity: identity, Handle: int(h), TargetPath: targetPath}, nil
}

// UpdateSettings применяет границы TTL и сохраняет их.
//
// Флот меняется первым: неверные границы отвергаются до записи.
func (s *Service) UpdateSettings(ctx context.Context, p SettingsPayload) error {
	settings := p.FleetSettings()
	if err := s.fleet.UpdateSettings(settings); err != nil {
		return err
	}

	if s.store == nil {
		return nil
	}
	if err := s.store.SaveTTLBounds(ctx, settings.MinTTL, settings.MaxTTL); err != nil {
		return fmt.Errorf("persist fleet settings: %w", err)
	}
	return nil
}

// Execute выполняет команду.
func (s *Service) Execute(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	switch cmd.Name {
	case CommandStart:
		return s.Start(ctx, cmd.Options)
	case CommandStop:
		return s.Stop(ctx)
	case CommandPause:
		return s.Pause()
	case CommandResume:
		return s.Resume()
	case CommandKillAll:
		s.KillAll(ctx)
		return nil
	case CommandLaunch:
		_, err := s.Launch(ctx, cmd.Identity, cmd.TargetPath)
		return err
	case CommandUpdateSettings:
		return s.UpdateSettings(ctx, *cmd.Settings)
	case CommandClearChannels:
		_, err := s.ClearChannels(ctx)
		return err
	case CommandClearJoinRequests:
		accountID := uuid.Nil
		if cmd.AccountID != nil {
			accountID = *cmd.AccountID
		}
		_, err := s.ClearJoinRequests(ctx, accountID)
		return err
	}
	return nil
}
