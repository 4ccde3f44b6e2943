package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Autopilot/internal/control"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/repo"
)

// WorkflowStore — хранилище сценариев.
type WorkflowStore interface {
	List(ctx context.Context) ([]domain.Workflow, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	Create(ctx context.Context, wf *domain.Workflow) error
	Update(ctx context.Context, wf *domain.Workflow) error
	SetDefault(ctx context.Context, id uuid.UUID) error
	Rename(ctx context.Context, id uuid.UUID, name string, description *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LogStore — журнал событий.
type LogStore interface {
	List(ctx context.Context, limit int) ([]repo.LogEntry, error)
	Clear(ctx context.Context) error
}

// StatsStore — сводка результатов по аккаунтам.
type StatsStore interface {
	Stats(ctx context.Context) ([]repo.AccountStats, error)
}

// AccountStore — учётные записи, которые обходит Run Controller.
type AccountStore interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChannelStore — единицы работы.
type ChannelStore interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Channel, error)
	Create(ctx context.Context, c *domain.Channel) error
	CreateBulk(ctx context.Context, links []string) (int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RequestStore — история заявок. Сброс истории идёт через control.Service.
type RequestStore interface {
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]repo.JoinRequest, error)
	Delete(ctx context.Context, accountID, channelID uuid.UUID) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	control   *control.Service
	workflows WorkflowStore
	accounts  AccountStore
	channels  ChannelStore
	requests  RequestStore
	logs      LogStore
	stats     StatsStore
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Control   *control.Service
	Workflows WorkflowStore

	// Остальные хранилища необязательны: без них маршруты отвечают 404.
	Accounts AccountStore
	Channels ChannelStore
	Requests RequestStore
	Logs     LogStore
	Stats    StatsStore

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		control:   cfg.Control,
		workflows: cfg.Workflows,
		accounts:  cfg.Accounts,
		channels:  cfg.Channels,
		requests:  cfg.Requests,
		logs:      cfg.Logs,
		stats:     cfg.Stats,
		logger:    logger,
	}
}
