package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Autopilot/internal/domain"
)

// WorkSource — источник работы Run Controller'а поверх Postgres.
//
// Идентичность — активный аккаунт, элемент работы — активный канал.
// Результат пишется в join_requests.
type WorkSource struct {
	accounts  *AccountRepo
	channels  *ChannelRepo
	requests  *JoinRequestRepo
	workflows *WorkflowRepo
	binary    string
}

// NewWorkSource создаёт WorkSource. binary — имя исполняемого файла
// в папке аккаунта (пустое — domain.DefaultTargetBinary).
func NewWorkSource(pool *pgxpool.Pool, binary string) *WorkSource {
	return &WorkSource{
		accounts:  NewAccountRepo(pool),
		channels:  NewChannelRepo(pool),
		requests:  NewJoinRequestRepo(pool),
		workflows: NewWorkflowRepo(pool),
		binary:    binary,
	}
}

// ListIdentities возвращает активные аккаунты.
func (s *WorkSource) ListIdentities(ctx context.Context) ([]domain.Identity, error) {
	accounts, err := s.accounts.List(ctx, true)
	if err != nil {
		return nil, err
	}

	identities := make([]domain.Identity, len(accounts))
	for i := range accounts {
		identities[i] = accounts[i].Identity(s.binary)
	}
	return identities, nil
}

// PendingWork возвращает каналы для аккаунта.
func (s *WorkSource) PendingWork(ctx context.Context, id domain.Identity, limit int, excludeCompleted bool) ([]domain.WorkItem, error) {
	var (
		channels []domain.Channel
		err      error
	)
	if excludeCompleted {
		accountID, perr := uuid.Parse(id.AccountID)
		if perr != nil {
			return nil, fmt.Errorf("parse account id %q: %w", id.AccountID, perr)
		}
		channels, err = s.channels.Pending(ctx, accountID, limit)
	} else {
		channels, err = s.channels.Random(ctx, limit)
	}
	if err != nil {
		return nil, err
	}
	return workItems(channels), nil
}

// RecordOutcome пишет результат в join_requests.
func (s *WorkSource) RecordOutcome(ctx context.Context, id domain.Identity, item domain.WorkItem, status domain.OutcomeStatus) error {
	accountID, err := uuid.Parse(id.AccountID)
	if err != nil {
		return fmt.Errorf("parse account id %q: %w", id.AccountID, err)
	}
	channelID, err := uuid.Parse(item.ID)
	if err != nil {
		return fmt.Errorf("parse channel id %q: %w", item.ID, err)
	}
	return s.requests.Record(ctx, accountID, channelID, status)
}

// HasNoPendingWorkAnywhere возвращает true, когда все пары
// (активный аккаунт, активный канал) обработаны.
func (s *WorkSource) HasNoPendingWorkAnywhere(ctx context.Context) (bool, error) {
	return s.channels.NoPendingAnywhere(ctx)
}

// DefaultWorkflow возвращает workflow по умолчанию или nil.
func (s *WorkSource) DefaultWorkflow(ctx context.Context) (*domain.Workflow, error) {
	wf, err := s.workflows.GetDefault(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return wf, err
}

// TouchIdentity обновляет last_used аккаунта.
func (s *WorkSource) TouchIdentity(ctx context.Context, id domain.Identity) error {
	accountID, err := uuid.Parse(id.AccountID)
	if err != nil {
		return fmt.Errorf("parse account id %q: %w", id.AccountID, err)
	}
	return s.accounts.TouchLastUsed(ctx, accountID)
}

func workItems(channels []domain.Channel) []domain.WorkItem {
	items := make([]domain.WorkItem, len(channels))
	for i, c := range channels {
		items[i] = domain.WorkItem{ID: c.ID.String(), Value: c.Link}
	}
	return items
}
