package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Autopilot/internal/domain"
)

// JoinRequestRepo — репозиторий для работы с join_requests.
type JoinRequestRepo struct {
	pool *pgxpool.Pool
}

// NewJoinRequestRepo создаёт новый JoinRequestRepo.
func NewJoinRequestRepo(pool *pgxpool.Pool) *JoinRequestRepo {
	return &JoinRequestRepo{pool: pool}
}

// Record записывает результат для пары (аккаунт, канал).
// Повторная запись заменяет статус и время.
func (r *JoinRequestRepo) Record(ctx context.Context, accountID, channelID uuid.UUID, status domain.OutcomeStatus) error {
	query := `
		INSERT INTO join_requests (account_id, channel_id, status, requested_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id, channel_id)
		DO UPDATE SET status = EXCLUDED.status, requested_at = EXCLUDED.requested_at
	`
	if _, err := r.pool.Exec(ctx, query, accountID, channelID, string(status)); err != nil {
		return fmt.Errorf("record join request: %w", err)
	}
	return nil
}

// AccountStats — сводка результатов по аккаунту.
type AccountStats struct {
	PhoneNumber string `json:"phone_number"`
	Total       int    `json:"total"`
	Successful  int    `json:"successful"`
	Failed      int    `json:"failed"`
}

// Stats возвращает сводку по всем аккаунтам.
func (r *JoinRequestRepo) Stats(ctx context.Context) ([]AccountStats, error) {
	query := `
		SELECT a.phone_number,
		       COUNT(jr.channel_id),
		       COUNT(*) FILTER (WHERE jr.status IN ('success', 'sent')),
		       COUNT(*) FILTER (WHERE jr.status = 'failed')
		FROM accounts a
		LEFT JOIN join_requests jr ON jr.account_id = a.id
		GROUP BY a.id, a.phone_number
		ORDER BY a.phone_number
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("join request stats: %w", err)
	}
	defer rows.Close()

	var stats []AccountStats
	for rows.Next() {
		var s AccountStats
		if err := rows.Scan(&s.PhoneNumber, &s.Total, &s.Successful, &s.Failed); err != nil {
			return nil, fmt.Errorf("scan join request stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// JoinRequest — запись истории с данными аккаунта и канала.
type JoinRequest struct {
	AccountID   uuid.UUID            `json:"account_id"`
	ChannelID   uuid.UUID            `json:"channel_id"`
	Status      domain.OutcomeStatus `json:"status"`
	RequestedAt time.Time            `json:"requested_at"`
	PhoneNumber string               `json:"phone_number"`
	ChannelLink string               `json:"channel_link"`
	ChannelName string               `json:"channel_name,omitempty"`
}

// History возвращает последние записи, новые первыми.
// accountID == uuid.Nil — по всем аккаунтам.
func (r *JoinRequestRepo) History(ctx context.Context, accountID uuid.UUID, limit int) ([]JoinRequest, error) {
	query := `
		SELECT jr.account_id, jr.channel_id, jr.status, jr.requested_at,
		       a.phone_number, c.link, c.name
		FROM join_requests jr
		JOIN accounts a ON a.id = jr.account_id
		JOIN channels c ON c.id = jr.channel_id
		WHERE ($1::uuid IS NULL OR jr.account_id = $1)
		ORDER BY jr.requested_at DESC
		LIMIT $2
	`
	var filter *uuid.UUID
	if accountID != uuid.Nil {
		filter = &accountID
	}

	rows, err := r.pool.Query(ctx, query, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("join request history: %w", err)
	}
	defer rows.Close()

	var history []JoinRequest
	for rows.Next() {
		var jr JoinRequest
		var status string
		var name *string
		if err := rows.Scan(&jr.AccountID, &jr.ChannelID, &status, &jr.RequestedAt,
			&jr.PhoneNumber, &jr.ChannelLink, &name); err != nil {
			return nil, fmt.Errorf("scan join request: %w", err)
		}
		jr.Status = domain.OutcomeStatus(status)
		if name != nil {
			jr.ChannelName = *name
		}
		history = append(history, jr)
	}
	return history, rows.Err()
}

// ClearAll удаляет всю историю. Возвращает число удалённых записей.
func (r *JoinRequestRepo) ClearAll(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM join_requests`)
	if err != nil {
		return 0, fmt.Errorf("clear join requests: %w", err)
	}
	return result.RowsAffected(), nil
}

// ClearForAccount удаляет историю одного аккаунта.
func (r *JoinRequestRepo) ClearForAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM join_requests WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("clear join requests for account: %w", err)
	}
	return result.RowsAffected(), nil
}

// Delete удаляет запись пары (аккаунт, канал).
func (r *JoinRequestRepo) Delete(ctx context.Context, accountID, channelID uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM join_requests WHERE account_id = $1 AND channel_id = $2`, accountID, channelID)
	if err != nil {
		return fmt.Errorf("delete join request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
