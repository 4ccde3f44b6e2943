package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Autopilot/internal/domain"
)

// Статусы записей журнала.
const (
	LogStatusInfo  = "info"
	LogStatusError = "error"
)

// LogEntry — запись automation_logs.
type LogEntry struct {
	ID        int64           `json:"id"`
	EventID   *uuid.UUID      `json:"event_id,omitempty"`
	AccountID *uuid.UUID      `json:"account_id,omitempty"`
	Identity  string          `json:"identity,omitempty"`
	RunID     string          `json:"run_id,omitempty"`
	NodeID    string          `json:"node_id,omitempty"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// LogRepo — журнал событий автоматизации.
type LogRepo struct {
	pool *pgxpool.Pool
}

// NewLogRepo создаёт новый LogRepo.
func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

// Append записывает событие в журнал.
func (r *LogRepo) Append(ctx context.Context, e domain.Event) error {
	entry, err := logEntryFromEvent(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO automation_logs (event_id, account_id, identity, run_id, node_id,
		                             action, details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		entry.EventID,
		entry.AccountID,
		nullString(entry.Identity),
		nullString(entry.RunID),
		nullString(entry.NodeID),
		entry.Action,
		[]byte(entry.Details),
		entry.Status,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// List возвращает последние limit записей, новые первыми.
func (r *LogRepo) List(ctx context.Context, limit int) ([]LogEntry, error) {
	query := `
		SELECT id, event_id, account_id, COALESCE(identity, ''), COALESCE(run_id, ''),
		       COALESCE(node_id, ''), action, details, status, created_at
		FROM automation_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var details []byte
		if err := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.AccountID,
			&e.Identity,
			&e.RunID,
			&e.NodeID,
			&e.Action,
			&details,
			&e.Status,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if details != nil {
			e.Details = json.RawMessage(details)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear очищает журнал.
func (r *LogRepo) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM automation_logs`); err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}
	return nil
}

// logEntryFromEvent преобразует событие в запись журнала.
// account_id берётся из Data, если он там есть и это UUID.
func logEntryFromEvent(e domain.Event) (*LogEntry, error) {
	entry := &LogEntry{
		Identity:  e.Identity,
		RunID:     e.RunID,
		NodeID:    e.NodeID,
		Action:    string(e.Type),
		Status:    LogStatusInfo,
		CreatedAt: e.Timestamp,
	}
	if e.ID != uuid.Nil {
		id := e.ID
		entry.EventID = &id
	}
	if e.IsFailure() {
		entry.Status = LogStatusError
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if raw, ok := e.Data["account_id"].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			entry.AccountID = &id
		}
	}

	if len(e.Data) > 0 {
		details, err := json.Marshal(e.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal log details: %w", err)
		}
		entry.Details = details
	}
	return entry, nil
}
