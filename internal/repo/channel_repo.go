package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Autopilot/internal/domain"
)

// ChannelRepo — репозиторий для работы с channels.
type ChannelRepo struct {
	pool *pgxpool.Pool
}

// NewChannelRepo создаёт новый ChannelRepo.
func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

const channelColumns = `id, link, name, is_active, created_at`

// Create добавляет канал. Существующая ссылка → ErrAlreadyExists.
func (r *ChannelRepo) Create(ctx context.Context, c *domain.Channel) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	query := `
		INSERT INTO channels (id, link, name, is_active, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query, c.ID, c.Link, nullString(c.Name), c.IsActive).Scan(&c.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: channel %s", ErrAlreadyExists, c.Link)
	}
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

// CreateBulk добавляет активные каналы по ссылкам одной транзакцией.
// Пустые строки и повторы пропускаются, уже известные ссылки тоже.
// Возвращает число добавленных каналов.
func (r *ChannelRepo) CreateBulk(ctx context.Context, links []string) (int, error) {
	links = NormalizeLinks(links)
	if len(links) == 0 {
		return 0, nil
	}

	added := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, link := range links {
			batch.Queue(`
				INSERT INTO channels (id, link, is_active, created_at)
				VALUES ($1, $2, TRUE, NOW())
				ON CONFLICT (link) DO NOTHING
			`, uuid.New(), link)
		}

		results := tx.SendBatch(ctx, batch)
		for range links {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("insert channel: %w", err)
			}
			added += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("bulk insert channels: %w", err)
	}
	return added, nil
}

// NormalizeLinks обрезает пробелы, убирает пустые строки и повторы,
// сохраняя порядок первого появления.
func NormalizeLinks(links []string) []string {
	seen := make(map[string]bool, len(links))
	out := make([]string, 0, len(links))
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, link)
	}
	return out
}

// List возвращает каналы; activeOnly — только активные.
func (r *ChannelRepo) List(ctx context.Context, activeOnly bool) ([]domain.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE ($1 = FALSE OR is_active)
		ORDER BY created_at ASC
	`
	return r.query(ctx, "list channels", query, activeOnly)
}

// Pending возвращает активные каналы, для которых у аккаунта ещё нет
// записи в join_requests, в случайном порядке, не больше limit.
func (r *ChannelRepo) Pending(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels c
		WHERE c.is_active
		  AND NOT EXISTS (
		      SELECT 1 FROM join_requests jr
		      WHERE jr.account_id = $1 AND jr.channel_id = c.id
		  )
		ORDER BY random()
		LIMIT $2
	`
	return r.query(ctx, "list pending channels", query, accountID, limit)
}

// Random возвращает случайные активные каналы, не больше limit.
func (r *ChannelRepo) Random(ctx context.Context, limit int) ([]domain.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE is_active
		ORDER BY random()
		LIMIT $1
	`
	return r.query(ctx, "list random channels", query, limit)
}

// NoPendingAnywhere возвращает true, если для каждой пары
// (активный аккаунт, активный канал) уже есть запись.
func (r *ChannelRepo) NoPendingAnywhere(ctx context.Context) (bool, error) {
	query := `
		SELECT NOT EXISTS (
		    SELECT 1
		    FROM accounts a
		    CROSS JOIN channels c
		    WHERE a.is_active AND c.is_active
		      AND NOT EXISTS (
		          SELECT 1 FROM join_requests jr
		          WHERE jr.account_id = a.id AND jr.channel_id = c.id
		      )
		)
	`
	var done bool
	if err := r.pool.QueryRow(ctx, query).Scan(&done); err != nil {
		return false, fmt.Errorf("check pending channels: %w", err)
	}
	return done, nil
}

// SetActive включает или выключает канал.
func (r *ChannelRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.pool.Exec(ctx, `UPDATE channels SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет канал.
func (r *ChannelRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll удаляет все каналы вместе с их историей.
func (r *ChannelRepo) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM channels`)
	if err != nil {
		return 0, fmt.Errorf("delete channels: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *ChannelRepo) query(ctx context.Context, op, query string, args ...any) ([]domain.Channel, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *c)
	}
	return channels, rows.Err()
}

func scanChannel(row pgx.Row) (*domain.Channel, error) {
	var c domain.Channel
	var name *string

	err := row.Scan(&c.ID, &c.Link, &name, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan channel: %w", err)
	}

	if name != nil {
		c.Name = *name
	}
	return &c, nil
}
