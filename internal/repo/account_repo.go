package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Autopilot/internal/domain"
)

// AccountRepo — репозиторий для работы с accounts.
type AccountRepo struct {
	pool *pgxpool.Pool
}

// NewAccountRepo создаёт новый AccountRepo.
func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, phone_number, folder_path, exe_path, is_active, created_at, last_used`

// Create создаёт аккаунт. Занятый номер телефона → ErrAlreadyExists.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	query := `
		INSERT INTO accounts (id, phone_number, folder_path, exe_path, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		a.ID,
		a.PhoneNumber,
		a.FolderPath,
		nullString(a.ExePath),
		a.IsActive,
	).Scan(&a.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: account %s", ErrAlreadyExists, a.PhoneNumber)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Sync добавляет найденные аккаунты одной транзакцией.
//
// replace == true сначала удаляет все существующие аккаунты (с их
// историей). Иначе занятые номера пропускаются. Возвращает число
// добавленных аккаунтов.
func (r *AccountRepo) Sync(ctx context.Context, accounts []domain.Account, replace bool) (int, error) {
	added := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if replace {
			if _, err := tx.Exec(ctx, `DELETE FROM accounts`); err != nil {
				return fmt.Errorf("delete accounts: %w", err)
			}
		}

		query := `
			INSERT INTO accounts (id, phone_number, folder_path, exe_path, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (phone_number) DO NOTHING
		`
		for i := range accounts {
			a := &accounts[i]
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			tag, err := tx.Exec(ctx, query, a.ID, a.PhoneNumber, a.FolderPath, nullString(a.ExePath), a.IsActive)
			if err != nil {
				return fmt.Errorf("insert account %s: %w", a.PhoneNumber, err)
			}
			added += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// List возвращает аккаунты; activeOnly — только активные.
func (r *AccountRepo) List(ctx context.Context, activeOnly bool) ([]domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE ($1 = FALSE OR is_active)
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// SetActive включает или выключает аккаунт.
func (r *AccountRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastUsed отмечает время последней обработки.
func (r *AccountRepo) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `UPDATE accounts SET last_used = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет аккаунт (каскадно удалит его join_requests).
func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var exePath *string

	err := row.Scan(
		&a.ID,
		&a.PhoneNumber,
		&a.FolderPath,
		&exePath,
		&a.IsActive,
		&a.CreatedAt,
		&a.LastUsed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}

	if exePath != nil {
		a.ExePath = *exePath
	}
	return &a, nil
}
