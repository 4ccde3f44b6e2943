package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ключи настроек.
const (
	SettingFleetMinTTL = "fleet.min_ttl_sec"
	SettingFleetMaxTTL = "fleet.max_ttl_sec"
)

// SettingsRepo — репозиторий для работы с settings (ключ → JSON).
type SettingsRepo struct {
	pool *pgxpool.Pool
}

// NewSettingsRepo создаёт новый SettingsRepo.
func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// Get читает значение в dst. Нет ключа → ErrNotFound.
func (r *SettingsRepo) Get(ctx context.Context, key string, dst any) error {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get setting %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal setting %s: %w", key, err)
	}
	return nil
}

// Set записывает значение.
func (r *SettingsRepo) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal setting %s: %w", key, err)
	}

	query := `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := r.pool.Exec(ctx, query, key, raw); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// LoadTTLBounds читает границы TTL флота. ok=false, если они не сохранены.
func (r *SettingsRepo) LoadTTLBounds(ctx context.Context) (minTTL, maxTTL time.Duration, ok bool, err error) {
	var minSec, maxSec int64
	if err := r.Get(ctx, SettingFleetMinTTL, &minSec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	if err := r.Get(ctx, SettingFleetMaxTTL, &maxSec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	return secondsToDuration(minSec), secondsToDuration(maxSec), true, nil
}

// SaveTTLBounds сохраняет границы TTL флота в одной транзакции.
func (r *SettingsRepo) SaveTTLBounds(ctx context.Context, minTTL, maxTTL time.Duration) error {
	query := `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for key, d := range map[string]time.Duration{
			SettingFleetMinTTL: minTTL,
			SettingFleetMaxTTL: maxTTL,
		} {
			raw, err := json.Marshal(durationToSeconds(d))
			if err != nil {
				return fmt.Errorf("marshal setting %s: %w", key, err)
			}
			if _, err := tx.Exec(ctx, query, key, raw); err != nil {
				return fmt.Errorf("set setting %s: %w", key, err)
			}
		}
		return nil
	})
}

func secondsToDuration(sec int64) time.Duration {
	return time.Duration(sec) * time.Second
}

// durationToSeconds округляет вверх, чтобы не получить 0 из 500ms.
func durationToSeconds(d time.Duration) int64 {
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	return sec
}
