package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/simple-storage/internal/domain/model"
)

// settingsRepo — реализация SettingsRepository для PostgreSQL.
type settingsRepo struct {
	db DBTX
}

// NewSettingsRepository создаёт репозиторий настроек.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

// Get возвращает настройку по ключу.
func (r *settingsRepo) Get(ctx context.Context, key string) (*model.Setting, error) {
	query := `
		SELECT key, value, updated_at
		FROM settings
		WHERE key = $1`

	s := &model.Setting{}
	err := r.db.QueryRow(ctx, query, key).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения settings[%s]: %w", key, err)
	}
	return s, nil
}

// Set создаёт или обновляет настройку (INSERT ... ON CONFLICT DO UPDATE).
func (r *settingsRepo) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("ошибка сохранения settings[%s]: %w", key, err)
	}
	return nil
}

// List возвращает все настройки, отсортированные по ключу.
func (r *settingsRepo) List(ctx context.Context) ([]model.Setting, error) {
	query := `
		SELECT key, value, updated_at
		FROM settings
		ORDER BY key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка settings: %w", err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования settings: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
