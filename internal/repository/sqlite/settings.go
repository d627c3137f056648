package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/repository"
)

// SettingsRepository — реализация repository.SettingsRepository для SQLite.
type SettingsRepository struct {
	db *sql.DB
}

var _ repository.SettingsRepository = (*SettingsRepository)(nil)

// Get возвращает настройку по ключу.
func (r *SettingsRepository) Get(ctx context.Context, key string) (*model.Setting, error) {
	row := r.db.QueryRowContext(ctx, `SELECT key, value, updated_at FROM settings WHERE key = ?`, key)

	s, err := scanSetting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения settings[%s]: %w", key, err)
	}
	return s, nil
}

// Set создаёт или обновляет настройку.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, key, value, formatTime(time.Now())); err != nil {
		return fmt.Errorf("ошибка сохранения settings[%s]: %w", key, err)
	}
	return nil
}

// List возвращает все настройки, отсортированные по ключу.
func (r *SettingsRepository) List(ctx context.Context) ([]model.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка settings: %w", err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования settings: %w", err)
		}
		settings = append(settings, *s)
	}
	return settings, rows.Err()
}

func scanSetting(row rowScanner) (*model.Setting, error) {
	var (
		s         model.Setting
		updatedAt string
	)
	if err := row.Scan(&s.Key, &s.Value, &updatedAt); err != nil {
		return nil, err
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	s.UpdatedAt = t
	return &s, nil
}
