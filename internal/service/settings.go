// settings.go — типизированный доступ к настройкам очистки.
//
// Запись валидируется: cleanup_enabled ∈ {true, false},
// cleanup_max_age_hours — целое 1..MaxCleanupAgeHours.
// Чтение терпимо к старым данным: некорректный срок хранения → 24 часа.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/repository"
)

// MaxCleanupAgeHours — верхняя граница срока хранения (10 лет).
const MaxCleanupAgeHours = 87600

// CleanupSettingsUpdate — частичное обновление настроек очистки.
type CleanupSettingsUpdate struct {
	Enabled     *bool
	MaxAgeHours *int
}

// SettingsService — сервис настроек очистки.
type SettingsService struct {
	repo   repository.SettingsRepository
	logger *slog.Logger
}

// NewSettingsService создаёт сервис настроек.
func NewSettingsService(repo repository.SettingsRepository, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		repo:   repo,
		logger: logger.With(slog.String("component", "settings")),
	}
}

// Get возвращает снимок настроек очистки.
// Отсутствующие настройки: очистка выключена, срок 24 часа.
func (s *SettingsService) Get(ctx context.Context) (*model.CleanupSettings, error) {
	cs := &model.CleanupSettings{MaxAgeHours: model.DefaultCleanupMaxAgeHours}

	enabled, err := s.value(ctx, model.SettingCleanupEnabled)
	if err != nil {
		return nil, err
	}
	cs.Enabled = enabled == "true"

	maxAge, err := s.value(ctx, model.SettingCleanupMaxAgeHours)
	if err != nil {
		return nil, err
	}
	if maxAge != "" {
		if n, perr := strconv.Atoi(maxAge); perr == nil && n > 0 {
			cs.MaxAgeHours = n
		} else {
			s.logger.Warn("Некорректный срок хранения, используется значение по умолчанию",
				slog.String("value", maxAge),
				slog.Int("default", model.DefaultCleanupMaxAgeHours),
			)
		}
	}

	lastRun, err := s.value(ctx, model.SettingCleanupLastRun)
	if err != nil {
		return nil, err
	}
	if lastRun != "" {
		if t, perr := time.Parse(time.RFC3339, lastRun); perr == nil {
			t = t.UTC()
			cs.LastRun = &t
		}
	}

	return cs, nil
}

// Update применяет частичное обновление и возвращает новый снимок.
// Значения проверяются до записи: при ошибке ничего не меняется.
func (s *SettingsService) Update(ctx context.Context, upd CleanupSettingsUpdate) (*model.CleanupSettings, error) {
	if upd.MaxAgeHours != nil {
		if err := validateMaxAge(*upd.MaxAgeHours); err != nil {
			return nil, err
		}
	}

	if upd.Enabled != nil {
		if err := s.set(ctx, model.SettingCleanupEnabled, strconv.FormatBool(*upd.Enabled)); err != nil {
			return nil, err
		}
	}
	if upd.MaxAgeHours != nil {
		if err := s.set(ctx, model.SettingCleanupMaxAgeHours, strconv.Itoa(*upd.MaxAgeHours)); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Настройки очистки обновлены")
	return s.Get(ctx)
}

// Set записывает настройку по ключу с проверкой значения.
// cleanup_last_run пишется только очисткой.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	switch key {
	case model.SettingCleanupEnabled:
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: %s должен быть true или false", ErrValidation, key)
		}
	case model.SettingCleanupMaxAgeHours:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s должен быть целым числом", ErrValidation, key)
		}
		if err := validateMaxAge(n); err != nil {
			return err
		}
	case model.SettingCleanupLastRun:
		return fmt.Errorf("%w: %s доступен только для чтения", ErrValidation, key)
	default:
		return fmt.Errorf("%w: неизвестная настройка %q", ErrValidation, key)
	}
	return s.set(ctx, key, value)
}

// List возвращает все сохранённые настройки.
func (s *SettingsService) List(ctx context.Context) ([]model.Setting, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if list == nil {
		list = []model.Setting{}
	}
	return list, nil
}

// MarkLastRun записывает время прохода очистки.
func (s *SettingsService) MarkLastRun(ctx context.Context, t time.Time) error {
	return s.set(ctx, model.SettingCleanupLastRun, t.UTC().Format(time.RFC3339))
}

func (s *SettingsService) value(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return setting.Value, nil
}

func (s *SettingsService) set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

func validateMaxAge(hours int) error {
	if hours < 1 || hours > MaxCleanupAgeHours {
		return fmt.Errorf("%w: cleanup_max_age_hours должен быть в диапазоне 1-%d", ErrValidation, MaxCleanupAgeHours)
	}
	return nil
}
