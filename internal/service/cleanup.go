// cleanup.go — очистка скачанных файлов по сроку хранения.
//
// Проход очистки:
//  1. cleanup_enabled != "true" → skipped, без побочных эффектов
//  2. cutoff = now − cleanup_max_age_hours (по умолчанию 24)
//  3. кандидаты: не удалены, скачаны раньше cutoff (не скачанные не трогаются)
//  4. каждый кандидат удаляется под мьютексом job_id с повторной проверкой;
//     ошибка по одному файлу не прерывает проход
//  5. cleanup_last_run = now
//
// Сам сервис не планирует запусков: их инициирует HTTP, CLI или CleanupTicker.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/repository"
)

// Expirer — удаление одного файла по сроку хранения.
type Expirer interface {
	Expire(ctx context.Context, jobID string, cutoff time.Time) (bool, error)
}

// CleanupService — сервис очистки по сроку хранения.
type CleanupService struct {
	settings *SettingsService
	entries  repository.EntryRepository
	expirer  Expirer
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex // проходы очистки не выполняются параллельно
}

// NewCleanupService создаёт сервис очистки.
func NewCleanupService(
	settings *SettingsService,
	entries repository.EntryRepository,
	expirer Expirer,
	logger *slog.Logger,
) *CleanupService {
	return &CleanupService{
		settings: settings,
		entries:  entries,
		expirer:  expirer,
		logger:   logger.With(slog.String("component", "cleanup")),
		now:      time.Now,
	}
}

// Sweep выполняет один проход очистки.
func (c *CleanupService) Sweep(ctx context.Context) (*model.SweepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	now := c.now().UTC()

	cs, err := c.settings.Get(ctx)
	if err != nil {
		cleanupRunsTotal.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("чтение настроек очистки: %w", err)
	}

	if !cs.Enabled {
		cleanupRunsTotal.WithLabelValues(model.SweepSkipped).Inc()
		c.logger.Debug("Очистка выключена")
		return &model.SweepResult{
			Status:    model.SweepSkipped,
			Message:   "Cleanup is disabled",
			Timestamp: now,
		}, nil
	}

	cutoff := now.Add(-time.Duration(cs.MaxAgeHours) * time.Hour)
	candidates, err := c.entries.Query(ctx, model.EntryQuery{OnlyLive: true, DownloadedBefore: &cutoff})
	if err != nil {
		cleanupRunsTotal.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("%w: выборка кандидатов очистки: %v", ErrInternal, err)
	}

	result := &model.SweepResult{
		Status:      model.SweepCompleted,
		MaxAgeHours: cs.MaxAgeHours,
		Timestamp:   now,
	}

	for _, e := range candidates {
		deleted, err := c.expirer.Expire(ctx, e.JobID, cutoff)
		if err != nil {
			result.FailedCount++
			c.logger.Error("Очистка: ошибка удаления файла",
				slog.String("job_id", e.JobID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if deleted {
			result.DeletedCount++
			c.logger.Debug("Очистка: файл удалён", slog.String("job_id", e.JobID))
		}
	}

	if err := c.settings.MarkLastRun(ctx, now); err != nil {
		c.logger.Error("Очистка: ошибка записи cleanup_last_run",
			slog.String("error", err.Error()),
		)
	}

	duration := time.Since(start)
	cleanupRunsTotal.WithLabelValues(model.SweepCompleted).Inc()
	cleanupFilesDeletedTotal.Add(float64(result.DeletedCount))
	cleanupFailuresTotal.Add(float64(result.FailedCount))
	cleanupDurationSeconds.Observe(duration.Seconds())

	c.logger.Info("Очистка завершена",
		slog.Int("deleted", result.DeletedCount),
		slog.Int("failed", result.FailedCount),
		slog.Int("max_age_hours", cs.MaxAgeHours),
		slog.Duration("duration", duration),
	)

	return result, nil
}
