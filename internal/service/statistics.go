package service

import (
	"context"
	"log/slog"

	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/storage/blob"
)

// recentFilesLimit — количество последних файлов в статистике.
const recentFilesLimit = 10

// DiskUsage — заполненность носителя хранилища содержимого.
type DiskUsage struct {
	Total       int64   `json:"total"`
	Used        int64   `json:"used"`
	Free        int64   `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

// Statistics — сводка для панели администратора.
type Statistics struct {
	Files   model.EntryStats       `json:"files"`
	Disk    *DiskUsage             `json:"disk,omitempty"`
	Cleanup *model.CleanupSettings `json:"cleanup"`
	Recent  []model.FileEntry      `json:"recent_files"`
}

// StatisticsService собирает статистику записей, диска и настроек.
type StatisticsService struct {
	lifecycle *LifecycleService
	settings  *SettingsService
	usage     blob.UsageReporter
	logger    *slog.Logger
}

// NewStatisticsService создаёт сервис статистики.
// usage может быть nil (например, для S3): блок disk не заполняется.
func NewStatisticsService(
	lifecycle *LifecycleService,
	settings *SettingsService,
	usage blob.UsageReporter,
	logger *slog.Logger,
) *StatisticsService {
	return &StatisticsService{
		lifecycle: lifecycle,
		settings:  settings,
		usage:     usage,
		logger:    logger.With(slog.String("component", "statistics")),
	}
}

// Collect возвращает текущую статистику.
func (s *StatisticsService) Collect(ctx context.Context) (*Statistics, error) {
	files, err := s.lifecycle.Stats(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.lifecycle.List(ctx, recentFilesLimit)
	if err != nil {
		return nil, err
	}
	cleanup, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		Files:   *files,
		Cleanup: cleanup,
		Recent:  recent,
	}

	if s.usage != nil {
		u, err := s.usage.Usage()
		if err != nil {
			s.logger.Warn("Не удалось получить заполненность диска",
				slog.String("error", err.Error()),
			)
		} else {
			stats.Disk = diskUsage(u)
		}
	}

	return stats, nil
}

func diskUsage(u *blob.Usage) *DiskUsage {
	d := &DiskUsage{Total: u.Total, Used: u.Used, Free: u.Available}
	if u.Total > 0 {
		d.UsedPercent = float64(int(float64(u.Used)/float64(u.Total)*10000)) / 100
	}
	return d
}
