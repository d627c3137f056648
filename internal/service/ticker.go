// ticker.go — периодический запуск очистки (SS_CLEANUP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/simple-storage/internal/domain/model"
)

// Sweeper — источник проходов очистки.
type Sweeper interface {
	Sweep(ctx context.Context) (*model.SweepResult, error)
}

// CleanupTicker — фоновая горутина, вызывающая Sweep с интервалом.
type CleanupTicker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCleanupTicker создаёт тикер очистки.
func NewCleanupTicker(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *CleanupTicker {
	return &CleanupTicker{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With(slog.String("component", "cleanup-ticker")),
	}
}

// Start запускает фоновую горутину.
func (t *CleanupTicker) Start(ctx context.Context) {
	tickCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.run(tickCtx)

	t.logger.Info("Периодическая очистка запущена",
		slog.String("interval", t.interval.String()),
	)
}

// Stop останавливает горутину и дожидается текущего прохода.
func (t *CleanupTicker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.logger.Info("Периодическая очистка остановлена")
}

func (t *CleanupTicker) run(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.sweeper.Sweep(ctx); err != nil {
				t.logger.Error("Ошибка периодической очистки",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
