package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций для метки result.
const (
	resultOK      = "ok"
	resultError   = "error"
	resultSkipped = "skipped"
)

// Prometheus метрики сервисного слоя
var (
	// operationsTotal — операции жизненного цикла по типу и результату.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ss_operations_total",
		Help: "Общее количество операций жизненного цикла файлов",
	}, []string{"operation", "result"})

	// uploadedBytesTotal — объём загруженного содержимого.
	uploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ss_uploaded_bytes_total",
		Help: "Общий объём загруженных файлов в байтах",
	})

	// scheduledDeletesPending — таймеры отложенного удаления, ещё не отработавшие.
	scheduledDeletesPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ss_scheduled_deletes_pending",
		Help: "Количество ожидающих отложенных удалений",
	})

	// scheduledDeletesTotal — выполненные отложенные удаления по результату.
	scheduledDeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ss_scheduled_deletes_total",
		Help: "Общее количество отложенных удалений",
	}, []string{"result"})

	// cleanupRunsTotal — проходы очистки по статусу (completed, skipped, error).
	cleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ss_cleanup_runs_total",
		Help: "Общее количество запусков очистки",
	}, []string{"status"})

	// cleanupFilesDeletedTotal — файлы, удалённые очисткой.
	cleanupFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ss_cleanup_files_deleted_total",
		Help: "Общее количество файлов, удалённых очисткой",
	})

	// cleanupFailuresTotal — файлы, которые очистка не смогла удалить.
	cleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ss_cleanup_failures_total",
		Help: "Общее количество ошибок удаления при очистке",
	})

	// cleanupDurationSeconds — длительность прохода очистки.
	cleanupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ss_cleanup_duration_seconds",
		Help:    "Длительность очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)
