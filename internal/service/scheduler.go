// scheduler.go — планировщик отложенного удаления файлов после скачивания.
//
// Schedule не блокирует: таймер (time.AfterFunc) по срабатыванию кладёт
// задание в буферизованную очередь, которую разбирают воркеры.
// Отсутствующие и уже удалённые файлы пропускаются молча, ошибки
// ввода-вывода логируются и не повторяются.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// queueSize — размер очереди сработавших таймеров.
const queueSize = 1024

// Deleter — исполнитель запланированного удаления.
type Deleter interface {
	DeleteScheduled(ctx context.Context, jobID string, generation time.Time) error
}

type scheduledDelete struct {
	jobID      string
	generation time.Time
}

// DeleteScheduler — планировщик отложенных удалений.
type DeleteScheduler struct {
	workers int
	logger  *slog.Logger

	queue chan scheduledDelete
	done  chan struct{}

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	nextID  uint64
	stopped bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	sending  sync.WaitGroup
	stopOnce sync.Once
}

// NewDeleteScheduler создаёт планировщик с указанным числом воркеров.
func NewDeleteScheduler(workers int, logger *slog.Logger) *DeleteScheduler {
	if workers < 1 {
		workers = 1
	}
	return &DeleteScheduler{
		workers: workers,
		logger:  logger.With(slog.String("component", "delete-scheduler")),
		queue:   make(chan scheduledDelete, queueSize),
		done:    make(chan struct{}),
		timers:  make(map[uint64]*time.Timer),
	}
}

// Start запускает воркеры. Вызывается один раз при старте приложения.
func (s *DeleteScheduler) Start(ctx context.Context, deleter Deleter) {
	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx, deleter)
	}

	s.logger.Info("Планировщик удаления запущен",
		slog.Int("workers", s.workers),
	)
}

// Stop отменяет ожидающие таймеры и дожидается завершения воркеров.
// Задания, оставшиеся в очереди, отбрасываются.
func (s *DeleteScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		canceled := 0
		for id, t := range s.timers {
			if t.Stop() {
				canceled++
			}
			delete(s.timers, id)
		}
		s.mu.Unlock()
		scheduledDeletesPending.Sub(float64(canceled))

		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.sending.Wait()

		dropped := s.drain()
		scheduledDeletesPending.Sub(float64(dropped))

		s.logger.Info("Планировщик удаления остановлен",
			slog.Int("canceled", canceled),
			slog.Int("dropped", dropped),
		)
	})
}

// drain опустошает очередь после остановки воркеров.
func (s *DeleteScheduler) drain() int {
	n := 0
	for {
		select {
		case <-s.queue:
			n++
		default:
			return n
		}
	}
}

// Schedule планирует удаление jobID через after.
// generation — uploaded_at загрузки, к которой относится удаление.
func (s *DeleteScheduler) Schedule(jobID string, generation time.Time, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.logger.Warn("Планировщик остановлен, удаление не запланировано",
			slog.String("job_id", jobID),
		)
		return
	}

	id := s.nextID
	s.nextID++
	job := scheduledDelete{jobID: jobID, generation: generation}

	scheduledDeletesPending.Inc()
	s.timers[id] = time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.timers, id)
		if s.stopped {
			s.mu.Unlock()
			scheduledDeletesPending.Dec()
			return
		}
		s.sending.Add(1)
		s.mu.Unlock()
		defer s.sending.Done()

		select {
		case s.queue <- job:
		case <-s.done:
			scheduledDeletesPending.Dec()
		}
	})
}

// Pending возвращает количество таймеров, которые ещё не сработали.
func (s *DeleteScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *DeleteScheduler) worker(ctx context.Context, deleter Deleter) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case job := <-s.queue:
			scheduledDeletesPending.Dec()
			s.run(ctx, deleter, job)
		}
	}
}

func (s *DeleteScheduler) run(ctx context.Context, deleter Deleter, job scheduledDelete) {
	err := deleter.DeleteScheduled(ctx, job.jobID, job.generation)
	switch {
	case err == nil:
		scheduledDeletesTotal.WithLabelValues(resultOK).Inc()
		s.logger.Info("Файл удалён после скачивания",
			slog.String("job_id", job.jobID),
		)
	case errors.Is(err, ErrNotFound), errors.Is(err, errSuperseded), errors.Is(err, errReadersActive):
		scheduledDeletesTotal.WithLabelValues(resultSkipped).Inc()
		s.logger.Debug("Отложенное удаление пропущено",
			slog.String("job_id", job.jobID),
			slog.String("reason", err.Error()),
		)
	default:
		scheduledDeletesTotal.WithLabelValues(resultError).Inc()
		s.logger.Error("Ошибка отложенного удаления",
			slog.String("job_id", job.jobID),
			slog.String("error", err.Error()),
		)
	}
}
