// lifecycle.go — сервис жизненного цикла файлов заданий.
//
// Операции: Upload, Download, Delete, Check, List.
// Все изменяющие операции над одним job_id выполняются под мьютексом ключа:
// проверка состояния и запись в хранилища линеаризуемы, передача содержимого
// клиенту идёт вне блокировки.
//
// Отложенное удаление после скачивания ставится в DeleteScheduler только
// после закрытия потока (сигнал завершения передачи) и только когда
// не осталось других открытых потоков того же файла.
package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/bigkaa/simple-storage/internal/domain/lifecycle"
	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/keylock"
	"github.com/bigkaa/simple-storage/internal/repository"
	"github.com/bigkaa/simple-storage/internal/storage/blob"
)

// MaxListLimit — верхняя граница размера выборки List.
const MaxListLimit = 1000

// Scheduler — планировщик отложенного удаления.
// Schedule не должен блокировать вызывающего.
type Scheduler interface {
	Schedule(jobID string, generation time.Time, after time.Duration)
}

// LifecycleOptions — параметры жизненного цикла.
type LifecycleOptions struct {
	// AutoDelete — удалять файл после полного скачивания (если не keep)
	AutoDelete bool
	// GracePeriod — задержка удаления после завершения передачи
	GracePeriod time.Duration
	// AllowResurrect — разрешать повторную загрузку удалённого файла
	AllowResurrect bool
	// MaxFileSize — ограничение размера содержимого (0 — без ограничения)
	MaxFileSize int64
}

// UploadResult — результат загрузки.
type UploadResult struct {
	JobID       string
	Size        int64
	Locator     string
	DownloadURL string
	UploadedAt  time.Time
	// Resurrected — загрузка поверх удалённой записи
	Resurrected bool
}

// Download — открытый поток скачивания.
// Вызывающий обязан закрыть Body; закрытие после чтения до EOF
// считается завершением передачи.
type Download struct {
	Entry model.FileEntry
	Body  io.ReadCloser
}

// CheckResult — результат проверки наличия файла.
type CheckResult struct {
	Exists bool
	State  model.State
}

// readerKey — открытые потоки конкретной загрузки (job_id + uploaded_at).
type readerKey struct {
	jobID      string
	generation int64
}

type readerState struct {
	live       int
	pending    bool
	uploadedAt time.Time
}

// LifecycleService — сервис жизненного цикла файлов.
type LifecycleService struct {
	entries   repository.EntryRepository
	blobs     blob.Store
	sm        *lifecycle.StateMachine
	locks     *keylock.Locker
	scheduler Scheduler
	opts      LifecycleOptions
	logger    *slog.Logger
	now       func() time.Time

	readersMu sync.Mutex
	readers   map[readerKey]*readerState
}

// NewLifecycleService создаёт сервис жизненного цикла.
// scheduler может быть nil, если AutoDelete выключен.
func NewLifecycleService(
	entries repository.EntryRepository,
	blobs blob.Store,
	scheduler Scheduler,
	opts LifecycleOptions,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		entries:   entries,
		blobs:     blobs,
		sm:        lifecycle.NewStateMachine(opts.AllowResurrect),
		locks:     keylock.New(),
		scheduler: scheduler,
		opts:      opts,
		logger:    logger.With(slog.String("component", "lifecycle")),
		now:       time.Now,
		readers:   make(map[readerKey]*readerState),
	}
}

// Upload сохраняет содержимое под job_id, безусловно перезаписывая
// прежний файл и запись. Перезапись сбрасывает downloaded_at.
func (s *LifecycleService) Upload(ctx context.Context, jobID string, r io.Reader) (*UploadResult, error) {
	if err := blob.ValidateKey(jobID); err != nil {
		operationsTotal.WithLabelValues("upload", resultError).Inc()
		return nil, fmt.Errorf("%w: job_id: %v", ErrValidation, err)
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		operationsTotal.WithLabelValues("upload", resultError).Inc()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: пустое содержимое", ErrValidation)
		}
		return nil, fmt.Errorf("%w: ошибка чтения содержимого: %v", ErrValidation, err)
	}

	var src io.Reader = br
	var limited *maxBytesReader
	if s.opts.MaxFileSize > 0 {
		limited = &maxBytesReader{r: br, remaining: s.opts.MaxFileSize}
		src = limited
	}

	unlock := s.locks.Lock(jobID)
	defer unlock()

	prev, err := s.find(ctx, jobID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		operationsTotal.WithLabelValues("upload", resultError).Inc()
		return nil, err
	}
	from := prev.State()

	if _, err := s.sm.Transition(from, lifecycle.EventUpload); err != nil {
		operationsTotal.WithLabelValues("upload", resultError).Inc()
		var te *lifecycle.TransitionError
		if errors.As(err, &te) && te.Code == lifecycle.CodeResurrectDenied {
			return nil, fmt.Errorf("%w: %s", ErrConflict, te.Message)
		}
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	resurrected := lifecycle.IsResurrect(from, lifecycle.EventUpload)

	info, err := s.blobs.Put(ctx, jobID, src)
	if err != nil {
		operationsTotal.WithLabelValues("upload", resultError).Inc()
		if limited != nil && limited.exceeded {
			return nil, fmt.Errorf("%w: лимит %d байт", ErrTooLarge, s.opts.MaxFileSize)
		}
		return nil, fmt.Errorf("%w: сохранение содержимого: %v", ErrInternal, err)
	}

	entry := &model.FileEntry{
		JobID:      jobID,
		FilePath:   info.Locator,
		FileSize:   info.Size,
		UploadedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.entries.Upsert(ctx, entry); err != nil {
		operationsTotal.WithLabelValues("upload", resultError).Inc()
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	operationsTotal.WithLabelValues("upload", resultOK).Inc()
	uploadedBytesTotal.Add(float64(info.Size))

	if resurrected {
		s.logger.Info("Удалённый файл загружен повторно",
			slog.String("job_id", jobID),
			slog.Int64("size", info.Size),
		)
	} else {
		s.logger.Info("Файл загружен",
			slog.String("job_id", jobID),
			slog.Int64("size", info.Size),
			slog.String("previous_state", string(from)),
		)
	}

	return &UploadResult{
		JobID:       jobID,
		Size:        info.Size,
		Locator:     info.Locator,
		DownloadURL: "/download/" + url.PathEscape(jobID),
		UploadedAt:  entry.UploadedAt,
		Resurrected: resurrected,
	}, nil
}

// Download открывает содержимое на чтение и обновляет downloaded_at.
// keep=true отменяет автоудаление для этого скачивания.
func (s *LifecycleService) Download(ctx context.Context, jobID string, keep bool) (*Download, error) {
	if err := blob.ValidateKey(jobID); err != nil {
		operationsTotal.WithLabelValues("download", resultError).Inc()
		return nil, ErrNotFound
	}

	unlock := s.locks.Lock(jobID)
	defer unlock()

	entry, err := s.find(ctx, jobID)
	if err != nil {
		operationsTotal.WithLabelValues("download", resultError).Inc()
		return nil, err
	}
	if _, err := s.sm.Transition(entry.State(), lifecycle.EventDownload); err != nil {
		operationsTotal.WithLabelValues("download", resultError).Inc()
		return nil, ErrGone
	}

	rc, err := s.blobs.Open(ctx, jobID)
	if err != nil {
		operationsTotal.WithLabelValues("download", resultError).Inc()
		if errors.Is(err, blob.ErrNotFound) {
			s.logger.Warn("Запись есть, содержимое отсутствует",
				slog.String("job_id", jobID),
				slog.String("file_path", entry.FilePath),
			)
			return nil, fmt.Errorf("%w: содержимое отсутствует", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	if entry.DownloadedAt != nil && now.Before(*entry.DownloadedAt) {
		now = *entry.DownloadedAt
	}
	if err := s.entries.Update(ctx, jobID, model.EntryUpdate{DownloadedAt: &now}); err != nil {
		rc.Close()
		operationsTotal.WithLabelValues("download", resultError).Inc()
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	entry.DownloadedAt = &now

	key := readerKey{jobID: jobID, generation: entry.UploadedAt.UnixNano()}
	s.acquireReader(key, entry.UploadedAt)

	operationsTotal.WithLabelValues("download", resultOK).Inc()
	s.logger.Info("Начато скачивание",
		slog.String("job_id", jobID),
		slog.Int64("size", entry.FileSize),
		slog.Bool("keep", keep),
	)

	return &Download{
		Entry: *entry,
		Body: &trackedReader{
			rc:    rc,
			key:   key,
			arm:   s.opts.AutoDelete && !keep,
			owner: s,
		},
	}, nil
}

// Delete удаляет файл задания: содержимое (отсутствие допускается),
// затем отметка deleted. Повторное удаление — ErrGone.
func (s *LifecycleService) Delete(ctx context.Context, jobID string) error {
	if err := blob.ValidateKey(jobID); err != nil {
		operationsTotal.WithLabelValues("delete", resultError).Inc()
		return ErrNotFound
	}

	unlock := s.locks.Lock(jobID)
	defer unlock()

	entry, err := s.find(ctx, jobID)
	if err != nil {
		operationsTotal.WithLabelValues("delete", resultError).Inc()
		return err
	}
	if _, err := s.sm.Transition(entry.State(), lifecycle.EventDelete); err != nil {
		operationsTotal.WithLabelValues("delete", resultError).Inc()
		return ErrGone
	}

	if err := s.remove(ctx, entry); err != nil {
		operationsTotal.WithLabelValues("delete", resultError).Inc()
		return err
	}

	operationsTotal.WithLabelValues("delete", resultOK).Inc()
	s.logger.Info("Файл удалён", slog.String("job_id", jobID))
	return nil
}

// Check проверяет, что запись есть, не удалена и содержимое на месте.
// Ошибки хранилищ трактуются как отсутствие.
func (s *LifecycleService) Check(ctx context.Context, jobID string) CheckResult {
	if blob.ValidateKey(jobID) != nil {
		return CheckResult{State: model.StateAbsent}
	}

	entry, err := s.find(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Ошибка проверки записи",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		return CheckResult{State: model.StateAbsent}
	}

	state := entry.State()
	if state == model.StateDeleted {
		return CheckResult{State: state}
	}

	ok, err := s.blobs.Exists(ctx, jobID)
	if err != nil {
		s.logger.Warn("Ошибка проверки содержимого",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return CheckResult{State: state}
	}
	return CheckResult{Exists: ok, State: state}
}

// List возвращает последние загруженные записи (новые первые).
func (s *LifecycleService) List(ctx context.Context, limit int) ([]model.FileEntry, error) {
	if limit < 1 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: limit должен быть в диапазоне 1-%d", ErrValidation, MaxListLimit)
	}

	entries, err := s.entries.Query(ctx, model.EntryQuery{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if entries == nil {
		entries = []model.FileEntry{}
	}
	return entries, nil
}

// Stats возвращает агрегированную статистику записей.
func (s *LifecycleService) Stats(ctx context.Context) (*model.EntryStats, error) {
	stats, err := s.entries.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return stats, nil
}

// DeleteScheduled — удаление, запланированное после скачивания.
// generation — uploaded_at загрузки, к которой относится удаление:
// если файл с тех пор перезагружен, удаление отменяется.
func (s *LifecycleService) DeleteScheduled(ctx context.Context, jobID string, generation time.Time) error {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	entry, err := s.find(ctx, jobID)
	if err != nil {
		return err
	}
	if entry.Deleted {
		return ErrGone
	}
	if !entry.UploadedAt.Equal(generation) {
		return errSuperseded
	}

	key := readerKey{jobID: jobID, generation: generation.UnixNano()}
	s.readersMu.Lock()
	if st, ok := s.readers[key]; ok && st.live > 0 {
		st.pending = true
		s.readersMu.Unlock()
		return errReadersActive
	}
	s.readersMu.Unlock()

	if _, err := s.sm.Transition(entry.State(), lifecycle.EventDelete); err != nil {
		return ErrGone
	}
	return s.remove(ctx, entry)
}

// Expire удаляет файл по сроку хранения, если он всё ещё подходит:
// не удалён и скачан раньше cutoff. Возвращает true, если файл удалён.
func (s *LifecycleService) Expire(ctx context.Context, jobID string, cutoff time.Time) (bool, error) {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	entry, err := s.find(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if entry.Deleted || !entry.DownloadedBefore(cutoff) {
		return false, nil
	}
	if _, err := s.sm.Transition(entry.State(), lifecycle.EventExpire); err != nil {
		return false, nil
	}

	if err := s.remove(ctx, entry); err != nil {
		return false, err
	}
	return true, nil
}

// find читает запись и переводит ошибки репозитория в ошибки сервиса.
func (s *LifecycleService) find(ctx context.Context, jobID string) (*model.FileEntry, error) {
	entry, err := s.entries.Find(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return entry, nil
}

// remove — общий примитив удаления. Вызывается под мьютексом job_id.
func (s *LifecycleService) remove(ctx context.Context, entry *model.FileEntry) error {
	if err := s.blobs.Delete(ctx, entry.JobID); err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			return fmt.Errorf("%w: удаление содержимого: %v", ErrInternal, err)
		}
		s.logger.Warn("Содержимое уже отсутствует, запись помечается удалённой",
			slog.String("job_id", entry.JobID),
		)
	}

	deleted := true
	if err := s.entries.Update(ctx, entry.JobID, model.EntryUpdate{Deleted: &deleted}); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

func (s *LifecycleService) acquireReader(key readerKey, uploadedAt time.Time) {
	s.readersMu.Lock()
	defer s.readersMu.Unlock()

	st, ok := s.readers[key]
	if !ok {
		st = &readerState{uploadedAt: uploadedAt}
		s.readers[key] = st
	}
	st.live++
}

// releaseReader вызывается при закрытии потока. completed — поток
// дочитан до конца и требует автоудаления.
func (s *LifecycleService) releaseReader(key readerKey, completed bool) {
	s.readersMu.Lock()
	st, ok := s.readers[key]
	if !ok {
		s.readersMu.Unlock()
		return
	}
	st.live--
	if completed {
		st.pending = true
	}
	fire := st.live == 0 && st.pending
	uploadedAt := st.uploadedAt
	if st.live == 0 {
		delete(s.readers, key)
	}
	s.readersMu.Unlock()

	if !fire {
		return
	}
	if s.scheduler == nil {
		s.logger.Warn("Планировщик удаления не настроен",
			slog.String("job_id", key.jobID),
		)
		return
	}
	s.scheduler.Schedule(key.jobID, uploadedAt, s.opts.GracePeriod)
	s.logger.Debug("Запланировано удаление после скачивания",
		slog.String("job_id", key.jobID),
		slog.Duration("after", s.opts.GracePeriod),
	)
}

// trackedReader отслеживает дочитывание потока до EOF.
type trackedReader struct {
	rc    io.ReadCloser
	key   readerKey
	arm   bool
	owner *LifecycleService

	eof  bool
	once sync.Once
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.rc.Read(p)
	if errors.Is(err, io.EOF) {
		t.eof = true
	}
	return n, err
}

// Close закрывает поток. Повторные вызовы безопасны.
func (t *trackedReader) Close() error {
	var err error
	t.once.Do(func() {
		err = t.rc.Close()
		t.owner.releaseReader(t.key, t.arm && t.eof)
	})
	return err
}

// maxBytesReader возвращает ErrTooLarge при чтении сверх лимита.
type maxBytesReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (m *maxBytesReader) Read(p []byte) (int, error) {
	if m.exceeded {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > m.remaining+1 {
		p = p[:m.remaining+1]
	}
	n, err := m.r.Read(p)
	if int64(n) <= m.remaining {
		m.remaining -= int64(n)
		return n, err
	}
	n = int(m.remaining)
	m.remaining = 0
	m.exceeded = true
	return n, ErrTooLarge
}
