// Пакет index — потокобезопасные in-memory реализации
// EntryRepository и SettingsRepository.
//
// Не персистентные: при рестарте содержимое теряется.
// Используются бэкендом SS_ENTRY_BACKEND=memory и в тестах сервисов.
package index

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/repository"
)

// Index — in-memory хранилище записей о файлах.
// sync.RWMutex: конкурентное чтение, эксклюзивная запись.
type Index struct {
	mu    sync.RWMutex
	files map[string]*model.FileEntry // job_id → запись
}

var _ repository.EntryRepository = (*Index)(nil)

// New создаёт пустой индекс.
func New() *Index {
	return &Index{files: make(map[string]*model.FileEntry)}
}

// cloneEntry копирует запись вместе с DownloadedAt,
// чтобы внешние изменения не затрагивали индекс.
func cloneEntry(e *model.FileEntry) *model.FileEntry {
	copied := *e
	if e.DownloadedAt != nil {
		t := *e.DownloadedAt
		copied.DownloadedAt = &t
	}
	return &copied
}

// Upsert создаёт или перезаписывает запись.
func (idx *Index) Upsert(_ context.Context, e *model.FileEntry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.files[e.JobID] = cloneEntry(e)
	return nil
}

// Find возвращает копию записи по job_id.
func (idx *Index) Find(_ context.Context, jobID string) (*model.FileEntry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.files[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneEntry(e), nil
}

// Update частично обновляет запись.
func (idx *Index) Update(_ context.Context, jobID string, upd model.EntryUpdate) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.files[jobID]
	if !ok {
		return repository.ErrNotFound
	}
	if upd.DownloadedAt != nil {
		t := *upd.DownloadedAt
		e.DownloadedAt = &t
	}
	if upd.Deleted != nil {
		e.Deleted = *upd.Deleted
	}
	return nil
}

// Query возвращает записи под фильтр, отсортированные по дате загрузки (новые первые).
func (idx *Index) Query(_ context.Context, q model.EntryQuery) ([]model.FileEntry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var filtered []model.FileEntry
	for _, e := range idx.files {
		if !q.Matches(e) {
			continue
		}
		filtered = append(filtered, *cloneEntry(e))
	}

	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].UploadedAt.Equal(filtered[j].UploadedAt) {
			return filtered[i].UploadedAt.After(filtered[j].UploadedAt)
		}
		return filtered[i].JobID < filtered[j].JobID
	})

	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}
	return filtered, nil
}

// Stats подсчитывает статистику по всем записям.
func (idx *Index) Stats(_ context.Context) (*model.EntryStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	s := &model.EntryStats{Total: len(idx.files)}
	for _, e := range idx.files {
		if e.Deleted {
			s.Deleted++
		} else {
			s.Active++
			s.TotalSize += e.FileSize
		}
		if e.DownloadedAt != nil {
			s.Downloaded++
		}
	}
	return s, nil
}

// Count возвращает количество записей в индексе.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.files)
}

// Settings — in-memory хранилище настроек.
type Settings struct {
	mu     sync.RWMutex
	values map[string]model.Setting
	now    func() time.Time
}

var _ repository.SettingsRepository = (*Settings)(nil)

// NewSettings создаёт пустое хранилище настроек.
func NewSettings() *Settings {
	return &Settings{values: make(map[string]model.Setting), now: time.Now}
}

// Get возвращает настройку по ключу.
func (s *Settings) Get(_ context.Context, key string) (*model.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

// Set создаёт или обновляет настройку.
func (s *Settings) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = model.Setting{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	return nil
}

// List возвращает все настройки, отсортированные по ключу.
func (s *Settings) List(_ context.Context) ([]model.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]model.Setting, 0, len(s.values))
	for _, v := range s.values {
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}
