// Пакет model — доменные модели simple-storage.
package model

import "time"

// State — производное состояние записи о файле задания.
type State string

const (
	// StateAbsent — записи с таким job_id нет
	StateAbsent State = "absent"
	// StateActive — файл загружен и ещё не скачивался
	StateActive State = "active"
	// StateDownloaded — файл скачан хотя бы один раз
	StateDownloaded State = "downloaded"
	// StateDeleted — терминальная отметка об удалении (tombstone)
	StateDeleted State = "deleted"
)

// FileEntry — запись о файле задания. Одна на job_id,
// строки не удаляются: удаление выставляет Deleted.
type FileEntry struct {
	// JobID — идентификатор задания, первичный ключ
	JobID string `json:"job_id"`
	// FilePath — локатор содержимого в хранилище blob-ов
	FilePath string `json:"file_path"`
	// FileSize — размер содержимого в байтах
	FileSize int64 `json:"file_size"`
	// UploadedAt — время последней загрузки
	UploadedAt time.Time `json:"uploaded_at"`
	// DownloadedAt — время последнего успешного скачивания (nil — не скачивался)
	DownloadedAt *time.Time `json:"downloaded_at"`
	// Deleted — файл удалён
	Deleted bool `json:"deleted"`
}

// State вычисляет состояние записи.
func (e *FileEntry) State() State {
	switch {
	case e == nil:
		return StateAbsent
	case e.Deleted:
		return StateDeleted
	case e.DownloadedAt != nil:
		return StateDownloaded
	default:
		return StateActive
	}
}

// DownloadedBefore проверяет, скачан ли файл раньше cutoff.
// Никогда не скачанные записи не подходят.
func (e *FileEntry) DownloadedBefore(cutoff time.Time) bool {
	return e.DownloadedAt != nil && e.DownloadedAt.Before(cutoff)
}

// EntryUpdate — частичное обновление записи. nil-поля не меняются.
type EntryUpdate struct {
	DownloadedAt *time.Time
	Deleted      *bool
}

// EntryQuery — параметры выборки записей.
// Результат всегда отсортирован по UploadedAt (новые первые).
type EntryQuery struct {
	// OnlyLive — только записи с deleted = false
	OnlyLive bool
	// DownloadedBefore — только записи, скачанные раньше указанного времени
	DownloadedBefore *time.Time
	// Limit — максимальное количество записей (0 — без ограничения)
	Limit int
}

// Matches проверяет, попадает ли запись под фильтр запроса.
func (q EntryQuery) Matches(e *FileEntry) bool {
	if q.OnlyLive && e.Deleted {
		return false
	}
	if q.DownloadedBefore != nil && !e.DownloadedBefore(*q.DownloadedBefore) {
		return false
	}
	return true
}

// EntryStats — агрегированная статистика записей.
type EntryStats struct {
	Total      int   `json:"total"`
	Active     int   `json:"active"`
	Deleted    int   `json:"deleted"`
	Downloaded int   `json:"downloaded"`
	TotalSize  int64 `json:"total_size"`
}
