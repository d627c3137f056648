package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/repository"
)

const entryColumns = `job_id, file_path, file_size, uploaded_at, downloaded_at, deleted`

// EntryRepository — реализация repository.EntryRepository для SQLite.
type EntryRepository struct {
	db *sql.DB
}

var _ repository.EntryRepository = (*EntryRepository)(nil)

// Upsert создаёт или перезаписывает запись.
func (r *EntryRepository) Upsert(ctx context.Context, e *model.FileEntry) error {
	query := `
		INSERT INTO files (job_id, file_path, file_size, uploaded_at, downloaded_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO UPDATE SET
			file_path = excluded.file_path,
			file_size = excluded.file_size,
			uploaded_at = excluded.uploaded_at,
			downloaded_at = excluded.downloaded_at,
			deleted = excluded.deleted`

	var downloadedAt sql.NullString
	if e.DownloadedAt != nil {
		downloadedAt = sql.NullString{String: formatTime(*e.DownloadedAt), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		e.JobID, e.FilePath, e.FileSize, formatTime(e.UploadedAt), downloadedAt, e.Deleted,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения files[%s]: %w", e.JobID, err)
	}
	return nil
}

// Find возвращает запись по job_id.
func (r *EntryRepository) Find(ctx context.Context, jobID string) (*model.FileEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM files WHERE job_id = ?`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения files[%s]: %w", jobID, err)
	}
	return e, nil
}

// Update частично обновляет запись.
func (r *EntryRepository) Update(ctx context.Context, jobID string, upd model.EntryUpdate) error {
	var (
		sets []string
		args []any
	)
	if upd.DownloadedAt != nil {
		sets = append(sets, "downloaded_at = ?")
		args = append(args, formatTime(*upd.DownloadedAt))
	}
	if upd.Deleted != nil {
		sets = append(sets, "deleted = ?")
		args = append(args, *upd.Deleted)
	}
	if len(sets) == 0 {
		_, err := r.Find(ctx, jobID)
		return err
	}

	args = append(args, jobID)
	query := `UPDATE files SET ` + strings.Join(sets, ", ") + ` WHERE job_id = ?`

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления files[%s]: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка обновления files[%s]: %w", jobID, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Query возвращает записи под фильтр, новые первые.
func (r *EntryRepository) Query(ctx context.Context, q model.EntryQuery) ([]model.FileEntry, error) {
	var (
		where []string
		args  []any
	)
	if q.OnlyLive {
		where = append(where, "deleted = 0")
	}
	if q.DownloadedBefore != nil {
		where = append(where, "downloaded_at IS NOT NULL AND downloaded_at < ?")
		args = append(args, formatTime(*q.DownloadedBefore))
	}

	query := `SELECT ` + entryColumns + ` FROM files`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY uploaded_at DESC, job_id`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка files: %w", err)
	}
	defer rows.Close()

	var entries []model.FileEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования files: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Stats возвращает агрегированную статистику.
func (r *EntryRepository) Stats(ctx context.Context) (*model.EntryStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN deleted = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN deleted = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN downloaded_at IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN deleted = 0 THEN file_size ELSE 0 END), 0)
		FROM files`

	s := &model.EntryStats{}
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Total, &s.Active, &s.Deleted, &s.Downloaded, &s.TotalSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики files: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.FileEntry, error) {
	var (
		e            model.FileEntry
		size         sql.NullInt64
		uploadedAt   string
		downloadedAt sql.NullString
	)
	if err := row.Scan(&e.JobID, &e.FilePath, &size, &uploadedAt, &downloadedAt, &e.Deleted); err != nil {
		return nil, err
	}
	e.FileSize = size.Int64

	t, err := parseTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	e.UploadedAt = t

	if downloadedAt.Valid {
		d, err := parseTime(downloadedAt.String)
		if err != nil {
			return nil, err
		}
		e.DownloadedAt = &d
	}
	return &e, nil
}
