package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/simple-storage/internal/domain/model"
)

// entryRepo — реализация EntryRepository для PostgreSQL.
type entryRepo struct {
	db DBTX
}

// NewEntryRepository создаёт репозиторий записей о файлах.
func NewEntryRepository(db DBTX) EntryRepository {
	return &entryRepo{db: db}
}

// entryColumns — список колонок для SELECT.
const entryColumns = `job_id, file_path, file_size, uploaded_at, downloaded_at, deleted`

// Upsert создаёт или перезаписывает запись (INSERT ... ON CONFLICT DO UPDATE).
func (r *entryRepo) Upsert(ctx context.Context, e *model.FileEntry) error {
	query := `
		INSERT INTO files (job_id, file_path, file_size, uploaded_at, downloaded_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id) DO UPDATE
		SET file_path = EXCLUDED.file_path,
			file_size = EXCLUDED.file_size,
			uploaded_at = EXCLUDED.uploaded_at,
			downloaded_at = EXCLUDED.downloaded_at,
			deleted = EXCLUDED.deleted`

	_, err := r.db.Exec(ctx, query,
		e.JobID, e.FilePath, e.FileSize, e.UploadedAt, e.DownloadedAt, e.Deleted,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения files[%s]: %w", e.JobID, err)
	}
	return nil
}

// Find возвращает запись по job_id.
func (r *entryRepo) Find(ctx context.Context, jobID string) (*model.FileEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM files WHERE job_id = $1`

	e, err := scanEntry(r.db.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения files[%s]: %w", jobID, err)
	}
	return e, nil
}

// Update частично обновляет запись.
func (r *entryRepo) Update(ctx context.Context, jobID string, upd model.EntryUpdate) error {
	var (
		sets []string
		args []any
	)
	if upd.DownloadedAt != nil {
		args = append(args, *upd.DownloadedAt)
		sets = append(sets, fmt.Sprintf("downloaded_at = $%d", len(args)))
	}
	if upd.Deleted != nil {
		args = append(args, *upd.Deleted)
		sets = append(sets, fmt.Sprintf("deleted = $%d", len(args)))
	}
	if len(sets) == 0 {
		_, err := r.Find(ctx, jobID)
		return err
	}

	args = append(args, jobID)
	query := fmt.Sprintf(`UPDATE files SET %s WHERE job_id = $%d`, strings.Join(sets, ", "), len(args))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления files[%s]: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Query возвращает записи под фильтр, отсортированные по uploaded_at (новые первые).
func (r *entryRepo) Query(ctx context.Context, q model.EntryQuery) ([]model.FileEntry, error) {
	var (
		where []string
		args  []any
	)
	if q.OnlyLive {
		where = append(where, "deleted = FALSE")
	}
	if q.DownloadedBefore != nil {
		args = append(args, *q.DownloadedBefore)
		where = append(where, fmt.Sprintf("downloaded_at IS NOT NULL AND downloaded_at < $%d", len(args)))
	}

	query := `SELECT ` + entryColumns + ` FROM files`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY uploaded_at DESC, job_id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
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

// Stats возвращает агрегированную статистику по таблице files.
func (r *entryRepo) Stats(ctx context.Context) (*model.EntryStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE deleted = FALSE),
			COUNT(*) FILTER (WHERE deleted = TRUE),
			COUNT(*) FILTER (WHERE downloaded_at IS NOT NULL),
			COALESCE(SUM(file_size) FILTER (WHERE deleted = FALSE), 0)
		FROM files`

	s := &model.EntryStats{}
	err := r.db.QueryRow(ctx, query).Scan(&s.Total, &s.Active, &s.Deleted, &s.Downloaded, &s.TotalSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики files: %w", err)
	}
	return s, nil
}

// scanEntry сканирует строку в FileEntry.
func scanEntry(row pgx.Row) (*model.FileEntry, error) {
	e := &model.FileEntry{}
	var size *int64
	if err := row.Scan(&e.JobID, &e.FilePath, &size, &e.UploadedAt, &e.DownloadedAt, &e.Deleted); err != nil {
		return nil, err
	}
	if size != nil {
		e.FileSize = *size
	}
	e.UploadedAt = e.UploadedAt.UTC()
	if e.DownloadedAt != nil {
		t := e.DownloadedAt.UTC()
		e.DownloadedAt = &t
	}
	return e, nil
}
