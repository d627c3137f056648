// Пакет repository — слой доступа к записям о файлах и настройкам.
// Интерфейсы хранилищ и реализация для PostgreSQL (чистый SQL через pgx, без ORM).
// Реализации для SQLite и памяти — в пакетах repository/sqlite и storage/index.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/simple-storage/internal/domain/model"
)

// ErrNotFound — запись не найдена.
var ErrNotFound = errors.New("запись не найдена")

// EntryRepository — хранилище записей о файлах заданий.
type EntryRepository interface {
	// Upsert создаёт или полностью перезаписывает запись по job_id.
	Upsert(ctx context.Context, entry *model.FileEntry) error
	// Find возвращает запись по job_id. Если не найдена — ErrNotFound.
	Find(ctx context.Context, jobID string) (*model.FileEntry, error)
	// Update частично обновляет запись. Если не найдена — ErrNotFound.
	Update(ctx context.Context, jobID string, upd model.EntryUpdate) error
	// Query возвращает записи под фильтр, новые первые.
	Query(ctx context.Context, q model.EntryQuery) ([]model.FileEntry, error)
	// Stats возвращает агрегированную статистику.
	Stats(ctx context.Context) (*model.EntryStats, error)
}

// SettingsRepository — хранилище изменяемых настроек.
type SettingsRepository interface {
	// Get возвращает настройку по ключу. Если не найдена — ErrNotFound.
	Get(ctx context.Context, key string) (*model.Setting, error)
	// Set создаёт или обновляет настройку (upsert).
	Set(ctx context.Context, key, value string) error
	// List возвращает все настройки, отсортированные по ключу.
	List(ctx context.Context) ([]model.Setting, error)
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
