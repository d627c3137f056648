// Пакет sqlite — реализация EntryRepository и SettingsRepository
// поверх встраиваемой SQLite (modernc.org/sqlite, без cgo).
// Бэкенд по умолчанию для одиночного экземпляра сервиса.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// timeLayout — фиксированная ширина, чтобы строковое сравнение
// совпадало с хронологическим.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB — подключение к файлу SQLite со схемой simple-storage.
type DB struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу по пути path и применяет схему.
// ":memory:" — база в памяти.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("ошибка создания каталога %s: %w", dir, err)
			}
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}
	// Одно соединение: записи сериализуются, SQLITE_BUSY не возникает.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка применения схемы SQLite: %w", err)
	}

	return &DB{db: db}, nil
}

// Close закрывает подключение.
func (d *DB) Close() error {
	return d.db.Close()
}

// Entries возвращает репозиторий записей о файлах.
func (d *DB) Entries() *EntryRepository {
	return &EntryRepository{db: d.db}
}

// Settings возвращает репозиторий настроек.
func (d *DB) Settings() *SettingsRepository {
	return &SettingsRepository{db: d.db}
}

// Name возвращает имя проверки готовности.
func (d *DB) Name() string {
	return "sqlite"
}

// CheckReady проверяет доступность базы.
func (d *DB) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := d.db.PingContext(ctx); err != nil {
		return "fail", fmt.Sprintf("SQLite недоступна: %v", err)
	}
	return "ok", "база доступна"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Значения, записанные вручную в RFC3339
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректное время %q: %w", s, err)
	}
	return t.UTC(), nil
}
