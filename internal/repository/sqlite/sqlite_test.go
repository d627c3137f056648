package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/repository"
	"github.com/bigkaa/simple-storage/internal/repository/repotest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Open() ошибка: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEntryRepository(t *testing.T) {
	repotest.RunEntryRepository(t, func(t *testing.T) repository.EntryRepository {
		return openTestDB(t).Entries()
	})
}

func TestSettingsRepository(t *testing.T) {
	repotest.RunSettingsRepository(t, func(t *testing.T) repository.SettingsRepository {
		return openTestDB(t).Settings()
	})
}

// TestReopen проверяет, что данные переживают переоткрытие файла.
func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if err := db.Entries().Upsert(ctx, &model.FileEntry{JobID: "job", FilePath: "job.zip", FileSize: 5, UploadedAt: now}); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("повторный Open() ошибка: %v", err)
	}
	defer db.Close()

	got, err := db.Entries().Find(ctx, "job")
	if err != nil {
		t.Fatalf("Find() после переоткрытия: %v", err)
	}
	if !got.UploadedAt.Equal(now) {
		t.Errorf("UploadedAt: хотели %v, получили %v", now, got.UploadedAt)
	}
}

func TestCheckReady(t *testing.T) {
	db := openTestDB(t)
	if status, msg := db.CheckReady(); status != "ok" {
		t.Errorf("CheckReady() = %s (%s), ожидается ok", status, msg)
	}
	if db.Name() != "sqlite" {
		t.Errorf("Name() = %s", db.Name())
	}
}

func TestTimeLayoutOrdering(t *testing.T) {
	a := time.Date(2026, 1, 1, 10, 0, 0, 5, time.UTC)
	b := time.Date(2026, 1, 1, 10, 0, 0, 500000000, time.UTC)
	if !(formatTime(a) < formatTime(b)) {
		t.Errorf("строковый порядок нарушен: %s >= %s", formatTime(a), formatTime(b))
	}

	parsed, err := parseTime("2026-01-01T10:00:00Z")
	if err != nil {
		t.Fatalf("parseTime(RFC3339) ошибка: %v", err)
	}
	if !parsed.Equal(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("parseTime: %v", parsed)
	}
}
