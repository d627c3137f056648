// Пакет repotest — общие проверки реализаций EntryRepository и SettingsRepository.
// Используется тестами PostgreSQL, SQLite и in-memory хранилищ.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/repository"
)

// RunEntryRepository проверяет контракт EntryRepository.
// newRepo должен возвращать пустое хранилище.
func RunEntryRepository(t *testing.T, newRepo func(t *testing.T) repository.EntryRepository) {
	t.Helper()

	t.Run("UpsertFind", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		now := time.Now().UTC().Truncate(time.Second)
		e := &model.FileEntry{JobID: "job-1", FilePath: "job-1.zip", FileSize: 100, UploadedAt: now}
		if err := repo.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert() ошибка: %v", err)
		}

		got, err := repo.Find(ctx, "job-1")
		if err != nil {
			t.Fatalf("Find() ошибка: %v", err)
		}
		if got.FilePath != "job-1.zip" || got.FileSize != 100 || got.Deleted {
			t.Errorf("неожиданная запись: %+v", got)
		}
		if !got.UploadedAt.Equal(now) {
			t.Errorf("UploadedAt: хотели %v, получили %v", now, got.UploadedAt)
		}
		if got.DownloadedAt != nil {
			t.Errorf("DownloadedAt должен быть nil, получено %v", got.DownloadedAt)
		}
	})

	t.Run("FindNotFound", func(t *testing.T) {
		repo := newRepo(t)
		if _, err := repo.Find(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено %v", err)
		}
	})

	t.Run("UpsertOverwrites", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		t0 := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
		downloaded := t0.Add(time.Minute)
		first := &model.FileEntry{
			JobID: "job", FilePath: "job.zip", FileSize: 10, UploadedAt: t0,
			DownloadedAt: &downloaded, Deleted: true,
		}
		if err := repo.Upsert(ctx, first); err != nil {
			t.Fatal(err)
		}

		t1 := time.Now().UTC().Truncate(time.Second)
		second := &model.FileEntry{JobID: "job", FilePath: "job.zip", FileSize: 20, UploadedAt: t1}
		if err := repo.Upsert(ctx, second); err != nil {
			t.Fatal(err)
		}

		got, err := repo.Find(ctx, "job")
		if err != nil {
			t.Fatal(err)
		}
		if got.FileSize != 20 || got.Deleted || got.DownloadedAt != nil || !got.UploadedAt.Equal(t1) {
			t.Errorf("запись не перезаписана полностью: %+v", got)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if err := repo.Upsert(ctx, &model.FileEntry{JobID: "job", FilePath: "job.zip", FileSize: 1, UploadedAt: time.Now().UTC()}); err != nil {
			t.Fatal(err)
		}

		at := time.Now().UTC().Truncate(time.Second)
		if err := repo.Update(ctx, "job", model.EntryUpdate{DownloadedAt: &at}); err != nil {
			t.Fatalf("Update(downloaded_at) ошибка: %v", err)
		}
		got, _ := repo.Find(ctx, "job")
		if got.DownloadedAt == nil || !got.DownloadedAt.Equal(at) {
			t.Errorf("DownloadedAt: хотели %v, получили %v", at, got.DownloadedAt)
		}
		if got.Deleted {
			t.Error("Deleted не должен меняться")
		}

		deleted := true
		if err := repo.Update(ctx, "job", model.EntryUpdate{Deleted: &deleted}); err != nil {
			t.Fatalf("Update(deleted) ошибка: %v", err)
		}
		got, _ = repo.Find(ctx, "job")
		if !got.Deleted {
			t.Error("Deleted должен быть true")
		}
		if got.DownloadedAt == nil {
			t.Error("DownloadedAt не должен сбрасываться")
		}

		if err := repo.Update(ctx, "missing", model.EntryUpdate{Deleted: &deleted}); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("Update(missing): ожидалась ErrNotFound, получено %v", err)
		}
	})

	t.Run("Query", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		now := time.Now().UTC().Truncate(time.Second)
		old := now.Add(-48 * time.Hour)
		recent := now.Add(-time.Hour)

		entries := []model.FileEntry{
			{JobID: "old-downloaded", FilePath: "a", UploadedAt: now.Add(-50 * time.Hour), DownloadedAt: &old},
			{JobID: "recent-downloaded", FilePath: "b", UploadedAt: now.Add(-2 * time.Hour), DownloadedAt: &recent},
			{JobID: "never-downloaded", FilePath: "c", UploadedAt: now.Add(-100 * time.Hour)},
			{JobID: "old-deleted", FilePath: "d", UploadedAt: now.Add(-60 * time.Hour), DownloadedAt: &old, Deleted: true},
			{JobID: "newest", FilePath: "e", UploadedAt: now},
		}
		for i := range entries {
			if err := repo.Upsert(ctx, &entries[i]); err != nil {
				t.Fatal(err)
			}
		}

		all, err := repo.Query(ctx, model.EntryQuery{})
		if err != nil {
			t.Fatalf("Query() ошибка: %v", err)
		}
		wantOrder := []string{"newest", "recent-downloaded", "old-downloaded", "old-deleted", "never-downloaded"}
		if len(all) != len(wantOrder) {
			t.Fatalf("количество: хотели %d, получили %d", len(wantOrder), len(all))
		}
		for i, id := range wantOrder {
			if all[i].JobID != id {
				t.Errorf("позиция %d: хотели %s, получили %s", i, id, all[i].JobID)
			}
		}

		limited, _ := repo.Query(ctx, model.EntryQuery{Limit: 2})
		if len(limited) != 2 || limited[0].JobID != "newest" {
			t.Errorf("Limit=2: неожиданный результат %+v", limited)
		}

		cutoff := now.Add(-24 * time.Hour)
		candidates, err := repo.Query(ctx, model.EntryQuery{OnlyLive: true, DownloadedBefore: &cutoff})
		if err != nil {
			t.Fatal(err)
		}
		if len(candidates) != 1 || candidates[0].JobID != "old-downloaded" {
			t.Errorf("кандидаты очистки: хотели [old-downloaded], получили %+v", candidates)
		}

		live, _ := repo.Query(ctx, model.EntryQuery{OnlyLive: true})
		if len(live) != 4 {
			t.Errorf("живых записей: хотели 4, получили %d", len(live))
		}
	})

	t.Run("Stats", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		empty, err := repo.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() на пустом хранилище: %v", err)
		}
		if *empty != (model.EntryStats{}) {
			t.Errorf("пустая статистика: %+v", empty)
		}

		now := time.Now().UTC()
		entries := []model.FileEntry{
			{JobID: "a", FilePath: "a", FileSize: 100, UploadedAt: now},
			{JobID: "b", FilePath: "b", FileSize: 50, UploadedAt: now, DownloadedAt: &now},
			{JobID: "c", FilePath: "c", FileSize: 1000, UploadedAt: now, DownloadedAt: &now, Deleted: true},
		}
		for i := range entries {
			if err := repo.Upsert(ctx, &entries[i]); err != nil {
				t.Fatal(err)
			}
		}

		s, err := repo.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := model.EntryStats{Total: 3, Active: 2, Deleted: 1, Downloaded: 2, TotalSize: 150}
		if *s != want {
			t.Errorf("Stats: хотели %+v, получили %+v", want, *s)
		}
	})
}

// RunSettingsRepository проверяет контракт SettingsRepository.
func RunSettingsRepository(t *testing.T, newRepo func(t *testing.T) repository.SettingsRepository) {
	t.Helper()

	t.Run("SetGet", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		if _, err := repo.Get(ctx, model.SettingCleanupEnabled); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("Get(отсутствующий): ожидалась ErrNotFound, получено %v", err)
		}

		if err := repo.Set(ctx, model.SettingCleanupEnabled, "true"); err != nil {
			t.Fatalf("Set() ошибка: %v", err)
		}
		s, err := repo.Get(ctx, model.SettingCleanupEnabled)
		if err != nil {
			t.Fatalf("Get() ошибка: %v", err)
		}
		if s.Value != "true" {
			t.Errorf("Value: хотели true, получили %q", s.Value)
		}
		if s.UpdatedAt.IsZero() {
			t.Error("UpdatedAt не установлен")
		}

		if err := repo.Set(ctx, model.SettingCleanupEnabled, "false"); err != nil {
			t.Fatal(err)
		}
		s, _ = repo.Get(ctx, model.SettingCleanupEnabled)
		if s.Value != "false" {
			t.Errorf("после обновления: хотели false, получили %q", s.Value)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_ = repo.Set(ctx, model.SettingCleanupMaxAgeHours, "48")
		_ = repo.Set(ctx, model.SettingCleanupEnabled, "true")

		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() ошибка: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("количество: хотели 2, получили %d", len(list))
		}
		if list[0].Key != model.SettingCleanupEnabled || list[1].Key != model.SettingCleanupMaxAgeHours {
			t.Errorf("неверный порядок: %s, %s", list[0].Key, list[1].Key)
		}
	})
}
