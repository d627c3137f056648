package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/storage/index"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestSettings_Defaults(t *testing.T) {
	svc := NewSettingsService(index.NewSettings(), testLogger())

	cs, err := svc.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cs.Enabled {
		t.Error("по умолчанию очистка выключена")
	}
	if cs.MaxAgeHours != model.DefaultCleanupMaxAgeHours {
		t.Errorf("MaxAgeHours: %d", cs.MaxAgeHours)
	}
	if cs.LastRun != nil {
		t.Errorf("LastRun: %v", cs.LastRun)
	}
}

func TestSettings_Update(t *testing.T) {
	repo := index.NewSettings()
	svc := NewSettingsService(repo, testLogger())
	ctx := context.Background()

	cs, err := svc.Update(ctx, CleanupSettingsUpdate{Enabled: boolPtr(true), MaxAgeHours: intPtr(48)})
	if err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	if !cs.Enabled || cs.MaxAgeHours != 48 {
		t.Errorf("после Update: %+v", cs)
	}

	raw, _ := repo.Get(ctx, model.SettingCleanupEnabled)
	if raw.Value != "true" {
		t.Errorf("сырое значение cleanup_enabled: %q", raw.Value)
	}

	// Частичное обновление
	cs, err = svc.Update(ctx, CleanupSettingsUpdate{Enabled: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	if cs.Enabled || cs.MaxAgeHours != 48 {
		t.Errorf("после частичного Update: %+v", cs)
	}
}

func TestSettings_UpdateValidation(t *testing.T) {
	repo := index.NewSettings()
	svc := NewSettingsService(repo, testLogger())
	ctx := context.Background()

	for _, hours := range []int{0, -1, MaxCleanupAgeHours + 1} {
		_, err := svc.Update(ctx, CleanupSettingsUpdate{Enabled: boolPtr(true), MaxAgeHours: intPtr(hours)})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("MaxAgeHours=%d: ожидалась ErrValidation, получено %v", hours, err)
		}
	}

	// При ошибке ничего не записано
	list, _ := repo.List(ctx)
	if len(list) != 0 {
		t.Errorf("при ошибке валидации настройки не должны меняться: %+v", list)
	}
}

func TestSettings_Set(t *testing.T) {
	svc := NewSettingsService(index.NewSettings(), testLogger())
	ctx := context.Background()

	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{model.SettingCleanupEnabled, "true", false},
		{model.SettingCleanupEnabled, "false", false},
		{model.SettingCleanupEnabled, "yes", true},
		{model.SettingCleanupMaxAgeHours, "72", false},
		{model.SettingCleanupMaxAgeHours, "abc", true},
		{model.SettingCleanupMaxAgeHours, "0", true},
		{model.SettingCleanupLastRun, "2026-01-01T00:00:00Z", true},
		{"unknown", "x", true},
	}
	for _, tt := range tests {
		err := svc.Set(ctx, tt.key, tt.value)
		if tt.wantErr && !errors.Is(err, ErrValidation) {
			t.Errorf("Set(%s=%s): ожидалась ErrValidation, получено %v", tt.key, tt.value, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("Set(%s=%s): неожиданная ошибка %v", tt.key, tt.value, err)
		}
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("сохранено настроек: %d", len(list))
	}
}

func TestSettings_MarkLastRun(t *testing.T) {
	svc := NewSettingsService(index.NewSettings(), testLogger())
	ctx := context.Background()

	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	if err := svc.MarkLastRun(ctx, at); err != nil {
		t.Fatal(err)
	}
	cs, _ := svc.Get(ctx)
	if cs.LastRun == nil || !cs.LastRun.Equal(at) {
		t.Errorf("LastRun: %v, ожидалось %v", cs.LastRun, at)
	}
}
