package model

import "time"

// Ключи настроек, влияющих на очистку.
const (
	// SettingCleanupEnabled — "true" включает очистку, любое другое значение выключает
	SettingCleanupEnabled = "cleanup_enabled"
	// SettingCleanupMaxAgeHours — срок хранения скачанных файлов в часах
	SettingCleanupMaxAgeHours = "cleanup_max_age_hours"
	// SettingCleanupLastRun — время последнего прохода очистки (RFC 3339), пишется только очисткой
	SettingCleanupLastRun = "cleanup_last_run"
)

// DefaultCleanupMaxAgeHours — срок хранения при отсутствии или некорректном значении настройки.
const DefaultCleanupMaxAgeHours = 24

// Setting — запись изменяемой настройки.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CleanupSettings — типизированный снимок настроек очистки.
type CleanupSettings struct {
	Enabled     bool       `json:"cleanup_enabled"`
	MaxAgeHours int        `json:"cleanup_max_age_hours"`
	LastRun     *time.Time `json:"cleanup_last_run"`
}

// Статусы результата очистки.
const (
	SweepCompleted = "completed"
	SweepSkipped   = "skipped"
)

// SweepResult — результат одного прохода очистки.
type SweepResult struct {
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	DeletedCount int       `json:"deleted_count"`
	FailedCount  int       `json:"failed_count"`
	MaxAgeHours  int       `json:"max_age_hours,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
