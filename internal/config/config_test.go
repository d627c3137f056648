package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"SS_API_KEY": "test-key",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.AuthMode != AuthModeAPIKey {
		t.Errorf("AuthMode = %q, ожидается apikey", cfg.AuthMode)
	}
	if cfg.BlobBackend != BlobBackendFS {
		t.Errorf("BlobBackend = %q, ожидается fs", cfg.BlobBackend)
	}
	if cfg.DataDir != "./storage" {
		t.Errorf("DataDir = %q, ожидается ./storage", cfg.DataDir)
	}
	if cfg.EntryBackend != EntryBackendSQLite {
		t.Errorf("EntryBackend = %q, ожидается sqlite", cfg.EntryBackend)
	}
	if !cfg.AutoDelete {
		t.Error("AutoDelete = false, ожидается true")
	}
	if cfg.DeleteGracePeriod != 2*time.Second {
		t.Errorf("DeleteGracePeriod = %v, ожидается 2s", cfg.DeleteGracePeriod)
	}
	if !cfg.AllowResurrect {
		t.Error("AllowResurrect = false, ожидается true")
	}
	if cfg.CleanupInterval != 0 {
		t.Errorf("CleanupInterval = %v, ожидается 0", cfg.CleanupInterval)
	}
	if cfg.ListLimit != 100 {
		t.Errorf("ListLimit = %d, ожидается 100", cfg.ListLimit)
	}
	if cfg.RateLimit != 60 {
		t.Errorf("RateLimit = %d, ожидается 60", cfg.RateLimit)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("SS_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при отсутствии SS_API_KEY")
	}
}

func TestLoad_JWTModeRequiresJWKS(t *testing.T) {
	setEnvs(t, map[string]string{
		"SS_AUTH_MODE": "jwt",
	})

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при отсутствии SS_JWKS_URL")
	}

	t.Setenv("SS_JWKS_URL", "https://idp.example.com/jwks")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.JWKSUrl != "https://idp.example.com/jwks" {
		t.Errorf("JWKSUrl = %q", cfg.JWKSUrl)
	}
}

func TestLoad_PostgresBackend(t *testing.T) {
	envs := minimalEnvs()
	envs["SS_ENTRY_BACKEND"] = "postgres"
	envs["SS_DB_HOST"] = "db.local"
	envs["SS_DB_NAME"] = "storage"
	envs["SS_DB_USER"] = "storage"
	envs["SS_DB_PASSWORD"] = "secret"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	want := "host=db.local port=5432 dbname=storage user=storage password=secret sslmode=disable"
	if cfg.DatabaseDSN() != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", cfg.DatabaseDSN(), want)
	}
	if cfg.DatabaseURL() != "postgres://db.local:5432/storage" {
		t.Errorf("DatabaseURL() = %q", cfg.DatabaseURL())
	}
}

func TestLoad_PostgresMissingHost(t *testing.T) {
	envs := minimalEnvs()
	envs["SS_ENTRY_BACKEND"] = "postgres"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при отсутствии SS_DB_HOST")
	}
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	envs := minimalEnvs()
	envs["SS_BLOB_BACKEND"] = "s3"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при отсутствии SS_S3_BUCKET")
	}

	t.Setenv("SS_S3_BUCKET", "jobs")
	t.Setenv("SS_S3_USE_PATH_STYLE", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if !cfg.S3UsePathStyle {
		t.Error("S3UsePathStyle = false, ожидается true")
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %q, ожидается us-east-1", cfg.S3Region)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"некорректный порт", "SS_PORT", "abc"},
		{"порт вне диапазона", "SS_PORT", "70000"},
		{"некорректный auth mode", "SS_AUTH_MODE", "basic"},
		{"некорректный blob backend", "SS_BLOB_BACKEND", "ftp"},
		{"некорректный entry backend", "SS_ENTRY_BACKEND", "mysql"},
		{"некорректный auto delete", "SS_AUTO_DELETE", "maybe"},
		{"отрицательная задержка", "SS_DELETE_GRACE_PERIOD", "-1s"},
		{"нулевое число воркеров", "SS_DELETE_WORKERS", "0"},
		{"отрицательный размер", "SS_MAX_FILE_SIZE", "-5"},
		{"некорректный интервал", "SS_CLEANUP_INTERVAL", "soon"},
		{"лимит списка вне диапазона", "SS_LIST_LIMIT", "5000"},
		{"отрицательный rate limit", "SS_RATE_LIMIT", "-1"},
		{"некорректный log level", "SS_LOG_LEVEL", "trace"},
		{"некорректный log format", "SS_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, minimalEnvs())
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if err != nil {
			t.Errorf("parseLogLevel(%q) ошибка: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, ожидается %v", tt.in, got, tt.want)
		}
	}
}
