// Пакет config — загрузка и валидация конфигурации simple-storage
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранилища содержимого (SS_BLOB_BACKEND).
const (
	BlobBackendFS = "fs"
	BlobBackendS3 = "s3"
)

// Бэкенды хранилища записей и настроек (SS_ENTRY_BACKEND).
const (
	EntryBackendMemory   = "memory"
	EntryBackendSQLite   = "sqlite"
	EntryBackendPostgres = "postgres"
)

// Режимы аутентификации (SS_AUTH_MODE).
const (
	AuthModeAPIKey = "apikey"
	AuthModeJWT    = "jwt"
)

// Config содержит все параметры конфигурации simple-storage.
type Config struct {
	// --- HTTP ---

	// Порт HTTP-сервера
	Port int
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// --- Аутентификация ---

	// Режим аутентификации: apikey или jwt
	AuthMode string
	// Статический API-ключ клиентов (обязательный в режиме apikey)
	APIKey string
	// URL JWKS endpoint (обязательный в режиме jwt)
	JWKSUrl string
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	JWKSCACert string
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Хранилище содержимого ---

	// Бэкенд содержимого: fs или s3
	BlobBackend string
	// Директория хранения файлов (бэкенд fs)
	DataDir string
	// Параметры S3-совместимого хранилища
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
	S3Prefix          string

	// --- Хранилище записей и настроек ---

	// Бэкенд записей: memory, sqlite или postgres
	EntryBackend string
	// Путь к файлу SQLite (бэкенд sqlite)
	SQLitePath string
	// Параметры PostgreSQL (бэкенд postgres)
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Жизненный цикл файлов ---

	// Удалять файл после успешного скачивания
	AutoDelete bool
	// Задержка удаления после завершения скачивания
	DeleteGracePeriod time.Duration
	// Количество воркеров отложенного удаления
	DeleteWorkers int
	// Разрешать повторную загрузку по job_id удалённого файла
	AllowResurrect bool
	// Максимальный размер файла в байтах (0 — без ограничения)
	MaxFileSize int64
	// Интервал периодической очистки (0 — только по запросу)
	CleanupInterval time.Duration
	// Размер страницы /list по умолчанию
	ListLimit int

	// --- Ограничение частоты запросов ---

	// Допустимое количество запросов в минуту с одного адреса (0 — без ограничения)
	RateLimit int

	// --- Наблюдаемость ---

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// SS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("SS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("SS_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SS_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("SS_HTTP_WRITE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SS_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("SS_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SS_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// SS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("SS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Аутентификация ---

	cfg.AuthMode = getEnvDefault("SS_AUTH_MODE", AuthModeAPIKey)
	switch cfg.AuthMode {
	case AuthModeAPIKey:
		cfg.APIKey, err = getEnvRequired("SS_API_KEY")
		if err != nil {
			return nil, err
		}
	case AuthModeJWT:
		cfg.JWKSUrl, err = getEnvRequired("SS_JWKS_URL")
		if err != nil {
			return nil, err
		}
		cfg.APIKey = getEnvDefault("SS_API_KEY", "")
	default:
		return nil, fmt.Errorf("SS_AUTH_MODE: недопустимое значение %q, допустимые: apikey, jwt", cfg.AuthMode)
	}
	cfg.JWKSCACert = getEnvDefault("SS_JWKS_CA_CERT", "")
	cfg.JWKSRefreshInterval, err = getEnvDuration("SS_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SS_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("SS_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SS_JWT_LEEWAY: %w", err)
	}

	// --- Хранилище содержимого ---

	cfg.BlobBackend = getEnvDefault("SS_BLOB_BACKEND", BlobBackendFS)
	switch cfg.BlobBackend {
	case BlobBackendFS:
		cfg.DataDir = getEnvDefault("SS_DATA_DIR", "./storage")
	case BlobBackendS3:
		cfg.S3Bucket, err = getEnvRequired("SS_S3_BUCKET")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("SS_BLOB_BACKEND: недопустимое значение %q, допустимые: fs, s3", cfg.BlobBackend)
	}
	cfg.S3Region = getEnvDefault("SS_S3_REGION", "us-east-1")
	cfg.S3Endpoint = getEnvDefault("SS_S3_ENDPOINT", "")
	cfg.S3AccessKeyID = getEnvDefault("SS_S3_ACCESS_KEY_ID", "")
	cfg.S3SecretAccessKey = getEnvDefault("SS_S3_SECRET_ACCESS_KEY", "")
	cfg.S3Prefix = getEnvDefault("SS_S3_PREFIX", "")
	cfg.S3UsePathStyle, err = getEnvBool("SS_S3_USE_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("SS_S3_USE_PATH_STYLE: %w", err)
	}

	// --- Хранилище записей ---

	cfg.EntryBackend = getEnvDefault("SS_ENTRY_BACKEND", EntryBackendSQLite)
	switch cfg.EntryBackend {
	case EntryBackendMemory:
	case EntryBackendSQLite:
		cfg.SQLitePath = getEnvDefault("SS_SQLITE_PATH", "./storage/simple-storage.db")
	case EntryBackendPostgres:
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("SS_ENTRY_BACKEND: недопустимое значение %q, допустимые: memory, sqlite, postgres", cfg.EntryBackend)
	}

	// --- Жизненный цикл ---

	// SS_AUTO_DELETE — удаление после скачивания (по умолчанию true)
	cfg.AutoDelete, err = getEnvBool("SS_AUTO_DELETE", true)
	if err != nil {
		return nil, fmt.Errorf("SS_AUTO_DELETE: %w", err)
	}

	// SS_DELETE_GRACE_PERIOD — задержка удаления после скачивания (по умолчанию 2s)
	cfg.DeleteGracePeriod, err = getEnvDuration("SS_DELETE_GRACE_PERIOD", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SS_DELETE_GRACE_PERIOD: %w", err)
	}
	if cfg.DeleteGracePeriod < 0 {
		return nil, fmt.Errorf("SS_DELETE_GRACE_PERIOD: значение не может быть отрицательным")
	}

	cfg.DeleteWorkers, err = getEnvInt("SS_DELETE_WORKERS", 2)
	if err != nil {
		return nil, fmt.Errorf("SS_DELETE_WORKERS: %w", err)
	}
	if cfg.DeleteWorkers < 1 {
		return nil, fmt.Errorf("SS_DELETE_WORKERS: значение должно быть положительным")
	}

	cfg.AllowResurrect, err = getEnvBool("SS_ALLOW_RESURRECT", true)
	if err != nil {
		return nil, fmt.Errorf("SS_ALLOW_RESURRECT: %w", err)
	}

	cfg.MaxFileSize, err = getEnvInt64("SS_MAX_FILE_SIZE", 0)
	if err != nil {
		return nil, fmt.Errorf("SS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize < 0 {
		return nil, fmt.Errorf("SS_MAX_FILE_SIZE: значение не может быть отрицательным")
	}

	// SS_CLEANUP_INTERVAL — периодическая очистка (по умолчанию выключена)
	cfg.CleanupInterval, err = getEnvDuration("SS_CLEANUP_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("SS_CLEANUP_INTERVAL: %w", err)
	}
	if cfg.CleanupInterval < 0 {
		return nil, fmt.Errorf("SS_CLEANUP_INTERVAL: значение не может быть отрицательным")
	}

	cfg.ListLimit, err = getEnvInt("SS_LIST_LIMIT", 100)
	if err != nil {
		return nil, fmt.Errorf("SS_LIST_LIMIT: %w", err)
	}
	if cfg.ListLimit < 1 || cfg.ListLimit > MaxListLimit {
		return nil, fmt.Errorf("SS_LIST_LIMIT: значение %d вне допустимого диапазона 1-%d", cfg.ListLimit, MaxListLimit)
	}

	// SS_RATE_LIMIT — запросов в минуту с одного адреса (по умолчанию 60)
	cfg.RateLimit, err = getEnvInt("SS_RATE_LIMIT", 60)
	if err != nil {
		return nil, fmt.Errorf("SS_RATE_LIMIT: %w", err)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("SS_RATE_LIMIT: значение не может быть отрицательным")
	}

	// --- Наблюдаемость ---

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SS_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("SS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("SS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("SS_DEPHEALTH_GROUP", "simple-storage")

	return cfg, nil
}

// MaxListLimit — верхняя граница размера страницы /list.
const MaxListLimit = 1000

// loadDatabase читает параметры подключения к PostgreSQL.
func loadDatabase(cfg *Config) error {
	var err error

	cfg.DBHost, err = getEnvRequired("SS_DB_HOST")
	if err != nil {
		return err
	}

	cfg.DBPort, err = getEnvInt("SS_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("SS_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("SS_DB_NAME")
	if err != nil {
		return err
	}

	cfg.DBUser, err = getEnvRequired("SS_DB_USER")
	if err != nil {
		return err
	}

	cfg.DBPassword, err = getEnvRequired("SS_DB_PASSWORD")
	if err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("SS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("SS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для меток метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 2s, 30m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
