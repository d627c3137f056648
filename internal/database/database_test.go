package database

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/simple-storage/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("storage_test"),
		postgres.WithUsername("storage"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("SS_API_KEY", "test")
	t.Setenv("SS_ENTRY_BACKEND", "postgres")
	t.Setenv("SS_DB_HOST", host)
	t.Setenv("SS_DB_PORT", port.Port())
	t.Setenv("SS_DB_NAME", "storage_test")
	t.Setenv("SS_DB_USER", "storage")
	t.Setenv("SS_DB_PASSWORD", "test-password")
	t.Setenv("SS_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

// TestConnectAndMigrate проверяет подключение, миграции и готовность.
func TestConnectAndMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() ошибка: %v", err)
	}
	// Повторное применение — ErrNoChange, не ошибка
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("повторный Migrate() ошибка: %v", err)
	}

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() ошибка: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"files", "settings"} {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
		).Scan(&exists)
		if err != nil {
			t.Fatalf("ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("таблица %s не создана", table)
		}
	}

	checker := NewReadinessChecker(pool)
	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() = %s (%s), ожидается ok", status, msg)
	}
}

// TestMigrateURL проверяет экранирование учётных данных в адресе миграций.
func TestMigrateURL(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "db.local",
		DBPort:     6432,
		DBName:     "storage",
		DBUser:     "svc@app",
		DBPassword: "p@ss:w/rd?#",
		DBSSLMode:  "require",
	}

	u, err := url.Parse(migrateURL(cfg))
	if err != nil {
		t.Fatalf("адрес не разбирается: %v", err)
	}
	if u.Scheme != "pgx5" || u.Host != "db.local:6432" || u.Path != "/storage" {
		t.Errorf("неожиданный адрес: %s", u.Redacted())
	}
	if u.User.Username() != "svc@app" {
		t.Errorf("пользователь: %q", u.User.Username())
	}
	if pw, _ := u.User.Password(); pw != "p@ss:w/rd?#" {
		t.Errorf("пароль искажён: %q", pw)
	}
	if u.Query().Get("sslmode") != "require" {
		t.Errorf("sslmode: %q", u.Query().Get("sslmode"))
	}
}

// TestMigrateURL_IPv6 проверяет адрес с IPv6-хостом.
func TestMigrateURL_IPv6(t *testing.T) {
	cfg := &config.Config{DBHost: "::1", DBPort: 5432, DBName: "db", DBUser: "u", DBPassword: "p", DBSSLMode: "disable"}

	u, err := url.Parse(migrateURL(cfg))
	if err != nil {
		t.Fatalf("адрес не разбирается: %v", err)
	}
	if u.Hostname() != "::1" || u.Port() != "5432" {
		t.Errorf("хост %q, порт %q", u.Hostname(), u.Port())
	}
}
