// Пакет database — PostgreSQL-бэкенд хранилища записей: пул pgx,
// схема через golang-migrate, проверка для /health/ready.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/simple-storage/internal/config"
)

const (
	// applicationName видно в pg_stat_activity.
	applicationName = "simple-storage"
	// pingTimeout ограничивает первичную проверку соединения.
	pingTimeout = 10 * time.Second
	// readyTimeout ограничивает проверку готовности.
	readyTimeout = 3 * time.Second
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect открывает пул и убеждается, что сервер отвечает.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("некорректные параметры подключения к PostgreSQL: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул PostgreSQL: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL %s не отвечает: %w", cfg.DatabaseURL(), err)
	}

	logger.Info("PostgreSQL подключён",
		slog.String("url", cfg.DatabaseURL()),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}

// migrateURL — адрес базы для golang-migrate (схема pgx5).
func migrateURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     net.JoinHostPort(cfg.DBHost, strconv.Itoa(cfg.DBPort)),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// Migrate доводит схему до последней версии из встроенных миграций.
// Схема в состоянии dirty считается ошибкой: её нужно чинить вручную.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("встроенные миграции недоступны: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg))
	if err != nil {
		return fmt.Errorf("не удалось подготовить миграции: %w", err)
	}
	defer m.Close()

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("миграция схемы не выполнена: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("не удалось прочитать версию схемы: %w", err)
	}
	if dirty {
		return fmt.Errorf("схема в состоянии dirty (версия %d)", version)
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		logger.Debug("Схема актуальна", slog.Uint64("version", uint64(version)))
	} else {
		logger.Info("Схема обновлена", slog.Uint64("version", uint64(version)))
	}
	return nil
}

// ReadinessChecker сообщает готовность PostgreSQL.
type ReadinessChecker struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewReadinessChecker создаёт проверку поверх открытого пула.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool, timeout: readyTimeout}
}

func (c *ReadinessChecker) Name() string {
	return "postgresql"
}

// CheckReady пингует базу; "ok" или "fail" с текстом ошибки.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	stat := c.pool.Stat()
	return "ok", fmt.Sprintf("соединений: %d из %d", stat.TotalConns(), stat.MaxConns())
}
