// Точка входа simple-storage — временное хранилище файлов заданий.
// Загружает конфигурацию, открывает хранилища записей и содержимого,
// создаёт сервисный слой, запускает планировщик отложенного удаления,
// периодическую очистку, topologymetrics и HTTP-сервер с graceful shutdown.
//
// Подкоманда "cleanup" выполняет один проход очистки и завершается.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/simple-storage/internal/api/handlers"
	"github.com/bigkaa/simple-storage/internal/api/middleware"
	"github.com/bigkaa/simple-storage/internal/api/openapi"
	"github.com/bigkaa/simple-storage/internal/config"
	"github.com/bigkaa/simple-storage/internal/database"
	"github.com/bigkaa/simple-storage/internal/domain/model"
	"github.com/bigkaa/simple-storage/internal/repository"
	"github.com/bigkaa/simple-storage/internal/repository/sqlite"
	"github.com/bigkaa/simple-storage/internal/server"
	"github.com/bigkaa/simple-storage/internal/service"
	"github.com/bigkaa/simple-storage/internal/storage/blob"
	"github.com/bigkaa/simple-storage/internal/storage/filestore"
	"github.com/bigkaa/simple-storage/internal/storage/index"
	"github.com/bigkaa/simple-storage/internal/storage/s3store"
)

// jwksClientTimeout — таймаут HTTP-клиента JWKS.
const jwksClientTimeout = 10 * time.Second

// stores — открытые хранилища записей и настроек.
type stores struct {
	entries  repository.EntryRepository
	settings repository.SettingsRepository
	checkers []handlers.ReadinessChecker
	// pgDB — адаптер пула для topologymetrics (nil, если не postgres)
	pgDB    *sql.DB
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		err = serve(cfg, logger)
	case "cleanup":
		err = cleanupOnce(cfg, logger)
	default:
		err = fmt.Errorf("неизвестная команда %q, допустимые: serve, cleanup", cmd)
	}
	if err != nil {
		logger.Error("Завершение с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// serve запускает HTTP-сервер и фоновые задачи.
func serve(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("simple-storage запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("entry_backend", cfg.EntryBackend),
		slog.String("blob_backend", cfg.BlobBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Хранилище записей и настроек
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	// 4. Хранилище содержимого
	blobs, usage, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	// 5. Сервисы
	scheduler := service.NewDeleteScheduler(cfg.DeleteWorkers, logger)
	lifecycleSvc := service.NewLifecycleService(st.entries, blobs, scheduler, service.LifecycleOptions{
		AutoDelete:     cfg.AutoDelete,
		GracePeriod:    cfg.DeleteGracePeriod,
		AllowResurrect: cfg.AllowResurrect,
		MaxFileSize:    cfg.MaxFileSize,
	}, logger)
	settingsSvc := service.NewSettingsService(st.settings, logger)
	cleanupSvc := service.NewCleanupService(settingsSvc, st.entries, lifecycleSvc, logger)
	statsSvc := service.NewStatisticsService(lifecycleSvc, settingsSvc, usage, logger)

	// 6. Фоновые задачи: отложенное удаление, периодическая очистка
	scheduler.Start(ctx, lifecycleSvc)
	defer scheduler.Stop()

	if cfg.CleanupInterval > 0 {
		ticker := service.NewCleanupTicker(cleanupSvc, cfg.CleanupInterval, logger)
		ticker.Start(ctx)
		defer ticker.Stop()
		logger.Info("Периодическая очистка включена",
			slog.String("interval", cfg.CleanupInterval.String()),
		)
	}

	// 6.1 topologymetrics — мониторинг зависимостей (PostgreSQL, S3)
	deps := service.DephealthDeps{DB: st.pgDB}
	if st.pgDB != nil {
		deps.PGConnURL = cfg.DatabaseURL()
	}
	if cfg.BlobBackend == config.BlobBackendS3 {
		deps.S3Endpoint = cfg.S3Endpoint
	}
	dephealthSvc, err := service.NewDephealthService("simple-storage", cfg.DephealthGroup, deps, cfg.DephealthCheckInterval, logger)
	switch {
	case errors.Is(err, service.ErrNoDependencies):
		logger.Info("topologymetrics: внешних зависимостей нет, мониторинг не запускается")
	case err != nil:
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	default:
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 7. Аутентификация
	auth, err := newAuthenticator(cfg, logger)
	if err != nil {
		return err
	}

	// 8. OpenAPI контракт
	doc, err := openapi.Load(ctx)
	if err != nil {
		return err
	}
	openapiHandler, err := openapi.Handler(doc)
	if err != nil {
		return err
	}

	// 9. Роутер и middleware
	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, middleware.NewRateLimiter(cfg.RateLimit, logger).Middleware())
	}

	dataDir := ""
	if cfg.BlobBackend == config.BlobBackendFS {
		dataDir = cfg.DataDir
	}
	router := server.NewRouter(server.Handlers{
		Files:   handlers.NewFilesHandler(lifecycleSvc, cfg.ListLimit, cfg.MaxFileSize, logger),
		Admin:   handlers.NewAdminHandler(settingsSvc, statsSvc, cleanupSvc, logger),
		Health:  handlers.NewHealthHandler(dataDir, st.checkers...),
		OpenAPI: openapiHandler,
	}, auth.Middleware(), middlewares...)

	// 10. HTTP-сервер (блокирует до сигнала завершения)
	srv := server.New(cfg, logger, router)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("simple-storage остановлен")
	return nil
}

// cleanupOnce выполняет один проход очистки и печатает итог.
func cleanupOnce(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	blobs, _, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	lifecycleSvc := service.NewLifecycleService(st.entries, blobs, nil, service.LifecycleOptions{
		AllowResurrect: cfg.AllowResurrect,
	}, logger)
	settingsSvc := service.NewSettingsService(st.settings, logger)
	cleanupSvc := service.NewCleanupService(settingsSvc, st.entries, lifecycleSvc, logger)

	res, err := cleanupSvc.Sweep(ctx)
	if err != nil {
		return err
	}

	if res.Status == model.SweepSkipped {
		fmt.Printf("Очистка пропущена: %s\n", res.Message)
		return nil
	}
	fmt.Printf("Очистка завершена: удалено %d, ошибок %d, срок хранения %d ч\n",
		res.DeletedCount, res.FailedCount, res.MaxAgeHours)
	return nil
}

// openStores открывает хранилище записей и настроек по SS_ENTRY_BACKEND.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.EntryBackend {
	case config.EntryBackendMemory:
		logger.Warn("Записи хранятся в памяти и теряются при перезапуске")
		st.entries = index.New()
		st.settings = index.NewSettings()

	case config.EntryBackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		st.entries = db.Entries()
		st.settings = db.Settings()
		st.checkers = append(st.checkers, db)
		logger.Info("SQLite открыта", slog.String("path", cfg.SQLitePath))

	case config.EntryBackendPostgres:
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return nil, fmt.Errorf("миграции БД: %w", err)
		}
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		st.closers = append(st.closers, pool.Close)

		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
		st.pgDB = stdlib.OpenDBFromPool(pool)
		st.closers = append(st.closers, func() { _ = st.pgDB.Close() })

		st.entries = repository.NewEntryRepository(pool)
		st.settings = repository.NewSettingsRepository(pool)
		st.checkers = append(st.checkers, database.NewReadinessChecker(pool))

	default:
		return nil, fmt.Errorf("неизвестный бэкенд записей %q", cfg.EntryBackend)
	}

	return st, nil
}

// openBlobStore открывает хранилище содержимого по SS_BLOB_BACKEND.
// UsageReporter возвращается только для локального диска.
func openBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, blob.UsageReporter, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendFS:
		fs, err := filestore.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil
	case config.BlobBackendS3:
		s3, err := s3store.New(ctx, s3store.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			Prefix:          cfg.S3Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный бэкенд содержимого %q", cfg.BlobBackend)
	}
}

// newAuthenticator создаёт middleware аутентификации по SS_AUTH_MODE.
func newAuthenticator(cfg *config.Config, logger *slog.Logger) (middleware.Authenticator, error) {
	if cfg.AuthMode != config.AuthModeJWT {
		return middleware.NewAPIKeyAuth(cfg.APIKey, logger), nil
	}

	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWKSUrl,
		CACertPath:      cfg.JWKSCACert,
		ClientTimeout:   jwksClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
		JWTLeeway:       cfg.JWTLeeway,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("создание JWT middleware: %w", err)
	}
	logger.Info("JWT middleware инициализирован", slog.String("jwks_url", cfg.JWKSUrl))
	return jwtAuth, nil
}
