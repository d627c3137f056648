// Пакет server — HTTP-сервер simple-storage с graceful shutdown.
// Без TLS: TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/simple-storage/internal/api/handlers"
	"github.com/bigkaa/simple-storage/internal/config"
)

// PublicPrefixes — пути, доступные без аутентификации.
var PublicPrefixes = []string{"/health", "/metrics", "/openapi.json"}

// Handlers — набор обработчиков, из которых собирается роутер.
type Handlers struct {
	Files   *handlers.FilesHandler
	Admin   *handlers.AdminHandler
	Health  *handlers.HealthHandler
	OpenAPI http.HandlerFunc
}

// Server — HTTP-сервер simple-storage.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// NewRouter собирает chi-роутер.
// middlewares применяются в порядке переданного среза,
// auth (может быть nil) — ко всем путям, кроме PublicPrefixes.
func NewRouter(h Handlers, auth func(http.Handler) http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	router := chi.NewRouter()

	for _, mw := range middlewares {
		router.Use(mw)
	}
	if auth != nil {
		router.Use(AuthWithExclusions(auth, PublicPrefixes...))
	}

	router.Get("/health", h.Health.Health)
	router.Get("/health/ready", h.Health.Ready)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if h.OpenAPI != nil {
		router.Get("/openapi.json", h.OpenAPI)
	}

	router.Post("/upload", h.Files.Upload)
	router.Get("/download/{job_id}", h.Files.Download)
	router.Delete("/delete/{job_id}", h.Files.Delete)
	router.Get("/check/{job_id}", h.Files.Check)
	router.Get("/list", h.Files.List)

	router.Post("/cleanup", h.Admin.Cleanup)
	router.Route("/admin", func(r chi.Router) {
		r.Get("/settings", h.Admin.GetSettings)
		r.Put("/settings", h.Admin.UpdateSettings)
		r.Get("/settings/raw", h.Admin.ListSettings)
		r.Put("/settings/{key}", h.Admin.SetSetting)
		r.Get("/statistics", h.Admin.Statistics)
	})

	return router
}

// New создаёт HTTP-сервер поверх готового роутера.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// AuthWithExclusions оборачивает middleware, пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без middleware.
func AuthWithExclusions(mw func(http.Handler) http.Handler, excludePrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
