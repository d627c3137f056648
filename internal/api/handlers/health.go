// health.go — обработчики health endpoints.
package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/simple-storage/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// serviceName — имя сервиса в ответах health.
const serviceName = "simple-storage-server"

// ReadinessChecker — проверка готовности зависимости (хранилище записей).
type ReadinessChecker interface {
	Name() string
	CheckReady() (status string, message string)
}

// HealthHandler реализует /health и /health/ready.
type HealthHandler struct {
	version string
	// dataDir — директория содержимого (пусто — проверка не выполняется)
	dataDir  string
	checkers []ReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(dataDir string, checkers ...ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version:  config.Version,
		dataDir:  dataDir,
		checkers: checkers,
	}
}

// Health обрабатывает GET /health. Не проверяет зависимости.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   serviceName,
		"version":   h.version,
		"timestamp": formatTime(time.Now()),
	})
}

// Ready обрабатывает GET /health/ready: директория данных и хранилище записей.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	checks := map[string]any{}

	fsCheck := h.checkFilesystem()
	checks["filesystem"] = fsCheck
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	for _, c := range h.checkers {
		status, message := c.CheckReady()
		checks[c.Name()] = map[string]any{
			"status":  status,
			"message": message,
		}
		if status != "ok" {
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"service":   serviceName,
		"version":   h.version,
		"timestamp": formatTime(time.Now()),
		"checks":    checks,
	})
}

// checkFilesystem проверяет доступность директории данных на запись.
func (h *HealthHandler) checkFilesystem() map[string]any {
	if h.dataDir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(h.dataDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория данных недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
