// admin.go — административные endpoints: настройки очистки, статистика,
// ручной запуск очистки.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/simple-storage/internal/api/errors"
	"github.com/bigkaa/simple-storage/internal/service"
)

// AdminHandler реализует административные endpoints.
type AdminHandler struct {
	settings *service.SettingsService
	stats    *service.StatisticsService
	cleanup  *service.CleanupService
	logger   *slog.Logger
}

// NewAdminHandler создаёт обработчик административных endpoints.
func NewAdminHandler(
	settings *service.SettingsService,
	stats *service.StatisticsService,
	cleanup *service.CleanupService,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		settings: settings,
		stats:    stats,
		cleanup:  cleanup,
		logger:   logger.With(slog.String("component", "admin_handler")),
	}
}

// Cleanup обрабатывает POST /cleanup — один проход очистки.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	res, err := h.cleanup.Sweep(r.Context())
	if err != nil {
		h.logger.Error("Ошибка очистки", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка очистки: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetSettings обрабатывает GET /admin/settings.
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	cs, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("Ошибка чтения настроек", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка чтения настроек")
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// settingsRequest — тело PUT /admin/settings. Отсутствующие поля не меняются.
type settingsRequest struct {
	Enabled     *bool `json:"cleanup_enabled"`
	MaxAgeHours *int  `json:"cleanup_max_age_hours"`
}

// UpdateSettings обрабатывает PUT /admin/settings.
// Типы полей проверяются при декодировании: "abc" вместо числа — 400.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	cs, err := h.settings.Update(r.Context(), service.CleanupSettingsUpdate{
		Enabled:     req.Enabled,
		MaxAgeHours: req.MaxAgeHours,
	})
	if err != nil {
		h.writeSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// ListSettings обрабатывает GET /admin/settings/raw — все сохранённые ключи.
func (h *AdminHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	list, err := h.settings.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка чтения настроек", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка чтения настроек")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": list})
}

type settingValueRequest struct {
	Value string `json:"value"`
}

// SetSetting обрабатывает PUT /admin/settings/{key}.
func (h *AdminHandler) SetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req settingValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
		h.writeSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

func (h *AdminHandler) writeSettingsError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrValidation) {
		apierrors.ValidationError(w, err.Error())
		return
	}
	h.logger.Error("Ошибка записи настроек", slog.String("error", err.Error()))
	apierrors.InternalError(w, "Ошибка записи настроек")
}

// Statistics обрабатывает GET /admin/statistics.
func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Collect(r.Context())
	if err != nil {
		h.logger.Error("Ошибка сбора статистики", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка сбора статистики")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
