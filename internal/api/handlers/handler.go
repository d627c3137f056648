// Пакет handlers — HTTP-обработчики simple-storage.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/simple-storage/internal/api/errors"
	"github.com/bigkaa/simple-storage/internal/service"
)

// writeJSON вспомогательная функция для записи JSON-ответа.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// jobIDParam извлекает job_id из пути. Если в пути есть экранированные
// символы (например %2F), chi сопоставляет по RawPath и параметр нужно раскодировать.
func jobIDParam(r *http.Request) string {
	raw := chi.URLParam(r, "job_id")
	if r.URL.RawPath == "" {
		return raw
	}
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// writeServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
// gone=true — отметка об удалении отдаётся как 410, иначе как 404.
func writeServiceError(w http.ResponseWriter, err error, gone bool) {
	switch {
	case errors.Is(err, service.ErrTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case gone && errors.Is(err, service.ErrGone):
		apierrors.Gone(w, "File already deleted")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Job not found")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
