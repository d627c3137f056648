// files.go — обработчики файловых операций: upload, download, delete, check, list.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/bigkaa/simple-storage/internal/api/errors"
	"github.com/bigkaa/simple-storage/internal/service"
)

// multipartMemory — объём multipart-формы в памяти, остальное во временных файлах.
const multipartMemory = 32 << 20

// multipartOverhead — допуск на заголовки и поля формы сверх лимита файла.
const multipartOverhead = 1 << 20

// FilesHandler реализует файловые endpoints.
type FilesHandler struct {
	lifecycle   *service.LifecycleService
	listLimit   int
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых операций.
// listLimit — размер /list по умолчанию, maxFileSize — лимит тела (0 — без ограничения).
func NewFilesHandler(
	lifecycle *service.LifecycleService,
	listLimit int,
	maxFileSize int64,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		lifecycle:   lifecycle,
		listLimit:   listLimit,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// uploadResponse — ответ POST /upload.
type uploadResponse struct {
	Status      string `json:"status"`
	JobID       string `json:"job_id"`
	FileSize    int64  `json:"file_size"`
	DownloadURL string `json:"download_url"`
}

// Upload обрабатывает POST /upload.
// multipart/form-data: поле file и поле job_id;
// иначе тело запроса целиком, job_id из X-Job-Id или параметра job_id.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	}

	var (
		jobID string
		body  io.Reader
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				apierrors.FileTooLarge(w, "Файл превышает допустимый размер")
				return
			}
			apierrors.ValidationError(w, "Ошибка парсинга multipart: "+err.Error())
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		jobID = r.FormValue("job_id")
		if jobID == "" {
			jobID = r.Header.Get("X-Job-Id")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			apierrors.ValidationError(w, "No file data received")
			return
		}
		defer file.Close()
		body = file
	} else {
		jobID = r.Header.Get("X-Job-Id")
		if jobID == "" {
			jobID = r.URL.Query().Get("job_id")
		}
		body = r.Body
	}

	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		apierrors.ValidationError(w, "Missing job_id")
		return
	}

	res, err := h.lifecycle.Upload(r.Context(), jobID, body)
	if err != nil {
		if !errors.Is(err, service.ErrValidation) && !errors.Is(err, service.ErrConflict) {
			h.logger.Error("Ошибка загрузки файла",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		writeServiceError(w, err, false)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Status:      "uploaded",
		JobID:       res.JobID,
		FileSize:    res.Size,
		DownloadURL: res.DownloadURL,
	})
}

// Download обрабатывает GET /download/{job_id}.
// keep=true сохраняет файл после скачивания.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDParam(r)
	keep := strings.EqualFold(r.URL.Query().Get("keep"), "true")

	dl, err := h.lifecycle.Download(r.Context(), jobID, keep)
	if err != nil {
		if errors.Is(err, service.ErrInternal) {
			h.logger.Error("Ошибка открытия файла",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		writeServiceError(w, err, true)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": jobID + ".zip",
	}))
	w.Header().Set("Content-Length", strconv.FormatInt(dl.Entry.FileSize, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		h.logger.Warn("Передача файла прервана",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// deleteResponse — ответ DELETE /delete/{job_id}.
type deleteResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// Delete обрабатывает DELETE /delete/{job_id}.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	jobID := jobIDParam(r)

	if err := h.lifecycle.Delete(r.Context(), jobID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Job not found or already deleted")
			return
		}
		h.logger.Error("Ошибка удаления файла",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeServiceError(w, err, false)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Status: "deleted", JobID: jobID})
}

// Check обрабатывает GET /check/{job_id}.
func (h *FilesHandler) Check(w http.ResponseWriter, r *http.Request) {
	res := h.lifecycle.Check(r.Context(), jobIDParam(r))
	if !res.Exists {
		apierrors.NotFound(w, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "exists"})
}

// fileItem — элемент ответа /list. Локатор содержимого не раскрывается.
type fileItem struct {
	JobID        string  `json:"job_id"`
	FileSize     int64   `json:"file_size"`
	UploadedAt   string  `json:"uploaded_at"`
	DownloadedAt *string `json:"downloaded_at"`
	Deleted      bool    `json:"deleted"`
}

type listResponse struct {
	Files []fileItem `json:"files"`
	Count int        `json:"count"`
}

// List обрабатывает GET /list?limit=N.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := h.listLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierrors.ValidationError(w, "limit: ожидается целое число")
			return
		}
		limit = n
	}

	entries, err := h.lifecycle.List(r.Context(), limit)
	if err != nil {
		if !errors.Is(err, service.ErrValidation) {
			h.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
		}
		writeServiceError(w, err, false)
		return
	}

	items := make([]fileItem, 0, len(entries))
	for _, e := range entries {
		item := fileItem{
			JobID:      e.JobID,
			FileSize:   e.FileSize,
			UploadedAt: formatTime(e.UploadedAt),
			Deleted:    e.Deleted,
		}
		if e.DownloadedAt != nil {
			s := formatTime(*e.DownloadedAt)
			item.DownloadedAt = &s
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, listResponse{Files: items, Count: len(items)})
}
