package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/simple-storage/internal/api/handlers"
	"github.com/bigkaa/simple-storage/internal/api/middleware"
	"github.com/bigkaa/simple-storage/internal/api/openapi"
	"github.com/bigkaa/simple-storage/internal/service"
	"github.com/bigkaa/simple-storage/internal/storage/filestore"
	"github.com/bigkaa/simple-storage/internal/storage/index"
)

const testAPIKey = "test-key"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestServer собирает роутер с автоудалением и короткой задержкой.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := testLogger()

	dataDir := t.TempDir()
	blobs, err := filestore.New(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	entries := index.New()
	settings := service.NewSettingsService(index.NewSettings(), logger)

	scheduler := service.NewDeleteScheduler(1, logger)
	lc := service.NewLifecycleService(entries, blobs, scheduler, service.LifecycleOptions{
		AutoDelete:     true,
		GracePeriod:    10 * time.Millisecond,
		AllowResurrect: true,
	}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx, lc)
	t.Cleanup(func() {
		scheduler.Stop()
		cancel()
	})

	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	oapi, err := openapi.Handler(doc)
	if err != nil {
		t.Fatal(err)
	}

	router := NewRouter(Handlers{
		Files:   handlers.NewFilesHandler(lc, 100, 0, logger),
		Admin:   handlers.NewAdminHandler(settings, service.NewStatisticsService(lc, settings, blobs, logger), service.NewCleanupService(settings, entries, lc, logger), logger),
		Health:  handlers.NewHealthHandler(dataDir),
		OpenAPI: oapi,
	},
		middleware.NewAPIKeyAuth(testAPIKey, logger).Middleware(),
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func authHeaders(extra map[string]string) map[string]string {
	h := map[string]string{"X-API-Key": testAPIKey}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func TestPublicEndpoints_NoAuth(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/health/ready", "/metrics", "/openapi.json"} {
		resp := doRequest(t, http.MethodGet, srv.URL+path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: ожидался 200 без аутентификации, получен %d", path, resp.StatusCode)
		}
	}
}

func TestProtectedEndpoints_RequireAuth(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/upload"},
		{http.MethodGet, "/download/x"},
		{http.MethodDelete, "/delete/x"},
		{http.MethodGet, "/check/x"},
		{http.MethodGet, "/list"},
		{http.MethodPost, "/cleanup"},
		{http.MethodGet, "/admin/settings"},
		{http.MethodGet, "/admin/statistics"},
	} {
		resp := doRequest(t, tc.method, srv.URL+tc.path, nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: ожидался 401, получен %d", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/health", nil, nil)
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("ответ без X-Request-Id")
	}
}

// Сквозной сценарий: загрузка, скачивание, автоудаление после закрытия потока.
func TestEndToEnd_AutoDelete(t *testing.T) {
	srv := newTestServer(t)
	content := bytes.Repeat([]byte("z"), 50)

	resp := doRequest(t, http.MethodPost, srv.URL+"/upload", content, authHeaders(map[string]string{"X-Job-Id": "j1"}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: ожидался 201, получен %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/download/j1", nil, authHeaders(nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download: ожидался 200, получен %d", resp.StatusCode)
	}
	got, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(got, content) {
		t.Fatalf("получено %d байт, ожидалось %d", len(got), len(content))
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp = doRequest(t, http.MethodGet, srv.URL+"/check/j1", nil, authHeaders(nil))
		if resp.StatusCode == http.StatusNotFound {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("файл не удалён после скачивания: check вернул %d", resp.StatusCode)
		}
		time.Sleep(20 * time.Millisecond)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/download/j1", nil, authHeaders(nil))
	if resp.StatusCode != http.StatusGone {
		t.Errorf("повторное скачивание: ожидался 410, получен %d", resp.StatusCode)
	}
}

func TestEndToEnd_Keep(t *testing.T) {
	srv := newTestServer(t)

	doRequest(t, http.MethodPost, srv.URL+"/upload", []byte("keep-me"), authHeaders(map[string]string{"X-Job-Id": "k1"}))

	resp := doRequest(t, http.MethodGet, srv.URL+"/download/k1?keep=true", nil, authHeaders(nil))
	_, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	time.Sleep(100 * time.Millisecond)

	resp = doRequest(t, http.MethodGet, srv.URL+"/check/k1", nil, authHeaders(nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("keep=true: файл должен остаться, check вернул %d", resp.StatusCode)
	}
}

func TestAuthWithExclusions(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := AuthWithExclusions(deny, "/health")(ok)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/health/ready", http.StatusOK},
		{"/list", http.StatusForbidden},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: ожидался %d, получен %d", tt.path, tt.want, rec.Code)
		}
	}
}
