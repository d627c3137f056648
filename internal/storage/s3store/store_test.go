package s3store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bigkaa/simple-storage/internal/storage/blob"
)

// fakeS3 — минимальный S3-совместимый сервер (path-style) для тестов.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string][]byte)}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/" + f.bucket + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "bucket not found", http.StatusNotFound)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		f.objects[key] = data
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeNoSuchKey(w)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeNoSuchKey(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
}

func newTestStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()

	fake := newFakeS3("jobs")
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := New(context.Background(), Config{
		Bucket:          "jobs",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
		Prefix:          "files/",
	})
	if err != nil {
		t.Fatalf("ошибка создания S3 store: %v", err)
	}
	return store, fake
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("ожидалась ошибка при пустом имени бакета")
	}
}

func TestLocate(t *testing.T) {
	s := &Store{prefix: "files/"}
	want := "files/" + blob.ObjectName("задание 1#a") + ".zip"
	if got := s.Locate("задание 1#a"); got != want {
		t.Errorf("Locate = %q, ожидается %q", got, want)
	}
}

func TestPutOpenDelete(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "job-1", strings.NewReader("архив задания"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len("архив задания")) {
		t.Errorf("Size = %d", info.Size)
	}
	if info.Locator != store.Locate("job-1") {
		t.Errorf("Locator = %q", info.Locator)
	}
	if _, ok := fake.objects[store.Locate("job-1")]; !ok {
		t.Fatal("объект не сохранён в бакете")
	}

	exists, err := store.Exists(ctx, "job-1")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v; ожидается true", exists, err)
	}

	rc, err := store.Open(ctx, "job-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "архив задания" {
		t.Errorf("содержимое = %q", data)
	}

	if err := store.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "job-1"); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("повторный Delete: ожидалась ErrNotFound, получено %v", err)
	}
}

func TestOpen_NotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Open(context.Background(), "missing")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestExists_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	exists, err := store.Exists(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("Exists = true для отсутствующего объекта")
	}
}

func TestWrapError_Passthrough(t *testing.T) {
	s := &Store{}
	cause := errors.New("сеть недоступна")

	err := s.wrapError("Put", "k", cause)
	if errors.Is(err, blob.ErrNotFound) {
		t.Error("произвольная ошибка не должна становиться ErrNotFound")
	}
	if !errors.Is(err, cause) {
		t.Error("исходная ошибка должна сохраняться в цепочке")
	}
	if s.wrapError("Put", "k", nil) != nil {
		t.Error("nil должен оставаться nil")
	}
}
