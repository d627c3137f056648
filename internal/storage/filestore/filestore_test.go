package filestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/simple-storage/internal/storage/blob"
)

// TestNew_CreatesDirectory проверяет создание директории данных.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if fs.DataDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.DataDir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestPutOpen проверяет запись и чтение файла задания.
func TestPutOpen(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	ctx := context.Background()

	content := []byte("PK\x03\x04 тестовый архив")
	info, err := fs.Put(ctx, "job-1", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if info.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), info.Size)
	}
	wantLocator := blob.ObjectName("job-1") + ".zip"
	if info.Locator != wantLocator {
		t.Errorf("локатор: ожидалось %s, получено %s", wantLocator, info.Locator)
	}
	if _, err := os.Stat(filepath.Join(fs.DataDir(), wantLocator)); err != nil {
		t.Errorf("файл не найден на диске: %v", err)
	}

	rc, err := fs.Open(ctx, "job-1")
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("содержимое не совпадает: %q", got)
	}
}

// TestPut_Overwrite проверяет безусловную перезапись.
func TestPut_Overwrite(t *testing.T) {
	fs, _ := New(t.TempDir())
	ctx := context.Background()

	if _, err := fs.Put(ctx, "job", strings.NewReader("old")); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Put(ctx, "job", strings.NewReader("new content")); err != nil {
		t.Fatal(err)
	}

	rc, err := fs.Open(ctx, "job")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "new content" {
		t.Errorf("ожидалось новое содержимое, получено %q", got)
	}
}

// failingReader возвращает ошибку после первых байт.
type failingReader struct {
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("обрыв соединения")
}

// TestPut_FailureKeepsPrevious проверяет, что ошибка записи не портит прежний файл
// и не оставляет временных файлов.
func TestPut_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	fs, _ := New(dir)
	ctx := context.Background()

	if _, err := fs.Put(ctx, "job", strings.NewReader("original")); err != nil {
		t.Fatal(err)
	}

	if _, err := fs.Put(ctx, "job", &failingReader{}); err == nil {
		t.Fatal("ожидалась ошибка записи")
	}

	rc, err := fs.Open(ctx, "job")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "original" {
		t.Errorf("прежнее содержимое испорчено: %q", got)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("остался временный файл %s", e.Name())
		}
	}
}

// TestOpen_NotFound проверяет ErrNotFound для отсутствующего файла.
func TestOpen_NotFound(t *testing.T) {
	fs, _ := New(t.TempDir())

	_, err := fs.Open(context.Background(), "missing")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("ожидалась blob.ErrNotFound, получено %v", err)
	}
}

// TestDelete проверяет удаление и ErrNotFound для повторного удаления.
func TestDelete(t *testing.T) {
	fs, _ := New(t.TempDir())
	ctx := context.Background()

	if _, err := fs.Put(ctx, "job", strings.NewReader("data")); err != nil {
		t.Fatal(err)
	}

	if err := fs.Delete(ctx, "job"); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	exists, err := fs.Exists(ctx, "job")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("файл должен быть удалён")
	}

	if err := fs.Delete(ctx, "job"); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("повторное удаление: ожидалась blob.ErrNotFound, получено %v", err)
	}
}

// TestInvalidKey проверяет отказ для небезопасных ключей.
func TestInvalidKey(t *testing.T) {
	fs, _ := New(t.TempDir())
	ctx := context.Background()

	if _, err := fs.Put(ctx, "", strings.NewReader("x")); !errors.Is(err, blob.ErrInvalidKey) {
		t.Errorf("Put: ожидалась ErrInvalidKey, получено %v", err)
	}
	if _, err := fs.Open(ctx, "a\x00b"); !errors.Is(err, blob.ErrInvalidKey) {
		t.Errorf("Open: ожидалась ErrInvalidKey, получено %v", err)
	}
}

// TestArbitraryKeys проверяет, что ключ не попадает в путь как есть:
// разделители путей, пробелы и не-ASCII символы остаются внутри dataDir.
func TestArbitraryKeys(t *testing.T) {
	dir := t.TempDir()
	fs, _ := New(dir)
	ctx := context.Background()

	keys := []string{"job 1", "order#42", "задание-1", "a:b", "../escape", "a/b", ".."}
	for _, key := range keys {
		if _, err := fs.Put(ctx, key, strings.NewReader(key)); err != nil {
			t.Fatalf("Put(%q): %v", key, err)
		}
		if filepath.Dir(fs.FullPath(key)) != dir {
			t.Errorf("FullPath(%q) = %s вне директории данных", key, fs.FullPath(key))
		}
	}

	for _, key := range keys {
		rc, err := fs.Open(ctx, key)
		if err != nil {
			t.Fatalf("Open(%q): %v", key, err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if string(got) != key {
			t.Errorf("Open(%q): получено %q", key, got)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(keys) {
		t.Errorf("ожидалось %d файлов, на диске %d", len(keys), len(entries))
	}

	for _, key := range keys {
		if err := fs.Delete(ctx, key); err != nil {
			t.Errorf("Delete(%q): %v", key, err)
		}
	}
}

// TestUsage проверяет получение ёмкости диска.
func TestUsage(t *testing.T) {
	fs, _ := New(t.TempDir())

	usage, err := fs.Usage()
	if err != nil {
		t.Fatalf("ошибка Usage: %v", err)
	}
	if usage.Total <= 0 {
		t.Errorf("Total = %d, ожидается > 0", usage.Total)
	}
	if usage.Used+usage.Available != usage.Total {
		t.Errorf("Used + Available != Total: %d + %d != %d", usage.Used, usage.Available, usage.Total)
	}
}
