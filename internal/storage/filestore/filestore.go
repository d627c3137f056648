// Пакет filestore — хранилище содержимого на локальном диске.
// Файл задания хранится как {data_dir}/{sha256(job_id)}.zip.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/bigkaa/simple-storage/internal/storage/blob"
)

// fileExt — расширение файлов заданий на диске.
const fileExt = ".zip"

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения файлов (SS_DATA_DIR)
	dataDir string
}

var (
	_ blob.Store         = (*FileStore)(nil)
	_ blob.UsageReporter = (*FileStore)(nil)
)

// New создаёт новый FileStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// Locate возвращает относительный путь файла задания в dataDir.
func (fs *FileStore) Locate(key string) string {
	return blob.ObjectName(key) + fileExt
}

// Put записывает данные из reader на диск.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется, прежний файл остаётся нетронутым.
func (fs *FileStore) Put(_ context.Context, key string, r io.Reader) (*blob.Info, error) {
	if err := blob.ValidateKey(key); err != nil {
		return nil, err
	}

	storagePath := fs.Locate(key)
	fullPath := filepath.Join(fs.dataDir, storagePath)
	tmpPath := filepath.Join(fs.dataDir, ".tmp-"+uuid.New().String())

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &blob.Info{Locator: storagePath, Size: size}, nil
}

// Open открывает файл задания для чтения.
// Вызывающий код обязан закрыть ReadCloser.
func (fs *FileStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := blob.ValidateKey(key); err != nil {
		return nil, err
	}

	f, err := os.Open(fs.FullPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &blob.ObjectError{Op: "Open", Key: key, Err: blob.ErrNotFound}
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", fs.Locate(key), err)
	}

	return f, nil
}

// Exists проверяет существование файла задания на диске.
func (fs *FileStore) Exists(_ context.Context, key string) (bool, error) {
	if err := blob.ValidateKey(key); err != nil {
		return false, err
	}

	_, err := os.Stat(fs.FullPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка получения информации о файле %s: %w", fs.Locate(key), err)
	}
	return true, nil
}

// Delete удаляет файл задания с диска.
// Возвращает blob.ErrNotFound, если файла уже нет.
func (fs *FileStore) Delete(_ context.Context, key string) error {
	if err := blob.ValidateKey(key); err != nil {
		return err
	}

	err := os.Remove(fs.FullPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &blob.ObjectError{Op: "Delete", Key: key, Err: blob.ErrNotFound}
		}
		return fmt.Errorf("ошибка удаления файла %s: %w", fs.Locate(key), err)
	}
	return nil
}

// FullPath возвращает абсолютный путь к файлу задания на диске.
func (fs *FileStore) FullPath(key string) string {
	return filepath.Join(fs.dataDir, fs.Locate(key))
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// Usage возвращает информацию о дисковом пространстве директории данных.
func (fs *FileStore) Usage() (*blob.Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(fs.dataDir, &stat); err != nil {
		return nil, fmt.Errorf("ошибка statfs %s: %w", fs.dataDir, err)
	}

	total := int64(stat.Blocks) * int64(stat.Bsize)
	available := int64(stat.Bavail) * int64(stat.Bsize)

	return &blob.Usage{
		Total:     total,
		Used:      total - available,
		Available: available,
	}, nil
}
