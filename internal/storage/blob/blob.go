// Пакет blob — интерфейс хранилища содержимого файлов заданий.
// Содержимое адресуется ключом (job_id); реализации: filestore (локальный диск),
// s3store (S3-совместимое хранилище).
//
// job_id произволен, поэтому имя объекта в хранилище — ObjectName(job_id),
// а не сам ключ.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var (
	// ErrNotFound — содержимое по ключу отсутствует.
	ErrNotFound = errors.New("содержимое не найдено")
	// ErrInvalidKey — ключ недопустим для хранения.
	ErrInvalidKey = errors.New("недопустимый ключ")
)

// MaxKeyLength — максимальная длина ключа в байтах.
const MaxKeyLength = 255

// Info — результат сохранения содержимого.
type Info struct {
	// Locator — непрозрачный указатель на содержимое внутри хранилища
	Locator string
	// Size — количество записанных байт
	Size int64
}

// Store — хранилище содержимого.
type Store interface {
	// Put безусловно записывает содержимое по ключу. Запись атомарна:
	// при ошибке прежнее содержимое остаётся доступным.
	Put(ctx context.Context, key string, r io.Reader) (*Info, error)
	// Open открывает содержимое на чтение. ErrNotFound, если его нет.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Exists проверяет наличие содержимого.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete удаляет содержимое. ErrNotFound, если его нет.
	Delete(ctx context.Context, key string) error
	// Locate возвращает локатор содержимого для ключа.
	Locate(key string) string
}

// UsageReporter — хранилище, способное сообщить ёмкость носителя.
type UsageReporter interface {
	Usage() (*Usage, error)
}

// Usage — ёмкость носителя в байтах.
type Usage struct {
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
}

// ObjectError — ошибка операции над содержимым с контекстом.
type ObjectError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ValidateKey проверяет ключ: непустой, корректный UTF-8,
// без NUL-байтов, не длиннее MaxKeyLength байт.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: пустой ключ", ErrInvalidKey)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: длина %d превышает %d", ErrInvalidKey, len(key), MaxKeyLength)
	}
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: некорректный UTF-8", ErrInvalidKey)
	}
	if i := strings.IndexByte(key, 0); i >= 0 {
		return fmt.Errorf("%w: NUL-байт в позиции %d", ErrInvalidKey, i)
	}
	return nil
}

// ObjectName возвращает имя объекта для ключа: hex(sha256(key)).
// Имя фиксированной длины из [0-9a-f] пригодно для любой файловой системы
// и для ключей S3.
func ObjectName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
