// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrTooLarge — содержимое превышает SS_MAX_FILE_SIZE.
	ErrTooLarge = fmt.Errorf("%w: превышен максимальный размер файла", ErrValidation)
	// ErrNotFound — задание не найдено.
	ErrNotFound = errors.New("задание не найдено")
	// ErrGone — файл задания уже удалён. Удовлетворяет errors.Is(err, ErrNotFound).
	ErrGone = fmt.Errorf("%w: файл удалён", ErrNotFound)
	// ErrConflict — повторная загрузка удалённого файла запрещена политикой.
	ErrConflict = errors.New("конфликт состояния")
	// ErrInternal — ошибка ввода-вывода хранилища.
	ErrInternal = errors.New("внутренняя ошибка хранилища")
)

var (
	// errSuperseded — запланированное удаление относится к предыдущей загрузке.
	errSuperseded = errors.New("файл перезагружен после планирования удаления")
	// errReadersActive — файл ещё читается, удаление отложено до закрытия потоков.
	errReadersActive = errors.New("файл читается")
)
