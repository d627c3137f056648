// Пакет lifecycle — конечный автомат жизненного цикла файла задания.
//
// Состояния: absent → active → downloaded → deleted.
//   - upload из active/downloaded перезаписывает файл (→ active)
//   - deleted терминально, кроме явного перехода resurrect (upload → active),
//     который разрешается политикой
//
// Автомат не хранит состояние: оно вычисляется из записи и передаётся явно.
package lifecycle

import (
	"fmt"

	"github.com/bigkaa/simple-storage/internal/domain/model"
)

// Event — событие, переводящее запись между состояниями.
type Event string

const (
	EventUpload   Event = "upload"
	EventDownload Event = "download"
	EventDelete   Event = "delete"
	// EventExpire — удаление по сроку хранения (очистка)
	EventExpire Event = "expire"
)

// Коды ошибок перехода.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeResurrectDenied   = "RESURRECT_DENIED"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущее состояние, значение — событие → целевое состояние.
var validTransitions = map[model.State]map[Event]model.State{
	model.StateAbsent: {
		EventUpload: model.StateActive,
	},
	model.StateActive: {
		EventUpload:   model.StateActive,
		EventDownload: model.StateDownloaded,
		EventDelete:   model.StateDeleted,
	},
	model.StateDownloaded: {
		EventUpload:   model.StateActive,
		EventDownload: model.StateDownloaded,
		EventDelete:   model.StateDeleted,
		EventExpire:   model.StateDeleted,
	},
	model.StateDeleted: {
		EventUpload: model.StateActive, // resurrect
	},
}

// needsPolicy — переходы, разрешаемые только политикой AllowResurrect.
var needsPolicy = map[model.State]map[Event]bool{
	model.StateDeleted: {EventUpload: true},
}

// StateMachine — правила переходов с учётом политики воскрешения.
type StateMachine struct {
	allowResurrect bool
}

// NewStateMachine создаёт автомат. allowResurrect разрешает
// повторную загрузку по job_id удалённого файла.
func NewStateMachine(allowResurrect bool) *StateMachine {
	return &StateMachine{allowResurrect: allowResurrect}
}

// Transition возвращает целевое состояние для события или *TransitionError.
func (sm *StateMachine) Transition(from model.State, ev Event) (model.State, error) {
	targets, ok := validTransitions[from]
	if !ok {
		return from, &TransitionError{
			Code:    CodeInvalidTransition,
			From:    from,
			Event:   ev,
			Message: fmt.Sprintf("неизвестное состояние %q", from),
		}
	}

	target, ok := targets[ev]
	if !ok {
		return from, &TransitionError{
			Code:    CodeInvalidTransition,
			From:    from,
			Event:   ev,
			Message: fmt.Sprintf("событие %s недопустимо в состоянии %s", ev, from),
		}
	}

	if needsPolicy[from][ev] && !sm.allowResurrect {
		return from, &TransitionError{
			Code:    CodeResurrectDenied,
			From:    from,
			Event:   ev,
			Message: "повторная загрузка удалённого файла запрещена",
		}
	}

	return target, nil
}

// IsResurrect проверяет, является ли переход воскрешением удалённой записи.
func IsResurrect(from model.State, ev Event) bool {
	return needsPolicy[from][ev]
}

// TransitionError — ошибка перехода жизненного цикла.
type TransitionError struct {
	Code    string      // Машиночитаемый код (INVALID_TRANSITION, RESURRECT_DENIED)
	From    model.State // Состояние, из которого выполнялся переход
	Event   Event       // Событие перехода
	Message string      // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
