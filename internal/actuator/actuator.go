package actuator

import (
	"context"
	"errors"
	"time"
)

// Ошибки актуатора.
var (
	// ErrSpawnFailed — процесс не удалось запустить.
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrNoHandle — операция требует handle, а он пустой.
	ErrNoHandle = errors.New("no process handle")
)

// Handle — непрозрачный идентификатор запущенного процесса.
// Нулевое значение означает "нет процесса".
type Handle int

// IsZero возвращает true для пустого handle.
func (h Handle) IsZero() bool {
	return h == 0
}

// Button — кнопка указателя.
type Button string

const (
	ButtonLeft  Button = "left"
	ButtonRight Button = "right"
)

// ParseButton приводит строку к Button (по умолчанию левая).
func ParseButton(s string) Button {
	if s == string(ButtonRight) {
		return ButtonRight
	}
	return ButtonLeft
}

// Actuator — все побочные действия на уровне ОС.
//
// Используется Execution Engine (ввод, запуск/закрытие по узлам графа)
// и Fleet Manager (запуск, завершение, проверка живости).
// Реализации должны быть потокобезопасны: Fleet Manager вызывает их
// из нескольких горутин.
type Actuator interface {
	// MoveCursor перемещает указатель.
	MoveCursor(ctx context.Context, x, y int) error

	// Click нажимает и отпускает кнопку в точке.
	Click(ctx context.Context, x, y int, button Button) error

	// ButtonDown зажимает кнопку в текущей позиции.
	ButtonDown(ctx context.Context, button Button) error

	// ButtonUp отпускает кнопку.
	ButtonUp(ctx context.Context, button Button) error

	// Scroll прокручивает колесо (положительное значение — вверх).
	Scroll(ctx context.Context, delta int) error

	// SendKey нажимает одну клавишу.
	SendKey(ctx context.Context, key string) error

	// SendCombo нажимает клавиши одновременно (модификаторы первыми).
	SendCombo(ctx context.Context, keys []string) error

	// TypeText вводит текст. slow=true — посимвольно с паузой perCharDelay.
	TypeText(ctx context.Context, text string, slow bool, perCharDelay time.Duration) error

	// MaximizeForeground разворачивает активное окно.
	MaximizeForeground(ctx context.Context) error

	// Focus выводит окно процесса на передний план.
	Focus(ctx context.Context, h Handle) error

	// Spawn запускает исполняемый файл и возвращает handle.
	Spawn(ctx context.Context, path string) (Handle, error)

	// Terminate завершает процесс по handle.
	Terminate(ctx context.Context, h Handle) error

	// TerminateByPath завершает все процессы с данным исполняемым файлом.
	TerminateByPath(ctx context.Context, path string) error

	// IsAlive проверяет, запущен ли хотя бы один процесс с данным файлом.
	// Это источник истины для Fleet Manager: процесс мог перезапуститься
	// с другим PID, сохранив путь.
	IsAlive(ctx context.Context, path string) (bool, error)

	// TargetExists проверяет, что исполняемый файл существует.
	TargetExists(ctx context.Context, path string) bool
}
