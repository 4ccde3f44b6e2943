package worker

import (
	"errors"
	"fmt"

	"github.com/shaiso/Autopilot/internal/domain"
)

// Ошибки воркера.
var (
	// ErrAlreadyRunning — запуск, пока предыдущий не завершён.
	ErrAlreadyRunning = errors.New("graph run already in progress")

	// ErrCancelled — запуск прерван сигналом Abort или закрытием ctx.
	ErrCancelled = errors.New("graph run cancelled")

	// ErrHandlerFailure — обработчик узла вернул ошибку.
	ErrHandlerFailure = errors.New("node handler failed")

	// ErrNilGraph — граф не передан.
	ErrNilGraph = errors.New("graph is nil")
)

// NodeError — ошибка выполнения конкретного узла.
//
// errors.Is(err, ErrHandlerFailure) и errors.Is(err, <причина>)
// оба возвращают true.
type NodeError struct {
	NodeID string
	Kind   domain.NodeKind
	Err    error
}

// Error реализует интерфейс error.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Kind, e.Err)
}

// Unwrap возвращает ErrHandlerFailure и исходную причину.
func (e *NodeError) Unwrap() []error {
	return []error{ErrHandlerFailure, e.Err}
}
