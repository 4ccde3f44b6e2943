package worker

import (
	"errors"
	"time"

	"github.com/shaiso/Autopilot/internal/domain"
)

// Result — итог одного запуска графа.
type Result struct {
	// RunID — идентификатор запуска.
	RunID string

	// Status — COMPLETED или FAILED.
	Status domain.RunState

	// Err — причина FAILED: *NodeError, ErrCancelled или ошибка порядка.
	Err error

	// LastNodeID — последний начатый узел.
	LastNodeID string

	// NodesExecuted — успешно выполненные узлы.
	NodesExecuted int

	// NodesSkipped — узлы неизвестных типов.
	NodesSkipped int

	// Context — снимок Execution Context на момент завершения.
	Context map[string]any

	StartedAt  time.Time
	FinishedAt time.Time
}

// Completed возвращает true для успешного запуска.
func (r *Result) Completed() bool {
	return r.Status == domain.RunStateCompleted
}

// Cancelled возвращает true, если запуск прерван отменой.
func (r *Result) Cancelled() bool {
	return errors.Is(r.Err, ErrCancelled)
}

// Duration возвращает длительность запуска.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Strings возвращает значение контекста как список строк.
func (r *Result) Strings(key string) []string {
	switch list := r.Context[key].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
