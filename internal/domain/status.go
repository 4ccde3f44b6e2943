package domain

// RunState — состояние Execution Engine.
//
// Жизненный цикл:
//
//	IDLE → RUNNING ⇄ PAUSED
//	       RUNNING/PAUSED → CANCELLING → FAILED
//	       RUNNING → COMPLETED | FAILED
//
// Из финальных состояний движок можно запустить снова.
type RunState string

const (
	// RunStateIdle — движок создан и ещё ничего не выполнял.
	RunStateIdle RunState = "IDLE"

	// RunStateRunning — идёт обход узлов.
	RunStateRunning RunState = "RUNNING"

	// RunStatePaused — обход приостановлен между узлами.
	RunStatePaused RunState = "PAUSED"

	// RunStateCancelling — запрошена отмена, ждём ближайшей контрольной точки.
	RunStateCancelling RunState = "CANCELLING"

	// RunStateCompleted — все узлы выполнены.
	RunStateCompleted RunState = "COMPLETED"

	// RunStateFailed — ошибка обработчика или отмена.
	RunStateFailed RunState = "FAILED"
)

// IsTerminal возвращает true, если состояние финальное.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed:
		return true
	default:
		return false
	}
}

// IsActive возвращает true, если run выполняется (в том числе на паузе).
func (s RunState) IsActive() bool {
	switch s {
	case RunStateRunning, RunStatePaused, RunStateCancelling:
		return true
	default:
		return false
	}
}

// OutcomeStatus — результат обработки единицы работы.
type OutcomeStatus string

const (
	// OutcomePending — запрос создан, но ещё не отправлен.
	OutcomePending OutcomeStatus = "pending"

	// OutcomeSent — отправлен упрощённым сценарием без подтверждения.
	OutcomeSent OutcomeStatus = "sent"

	// OutcomeSuccess — граф выполнен полностью.
	OutcomeSuccess OutcomeStatus = "success"

	// OutcomeFailed — выполнение графа завершилось ошибкой.
	OutcomeFailed OutcomeStatus = "failed"
)
