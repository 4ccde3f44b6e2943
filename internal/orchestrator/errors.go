package orchestrator

import "errors"

// Ошибки Run Controller.
var (
	// ErrAlreadyRunning — проход уже выполняется.
	ErrAlreadyRunning = errors.New("automation already running")

	// ErrNotRunning — сигнал пришёл, когда прохода нет.
	ErrNotRunning = errors.New("automation not running")

	// ErrNoEngine — не задан Execution Engine.
	ErrNoEngine = errors.New("execution engine is not configured")

	// ErrNoWorkSource — не задан источник работы.
	ErrNoWorkSource = errors.New("work source is not configured")
)
