package scheduler

import "errors"

// Ошибки планировщика.
var (
	// ErrInvalidCron — cron-выражение не разбирается.
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrInvalidTimezone — неизвестный часовой пояс.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrNoController — не передан контроллер.
	ErrNoController = errors.New("controller is required")
)
