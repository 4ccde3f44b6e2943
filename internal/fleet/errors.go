package fleet

import "errors"

// Ошибки Fleet Manager.
var (
	// ErrTargetNotFound — исполняемый файл не существует.
	ErrTargetNotFound = errors.New("target binary not found")

	// ErrLaunchFailure — процесс не запустился или не вернул handle.
	ErrLaunchFailure = errors.New("target launch failed")

	// ErrSlotNotFound — слота для идентичности нет.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrInvalidSettings — неверные границы TTL.
	ErrInvalidSettings = errors.New("invalid fleet settings")

	// ErrEmptyIdentity — пустой ключ идентичности.
	ErrEmptyIdentity = errors.New("identity key is empty")
)
