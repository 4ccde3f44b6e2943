package control

import "errors"

// Ошибки управления.
var (
	// ErrUnknownCommand — команда не распознана.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidCommand — у команды нет обязательных полей.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrNotConfigured — у сервиса нет нужного хранилища.
	ErrNotConfigured = errors.New("store is not configured")

	// ErrNoAccountsDir — не задана папка для поиска аккаунтов.
	ErrNoAccountsDir = errors.New("accounts directory is not set")
)
