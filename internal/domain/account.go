package domain

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultTargetBinary — имя исполняемого файла внутри папки аккаунта,
// если путь не задан явно.
const DefaultTargetBinary = "Telegram.exe"

// Account — учётная запись, обслуживаемая отдельным экземпляром
// целевого приложения.
//
// PhoneNumber — ключ идентичности: по нему Fleet Manager
// дедуплицирует запуски, он не зависит от PID процесса.
type Account struct {
	// ID — уникальный идентификатор аккаунта.
	ID uuid.UUID `json:"id"`

	// PhoneNumber — ключ идентичности (уникален).
	PhoneNumber string `json:"phone_number"`

	// FolderPath — папка портативной установки приложения.
	FolderPath string `json:"folder_path"`

	// ExePath — явный путь к исполняемому файлу (опционально).
	ExePath string `json:"exe_path,omitempty"`

	// IsActive — неактивные аккаунты не обходятся.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// LastUsed — время последней обработки Run Controller'ом.
	LastUsed *time.Time `json:"last_used,omitempty"`
}

// IdentityKey возвращает ключ идентичности аккаунта.
func (a *Account) IdentityKey() string {
	return a.PhoneNumber
}

// TargetPath возвращает путь к исполняемому файлу аккаунта.
// binary используется, если ExePath не задан; пустой binary → DefaultTargetBinary.
func (a *Account) TargetPath(binary string) string {
	if a.ExePath != "" {
		return a.ExePath
	}
	if binary == "" {
		binary = DefaultTargetBinary
	}
	return filepath.Join(a.FolderPath, binary)
}

// Channel — единица работы: ссылка, которую нужно отправить от имени аккаунта.
type Channel struct {
	// ID — уникальный идентификатор.
	ID uuid.UUID `json:"id"`

	// Link — ссылка (уникальна).
	Link string `json:"link"`

	// Name — отображаемое имя.
	Name string `json:"name,omitempty"`

	// IsActive — неактивные каналы не раздаются.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Identity — то, что Run Controller знает об аккаунте во время прохода.
type Identity struct {
	// Key — ключ идентичности для Fleet Manager.
	Key string `json:"key"`

	// AccountID — ID аккаунта в хранилище.
	AccountID string `json:"account_id"`

	// TargetPath — путь к исполняемому файлу.
	TargetPath string `json:"target_path"`
}

// Identity строит Identity аккаунта. binary — как в TargetPath.
func (a *Account) Identity(binary string) Identity {
	return Identity{
		Key:        a.IdentityKey(),
		AccountID:  a.ID.String(),
		TargetPath: a.TargetPath(binary),
	}
}

// WorkItem — единица работы, раздаваемая через payloadList.
type WorkItem struct {
	// ID — идентификатор в хранилище (ID канала).
	ID string `json:"id"`

	// Value — значение для вставки (ссылка).
	Value string `json:"value"`
}
