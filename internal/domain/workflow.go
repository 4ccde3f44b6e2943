package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workflow — сохранённый граф действий.
//
// Workflow — это "сценарий" работы с одним аккаунтом.
// Один из workflows помечается как default: его Run Controller
// выполняет для каждого аккаунта.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID uuid.UUID `json:"id"`

	// Name — имя, видимое пользователю.
	Name string `json:"name"`

	// Description — произвольное описание.
	Description string `json:"description,omitempty"`

	// IsDefault — этот workflow выполняется Run Controller'ом.
	// В каждый момент default не более одного.
	IsDefault bool `json:"is_default"`

	// Graph — узлы и рёбра.
	Graph Graph `json:"graph"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}
