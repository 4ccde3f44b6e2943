package orchestrator

import (
	"time"

	"github.com/shaiso/Autopilot/internal/domain"
)

// Options — параметры одного прохода.
type Options struct {
	// ItemsPerIdentity — сколько элементов работы выдаётся одной
	// идентичности за запуск.
	ItemsPerIdentity int `json:"items_per_identity"`

	// ExcludeCompleted — раздавать только необработанные элементы и
	// завершить проход, когда их не останется нигде.
	ExcludeCompleted bool `json:"exclude_completed"`
}

// DefaultOptions возвращает параметры по умолчанию.
func DefaultOptions() Options {
	return Options{
		ItemsPerIdentity: defaultItemsPerIdentity,
		ExcludeCompleted: true,
	}
}

// Stats — счётчики текущего (или последнего) прохода.
type Stats struct {
	ProcessedIdentities int `json:"processed_identities"`
	SkippedIdentities   int `json:"skipped_identities"`
	FailedIdentities    int `json:"failed_identities"`
	TotalItems          int `json:"total_items"`
	SuccessfulItems     int `json:"successful_items"`
	FailedItems         int `json:"failed_items"`
	CurrentLoop         int `json:"current_loop"`
}

// RunSummary — итог последнего запуска графа.
type RunSummary struct {
	RunID      string          `json:"run_id"`
	Identity   string          `json:"identity"`
	Status     domain.RunState `json:"status"`
	Cancelled  bool            `json:"cancelled,omitempty"`
	LastNodeID string          `json:"last_node_id,omitempty"`
	Error      string          `json:"error,omitempty"`
	Items      int             `json:"items"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Status — снимок состояния контроллера.
type Status struct {
	Running         bool             `json:"running"`
	Paused          bool             `json:"paused"`
	Stopping        bool             `json:"stopping"`
	EngineState     domain.RunState  `json:"engine_state"`
	CurrentIdentity *domain.Identity `json:"current_identity,omitempty"`
	Options         Options          `json:"options"`
	Stats           Stats            `json:"stats"`
	LastRun         *RunSummary      `json:"last_run,omitempty"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
}
