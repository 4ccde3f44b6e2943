package orchestrator

import (
	"context"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
	"github.com/shaiso/Autopilot/internal/worker"
)

// WorkSource — источник идентичностей и работы для них.
// Реализация для Postgres — repo.WorkSource.
type WorkSource interface {
	// ListIdentities возвращает активные идентичности.
	ListIdentities(ctx context.Context) ([]domain.Identity, error)

	// PendingWork возвращает работу для идентичности, не больше limit.
	// С excludeCompleted — только элементы без записанного результата
	// для этой идентичности, иначе любые активные элементы.
	PendingWork(ctx context.Context, id domain.Identity, limit int, excludeCompleted bool) ([]domain.WorkItem, error)

	// RecordOutcome записывает результат для пары (идентичность, элемент).
	RecordOutcome(ctx context.Context, id domain.Identity, item domain.WorkItem, status domain.OutcomeStatus) error

	// HasNoPendingWorkAnywhere возвращает true, когда ни у одной
	// активной идентичности не осталось необработанных элементов.
	HasNoPendingWorkAnywhere(ctx context.Context) (bool, error)

	// DefaultWorkflow возвращает workflow по умолчанию или nil, если его нет.
	DefaultWorkflow(ctx context.Context) (*domain.Workflow, error)

	// TouchIdentity отмечает время последней обработки.
	TouchIdentity(ctx context.Context, id domain.Identity) error
}

// Fleet — часть Fleet Manager, нужная контроллеру.
type Fleet interface {
	Acquire(ctx context.Context, identity, targetPath string) (actuator.Handle, error)
	KillAll(ctx context.Context) int
}

// Engine — Execution Engine. *worker.Worker реализует его.
type Engine interface {
	Start(ctx context.Context, graph *domain.Graph, ectx *engine.Context, opts ...worker.RunOption) (*worker.Result, error)
	Pause() bool
	Resume() bool
	Abort() bool
	State() domain.RunState
}
