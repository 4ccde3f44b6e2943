package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
	"github.com/shaiso/Autopilot/internal/events"
	"github.com/shaiso/Autopilot/internal/steps"
	"github.com/shaiso/Autopilot/internal/telemetry"
)

// Worker — Execution Engine: выполняет граф действий узел за узлом.
//
// Один Worker выполняет не больше одного графа одновременно.
// Start блокируется до терминального состояния; Pause, Resume и Abort
// вызываются из других горутин.
type Worker struct {
	registry     *steps.Registry
	actuator     actuator.Actuator
	sleeper      steps.Sleeper
	events       events.Sink
	strictCycles bool
	rand         *rand.Rand
	now          func() time.Time

	gate   *Gate
	logger *slog.Logger
}

// Config — конфигурация Worker.
type Config struct {
	// Registry — обработчики узлов (если nil — steps.DefaultRegistry()).
	Registry *steps.Registry

	// Actuator — побочные действия узлов.
	Actuator actuator.Actuator

	// Sleeper — паузы внутри узлов (если nil — steps.TimerSleeper).
	Sleeper steps.Sleeper

	// Events — получатель событий (если nil — events.Discard).
	Events events.Sink

	// StrictCycles — граф с циклом не выполняется вовсе.
	// По умолчанию узлы цикла пропускаются с предупреждением.
	StrictCycles bool

	// Rand — источник случайности для шагов. Доступ к нему
	// сериализован: одновременно выполняется один узел.
	Rand *rand.Rand

	// Now — часы (для тестов).
	Now func() time.Time

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	registry := cfg.Registry
	if registry == nil {
		registry = steps.DefaultRegistry()
	}

	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = steps.TimerSleeper{}
	}

	sink := cfg.Events
	if sink == nil {
		sink = events.Discard
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		registry:     registry,
		actuator:     cfg.Actuator,
		sleeper:      sleeper,
		events:       sink,
		strictCycles: cfg.StrictCycles,
		rand:         cfg.Rand,
		now:          now,
		gate:         NewGate(),
		logger:       logger,
	}
}

// State возвращает текущее состояние движка.
func (w *Worker) State() domain.RunState {
	return w.gate.State()
}

// Pause приостанавливает запуск перед следующим узлом.
func (w *Worker) Pause() bool {
	return w.gate.Pause()
}

// Resume продолжает приостановленный запуск.
func (w *Worker) Resume() bool {
	return w.gate.Resume()
}

// Abort запрашивает отмену. Текущий узел доигрывается до конца.
func (w *Worker) Abort() bool {
	return w.gate.Abort()
}

// RunOption — параметр одного запуска.
type RunOption func(*runState)

// WithCheckpoint добавляет внешнюю контрольную точку, которая
// вызывается перед каждым узлом после собственной контрольной точки
// движка. Ошибка из fn отменяет запуск. Run Controller передаёт сюда
// свою паузу и остановку.
func WithCheckpoint(fn func(ctx context.Context) error) RunOption {
	return func(r *runState) {
		r.checkpoint = fn
	}
}

// Start выполняет граф и возвращает результат после терминального состояния.
//
// ectx — Execution Context запуска (identityKey, targetPath, payloadList);
// если nil, создаётся пустой. Возвращает ErrAlreadyRunning, если
// предыдущий запуск ещё активен. Ошибки узлов и отмена не возвращаются
// через error: они в Result.Err.
func (w *Worker) Start(ctx context.Context, graph *domain.Graph, ectx *engine.Context, opts ...RunOption) (*Result, error) {
	if graph == nil {
		return nil, ErrNilGraph
	}
	if err := w.gate.begin(); err != nil {
		return nil, err
	}

	if ectx == nil {
		ectx = engine.NewContext(nil)
	}

	run := &runState{
		result: &Result{
			RunID:     uuid.NewString(),
			Status:    domain.RunStateRunning,
			StartedAt: w.now(),
		},
		ectx:     ectx,
		identity: ectx.GetString(engine.KeyIdentity),
	}
	for _, opt := range opts {
		opt(run)
	}
	run.logger = telemetry.WithRunID(w.logger, run.result.RunID)
	if run.identity != "" {
		run.logger = telemetry.WithIdentity(run.logger, run.identity)
	}

	w.execute(ctx, graph, run)

	return w.finish(run), nil
}

// runState — состояние одного запуска.
type runState struct {
	result     *Result
	ectx       *engine.Context
	identity   string
	checkpoint func(ctx context.Context) error
	logger     *slog.Logger
}

// execute обходит узлы в топологическом порядке.
func (w *Worker) execute(ctx context.Context, graph *domain.Graph, run *runState) {
	order, err := w.order(graph, run.logger)
	if err != nil {
		run.result.Err = err
		return
	}

	run.logger.Info("graph run started", "nodes", len(order))

	for i := range order {
		node := &order[i]

		// Контрольная точка: пауза и отмена наблюдаются только между узлами
		if err := w.checkpoint(ctx, run); err != nil {
			run.logger.Info("graph run cancelled", "before_node", node.ID)
			run.result.Err = err
			return
		}

		if err := w.dispatch(ctx, node, run); err != nil {
			run.result.Err = err
			return
		}
	}
}

// checkpoint проходит контрольную точку движка и внешнюю, если она задана.
func (w *Worker) checkpoint(ctx context.Context, run *runState) error {
	if err := w.gate.checkpoint(ctx); err != nil {
		return err
	}
	if run.checkpoint == nil {
		return nil
	}
	if err := run.checkpoint(ctx); err != nil {
		if errors.Is(err, ErrCancelled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

// order строит порядок выполнения с учётом политики циклов.
func (w *Worker) order(graph *domain.Graph, logger *slog.Logger) ([]domain.Node, error) {
	if w.strictCycles {
		return engine.OrderStrict(graph)
	}

	dag := engine.BuildDAG(graph)
	if dag.HasCycle() {
		dropped := make([]string, len(dag.Dropped))
		for i, n := range dag.Dropped {
			dropped[i] = n.ID
		}
		logger.Warn("graph has cycles, nodes skipped", "dropped", dropped)
	}

	order := make([]domain.Node, len(dag.Order))
	for i, n := range dag.Order {
		order[i] = *n.Def
	}
	return order, nil
}

// finish фиксирует терминальное состояние и публикует итог.
func (w *Worker) finish(run *runState) *Result {
	res := run.result
	res.FinishedAt = w.now()
	res.Context = run.ectx.Snapshot()

	// Отмена внутри паузы шага тоже считается отменой запуска
	if errors.Is(res.Err, steps.ErrStepCancelled) && !errors.Is(res.Err, ErrCancelled) {
		res.Err = fmt.Errorf("%w: %v", ErrCancelled, res.Err)
	}

	eventType := domain.EventRunCompleted
	if res.Err == nil {
		res.Status = domain.RunStateCompleted
		run.logger.Info("graph run completed",
			"nodes_executed", res.NodesExecuted,
			"nodes_skipped", res.NodesSkipped,
			"duration", res.Duration(),
		)
	} else {
		res.Status = domain.RunStateFailed
		eventType = domain.EventRunFailed
		run.logger.Warn("graph run failed",
			"last_node", res.LastNodeID,
			"cancelled", res.Cancelled(),
			"error", res.Err,
		)
	}

	telemetry.RunsTotal.WithLabelValues(string(res.Status)).Inc()
	telemetry.RunDuration.Observe(res.Duration().Seconds())

	data := map[string]any{
		"status":         string(res.Status),
		"nodes_executed": res.NodesExecuted,
	}
	if res.Err != nil {
		data["error"] = res.Err.Error()
		data["cancelled"] = res.Cancelled()
	}
	w.emit(run, eventType, res.LastNodeID, data)

	// Терминальное состояние выставляется последним: после него
	// Start может быть вызван снова.
	w.gate.finish(res.Status)
	return res
}

// emit публикует событие запуска.
func (w *Worker) emit(run *runState, t domain.EventType, nodeID string, data map[string]any) {
	e := domain.NewEvent(t, data)
	e.Timestamp = w.now()
	e.RunID = run.result.RunID
	e.Identity = run.identity
	e.NodeID = nodeID
	w.events.Publish(e)
}
