package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/engine"
	"github.com/shaiso/Autopilot/internal/events"
	"github.com/shaiso/Autopilot/internal/telemetry"
	"github.com/shaiso/Autopilot/internal/worker"
)

// Default configuration values.
const (
	defaultItemsPerIdentity = 5
	defaultLoopDelay        = 10 * time.Second
)

// Orchestrator — Run Controller: обходит идентичности и для каждой
// выполняет граф действий.
//
// Идентичности обрабатываются строго по одной. Каждая проходит:
//   - выборку работы (PendingWork) и пропуск, если её нет
//   - Fleet.Acquire для своего процесса
//   - запуск графа с контекстом identityKey, targetPath, payloadList
//   - запись результата для каждого затронутого элемента
//
// Pause, Resume и Stop проверяются между идентичностями и в каждой
// контрольной точке движка.
type Orchestrator struct {
	source   WorkSource
	fleet    Fleet
	engine   Engine
	events   events.Sink
	defaults Options

	killAllOnStop bool
	loopDelay     time.Duration
	rand          *rand.Rand
	now           func() time.Time
	logger        *slog.Logger

	// sigMu сериализует Start, Pause, Resume и Stop целиком,
	// вместе с сигналами движку.
	sigMu sync.Mutex

	mu        sync.Mutex
	cond      *sync.Cond
	running   bool
	paused    bool
	stopping  bool
	options   Options
	stats     Stats
	current   *domain.Identity
	lastRun   *RunSummary
	startedAt time.Time

	cancelFunc context.CancelFunc
	stopCh     chan struct{}
	done       chan struct{}
}

// Config — конфигурация Orchestrator.
type Config struct {
	// WorkSource — идентичности, работа и запись результатов.
	WorkSource WorkSource

	// Fleet — пул процессов. Если nil, процесс запускает сам граф.
	Fleet Fleet

	// Engine — Execution Engine.
	Engine Engine

	// Events — получатель событий (если nil — events.Discard).
	Events events.Sink

	// Defaults — параметры прохода по умолчанию.
	// Нулевое значение означает DefaultOptions().
	Defaults Options

	// KeepFleetOnStop — не вызывать Fleet.KillAll после Stop.
	KeepFleetOnStop bool

	// LoopDelay — пауза между полными обходами (default: 10s).
	// Отрицательное значение отключает паузу.
	LoopDelay time.Duration

	// Rand — перемешивание идентичностей и выборка работы.
	Rand *rand.Rand

	// Now — часы (для тестов).
	Now func() time.Time

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	defaults := cfg.Defaults
	if defaults == (Options{}) {
		defaults = DefaultOptions()
	}
	if defaults.ItemsPerIdentity <= 0 {
		defaults.ItemsPerIdentity = defaultItemsPerIdentity
	}

	sink := cfg.Events
	if sink == nil {
		sink = events.Discard
	}

	loopDelay := cfg.LoopDelay
	if loopDelay == 0 {
		loopDelay = defaultLoopDelay
	}

	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		source:        cfg.WorkSource,
		fleet:         cfg.Fleet,
		engine:        cfg.Engine,
		events:        sink,
		defaults:      defaults,
		killAllOnStop: !cfg.KeepFleetOnStop,
		loopDelay:     loopDelay,
		rand:          rnd,
		now:           now,
		logger:        logger,
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Defaults возвращает параметры прохода по умолчанию.
func (o *Orchestrator) Defaults() Options {
	return o.defaults
}

// Start начинает проход в отдельной горутине и сразу возвращается.
//
// Проход не наследует отмену ctx (HTTP-запрос или команда из очереди
// заканчиваются раньше прохода): он завершается сам или через Stop.
// Нулевой ItemsPerIdentity берётся из Defaults.
func (o *Orchestrator) Start(ctx context.Context, opts Options) error {
	if o.engine == nil {
		return ErrNoEngine
	}
	if o.source == nil {
		return ErrNoWorkSource
	}
	if opts.ItemsPerIdentity <= 0 {
		opts.ItemsPerIdentity = o.defaults.ItemsPerIdentity
	}

	o.sigMu.Lock()
	defer o.sigMu.Unlock()

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	o.running = true
	o.paused = false
	o.stopping = false
	o.options = opts
	o.stats = Stats{}
	o.current = nil
	o.startedAt = o.now()
	o.cancelFunc = cancel
	o.stopCh = make(chan struct{})
	o.done = done
	o.mu.Unlock()

	o.logger.Info("automation started",
		"items_per_identity", opts.ItemsPerIdentity,
		"exclude_completed", opts.ExcludeCompleted,
	)
	o.emit(domain.EventAutomationStarted, "", map[string]any{
		"items_per_identity": opts.ItemsPerIdentity,
		"exclude_completed":  opts.ExcludeCompleted,
	})

	go o.run(runCtx, opts, done)
	return nil
}

// Pause приостанавливает проход. Повторная пауза ничего не делает.
func (o *Orchestrator) Pause() error {
	o.sigMu.Lock()
	defer o.sigMu.Unlock()

	o.mu.Lock()
	if !o.running || o.stopping {
		o.mu.Unlock()
		return ErrNotRunning
	}
	if o.paused {
		o.mu.Unlock()
		return nil
	}
	o.paused = true
	o.cond.Broadcast()
	o.mu.Unlock()

	o.engine.Pause()

	o.logger.Info("automation paused")
	o.emit(domain.EventAutomationPaused, "", nil)
	return nil
}

// Resume продолжает приостановленный проход.
func (o *Orchestrator) Resume() error {
	o.sigMu.Lock()
	defer o.sigMu.Unlock()

	o.mu.Lock()
	if !o.running || o.stopping {
		o.mu.Unlock()
		return ErrNotRunning
	}
	if !o.paused {
		o.mu.Unlock()
		return nil
	}
	o.paused = false
	o.cond.Broadcast()
	o.mu.Unlock()

	o.engine.Resume()

	o.logger.Info("automation resumed")
	o.emit(domain.EventAutomationResumed, "", nil)
	return nil
}

// Stop останавливает проход и ждёт его завершения.
//
// Начатый узел доигрывается. Если ctx истекает раньше, контекст
// прохода отменяется и незавершённые вызовы Actuator прерываются.
// После остановки весь флот закрывается, если не задан KeepFleetOnStop.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.sigMu.Lock()
	defer o.sigMu.Unlock()

	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return ErrNotRunning
	}
	first := !o.stopping
	if first {
		o.stopping = true
		o.paused = false
		close(o.stopCh)
		o.cond.Broadcast()
	}
	done := o.done
	cancel := o.cancelFunc
	o.mu.Unlock()

	if first {
		o.logger.Info("automation stopping")
		o.emit(domain.EventAutomationStopping, "", nil)
	}

	o.engine.Abort()

	select {
	case <-done:
	case <-ctx.Done():
		o.logger.Warn("stop deadline exceeded, cancelling in-flight actions")
		cancel()
		<-done
	}

	if o.killAllOnStop && o.fleet != nil {
		killed := o.fleet.KillAll(context.WithoutCancel(ctx))
		o.logger.Info("fleet closed after stop", "killed", killed)
	}
	return nil
}

// Done возвращает канал, закрывающийся по окончании текущего
// (или последнего) прохода.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return o.done
}

// Wait ждёт окончания прохода.
func (o *Orchestrator) Wait(ctx context.Context) error {
	select {
	case <-o.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status возвращает снимок состояния.
func (o *Orchestrator) Status() Status {
	var engineState domain.RunState
	if o.engine != nil {
		engineState = o.engine.State()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		Running:     o.running,
		Paused:      o.paused,
		Stopping:    o.stopping,
		EngineState: engineState,
		Options:     o.options,
		Stats:       o.stats,
	}
	if o.current != nil {
		id := *o.current
		st.CurrentIdentity = &id
	}
	if o.lastRun != nil {
		last := *o.lastRun
		st.LastRun = &last
	}
	if !o.startedAt.IsZero() {
		startedAt := o.startedAt
		st.StartedAt = &startedAt
	}
	return st
}

// run — горутина прохода.
func (o *Orchestrator) run(ctx context.Context, opts Options, done chan struct{}) {
	defer close(done)
	defer o.finish()

	if err := o.loop(ctx, opts); err != nil && !errors.Is(err, worker.ErrCancelled) {
		o.logger.Error("automation failed", "error", err)
		o.emit(domain.EventAutomationError, "", map[string]any{"error": err.Error()})
	}
}

// loop — внешний цикл: полные обходы пула идентичностей.
func (o *Orchestrator) loop(ctx context.Context, opts Options) error {
	for loop := 1; ; loop++ {
		if err := o.checkpoint(ctx); err != nil {
			return err
		}

		identities, err := o.source.ListIdentities(ctx)
		if err != nil {
			return fmt.Errorf("list identities: %w", err)
		}
		if len(identities) == 0 {
			o.logger.Warn("no active identities")
			o.emit(domain.EventNoIdentities, "", nil)
			return nil
		}

		o.rand.Shuffle(len(identities), func(i, j int) {
			identities[i], identities[j] = identities[j], identities[i]
		})

		o.mu.Lock()
		o.stats.CurrentLoop = loop
		o.mu.Unlock()

		o.logger.Info("loop started", "loop", loop, "identities", len(identities))
		o.emit(domain.EventLoopStarted, "", map[string]any{
			"loop":           loop,
			"identity_count": len(identities),
		})

		attempted := 0
		for i := range identities {
			if err := o.checkpoint(ctx); err != nil {
				return err
			}
			if o.processIdentity(ctx, identities[i], opts) {
				attempted++
			}
		}

		if opts.ExcludeCompleted {
			finished, err := o.source.HasNoPendingWorkAnywhere(ctx)
			if err != nil {
				o.logger.Error("failed to check remaining work", "error", err)
			} else if finished {
				o.logger.Info("all work completed", "loops", loop)
				o.emit(domain.EventAllCompleted, "", map[string]any{"loops": loop})
				return nil
			}
		}

		if attempted == 0 {
			o.logger.Warn("no work for any identity, stopping", "loop", loop)
			return nil
		}

		if err := o.sleepBetweenLoops(ctx); err != nil {
			return err
		}
	}
}

// processIdentity обрабатывает одну идентичность.
// Возвращает false, если идентичность пропущена без работы.
func (o *Orchestrator) processIdentity(ctx context.Context, id domain.Identity, opts Options) bool {
	logger := telemetry.WithIdentity(o.logger, id.Key)

	items, err := o.source.PendingWork(ctx, id, opts.ItemsPerIdentity, opts.ExcludeCompleted)
	if err != nil {
		logger.Error("failed to load pending work", "error", err)
		o.identityFailed(id, "pending_work", err)
		return true
	}
	if len(items) == 0 {
		logger.Debug("identity skipped, no pending work")
		o.mu.Lock()
		o.stats.SkippedIdentities++
		o.mu.Unlock()
		telemetry.IdentitiesTotal.WithLabelValues("skipped").Inc()
		o.emit(domain.EventIdentitySkipped, id.Key, map[string]any{
			"account_id": id.AccountID,
			"reason":     "no_pending_work",
		})
		return false
	}
	items = o.sample(items, opts.ItemsPerIdentity)

	o.setCurrent(&id)
	defer o.setCurrent(nil)

	logger.Info("identity started", "items", len(items))
	o.emit(domain.EventIdentityStarted, id.Key, map[string]any{
		"account_id": id.AccountID,
		"item_count": len(items),
	})

	var handle actuator.Handle
	if o.fleet != nil {
		handle, err = o.fleet.Acquire(ctx, id.Key, id.TargetPath)
		if err != nil {
			logger.Warn("failed to acquire target", "path", id.TargetPath, "error", err)
			o.identityFailed(id, "acquire", err)
			return true
		}
	}

	graph, status, err := o.graph(ctx)
	if err != nil {
		logger.Error("failed to load workflow", "error", err)
		o.identityFailed(id, "workflow", err)
		return true
	}

	values := make([]string, len(items))
	for i, item := range items {
		values[i] = item.Value
	}
	ectx := engine.NewContext(map[string]any{
		engine.KeyIdentity:     id.Key,
		engine.KeyAccountID:    id.AccountID,
		engine.KeyTargetPath:   id.TargetPath,
		engine.KeyTargetHandle: int(handle),
		engine.KeyPayloadList:  values,
	})

	res, err := o.engine.Start(ctx, graph, ectx, worker.WithCheckpoint(o.checkpoint))
	if err != nil {
		logger.Error("failed to start graph run", "error", err)
		o.identityFailed(id, "engine", err)
		return true
	}
	o.setLastRun(id, res, len(items))

	if res.Cancelled() {
		// Уже вставленные элементы считаются неудачными, остальные
		// остаются в работе
		recorded := 0
		if pasted, ok := pastedItems(items, res); ok {
			recorded = o.recordOutcomes(context.WithoutCancel(ctx), id, pasted, domain.OutcomeFailed, logger)
			o.mu.Lock()
			o.stats.TotalItems += recorded
			o.stats.FailedItems += recorded
			o.mu.Unlock()
		}

		logger.Info("identity run cancelled", "last_node", res.LastNodeID, "items", recorded)
		telemetry.IdentitiesTotal.WithLabelValues("cancelled").Inc()
		o.emit(domain.EventIdentityFailed, id.Key, map[string]any{
			"account_id": id.AccountID,
			"run_id":     res.RunID,
			"last_node":  res.LastNodeID,
			"items":      recorded,
			"cancelled":  true,
		})
		return true
	}

	if !res.Completed() {
		status = domain.OutcomeFailed
	}
	recorded := o.recordOutcomes(ctx, id, attemptedItems(items, res), status, logger)

	if err := o.source.TouchIdentity(ctx, id); err != nil {
		logger.Warn("failed to update last used", "error", err)
	}

	o.mu.Lock()
	o.stats.ProcessedIdentities++
	o.stats.TotalItems += recorded
	if status == domain.OutcomeFailed {
		o.stats.FailedIdentities++
		o.stats.FailedItems += recorded
	} else {
		o.stats.SuccessfulItems += recorded
	}
	o.mu.Unlock()

	if res.Completed() {
		logger.Info("identity completed", "items", recorded, "status", status)
		telemetry.IdentitiesTotal.WithLabelValues("completed").Inc()
		o.emit(domain.EventIdentityCompleted, id.Key, map[string]any{
			"account_id": id.AccountID,
			"run_id":     res.RunID,
			"items":      recorded,
			"status":     string(status),
		})
		return true
	}

	logger.Warn("identity run failed", "last_node", res.LastNodeID, "error", res.Err)
	telemetry.IdentitiesTotal.WithLabelValues("failed").Inc()
	o.emit(domain.EventIdentityFailed, id.Key, map[string]any{
		"account_id": id.AccountID,
		"run_id":     res.RunID,
		"last_node":  res.LastNodeID,
		"items":      recorded,
		"error":      res.Err.Error(),
	})
	return true
}

// graph выбирает граф и статус успешного результата.
// Без workflow по умолчанию выполняется engine.FallbackGraph,
// его результат записывается как sent.
func (o *Orchestrator) graph(ctx context.Context) (*domain.Graph, domain.OutcomeStatus, error) {
	wf, err := o.source.DefaultWorkflow(ctx)
	if err != nil {
		return nil, "", err
	}
	if wf == nil {
		return engine.FallbackGraph(), domain.OutcomeSent, nil
	}
	return &wf.Graph, domain.OutcomeSuccess, nil
}

// recordOutcomes записывает результат и возвращает число записанных элементов.
func (o *Orchestrator) recordOutcomes(ctx context.Context, id domain.Identity, items []domain.WorkItem, status domain.OutcomeStatus, logger *slog.Logger) int {
	recorded := 0
	for _, item := range items {
		if err := o.source.RecordOutcome(ctx, id, item, status); err != nil {
			logger.Error("failed to record outcome", "item", item.ID, "status", status, "error", err)
			continue
		}
		recorded++
	}
	return recorded
}

// attemptedItems возвращает элементы, которые граф действительно
// затронул: если узел pasteList сделал выборку, только её.
func attemptedItems(items []domain.WorkItem, res *worker.Result) []domain.WorkItem {
	if pasted, ok := pastedItems(items, res); ok {
		return pasted
	}
	return items
}

// pastedItems возвращает элементы, введённые узлом pasteList.
// ok == false, если pasteList в запуске не выполнялся.
func pastedItems(items []domain.WorkItem, res *worker.Result) ([]domain.WorkItem, bool) {
	if _, ok := res.Context[engine.KeyPastedItems]; !ok {
		return nil, false
	}

	pasted := make(map[string]bool)
	for _, v := range res.Strings(engine.KeyPastedItems) {
		pasted[v] = true
	}

	out := make([]domain.WorkItem, 0, len(pasted))
	for _, item := range items {
		if pasted[item.Value] {
			out = append(out, item)
		}
	}
	return out, true
}

// sample возвращает случайные limit элементов, если их больше.
func (o *Orchestrator) sample(items []domain.WorkItem, limit int) []domain.WorkItem {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	shuffled := make([]domain.WorkItem, len(items))
	copy(shuffled, items)
	o.rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:limit]
}

// identityFailed фиксирует ошибку идентичности вне графа.
func (o *Orchestrator) identityFailed(id domain.Identity, stage string, err error) {
	o.mu.Lock()
	o.stats.FailedIdentities++
	o.mu.Unlock()

	telemetry.IdentitiesTotal.WithLabelValues("failed").Inc()
	o.emit(domain.EventIdentityFailed, id.Key, map[string]any{
		"account_id": id.AccountID,
		"stage":      stage,
		"error":      err.Error(),
	})
}

// checkpoint — контрольная точка контроллера.
//
// Блокируется на паузе. Возвращает worker.ErrCancelled после Stop
// или отмены ctx.
func (o *Orchestrator) checkpoint(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.cond.Broadcast()
	})
	defer stop()

	o.mu.Lock()
	defer o.mu.Unlock()

	for o.paused && !o.stopping && ctx.Err() == nil {
		o.cond.Wait()
	}

	if o.stopping {
		return worker.ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", worker.ErrCancelled, err)
	}
	return nil
}

// sleepBetweenLoops ждёт LoopDelay, прерываясь на Stop.
func (o *Orchestrator) sleepBetweenLoops(ctx context.Context) error {
	if o.loopDelay <= 0 {
		return nil
	}

	o.mu.Lock()
	stopCh := o.stopCh
	o.mu.Unlock()

	timer := time.NewTimer(o.loopDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-stopCh:
		return worker.ErrCancelled
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", worker.ErrCancelled, ctx.Err())
	}
}

// finish переводит контроллер в состояние покоя.
func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.running = false
	o.paused = false
	o.stopping = false
	o.current = nil
	stats := o.stats
	cancel := o.cancelFunc
	o.cancelFunc = nil
	o.cond.Broadcast()
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	o.logger.Info("automation stopped",
		"processed", stats.ProcessedIdentities,
		"skipped", stats.SkippedIdentities,
		"items", stats.TotalItems,
		"loops", stats.CurrentLoop,
	)
	o.emit(domain.EventAutomationStopped, "", map[string]any{"stats": stats})
}

func (o *Orchestrator) setCurrent(id *domain.Identity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = id
}

func (o *Orchestrator) setLastRun(id domain.Identity, res *worker.Result, items int) {
	summary := &RunSummary{
		RunID:      res.RunID,
		Identity:   id.Key,
		Status:     res.Status,
		Cancelled:  res.Cancelled(),
		LastNodeID: res.LastNodeID,
		Items:      items,
		FinishedAt: res.FinishedAt,
	}
	if res.Err != nil {
		summary.Error = res.Err.Error()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastRun = summary
}

// emit публикует событие контроллера.
func (o *Orchestrator) emit(t domain.EventType, identity string, data map[string]any) {
	e := domain.NewEvent(t, data)
	e.Timestamp = o.now()
	e.Identity = identity
	o.events.Publish(e)
}
