package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Autopilot/internal/actuator"
	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/events"
	"github.com/shaiso/Autopilot/internal/telemetry"
)

// Default configuration values.
const (
	defaultMaxSlots       = 10
	defaultMinTTL         = 3 * time.Minute
	defaultMaxTTL         = 15 * time.Minute
	defaultSweepInterval  = 5 * time.Second
	defaultRotateInterval = 3 * time.Second
	defaultCallTimeout    = 15 * time.Second
	defaultTouchX         = 41
	defaultTouchY         = 53
	killAllParallelism    = 4
)

// Point — координаты на экране.
type Point struct {
	X, Y int
}

// Manager — Fleet Manager: ограниченный пул процессов, по одному
// на идентичность.
//
// Acquire, ExpireSweep, Evict и KillAll сериализованы через opMu,
// поэтому проверка и вставка слота в Acquire атомарны относительно
// вытеснения. Каждый вызов Actuator ограничен CallTimeout.
// Count, ActiveSlots и выбор слота в Rotate берут только mu и не
// ждут медленных вызовов.
type Manager struct {
	actuator actuator.Actuator
	events   events.Sink

	maxSlots       int
	sweepInterval  time.Duration
	rotateInterval time.Duration
	callTimeout    time.Duration
	evictGrace     time.Duration
	touch          Point
	now            func() time.Time

	// opMu сериализует изменяющие операции
	opMu sync.Mutex
	rnd  *rand.Rand

	// mu защищает slots, settings и lastRotated
	mu          sync.RWMutex
	slots       map[string]*Slot
	settings    Settings
	lastRotated string

	sweeping atomic.Bool
	rotating atomic.Bool

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Manager.
type Config struct {
	// Actuator — запуск, завершение, проверка живости и касания.
	Actuator actuator.Actuator

	// Events — получатель событий slot_launched/slot_evicted.
	Events events.Sink

	MaxSlots int           // максимум слотов (default: 10)
	MinTTL   time.Duration // нижняя граница TTL (default: 3m)
	MaxTTL   time.Duration // верхняя граница TTL (default: 15m)

	SweepInterval  time.Duration // период ExpireSweep (default: 5s)
	RotateInterval time.Duration // период Rotate (default: 3s)
	CallTimeout    time.Duration // таймаут одного вызова Actuator (default: 15s)

	// EvictGrace — пауза после вытеснения по ёмкости перед запуском нового
	// процесса. Ноль — без паузы.
	EvictGrace time.Duration

	// TouchPoint — точка клика при ротации (default: 41,53).
	TouchPoint Point

	// Now — часы (для тестов).
	Now func() time.Time

	// Rand — источник случайности для TTL.
	Rand *rand.Rand

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Manager.
func New(cfg Config) *Manager {
	maxSlots := cfg.MaxSlots
	if maxSlots <= 0 {
		maxSlots = defaultMaxSlots
	}

	settings := Settings{MinTTL: cfg.MinTTL, MaxTTL: cfg.MaxTTL}
	if settings.Validate() != nil {
		settings = Settings{MinTTL: defaultMinTTL, MaxTTL: defaultMaxTTL}
	}

	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	rotateInterval := cfg.RotateInterval
	if rotateInterval <= 0 {
		rotateInterval = defaultRotateInterval
	}

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	touch := cfg.TouchPoint
	if touch == (Point{}) {
		touch = Point{X: defaultTouchX, Y: defaultTouchY}
	}

	sink := cfg.Events
	if sink == nil {
		sink = events.Discard
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		actuator:       cfg.Actuator,
		events:         sink,
		maxSlots:       maxSlots,
		sweepInterval:  sweepInterval,
		rotateInterval: rotateInterval,
		callTimeout:    callTimeout,
		evictGrace:     max(0, cfg.EvictGrace),
		touch:          touch,
		now:            now,
		rnd:            rnd,
		slots:          make(map[string]*Slot),
		settings:       settings,
		logger:         logger,
	}
}

// Acquire возвращает handle процесса для идентичности, запуская его
// при необходимости.
//
//  1. Флот полон — вытесняется самый старый слот.
//  2. Слот идентичности есть и путь жив по данным Actuator — его handle.
//     Путь мёртв — слот удаляется.
//  3. Файла нет — ErrTargetNotFound.
//  4. Spawn не удался — ErrLaunchFailure.
//  5. Новый слот с TTL, равномерным в [MinTTL, MaxTTL].
func (m *Manager) Acquire(ctx context.Context, identity, targetPath string) (actuator.Handle, error) {
	if identity == "" {
		return 0, ErrEmptyIdentity
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	logger := telemetry.WithIdentity(m.logger, identity)

	// 1. Место под новый слот освобождается строго до вставки
	if m.Count() >= m.maxSlots {
		if oldest := m.oldest(); oldest != nil {
			logger.Info("fleet is full, evicting oldest slot",
				"evicted", oldest.Identity,
				"started_at", oldest.StartedAt,
			)
			m.evictLocked(ctx, oldest, ReasonCapacity)

			if err := m.grace(ctx); err != nil {
				return 0, err
			}
		}
	}

	// 2. Живость проверяется по пути, handle мог устареть
	if existing := m.get(identity); existing != nil {
		alive, err := m.isAlive(ctx, existing.TargetPath)
		if err != nil {
			logger.Warn("liveness check failed, treating slot as stale", "error", err)
		}
		if alive {
			telemetry.FleetLaunches.WithLabelValues("reused").Inc()
			logger.Debug("reusing live slot", "handle", existing.Handle)
			return existing.Handle, nil
		}

		logger.Info("stale slot detected, relaunching", "handle", existing.Handle)
		m.evictLocked(ctx, existing, ReasonStale)
	}

	// 3. Файл должен существовать
	if !m.actuator.TargetExists(ctx, targetPath) {
		telemetry.FleetLaunches.WithLabelValues("not_found").Inc()
		return 0, fmt.Errorf("%w: %s", ErrTargetNotFound, targetPath)
	}

	// 4. Запуск
	h, err := m.spawn(ctx, targetPath)
	if err != nil || h.IsZero() {
		telemetry.FleetLaunches.WithLabelValues("failed").Inc()
		if err == nil {
			err = actuator.ErrNoHandle
		}
		return 0, fmt.Errorf("%w: %s: %w", ErrLaunchFailure, targetPath, err)
	}

	// 5. Вставка
	slot := &Slot{
		Identity:   identity,
		Handle:     h,
		TargetPath: targetPath,
		StartedAt:  m.now(),
		TTL:        m.randomTTL(),
	}
	m.put(slot)

	telemetry.FleetLaunches.WithLabelValues("spawned").Inc()
	telemetry.WithSlot(m.logger, identity, int(h)).Info("slot launched", "ttl", slot.TTL)
	m.emit(domain.EventSlotLaunched, identity, map[string]any{
		"handle":      int(h),
		"target_path": targetPath,
		"ttl_sec":     int(slot.TTL.Seconds()),
	})

	return h, nil
}

// ExpireSweep вытесняет все слоты, у которых now >= startedAt+ttl.
// Ошибки завершения логируются, sweep не прерывается.
func (m *Manager) ExpireSweep(ctx context.Context) int {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	now := m.now()

	m.mu.RLock()
	var expired []*Slot
	for _, s := range m.slots {
		if s.Expired(now) {
			expired = append(expired, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range expired {
		m.logger.Info("slot expired", "identity", s.Identity, "handle", s.Handle, "ttl", s.TTL)
		m.evictLocked(ctx, s, ReasonExpired)
	}

	return len(expired)
}

// Evict вытесняет слот идентичности.
func (m *Manager) Evict(ctx context.Context, identity string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	s := m.get(identity)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, identity)
	}

	m.evictLocked(ctx, s, ReasonManual)
	return nil
}

// KillAll вытесняет все слоты параллельно. После возврата флот пуст.
func (m *Manager) KillAll(ctx context.Context) int {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	all := make([]*Slot, 0, len(m.slots))
	for _, s := range m.slots {
		all = append(all, s)
	}
	m.mu.Unlock()

	m.logger.Info("killing all slots", "count", len(all))

	var g errgroup.Group
	g.SetLimit(killAllParallelism)
	for _, s := range all {
		g.Go(func() error {
			m.evictLocked(ctx, s, ReasonKillAll)
			return nil
		})
	}
	_ = g.Wait()

	return len(all)
}

// Rotate касается следующего слота в порядке идентичностей:
// окно на передний план, развернуть, клик в TouchPoint.
// Возвращает идентичность слота или "", если флот пуст либо касание
// не состоялось.
//
// Разворот и клик идут в окно на переднем плане, поэтому они
// выполняются, только если Focus удался и слот всё ещё во флоте
// с тем же handle.
func (m *Manager) Rotate(ctx context.Context) string {
	slot := m.nextForRotation()
	if slot == nil {
		return ""
	}

	logger := telemetry.WithSlot(m.logger, slot.Identity, int(slot.Handle))

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	if err := m.actuator.Focus(callCtx, slot.Handle); err != nil {
		logger.Debug("rotation focus failed, skipping touch", "error", err)
		return ""
	}
	if !m.holds(slot.Identity, slot.Handle) {
		logger.Debug("slot removed during rotation, skipping touch")
		return ""
	}

	if err := m.actuator.MaximizeForeground(callCtx); err != nil {
		logger.Debug("rotation maximize failed", "error", err)
	}
	if err := m.actuator.Click(callCtx, m.touch.X, m.touch.Y, actuator.ButtonLeft); err != nil {
		logger.Debug("rotation touch failed", "error", err)
	}

	telemetry.FleetTouches.Inc()
	return slot.Identity
}

// holds сообщает, что у идентичности есть слот с handle h.
func (m *Manager) holds(identity string, h actuator.Handle) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[identity]
	return ok && s.Handle == h
}

// nextForRotation выбирает следующий слот после lastRotated
// в отсортированном порядке идентичностей.
func (m *Manager) nextForRotation() *Slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.slots) == 0 {
		return nil
	}

	ids := make([]string, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	next := ids[0]
	if i := sort.SearchStrings(ids, m.lastRotated); m.lastRotated != "" {
		// Первая идентичность строго больше последней, иначе по кругу
		if i < len(ids) && ids[i] == m.lastRotated {
			i++
		}
		if i < len(ids) {
			next = ids[i]
		}
	}

	m.lastRotated = next
	s := *m.slots[next]
	return &s
}

// ActiveSlots возвращает снимок слотов, отсортированный по идентичности.
func (m *Manager) ActiveSlots() []SlotInfo {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SlotInfo, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s.info(now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Count возвращает число слотов.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// MaxSlots возвращает ёмкость флота.
func (m *Manager) MaxSlots() int {
	return m.maxSlots
}

// Settings возвращает текущие границы TTL.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// UpdateSettings меняет границы TTL. Действует на новые слоты.
func (m *Manager) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: min=%s max=%s", err, s.MinTTL, s.MaxTTL)
	}

	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()

	m.logger.Info("fleet settings updated", "min_ttl", s.MinTTL, "max_ttl", s.MaxTTL)
	return nil
}

// Start запускает периодические ExpireSweep и Rotate.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel

	m.logger.Info("starting fleet manager",
		"max_slots", m.maxSlots,
		"sweep_interval", m.sweepInterval,
		"rotate_interval", m.rotateInterval,
	)

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.tickLoop(ctx, m.sweepInterval, &m.sweeping, func(ctx context.Context) {
			m.ExpireSweep(ctx)
		})
	}()
	go func() {
		defer m.wg.Done()
		m.tickLoop(ctx, m.rotateInterval, &m.rotating, func(ctx context.Context) {
			m.Rotate(ctx)
		})
	}()
}

// Stop останавливает таймеры. Слоты не трогает.
func (m *Manager) Stop() {
	m.logger.Info("stopping fleet manager...")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.wg.Wait()

	m.logger.Info("fleet manager stopped")
}

// tickLoop вызывает fn на каждом тике. Если предыдущий вызов ещё идёт,
// тик пропускается, и таймеры не блокируют друг друга.
func (m *Manager) tickLoop(ctx context.Context, interval time.Duration, busy *atomic.Bool, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !busy.CompareAndSwap(false, true) {
				continue
			}
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				defer busy.Store(false)
				fn(ctx)
			}()
		}
	}
}

// --- internal ---

// evictLocked завершает процесс слота по handle и по пути и удаляет
// слот безусловно. Вызывается под opMu.
func (m *Manager) evictLocked(ctx context.Context, s *Slot, reason string) {
	m.mu.Lock()
	if cur, ok := m.slots[s.Identity]; ok && cur == s {
		delete(m.slots, s.Identity)
	}
	telemetry.FleetSlots.Set(float64(len(m.slots)))
	m.mu.Unlock()

	logger := telemetry.WithSlot(m.logger, s.Identity, int(s.Handle))

	var errs []error
	if !s.Handle.IsZero() {
		if err := m.call(ctx, func(ctx context.Context) error {
			return m.actuator.Terminate(ctx, s.Handle)
		}); err != nil {
			errs = append(errs, fmt.Errorf("terminate handle: %w", err))
		}
	}
	// Процесс мог перезапуститься с другим PID по тому же пути
	if s.TargetPath != "" {
		if err := m.call(ctx, func(ctx context.Context) error {
			return m.actuator.TerminateByPath(ctx, s.TargetPath)
		}); err != nil {
			errs = append(errs, fmt.Errorf("terminate by path: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		logger.Warn("slot termination incomplete", "reason", reason, "error", err)
	} else {
		logger.Info("slot evicted", "reason", reason)
	}

	telemetry.FleetEvictions.WithLabelValues(reason).Inc()
	m.emit(domain.EventSlotEvicted, s.Identity, map[string]any{
		"handle": int(s.Handle),
		"reason": reason,
	})
}

func (m *Manager) get(identity string) *Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[identity]
}

func (m *Manager) put(s *Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s.Identity] = s
	telemetry.FleetSlots.Set(float64(len(m.slots)))
}

// oldest возвращает слот с наименьшим StartedAt.
func (m *Manager) oldest() *Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest *Slot
	for _, s := range m.slots {
		if oldest == nil || s.StartedAt.Before(oldest.StartedAt) {
			oldest = s
		}
	}
	return oldest
}

// randomTTL возвращает TTL, равномерный в [MinTTL, MaxTTL]. Вызывается под opMu.
func (m *Manager) randomTTL() time.Duration {
	s := m.Settings()
	span := int64(s.MaxTTL - s.MinTTL)
	if span <= 0 {
		return s.MinTTL
	}
	return s.MinTTL + time.Duration(m.rnd.Int64N(span+1))
}

func (m *Manager) isAlive(ctx context.Context, path string) (bool, error) {
	var alive bool
	err := m.call(ctx, func(ctx context.Context) error {
		var err error
		alive, err = m.actuator.IsAlive(ctx, path)
		return err
	})
	return alive, err
}

func (m *Manager) spawn(ctx context.Context, path string) (actuator.Handle, error) {
	var h actuator.Handle
	err := m.call(ctx, func(ctx context.Context) error {
		var err error
		h, err = m.actuator.Spawn(ctx, path)
		return err
	})
	return h, err
}

// call выполняет вызов Actuator с таймаутом CallTimeout.
func (m *Manager) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	return fn(ctx)
}

// grace ждёт EvictGrace после вытеснения по ёмкости.
func (m *Manager) grace(ctx context.Context) error {
	if m.evictGrace <= 0 {
		return nil
	}

	timer := time.NewTimer(m.evictGrace)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Manager) emit(t domain.EventType, identity string, data map[string]any) {
	e := domain.NewEvent(t, data)
	e.Timestamp = m.now()
	e.Identity = identity
	m.events.Publish(e)
}
