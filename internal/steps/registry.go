package steps

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Autopilot/internal/domain"
)

// Registry — реестр обработчиков узлов.
//
// Позволяет регистрировать и получать реализации Step по типу.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[domain.NodeKind]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[domain.NodeKind]Step),
	}
}

// DefaultRegistry создаёт реестр со всеми известными типами узлов.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, step := range builtinSteps() {
		r.Register(step)
	}

	return r
}

// builtinSteps — по одному обработчику на каждый domain.NodeKind.
// TestDefaultRegistryCoversAllKinds следит, чтобы новый тип не остался без обработчика.
func builtinSteps() []Step {
	return []Step{
		NewDelayStep(),
		NewRandomDelayStep(),
		NewPointerMoveStep(),
		NewPointerClickStep(),
		NewPointerDoubleClickStep(),
		NewPointerScrollStep(),
		NewPointerDragStep(),
		NewKeyPressStep(),
		NewKeyComboStep(),
		NewTypeTextStep(),
		NewPasteListStep(),
		NewSpawnTargetStep(),
		NewTerminateTargetStep(),
		NewMaximizeForegroundStep(),
	}
}

// Register регистрирует шаг в реестре.
// Если шаг с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Kind()] = step
}

// Get возвращает шаг по типу.
// Возвращает ErrStepNotFound, если шаг не найден.
func (r *Registry) Get(kind domain.NodeKind) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, kind)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли шаг.
func (r *Registry) Has(kind domain.NodeKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[kind]
	return exists
}

// Kinds возвращает список всех зарегистрированных типов.
func (r *Registry) Kinds() []domain.NodeKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]domain.NodeKind, 0, len(r.steps))
	for k := range r.steps {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Unregister удаляет шаг из реестра.
func (r *Registry) Unregister(kind domain.NodeKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, kind)
}
