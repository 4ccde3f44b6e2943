package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Autopilot/internal/domain"
)

// Gate — автомат состояний запуска.
//
// Переходы:
//
//	Idle|Completed|Failed --begin--> Running
//	Running --Pause--> Paused --Resume--> Running
//	Running|Paused --Abort--> Cancelling
//	* --finish--> Completed|Failed
//
// Сигналы, не подходящие к текущему состоянию, ничего не делают.
// Пауза ждёт на sync.Cond, без опроса.
type Gate struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state domain.RunState
}

// NewGate создаёт Gate в состоянии Idle.
func NewGate() *Gate {
	g := &Gate{state: domain.RunStateIdle}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// State возвращает текущее состояние.
func (g *Gate) State() domain.RunState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pause переводит Running в Paused. Возвращает true, если переход был.
func (g *Gate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != domain.RunStateRunning {
		return false
	}
	g.state = domain.RunStatePaused
	g.cond.Broadcast()
	return true
}

// Resume переводит Paused в Running и будит ожидающий запуск.
func (g *Gate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != domain.RunStatePaused {
		return false
	}
	g.state = domain.RunStateRunning
	g.cond.Broadcast()
	return true
}

// Abort помечает запуск на отмену. Отмена наблюдается
// в ближайшей контрольной точке между узлами.
func (g *Gate) Abort() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != domain.RunStateRunning && g.state != domain.RunStatePaused {
		return false
	}
	g.state = domain.RunStateCancelling
	g.cond.Broadcast()
	return true
}

// begin начинает новый запуск.
func (g *Gate) begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.IsActive() {
		return fmt.Errorf("%w: state %s", ErrAlreadyRunning, g.state)
	}
	g.state = domain.RunStateRunning
	return nil
}

// finish переводит запуск в терминальное состояние.
func (g *Gate) finish(state domain.RunState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
	g.cond.Broadcast()
}

// checkpoint — контрольная точка перед узлом.
//
// Блокируется, пока запуск на паузе. Возвращает ErrCancelled,
// если запрошена отмена или закрыт ctx.
func (g *Gate) checkpoint(ctx context.Context) error {
	// Закрытие ctx должно разбудить ожидание на паузе
	stop := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.cond.Broadcast()
	})
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	for g.state == domain.RunStatePaused && ctx.Err() == nil {
		g.cond.Wait()
	}

	if g.state == domain.RunStateCancelling {
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}
