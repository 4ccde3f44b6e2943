package steps

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sleeper — пауза внутри узла.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper — пауза на таймере. Прерывается только закрытием ctx.
type TimerSleeper struct{}

// Sleep ждёт d или закрытия ctx.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// Контекст отменён — graceful shutdown
		return fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// InstantSleeper — Sleeper без реального ожидания, запоминает паузы.
// Используется в тестах и для сухого прогона графа.
type InstantSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

// Sleep запоминает d и сразу возвращается.
func (s *InstantSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStepCancelled, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return nil
}

// Slept возвращает все ненулевые паузы по порядку.
func (s *InstantSleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

// Total возвращает сумму пауз.
func (s *InstantSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Slept() {
		total += d
	}
	return total
}
