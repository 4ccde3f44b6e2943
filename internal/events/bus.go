package events

import (
	"log/slog"
	"sync"

	"github.com/shaiso/Autopilot/internal/domain"
	"github.com/shaiso/Autopilot/internal/telemetry"
)

const defaultBuffer = 256

// Sink — получатель событий.
type Sink interface {
	Publish(e domain.Event)
}

// Discard — Sink, который ничего не делает.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(domain.Event) {}

// Bus — буферизованный канал событий.
type Bus struct {
	mu     sync.RWMutex
	ch     chan domain.Event
	closed bool
	logger *slog.Logger
}

// NewBus создаёт шину с буфером size (по умолчанию 256).
func NewBus(size int, logger *slog.Logger) *Bus {
	if size <= 0 {
		size = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		ch:     make(chan domain.Event, size),
		logger: logger,
	}
}

// Publish кладёт событие в буфер без блокировки.
func (b *Bus) Publish(e domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	select {
	case b.ch <- e:
	default:
		telemetry.EventsDropped.Inc()
		b.logger.Warn("event dropped, bus buffer full", "type", e.Type)
	}
}

// C возвращает канал для чтения событий.
// Канал закрывается после Close.
func (b *Bus) C() <-chan domain.Event {
	return b.ch
}

// Close закрывает шину. Повторный вызов безопасен.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}

// Collector — Sink в памяти для тестов и сухого прогона.
type Collector struct {
	mu     sync.Mutex
	events []domain.Event
}

// Publish запоминает событие.
func (c *Collector) Publish(e domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events возвращает копию собранных событий.
func (c *Collector) Events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}

// Types возвращает типы собранных событий по порядку.
func (c *Collector) Types() []domain.EventType {
	events := c.Events()
	types := make([]domain.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

// Count возвращает число событий данного типа.
func (c *Collector) Count(t domain.EventType) int {
	n := 0
	for _, e := range c.Events() {
		if e.Type == t {
			n++
		}
	}
	return n
}

var (
	_ Sink = (*Bus)(nil)
	_ Sink = (*Collector)(nil)
)
