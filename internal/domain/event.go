package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события, которое ядро отдаёт наружу.
type EventType string

// События Run Controller'а.
const (
	EventAutomationStarted  EventType = "automation_started"
	EventLoopStarted        EventType = "loop_started"
	EventNoIdentities       EventType = "no_identities"
	EventIdentitySkipped    EventType = "identity_skipped"
	EventIdentityStarted    EventType = "identity_started"
	EventIdentityCompleted  EventType = "identity_completed"
	EventIdentityFailed     EventType = "identity_failed"
	EventAllCompleted       EventType = "all_completed"
	EventAutomationPaused   EventType = "automation_paused"
	EventAutomationResumed  EventType = "automation_resumed"
	EventAutomationStopping EventType = "automation_stopping"
	EventAutomationStopped  EventType = "automation_stopped"
	EventAutomationError    EventType = "automation_error"
)

// События Execution Engine.
const (
	EventNodeStarted   EventType = "node_started"
	EventNodeCompleted EventType = "node_completed"
	EventNodeSkipped   EventType = "node_skipped"
	EventRunCompleted  EventType = "run_completed"
	EventRunFailed     EventType = "run_failed"
)

// События Fleet Manager.
const (
	EventSlotLaunched EventType = "slot_launched"
	EventSlotEvicted  EventType = "slot_evicted"
)

// Event — событие для хоста (UI, журнал, очередь).
//
// Ядро не вызывает колбэки: события пишутся в канал,
// который хост вычитывает сам.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	Identity  string         `json:"identity,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	NodeID    string         `json:"node_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent создаёт событие с новым ID и текущим временем.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// IsFailure возвращает true для событий об ошибках.
func (e Event) IsFailure() bool {
	switch e.Type {
	case EventIdentityFailed, EventRunFailed, EventAutomationError:
		return true
	default:
		return false
	}
}
