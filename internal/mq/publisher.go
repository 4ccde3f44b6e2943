package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Autopilot/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeEvent   MessageType = "automation.event"
	MessageTypeCommand MessageType = "control.command"
)

// defaultPublishTimeout — таймаут публикации события из шины.
const defaultPublishTimeout = 5 * time.Second

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, persistent bool) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: mode,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishEvent публикует событие в autopilot.events.
// Routing key — тип события; события не переживают рестарт брокера.
func (p *Publisher) PublishEvent(ctx context.Context, e domain.Event) error {
	return p.Publish(ctx, ExchangeEvents, eventRoutingKey(e), eventMessage(e), false)
}

// Forward публикует событие с собственным таймаутом и логирует ошибку.
func (p *Publisher) Forward(ctx context.Context, e domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	err := p.PublishEvent(ctx, e)
	if err != nil {
		p.logger.Warn("failed to forward event", "type", e.Type, "error", err)
	}
	return err
}

func eventRoutingKey(e domain.Event) RoutingKey {
	return RoutingKey(e.Type)
}

func eventMessage(e domain.Event) *Message {
	id := e.ID.String()
	if e.ID == uuid.Nil {
		id = uuid.NewString()
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Message{
		ID:        id,
		Type:      MessageTypeEvent,
		Payload:   e,
		Timestamp: ts,
	}
}
