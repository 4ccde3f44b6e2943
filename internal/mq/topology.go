package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEvents  Exchange = "autopilot.events"
	ExchangeControl Exchange = "autopilot.control"
	ExchangeDLQ     Exchange = "autopilot.dlq"
)

// Queues — имена очередей.
const (
	QueueControlCommands Queue = "control.commands"
	QueueEventsAudit     Queue = "events.audit"
	QueueDLQControl      Queue = "dlq.control"
)

// Routing keys.
const (
	RoutingKeyCommand    RoutingKey = "command"
	RoutingKeyAllEvents  RoutingKey = "#"
	RoutingKeyDLQControl RoutingKey = "control"
)

// auditQueueMaxLength — потолок очереди аудита: если её никто
// не читает, старые события вытесняются.
const auditQueueMaxLength = 10000

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeControl, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// control.commands — отклонённые команды уходят в DLQ
		{QueueControlCommands, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQControl),
		}},

		// events.audit — копия всех событий для внешних потребителей
		{QueueEventsAudit, amqp.Table{
			"x-max-length": int32(auditQueueMaxLength),
			"x-overflow":   "drop-head",
		}},

		{QueueDLQControl, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueControlCommands, RoutingKeyCommand, ExchangeControl},
		{QueueEventsAudit, RoutingKeyAllEvents, ExchangeEvents},
		{QueueDLQControl, RoutingKeyDLQControl, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Autopilot RabbitMQ Topology:

    autopilot.events (topic)
    └── events.audit [routing: #, max 10000, drop-head]
            routing key = тип события (identity_failed, slot_evicted, ...)

    autopilot.control (direct)
    └── control.commands [routing: command]
            Consumer: agent (control.Dispatcher)
            DLQ: dlq.control

    autopilot.dlq (direct)
    └── dlq.control [routing: control]
            Manual processing
  `
}
