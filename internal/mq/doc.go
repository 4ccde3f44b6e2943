// Package mq связывает агента с RabbitMQ.
//
// Агент публикует все события ядра в topic-обменник autopilot.events
// (routing key — тип события) и принимает команды управления из
// очереди control.commands. Отклонённые команды уходят в dlq.control.
//
// Брокер необязателен: без него агент работает, события остаются
// в журнале и логах.
package mq
