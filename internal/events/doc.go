// Package events — шина событий ядра.
//
// Компоненты (worker, fleet, orchestrator) не вызывают колбэки хоста.
// Они публикуют domain.Event в Sink, а хост вычитывает канал Bus.C()
// в своём темпе: пишет в журнал, отправляет в RabbitMQ, показывает в UI.
//
// Publish никогда не блокирует. Если буфер заполнен, событие
// отбрасывается и учитывается в метрике events_dropped_total.
package events
