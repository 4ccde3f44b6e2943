// Package control — единая точка управления агентом.
//
// Service объединяет Run Controller, Fleet Manager и хранилище
// настроек; им пользуются HTTP API и Dispatcher. Dispatcher читает
// команды из RabbitMQ (start, stop, pause, resume, kill_all, launch,
// update_settings) и отклоняет в DLQ те, что повтор не исправит.
package control
