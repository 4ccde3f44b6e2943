// Package api — HTTP API агента.
//
// Структура:
//   - handler.go            — Handler с DI (control.Service, хранилища, logger)
//   - routes.go             — регистрация маршрутов, /healthz и /metrics
//   - middleware.go         — logging, recovery
//   - response.go           — унифицированные JSON-ответы и перевод ошибок в HTTP
//   - dto.go                — Data Transfer Objects (request/response)
//   - automation_handler.go — /status и /automation/*
//   - fleet_handler.go      — /fleet/*
//   - workflow_handler.go   — /workflows
//   - log_handler.go        — /logs и /stats
//
// Ответы оборачиваются в {"data": ...}, ошибки — в {"error": {code, message}}.
package api
