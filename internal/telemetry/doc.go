// Package telemetry — логи и метрики агента.
//
// logging.go настраивает log/slog по LOG_LEVEL и LOG_FORMAT и даёт
// помощники для полей run_id, identity, node_id и слота флота.
// metrics.go объявляет Prometheus-метрики с префиксом autopilot_;
// их отдаёт /metrics HTTP API.
package telemetry
