// Package cli реализует инструмент командной строки autopilot.
//
// CLI — клиент HTTP API агента и не импортирует его внутренние
// пакеты: типы ответов продублированы в client.go.
//
// Команды:
//   - status, start, pause, resume, stop — управление проходом
//   - fleet: list, launch, kill-all, settings
//   - workflow: list, show, import, default
//
// Данные выводятся таблицей (text/tabwriter) или JSON (--json) в
// stdout, сообщения — в stderr, так что работает
// autopilot fleet list --json | jq .
//
// Группы команд создаются фабриками (NewFleetCmd и т.д.), которые
// принимают clientFn и outputFn — замыкания, создающие Client и
// Output после разбора PersistentFlags.
package cli
