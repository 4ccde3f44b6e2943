// Package repo — хранилище агента поверх PostgreSQL (pgx).
//
// Таблицы (schema.sql, создаются Migrate):
//   - accounts — аккаунты, phone_number — ключ идентичности
//   - channels — единицы работы (ссылки)
//   - join_requests — результат по паре (аккаунт, канал), одна запись на пару
//   - workflows — графы действий, не больше одного is_default
//   - settings — ключ → JSON (границы TTL флота)
//   - automation_logs — журнал событий
//
// WorkSource связывает эти таблицы с Run Controller'ом.
package repo
