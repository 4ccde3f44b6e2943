// Package config загружает конфигурацию агента из переменных окружения.
//
// Все значения имеют значения по умолчанию, пригодные для локального запуска.
// Некорректные значения молча заменяются значениями по умолчанию,
// согласованность проверяет Config.Validate.
package config
