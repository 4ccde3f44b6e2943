// Package actuator абстрагирует все побочные действия на уровне ОС.
//
// # Интерфейс Actuator
//
// Одна точка для ввода (курсор, клавиши, текст), управления окнами
// и процессами (запуск, завершение, проверка живости по пути exe).
// Execution Engine и Fleet Manager получают Actuator явно через Config,
// глобального состояния нет.
//
// # Реализации
//
//   - Local    — текущий хост: os/exec для запуска, procfs для поиска
//     процессов по пути, InputDriver для ввода
//   - Recorder — в памяти: пишет журнал вызовов, моделирует живость
//     процессов; используется в тестах всех пакетов
//
// # Живость по пути
//
// Целевое приложение умеет перезапускать себя (например, после
// обновления) с новым PID. Поэтому Fleet Manager доверяет только
// IsAlive(path), а не сохранённому handle.
package actuator
