// Package engine содержит всё, что нужно для понимания графа действий.
//
// Включает:
//   - parser.go   — разбор графа из JSON редактора, валидация, запасной граф
//   - dag.go      — построение DAG и упорядочивание (алгоритм Кана)
//   - context.go  — Execution Context, общий для узлов одного запуска
//   - template.go — рендеринг Go templates по данным контекста ({{ .identityKey }})
//
// # Порядок выполнения
//
// Order строит линейный порядок, в котором каждое ребро (s, t) соблюдено.
// Готовые узлы стоят в FIFO-очереди: корни в порядке объявления,
// освободившиеся узлы в хвосте. Граф без рёбер выполняется в порядке
// объявления.
//
// Узлы, входящие в цикл, никогда не получают нулевую степень. Order их
// молча отбрасывает (поведение по умолчанию, совместимое с редактором),
// OrderStrict возвращает CycleError. Выбор делает worker.Config.StrictCycles.
package engine
