// Package orchestrator — Run Controller: проход по пулу идентичностей.
//
// # Проход
//
// Start запускает проход в отдельной горутине. Один обход:
//
//  1. ListIdentities, порядок перемешивается
//  2. для каждой идентичности PendingWork; без работы — identity_skipped
//  3. если работы больше ItemsPerIdentity, берётся случайная выборка
//  4. Fleet.Acquire, затем запуск графа с контекстом
//     identityKey, accountId, targetPath, targetHandle, payloadList
//  5. RecordOutcome для каждого затронутого элемента
//
// Ошибка одной идентичности (Acquire, узел графа) не останавливает
// проход. С ExcludeCompleted проход завершается, когда
// HasNoPendingWorkAnywhere вернёт true; иначе обходы повторяются
// с паузой LoopDelay до Stop. Обход, в котором ни у одной
// идентичности не нашлось работы, тоже завершает проход.
//
// # Результаты
//
//   - Граф выполнен: success (sent для запасного графа без workflow)
//   - Ошибка узла: failed
//   - Отмена: ничего не записывается
//
// Если в графе есть узел pasteList, записываются только вставленные
// им элементы.
//
// # Сигналы
//
// Pause, Resume и Stop действуют и между идентичностями, и внутри
// графа: контроллер передаёт движку свою контрольную точку через
// worker.WithCheckpoint. Stop ждёт завершения начатого узла и
// закрывает флот.
//
// # События
//
// automation_started, loop_started, no_identities, identity_skipped,
// identity_started, identity_completed, identity_failed, all_completed,
// automation_paused, automation_resumed, automation_stopping,
// automation_stopped, automation_error.
package orchestrator
