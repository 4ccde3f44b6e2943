// Package worker — Execution Engine: выполняет граф действий.
//
// # Обзор
//
// Worker берёт domain.Graph, упорядочивает узлы через engine и
// выполняет их по одному, передавая каждому обработчику из
// steps.Registry отрендеренную конфигурацию и общий Execution Context.
//
//	w := worker.New(worker.Config{
//	    Actuator: act,
//	    Events:   bus,
//	    Logger:   logger,
//	})
//
//	res, err := w.Start(ctx, graph, engine.NewContext(map[string]any{
//	    engine.KeyIdentity:   "+10000000000",
//	    engine.KeyTargetPath: "/accounts/1/Telegram.exe",
//	}))
//	if errors.Is(err, worker.ErrAlreadyRunning) {
//	    // предыдущий запуск ещё активен
//	}
//
// # Состояния
//
// Gate хранит RunState и сериализует переходы:
//
//	IDLE → RUNNING ⇄ PAUSED
//	RUNNING/PAUSED → CANCELLING → FAILED
//	RUNNING → COMPLETED | FAILED
//
// Pause, Resume и Abort — сигналы. Несовпадение с текущим состоянием
// делает их no-op. Пауза и отмена наблюдаются только в контрольной
// точке перед каждым узлом: начатый узел (вместе с delayBefore,
// delayAfter) всегда доигрывается. Ожидание паузы — sync.Cond,
// без опроса.
//
// Из COMPLETED и FAILED движок можно запустить снова, поэтому
// один Worker обслуживает весь цикл Run Controller'а.
//
// # Узлы
//
//   - Неизвестный тип: предупреждение, событие node_skipped, обход продолжается
//   - Ошибка обработчика: FAILED с *NodeError, без отката
//   - Отмена: FAILED с ErrCancelled
//
// # Циклы
//
// По умолчанию узлы, входящие в цикл, пропускаются с предупреждением
// (engine.Order). С Config.StrictCycles граф с циклом сразу завершается
// FAILED с engine.ErrCyclicDependency.
//
// # События
//
// node_started, node_completed, node_skipped, run_completed, run_failed
// публикуются в events.Sink без блокировки.
package worker
