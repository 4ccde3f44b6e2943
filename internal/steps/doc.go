// Package steps содержит обработчики узлов графа действий.
//
// # Обзор
//
// Каждый обработчик отвечает за один domain.NodeKind:
//   - Получает конфигурацию (уже отрендеренную через engine.RenderConfig)
//   - Выполняет действие через actuator.Actuator
//   - Возвращает outputs для событий и журнала
//
// # Интерфейс Step
//
//	type Step interface {
//	    Kind() domain.NodeKind
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// Request содержит Config, Execution Context запуска, Actuator,
// Sleeper и источник случайности. Всё внешнее передаётся явно,
// глобального состояния у пакета нет.
//
// # Registry
//
//	registry := steps.DefaultRegistry()  // все 14 типов
//	step, err := registry.Get(domain.NodeKindPointerClick)
//	if errors.Is(err, steps.ErrStepNotFound) {
//	    // неизвестный тип
//	}
//
// # Типы узлов
//
// Паузы (delay.go): delay {duration}, randomDelay {minDuration, maxDuration}.
// Значения в секундах.
//
// Указатель (pointer.go): pointerMove, pointerClick, pointerDoubleClick
// {x, y, button}, pointerScroll {amount}, pointerDrag {startX, startY,
// endX, endY, duration(мс)}.
//
// Клавиатура (keyboard.go): keyPress {key}, keyCombo {keys}, typeText
// {text, slow, charDelay(мс)}, pasteList {channelCount}.
//
// Процессы (process.go): spawnTarget {exePath | useDynamic,
// waitAfterLaunch}, terminateTarget {usePid | exePath},
// maximizeForeground.
//
// Все типы, кроме delay и randomDelay, понимают delayBefore и
// delayAfter (секунды).
//
// # Обработка ошибок
//
//	var (
//	    ErrStepNotFound   // нет обработчика
//	    ErrInvalidConfig  // неверная конфигурация
//	    ErrStepCancelled  // ctx закрыт во время паузы
//	    ErrNoActuator     // Request без Actuator
//	)
//
// Ошибки актуатора возвращаются как есть. Решение о судьбе run
// принимает worker.
package steps
