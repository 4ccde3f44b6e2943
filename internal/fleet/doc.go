// Package fleet — Fleet Manager: ограниченный пул запущенных процессов.
//
// # Обзор
//
// Manager держит не больше MaxSlots процессов, по одному на
// идентичность (аккаунт). Каждый слот живёт случайный TTL из
// [MinTTL, MaxTTL] и затем вытесняется ExpireSweep. Rotate по кругу
// выводит окна на передний план и кликает в TouchPoint, чтобы
// целевое приложение не считало их простаивающими.
//
//	m := fleet.New(fleet.Config{
//	    Actuator: act,
//	    Events:   bus,
//	    MaxSlots: 10,
//	})
//	m.Start(ctx)
//	defer m.Stop()
//
//	h, err := m.Acquire(ctx, "+10000000000", "/accounts/1/Telegram.exe")
//	switch {
//	case errors.Is(err, fleet.ErrTargetNotFound):
//	case errors.Is(err, fleet.ErrLaunchFailure):
//	}
//
// # Инварианты
//
//   - Count() <= MaxSlots в любой наблюдаемый момент: вытеснение
//     самого старого слота происходит до вставки нового.
//   - Живость существующего слота проверяется через Actuator.IsAlive
//     по пути: процесс мог перезапуститься с другим PID.
//   - Вытеснение завершает процесс по handle и по пути и удаляет слот
//     безусловно, даже если завершить не удалось.
//
// # Конкурентность
//
// Acquire, ExpireSweep, Evict и KillAll сериализованы. Count,
// ActiveSlots и Rotate не ждут медленных вызовов Actuator. Таймеры
// sweep и rotate независимы: если предыдущий тик ещё выполняется,
// следующий пропускается.
package fleet
