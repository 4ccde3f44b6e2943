// Package scheduler запускает кампании по расписанию.
//
// Кампания — проход Run Controller'а, который стартует по
// cron-выражению (CAMPAIGN_CRON) в заданном часовом поясе
// (CAMPAIGN_TZ). Если к моменту срабатывания предыдущий проход
// ещё идёт, срабатывание пропускается.
//
// Использование:
//
//	campaign, err := scheduler.New(scheduler.Config{
//	    Controller: orch,
//	    Expr:       "0 9 * * 1-5",
//	    Timezone:   "Europe/Moscow",
//	    Logger:     logger,
//	})
//	if err != nil {
//	    return err
//	}
//	go campaign.Run(ctx)
package scheduler
