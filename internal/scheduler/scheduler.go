package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Autopilot/internal/orchestrator"
)

const defaultTickInterval = time.Second

// Controller — то, что кампания запускает.
type Controller interface {
	Start(ctx context.Context, opts orchestrator.Options) error
	Status() orchestrator.Status
}

// Campaign запускает Run Controller по cron-расписанию.
//
// В момент срабатывания контроллер стартует, только если он свободен;
// занятый контроллер пропускает срабатывание, следующее считается
// от текущего времени, так что пропуски не накапливаются.
type Campaign struct {
	controller Controller
	schedule   cron.Schedule
	expr       string
	loc        *time.Location
	options    func() orchestrator.Options
	tick       time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	nextDue time.Time
}

// Config — конфигурация Campaign.
type Config struct {
	Controller Controller

	// Expr — cron-выражение (5 полей или @-дескриптор).
	Expr string

	// Timezone — IANA-имя пояса для Expr (default: UTC).
	Timezone string

	// Options — параметры прохода на момент срабатывания.
	// nil — orchestrator.DefaultOptions.
	Options func() orchestrator.Options

	// TickInterval — период проверки (default: 1s).
	TickInterval time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// New создаёт кампанию и вычисляет первое срабатывание.
func New(cfg Config) (*Campaign, error) {
	if cfg.Controller == nil {
		return nil, ErrNoController
	}

	schedule, err := ParseCron(cfg.Expr)
	if err != nil {
		return nil, err
	}

	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	options := cfg.Options
	if options == nil {
		options = orchestrator.DefaultOptions
	}

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Campaign{
		controller: cfg.Controller,
		schedule:   schedule,
		expr:       cfg.Expr,
		loc:        loc,
		options:    options,
		tick:       tick,
		now:        now,
		logger:     logger.With("component", "campaign"),
	}
	c.nextDue = NextDue(schedule, loc, now())

	return c, nil
}

// NextDue возвращает время следующего срабатывания.
func (c *Campaign) NextDue() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextDue
}

// Tick проверяет, наступило ли срабатывание, и при необходимости
// запускает контроллер. Возвращает true, если проход был запущен.
func (c *Campaign) Tick(ctx context.Context) bool {
	now := c.now()

	c.mu.Lock()
	if now.Before(c.nextDue) {
		c.mu.Unlock()
		return false
	}
	due := c.nextDue
	c.nextDue = NextDue(c.schedule, c.loc, now)
	next := c.nextDue
	c.mu.Unlock()

	logger := c.logger.With("due", due, "next_due", next)

	if c.controller.Status().Running {
		logger.Info("controller busy, skipping campaign run")
		return false
	}

	err := c.controller.Start(ctx, c.options())
	switch {
	case err == nil:
		logger.Info("campaign run started")
		return true
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		logger.Info("controller busy, skipping campaign run")
	default:
		logger.Error("failed to start campaign run", "error", err)
	}
	return false
}

// Run вызывает Tick каждые TickInterval до отмены ctx.
func (c *Campaign) Run(ctx context.Context) error {
	c.logger.Info("campaign scheduled", "cron", c.expr, "tz", c.loc.String(), "next_due", c.NextDue())

	tk := time.NewTicker(c.tick)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			c.Tick(ctx)
		}
	}
}
