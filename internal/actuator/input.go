package actuator

import (
	"context"
	"log/slog"
)

// InputDriver — низкоуровневая инъекция ввода.
//
// Local делегирует ему все примитивы ввода, оставляя себе
// управление процессами. Конкретная реализация зависит от ОС
// и подключается хостом.
type InputDriver interface {
	Move(ctx context.Context, x, y int) error
	Down(ctx context.Context, button Button) error
	Up(ctx context.Context, button Button) error
	Wheel(ctx context.Context, delta int) error
	Key(ctx context.Context, key string) error
	Combo(ctx context.Context, keys []string) error
	Type(ctx context.Context, text string) error
	Maximize(ctx context.Context) error
	Focus(ctx context.Context, pid int) error
}

// LogInput — InputDriver, который только пишет примитивы в лог.
// Используется в режиме dry-run и на хостах без графической сессии.
type LogInput struct {
	logger *slog.Logger
}

// NewLogInput создаёт LogInput.
func NewLogInput(logger *slog.Logger) *LogInput {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogInput{logger: logger.With("component", "input")}
}

func (d *LogInput) Move(ctx context.Context, x, y int) error {
	d.logger.DebugContext(ctx, "move", "x", x, "y", y)
	return nil
}

func (d *LogInput) Down(ctx context.Context, button Button) error {
	d.logger.DebugContext(ctx, "button down", "button", button)
	return nil
}

func (d *LogInput) Up(ctx context.Context, button Button) error {
	d.logger.DebugContext(ctx, "button up", "button", button)
	return nil
}

func (d *LogInput) Wheel(ctx context.Context, delta int) error {
	d.logger.DebugContext(ctx, "wheel", "delta", delta)
	return nil
}

func (d *LogInput) Key(ctx context.Context, key string) error {
	d.logger.DebugContext(ctx, "key", "key", key)
	return nil
}

func (d *LogInput) Combo(ctx context.Context, keys []string) error {
	d.logger.DebugContext(ctx, "combo", "keys", keys)
	return nil
}

func (d *LogInput) Type(ctx context.Context, text string) error {
	d.logger.DebugContext(ctx, "type", "chars", len([]rune(text)))
	return nil
}

func (d *LogInput) Maximize(ctx context.Context) error {
	d.logger.DebugContext(ctx, "maximize foreground")
	return nil
}

func (d *LogInput) Focus(ctx context.Context, pid int) error {
	d.logger.DebugContext(ctx, "focus", "pid", pid)
	return nil
}
