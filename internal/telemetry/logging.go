package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel читает LOG_LEVEL: DEBUG, INFO, WARN или ERROR (регистр не важен).
// Пустое или неизвестное значение — INFO.
func LogLevel() slog.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger создаёт логгер процесса и делает его глобальным.
//
// LOG_FORMAT=text включает человекочитаемый вывод, иначе JSON.
// Каждая запись несёт поле service.
func SetupLogger(service string) *slog.Logger {
	logger := NewLogger(os.Stdout, os.Getenv("LOG_FORMAT"), LogLevel()).With("service", service)
	slog.SetDefault(logger)
	return logger
}

// NewLogger создаёт логгер в формате format ("text" или "json").
// На уровне DEBUG в записи добавляется место вызова.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

type ctxKey struct{}

// WithLogger кладёт логгер в контекст. Так обработчики узлов получают
// логгер с run_id и node_id, не зная о Worker.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext достаёт логгер из контекста или возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID добавляет run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithIdentity добавляет identity.
func WithIdentity(logger *slog.Logger, identity string) *slog.Logger {
	return logger.With("identity", identity)
}

// WithNodeID добавляет node_id.
func WithNodeID(logger *slog.Logger, nodeID string) *slog.Logger {
	return logger.With("node_id", nodeID)
}

// WithSlot добавляет поля слота флота.
func WithSlot(logger *slog.Logger, identity string, handle int) *slog.Logger {
	return logger.With("identity", identity, "handle", handle)
}
