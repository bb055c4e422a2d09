package logger

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

func Context(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}

// With дополняет логгер контекста атрибутами (например, dongle и pass).
func With(ctx context.Context, args ...any) context.Context {
	return Context(ctx, FromContext(ctx).With(args...))
}
