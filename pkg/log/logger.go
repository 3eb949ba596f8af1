package log

import (
	"io"
	"log/slog"

	"golang.org/x/net/context"
)

// Logger is a component-scoped logger. It is handed to each component as a
// dependency instead of being looked up globally.
type Logger struct {
	l *slog.Logger
}

// New wraps h in a Logger.
func New(h slog.Handler) *Logger {
	return &Logger{l: slog.New(h)}
}

// With returns a Logger bound to the current default handler.
func With(args ...any) *Logger {
	return &Logger{l: slog.Default().With(args...)}
}

// Discard returns a Logger that drops every record.
func Discard() *Logger {
	return &Logger{l: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{l: l.l.With(args...)}
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.l.InfoContext(ctx, msg, args...)
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.l.DebugContext(ctx, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.l.WarnContext(ctx, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.l.ErrorContext(ctx, msg, args...)
}
