package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/context"
)

type loggerCtxKey struct{}

const messageKey = "message"

var (
	keys         []string
	logMapCtxKey = loggerCtxKey{}
)

// Initialize installs the default handler. keyInput names context keys whose
// values are added to every record; a later call replaces them.
func Initialize(w io.Writer, debug bool, keyInput []string) {
	keys = append([]string(nil), keyInput...)
	slog.SetDefault(slog.New(NewHandler(w, debug)))
}

// NewHandler builds the JSON handler used by Initialize. Records pick up the
// values stored with AddLogValToCtx and the context keys passed to Initialize.
func NewHandler(w io.Writer, debug bool) slog.Handler {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if v, ok := a.Value.Any().(time.Duration); ok {
				a.Value = slog.StringValue(v.String())
			}
			if a.Key != slog.MessageKey {
				return a
			}
			a.Key = messageKey
			return a
		},
	}

	return &handler{
		Handler: slog.NewJSONHandler(w, opts),
	}
}

// IsDebug reports whether a LOG_LEVEL value selects debug output.
func IsDebug(level string) bool {
	return strings.EqualFold(strings.TrimSpace(level), "debug")
}

// AddLogValToCtx returns a context carrying key=val in addition to the values
// of ctx. The handler adds them to every record logged with that context.
// The parent's values are copied, so sibling contexts never see each other's keys.
func AddLogValToCtx(ctx context.Context, key string, val interface{}) context.Context {
	m := &sync.Map{}
	if parent, ok := ctx.Value(logMapCtxKey).(*sync.Map); ok {
		parent.Range(func(k, v any) bool {
			m.Store(k, v)
			return true
		})
	}
	m.Store(key, val)
	return context.WithValue(ctx, logMapCtxKey, m)
}

// Fatal logs msg through the default logger and exits the process.
func Fatal(ctx context.Context, msg string, args ...any) {
	slog.ErrorContext(ctx, msg, args...)
	os.Exit(1)
}
