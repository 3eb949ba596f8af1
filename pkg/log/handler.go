package log

import (
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/net/context"
)

// handler adds the values carried by the record's context before passing it
// on to the wrapped handler.
type handler struct {
	slog.Handler
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(ctxAttrs(ctx)...)
	return h.Handler.Handle(ctx, r)
}

// ctxAttrs collects the AddLogValToCtx values sorted by key, then the values
// of the context keys registered with Initialize.
func ctxAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if m, ok := ctx.Value(logMapCtxKey).(*sync.Map); ok {
		m.Range(func(key, value any) bool {
			if key, ok := key.(string); ok {
				attrs = append(attrs, slog.Any(key, value))
			}
			return true
		})
		sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	}
	for _, key := range keys {
		if v := ctx.Value(key); v != nil {
			attrs = append(attrs, slog.Any(key, v))
		}
	}
	return attrs
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{Handler: h.Handler.WithGroup(name)}
}
