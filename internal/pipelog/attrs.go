package pipelog

import (
	"context"
	"log/slog"
	"time"
)

// Attr re-exports slog.Attr so callers never import log/slog directly.
type Attr = slog.Attr

func Any(key string, value any) Attr        { return slog.Any(key, value) }
func Bool(key string, value bool) Attr      { return slog.Bool(key, value) }
func Duration(key string, d time.Duration) Attr { return slog.Duration(key, d) }
func Int(key string, value int) Attr        { return slog.Int(key, value) }
func Int64(key string, value int64) Attr    { return slog.Int64(key, value) }
func String(key, value string) Attr         { return slog.String(key, value) }

func Group(key string, attrs ...Attr) Attr {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return slog.Group(key, args...)
}

// Error renders err as a structured attribute, tolerating nil.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// Args flattens Attrs into the variadic form slog.Logger methods expect.
func Args(attrs ...Attr) []any {
	return attrsToArgs(attrs)
}

// Component returns a child logger carrying a standardized "component" field.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.New(NoopHandler{})
	}
	return logger.With(String("component", name))
}

// NoopHandler discards all log output; used as a safe fallback for a nil logger.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }
func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler         { return NoopHandler{} }
func (NoopHandler) WithGroup(string) slog.Handler              { return NoopHandler{} }
