// Package pipelog provides the structured logging the pipeline emits
// (spec.md's Progress/Log component). It wraps log/slog with a
// TTY-aware pretty console handler, a JSON handler for machine
// consumption, and file rotation via lumberjack.
package pipelog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the logger New builds.
type Options struct {
	Level         string // debug|info|warn|error
	Format        string // console|json
	LogDir        string // if set, logs are also written to LogDir/scenepipe.log with rotation
	RetentionDays int
	RunID         string
}

// New builds a *slog.Logger per Options. Console output always goes to
// stderr; when LogDir is set a rotating file sink is added alongside it.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)

	var writers []io.Writer
	writers = append(writers, os.Stderr)

	if strings.TrimSpace(opts.LogDir) != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename: opts.LogDir + "/scenepipe.log",
			MaxAge:   maxAgeOrDefault(opts.RetentionDays),
			Compress: true,
		})
	}

	out := io.MultiWriter(writers...)

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = newJSONHandler(out, level)
	default:
		handler = newPrettyHandler(out, level, isatty.IsTerminal(os.Stderr.Fd()))
	}

	logger := slog.New(handler)
	if opts.RunID != "" {
		logger = logger.With(String("run_id", opts.RunID))
	}
	return logger, nil
}

func maxAgeOrDefault(days int) int {
	if days <= 0 {
		return 14
	}
	return days
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.MessageKey:
				a.Key = "msg"
			case slog.LevelKey:
				a.Key = "level"
				a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
			}
			return a
		},
	})
}

// prettyHandler renders "TIMESTAMP LEVEL component: message key=value..."
// lines, colorized when attached to a terminal. Grounded on the teacher's
// internal/logging prettyHandler: it implements slog.Handler directly
// rather than wrapping slog.TextHandler so it can pull the "component"
// attribute out of the field list and use it as a message prefix.
type prettyHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	color  bool
	attrs  []slog.Attr
	groups []string
}

func newPrettyHandler(w io.Writer, level slog.Level, useColor bool) *prettyHandler {
	return &prettyHandler{mu: &sync.Mutex{}, out: w, level: level, color: useColor}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	var buf bytes.Buffer

	buf.WriteString(record.Time.Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(h.levelLabel(record.Level))
	buf.WriteByte(' ')

	all := append([]slog.Attr{}, h.attrs...)
	record.Attrs(func(a slog.Attr) bool {
		all = append(all, a)
		return true
	})

	component := ""
	rest := make([]slog.Attr, 0, len(all))
	for _, a := range all {
		if a.Key == "component" && component == "" {
			component = a.Value.String()
			continue
		}
		rest = append(rest, a)
	}

	if component != "" {
		buf.WriteString(component)
		buf.WriteString(": ")
	}
	buf.WriteString(record.Message)

	flattened := flattenAttrs(h.groups, rest)
	for _, kv := range flattened {
		buf.WriteByte(' ')
		buf.WriteString(kv)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *prettyHandler) levelLabel(level slog.Level) string {
	label := level.String()
	if !h.color {
		return label
	}
	switch {
	case level >= slog.LevelError:
		return color.RedString(label)
	case level >= slog.LevelWarn:
		return color.YellowString(label)
	case level >= slog.LevelInfo:
		return color.CyanString(label)
	default:
		return color.HiBlackString(label)
	}
}

func flattenAttrs(prefix []string, attrs []slog.Attr) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, flattenAttr(prefix, a)...)
	}
	return out
}

func flattenAttr(prefix []string, a slog.Attr) []string {
	key := appendPrefix(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		var out []string
		for _, sub := range a.Value.Group() {
			out = append(out, flattenAttr(append(prefix, a.Key), sub)...)
		}
		return out
	}
	return []string{key + "=" + formatValue(a.Value)}
}

func appendPrefix(prefix []string, key string) string {
	if len(prefix) == 0 {
		return key
	}
	return strings.Join(prefix, ".") + "." + key
}

func formatValue(v slog.Value) string {
	s := v.String()
	if needsQuotes(s) {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t\n\"=")
}
