// Package logging builds the daemon's slog logger from configuration.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"golang.org/x/term"

	"github.com/1broseidon/screenbridge/internal/config"
)

const scopeName = "github.com/1broseidon/screenbridge"

// Logger owns the configured handlers and any open log file.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
	file  *RotatingFile
}

// Setup creates a logger writing to console and, when configured, to a
// rotating JSON file and the OpenTelemetry log bridge.
func Setup(cfg config.LoggingConfig, console io.Writer) (*Logger, error) {
	if console == nil {
		console = os.Stderr
	}
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))

	handlers := []slog.Handler{consoleHandler(cfg.Format, console, level)}

	var file *RotatingFile
	if path := strings.TrimSpace(cfg.File); path != "" {
		f, err := OpenRotatingFile(path, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, err
		}
		file = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	}
	if cfg.OTel {
		handlers = append(handlers, otelslog.NewHandler(scopeName))
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = &fanout{level: level, handlers: handlers}
	}
	return &Logger{Logger: slog.New(h), level: level, file: file}, nil
}

// SetLevel changes the minimum level of every handler.
func (l *Logger) SetLevel(s string) {
	l.level.Set(ParseLevel(s))
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func consoleHandler(format string, w io.Writer, level *slog.LevelVar) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		return leveled{level: level, Handler: charmLogger(w, log.LogfmtFormatter)}
	default:
		if isTerminal(w) {
			return leveled{level: level, Handler: charmLogger(w, log.TextFormatter)}
		}
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
}

func charmLogger(w io.Writer, f log.Formatter) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           log.DebugLevel,
		Formatter:       f,
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// leveled gates a handler on a shared level.
type leveled struct {
	level *slog.LevelVar
	slog.Handler
}

func (h leveled) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return leveled{level: h.level, Handler: h.Handler.WithAttrs(attrs)}
}

func (h leveled) WithGroup(name string) slog.Handler {
	return leveled{level: h.level, Handler: h.Handler.WithGroup(name)}
}

// fanout sends each record to every handler that accepts it.
type fanout struct {
	level    *slog.LevelVar
	handlers []slog.Handler
}

func (f *fanout) Enabled(ctx context.Context, l slog.Level) bool {
	if l < f.level.Level() {
		return false
	}
	for _, h := range f.handlers {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &fanout{level: f.level, handlers: make([]slog.Handler, len(f.handlers))}
	for i, h := range f.handlers {
		out.handlers[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f *fanout) WithGroup(name string) slog.Handler {
	out := &fanout{level: f.level, handlers: make([]slog.Handler, len(f.handlers))}
	for i, h := range f.handlers {
		out.handlers[i] = h.WithGroup(name)
	}
	return out
}
