package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/ncmreynolds/serial2mqtt/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "serial2mqtt"

// Output formats accepted in logging.format.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Logger is the bridge's structured logger. Every entry carries the service
// name and build version. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger writing to the stream named by cfg.Output (stderr, or
// stdout for anything else).
func New(cfg config.LoggingConfig, version string) *Logger {
	out := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg config.LoggingConfig, version string, out io.Writer) *Logger {
	h := newHandler(strings.ToLower(cfg.Format), parseLevel(cfg.Level), out)
	return &Logger{Logger: slog.New(h.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	}))}
}

// newHandler maps a format name to a handler. Unknown formats log JSON.
func newHandler(format string, level slog.Level, out io.Writer) slog.Handler {
	switch format {
	case FormatText:
		return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	case FormatConsole:
		return newConsoleHandler(out, level)
	default:
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}
}

// parseLevel is case-insensitive and falls back to info.
func parseLevel(level string) slog.Level {
	if l, ok := levelNames[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// With returns a child Logger that adds args to every entry.
//
//	log.With("component", "bridge").Info("started") // component=bridge
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the logger used until configuration has loaded: info level on
// stdout, coloured console lines on a terminal and JSON otherwise.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: defaultFormat(),
		Output: "stdout",
	}, "dev")
}

func defaultFormat() string {
	if color.NoColor {
		return FormatJSON
	}
	return FormatConsole
}
