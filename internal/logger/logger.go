// Package logger provides the daemon's own structured, context-aware
// logging façade. It is distinct from internal/logsink, which captures
// per-script stdout/stderr — this package is for scriptd's own operational
// log (startup, scheduling decisions, health-check results).
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how the daemon log is written.
type Config struct {
	// FilePath is the rotating log file path. Empty disables file logging.
	FilePath string
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int
	// MaxBackups bounds the number of rotated files kept.
	MaxBackups int
	// MaxAgeDays bounds the age of rotated files kept.
	MaxAgeDays int
	// AlsoStdout additionally writes every record to stdout.
	AlsoStdout bool
	// Debug lowers the minimum level to slog.LevelDebug.
	Debug bool
	// JSON selects JSON output instead of text.
	JSON bool
}

// correlationIDKey is the context key a run's correlation id is stored
// under; Info/Warn/Error/Debug pull it out automatically when present.
type correlationIDKey struct{}

// WithRunID returns a context carrying the given correlation id, so that
// every log line emitted through it is tagged with "run_id".
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, runID)
}

// New builds a *slog.Logger per cfg. Writers are combined with slog-multi's
// fanout handler so the same record can land in the rotating file and on
// stdout without duplicating Handle logic.
func New(cfg Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var writers []io.Writer
	if cfg.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    firstPositive(cfg.MaxSizeMB, 50),
			MaxBackups: firstPositive(cfg.MaxBackups, 10),
			MaxAge:     firstPositive(cfg.MaxAgeDays, 28),
			Compress:   true,
			LocalTime:  true,
		})
	}
	if cfg.AlsoStdout || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		opts := &slog.HandlerOptions{Level: level}
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(w, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 1:
		handler = handlers[0]
	default:
		handler = slogmulti.Fanout(handlers...)
	}

	return slog.New(handler)
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

var defaultLogger = slog.Default()

// Init installs l as the package-level logger used by the context-aware
// helpers below. Call once from Bootstrap; components otherwise take a
// *slog.Logger explicitly.
func Init(l *slog.Logger) {
	defaultLogger = l
}

func withRunID(ctx context.Context, args []any) []any {
	if runID, ok := ctx.Value(correlationIDKey{}).(string); ok && runID != "" {
		return append([]any{"run_id", runID}, args...)
	}
	return args
}

// Info logs at info level, including the ctx's correlation id if present.
func Info(ctx context.Context, msg string, args ...any) {
	defaultLogger.InfoContext(ctx, msg, withRunID(ctx, args)...)
}

// Warn logs at warn level, including the ctx's correlation id if present.
func Warn(ctx context.Context, msg string, args ...any) {
	defaultLogger.WarnContext(ctx, msg, withRunID(ctx, args)...)
}

// Error logs at error level, including the ctx's correlation id if present.
func Error(ctx context.Context, msg string, args ...any) {
	defaultLogger.ErrorContext(ctx, msg, withRunID(ctx, args)...)
}

// Debug logs at debug level, including the ctx's correlation id if present.
func Debug(ctx context.Context, msg string, args ...any) {
	defaultLogger.DebugContext(ctx, msg, withRunID(ctx, args)...)
}
