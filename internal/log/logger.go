package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with the application's field conventions
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	Output    io.Writer
	Handler   slog.Handler
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if strings.EqualFold(config.Format, "json") {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}

	logger := slog.New(handler)
	if config.Component != "" {
		logger = logger.With(FieldComponent, config.Component)
	}

	return &Logger{Logger: logger}
}

// Default returns a logger writing through slog.Default, tagged with component.
func Default(component string) *Logger {
	return New(Config{Component: component, Handler: slog.Default().Handler()})
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to a level.
// An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithComponent returns a new logger tagged with a different component name
func (l *Logger) WithComponent(component string) *Logger {
	return l.With(FieldComponent, component)
}

// LogError logs err with its operation
func (l *Logger) LogError(ctx context.Context, msg string, err error, operation string, args ...any) {
	fields := NewFields().WithError(err).WithOperation(operation).ToSlice()
	l.ErrorContext(ctx, msg, append(fields, args...)...)
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
