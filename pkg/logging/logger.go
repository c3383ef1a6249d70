package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger interface for dependency injection and testing
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
	SetLevel(level slog.Level)
}

// Config holds logger configuration
type Config struct {
	Level   slog.Level
	Format  Format
	Output  io.Writer
	AddTime bool

	// File, when set, replaces Output with a size-rotated log file.
	File *FileConfig
}

// FileConfig configures the rotating file writer.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Format represents the output format
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat maps "json" to FormatJSON and anything else to FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// ParseLevel maps a level name to a slog level, defaulting to info.
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

// slogLogger wraps slog.Logger to implement our Logger interface
type slogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) Logger {
	output := config.Output
	if config.File != nil && config.File.Path != "" {
		output = &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    orDefault(config.File.MaxSizeMB, 10),
			MaxBackups: orDefault(config.File.MaxBackups, 3),
			MaxAge:     orDefault(config.File.MaxAgeDays, 7),
			Compress:   config.File.Compress,
		}
	}
	if output == nil {
		output = os.Stderr
	}

	level := new(slog.LevelVar)
	level.Set(config.Level)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if !config.AddTime {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		}
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &slogLogger{
		logger: slog.New(handler),
		level:  level,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// NewDefaultLogger creates a logger with sensible defaults for CLI tools
func NewDefaultLogger() Logger {
	return NewLogger(Config{
		Level:  slog.LevelInfo,
		Format: FormatText,
		Output: os.Stderr,
	})
}

// NewQuietLogger creates a logger that only shows errors
func NewQuietLogger() Logger {
	return NewLogger(Config{
		Level:  slog.LevelError,
		Format: FormatText,
		Output: os.Stderr,
	})
}

// NewVerboseLogger creates a logger that shows debug information
func NewVerboseLogger() Logger {
	return NewLogger(Config{
		Level:  slog.LevelDebug,
		Format: FormatText,
		Output: os.Stderr,
	})
}

// NewDisabledLogger creates a logger that discards all output (useful for tests)
func NewDisabledLogger() Logger {
	return NewLogger(Config{
		Level:  slog.Level(1000),
		Format: FormatText,
		Output: io.Discard,
	})
}

// Debug logs a debug message
func (l *slogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an info message
func (l *slogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning message
func (l *slogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error message
func (l *slogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// With returns a logger with additional attributes.
// The derived logger shares the level of its parent.
func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{
		logger: l.logger.With(args...),
		level:  l.level,
	}
}

// WithGroup returns a logger with a group name
func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{
		logger: l.logger.WithGroup(name),
		level:  l.level,
	}
}

// SetLevel updates the logger's level dynamically
func (l *slogLogger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// NewComponentLogger tags every record with the component name.
func NewComponentLogger(base Logger, component string) Logger {
	if base == nil {
		base = NewDisabledLogger()
	}
	return base.With("component", component)
}
