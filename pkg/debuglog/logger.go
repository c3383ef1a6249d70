// Package debuglog is the toolkit's in-process log bus. Every component
// records diagnostic entries here; observers (the console, the remote
// debugger, plugins) receive each entry synchronously as it is logged.
package debuglog

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/logging"
	"github.com/kcaldas/devkit/pkg/ring"
)

// DefaultMaxEntries bounds the log history.
const DefaultMaxEntries = 1000

// Level is the severity of an entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// ParseLevel maps a name to a Level, defaulting to LevelDebug.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelInfo, LevelWarn, LevelError:
		return Level(s)
	case "warning":
		return LevelWarn
	default:
		return LevelDebug
	}
}

// Entry is one logged event.
type Entry struct {
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Topic implements events.Event.
func (Entry) Topic() string { return events.TopicLogEntry }

// CrashSink receives error entries outside development mode.
type CrashSink func(Entry)

// Options configures a Logger.
type Options struct {
	MaxEntries  int
	Development bool
	// Echo receives a copy of every entry in development mode and observer
	// failures in any mode.
	Echo      logging.Logger
	CrashSink CrashSink
	Now       func() time.Time
}

// Logger is a bounded, observable log history.
type Logger struct {
	history   *ring.Buffer[Entry]
	observers *events.Registry[Entry]
	echo      logging.Logger
	dev       bool
	now       func() time.Time

	mu        sync.RWMutex
	minLevel  Level
	crashSink CrashSink
}

// New creates a Logger.
func New(opts Options) *Logger {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Echo == nil {
		opts.Echo = logging.NewDisabledLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := &Logger{
		history:   ring.New[Entry](opts.MaxEntries),
		echo:      opts.Echo.With("component", "debuglog"),
		dev:       opts.Development,
		now:       opts.Now,
		minLevel:  LevelDebug,
		crashSink: opts.CrashSink,
	}
	l.observers = events.NewRegistry[Entry](func(err error) {
		// Reported to the process logger only; logging it here would recurse.
		l.echo.Error("log observer failed", "error", err)
	})
	return l
}

// Log appends an entry and notifies observers in registration order.
// args are alternating key/value pairs, as with log/slog.
func (l *Logger) Log(level Level, msg string, args ...any) {
	l.mu.RLock()
	minLevel := l.minLevel
	sink := l.crashSink
	l.mu.RUnlock()

	if level.rank() < minLevel.rank() {
		return
	}

	entry := Entry{
		Level:     level,
		Message:   msg,
		Timestamp: l.now(),
		Metadata:  metadata(args),
	}
	l.history.Push(entry)

	if l.dev {
		l.echoEntry(entry, args)
	} else if level == LevelError && sink != nil {
		sink(entry)
	}

	l.observers.Notify(entry)
}

func (l *Logger) Debug(msg string, args ...any) { l.Log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.Log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.Log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.Log(LevelError, msg, args...) }

// AddObserver registers fn for every subsequent entry.
func (l *Logger) AddObserver(fn func(Entry)) events.Unsubscribe {
	return l.observers.Add(fn)
}

// History returns a copy of the retained entries, oldest first.
func (l *Logger) History() []Entry {
	return l.history.Items()
}

// Errors returns the retained error-level entries.
func (l *Logger) Errors() []Entry {
	var out []Entry
	for _, e := range l.history.Items() {
		if e.Level == LevelError {
			out = append(out, e)
		}
	}
	return out
}

// Clear empties the history. Observers are not notified.
func (l *Logger) Clear() {
	l.history.Clear()
}

// SetLevel sets the minimum level that is recorded.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// Level returns the minimum recorded level.
func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minLevel
}

// SetCrashSink replaces the crash-reporting hook.
func (l *Logger) SetCrashSink(sink CrashSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.crashSink = sink
}

func (l *Logger) echoEntry(e Entry, args []any) {
	switch e.Level {
	case LevelDebug:
		l.echo.Debug(e.Message, args...)
	case LevelWarn:
		l.echo.Warn(e.Message, args...)
	case LevelError:
		l.echo.Error(e.Message, args...)
	default:
		l.echo.Info(e.Message, args...)
	}
}

// metadata folds slog-style key/value pairs into a map.
func metadata(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m := make(map[string]any, len(args)/2+1)
	for len(args) > 0 {
		switch k := args[0].(type) {
		case string:
			if len(args) == 1 {
				m["!BADKEY"] = k
				args = nil
				continue
			}
			m[k] = args[1]
			args = args[2:]
		case slog.Attr:
			m[k.Key] = k.Value.Any()
			args = args[1:]
		default:
			m["!BADKEY"] = fmt.Sprint(k)
			args = args[1:]
		}
	}
	return m
}

// Sink is the logging surface components depend on.
type Sink interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var _ Sink = (*Logger)(nil)

// Discard returns a Logger that keeps a minimal history and has no echo.
// Components use it when constructed without a log bus.
func Discard() *Logger {
	return New(Options{MaxEntries: 1})
}
