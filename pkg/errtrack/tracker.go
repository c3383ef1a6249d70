// Package errtrack records failures reported by the host together with the
// device and performance context they happened in.
package errtrack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/device"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/perf"
	"github.com/kcaldas/devkit/pkg/store"
)

// MaxHistory bounds the in-memory error history.
const MaxHistory = 50

// Severity classifies a tracked error.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Context describes where an error happened.
type Context struct {
	Severity       Severity       `json:"severity"`
	Timestamp      time.Time      `json:"timestamp"`
	ComponentStack string         `json:"componentStack,omitempty"`
	AdditionalData map[string]any `json:"additionalData,omitempty"`
}

// Report is one tracked error.
type Report struct {
	ID                 string        `json:"id"`
	Error              string        `json:"error"`
	Context            Context       `json:"context"`
	DeviceInfo         device.Info   `json:"deviceInfo"`
	PerformanceMetrics perf.Snapshot `json:"performanceMetrics"`

	err error
}

// Unwrap returns the tracked error.
func (r Report) Unwrap() error { return r.err }

// DeviceSource supplies device details.
type DeviceSource interface {
	Info() device.Info
}

// MetricsSource supplies a current performance reading.
type MetricsSource interface {
	Snapshot() perf.Snapshot
}

// Persister stores tracked errors outside the process.
type Persister interface {
	PersistError(ctx context.Context, r Report) error
}

// FatalFunc runs after a fatal error has been recorded.
type FatalFunc func(ctx context.Context, r Report) error

// Options configures a Tracker. Every field is optional.
type Options struct {
	Log       debuglog.Sink
	Device    DeviceSource
	Metrics   MetricsSource
	Persister Persister
	OnFatal   FatalFunc
	Now       func() time.Time
}

// Tracker keeps the most recent tracked errors, newest first.
type Tracker struct {
	opts     Options
	handlers *events.Registry[Report]

	mu      sync.RWMutex
	history []Report
}

// New creates a tracker.
func New(opts Options) *Tracker {
	if opts.Log == nil {
		opts.Log = debuglog.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Tracker{opts: opts}
	t.handlers = events.NewRegistry[Report](func(err error) {
		t.opts.Log.Error("Error handler failed", "error", err.Error())
	})
	return t
}

// AddHandler registers fn for every tracked error.
func (t *Tracker) AddHandler(fn func(Report)) events.Unsubscribe {
	return t.handlers.Add(fn)
}

// SetFatalHandler replaces the fatal hook.
func (t *Tracker) SetFatalHandler(fn FatalFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts.OnFatal = fn
}

// Track records err. A zero severity means SeverityError and a zero
// timestamp means now.
func (t *Tracker) Track(ctx context.Context, err error, c Context) Report {
	if err == nil {
		err = errors.New("unknown error")
	}
	if c.Severity == "" {
		c.Severity = SeverityError
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = t.opts.Now()
	}

	r := Report{
		ID:      uuid.NewString(),
		Error:   err.Error(),
		Context: c,
		err:     err,
	}
	if t.opts.Device != nil {
		r.DeviceInfo = t.opts.Device.Info()
	}
	if t.opts.Metrics != nil {
		r.PerformanceMetrics = t.opts.Metrics.Snapshot()
	}

	t.mu.Lock()
	t.history = append([]Report{r}, t.history...)
	if len(t.history) > MaxHistory {
		t.history = t.history[:MaxHistory]
	}
	onFatal := t.opts.OnFatal
	t.mu.Unlock()

	t.handlers.Notify(r)

	if t.opts.Persister != nil {
		if perr := t.opts.Persister.PersistError(ctx, r); perr != nil {
			t.opts.Log.Error("Failed to persist error", "error", perr.Error())
		}
	}

	if c.Severity == SeverityFatal && onFatal != nil {
		if ferr := onFatal(ctx, r); ferr != nil {
			t.opts.Log.Error("Failed to handle fatal error", "error", ferr.Error())
		}
	}

	t.opts.Log.Error("Error tracked",
		"error", r.Error,
		"severity", string(c.Severity),
		"componentStack", c.ComponentStack,
	)
	return r
}

// Recover is deferred by goroutines the host wants covered. A recovered
// panic is tracked with the given severity and its stack, then swallowed.
func (t *Tracker) Recover(ctx context.Context, severity Severity) {
	rec := recover()
	if rec == nil {
		return
	}
	t.Track(ctx, events.RecoveredError(rec), Context{
		Severity:       severity,
		ComponentStack: string(debug.Stack()),
		AdditionalData: map[string]any{"type": "panic"},
	})
}

// History returns the tracked errors, newest first.
func (t *Tracker) History() []Report {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Report, len(t.history))
	copy(out, t.history)
	return out
}

// Clear empties the in-memory history.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
}

// StorePersister writes reports to the SQLite error table.
type StorePersister struct {
	Store *store.Store
}

// PersistError implements Persister.
func (p StorePersister) PersistError(ctx context.Context, r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding error report: %w", err)
	}
	_, err = p.Store.SaveError(ctx, store.ErrorRecord{
		Message:   r.Error,
		Severity:  string(r.Context.Severity),
		CreatedAt: r.Context.Timestamp,
		Data:      string(data),
	})
	return err
}
