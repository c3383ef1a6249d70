package perf

import (
	"context"
	"sync"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
)

// Measurements times named operations. Each completed measurement is
// reported as a measure entry to the completion hook (usually the
// profiler's RecordEntry).
type Measurements struct {
	log        debuglog.Sink
	onComplete func(Entry)
	now        func() time.Time

	mu     sync.Mutex
	starts map[string]time.Time
}

// NewMeasurements creates a measurement table. onComplete may be nil.
func NewMeasurements(log debuglog.Sink, onComplete func(Entry)) *Measurements {
	if log == nil {
		log = debuglog.Discard()
	}
	return &Measurements{
		log:        log,
		onComplete: onComplete,
		now:        time.Now,
		starts:     make(map[string]time.Time),
	}
}

// Start marks the beginning of name, restarting it if already running.
func (m *Measurements) Start(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts[name] = m.now()
}

// End finishes name and returns its duration, or zero if it was never
// started.
func (m *Measurements) End(name string) time.Duration {
	m.mu.Lock()
	start, ok := m.starts[name]
	if ok {
		delete(m.starts, name)
	}
	onComplete := m.onComplete
	m.mu.Unlock()
	if !ok {
		return 0
	}

	d := m.now().Sub(start)
	m.log.Debug("Measurement completed", "name", name, "durationMs", float64(d)/float64(time.Millisecond))
	if onComplete != nil {
		onComplete(Entry{Name: name, Kind: EntryMeasure, Start: start, Duration: d})
	}
	return d
}

// SetCompletionHook replaces the function that receives completed
// measurements.
func (m *Measurements) SetCompletionHook(fn func(Entry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onComplete = fn
}

// Pending reports whether name has been started and not ended.
func (m *Measurements) Pending(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.starts[name]
	return ok
}

// Measure runs fn between Start and End and returns its error.
func (m *Measurements) Measure(ctx context.Context, name string, fn func(context.Context) error) error {
	m.Start(name)
	defer m.End(name)
	return fn(ctx)
}
