package perf

import (
	"context"
	"sync"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/ring"
)

const (
	DefaultInterval   = time.Second
	maxSnapshots      = 300
	maxMetricsHistory = 1000
)

// Profiler samples the provider on a timer and keeps a separate history of
// metrics converted from performance entries.
type Profiler struct {
	provider  Provider
	log       debuglog.Sink
	observers *events.Registry[Snapshot]
	snapshots *ring.Buffer[Snapshot]
	metrics   *ring.Buffer[Metric]
	now       func() time.Time

	mu        sync.Mutex
	recording bool
	gen       uint64
	cancel    context.CancelFunc
}

// NewProfiler creates a profiler that is not recording.
func NewProfiler(provider Provider, log debuglog.Sink) *Profiler {
	if provider == nil {
		provider = NewRuntimeProvider(nil, nil)
	}
	if log == nil {
		log = debuglog.Discard()
	}
	p := &Profiler{
		provider:  provider,
		log:       log,
		snapshots: ring.New[Snapshot](maxSnapshots),
		metrics:   ring.New[Metric](maxMetricsHistory),
		now:       time.Now,
	}
	p.observers = events.NewRegistry[Snapshot](func(err error) {
		log.Error("Performance observer error", "error", err.Error())
	})
	return p
}

// StartRecording samples every interval until StopRecording. It is a no-op
// while already recording.
func (p *Profiler) StartRecording(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	p.mu.Lock()
	if p.recording {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.recording = true
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.mu.Unlock()

	p.log.Info("Performance recording started", "interval", interval.String())
	go p.loop(ctx, gen, interval)
}

// StopRecording halts sampling. No sample starts after it returns.
func (p *Profiler) StopRecording() {
	p.mu.Lock()
	if !p.recording {
		p.mu.Unlock()
		return
	}
	p.recording = false
	p.gen++
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.log.Info("Performance recording stopped")
}

// IsRecording reports whether the timer is running.
func (p *Profiler) IsRecording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

func (p *Profiler) loop(ctx context.Context, gen uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.capture(gen)
		}
	}
}

func (p *Profiler) capture(gen uint64) {
	p.mu.Lock()
	current := p.recording && p.gen == gen
	p.mu.Unlock()
	if !current {
		return
	}

	snap, err := p.sample()
	if err != nil {
		p.log.Error("Failed to capture performance metrics", "error", err.Error())
		return
	}
	p.snapshots.Push(snap)
	p.observers.Notify(snap)
}

// Capture takes one sample immediately, records it and notifies observers.
func (p *Profiler) Capture() (Snapshot, error) {
	snap, err := p.sample()
	if err != nil {
		p.log.Error("Failed to capture performance metrics", "error", err.Error())
		return Snapshot{}, err
	}
	p.snapshots.Push(snap)
	p.observers.Notify(snap)
	return snap, nil
}

// Snapshot reads the provider without recording or notifying.
func (p *Profiler) Snapshot() Snapshot {
	snap, err := p.sample()
	if err != nil {
		return Snapshot{Timestamp: p.now()}
	}
	return snap
}

func (p *Profiler) sample() (snap Snapshot, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = events.RecoveredError(rec)
		}
	}()
	return Snapshot{
		Timestamp: p.now(),
		FPS:       p.provider.FPS(),
		Memory:    p.provider.Memory(),
		CPU:       p.provider.CPU(),
		Network:   p.provider.Network(),
	}, nil
}

// AddObserver registers fn for every recorded snapshot.
func (p *Profiler) AddObserver(fn func(Snapshot)) events.Unsubscribe {
	return p.observers.Add(fn)
}

// RecordEntry converts a performance entry into a metric and appends it to
// the metrics history. Observers are not notified.
func (p *Profiler) RecordEntry(e Entry) {
	ts := e.Start
	if ts.IsZero() {
		ts = p.now()
	}
	p.metrics.Push(Metric{
		Name:      e.Name,
		Timestamp: ts,
		Value:     float64(e.Duration) / float64(time.Millisecond),
		Type:      MetricTypeFor(e.Kind),
	})
}

// Metrics returns the metrics history, oldest first.
func (p *Profiler) Metrics() []Metric {
	return p.metrics.Items()
}

// ClearMetrics empties the metrics history.
func (p *Profiler) ClearMetrics() {
	p.metrics.Clear()
}

// Snapshots returns the recorded snapshots, oldest first.
func (p *Profiler) Snapshots() []Snapshot {
	return p.snapshots.Items()
}
