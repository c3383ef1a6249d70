package perf

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
)

const (
	TargetFPS     = 60
	FrameDuration = time.Second / TargetFPS
	frameSlack    = 5 * time.Millisecond
)

// FrameSource delivers frame timestamps until ctx is done.
type FrameSource interface {
	Frames(ctx context.Context) <-chan time.Time
}

// TickerFrames emits frames at a fixed interval; zero means FrameDuration.
type TickerFrames struct {
	Interval time.Duration
}

// Frames implements FrameSource.
func (t TickerFrames) Frames(ctx context.Context) <-chan time.Time {
	interval := t.Interval
	if interval <= 0 {
		interval = FrameDuration
	}
	out := make(chan time.Time)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ts := <-ticker.C:
				select {
				case out <- ts:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// FrameReport summarises one monitoring session.
type FrameReport struct {
	TotalFrameDrops    int           `json:"totalFrameDrops"`
	AverageFPS         float64       `json:"averageFPS"`
	MonitoringDuration time.Duration `json:"monitoringDuration"`
}

// FrameMonitor detects dropped frames from a frame callback loop.
type FrameMonitor struct {
	source       FrameSource
	log          debuglog.Sink
	measurements *Measurements
	now          func() time.Time

	mu         sync.Mutex
	monitoring bool
	drops      int
	started    time.Time
	stopped    time.Time
	lastFrame  time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewFrameMonitor creates a stopped monitor. A nil source uses TickerFrames.
func NewFrameMonitor(source FrameSource, measurements *Measurements, log debuglog.Sink) *FrameMonitor {
	if source == nil {
		source = TickerFrames{}
	}
	if log == nil {
		log = debuglog.Discard()
	}
	if measurements == nil {
		measurements = NewMeasurements(log, nil)
	}
	return &FrameMonitor{
		source:       source,
		log:          log,
		measurements: measurements,
		now:          time.Now,
	}
}

// Start begins the frame loop. It is a no-op while already monitoring.
func (m *FrameMonitor) Start() {
	m.mu.Lock()
	if m.monitoring {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.monitoring = true
	m.drops = 0
	m.started = m.now()
	m.stopped = time.Time{}
	m.lastFrame = m.started
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	frames := m.source.Frames(ctx)
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ts, ok := <-frames:
				if !ok {
					return
				}
				m.onFrame(ts)
			}
		}
	}()
}

func (m *FrameMonitor) onFrame(ts time.Time) {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	delta := ts.Sub(m.lastFrame)
	m.lastFrame = ts
	dropped := 0
	if delta > FrameDuration+frameSlack {
		dropped = int(delta / FrameDuration)
		m.drops += dropped
	}
	m.mu.Unlock()

	if dropped > 1 {
		m.log.Warn("Frame drop detected", "droppedFrames", dropped, "location", "UI render", "timestamp", ts)
	}
}

// Stop halts the loop and logs the session report. Stopping an idle monitor
// returns an empty report.
func (m *FrameMonitor) Stop() FrameReport {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return FrameReport{}
	}
	m.monitoring = false
	m.stopped = m.now()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	report := m.Report()
	m.log.Info("UI Performance Report",
		"totalFrameDrops", report.TotalFrameDrops,
		"averageFPS", report.AverageFPS,
		"monitoringDuration", fmt.Sprintf("%.2fs", report.MonitoringDuration.Seconds()))
	return report
}

// IsMonitoring reports whether the frame loop runs.
func (m *FrameMonitor) IsMonitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoring
}

// Report computes the summary of the current or last session.
func (m *FrameMonitor) Report() FrameReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.now()
	if !m.monitoring && !m.stopped.IsZero() {
		end = m.stopped
	}
	var elapsed time.Duration
	if !m.started.IsZero() {
		elapsed = end.Sub(m.started)
	}
	return FrameReport{
		TotalFrameDrops:    m.drops,
		AverageFPS:         averageFPS(m.drops, elapsed),
		MonitoringDuration: elapsed,
	}
}

// CurrentFPS implements FPSSource.
func (m *FrameMonitor) CurrentFPS() float64 {
	return m.Report().AverageFPS
}

func averageFPS(drops int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return TargetFPS
	}
	return math.Max(0, TargetFPS-float64(drops)/elapsed.Seconds())
}

// MeasureRenderTime times fn as "<component>_render". A render error is
// logged and returned.
func (m *FrameMonitor) MeasureRenderTime(ctx context.Context, component string, fn func(context.Context) error) error {
	name := component + "_render"
	m.measurements.Start(name)
	defer m.measurements.End(name)

	if err := fn(ctx); err != nil {
		m.log.Error("Render error in "+component, "error", err.Error())
		return err
	}
	return nil
}
