// Package memleak samples heap usage with component and subscription counts
// and flags probable leaks between consecutive samples.
package memleak

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
)

const (
	DefaultInterval = 10 * time.Second
	// LeakThreshold is the heap growth between samples that triggers
	// leak analysis.
	LeakThreshold = 5 * 1024 * 1024
	// componentGrowth is the ratio above which a component count is flagged.
	componentGrowth = 1.5
)

// HeapSampler reports heap bytes in use and reserved.
type HeapSampler interface {
	Heap() (used, total uint64)
}

// RuntimeHeap samples the Go runtime heap.
type RuntimeHeap struct{}

// Heap implements HeapSampler.
func (RuntimeHeap) Heap() (used, total uint64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, ms.HeapSys
}

// Snapshot is one heap measurement.
type Snapshot struct {
	Timestamp     time.Time      `json:"timestamp"`
	HeapUsed      uint64         `json:"heapUsed"`
	HeapTotal     uint64         `json:"heapTotal"`
	Components    map[string]int `json:"components"`
	Subscriptions map[string]int `json:"subscriptions"`

	seq uint64
}

// LeakKind tells component and subscription findings apart.
type LeakKind string

const (
	LeakComponent    LeakKind = "component"
	LeakSubscription LeakKind = "subscription"
)

// Leak is one heuristic finding.
type Leak struct {
	Kind          LeakKind  `json:"kind"`
	Name          string    `json:"name"`
	PreviousCount int       `json:"previousCount"`
	CurrentCount  int       `json:"currentCount"`
	Timestamp     time.Time `json:"timestamp"`
}

// Topic implements events.Event.
func (Leak) Topic() string { return events.TopicMemoryLeak }

// Detector takes periodic snapshots while monitoring and compares each one
// with the one before it.
type Detector struct {
	heap    HeapSampler
	tracker *Tracker
	log     debuglog.Sink
	onLeak  *events.Registry[Leak]
	now     func() time.Time

	mu         sync.Mutex
	snapshots  []Snapshot
	monitoring bool
	gen        uint64
	seq        uint64
	cancel     context.CancelFunc
}

// NewDetector creates a stopped detector. A nil heap sampler uses
// RuntimeHeap and a nil tracker a fresh one.
func NewDetector(heap HeapSampler, tracker *Tracker, log debuglog.Sink) *Detector {
	if heap == nil {
		heap = RuntimeHeap{}
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	if log == nil {
		log = debuglog.Discard()
	}
	return &Detector{
		heap:    heap,
		tracker: tracker,
		log:     log,
		onLeak: events.NewRegistry[Leak](func(err error) {
			log.Error("Memory leak listener error", "error", err.Error())
		}),
		now: time.Now,
	}
}

// Tracker returns the instance counter feeding snapshots.
func (d *Detector) Tracker() *Tracker {
	return d.tracker
}

// OnLeak registers fn for every finding.
func (d *Detector) OnLeak(fn func(Leak)) events.Unsubscribe {
	return d.onLeak.Add(fn)
}

// Start samples every interval until Stop. It is a no-op while monitoring.
func (d *Detector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	d.mu.Lock()
	if d.monitoring {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.monitoring = true
	d.gen++
	gen := d.gen
	d.cancel = cancel
	d.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.tick(gen)
			}
		}
	}()
	d.log.Info("Memory leak detection started")
}

// Stop halts sampling. Snapshots are kept.
func (d *Detector) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.monitoring = false
	d.gen++
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.log.Info("Memory leak detection stopped")
}

// IsMonitoring reports whether the timer runs.
func (d *Detector) IsMonitoring() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.monitoring
}

func (d *Detector) tick(gen uint64) {
	d.mu.Lock()
	current := d.monitoring && d.gen == gen
	d.mu.Unlock()
	if !current {
		return
	}
	if snap, previous, ok := d.record(); ok {
		d.compare(previous, snap)
	}
}

// TakeSnapshot samples the heap and tracker and appends the result.
func (d *Detector) TakeSnapshot() Snapshot {
	s, _, _ := d.record()
	return s
}

// record appends a fresh snapshot and returns it together with the one
// stored just before it.
func (d *Detector) record() (current, previous Snapshot, ok bool) {
	used, total := d.heap.Heap()
	current = Snapshot{
		Timestamp:     d.now(),
		HeapUsed:      used,
		HeapTotal:     total,
		Components:    d.tracker.Components(),
		Subscriptions: d.tracker.Subscriptions(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	current.seq = d.seq
	if n := len(d.snapshots); n > 0 {
		previous, ok = d.snapshots[n-1], true
	}
	d.snapshots = append(d.snapshots, current)
	return current, previous, ok
}

// Analyze compares current with the snapshot stored just before it. A
// snapshot taken elsewhere is compared with the latest stored one. Leak
// analysis runs only when heap growth exceeds LeakThreshold. Findings are
// logged as warnings and returned.
func (d *Detector) Analyze(current Snapshot) []Leak {
	previous, ok := d.baseline(current)
	if !ok {
		return nil
	}
	return d.compare(previous, current)
}

func (d *Detector) baseline(current Snapshot) (Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current.seq == 0 {
		if n := len(d.snapshots); n > 0 {
			return d.snapshots[n-1], true
		}
		return Snapshot{}, false
	}
	for i := len(d.snapshots) - 1; i > 0; i-- {
		if d.snapshots[i].seq == current.seq {
			return d.snapshots[i-1], true
		}
	}
	return Snapshot{}, false
}

func (d *Detector) compare(previous, current Snapshot) []Leak {
	if current.HeapUsed <= previous.HeapUsed || current.HeapUsed-previous.HeapUsed <= LeakThreshold {
		return nil
	}
	d.log.Debug("Heap growth above threshold",
		"growth", humanize.IBytes(current.HeapUsed-previous.HeapUsed),
		"heapUsed", humanize.IBytes(current.HeapUsed))

	leaks := detectLeaks(previous, current)
	for _, l := range leaks {
		switch l.Kind {
		case LeakComponent:
			d.log.Warn("Potential component memory leak detected",
				"component", l.Name, "previousCount", l.PreviousCount, "currentCount", l.CurrentCount)
		case LeakSubscription:
			d.log.Warn("Potential subscription leak detected",
				"subscription", l.Name, "previousCount", l.PreviousCount, "currentCount", l.CurrentCount)
		}
		d.onLeak.Notify(l)
	}
	return leaks
}

func detectLeaks(previous, current Snapshot) []Leak {
	var leaks []Leak
	for _, name := range sortedKeys(current.Components) {
		count, prev := current.Components[name], previous.Components[name]
		if float64(count) > float64(prev)*componentGrowth {
			leaks = append(leaks, Leak{Kind: LeakComponent, Name: name, PreviousCount: prev, CurrentCount: count, Timestamp: current.Timestamp})
		}
	}
	for _, name := range sortedKeys(current.Subscriptions) {
		count, prev := current.Subscriptions[name], previous.Subscriptions[name]
		if count > prev {
			leaks = append(leaks, Leak{Kind: LeakSubscription, Name: name, PreviousCount: prev, CurrentCount: count, Timestamp: current.Timestamp})
		}
	}
	return leaks
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HandleMemoryWarning takes an out-of-band snapshot in response to a host
// low-memory signal and logs it.
func (d *Detector) HandleMemoryWarning() Snapshot {
	s := d.TakeSnapshot()
	d.log.Warn("Memory warning received",
		"heapUsed", s.HeapUsed,
		"heapTotal", s.HeapTotal,
		"heapUsedHuman", humanize.IBytes(s.HeapUsed))
	return s
}

// CurrentUsage returns the heap numbers of the latest snapshot, sampling
// once if there is none.
func (d *Detector) CurrentUsage() (used, total uint64) {
	d.mu.Lock()
	n := len(d.snapshots)
	var last Snapshot
	if n > 0 {
		last = d.snapshots[n-1]
	}
	d.mu.Unlock()
	if n == 0 {
		return d.heap.Heap()
	}
	return last.HeapUsed, last.HeapTotal
}

// Snapshots returns a copy of all snapshots.
func (d *Detector) Snapshots() []Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Snapshot, len(d.snapshots))
	copy(out, d.snapshots)
	return out
}

// Clear drops all snapshots.
func (d *Detector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshots = nil
}
