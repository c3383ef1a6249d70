// Package timetravel records application state versions and navigates
// between them with undo, redo and direct jumps.
package timetravel

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultMaxSnapshots bounds the snapshot list.
const DefaultMaxSnapshots = 50

var (
	ErrIndexOutOfRange = errors.New("timetravel: snapshot index out of range")
	ErrNotRecording    = errors.New("timetravel: not recording")
	ErrNoSnapshot      = errors.New("timetravel: no current snapshot")
)

// Snapshot is one recorded state version.
type Snapshot struct {
	ID        uint64         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	State     any            `json:"state"`
	Action    string         `json:"action,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Topic implements events.Event.
func (Snapshot) Topic() string { return events.TopicStateTravel }

// Recorder holds at most max snapshots and a current index into them.
type Recorder struct {
	log         debuglog.Sink
	subscribers *events.Registry[Snapshot]
	now         func() time.Time
	max         int

	mu        sync.Mutex
	recording bool
	snapshots []Snapshot
	current   int
	nextID    uint64
}

// NewRecorder creates an idle recorder. max <= 0 uses DefaultMaxSnapshots.
func NewRecorder(max int, log debuglog.Sink) *Recorder {
	if max <= 0 {
		max = DefaultMaxSnapshots
	}
	if log == nil {
		log = debuglog.Discard()
	}
	return &Recorder{
		log: log,
		subscribers: events.NewRegistry[Snapshot](func(err error) {
			log.Error("State subscriber error", "error", err.Error())
		}),
		now:     time.Now,
		max:     max,
		current: -1,
	}
}

// StartRecording enables CaptureState.
func (r *Recorder) StartRecording() {
	r.mu.Lock()
	r.recording = true
	r.mu.Unlock()
	r.log.Info("State Recording Started")
}

// StopRecording makes CaptureState a no-op. Snapshots are kept.
func (r *Recorder) StopRecording() {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
	r.log.Info("State Recording Stopped")
}

// IsRecording reports whether captures are accepted.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// CaptureState deep-copies state and appends it after the current index,
// discarding any snapshots past it. It reports whether a snapshot was taken.
func (r *Recorder) CaptureState(state any, action string, metadata map[string]any) bool {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return false
	}
	snap := r.appendLocked(Clone(state), action, Clone(metadata))
	r.mu.Unlock()

	r.log.Debug("State Captured", "action", action, "snapshotId", snap.ID, "timestamp", snap.Timestamp)
	return true
}

func (r *Recorder) appendLocked(state any, action string, metadata map[string]any) Snapshot {
	snap := Snapshot{
		ID:        r.nextID,
		Timestamp: r.now(),
		State:     state,
		Action:    action,
		Metadata:  metadata,
	}
	r.nextID++

	if r.current < len(r.snapshots)-1 {
		r.snapshots = r.snapshots[:r.current+1]
	}
	r.snapshots = append(r.snapshots, snap)
	r.current = len(r.snapshots) - 1

	if len(r.snapshots) > r.max {
		r.snapshots = append([]Snapshot(nil), r.snapshots[1:]...)
		r.current--
	}
	return snap
}

// TravelTo makes index current and notifies subscribers.
func (r *Recorder) TravelTo(index int) error {
	r.mu.Lock()
	if index < 0 || index >= len(r.snapshots) {
		n := len(r.snapshots)
		r.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, n)
	}
	snap := r.moveLocked(index)
	r.mu.Unlock()

	r.traveled(snap)
	return nil
}

// Undo steps back one snapshot. It reports whether it moved.
func (r *Recorder) Undo() bool {
	return r.step(-1)
}

// Redo steps forward one snapshot. It reports whether it moved.
func (r *Recorder) Redo() bool {
	return r.step(1)
}

func (r *Recorder) step(delta int) bool {
	r.mu.Lock()
	target := r.current + delta
	if r.current < 0 || target < 0 || target >= len(r.snapshots) {
		r.mu.Unlock()
		return false
	}
	snap := r.moveLocked(target)
	r.mu.Unlock()

	r.traveled(snap)
	return true
}

// moveLocked sets the current index and returns a detached copy of the
// snapshot there.
func (r *Recorder) moveLocked(index int) Snapshot {
	r.current = index
	return r.snapshots[index].detached()
}

func (r *Recorder) traveled(snap Snapshot) {
	r.subscribers.Notify(snap)
	r.log.Info("Time Traveled to State", "snapshotId", snap.ID, "action", snap.Action, "timestamp", snap.Timestamp)
}

// detached returns s with State and Metadata copied so callers cannot
// change recorded history.
func (s Snapshot) detached() Snapshot {
	s.State = Clone(s.State)
	s.Metadata = Clone(s.Metadata)
	return s
}

// Subscribe registers fn for every successful navigation.
func (r *Recorder) Subscribe(fn func(Snapshot)) events.Unsubscribe {
	return r.subscribers.Add(fn)
}

// CurrentSnapshot returns a copy of the snapshot at the current index.
func (r *Recorder) CurrentSnapshot() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current < 0 || r.current >= len(r.snapshots) {
		return Snapshot{}, false
	}
	return r.snapshots[r.current].detached(), true
}

// CurrentIndex returns the current index, or -1 when empty.
func (r *Recorder) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Snapshots returns a copy of the snapshot list.
func (r *Recorder) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.snapshots))
	for i, s := range r.snapshots {
		out[i] = s.detached()
	}
	return out
}

// Since returns the snapshots taken at or after t.
func (r *Recorder) Since(t time.Time) []Snapshot {
	var out []Snapshot
	for _, s := range r.Snapshots() {
		if !s.Timestamp.Before(t) {
			out = append(out, s)
		}
	}
	return out
}

// Clear drops all snapshots.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = nil
	r.current = -1
}

func (r *Recorder) at(index int) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.snapshots) {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return r.snapshots[index], nil
}

// Diff renders a unified diff between the JSON forms of two snapshots.
func (r *Recorder) Diff(from, to int) (string, error) {
	a, err := r.at(from)
	if err != nil {
		return "", err
	}
	b, err := r.at(to)
	if err != nil {
		return "", err
	}
	left, err := json.MarshalIndent(a.State, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot %d: %w", a.ID, err)
	}
	right, err := json.MarshalIndent(b.State, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot %d: %w", b.ID, err)
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(left) + "\n"),
		B:        difflib.SplitLines(string(right) + "\n"),
		FromFile: fmt.Sprintf("snapshot#%d", a.ID),
		ToFile:   fmt.Sprintf("snapshot#%d", b.ID),
		Context:  2,
	})
}

// Query evaluates a gjson path against the current state.
func (r *Recorder) Query(path string) (gjson.Result, error) {
	snap, ok := r.CurrentSnapshot()
	if !ok {
		return gjson.Result{}, ErrNoSnapshot
	}
	data, err := json.Marshal(snap.State)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encoding state: %w", err)
	}
	return gjson.GetBytes(data, path), nil
}

// Patch sets path to value in a JSON copy of the current state and captures
// the result as a new snapshot labelled action. Subscribers are notified
// with the patched snapshot.
func (r *Recorder) Patch(path string, value any, action string) (Snapshot, error) {
	snap, ok := r.CurrentSnapshot()
	if !ok {
		return Snapshot{}, ErrNoSnapshot
	}
	data, err := json.Marshal(snap.State)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding state: %w", err)
	}
	patched, err := sjson.SetBytes(data, path, value)
	if err != nil {
		return Snapshot{}, fmt.Errorf("patching %q: %w", path, err)
	}
	var state any
	if err := json.Unmarshal(patched, &state); err != nil {
		return Snapshot{}, fmt.Errorf("decoding patched state: %w", err)
	}

	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return Snapshot{}, ErrNotRecording
	}
	next := r.appendLocked(state, action, map[string]any{"patch": path, "from": snap.ID}).detached()
	r.mu.Unlock()

	r.subscribers.Notify(next)
	r.log.Debug("State Patched", "path", path, "snapshotId", next.ID)
	return next, nil
}
