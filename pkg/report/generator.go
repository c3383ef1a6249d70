package report

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/fileops"
	"github.com/kcaldas/devkit/pkg/perf"
	"github.com/kcaldas/devkit/pkg/store"
	"github.com/kcaldas/devkit/pkg/timetravel"
	"github.com/samber/lo"
)

// Clipboard receives shared reports.
type Clipboard interface {
	Copy(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

// Copy implements Clipboard.
func (SystemClipboard) Copy(text string) error {
	return clipboard.WriteAll(text)
}

// Options configures a Generator.
type Options struct {
	// Dir receives saved report files.
	Dir   string
	Files fileops.Manager
	// Index, when set, records every saved report.
	Index     *store.Store
	Clipboard Clipboard
	Log       debuglog.Sink
	Now       func() time.Time
}

// Generator builds, saves and shares reports, and records debug sessions.
type Generator struct {
	src  Sources
	opts Options

	mu        sync.Mutex
	recording bool
	session   *Session
}

// NewGenerator creates a generator over src.
func NewGenerator(src Sources, opts Options) *Generator {
	if opts.Files == nil {
		opts.Files = fileops.NewFileOpsManager()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = SystemClipboard{}
	}
	if opts.Log == nil {
		opts.Log = debuglog.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{src: src, opts: opts}
}

// Generate reads the current state of every source. It changes nothing.
// The last (or running) debug session is included.
func (g *Generator) Generate() Report {
	g.mu.Lock()
	var session *Session
	if g.session != nil {
		s := g.sessionView(*g.session)
		session = &s
	}
	g.mu.Unlock()

	return g.build(session)
}

func (g *Generator) build(session *Session) Report {
	r := Report{
		ID:           uuid.NewString(),
		Timestamp:    g.opts.Now(),
		DebugSession: session,
	}

	if src := g.src.Device; src != nil {
		r.DeviceInfo = src.Info()
	}
	if id := g.src.Identity; id != nil {
		r.Identity = &Identity{UserID: id.UserID(), SessionID: id.SessionID(), Location: id.Location()}
	}
	if src := g.src.Logs; src != nil {
		r.Logs = src.History()
		r.ErrorReports.Logged = src.Errors()
	}
	if src := g.src.Errors; src != nil {
		r.ErrorReports.Tracked = src.History()
	}
	if src := g.src.Network; src != nil {
		r.NetworkLogs.Requests = src.Requests()
		r.NetworkLogs.Responses = src.Responses()
		r.NetworkLogs.Errors = src.Errors()
		r.PerformanceMetrics.NetworkLatency = lo.Map(src.LatencyHistory(), func(d time.Duration, _ int) float64 {
			return float64(d) / float64(time.Millisecond)
		})
	}
	if src := g.src.Mocks; src != nil {
		r.NetworkLogs.Mocks = src.Mocks()
	}
	if src := g.src.Perf; src != nil {
		snaps := src.Snapshots()
		r.PerformanceMetrics.FPS = lo.Map(snaps, func(s perf.Snapshot, _ int) float64 { return s.FPS })
		r.PerformanceMetrics.Memory = lo.Map(snaps, func(s perf.Snapshot, _ int) uint64 { return s.Memory.Used })
		r.PerformanceMetrics.CPU = lo.Map(snaps, func(s perf.Snapshot, _ int) float64 { return s.CPU })
		r.PerformanceMetrics.Metrics = src.Metrics()
	}
	if src := g.src.Memory; src != nil {
		r.PerformanceMetrics.MemorySnapshots = src.Snapshots()
	}
	if src := g.src.State; src != nil {
		if cur, ok := src.CurrentSnapshot(); ok {
			r.State.Current = &cur
		}
		r.State.History = src.Snapshots()
	}
	return timetravel.Clone(r)
}

// sessionView copies s and fills in the state changes made since it began.
func (g *Generator) sessionView(s Session) Session {
	s.Actions = append([]Action(nil), s.Actions...)
	if g.src.State != nil {
		changes := g.src.State.Since(s.StartTime)
		if !s.EndTime.IsZero() {
			changes = lo.Filter(changes, func(snap timetravel.Snapshot, _ int) bool {
				return !snap.Timestamp.After(s.EndTime)
			})
		}
		s.StateChanges = changes
	}
	return s
}

// StartSession begins recording a debug session, discarding the previous
// one.
func (g *Generator) StartSession() {
	g.mu.Lock()
	g.recording = true
	g.session = &Session{StartTime: g.opts.Now()}
	g.mu.Unlock()

	g.opts.Log.Info("Debug session recording started")
}

// IsRecording reports whether a session is being recorded.
func (g *Generator) IsRecording() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recording
}

// RecordAction appends action to the running session. It is ignored when
// no session is recording.
func (g *Generator) RecordAction(action any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.recording {
		return false
	}
	g.session.Actions = append(g.session.Actions, Action{Timestamp: g.opts.Now(), Action: timetravel.Clone(action)})
	return true
}

// StopSession ends the session and returns a report that includes it.
// Without a running session it behaves like Generate.
func (g *Generator) StopSession() Report {
	g.mu.Lock()
	if !g.recording {
		g.mu.Unlock()
		return g.Generate()
	}
	g.recording = false
	g.session.EndTime = g.opts.Now()
	s := g.sessionView(*g.session)
	g.mu.Unlock()

	g.opts.Log.Info("Debug session recording stopped")
	return g.build(&s)
}

// Save writes r as JSON under the reports dir and returns its path.
func (g *Generator) Save(ctx context.Context, r Report) (string, error) {
	if g.opts.Dir == "" {
		err := fmt.Errorf("no report directory configured")
		g.opts.Log.Error("Failed to save debug report", "error", err.Error())
		return "", err
	}
	name := fmt.Sprintf("report-%s-%s.json", r.Timestamp.UTC().Format("20060102T150405"), r.ID[:8])
	path := filepath.Join(g.opts.Dir, name)

	size, err := g.opts.Files.WriteObjectAsJSON(path, r)
	if err != nil {
		g.opts.Log.Error("Failed to save debug report", "error", err.Error())
		return "", fmt.Errorf("saving report: %w", err)
	}

	if g.opts.Index != nil {
		rec := store.ReportRecord{ID: r.ID, Path: path, CreatedAt: r.Timestamp, SizeBytes: size}
		if err := g.opts.Index.SaveReportIndex(ctx, rec); err != nil {
			g.opts.Log.Error("Failed to save debug report", "error", err.Error())
			return path, fmt.Errorf("indexing report: %w", err)
		}
	}

	g.opts.Log.Info("Debug report saved", "path", path, "size", size)
	return path, nil
}

// Share copies the saved report at path to the clipboard.
func (g *Generator) Share(path string) error {
	data, err := g.opts.Files.ReadFile(path)
	if err != nil {
		g.opts.Log.Error("Failed to share debug report", "error", err.Error())
		return fmt.Errorf("reading report: %w", err)
	}
	if err := g.opts.Clipboard.Copy(string(data)); err != nil {
		g.opts.Log.Error("Failed to share debug report", "error", err.Error())
		return fmt.Errorf("copying report: %w", err)
	}
	g.opts.Log.Info("Debug report shared", "path", path)
	return nil
}
