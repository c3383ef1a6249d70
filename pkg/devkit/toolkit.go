// Package devkit assembles the observability components into one toolkit
// and connects them to each other.
package devkit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kcaldas/devkit/pkg/commands"
	"github.com/kcaldas/devkit/pkg/config"
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/device"
	"github.com/kcaldas/devkit/pkg/errtrack"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/logging"
	"github.com/kcaldas/devkit/pkg/memleak"
	"github.com/kcaldas/devkit/pkg/network"
	"github.com/kcaldas/devkit/pkg/perf"
	"github.com/kcaldas/devkit/pkg/plugins"
	"github.com/kcaldas/devkit/pkg/remote"
	"github.com/kcaldas/devkit/pkg/report"
	"github.com/kcaldas/devkit/pkg/settings"
	"github.com/kcaldas/devkit/pkg/store"
	"github.com/kcaldas/devkit/pkg/timetravel"
)

// Parts are the constructed components. Store may be nil when persistence
// is unavailable.
type Parts struct {
	Config       config.Toolkit
	Logger       logging.Logger
	Log          *debuglog.Logger
	Bus          *events.InMemoryBus
	Tokens       *network.MemoryTokenStore
	Pipeline     *network.Pipeline
	Client       *network.Client
	Monitor      *network.Monitor
	Mocker       *network.Mocker
	APIDebug     *network.DebugInterceptor
	Profiler     *perf.Profiler
	Frames       *perf.FrameMonitor
	Measurements *perf.Measurements
	Leaks        *memleak.Detector
	State        *timetravel.Recorder
	Remote       *remote.Debugger
	Evaluator    *remote.Evaluator
	Plugins      *plugins.System
	Commands     *commands.Dispatcher
	Errors       *errtrack.Tracker
	Device       *device.Collector
	Settings     *settings.Manager
	Reports      *report.Generator
	Store        *store.Store
}

// Toolkit is the process-wide debug toolkit.
type Toolkit struct {
	Parts

	logger  logging.Logger
	forward *forwarder

	mu          sync.Mutex
	unsubs      []events.Unsubscribe
	remoteUnsub events.Unsubscribe
	cancel      context.CancelFunc
	started     bool
	closed      bool
}

// New connects the parts: measurements feed the profiler, fatal errors
// produce a saved report, component events reach the bus, plugins and the
// remote client, settings drive the components, and the default console
// commands and remote handlers are registered.
func New(p Parts) *Toolkit {
	t := &Toolkit{
		Parts:  p,
		logger: logging.NewComponentLogger(p.Logger, "toolkit"),
	}
	t.forward = &forwarder{remote: p.Remote}

	p.Measurements.SetCompletionHook(p.Profiler.RecordEntry)
	p.Errors.SetFatalHandler(t.saveFatalReport)
	if p.Store != nil {
		p.Log.SetCrashSink(t.persistCrash)
	}

	t.relayEvents()
	t.registerAppliers()
	t.registerDefaultCommands()
	t.registerRemoteHandlers()
	return t
}

// Start loads the persisted settings, applies them and begins watching the
// settings file. The watch ends when ctx is done or the toolkit is closed.
func (t *Toolkit) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started || t.closed {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	if err := t.Settings.Load(); err != nil {
		t.logger.Warn("using default debug settings", "error", err)
	}
	if err := t.Settings.Watch(ctx); err != nil {
		t.logger.Warn("settings hot reload unavailable", "error", err)
	}
	t.logger.Debug("toolkit started", "env", t.Config.Env)
	return nil
}

// Close stops every periodic component, disconnects the remote debugger and
// releases the bus and store.
func (t *Toolkit) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancel
	unsubs := t.unsubs
	t.unsubs = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t.Profiler.IsRecording() {
		t.Profiler.StopRecording()
	}
	if t.Frames.IsMonitoring() {
		t.Frames.Stop()
	}
	if t.Leaks.IsMonitoring() {
		t.Leaks.Stop()
	}
	t.DisconnectRemote()
	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
	t.Bus.Shutdown()

	if t.Store != nil {
		return t.Store.Close()
	}
	return nil
}

func (t *Toolkit) track(u events.Unsubscribe) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unsubs = append(t.unsubs, u)
}

func (t *Toolkit) saveFatalReport(ctx context.Context, _ errtrack.Report) error {
	_, err := t.Reports.Save(ctx, t.Reports.Generate())
	return err
}

// persistCrash stores error entries logged outside development mode. Write
// failures go to the process logger; logging them here would recurse.
func (t *Toolkit) persistCrash(e debuglog.Entry) {
	data, err := json.Marshal(e.Metadata)
	if err != nil {
		data = []byte("{}")
	}
	_, err = t.Store.SaveError(context.Background(), store.ErrorRecord{
		Message:   e.Message,
		Severity:  string(e.Level),
		CreatedAt: e.Timestamp,
		Data:      string(data),
	})
	if err != nil {
		t.logger.Warn("crash entry not persisted", "error", err)
	}
}
