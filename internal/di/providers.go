package di

import (
	"context"
	"net/http"
	"time"

	"github.com/kcaldas/devkit/pkg/commands"
	"github.com/kcaldas/devkit/pkg/config"
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/device"
	"github.com/kcaldas/devkit/pkg/errtrack"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/fileops"
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

const (
	evalCacheSize  = 128
	requestTimeout = 30 * time.Second
)

// ProvideToolkitConfig reads the toolkit configuration from the environment.
func ProvideToolkitConfig() config.Toolkit {
	return config.Load(config.NewConfigManager())
}

// ProvideLogger builds the process logger.
func ProvideLogger(cfg config.Toolkit) logging.Logger {
	return logging.NewLoggerFromConfig(cfg)
}

// ProvideDebugLog builds the in-app log history. Entries are echoed to the
// process logger in development.
func ProvideDebugLog(cfg config.Toolkit, logger logging.Logger) *debuglog.Logger {
	return debuglog.New(debuglog.Options{
		Development: cfg.IsDevelopment(),
		Echo:        logger,
	})
}

// ProvideEventBus provides the toolkit event bus.
func ProvideEventBus(logger logging.Logger) *events.InMemoryBus {
	return events.NewEventBus(logger)
}

// ProvideTokenStore seeds the token store from the configured auth token.
func ProvideTokenStore(cfg config.Toolkit) *network.MemoryTokenStore {
	tokens := &network.MemoryTokenStore{}
	if cfg.AuthToken != "" {
		tokens.Set(cfg.AuthToken)
	}
	return tokens
}

// ProvidePipeline chains auth, mock, monitor and debug logging in front of
// the HTTP transport. A 401 clears the stored token.
func ProvidePipeline(
	tokens *network.MemoryTokenStore,
	mocker *network.Mocker,
	monitor *network.Monitor,
	apiDebug *network.DebugInterceptor,
	log debuglog.Sink,
) *network.Pipeline {
	auth := &network.AuthInterceptor{
		Tokens: tokens,
		OnUnauthorized: func(context.Context) {
			log.Warn("Unauthorized response, clearing auth token")
			tokens.Clear()
		},
	}
	transport := network.NewHTTPTransport(&http.Client{Timeout: requestTimeout})
	return network.NewPipeline(transport, auth, mocker, monitor, apiDebug)
}

// ProvideMeasurements provides the named-measurement tracker. The profiler
// hook is attached when the toolkit is assembled.
func ProvideMeasurements(log debuglog.Sink) *perf.Measurements {
	return perf.NewMeasurements(log, nil)
}

// ProvideFrameMonitor uses the ticker frame source.
func ProvideFrameMonitor(measurements *perf.Measurements, log debuglog.Sink) *perf.FrameMonitor {
	return perf.NewFrameMonitor(nil, measurements, log)
}

// ProvideProfiler samples the runtime, the frame monitor and network
// latency.
func ProvideProfiler(frames *perf.FrameMonitor, monitor *network.Monitor, log debuglog.Sink) *perf.Profiler {
	return perf.NewProfiler(perf.NewRuntimeProvider(frames, monitor), log)
}

// ProvideLeakDetector watches the Go heap.
func ProvideLeakDetector(log debuglog.Sink) *memleak.Detector {
	return memleak.NewDetector(memleak.RuntimeHeap{}, memleak.NewTracker(), log)
}

// ProvideStateRecorder keeps the default number of state snapshots.
func ProvideStateRecorder(log debuglog.Sink) *timetravel.Recorder {
	return timetravel.NewRecorder(0, log)
}

// ProvideRemoteDebugger dials the configured debugger proxy over websocket.
func ProvideRemoteDebugger(cfg config.Toolkit, log debuglog.Sink) *remote.Debugger {
	return remote.NewDebugger(remote.Config{
		Host:              cfg.Remote.Host,
		Port:              cfg.Remote.Port,
		Secure:            cfg.Remote.Secure,
		ReconnectInterval: cfg.Remote.ReconnectInterval,
		MaxRetries:        cfg.Remote.MaxRetries,
	}, remote.WebSocketDialer{}, log)
}

// ProvideEvaluator caches compiled eval expressions.
func ProvideEvaluator() *remote.Evaluator {
	return remote.NewEvaluator(evalCacheSize)
}

// ProvideStore opens the SQLite database. Without it the toolkit still runs;
// reports are written but not indexed and errors are kept in memory only.
func ProvideStore(cfg config.Toolkit, files fileops.Manager, logger logging.Logger) *store.Store {
	if err := files.EnsureDir(cfg.DataDir); err != nil {
		logger.Warn("toolkit data dir unavailable", "dir", cfg.DataDir, "error", err)
		return nil
	}
	db, err := store.New(cfg.DatabasePath())
	if err != nil {
		logger.Warn("toolkit database unavailable", "path", cfg.DatabasePath(), "error", err)
		return nil
	}
	return db
}

// ProvideErrorTracker persists tracked errors when the store is available.
func ProvideErrorTracker(
	log debuglog.Sink,
	collector *device.Collector,
	profiler *perf.Profiler,
	db *store.Store,
) *errtrack.Tracker {
	opts := errtrack.Options{
		Log:     log,
		Device:  collector,
		Metrics: profiler,
	}
	if db != nil {
		opts.Persister = errtrack.StorePersister{Store: db}
	}
	return errtrack.New(opts)
}

// ProvideSettings provides the settings file manager.
func ProvideSettings(cfg config.Toolkit, files fileops.Manager, log debuglog.Sink) *settings.Manager {
	return settings.NewManager(cfg.SettingsPath(), cfg.IsDevelopment(), files, log)
}

// ProvideReportGenerator reads every component and writes reports under the
// data dir.
func ProvideReportGenerator(
	cfg config.Toolkit,
	log *debuglog.Logger,
	monitor *network.Monitor,
	mocker *network.Mocker,
	profiler *perf.Profiler,
	leaks *memleak.Detector,
	state *timetravel.Recorder,
	tracker *errtrack.Tracker,
	collector *device.Collector,
	files fileops.Manager,
	db *store.Store,
) *report.Generator {
	return report.NewGenerator(report.Sources{
		Logs:    log,
		Network: monitor,
		Mocks:   mocker,
		Perf:    profiler,
		Memory:  leaks,
		State:   state,
		Errors:  tracker,
		Device:  collector,
	}, report.Options{
		Dir:   cfg.ReportsDir(),
		Files: files,
		Index: db,
		Log:   log,
	})
}

// ProvidePlugins provides an empty plugin registry.
func ProvidePlugins(log debuglog.Sink) *plugins.System {
	return plugins.NewSystem(log)
}

// ProvideCommands provides the console command dispatcher.
func ProvideCommands(log debuglog.Sink, pub events.Publisher) *commands.Dispatcher {
	return commands.NewDispatcher(log, pub)
}
