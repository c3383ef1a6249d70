package devkit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConn is an in-memory remote connection. Frames written by the
// toolkit land on out; frames pushed by the test are read from in.
type pipeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 1024),
		closed: make(chan struct{}),
	}
}

func (c *pipeConn) Read() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *pipeConn) Write(data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case c.out <- data:
	default:
	}
	return nil
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *pipeConn) push(t *testing.T, typ string, payload any) {
	t.Helper()
	msg, err := remote.NewMessage(typ, payload)
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	c.in <- data
}

// next returns the first frame of type typ, skipping forwarded events.
func (c *pipeConn) next(t *testing.T, typ string) remote.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-c.out:
			var msg remote.Message
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Type == typ {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %q message received", typ)
			return remote.Message{}
		}
	}
}

type pipeDialer struct {
	conns chan *pipeConn
}

func (d *pipeDialer) Dial(context.Context, string) (remote.Conn, error) {
	c := newPipeConn()
	d.conns <- c
	return c, nil
}

type failingDialer struct{}

func (failingDialer) Dial(context.Context, string) (remote.Conn, error) {
	return nil, errors.New("connection refused")
}

type testClipboard struct{ text string }

func (c *testClipboard) Copy(text string) error {
	c.text = text
	return nil
}

type testKit struct {
	*Toolkit
	clip *testClipboard
}

func newTestToolkit(t *testing.T, dialer remote.Dialer) *testKit {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Toolkit{
		Env:              config.EnvDevelopment,
		DataDir:          dir,
		ProfilerInterval: 20 * time.Millisecond,
		LeakInterval:     time.Hour,
	}
	logger := logging.NewDisabledLogger()
	log := debuglog.New(debuglog.Options{Development: true, Echo: logger})
	bus := events.NewEventBus(logger)

	tokens := &network.MemoryTokenStore{}
	mocker := network.NewMocker(log)
	monitor := network.NewMonitor(log)
	apiDebug := network.NewDebugInterceptor(log)
	transport := network.HandlerFunc(func(_ context.Context, req *network.Request) (*network.Response, error) {
		return &network.Response{RequestID: req.ID, Status: 200, Headers: network.Header{}}, nil
	})
	pipeline := network.NewPipeline(transport, &network.AuthInterceptor{Tokens: tokens}, mocker, monitor, apiDebug)

	measurements := perf.NewMeasurements(log, nil)
	frames := perf.NewFrameMonitor(perf.TickerFrames{Interval: 5 * time.Millisecond}, measurements, log)
	profiler := perf.NewProfiler(perf.NewRuntimeProvider(frames, monitor), log)

	db, err := store.New(cfg.DatabasePath())
	require.NoError(t, err)

	files := fileops.NewFileOpsManager()
	clip := &testClipboard{}
	collector := device.NewCollector()
	state := timetravel.NewRecorder(0, log)
	leaks := memleak.NewDetector(memleak.RuntimeHeap{}, memleak.NewTracker(), log)
	tracker := errtrack.New(errtrack.Options{
		Log:       log,
		Device:    collector,
		Metrics:   profiler,
		Persister: errtrack.StorePersister{Store: db},
	})

	parts := Parts{
		Config:       cfg,
		Logger:       logger,
		Log:          log,
		Bus:          bus,
		Tokens:       tokens,
		Pipeline:     pipeline,
		Client:       network.NewClient(pipeline),
		Monitor:      monitor,
		Mocker:       mocker,
		APIDebug:     apiDebug,
		Profiler:     profiler,
		Frames:       frames,
		Measurements: measurements,
		Leaks:        leaks,
		State:        state,
		Remote: remote.NewDebugger(remote.Config{
			Host:              "localhost",
			Port:              8081,
			ReconnectInterval: time.Hour,
		}, dialer, log),
		Evaluator: remote.NewEvaluator(16),
		Plugins:   plugins.NewSystem(log),
		Commands:  commands.NewDispatcher(log, bus),
		Errors:    tracker,
		Device:    collector,
		Settings:  settings.NewManager(cfg.SettingsPath(), true, files, log),
		Reports: report.NewGenerator(report.Sources{
			Logs:    log,
			Network: monitor,
			Mocks:   mocker,
			Perf:    profiler,
			Memory:  leaks,
			State:   state,
			Errors:  tracker,
			Device:  collector,
		}, report.Options{
			Dir:       cfg.ReportsDir(),
			Files:     files,
			Index:     db,
			Clipboard: clip,
			Log:       log,
		}),
		Store: db,
	}

	tk := New(parts)
	t.Cleanup(func() { _ = tk.Close() })
	return &testKit{Toolkit: tk, clip: clip}
}

func TestNew_MeasurementsFeedProfiler(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})

	tk.Measurements.Start("render")
	tk.Measurements.End("render")

	metrics := tk.Profiler.Metrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, "render", metrics[0].Name)
	assert.Equal(t, perf.MetricNetwork, metrics[0].Type)
}

func TestFatalErrorSavesReport(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})
	ctx := context.Background()

	tk.Errors.Track(ctx, errors.New("boom"), errtrack.Context{Severity: errtrack.SeverityFatal})

	reports, err := tk.Store.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	_, err = os.Stat(reports[0].Path)
	assert.NoError(t, err)

	stored, err := tk.Store.ListErrors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "boom", stored[0].Message)
}

func TestPluginsReceiveComponentEvents(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})

	got := make(chan debuglog.Entry, 8)
	require.NoError(t, tk.Plugins.Register(context.Background(), &plugins.Funcs{
		PluginName:    "collector",
		PluginVersion: "1.0.0",
		Event: func(_ context.Context, event any) error {
			if e, ok := event.(debuglog.Entry); ok && e.Message == "hello plugins" {
				got <- e
			}
			return nil
		},
	}))

	tk.Log.Info("hello plugins")

	select {
	case e := <-got:
		assert.Equal(t, debuglog.LevelInfo, e.Level)
	case <-time.After(2 * time.Second):
		t.Fatal("plugin did not receive the log entry")
	}
}

func TestStartAppliesDefaultsAndClose(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})

	require.NoError(t, tk.Start(context.Background()))
	defaults := settings.Defaults(true)
	assert.Equal(t, defaults, tk.Settings.Get())
	assert.Equal(t, defaults.NetworkInspection, tk.Monitor.IsMonitoring())

	require.NoError(t, tk.Close())
	assert.False(t, tk.Profiler.IsRecording())
	assert.False(t, tk.Frames.IsMonitoring())
	assert.NoError(t, tk.Close())
}
