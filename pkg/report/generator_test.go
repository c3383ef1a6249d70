package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/device"
	"github.com/kcaldas/devkit/pkg/errtrack"
	"github.com/kcaldas/devkit/pkg/network"
	"github.com/kcaldas/devkit/pkg/perf"
	"github.com/kcaldas/devkit/pkg/store"
	"github.com/kcaldas/devkit/pkg/timetravel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) Copy(text string) error {
	f.text = text
	return f.err
}

type fakePerf struct {
	snaps   []perf.Snapshot
	metrics []perf.Metric
}

func (f fakePerf) Metrics() []perf.Metric     { return f.metrics }
func (f fakePerf) Snapshots() []perf.Snapshot { return f.snaps }

type fixture struct {
	log     *debuglog.Logger
	mocker  *network.Mocker
	state   *timetravel.Recorder
	errs    *errtrack.Tracker
	sources Sources
}

func newFixture() *fixture {
	log := debuglog.New(debuglog.Options{})
	f := &fixture{
		log:    log,
		mocker: network.NewMocker(log),
		state:  timetravel.NewRecorder(0, log),
		errs:   errtrack.New(errtrack.Options{}),
	}
	f.sources = Sources{
		Logs:   log,
		Mocks:  f.mocker,
		State:  f.state,
		Errors: f.errs,
		Device: device.NewCollector(),
		Perf: fakePerf{
			snaps: []perf.Snapshot{
				{FPS: 60, CPU: 10, Memory: perf.Memory{Used: 1 << 20}},
				{FPS: 50, CPU: 30, Memory: perf.Memory{Used: 3 << 20}},
			},
		},
		Identity: device.StaticIdentity{User: "u-1", Session: "s-1"},
	}
	return f
}

func TestGenerator_Generate(t *testing.T) {
	f := newFixture()
	f.log.Info("hello")
	f.log.Error("broken")
	f.mocker.AddMock("GET", "/users", network.MockResponse{Status: 200}, true)
	f.state.StartRecording()
	f.state.CaptureState(map[string]int{"count": 1}, "inc", nil)
	f.errs.Track(context.Background(), errors.New("tracked"), errtrack.Context{})

	g := NewGenerator(f.sources, Options{})
	r := g.Generate()

	assert.NotEmpty(t, r.ID)
	assert.False(t, r.Timestamp.IsZero())
	assert.Len(t, r.Logs, 2)
	assert.Len(t, r.ErrorReports.Logged, 1)
	assert.Len(t, r.ErrorReports.Tracked, 1)
	assert.Len(t, r.NetworkLogs.Mocks, 1)
	assert.Equal(t, []float64{60, 50}, r.PerformanceMetrics.FPS)
	assert.Equal(t, []uint64{1 << 20, 3 << 20}, r.PerformanceMetrics.Memory)
	require.NotNil(t, r.State.Current)
	assert.Equal(t, "inc", r.State.Current.Action)
	assert.Equal(t, "u-1", r.Identity.UserID)
	assert.Nil(t, r.DebugSession)
	assert.NotEmpty(t, r.DeviceInfo.ID)
}

func TestGenerator_GenerateDoesNotMutateSources(t *testing.T) {
	f := newFixture()
	f.log.Info("one")
	g := NewGenerator(f.sources, Options{})

	r := g.Generate()
	r.Logs[0].Message = "changed"

	assert.Equal(t, "one", f.log.History()[0].Message)
	assert.Len(t, f.log.History(), 1)
}

type fakeNetwork struct {
	requests []network.Request
}

func (f fakeNetwork) Requests() []network.Request      { return f.requests }
func (f fakeNetwork) Responses() []network.Response    { return nil }
func (f fakeNetwork) Errors() []network.Failure        { return nil }
func (f fakeNetwork) LatencyHistory() []time.Duration { return nil }

func TestGenerator_ReportIsDetachedFromSources(t *testing.T) {
	f := newFixture()
	req := network.NewRequest("POST", "/login", []byte("secret"))
	req.Headers["Authorization"] = "Bearer a"
	f.sources.Network = fakeNetwork{requests: []network.Request{*req}}
	f.log.Info("with metadata", "screen", "home")
	g := NewGenerator(f.sources, Options{})

	r := g.Generate()
	req.Headers["Authorization"] = "Bearer b"
	req.Body[0] = 'X'
	r.Logs[0].Metadata["screen"] = "changed"

	assert.Equal(t, "Bearer a", r.NetworkLogs.Requests[0].Headers["Authorization"])
	assert.Equal(t, "secret", string(r.NetworkLogs.Requests[0].Body))
	assert.Equal(t, "home", f.log.History()[0].Metadata["screen"])
}

func TestGenerator_EmptySources(t *testing.T) {
	g := NewGenerator(Sources{}, Options{})

	r := g.Generate()

	assert.Empty(t, r.Logs)
	assert.Nil(t, r.State.Current)
	assert.Nil(t, r.Identity)
}

func TestGenerator_Session(t *testing.T) {
	f := newFixture()
	g := NewGenerator(f.sources, Options{})

	assert.False(t, g.RecordAction("ignored"))

	f.state.StartRecording()
	f.state.CaptureState("before", "init", nil)
	time.Sleep(2 * time.Millisecond)
	g.StartSession()
	assert.True(t, g.IsRecording())
	assert.True(t, g.RecordAction(map[string]string{"type": "tap"}))
	f.state.CaptureState("during", "tap", nil)

	r := g.StopSession()

	assert.False(t, g.IsRecording())
	require.NotNil(t, r.DebugSession)
	s := r.DebugSession
	assert.False(t, s.EndTime.Before(s.StartTime))
	require.Len(t, s.Actions, 1)
	assert.Equal(t, map[string]string{"type": "tap"}, s.Actions[0].Action)
	require.Len(t, s.StateChanges, 1)
	assert.Equal(t, "during", s.StateChanges[0].State)
	assert.False(t, g.RecordAction("after stop"))

	// Generate keeps returning the finished session.
	assert.Len(t, g.Generate().DebugSession.Actions, 1)
}

func TestGenerator_StopWithoutSession(t *testing.T) {
	g := NewGenerator(Sources{}, Options{})

	assert.Nil(t, g.StopSession().DebugSession)
}

func TestGenerator_SaveAndShare(t *testing.T) {
	f := newFixture()
	f.log.Info("persist me")
	db, err := store.New(":memory:")
	require.NoError(t, err)
	defer db.Close()
	clip := &fakeClipboard{}
	dir := filepath.Join(t.TempDir(), "reports")
	g := NewGenerator(f.sources, Options{Dir: dir, Index: db, Clipboard: clip})

	r := g.Generate()
	path, err := g.Save(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(data)
	for _, field := range []string{"timestamp", "deviceInfo", "performanceMetrics", "networkLogs", "errorReports"} {
		assert.True(t, gjson.Get(doc, field).Exists(), field)
	}
	assert.Equal(t, "persist me", gjson.Get(doc, "logs.0.message").String())

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, r.ID, decoded.ID)

	rec, err := db.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, path, rec.Path)
	assert.EqualValues(t, len(data), rec.SizeBytes)

	require.NoError(t, g.Share(path))
	assert.Equal(t, doc, clip.text)
}

func TestGenerator_SaveWithoutDir(t *testing.T) {
	log := debuglog.New(debuglog.Options{})
	g := NewGenerator(Sources{}, Options{Log: log})

	_, err := g.Save(context.Background(), g.Generate())

	assert.Error(t, err)
	assert.Equal(t, "Failed to save debug report", log.Errors()[0].Message)
}

func TestGenerator_ShareFailure(t *testing.T) {
	clip := &fakeClipboard{err: errors.New("no display")}
	g := NewGenerator(Sources{}, Options{Dir: t.TempDir(), Clipboard: clip})
	path, err := g.Save(context.Background(), g.Generate())
	require.NoError(t, err)

	assert.Error(t, g.Share(path))
	assert.Error(t, g.Share(filepath.Join(t.TempDir(), "missing.json")))
}

func TestMarkdown(t *testing.T) {
	f := newFixture()
	f.log.Warn("slow")
	f.errs.Track(context.Background(), errors.New("boom"), errtrack.Context{Severity: errtrack.SeverityFatal})
	g := NewGenerator(f.sources, Options{})
	g.StartSession()

	md := Markdown(g.Generate())

	assert.Contains(t, md, "# Debug report")
	assert.Contains(t, md, "FPS: avg 55.0, min 50.0")
	assert.Contains(t, md, "Memory: peak 3.0 MiB")
	assert.Contains(t, md, "Tracked: 1 (fatal 1, error 0, warning 0)")
	assert.Contains(t, md, "## Debug session")

	out, err := Render(md, "notty", 100)
	require.NoError(t, err)
	assert.Contains(t, out, "Debug report")
}
