package devkit

import (
	"context"
	"testing"

	"github.com/kcaldas/devkit/pkg/commands"
	"github.com/kcaldas/devkit/pkg/device"
	"github.com/kcaldas/devkit/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCommands_ClearLogs(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})
	tk.Log.Info("noise")

	out, err := tk.Commands.Execute(context.Background(), "clearLogs")

	require.NoError(t, err)
	assert.Equal(t, "Logs cleared", out)
	assert.Empty(t, tk.Log.History())
}

func TestDefaultCommands_Network(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})
	ctx := context.Background()
	tk.Monitor.Start()

	_, err := tk.Client.Fetch(ctx, "GET", "https://api.example/users")
	require.NoError(t, err)
	require.Len(t, tk.Monitor.Requests(), 1)

	out, err := tk.Commands.Execute(ctx, "clearNetwork")
	require.NoError(t, err)
	assert.Equal(t, "Network logs cleared", out)
	assert.Empty(t, tk.Monitor.Requests())

	_, err = tk.Commands.ExecuteLine(ctx, ":mock get https://api.example/users 418 teapot")
	require.NoError(t, err)
	assert.True(t, tk.Mocker.IsEnabled())

	resp, err := tk.Client.Fetch(ctx, "GET", "https://api.example/users")
	require.NoError(t, err)
	assert.Equal(t, 418, resp.Status)
	assert.Equal(t, "teapot", string(resp.Body))

	list, err := tk.Commands.Execute(ctx, "mocks")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET:https://api.example/users -> 418 (on)"}, list)

	_, err = tk.Commands.Execute(ctx, "unmock", "GET", "https://api.example/users")
	require.NoError(t, err)
	assert.Empty(t, tk.Mocker.Mocks())

	_, err = tk.Commands.Execute(ctx, "mock", "GET")
	assert.Error(t, err)
}

func TestDefaultCommands_Profiling(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})
	ctx := context.Background()

	out, err := tk.Commands.Execute(ctx, "startProfiling", "50")
	require.NoError(t, err)
	assert.Equal(t, "Performance profiling started", out)
	assert.True(t, tk.Profiler.IsRecording())

	out, err = tk.Commands.Execute(ctx, "stopProfiling")
	require.NoError(t, err)
	assert.Equal(t, "Performance profiling stopped", out)
	assert.False(t, tk.Profiler.IsRecording())

	_, err = tk.Commands.Execute(ctx, "startProfiling", "soon")
	assert.Error(t, err)
	assert.False(t, tk.Profiler.IsRecording())
}

func TestDefaultCommands_DeviceAndHelp(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})
	ctx := context.Background()

	info, err := tk.Commands.Execute(ctx, "getDeviceInfo")
	require.NoError(t, err)
	assert.Equal(t, tk.Device.Info(), info.(device.Info))

	help, err := tk.Commands.Execute(ctx, "?")
	require.NoError(t, err)
	lines := help.([]string)
	assert.Len(t, lines, len(tk.Commands.Commands()))

	_, err = tk.Commands.Execute(ctx, "nope")
	assert.ErrorIs(t, err, commands.ErrCommandNotFound)
}

func TestDefaultCommands_StateTravel(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})
	ctx := context.Background()
	tk.State.StartRecording()
	tk.State.CaptureState(map[string]any{"count": 1}, "inc", nil)
	tk.State.CaptureState(map[string]any{"count": 2}, "inc", nil)

	out, err := tk.Commands.Execute(ctx, "undo")
	require.NoError(t, err)
	assert.Equal(t, true, out)
	assert.Equal(t, 0, tk.State.CurrentIndex())

	out, err = tk.Commands.Execute(ctx, "redo")
	require.NoError(t, err)
	assert.Equal(t, true, out)
	assert.Equal(t, 1, tk.State.CurrentIndex())

	_, err = tk.Commands.Execute(ctx, "travel", "0")
	require.NoError(t, err)
	assert.Equal(t, 0, tk.State.CurrentIndex())

	_, err = tk.Commands.Execute(ctx, "travel", "9")
	assert.Error(t, err)
}

func TestDefaultCommands_ReportAndSession(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})
	ctx := context.Background()

	path, err := tk.Commands.Execute(ctx, "report", "share")
	require.NoError(t, err)
	assert.FileExists(t, path.(string))
	assert.Contains(t, tk.clip.text, `"deviceInfo"`)

	_, err = tk.Commands.Execute(ctx, "session", "start")
	require.NoError(t, err)
	assert.True(t, tk.Reports.IsRecording())

	path, err = tk.Commands.Execute(ctx, "session", "stop")
	require.NoError(t, err)
	assert.FileExists(t, path.(string))
	assert.False(t, tk.Reports.IsRecording())
}

func TestDefaultCommands_Plugins(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})

	out, err := tk.Commands.Execute(context.Background(), "plugins")

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAppliers_FollowSettings(t *testing.T) {
	tk := newTestToolkit(t, failingDialer{})

	require.NoError(t, tk.Settings.Update(func(s *settings.Settings) {
		*s = settings.Defaults(true)
		s.LogLevel = "error"
	}))
	assert.True(t, tk.Monitor.IsMonitoring())
	assert.True(t, tk.Profiler.IsRecording())
	assert.True(t, tk.Frames.IsMonitoring())
	assert.True(t, tk.Leaks.IsMonitoring())

	tk.Log.Info("filtered")
	assert.Empty(t, tk.Log.History())

	require.NoError(t, tk.Settings.Update(func(s *settings.Settings) {
		s.NetworkInspection = false
		s.Performance.CaptureFrameMetrics = false
	}))
	assert.False(t, tk.Monitor.IsMonitoring())
	assert.True(t, tk.Profiler.IsRecording())
	assert.False(t, tk.Frames.IsMonitoring())

	require.NoError(t, tk.Settings.Update(func(s *settings.Settings) {
		s.PerformanceMonitoring = false
	}))
	assert.False(t, tk.Profiler.IsRecording())
	assert.False(t, tk.Leaks.IsMonitoring())
}
