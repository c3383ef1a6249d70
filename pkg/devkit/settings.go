package devkit

import (
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/settings"
)

// registerAppliers makes the settings file the switchboard for the
// components. Each applier is idempotent.
func (t *Toolkit) registerAppliers() {
	t.Settings.AddApplier(func(s settings.Settings) {
		t.Log.SetLevel(debuglog.ParseLevel(s.LogLevel))
		t.APIDebug.SetEnabled(s.DebugMode)
	})

	t.Settings.AddApplier(func(s settings.Settings) {
		if s.NetworkInspection {
			if !t.Monitor.IsMonitoring() {
				t.Monitor.Start()
			}
		} else if t.Monitor.IsMonitoring() {
			t.Monitor.Stop()
		}
	})

	t.Settings.AddApplier(func(s settings.Settings) {
		perfOn := s.PerformanceMonitoring
		if perfOn {
			t.Profiler.StartRecording(t.Config.ProfilerInterval)
		} else if t.Profiler.IsRecording() {
			t.Profiler.StopRecording()
		}

		if perfOn && s.Performance.CaptureFrameMetrics {
			t.Frames.Start()
		} else if t.Frames.IsMonitoring() {
			t.Frames.Stop()
		}

		if perfOn && s.Performance.CaptureMemoryMetrics {
			t.Leaks.Start(t.Config.LeakInterval)
		} else if t.Leaks.IsMonitoring() {
			t.Leaks.Stop()
		}
	})

	t.Settings.AddApplier(func(s settings.Settings) {
		switch {
		case s.RemoteDebugging && !t.Remote.IsConnected():
			go t.connectRemoteInBackground()
		case !s.RemoteDebugging && t.Remote.IsConnected():
			t.DisconnectRemote()
		}
	})
}
