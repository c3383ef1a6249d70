// Package report snapshots every toolkit component into one exportable
// document.
package report

import (
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/device"
	"github.com/kcaldas/devkit/pkg/errtrack"
	"github.com/kcaldas/devkit/pkg/memleak"
	"github.com/kcaldas/devkit/pkg/network"
	"github.com/kcaldas/devkit/pkg/perf"
	"github.com/kcaldas/devkit/pkg/timetravel"
)

// Report is the exported document. Generate deep-copies it, so it shares no
// maps, slices or state values with the components it was built from.
type Report struct {
	ID                 string             `json:"id"`
	Timestamp          time.Time          `json:"timestamp"`
	DeviceInfo         device.Info        `json:"deviceInfo"`
	Identity           *Identity          `json:"identity,omitempty"`
	PerformanceMetrics PerformanceMetrics `json:"performanceMetrics"`
	NetworkLogs        NetworkLogs        `json:"networkLogs"`
	ErrorReports       ErrorReports       `json:"errorReports"`
	Logs               []debuglog.Entry   `json:"logs"`
	State              State              `json:"state"`
	DebugSession       *Session           `json:"debugSession,omitempty"`
}

// Identity tags a report with the host's user and session.
type Identity struct {
	UserID    string           `json:"userId,omitempty"`
	SessionID string           `json:"sessionId,omitempty"`
	Location  *device.Location `json:"location,omitempty"`
}

// PerformanceMetrics holds the per-series profiler history.
type PerformanceMetrics struct {
	FPS             []float64          `json:"fps"`
	Memory          []uint64           `json:"memory"`
	CPU             []float64          `json:"cpu"`
	NetworkLatency  []float64          `json:"networkLatency"` // milliseconds
	Metrics         []perf.Metric      `json:"metrics"`
	MemorySnapshots []memleak.Snapshot `json:"memorySnapshots"`
}

// NetworkLogs is the monitor history plus the configured mocks.
type NetworkLogs struct {
	Requests  []network.Request  `json:"requests"`
	Responses []network.Response `json:"responses"`
	Errors    []network.Failure  `json:"errors"`
	Mocks     []network.MockRule `json:"mocks"`
}

// ErrorReports groups tracked errors and error-level log entries.
type ErrorReports struct {
	Tracked []errtrack.Report `json:"tracked"`
	Logged  []debuglog.Entry  `json:"logged"`
}

// State is the time-travel view.
type State struct {
	Current *timetravel.Snapshot  `json:"current,omitempty"`
	History []timetravel.Snapshot `json:"history"`
}

// Session is a recorded debug session.
type Session struct {
	StartTime    time.Time             `json:"startTime"`
	EndTime      time.Time             `json:"endTime,omitempty"`
	Actions      []Action              `json:"actions"`
	StateChanges []timetravel.Snapshot `json:"stateChanges"`
}

// Action is one host action recorded during a session.
type Action struct {
	Timestamp time.Time `json:"timestamp"`
	Action    any       `json:"action"`
}
