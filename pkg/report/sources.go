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

// The read side of each component a report pulls from.
type (
	LogSource interface {
		History() []debuglog.Entry
		Errors() []debuglog.Entry
	}
	NetworkSource interface {
		Requests() []network.Request
		Responses() []network.Response
		Errors() []network.Failure
		LatencyHistory() []time.Duration
	}
	MockSource interface {
		Mocks() []network.MockRule
	}
	PerfSource interface {
		Metrics() []perf.Metric
		Snapshots() []perf.Snapshot
	}
	MemorySource interface {
		Snapshots() []memleak.Snapshot
	}
	StateSource interface {
		CurrentSnapshot() (timetravel.Snapshot, bool)
		Snapshots() []timetravel.Snapshot
		Since(t time.Time) []timetravel.Snapshot
	}
	ErrorSource interface {
		History() []errtrack.Report
	}
	DeviceSource interface {
		Info() device.Info
	}
)

// Sources are the components a Generator reads. Nil sources leave their
// section empty.
type Sources struct {
	Logs     LogSource
	Network  NetworkSource
	Mocks    MockSource
	Perf     PerfSource
	Memory   MemorySource
	State    StateSource
	Errors   ErrorSource
	Device   DeviceSource
	Identity device.Identity
}
