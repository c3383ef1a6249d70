//go:build wireinject

package di

import (
	"github.com/google/wire"
	"github.com/kcaldas/devkit/pkg/config"
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/devkit"
	"github.com/kcaldas/devkit/pkg/device"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/fileops"
	"github.com/kcaldas/devkit/pkg/network"
)

// Providers shared by every injector.
var CoreSet = wire.NewSet(
	ProvideLogger,
	ProvideDebugLog,
	wire.Bind(new(debuglog.Sink), new(*debuglog.Logger)),
	ProvideEventBus,
	wire.Bind(new(events.Publisher), new(*events.InMemoryBus)),
	fileops.NewFileOpsManager,
	ProvideStore,
)

// Providers for the network layer.
var NetworkSet = wire.NewSet(
	ProvideTokenStore,
	network.NewMocker,
	network.NewMonitor,
	network.NewDebugInterceptor,
	ProvidePipeline,
	network.NewClient,
)

// Providers for the observability components.
var ToolkitSet = wire.NewSet(
	CoreSet,
	NetworkSet,
	ProvideMeasurements,
	ProvideFrameMonitor,
	ProvideProfiler,
	ProvideLeakDetector,
	ProvideStateRecorder,
	ProvideRemoteDebugger,
	ProvideEvaluator,
	ProvidePlugins,
	ProvideCommands,
	device.NewCollector,
	ProvideErrorTracker,
	ProvideSettings,
	ProvideReportGenerator,
	wire.Struct(new(devkit.Parts), "*"),
	devkit.New,
)

// InitializeToolkit builds a toolkit for cfg.
func InitializeToolkit(cfg config.Toolkit) *devkit.Toolkit {
	wire.Build(ToolkitSet)
	return nil
}

// ProvideToolkit builds a toolkit configured from the environment.
func ProvideToolkit() *devkit.Toolkit {
	wire.Build(ProvideToolkitConfig, ToolkitSet)
	return nil
}
