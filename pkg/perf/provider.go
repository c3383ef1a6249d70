package perf

import (
	"runtime"
	"runtime/metrics"
	"sync"
	"time"
)

// Provider supplies the values of a snapshot. Hosts with better sources
// (a real frame clock, OS counters) plug in their own.
type Provider interface {
	FPS() float64
	Memory() Memory
	CPU() float64
	Network() NetworkStats
}

// FPSSource reports the current frame rate.
type FPSSource interface {
	CurrentFPS() float64
}

// NetworkSource reports recent network behaviour.
type NetworkSource interface {
	AverageLatency() time.Duration
	Bandwidth() float64
}

const cpuMetric = "/cpu/classes/total:cpu-seconds"

// RuntimeProvider reads memory and CPU from the Go runtime. FPS and network
// values come from optional sources and are reported as 60 and zero when
// absent.
type RuntimeProvider struct {
	Frames  FPSSource
	Traffic NetworkSource

	mu       sync.Mutex
	lastCPU  float64
	lastWall time.Time
	now      func() time.Time
}

// NewRuntimeProvider creates a provider over the optional sources.
func NewRuntimeProvider(frames FPSSource, traffic NetworkSource) *RuntimeProvider {
	return &RuntimeProvider{Frames: frames, Traffic: traffic, now: time.Now}
}

// FPS implements Provider.
func (p *RuntimeProvider) FPS() float64 {
	if p.Frames == nil {
		return TargetFPS
	}
	return p.Frames.CurrentFPS()
}

// Memory implements Provider.
func (p *RuntimeProvider) Memory() Memory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Memory{Used: ms.HeapAlloc, Total: ms.HeapSys}
}

// CPU implements Provider. It returns the share of available CPU time the
// process used since the previous call; the first call returns zero.
func (p *RuntimeProvider) CPU() float64 {
	sample := []metrics.Sample{{Name: cpuMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindFloat64 {
		return 0
	}
	cpu := sample[0].Value.Float64()

	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	prevCPU, prevWall := p.lastCPU, p.lastWall
	p.lastCPU, p.lastWall = cpu, now
	if prevWall.IsZero() {
		return 0
	}

	wall := now.Sub(prevWall).Seconds() * float64(runtime.GOMAXPROCS(0))
	if wall <= 0 {
		return 0
	}
	pct := (cpu - prevCPU) / wall * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Network implements Provider.
func (p *RuntimeProvider) Network() NetworkStats {
	if p.Traffic == nil {
		return NetworkStats{}
	}
	return NetworkStats{Latency: p.Traffic.AverageLatency(), Bandwidth: p.Traffic.Bandwidth()}
}
