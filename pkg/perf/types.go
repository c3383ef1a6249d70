// Package perf samples coarse process performance: periodic snapshots,
// named measurements, and frame-drop detection.
package perf

import (
	"time"

	"github.com/kcaldas/devkit/pkg/events"
)

// MetricType classifies an entry in the metrics history.
type MetricType string

const (
	MetricFPS     MetricType = "fps"
	MetricMemory  MetricType = "memory"
	MetricCPU     MetricType = "cpu"
	MetricNetwork MetricType = "network"
)

// Metric is one converted performance entry.
type Metric struct {
	Name      string     `json:"name,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Value     float64    `json:"value"`
	Type      MetricType `json:"type"`
}

// Entry kinds produced by the host's measurement facility.
const (
	EntryMeasure  = "measure"
	EntryResource = "resource"
	EntryFrame    = "frame"
	EntryMemory   = "memory"
	EntryCPU      = "cpu"
)

// Entry is a raw performance entry (a completed measurement or a resource
// timing).
type Entry struct {
	Name     string
	Kind     string
	Start    time.Time
	Duration time.Duration
}

// MetricTypeFor maps an entry kind to its metric type. Unknown kinds,
// including measure and resource entries, count as network.
func MetricTypeFor(kind string) MetricType {
	switch kind {
	case EntryFrame:
		return MetricFPS
	case EntryMemory:
		return MetricMemory
	case EntryCPU:
		return MetricCPU
	default:
		return MetricNetwork
	}
}

// Memory is heap usage in bytes.
type Memory struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
}

// NetworkStats are the network proxies of a snapshot.
type NetworkStats struct {
	Latency   time.Duration `json:"latency"`
	Bandwidth float64       `json:"bandwidth"` // bytes per second
}

// Snapshot is one sampled measurement.
type Snapshot struct {
	Timestamp time.Time    `json:"timestamp"`
	FPS       float64      `json:"fps"`
	Memory    Memory       `json:"memory"`
	CPU       float64      `json:"cpu"` // percent of available CPU
	Network   NetworkStats `json:"network"`
}

// Topic implements events.Event.
func (Snapshot) Topic() string { return events.TopicPerfSnapshot }
