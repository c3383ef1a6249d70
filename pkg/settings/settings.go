// Package settings persists the toolkit's debug switches and applies them to
// the running components.
package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/fileops"
	"gopkg.in/yaml.v3"
)

// NetworkSettings controls what the network monitor captures.
type NetworkSettings struct {
	CaptureRequests  bool `yaml:"captureRequests" json:"captureRequests"`
	CaptureResponses bool `yaml:"captureResponses" json:"captureResponses"`
}

// PerformanceSettings controls which metrics the profiler samples.
type PerformanceSettings struct {
	CaptureFrameMetrics  bool `yaml:"captureFrameMetrics" json:"captureFrameMetrics"`
	CaptureMemoryMetrics bool `yaml:"captureMemoryMetrics" json:"captureMemoryMetrics"`
	CaptureCPUMetrics    bool `yaml:"captureCPUMetrics" json:"captureCPUMetrics"`
}

// Settings are the persisted debug switches.
type Settings struct {
	DebugMode             bool                `yaml:"debugMode" json:"debugMode"`
	RemoteDebugging       bool                `yaml:"remoteDebugging" json:"remoteDebugging"`
	NetworkInspection     bool                `yaml:"networkInspection" json:"networkInspection"`
	PerformanceMonitoring bool                `yaml:"performanceMonitoring" json:"performanceMonitoring"`
	LogLevel              string              `yaml:"logLevel" json:"logLevel"`
	Network               NetworkSettings     `yaml:"network" json:"network"`
	Performance           PerformanceSettings `yaml:"performance" json:"performance"`
}

// Defaults returns the settings used before anything is persisted.
func Defaults(development bool) Settings {
	return Settings{
		DebugMode:             development,
		NetworkInspection:     true,
		PerformanceMonitoring: true,
		LogLevel:              "info",
		Network: NetworkSettings{
			CaptureRequests:  true,
			CaptureResponses: true,
		},
		Performance: PerformanceSettings{
			CaptureFrameMetrics:  true,
			CaptureMemoryMetrics: true,
			CaptureCPUMetrics:    true,
		},
	}
}

// Applier pushes settings into a running component.
type Applier func(Settings)

// Manager owns the settings file.
type Manager struct {
	path        string
	development bool
	files       fileops.Manager
	log         debuglog.Sink
	listeners   *events.Registry[Settings]

	mu       sync.RWMutex
	current  Settings
	appliers []Applier
	lastRaw  []byte
}

// NewManager creates a manager for the YAML file at path. It starts with
// the defaults; call Load to read the file.
func NewManager(path string, development bool, files fileops.Manager, log debuglog.Sink) *Manager {
	if files == nil {
		files = fileops.NewFileOpsManager()
	}
	if log == nil {
		log = debuglog.Discard()
	}
	m := &Manager{
		path:        path,
		development: development,
		files:       files,
		log:         log,
		current:     Defaults(development),
	}
	m.listeners = events.NewRegistry[Settings](func(err error) {
		log.Error("Settings listener failed", "error", err.Error())
	})
	return m
}

// Path returns the settings file location.
func (m *Manager) Path() string { return m.path }

// AddApplier registers fn. It is called with the current settings after
// every load, update and reset.
func (m *Manager) AddApplier(fn Applier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appliers = append(m.appliers, fn)
}

// AddListener registers fn for saved or reloaded settings.
func (m *Manager) AddListener(fn func(Settings)) events.Unsubscribe {
	return m.listeners.Add(fn)
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Load reads the file over the defaults and applies the result. A missing
// file leaves the defaults in place.
func (m *Manager) Load() error {
	s := Defaults(m.development)
	raw, err := m.files.ReadFile(m.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		raw = nil
	case err != nil:
		m.log.Error("Failed to load debug settings", "error", err.Error())
		return fmt.Errorf("reading settings: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &s); err != nil {
			m.log.Error("Failed to load debug settings", "error", err.Error())
			return fmt.Errorf("parsing settings %s: %w", m.path, err)
		}
	}

	m.mu.Lock()
	m.current = s
	m.lastRaw = raw
	m.mu.Unlock()

	m.apply(s)
	return nil
}

// Update changes the settings through fn, applies them, saves them and
// notifies listeners.
func (m *Manager) Update(fn func(*Settings)) error {
	m.mu.Lock()
	next := m.current
	fn(&next)
	m.current = next
	m.mu.Unlock()

	m.apply(next)
	return m.save(next)
}

// ResetToDefaults replaces the settings with the defaults.
func (m *Manager) ResetToDefaults() error {
	return m.Update(func(s *Settings) { *s = Defaults(m.development) })
}

func (m *Manager) save(s Settings) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		m.log.Error("Failed to save debug settings", "error", err.Error())
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := m.files.WriteFile(m.path, raw); err != nil {
		m.log.Error("Failed to save debug settings", "error", err.Error())
		return fmt.Errorf("writing settings: %w", err)
	}

	m.mu.Lock()
	m.lastRaw = raw
	m.mu.Unlock()

	m.listeners.Notify(s)
	return nil
}

func (m *Manager) apply(s Settings) {
	m.mu.RLock()
	appliers := make([]Applier, len(m.appliers))
	copy(appliers, m.appliers)
	m.mu.RUnlock()

	for _, fn := range appliers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					m.log.Error("Failed to apply debug settings", "error", events.RecoveredError(rec).Error())
				}
			}()
			fn(s)
		}()
	}
}

// Watch reloads the file whenever another process changes it, until ctx is
// done. Writes made by this manager are ignored.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating settings watcher: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := m.files.EnsureDir(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("creating settings dir: %w", err)
	}
	// The directory is watched because saves replace the file by rename.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(m.path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				m.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.log.Warn("Settings watcher error", "error", err.Error())
			}
		}
	}()
	return nil
}

func (m *Manager) reload() {
	raw, err := m.files.ReadFile(m.path)
	if err != nil {
		return
	}
	m.mu.RLock()
	unchanged := bytes.Equal(raw, m.lastRaw)
	m.mu.RUnlock()
	if unchanged {
		return
	}

	if err := m.Load(); err != nil {
		return
	}
	s := m.Get()
	m.log.Info("Debug settings reloaded", "path", m.path)
	m.listeners.Notify(s)
}
