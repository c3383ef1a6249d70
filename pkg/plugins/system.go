// Package plugins keeps the registry of toolkit extensions and broadcasts
// toolkit events to them.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
)

var (
	ErrAlreadyRegistered = errors.New("plugin already registered")
	ErrInvalidVersion    = errors.New("invalid plugin version")
	ErrNotFound          = errors.New("plugin not found")
)

// Plugin is a registered extension.
type Plugin interface {
	Name() string
	Version() string
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// EventHandler is implemented by plugins that want broadcast events.
type EventHandler interface {
	OnEvent(ctx context.Context, event any) error
}

// Funcs builds a Plugin from functions. Nil hooks are no-ops.
type Funcs struct {
	PluginName    string
	PluginVersion string
	Init          func(ctx context.Context) error
	Clean         func(ctx context.Context) error
	Event         func(ctx context.Context, event any) error
}

func (f *Funcs) Name() string    { return f.PluginName }
func (f *Funcs) Version() string { return f.PluginVersion }

func (f *Funcs) Initialize(ctx context.Context) error {
	if f.Init == nil {
		return nil
	}
	return f.Init(ctx)
}

func (f *Funcs) Cleanup(ctx context.Context) error {
	if f.Clean == nil {
		return nil
	}
	return f.Clean(ctx)
}

func (f *Funcs) OnEvent(ctx context.Context, event any) error {
	if f.Event == nil {
		return nil
	}
	return f.Event(ctx, event)
}

// System is the plugin registry. Plugins receive events in registration
// order.
type System struct {
	log debuglog.Sink

	mu      sync.RWMutex
	order   []string
	plugins map[string]Plugin
}

// NewSystem creates an empty registry.
func NewSystem(log debuglog.Sink) *System {
	if log == nil {
		log = debuglog.Discard()
	}
	return &System{
		log:     log,
		plugins: make(map[string]Plugin),
	}
}

// Register initialises p and adds it. A duplicate name or a version that is
// not semver is rejected without calling Initialize.
func (s *System) Register(ctx context.Context, p Plugin) error {
	name := p.Name()
	if _, err := semver.NewVersion(p.Version()); err != nil {
		err = fmt.Errorf("%w: %s %q: %v", ErrInvalidVersion, name, p.Version(), err)
		s.log.Error("Failed to register plugin "+name, "error", err.Error())
		return err
	}

	s.mu.RLock()
	_, exists := s.plugins[name]
	s.mu.RUnlock()
	if exists {
		err := fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
		s.log.Error("Failed to register plugin "+name, "error", err.Error())
		return err
	}

	if err := s.safely(func() error { return p.Initialize(ctx) }); err != nil {
		s.log.Error("Failed to register plugin "+name, "error", err.Error())
		return fmt.Errorf("initializing plugin %s: %w", name, err)
	}

	s.mu.Lock()
	if _, exists := s.plugins[name]; exists {
		s.mu.Unlock()
		_ = s.safely(func() error { return p.Cleanup(ctx) })
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	s.plugins[name] = p
	s.order = append(s.order, name)
	s.mu.Unlock()

	s.log.Info("Plugin registered", "name", name, "version", p.Version())
	return nil
}

// Unregister runs the plugin's cleanup and removes it. If cleanup fails the
// plugin stays registered.
func (s *System) Unregister(ctx context.Context, name string) error {
	s.mu.RLock()
	p, ok := s.plugins[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err := s.safely(func() error { return p.Cleanup(ctx) }); err != nil {
		s.log.Error("Failed to unregister plugin "+name, "error", err.Error())
		return fmt.Errorf("cleaning up plugin %s: %w", name, err)
	}

	s.mu.Lock()
	delete(s.plugins, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.log.Info("Plugin unregistered", "name", name)
	return nil
}

// Broadcast hands event to every plugin that handles events, one at a time.
// A failing plugin is logged and skipped.
func (s *System) Broadcast(ctx context.Context, event any) {
	for _, p := range s.All() {
		h, ok := p.(EventHandler)
		if !ok {
			continue
		}
		if err := s.safely(func() error { return h.OnEvent(ctx, event) }); err != nil {
			s.log.Error(fmt.Sprintf("Plugin %s failed to handle event", p.Name()), "error", err.Error())
		}
	}
}

// Get returns the plugin registered under name.
func (s *System) Get(name string) (Plugin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plugins[name]
	return p, ok
}

// All returns the plugins in registration order.
func (s *System) All() []Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Plugin, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.plugins[n])
	}
	return out
}

// Relay subscribes the system to topics on bus so every event published
// there is broadcast to plugins.
func (s *System) Relay(bus events.Subscriber, topics ...string) {
	for _, topic := range topics {
		bus.Subscribe(topic, func(event interface{}) {
			s.Broadcast(context.Background(), event)
		})
	}
}

func (s *System) safely(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = events.RecoveredError(rec)
		}
	}()
	return fn()
}
