package plugins

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("initializes before adding", func(t *testing.T) {
		s := NewSystem(nil)
		var initialized bool
		err := s.Register(ctx, &Funcs{PluginName: "redux", PluginVersion: "1.2.0", Init: func(context.Context) error {
			_, registered := s.Get("redux")
			assert.False(t, registered)
			initialized = true
			return nil
		}})
		require.NoError(t, err)
		assert.True(t, initialized)
		_, ok := s.Get("redux")
		assert.True(t, ok)
	})

	t.Run("duplicate name is rejected and logged", func(t *testing.T) {
		log := debuglog.New(debuglog.Options{})
		s := NewSystem(log)
		require.NoError(t, s.Register(ctx, &Funcs{PluginName: "a", PluginVersion: "1.0.0"}))

		initCalled := false
		err := s.Register(ctx, &Funcs{PluginName: "a", PluginVersion: "2.0.0", Init: func(context.Context) error {
			initCalled = true
			return nil
		}})

		assert.ErrorIs(t, err, ErrAlreadyRegistered)
		assert.False(t, initCalled)
		assert.Len(t, s.All(), 1)
		assert.Equal(t, "1.0.0", s.All()[0].Version())
		assert.Equal(t, "Failed to register plugin a", log.Errors()[0].Message)
	})

	t.Run("invalid version", func(t *testing.T) {
		s := NewSystem(nil)
		err := s.Register(ctx, &Funcs{PluginName: "b", PluginVersion: "latest"})
		assert.ErrorIs(t, err, ErrInvalidVersion)
		assert.Empty(t, s.All())
	})

	t.Run("failed initialize is not registered", func(t *testing.T) {
		s := NewSystem(nil)
		err := s.Register(ctx, &Funcs{PluginName: "c", PluginVersion: "0.1.0", Init: func(context.Context) error {
			return errors.New("no storage")
		}})
		assert.Error(t, err)
		assert.Empty(t, s.All())
	})
}

func TestSystem_Unregister(t *testing.T) {
	ctx := context.Background()
	s := NewSystem(nil)
	cleaned := 0
	require.NoError(t, s.Register(ctx, &Funcs{PluginName: "a", PluginVersion: "1.0.0", Clean: func(context.Context) error {
		cleaned++
		return nil
	}}))
	require.NoError(t, s.Register(ctx, &Funcs{PluginName: "stuck", PluginVersion: "1.0.0", Clean: func(context.Context) error {
		return errors.New("busy")
	}}))

	require.NoError(t, s.Unregister(ctx, "a"))
	assert.Equal(t, 1, cleaned)
	assert.ErrorIs(t, s.Unregister(ctx, "a"), ErrNotFound)

	assert.Error(t, s.Unregister(ctx, "stuck"))
	_, ok := s.Get("stuck")
	assert.True(t, ok, "plugin stays when cleanup fails")
}

func TestSystem_BroadcastIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	log := debuglog.New(debuglog.Options{})
	s := NewSystem(log)

	var order []string
	require.NoError(t, s.Register(ctx, &Funcs{PluginName: "first", PluginVersion: "1.0.0", Event: func(context.Context, any) error {
		order = append(order, "first")
		panic("boom")
	}}))
	require.NoError(t, s.Register(ctx, &Funcs{PluginName: "second", PluginVersion: "1.0.0", Event: func(context.Context, any) error {
		order = append(order, "second")
		return errors.New("soft failure")
	}}))
	require.NoError(t, s.Register(ctx, &Funcs{PluginName: "third", PluginVersion: "1.0.0", Event: func(_ context.Context, e any) error {
		order = append(order, "third:"+e.(string))
		return nil
	}}))

	s.Broadcast(ctx, "ping")

	assert.Equal(t, []string{"first", "second", "third:ping"}, order)
	var failures []string
	for _, e := range log.Errors() {
		failures = append(failures, e.Message)
	}
	assert.Equal(t, []string{"Plugin first failed to handle event", "Plugin second failed to handle event"}, failures)
}

func TestSystem_Relay(t *testing.T) {
	ctx := context.Background()
	bus := events.NewEventBus(nil)
	s := NewSystem(nil)

	got := make(chan any, 1)
	require.NoError(t, s.Register(ctx, &Funcs{PluginName: "relay", PluginVersion: "1.0.0", Event: func(_ context.Context, e any) error {
		got <- e
		return nil
	}}))
	s.Relay(bus, events.TopicCommand)

	bus.Publish(events.TopicCommand, "clearLogs")

	select {
	case e := <-got:
		assert.Equal(t, "clearLogs", e)
	case <-time.After(time.Second):
		t.Fatal("event not relayed")
	}
	bus.Shutdown()
}
