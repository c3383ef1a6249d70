package devkit

import (
	"sync/atomic"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/memleak"
	"github.com/kcaldas/devkit/pkg/network"
	"github.com/kcaldas/devkit/pkg/perf"
	"github.com/kcaldas/devkit/pkg/remote"
	"github.com/kcaldas/devkit/pkg/timetravel"
)

// forwardedTopics are sent to the remote client while it is connected.
var forwardedTopics = []string{
	events.TopicLogEntry,
	events.TopicNetwork,
	events.TopicPerfSnapshot,
	events.TopicStateTravel,
	events.TopicCommand,
	events.TopicMemoryLeak,
}

// relayEvents publishes every component's events on the bus. Plugins and
// the remote forwarder consume the bus, so a slow plugin never blocks the
// component that produced the event.
func (t *Toolkit) relayEvents() {
	t.track(t.Log.AddObserver(func(e debuglog.Entry) { t.Bus.PublishEvent(e) }))
	t.track(t.Monitor.AddListener(func(e network.Event) { t.Bus.PublishEvent(e) }))
	t.track(t.Profiler.AddObserver(func(s perf.Snapshot) { t.Bus.PublishEvent(s) }))
	t.track(t.State.Subscribe(func(s timetravel.Snapshot) { t.Bus.PublishEvent(s) }))
	t.track(t.Leaks.OnLeak(func(l memleak.Leak) { t.Bus.PublishEvent(l) }))

	t.Plugins.Relay(t.Bus, events.AllTopics...)

	for _, topic := range forwardedTopics {
		topic := topic
		t.Bus.Subscribe(topic, func(event interface{}) {
			t.forward.send(topic, event)
		})
	}
}

// forwarder sends bus events to the remote client. A failed send pauses
// forwarding until the next successful connection so that the failure's own
// log entry is not forwarded into the same broken connection.
type forwarder struct {
	remote *remote.Debugger
	paused atomic.Bool
}

func (f *forwarder) send(topic string, event any) {
	if f.paused.Load() || !f.remote.IsConnected() {
		return
	}
	if err := f.remote.Send(topic, event); err != nil {
		f.paused.Store(true)
	}
}

func (f *forwarder) onRemoteMessage(msg remote.Message) {
	if msg.Type == remote.TypeConnection {
		f.paused.Store(false)
	}
}
