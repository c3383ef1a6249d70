package memleak

import (
	"sync"
)

// Tracker counts live component instances and event subscriptions. Hosts
// call it from their mount/unmount and subscribe/unsubscribe paths.
type Tracker struct {
	mu            sync.Mutex
	components    map[string]int
	subscriptions map[string]int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		components:    make(map[string]int),
		subscriptions: make(map[string]int),
	}
}

// Mount records a new instance of component.
func (t *Tracker) Mount(component string) {
	t.adjust(t.components, component, 1)
}

// Unmount records that an instance of component went away.
func (t *Tracker) Unmount(component string) {
	t.adjust(t.components, component, -1)
}

// Subscribe records a new subscription to name.
func (t *Tracker) Subscribe(name string) {
	t.adjust(t.subscriptions, name, 1)
}

// Unsubscribe records that a subscription to name was removed.
func (t *Tracker) Unsubscribe(name string) {
	t.adjust(t.subscriptions, name, -1)
}

// TrackSubscription records a subscription and returns the func that
// releases it. Releasing twice counts once.
func (t *Tracker) TrackSubscription(name string) func() {
	t.Subscribe(name)
	var once sync.Once
	return func() { once.Do(func() { t.Unsubscribe(name) }) }
}

// Components returns a copy of the component counts.
func (t *Tracker) Components() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyCounts(t.components)
}

// Subscriptions returns a copy of the subscription counts.
func (t *Tracker) Subscriptions() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyCounts(t.subscriptions)
}

func (t *Tracker) adjust(m map[string]int, key string, delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := m[key] + delta
	if n <= 0 {
		delete(m, key)
		return
	}
	m[key] = n
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
