package events

import "time"

// Topics published on the toolkit bus.
const (
	TopicLogEntry     = "log.entry"
	TopicNetwork      = "network.event"
	TopicPerfSnapshot = "perf.snapshot"
	TopicStateTravel  = "state.travel"
	TopicRemote       = "remote.message"
	TopicCommand      = "command.executed"
	TopicMemoryLeak   = "memory.leak"
)

// AllTopics lists every topic the toolkit publishes.
var AllTopics = []string{
	TopicLogEntry,
	TopicNetwork,
	TopicPerfSnapshot,
	TopicStateTravel,
	TopicRemote,
	TopicCommand,
	TopicMemoryLeak,
}

// Event is anything that knows the topic it is published on.
type Event interface {
	Topic() string
}

// Envelope wraps a component payload for relay on the bus.
type Envelope struct {
	Kind    string    `json:"type"`
	Payload any       `json:"payload"`
	Time    time.Time `json:"timestamp"`
}

// Topic returns the envelope kind.
func (e Envelope) Topic() string {
	return e.Kind
}

// NewEnvelope stamps a payload with the current time.
func NewEnvelope(kind string, payload any) Envelope {
	return Envelope{Kind: kind, Payload: payload, Time: time.Now()}
}
