package remote

import (
	"encoding/json"
	"fmt"
)

// Known message types. Anything else goes to debug listeners.
const (
	TypeEval       = "eval"
	TypeProfile    = "profile"
	TypeNetwork    = "network"
	TypeConnection = "connection"
)

// Message is one protocol unit: {"type": ..., "payload": ...}.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a message of the given type.
func NewMessage(typ string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: typ}, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return Message{Type: typ, Payload: raw}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", typ, err)
	}
	return Message{Type: typ, Payload: data}, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// ResultType is the reply type for a request of type typ.
func ResultType(typ string) string {
	return typ + "Result"
}
