package network

import (
	"strings"
	"time"

	"github.com/kcaldas/devkit/pkg/events"
	"github.com/tidwall/gjson"
)

// Header stores header names lower-cased.
type Header map[string]string

// Get returns the value for key, case-insensitively.
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set stores value under the lower-cased key.
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del removes key.
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Clone returns a copy of h.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Request is one outbound call.
type Request struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	Headers   Header    `json:"headers"`
	Body      []byte    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRequest creates a request with an initialised header map.
func NewRequest(method, url string, body []byte) *Request {
	return &Request{
		URL:     url,
		Method:  method,
		Headers: make(Header),
		Body:    body,
	}
}

// Response is the outcome of a request, linked to it by RequestID.
type Response struct {
	RequestID string        `json:"requestId"`
	Status    int           `json:"status"`
	Headers   Header        `json:"headers"`
	Body      []byte        `json:"body,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Mocked    bool          `json:"mocked,omitempty"`
}

// Get looks up a gjson path in a JSON response body.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Failure records a request that did not produce a response.
type Failure struct {
	RequestID string    `json:"requestId"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType tags monitor events.
type EventType string

const (
	EventRequest  EventType = "request"
	EventResponse EventType = "response"
	EventError    EventType = "error"
)

// Event is delivered to monitor listeners. Exactly one of Request, Response
// or Failure is set, matching Type.
type Event struct {
	Type     EventType `json:"type"`
	Request  *Request  `json:"request,omitempty"`
	Response *Response `json:"response,omitempty"`
	Failure  *Failure  `json:"failure,omitempty"`
}

// Topic implements events.Event.
func (Event) Topic() string { return events.TopicNetwork }
