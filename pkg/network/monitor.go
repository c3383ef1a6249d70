package network

import (
	"context"
	"sync"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/ring"
)

const latencyHistorySize = 100

// Monitor records request/response/error triples for every call that passes
// through the pipelines it is installed on. Nothing is recorded unless
// monitoring has been started.
type Monitor struct {
	log       debuglog.Sink
	listeners *events.Registry[Event]
	latency   *ring.Buffer[time.Duration]
	now       func() time.Time

	mu         sync.RWMutex
	monitoring bool
	order      []string
	requests   map[string]*Request
	responses  map[string]*Response
	failures   []Failure
	installed  map[*Pipeline]struct{}
}

// NewMonitor creates a stopped monitor.
func NewMonitor(log debuglog.Sink) *Monitor {
	if log == nil {
		log = debuglog.Discard()
	}
	m := &Monitor{
		log:       log,
		latency:   ring.New[time.Duration](latencyHistorySize),
		now:       time.Now,
		requests:  make(map[string]*Request),
		responses: make(map[string]*Response),
		installed: make(map[*Pipeline]struct{}),
	}
	m.listeners = events.NewRegistry[Event](func(err error) {
		log.Error("Network listener error", "error", err.Error())
	})
	return m
}

// Install adds the monitor to p. Installing on the same pipeline twice is a
// no-op.
func (m *Monitor) Install(p *Pipeline) {
	m.mu.Lock()
	if _, ok := m.installed[p]; ok {
		m.mu.Unlock()
		return
	}
	m.installed[p] = struct{}{}
	m.mu.Unlock()

	p.Use(m)
}

// Start begins recording.
func (m *Monitor) Start() {
	m.mu.Lock()
	m.monitoring = true
	m.mu.Unlock()
	m.log.Info("Network monitoring started")
}

// Stop ends recording and clears the history.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.monitoring = false
	m.mu.Unlock()
	m.ClearHistory()
	m.log.Info("Network monitoring stopped")
}

// IsMonitoring reports whether events are being recorded.
func (m *Monitor) IsMonitoring() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monitoring
}

// AddListener registers fn for request, response and error events.
func (m *Monitor) AddListener(fn func(Event)) events.Unsubscribe {
	return m.listeners.Add(fn)
}

// Intercept implements Interceptor.
func (m *Monitor) Intercept(ctx context.Context, req *Request, next Handler) (*Response, error) {
	m.trackRequest(req)

	resp, err := next.Handle(ctx, req)
	if err != nil {
		m.trackError(req, err)
		return nil, err
	}
	m.trackResponse(req, resp)
	return resp, nil
}

func (m *Monitor) trackRequest(req *Request) {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	snapshot := *req
	snapshot.Headers = req.Headers.Clone()
	m.requests[req.ID] = &snapshot
	m.order = append(m.order, req.ID)
	m.mu.Unlock()

	m.listeners.Notify(Event{Type: EventRequest, Request: &snapshot})
}

func (m *Monitor) trackResponse(req *Request, resp *Response) {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	if resp.RequestID == "" {
		resp.RequestID = req.ID
	}
	if resp.Timestamp.IsZero() {
		resp.Timestamp = m.now()
	}
	if resp.Duration == 0 {
		resp.Duration = resp.Timestamp.Sub(req.Timestamp)
	}
	snapshot := *resp
	m.responses[req.ID] = &snapshot
	m.mu.Unlock()

	m.latency.Push(snapshot.Duration)
	m.listeners.Notify(Event{Type: EventResponse, Response: &snapshot})
}

func (m *Monitor) trackError(req *Request, err error) {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	f := Failure{
		RequestID: req.ID,
		URL:       req.URL,
		Method:    req.Method,
		Error:     err.Error(),
		Timestamp: m.now(),
	}
	m.failures = append(m.failures, f)
	m.mu.Unlock()

	m.log.Error("Network request failed for "+req.ID, "url", req.URL, "error", err.Error())
	m.listeners.Notify(Event{Type: EventError, Failure: &f})
}

// Requests returns recorded requests in the order they were issued.
func (m *Monitor) Requests() []Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Request, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.requests[id])
	}
	return out
}

// Responses returns recorded responses in request order.
func (m *Monitor) Responses() []Response {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Response, 0, len(m.responses))
	for _, id := range m.order {
		if r, ok := m.responses[id]; ok {
			out = append(out, *r)
		}
	}
	return out
}

// Response returns the response linked to a request id.
func (m *Monitor) Response(requestID string) (Response, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.responses[requestID]
	if !ok {
		return Response{}, false
	}
	return *r, true
}

// Errors returns recorded failures.
func (m *Monitor) Errors() []Failure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Failure, len(m.failures))
	copy(out, m.failures)
	return out
}

// LatencyHistory returns the durations of the most recent responses.
func (m *Monitor) LatencyHistory() []time.Duration {
	return m.latency.Items()
}

// AverageLatency is the mean of LatencyHistory, or zero.
func (m *Monitor) AverageLatency() time.Duration {
	items := m.latency.Items()
	if len(items) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range items {
		total += d
	}
	return total / time.Duration(len(items))
}

// ClearHistory drops all recorded requests, responses and errors.
func (m *Monitor) ClearHistory() {
	m.mu.Lock()
	m.order = nil
	m.requests = make(map[string]*Request)
	m.responses = make(map[string]*Response)
	m.failures = nil
	m.mu.Unlock()
	m.latency.Clear()
}

// Bandwidth estimates throughput in bytes per second over the recorded
// responses.
func (m *Monitor) Bandwidth() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var bytes int
	var elapsed time.Duration
	for _, r := range m.responses {
		bytes += len(r.Body)
		elapsed += r.Duration
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}
