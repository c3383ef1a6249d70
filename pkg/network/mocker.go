package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
)

// MockResponse is the canned answer for a rule. Data is sent as-is when it
// is a string or []byte and JSON-encoded otherwise.
type MockResponse struct {
	Status  int           `json:"status" yaml:"status"`
	Data    any           `json:"data,omitempty" yaml:"data,omitempty"`
	Headers Header        `json:"headers,omitempty" yaml:"headers,omitempty"`
	Delay   time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// MockRule maps METHOD:URL to a canned response.
type MockRule struct {
	Method   string       `json:"method"`
	URL      string       `json:"url"`
	Response MockResponse `json:"response"`
	Enabled  bool         `json:"enabled"`
}

// Key returns the registry key for method and url.
func Key(method, url string) string {
	return strings.ToUpper(method) + ":" + url
}

// Mocker short-circuits matching requests with canned responses while
// mocking is enabled.
type Mocker struct {
	log debuglog.Sink
	now func() time.Time

	mu      sync.RWMutex
	enabled bool
	rules   map[string]MockRule
}

// NewMocker creates a mocker with mocking disabled.
func NewMocker(log debuglog.Sink) *Mocker {
	if log == nil {
		log = debuglog.Discard()
	}
	return &Mocker{
		log:   log,
		now:   time.Now,
		rules: make(map[string]MockRule),
	}
}

// Enable turns mocking on.
func (m *Mocker) Enable() {
	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()
	m.log.Info("Network Mocking Enabled")
}

// Disable turns mocking off. Rules are kept.
func (m *Mocker) Disable() {
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
	m.log.Info("Network Mocking Disabled")
}

// IsEnabled reports whether mocking is on.
func (m *Mocker) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// AddMock registers or replaces the rule for method and url.
func (m *Mocker) AddMock(method, url string, resp MockResponse, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[Key(method, url)] = MockRule{
		Method:   strings.ToUpper(method),
		URL:      url,
		Response: resp,
		Enabled:  enabled,
	}
}

// RemoveMock deletes the rule for method and url.
func (m *Mocker) RemoveMock(method, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, Key(method, url))
}

// ToggleMock flips the enabled flag of an existing rule. It reports whether
// a rule was found.
func (m *Mocker) ToggleMock(method, url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := Key(method, url)
	rule, ok := m.rules[key]
	if !ok {
		return false
	}
	rule.Enabled = !rule.Enabled
	m.rules[key] = rule
	return true
}

// ClearMocks removes every rule.
func (m *Mocker) ClearMocks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = make(map[string]MockRule)
}

// Mocks returns the rules sorted by key.
func (m *Mocker) Mocks() []MockRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.rules))
	for k := range m.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]MockRule, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.rules[k])
	}
	return out
}

func (m *Mocker) match(req *Request) (MockRule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.enabled {
		return MockRule{}, false
	}
	rule, ok := m.rules[Key(req.Method, req.URL)]
	if !ok || !rule.Enabled {
		return MockRule{}, false
	}
	return rule, true
}

// Intercept implements Interceptor.
func (m *Mocker) Intercept(ctx context.Context, req *Request, next Handler) (*Response, error) {
	rule, ok := m.match(req)
	if !ok {
		return next.Handle(ctx, req)
	}

	m.log.Debug("Network Mock Intercepted", "method", req.Method, "url", req.URL, "status", rule.Response.Status)

	if d := rule.Response.Delay; d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	body, err := encodeMockData(rule.Response.Data)
	if err != nil {
		m.log.Error("Network mock response could not be encoded", "key", Key(req.Method, req.URL), "error", err.Error())
		return nil, err
	}

	headers := rule.Response.Headers.Clone()
	if headers.Get("Content-Type") == "" && len(body) > 0 {
		headers.Set("Content-Type", "application/json")
	}
	now := m.now()
	return &Response{
		RequestID: req.ID,
		Status:    rule.Response.Status,
		Headers:   headers,
		Body:      body,
		Timestamp: now,
		Duration:  now.Sub(req.Timestamp),
		Mocked:    true,
	}, nil
}

func encodeMockData(data any) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding mock data: %w", err)
		}
		return b, nil
	}
}
