// Package network routes outbound requests through an ordered interceptor
// chain (auth, mock, monitor) in front of the real transport.
package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoTransport is returned by a pipeline built without a transport.
var ErrNoTransport = errors.New("network: no transport configured")

// Handler performs a request.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Interceptor is one pipeline stage. It may modify the request, answer it
// without calling next, or observe the outcome of next.
type Interceptor interface {
	Intercept(ctx context.Context, req *Request, next Handler) (*Response, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, req *Request, next Handler) (*Response, error)

// Intercept calls f.
func (f InterceptorFunc) Intercept(ctx context.Context, req *Request, next Handler) (*Response, error) {
	return f(ctx, req, next)
}

// Pipeline runs requests through its interceptors in the order they were
// added, ending at the transport.
type Pipeline struct {
	mu           sync.RWMutex
	interceptors []Interceptor
	transport    Handler
	now          func() time.Time
}

// NewPipeline creates a pipeline ending at transport.
func NewPipeline(transport Handler, interceptors ...Interceptor) *Pipeline {
	return &Pipeline{
		interceptors: interceptors,
		transport:    transport,
		now:          time.Now,
	}
}

// Use appends an interceptor to the chain.
func (p *Pipeline) Use(i Interceptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interceptors = append(p.interceptors, i)
}

// Len returns the number of interceptors.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.interceptors)
}

// Do assigns the request an id and timestamp, then runs the chain.
func (p *Pipeline) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = p.now()
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.Method = strings.ToUpper(req.Method)
	if req.Headers == nil {
		req.Headers = make(Header)
	}

	p.mu.RLock()
	chain := make([]Interceptor, len(p.interceptors))
	copy(chain, p.interceptors)
	transport := p.transport
	p.mu.RUnlock()
	if transport == nil {
		return nil, ErrNoTransport
	}

	var h Handler = transport
	for i := len(chain) - 1; i >= 0; i-- {
		h = bind(chain[i], h)
	}
	return h.Handle(ctx, req)
}

func bind(i Interceptor, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return i.Intercept(ctx, req, next)
	})
}

// RoundTripper exposes the pipeline to net/http clients.
func (p *Pipeline) RoundTripper() http.RoundTripper {
	return roundTripper{p: p}
}

type roundTripper struct {
	p *Pipeline
}

func (rt roundTripper) RoundTrip(hr *http.Request) (*http.Response, error) {
	req := NewRequest(hr.Method, hr.URL.String(), nil)
	for k, v := range hr.Header {
		req.Headers.Set(k, strings.Join(v, ", "))
	}
	if hr.Body != nil {
		body, err := io.ReadAll(hr.Body)
		hr.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		req.Body = body
	}

	resp, err := rt.p.Do(hr.Context(), req)
	if err != nil {
		return nil, err
	}

	out := &http.Response{
		StatusCode:    resp.Status,
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header, len(resp.Headers)),
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       hr,
	}
	for k, v := range resp.Headers {
		out.Header.Set(k, v)
	}
	return out, nil
}
