package network

import (
	"context"
	"sync/atomic"

	"github.com/kcaldas/devkit/pkg/debuglog"
)

// Client exposes the two request primitives the app uses: a fetch-style
// call that returns the response, and an XHR-style call that reports
// through callbacks. Both go through the same pipeline.
type Client struct {
	pipeline *Pipeline
}

// NewClient creates a client over p.
func NewClient(p *Pipeline) *Client {
	return &Client{pipeline: p}
}

// Pipeline returns the client's pipeline.
func (c *Client) Pipeline() *Pipeline {
	return c.pipeline
}

// RequestOption customises a request built by Fetch.
type RequestOption func(*Request)

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) { r.Headers.Set(key, value) }
}

// WithBody sets the request body.
func WithBody(body []byte) RequestOption {
	return func(r *Request) { r.Body = body }
}

// Fetch performs a request and waits for the result.
func (c *Client) Fetch(ctx context.Context, method, url string, opts ...RequestOption) (*Response, error) {
	req := NewRequest(method, url, nil)
	for _, opt := range opts {
		opt(req)
	}
	return c.pipeline.Do(ctx, req)
}

// Callbacks receive the outcome of Send. Either may be nil.
type Callbacks struct {
	OnLoad  func(*Response)
	OnError func(error)
}

// Send performs req in the background and reports through cb. The returned
// function aborts the request.
func (c *Client) Send(ctx context.Context, req *Request, cb Callbacks) (abort func()) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		resp, err := c.pipeline.Do(ctx, req)
		if err != nil {
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}
		if cb.OnLoad != nil {
			cb.OnLoad(resp)
		}
	}()
	return cancel
}

// DebugInterceptor logs requests and responses at debug level while enabled.
type DebugInterceptor struct {
	log     debuglog.Sink
	enabled atomic.Bool
}

// NewDebugInterceptor creates a disabled interceptor.
func NewDebugInterceptor(log debuglog.Sink) *DebugInterceptor {
	if log == nil {
		log = debuglog.Discard()
	}
	return &DebugInterceptor{log: log}
}

// SetEnabled switches request logging on or off.
func (d *DebugInterceptor) SetEnabled(on bool) {
	d.enabled.Store(on)
}

// Intercept implements Interceptor.
func (d *DebugInterceptor) Intercept(ctx context.Context, req *Request, next Handler) (*Response, error) {
	if !d.enabled.Load() {
		return next.Handle(ctx, req)
	}
	d.log.Debug("API Request", "id", req.ID, "method", req.Method, "url", req.URL)
	resp, err := next.Handle(ctx, req)
	if err != nil {
		d.log.Error("API Response Error", "id", req.ID, "error", err.Error())
		return nil, err
	}
	d.log.Debug("API Response", "id", req.ID, "status", resp.Status, "duration", resp.Duration.String())
	return resp, nil
}
