package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPTransport performs requests over net/http. A non-2xx status is a
// response, not an error.
type HTTPTransport struct {
	client *http.Client
	now    func() time.Time
}

// NewHTTPTransport wraps client; nil uses a client with a 30s timeout.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{client: client, now: time.Now}
}

// Handle implements Handler.
func (t *HTTPTransport) Handle(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}

	resp, err := t.client.Do(hr)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	headers := make(Header, len(resp.Header))
	for k, v := range resp.Header {
		headers.Set(k, strings.Join(v, ", "))
	}
	now := t.now()
	return &Response{
		RequestID: req.ID,
		Status:    resp.StatusCode,
		Headers:   headers,
		Body:      data,
		Timestamp: now,
		Duration:  now.Sub(req.Timestamp),
	}, nil
}
