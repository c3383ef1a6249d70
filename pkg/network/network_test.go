package network

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTransport struct {
	calls atomic.Int32
	err   error
}

func (c *countingTransport) Handle(_ context.Context, req *Request) (*Response, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &Response{RequestID: req.ID, Status: http.StatusOK, Headers: Header{}, Body: []byte(`{"real":true}`)}, nil
}

func newStack(t *testing.T, transport Handler) (*Pipeline, *Mocker, *Monitor, *debuglog.Logger) {
	t.Helper()
	log := debuglog.New(debuglog.Options{})
	mocker := NewMocker(log)
	monitor := NewMonitor(log)
	p := NewPipeline(transport, &AuthInterceptor{}, mocker)
	monitor.Install(p)
	return p, mocker, monitor, log
}

func TestMocker_RoundTrip(t *testing.T) {
	transport := &countingTransport{}
	p, mocker, _, _ := newStack(t, transport)
	client := NewClient(p)

	mocker.Enable()
	mocker.AddMock("get", "/x", MockResponse{Status: 404, Data: map[string]any{}}, true)

	resp, err := client.Fetch(context.Background(), "GET", "/x")
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)
	assert.True(t, resp.Mocked)
	assert.JSONEq(t, `{}`, string(resp.Body))
	assert.Equal(t, int32(0), transport.calls.Load())

	resp, err = client.Fetch(context.Background(), "GET", "/y")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.True(t, resp.Get("real").Bool())
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestMocker_Rules(t *testing.T) {
	t.Run("disabled mocking passes through", func(t *testing.T) {
		transport := &countingTransport{}
		p, mocker, _, _ := newStack(t, transport)
		mocker.AddMock("GET", "/x", MockResponse{Status: 500}, true)

		resp, err := NewClient(p).Fetch(context.Background(), "GET", "/x")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
		assert.Equal(t, int32(1), transport.calls.Load())
	})

	t.Run("disabled rule passes through", func(t *testing.T) {
		transport := &countingTransport{}
		p, mocker, _, _ := newStack(t, transport)
		mocker.Enable()
		mocker.AddMock("GET", "/x", MockResponse{Status: 500}, false)

		resp, err := NewClient(p).Fetch(context.Background(), "GET", "/x")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
	})

	t.Run("adding same key replaces", func(t *testing.T) {
		mocker := NewMocker(nil)
		mocker.AddMock("post", "/a", MockResponse{Status: 201}, true)
		mocker.AddMock("POST", "/a", MockResponse{Status: 409}, true)

		rules := mocker.Mocks()
		require.Len(t, rules, 1)
		assert.Equal(t, 409, rules[0].Response.Status)
		assert.Equal(t, "POST:/a", Key(rules[0].Method, rules[0].URL))
	})

	t.Run("toggle flips existing and ignores missing", func(t *testing.T) {
		mocker := NewMocker(nil)
		mocker.AddMock("GET", "/a", MockResponse{Status: 200}, true)

		assert.True(t, mocker.ToggleMock("GET", "/a"))
		assert.False(t, mocker.Mocks()[0].Enabled)
		assert.False(t, mocker.ToggleMock("GET", "/missing"))
		assert.Len(t, mocker.Mocks(), 1)
	})

	t.Run("remove and clear", func(t *testing.T) {
		mocker := NewMocker(nil)
		mocker.AddMock("GET", "/a", MockResponse{}, true)
		mocker.AddMock("GET", "/b", MockResponse{}, true)

		mocker.RemoveMock("get", "/a")
		assert.Len(t, mocker.Mocks(), 1)
		mocker.ClearMocks()
		assert.Empty(t, mocker.Mocks())
	})
}

func TestMocker_DelayAndLogging(t *testing.T) {
	transport := &countingTransport{}
	p, mocker, _, log := newStack(t, transport)
	mocker.Enable()
	mocker.AddMock("GET", "/slow", MockResponse{Status: 200, Data: "ok", Delay: 20 * time.Millisecond}, true)

	start := time.Now()
	resp, err := NewClient(p).Fetch(context.Background(), "GET", "/slow")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, "ok", string(resp.Body))

	var intercepted bool
	for _, e := range log.History() {
		if e.Message == "Network Mock Intercepted" {
			intercepted = true
			assert.Equal(t, "/slow", e.Metadata["url"])
		}
	}
	assert.True(t, intercepted)

	t.Run("cancelled while delayed", func(t *testing.T) {
		mocker.AddMock("GET", "/slower", MockResponse{Status: 200, Delay: time.Hour}, true)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := NewClient(p).Fetch(ctx, "GET", "/slower")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestMonitor_RecordsOnlyWhileMonitoring(t *testing.T) {
	transport := &countingTransport{}
	p, _, monitor, _ := newStack(t, transport)
	client := NewClient(p)

	_, err := client.Fetch(context.Background(), "GET", "/before")
	require.NoError(t, err)
	assert.Empty(t, monitor.Requests())

	monitor.Start()
	var got []EventType
	monitor.AddListener(func(e Event) { got = append(got, e.Type) })

	resp, err := client.Fetch(context.Background(), "GET", "/during")
	require.NoError(t, err)

	requests := monitor.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "/during", requests[0].URL)
	linked, ok := monitor.Response(requests[0].ID)
	require.True(t, ok)
	assert.Equal(t, resp.Status, linked.Status)
	assert.Equal(t, requests[0].ID, linked.RequestID)
	assert.Equal(t, []EventType{EventRequest, EventResponse}, got)
	assert.Len(t, monitor.LatencyHistory(), 1)

	monitor.Stop()
	assert.False(t, monitor.IsMonitoring())
	assert.Empty(t, monitor.Requests())
	assert.Empty(t, monitor.Responses())
	assert.Empty(t, monitor.LatencyHistory())
}

func TestMonitor_Errors(t *testing.T) {
	transport := &countingTransport{err: errors.New("connection refused")}
	p, _, monitor, log := newStack(t, transport)
	monitor.Start()

	var failure *Failure
	monitor.AddListener(func(e Event) {
		if e.Type == EventError {
			failure = e.Failure
		}
	})
	monitor.AddListener(func(Event) { panic("bad listener") })

	_, err := NewClient(p).Fetch(context.Background(), "DELETE", "/gone")
	require.Error(t, err)

	require.NotNil(t, failure)
	assert.Equal(t, "/gone", failure.URL)
	assert.Len(t, monitor.Errors(), 1)

	var messages []string
	for _, e := range log.Errors() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "Network request failed for "+failure.RequestID)
	assert.Contains(t, messages, "Network listener error")
}

func TestMonitor_InstallIsIdempotent(t *testing.T) {
	p := NewPipeline(&countingTransport{})
	monitor := NewMonitor(nil)

	monitor.Install(p)
	monitor.Install(p)

	assert.Equal(t, 1, p.Len())
}

func TestPipeline_Order(t *testing.T) {
	var order []string
	stage := func(name string) Interceptor {
		return InterceptorFunc(func(ctx context.Context, req *Request, next Handler) (*Response, error) {
			order = append(order, name)
			return next.Handle(ctx, req)
		})
	}
	transport := HandlerFunc(func(_ context.Context, req *Request) (*Response, error) {
		order = append(order, "transport")
		return &Response{Status: 204}, nil
	})

	p := NewPipeline(transport, stage("auth"), stage("mock"))
	p.Use(stage("monitor"))

	req := NewRequest("get", "/ordered", nil)
	_, err := p.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"auth", "mock", "monitor", "transport"}, order)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "GET", req.Method)
	assert.False(t, req.Timestamp.IsZero())
}

func TestPipeline_NoTransport(t *testing.T) {
	_, err := NewPipeline(nil).Do(context.Background(), NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestAuthInterceptor(t *testing.T) {
	var seen Header
	transport := HandlerFunc(func(_ context.Context, req *Request) (*Response, error) {
		seen = req.Headers.Clone()
		return &Response{Status: http.StatusUnauthorized}, nil
	})
	tokens := &MemoryTokenStore{}
	tokens.Set("secret")
	auth := &AuthInterceptor{Tokens: tokens, OnUnauthorized: func(context.Context) { tokens.Clear() }}

	_, err := NewPipeline(transport, auth).Do(context.Background(), NewRequest("GET", "/me", nil))
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", seen.Get("Authorization"))
	assert.Equal(t, "application/json", seen.Get("content-type"))
	token, _ := tokens.Token(context.Background())
	assert.Empty(t, token)
}

func TestHTTPTransport_WithRoundTripper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Echo", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	log := debuglog.New(debuglog.Options{})
	monitor := NewMonitor(log)
	monitor.Start()
	p := NewPipeline(NewHTTPTransport(srv.Client()), &AuthInterceptor{Tokens: StaticToken("t0k")})
	monitor.Install(p)

	httpClient := &http.Client{Transport: p.RoundTripper()}
	resp, err := httpClient.Post(srv.URL+"/echo", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "Bearer t0k", resp.Header.Get("X-Echo"))

	responses := monitor.Responses()
	require.Len(t, responses, 1)
	assert.Equal(t, http.StatusTeapot, responses[0].Status)
	assert.Greater(t, responses[0].Duration, time.Duration(0))
}

func TestClient_Send(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		p := NewPipeline(&countingTransport{})
		done := make(chan *Response, 1)

		NewClient(p).Send(context.Background(), NewRequest("GET", "/xhr", nil), Callbacks{
			OnLoad: func(r *Response) { done <- r },
		})

		select {
		case r := <-done:
			assert.Equal(t, 200, r.Status)
		case <-time.After(time.Second):
			t.Fatal("OnLoad not called")
		}
	})

	t.Run("error", func(t *testing.T) {
		p := NewPipeline(&countingTransport{err: errors.New("offline")})
		done := make(chan error, 1)

		NewClient(p).Send(context.Background(), NewRequest("GET", "/xhr", nil), Callbacks{
			OnError: func(err error) { done <- err },
		})

		select {
		case err := <-done:
			assert.EqualError(t, err, "offline")
		case <-time.After(time.Second):
			t.Fatal("OnError not called")
		}
	})
}

func TestDebugInterceptor(t *testing.T) {
	log := debuglog.New(debuglog.Options{})
	debug := NewDebugInterceptor(log)
	p := NewPipeline(&countingTransport{}, debug)

	_, _ = p.Do(context.Background(), NewRequest("GET", "/quiet", nil))
	assert.Empty(t, log.History())

	debug.SetEnabled(true)
	_, _ = p.Do(context.Background(), NewRequest("GET", "/loud", nil))
	history := log.History()
	require.Len(t, history, 2)
	assert.Equal(t, "API Request", history[0].Message)
	assert.Equal(t, "API Response", history[1].Message)
}
