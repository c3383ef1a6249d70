package devkit

import (
	"context"
	"fmt"
	"time"

	"github.com/kcaldas/devkit/pkg/events"
	"github.com/kcaldas/devkit/pkg/network"
	"github.com/kcaldas/devkit/pkg/remote"
)

// ConnectRemote connects the remote debugger and relays the client's
// unhandled messages to the bus. Disconnecting drops listeners, so they are
// registered again on every connect.
func (t *Toolkit) ConnectRemote(ctx context.Context, opts ...remote.Option) error {
	t.mu.Lock()
	if t.remoteUnsub != nil {
		t.remoteUnsub()
	}
	t.remoteUnsub = t.Remote.AddDebugListener(func(msg remote.Message) {
		t.forward.onRemoteMessage(msg)
		t.Bus.Publish(events.TopicRemote, msg)
	})
	t.mu.Unlock()

	return t.Remote.Connect(ctx, opts...)
}

// DisconnectRemote closes the remote connection without reconnecting.
func (t *Toolkit) DisconnectRemote() {
	t.mu.Lock()
	t.remoteUnsub = nil
	t.mu.Unlock()
	t.Remote.Disconnect()
}

func (t *Toolkit) connectRemoteInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.ConnectRemote(ctx); err != nil {
		t.logger.Debug("remote debugger not reachable yet", "error", err)
	}
}

func (t *Toolkit) registerRemoteHandlers() {
	t.Remote.Handle(remote.TypeEval, t.handleEval)
	t.Remote.Handle(remote.TypeProfile, t.handleProfile)
	t.Remote.Handle(remote.TypeNetwork, t.handleNetwork)
}

type evalRequest struct {
	ID   any    `json:"id"`
	Code string `json:"code"`
}

// evalEnv is the read-only view an eval expression runs against. Every
// value is a copy.
func (t *Toolkit) evalEnv() map[string]any {
	env := map[string]any{
		"logs":      t.Log.History(),
		"logCount":  len(t.Log.History()),
		"errors":    t.Log.Errors(),
		"requests":  t.Monitor.Requests(),
		"responses": t.Monitor.Responses(),
		"perf":      t.Profiler.Snapshot(),
		"settings":  t.Settings.Get(),
		"device":    t.Device.Info(),
		"mocks":     t.Mocker.Mocks(),
	}
	if snap, ok := t.State.CurrentSnapshot(); ok {
		env["state"] = snap.State
	}
	return env
}

func (t *Toolkit) handleEval(_ context.Context, msg remote.Message) (any, error) {
	var req evalRequest
	if err := msg.Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding eval request: %w", err)
	}
	result, err := t.Evaluator.Eval(req.Code, t.evalEnv())
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": req.ID, "result": result}, nil
}

type profileRequest struct {
	ID       any    `json:"id"`
	Action   string `json:"action"`
	Interval int    `json:"interval"` // milliseconds
}

func (t *Toolkit) handleProfile(_ context.Context, msg remote.Message) (any, error) {
	var req profileRequest
	if err := msg.Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding profile request: %w", err)
	}

	reply := map[string]any{"id": req.ID, "action": req.Action}
	switch req.Action {
	case "start":
		t.Profiler.StartRecording(time.Duration(req.Interval) * time.Millisecond)
	case "stop":
		t.Profiler.StopRecording()
	case "snapshot":
		snap, err := t.Profiler.Capture()
		if err != nil {
			return nil, err
		}
		reply["snapshot"] = snap
	case "history":
		reply["snapshots"] = t.Profiler.Snapshots()
		reply["metrics"] = t.Profiler.Metrics()
	default:
		return nil, fmt.Errorf("unknown profile action %q", req.Action)
	}
	reply["recording"] = t.Profiler.IsRecording()
	return reply, nil
}

type networkRequest struct {
	ID       any    `json:"id"`
	Action   string `json:"action"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	Response struct {
		Status  int            `json:"status"`
		Data    any            `json:"data"`
		Headers network.Header `json:"headers"`
		Delay   int            `json:"delay"` // milliseconds
	} `json:"response"`
}

func (t *Toolkit) handleNetwork(_ context.Context, msg remote.Message) (any, error) {
	var req networkRequest
	if err := msg.Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding network request: %w", err)
	}

	reply := map[string]any{"id": req.ID, "action": req.Action}
	switch req.Action {
	case "requests":
		reply["requests"] = t.Monitor.Requests()
		reply["responses"] = t.Monitor.Responses()
		reply["errors"] = t.Monitor.Errors()
	case "clear":
		t.Monitor.ClearHistory()
	case "mock":
		if req.URL == "" {
			return nil, fmt.Errorf("mock needs a url")
		}
		t.Mocker.AddMock(req.Method, req.URL, network.MockResponse{
			Status:  req.Response.Status,
			Data:    req.Response.Data,
			Headers: req.Response.Headers,
			Delay:   time.Duration(req.Response.Delay) * time.Millisecond,
		}, true)
		reply["key"] = network.Key(req.Method, req.URL)
	case "unmock":
		t.Mocker.RemoveMock(req.Method, req.URL)
		reply["key"] = network.Key(req.Method, req.URL)
	case "enableMocking":
		t.Mocker.Enable()
	case "disableMocking":
		t.Mocker.Disable()
	case "mocks":
		reply["mocks"] = t.Mocker.Mocks()
	default:
		return nil, fmt.Errorf("unknown network action %q", req.Action)
	}
	reply["monitoring"] = t.Monitor.IsMonitoring()
	reply["mocking"] = t.Mocker.IsEnabled()
	return reply, nil
}
