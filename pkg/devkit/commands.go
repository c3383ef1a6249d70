package devkit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kcaldas/devkit/pkg/commands"
	"github.com/kcaldas/devkit/pkg/network"
	"github.com/kcaldas/devkit/pkg/remote"
	"github.com/samber/lo"
)

func (t *Toolkit) registerDefaultCommands() {
	d := t.Commands

	d.RegisterFunc("clearNetwork", "Clear network logs", func(context.Context, ...string) (any, error) {
		t.Monitor.ClearHistory()
		return "Network logs cleared", nil
	})

	d.RegisterFunc("startProfiling", "Start performance profiling [intervalMs]", func(_ context.Context, args ...string) (any, error) {
		interval, err := intervalArg(args, time.Second)
		if err != nil {
			return nil, err
		}
		t.Profiler.StartRecording(interval)
		return "Performance profiling started", nil
	})

	d.RegisterFunc("stopProfiling", "Stop performance profiling", func(context.Context, ...string) (any, error) {
		t.Profiler.StopRecording()
		return "Performance profiling stopped", nil
	})

	d.RegisterFunc("getDeviceInfo", "Get device information", func(context.Context, ...string) (any, error) {
		return t.Device.Info(), nil
	})

	d.RegisterFunc("clearLogs", "Clear all logs", func(context.Context, ...string) (any, error) {
		t.Log.Clear()
		return "Logs cleared", nil
	})

	d.Register(commands.Command{
		Name:        "mock",
		Description: "Mock a request: mock <METHOD> <url> [status] [body]",
		Exec: func(_ context.Context, args ...string) (any, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("usage: mock <METHOD> <url> [status] [body]")
			}
			status := 200
			if len(args) > 2 {
				n, err := strconv.Atoi(args[2])
				if err != nil {
					return nil, fmt.Errorf("invalid status %q", args[2])
				}
				status = n
			}
			var data any
			if len(args) > 3 {
				data = strings.Join(args[3:], " ")
			}
			t.Mocker.AddMock(args[0], args[1], network.MockResponse{Status: status, Data: data}, true)
			if !t.Mocker.IsEnabled() {
				t.Mocker.Enable()
			}
			return "Mocked " + network.Key(args[0], args[1]), nil
		},
	})

	d.RegisterFunc("unmock", "Remove a mock: unmock <METHOD> <url>", func(_ context.Context, args ...string) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: unmock <METHOD> <url>")
		}
		t.Mocker.RemoveMock(args[0], args[1])
		return "Removed " + network.Key(args[0], args[1]), nil
	})

	d.RegisterFunc("mocks", "List configured mocks", func(context.Context, ...string) (any, error) {
		return lo.Map(t.Mocker.Mocks(), func(r network.MockRule, _ int) string {
			state := "off"
			if r.Enabled {
				state = "on"
			}
			return fmt.Sprintf("%s -> %d (%s)", network.Key(r.Method, r.URL), r.Response.Status, state)
		}), nil
	})

	d.RegisterFunc("undo", "Step back one state snapshot", func(context.Context, ...string) (any, error) {
		return t.State.Undo(), nil
	})

	d.RegisterFunc("redo", "Step forward one state snapshot", func(context.Context, ...string) (any, error) {
		return t.State.Redo(), nil
	})

	d.RegisterFunc("travel", "Travel to a state snapshot: travel <index>", func(_ context.Context, args ...string) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: travel <index>")
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", args[0])
		}
		if err := t.State.TravelTo(i); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Traveled to state %d", i), nil
	})

	d.RegisterFunc("memorySnapshot", "Take a heap snapshot and check for leaks", func(context.Context, ...string) (any, error) {
		return t.Leaks.HandleMemoryWarning(), nil
	})

	d.RegisterFunc("session", "Record a debug session: session start|stop", func(ctx context.Context, args ...string) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: session start|stop")
		}
		switch args[0] {
		case "start":
			t.Reports.StartSession()
			return "Debug session recording started", nil
		case "stop":
			return t.Reports.Save(ctx, t.Reports.StopSession())
		default:
			return nil, fmt.Errorf("unknown session action %q", args[0])
		}
	})

	d.Register(commands.Command{
		Name:        "report",
		Description: "Generate and save a debug report [share]",
		Aliases:     []string{"saveReport"},
		Exec: func(ctx context.Context, args ...string) (any, error) {
			path, err := t.Reports.Save(ctx, t.Reports.Generate())
			if err != nil {
				return nil, err
			}
			if len(args) > 0 && args[0] == "share" {
				if err := t.Reports.Share(path); err != nil {
					return path, err
				}
			}
			return path, nil
		},
	})

	d.RegisterFunc("remote", "Remote debugger: remote connect [host] [port] | disconnect | status", func(ctx context.Context, args ...string) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("usage: remote connect [host] [port] | disconnect | status")
		}
		switch args[0] {
		case "connect":
			var opts []remote.Option
			if len(args) > 1 {
				opts = append(opts, remote.WithHost(args[1]))
			}
			if len(args) > 2 {
				port, err := strconv.Atoi(args[2])
				if err != nil {
					return nil, fmt.Errorf("invalid port %q", args[2])
				}
				opts = append(opts, remote.WithPort(port))
			}
			if err := t.ConnectRemote(ctx, opts...); err != nil {
				return nil, err
			}
			return "Connected to " + t.Remote.Config().URL(), nil
		case "disconnect":
			t.DisconnectRemote()
			return "Remote debugger closed", nil
		case "status":
			return map[string]any{
				"connected": t.Remote.IsConnected(),
				"url":       t.Remote.Config().URL(),
				"retries":   t.Remote.RetryCount(),
				"queued":    t.Remote.QueueLength(),
			}, nil
		default:
			return nil, fmt.Errorf("unknown remote action %q", args[0])
		}
	})

	d.RegisterFunc("plugins", "List registered plugins", func(context.Context, ...string) (any, error) {
		out := []string{}
		for _, p := range t.Plugins.All() {
			out = append(out, p.Name()+"@"+p.Version())
		}
		return out, nil
	})

	d.Register(commands.Command{
		Name:        "help",
		Description: "List commands",
		Aliases:     []string{"?"},
		Exec: func(context.Context, ...string) (any, error) {
			return lo.Map(d.Commands(), func(c commands.Command, _ int) string {
				return fmt.Sprintf("%-16s %s", c.Name, c.Description)
			}), nil
		},
	})
}

func intervalArg(args []string, def time.Duration) (time.Duration, error) {
	if len(args) == 0 {
		return def, nil
	}
	ms, err := strconv.Atoi(args[0])
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid interval %q", args[0])
	}
	return time.Duration(ms) * time.Millisecond, nil
}
