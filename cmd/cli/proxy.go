package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kcaldas/devkit/pkg/remote"
	"github.com/spf13/cobra"
)

// NewProxyCommand runs a local debugger-proxy endpoint
func NewProxyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run a local debugger proxy",
		Long: `Accept toolkit connections on /debugger-proxy, print every message they
send and forward stdin lines to them.

An input line "<type> <json payload>" is sent as a message of that type, e.g.
  eval {"id":1,"code":"logCount"}
  network {"id":2,"action":"requests"}`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"toolkit": "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runProxy(ctx, cmd, addr)
		},
	}
	cmd.Flags().String("addr", "localhost:8081", "listen address")
	return cmd
}

// debugProxy relays messages between the operator and connected toolkits.
type debugProxy struct {
	out      io.Writer
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newDebugProxy(out io.Writer) *debugProxy {
	return &debugProxy{
		out: out,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (p *debugProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.conns[ws] = struct{}{}
	p.mu.Unlock()
	p.printf("toolkit connected from %s\n", r.RemoteAddr)

	defer func() {
		p.mu.Lock()
		delete(p.conns, ws)
		p.mu.Unlock()
		ws.Close()
		p.printf("toolkit disconnected from %s\n", r.RemoteAddr)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg remote.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.printf("invalid message: %v\n", err)
			continue
		}
		p.printf("<- %s %s\n", msg.Type, string(msg.Payload))
	}
}

// broadcast sends msg to every connected toolkit and returns how many
// received it.
func (p *debugProxy) broadcast(msg remote.Message) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encoding message: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	sent := 0
	for ws := range p.conns {
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			continue
		}
		sent++
	}
	return sent, nil
}

func (p *debugProxy) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// parseOutbound turns "<type> <json>" into a message. Blank lines yield no
// message.
func parseOutbound(line string) (remote.Message, bool, error) {
	typ, payload, _ := strings.Cut(strings.TrimSpace(line), " ")
	if typ == "" {
		return remote.Message{}, false, nil
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return remote.Message{Type: typ}, true, nil
	}
	if !json.Valid([]byte(payload)) {
		return remote.Message{}, false, fmt.Errorf("payload for %s is not valid JSON", typ)
	}
	return remote.Message{Type: typ, Payload: json.RawMessage(payload)}, true, nil
}

func runProxy(ctx context.Context, cmd *cobra.Command, addr string) error {
	proxy := newDebugProxy(cmd.OutOrStdout())
	mux := http.NewServeMux()
	mux.Handle("/debugger-proxy", proxy)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	proxy.printf("debugger proxy listening on ws://%s/debugger-proxy\n", addr)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	shutdown := func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown()
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case line, ok := <-lines:
			if !ok {
				return shutdown()
			}
			msg, ok, err := parseOutbound(line)
			if err != nil {
				proxy.printf("%v\n", err)
				continue
			}
			if !ok {
				continue
			}
			n, err := proxy.broadcast(msg)
			if err != nil {
				proxy.printf("%v\n", err)
				continue
			}
			proxy.printf("-> %s sent to %d toolkit(s)\n", msg.Type, n)
		}
	}
}
