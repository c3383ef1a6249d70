package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is an open duplex connection carrying text frames.
type Conn interface {
	// Read blocks until a frame arrives or the connection fails.
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
}

// Dialer opens connections to the debugger proxy.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWebSocketConn(ws), nil
}

// WebSocketConn adapts a gorilla connection to Conn. Writes are serialised.
type WebSocketConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// NewWebSocketConn wraps ws.
func NewWebSocketConn(ws *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{ws: ws}
}

// Read implements Conn.
func (c *WebSocketConn) Read() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// Write implements Conn.
func (c *WebSocketConn) Write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close implements Conn.
func (c *WebSocketConn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.ws.Close()
}
