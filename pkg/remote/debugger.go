// Package remote bridges the toolkit to an external debug client over a
// reconnecting duplex connection.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/events"
	"github.com/tidwall/gjson"
)

// ErrNotConnected is returned when an operation needs an open connection.
var ErrNotConnected = errors.New("remote: not connected")

// Config describes the debugger proxy endpoint and reconnect budget.
type Config struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	Secure            bool          `json:"secure"`
	ReconnectInterval time.Duration `json:"reconnectInterval"`
	MaxRetries        int           `json:"maxRetries"`
}

// DefaultConfig returns the stock endpoint settings.
func DefaultConfig() Config {
	return Config{
		Host:              "localhost",
		Port:              8081,
		ReconnectInterval: 3 * time.Second,
		MaxRetries:        5,
	}
}

// URL is scheme://host:port/debugger-proxy.
func (c Config) URL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return scheme + "://" + c.Host + ":" + strconv.Itoa(c.Port) + "/debugger-proxy"
}

// Option overrides one field of the configuration on Connect.
type Option func(*Config)

func WithHost(host string) Option   { return func(c *Config) { c.Host = host } }
func WithPort(port int) Option      { return func(c *Config) { c.Port = port } }
func WithSecure(secure bool) Option { return func(c *Config) { c.Secure = secure } }
func WithMaxRetries(n int) Option   { return func(c *Config) { c.MaxRetries = n } }
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Config) { c.ReconnectInterval = d }
}

// HandlerFunc answers a typed request. A non-nil reply is sent back as
// "<type>Result".
type HandlerFunc func(ctx context.Context, msg Message) (reply any, err error)

// Debugger keeps one connection to the debugger proxy, queues outbound
// messages while disconnected and reconnects with a fixed delay until the
// retry budget is spent.
type Debugger struct {
	dialer    Dialer
	log       debuglog.Sink
	listeners *events.Registry[Message]

	mu        sync.Mutex
	writeMu   sync.Mutex
	cfg       Config
	conn      Conn
	connected bool
	queue     [][]byte
	retries   int
	gen       uint64
	timer     *time.Timer
	handlers  map[string]HandlerFunc
}

// NewDebugger creates a disconnected debugger. A nil dialer uses
// WebSocketDialer.
func NewDebugger(cfg Config, dialer Dialer, log debuglog.Sink) *Debugger {
	if dialer == nil {
		dialer = WebSocketDialer{}
	}
	if log == nil {
		log = debuglog.Discard()
	}
	return &Debugger{
		dialer: dialer,
		log:    log,
		listeners: events.NewRegistry[Message](func(err error) {
			log.Error("Debug listener error", "error", err.Error())
		}),
		cfg:      cfg,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle routes messages of type typ to h instead of the listeners.
func (d *Debugger) Handle(typ string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[typ] = h
}

// AddDebugListener registers fn for connection events and messages
// without a dedicated handler.
func (d *Debugger) AddDebugListener(fn func(Message)) events.Unsubscribe {
	return d.listeners.Add(fn)
}

// Config returns the current configuration.
func (d *Debugger) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// IsConnected reports whether the connection is open.
func (d *Debugger) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// RetryCount returns the number of reconnects scheduled since the last
// successful open.
func (d *Debugger) RetryCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retries
}

// QueueLength returns the number of messages waiting for a connection.
func (d *Debugger) QueueLength() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Connect applies opts and opens the connection, starting a fresh retry
// budget. On failure a reconnect is scheduled and the dial error is returned.
func (d *Debugger) Connect(ctx context.Context, opts ...Option) error {
	d.mu.Lock()
	for _, opt := range opts {
		opt(&d.cfg)
	}
	d.gen++
	gen := d.gen
	d.retries = 0
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	old := d.conn
	d.conn = nil
	d.connected = false
	d.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return d.dial(ctx, gen)
}

func (d *Debugger) dial(ctx context.Context, gen uint64) error {
	cfg := d.Config()
	d.log.Info("Remote debugger connecting...", "host", cfg.Host, "port", cfg.Port)

	conn, err := d.dialer.Dial(ctx, cfg.URL())
	if err != nil {
		d.log.Error("Failed to connect remote debugger", "error", err.Error())
		d.scheduleReconnect(gen)
		return err
	}

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	d.writeMu.Lock()
	d.conn = conn
	d.connected = true
	d.retries = 0
	queued := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, data := range queued {
		if err := conn.Write(data); err != nil {
			d.log.Error("Failed to send debug message", "error", err.Error())
		}
	}
	d.writeMu.Unlock()

	d.log.Info("Remote debugger connected")
	d.listeners.Notify(connectionEvent("connected"))

	go d.readLoop(conn, gen)
	return nil
}

func connectionEvent(status string) Message {
	msg, _ := NewMessage(TypeConnection, map[string]string{"status": status})
	return msg
}

func (d *Debugger) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.Read()
		if err != nil {
			d.handleClose(gen)
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			d.log.Error("Failed to parse debug message", "error", err.Error())
			continue
		}
		d.dispatch(msg)
	}
}

func (d *Debugger) handleClose(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.connected = false
	d.conn = nil
	d.mu.Unlock()

	d.log.Warn("Remote debugger disconnected")
	d.scheduleReconnect(gen)
}

func (d *Debugger) scheduleReconnect(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	if d.retries >= d.cfg.MaxRetries {
		d.log.Error("Max reconnection attempts reached", "retries", d.retries)
		return
	}
	d.retries++
	d.timer = time.AfterFunc(d.cfg.ReconnectInterval, func() {
		_ = d.dial(context.Background(), gen)
	})
}

func (d *Debugger) dispatch(msg Message) {
	d.mu.Lock()
	h, ok := d.handlers[msg.Type]
	d.mu.Unlock()

	if !ok {
		d.listeners.Notify(msg)
		return
	}

	reply, err := d.invoke(h, msg)
	if err != nil {
		d.log.Error("Failed to handle debug message", "type", msg.Type, "error", err.Error())
		reply = map[string]any{
			"id":    gjson.GetBytes(msg.Payload, "id").Value(),
			"error": err.Error(),
		}
	}
	if reply == nil {
		return
	}
	out, err := NewMessage(ResultType(msg.Type), reply)
	if err != nil {
		d.log.Error("Failed to encode debug reply", "type", msg.Type, "error", err.Error())
		return
	}
	_ = d.SendMessage(out)
}

func (d *Debugger) invoke(h HandlerFunc, msg Message) (reply any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = events.RecoveredError(rec)
		}
	}()
	return h(context.Background(), msg)
}

// SendMessage writes msg now when connected and queues it otherwise.
func (d *Debugger) SendMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding debug message: %w", err)
	}

	d.mu.Lock()
	if !d.connected {
		d.queue = append(d.queue, data)
		d.mu.Unlock()
		return nil
	}
	conn := d.conn
	d.mu.Unlock()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if err := conn.Write(data); err != nil {
		d.log.Error("Failed to send debug message", "error", err.Error())
		return err
	}
	return nil
}

// Send encodes payload as a message of type typ and sends it.
func (d *Debugger) Send(typ string, payload any) error {
	msg, err := NewMessage(typ, payload)
	if err != nil {
		return err
	}
	return d.SendMessage(msg)
}

// Disconnect closes the connection, drops queued messages and removes all
// listeners. No reconnect follows.
func (d *Debugger) Disconnect() {
	d.mu.Lock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	conn := d.conn
	d.conn = nil
	d.connected = false
	d.queue = nil
	d.mu.Unlock()

	d.listeners.Clear()
	if conn != nil {
		_ = conn.Close()
	}
	d.log.Info("Remote debugger closed")
}
