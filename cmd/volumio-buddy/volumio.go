package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Volumio client
// ============================================================================
// Volumio speaks socket.io 2.x, i.e. Engine.IO protocol v3 over a websocket:
//
//   0{"sid":..,"pingInterval":..,"pingTimeout":..}  open
//   40                                              namespace connected
//   41                                              namespace disconnected
//   2 / 3                                           ping / pong (client pings)
//   42["event",arg...]                              event
//
// Only the pieces needed to receive pushState and emit player commands are
// implemented.
// ============================================================================

// volumioURL builds the Engine.IO websocket endpoint for host:port.
func volumioURL(host string, port int) string {
	u := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/socket.io/",
		RawQuery: "EIO=3&transport=websocket",
	}
	return u.String()
}

type frameKind int

const (
	frameUnknown frameKind = iota
	frameOpen
	frameConnect
	frameDisconnect
	framePing
	framePong
	frameEvent
)

// engineOpen is the handshake payload of an open frame.
type engineOpen struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"` // ms
	PingTimeout  int    `json:"pingTimeout"`  // ms
}

type volumioFrame struct {
	Kind  frameKind
	Open  engineOpen
	Event string
	Args  []json.RawMessage
}

// parseFrame decodes one Engine.IO v3 text frame.
func parseFrame(msg []byte) (volumioFrame, error) {
	if len(msg) == 0 {
		return volumioFrame{}, errors.New("empty frame")
	}
	switch msg[0] {
	case '0':
		var open engineOpen
		if err := json.Unmarshal(msg[1:], &open); err != nil {
			return volumioFrame{}, fmt.Errorf("open frame: %w", err)
		}
		return volumioFrame{Kind: frameOpen, Open: open}, nil
	case '2':
		return volumioFrame{Kind: framePing}, nil
	case '3':
		return volumioFrame{Kind: framePong}, nil
	case '4':
		// Engine.IO message carrying a socket.io packet.
	default:
		return volumioFrame{Kind: frameUnknown}, nil
	}

	if len(msg) < 2 {
		return volumioFrame{}, errors.New("truncated message frame")
	}
	switch msg[1] {
	case '0':
		return volumioFrame{Kind: frameConnect}, nil
	case '1':
		return volumioFrame{Kind: frameDisconnect}, nil
	case '2':
	default:
		return volumioFrame{Kind: frameUnknown}, nil
	}

	// Skip an optional ack id before the payload array.
	body := bytes.TrimLeft(msg[2:], "0123456789")
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return volumioFrame{}, fmt.Errorf("event frame: %w", err)
	}
	if len(parts) == 0 {
		return volumioFrame{}, errors.New("event frame without name")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return volumioFrame{}, fmt.Errorf("event name: %w", err)
	}
	return volumioFrame{Kind: frameEvent, Event: name, Args: parts[1:]}, nil
}

// encodeEvent renders a socket.io event frame.
func encodeEvent(name string, args ...any) ([]byte, error) {
	payload, err := json.Marshal(append([]any{name}, args...))
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", name, err)
	}
	return append([]byte("42"), payload...), nil
}

var (
	errNotConnected       = errors.New("volumio not connected")
	errVolumioUnreachable = errors.New("volumio unreachable")
)

// VolumioClient keeps a socket.io session to Volumio, reports pushState
// records and connection changes as Events, and implements Player.
type VolumioClient struct {
	url        string
	maxRetries int
	retryDelay time.Duration
	events     chan<- Event
	logger     *slog.Logger

	mu   sync.Mutex // guards conn and serializes writes
	conn *websocket.Conn
}

// NewVolumioClient creates a client. Call Run to connect.
func NewVolumioClient(wsURL string, cfg VolumioConfig, events chan<- Event, logger *slog.Logger) *VolumioClient {
	return &VolumioClient{
		url:        wsURL,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryMS) * time.Millisecond,
		events:     events,
		logger:     logger,
	}
}

// Run connects and serves the session until ctx is canceled. A dropped
// session is redialed; after maxRetries consecutive failed dials Run returns
// errVolumioUnreachable.
func (c *VolumioClient) Run(ctx context.Context) error {
	failures := 0
	state := ConnConnecting

	for {
		c.report(ctx, ConnectionChanged{State: state})

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			c.logger.Warn("volumio connection failed", "url", c.url, "attempt", failures, "error", err)
			if failures >= c.maxRetries {
				c.report(ctx, ConnectionChanged{State: ConnDisconnected})
				return fmt.Errorf("%w after %d attempts: %v", errVolumioUnreachable, failures, err)
			}
			if !sleepCtx(ctx, c.retryDelay) {
				return nil
			}
			continue
		}
		failures = 0

		err = c.serve(ctx, conn)
		c.setConn(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("volumio session ended", "error", err)
		state = ConnReconnecting
		if !sleepCtx(ctx, c.retryDelay) {
			return nil
		}
	}
}

func (c *VolumioClient) dial(ctx context.Context) (*websocket.Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.DialContext(ctx, c.url, nil)
	return conn, err
}

// serve reads frames until the connection fails or ctx is canceled.
func (c *VolumioClient) serve(ctx context.Context, conn *websocket.Conn) error {
	pingInterval := defaultPingInterval
	pingTimeout := defaultPingTimeout

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	var pingOnce sync.Once
	for {
		_ = conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		f, err := parseFrame(msg)
		if err != nil {
			c.logger.Debug("volumio frame ignored", "error", err, "frame", string(msg))
			continue
		}

		switch f.Kind {
		case frameOpen:
			if f.Open.PingInterval > 0 {
				pingInterval = time.Duration(f.Open.PingInterval) * time.Millisecond
			}
			if f.Open.PingTimeout > 0 {
				pingTimeout = time.Duration(f.Open.PingTimeout) * time.Millisecond
			}
			c.logger.Debug("volumio handshake", "sid", f.Open.SID, "ping_interval", pingInterval)

		case frameConnect:
			c.setConn(conn)
			c.logger.Info("connected to volumio", "url", c.url)
			c.report(ctx, ConnectionChanged{State: ConnConnected})
			pingOnce.Do(func() { go c.pingLoop(conn, pingInterval, stop) })
			if err := c.emit("getState"); err != nil {
				return err
			}

		case frameDisconnect:
			return errors.New("namespace disconnected by server")

		case framePing:
			if err := c.write(conn, []byte("3")); err != nil {
				return err
			}

		case frameEvent:
			c.handleEvent(ctx, f)
		}
	}
}

func (c *VolumioClient) handleEvent(ctx context.Context, f volumioFrame) {
	if f.Event != "pushState" {
		c.logger.Debug("volumio event ignored", "event", f.Event)
		return
	}
	if len(f.Args) == 0 {
		return
	}
	var raw map[string]any
	if err := json.Unmarshal(f.Args[0], &raw); err != nil {
		c.logger.Debug("pushState payload is not an object", "error", err)
		return
	}
	c.report(ctx, PushStateReceived{Raw: raw})
}

func (c *VolumioClient) pingLoop(conn *websocket.Conn, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.write(conn, []byte("2")); err != nil {
				c.logger.Debug("volumio ping failed", "error", err)
				return
			}
		}
	}
}

func (c *VolumioClient) report(ctx context.Context, ev Event) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func (c *VolumioClient) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *VolumioClient) write(conn *websocket.Conn, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// emit sends a socket.io event on the current session.
func (c *VolumioClient) emit(name string, args ...any) error {
	msg, err := encodeEvent(name, args...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}

func (c *VolumioClient) Play() error     { return c.emit("play") }
func (c *VolumioClient) Pause() error    { return c.emit("pause") }
func (c *VolumioClient) Stop() error     { return c.emit("stop") }
func (c *VolumioClient) Next() error     { return c.emit("next") }
func (c *VolumioClient) Previous() error { return c.emit("prev") }

func (c *VolumioClient) VolumeStep(up bool) error {
	if up {
		return c.emit("volume", "+")
	}
	return c.emit("volume", "-")
}

func (c *VolumioClient) SetVolume(level int) error { return c.emit("volume", level) }
func (c *VolumioClient) Seek(seconds int) error    { return c.emit("seek", seconds) }

// sleepCtx waits for d and reports whether ctx is still live.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
