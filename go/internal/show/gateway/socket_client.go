package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// SocketConfig holds configuration for the realtime websocket connection
type SocketConfig struct {
	URL            string
	Token          string
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	ReconnectWait  time.Duration
	SendBuffer     int
}

// DefaultSocketConfig returns default websocket configuration
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 512 * 1024,
		ReconnectWait:  2 * time.Second,
		SendBuffer:     256,
	}
}

// Message is the wire frame shared by both directions of the socket.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SocketClient is a websocket Transport that redials after a drop.
type SocketClient struct {
	config    SocketConfig
	dialer    *websocket.Dialer
	clock     clockwork.Clock
	listeners *Listeners

	mu        sync.Mutex
	conn      *websocket.Conn
	send      chan []byte
	hooks     []func()
	connected bool
	closed    bool
}

// NewSocketClient creates a client for config.URL.
func NewSocketClient(config SocketConfig, clock clockwork.Clock) *SocketClient {
	defaults := DefaultSocketConfig()
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.ReconnectWait <= 0 {
		config.ReconnectWait = defaults.ReconnectWait
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &SocketClient{
		config: config,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.WriteTimeout,
		},
		clock:     clock,
		listeners: NewListeners(),
	}
}

// Listeners returns the registry inbound events are delivered to.
func (c *SocketClient) Listeners() *Listeners {
	return c.listeners
}

// OnConnect registers fn to run after every successful dial, so room joins
// requested before the first connection are replayed.
func (c *SocketClient) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Connected reports whether a connection is currently up.
func (c *SocketClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send != nil
}

// Run dials and serves the connection, redialing after ReconnectWait when
// it drops, until ctx is done or Close is called.
func (c *SocketClient) Run(ctx context.Context) error {
	log.Info().Str("url", c.config.URL).Msg("socket client starting")

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.config.URL, c.header())
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("url", c.config.URL).Msg("socket dial failed")
		} else {
			c.serve(ctx, conn)
		}

		if ctx.Err() != nil || c.isClosed() {
			log.Info().Msg("socket client shutting down")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(c.config.ReconnectWait):
		}
	}
}

// Emit queues one named message on the live connection.
func (c *SocketClient) Emit(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}
	frame, err := json.Marshal(Message{Event: name, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return ErrNotConnected
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("emit %s: send buffer full", name)
	}
}

// Close drops the connection and stops Run from redialing.
func (c *SocketClient) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *SocketClient) header() http.Header {
	h := http.Header{}
	if c.config.Token != "" {
		h.Set("Authorization", "Bearer "+c.config.Token)
	}
	return h
}

func (c *SocketClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// serve runs the pumps of one connection and returns when it drops.
func (c *SocketClient) serve(ctx context.Context, conn *websocket.Conn) {
	send := make(chan []byte, c.config.SendBuffer)
	done := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.send = send
	reconnect := c.connected
	c.connected = true
	hooks := append([]func(){}, c.hooks...)
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	log.Info().Str("url", c.config.URL).Bool("reconnect", reconnect).Msg("socket connected")

	go c.writePump(conn, send, done)
	for _, fn := range hooks {
		fn()
	}
	c.readPump(conn)

	c.mu.Lock()
	c.conn = nil
	c.send = nil
	c.mu.Unlock()
	close(done)
	conn.Close()

	log.Warn().Str("url", c.config.URL).Msg("socket disconnected")
}

// writePump handles sending queued frames and pings to the connection
func (c *SocketClient) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := c.clock.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame := <-send:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Msg("failed to write socket message")
				return
			}

		case <-ticker.Chan():
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump decodes inbound frames in arrival order until the connection
// fails.
func (c *SocketClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(c.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("unexpected socket close error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("skipping malformed socket frame")
			continue
		}
		c.listeners.deliverRaw(msg.Event, msg.Data)
	}
}
