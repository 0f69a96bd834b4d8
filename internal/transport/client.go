package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentdesk/chatlink/internal/model"
	"github.com/agentdesk/chatlink/internal/protocol"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrStaleConn     = errors.New("connection stale (no pong)")
	ErrAlreadyClosed = errors.New("already closed")
)

// Frame wraps raw frame bytes with the local receive timestamp.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
}

// Config configures a single connection.
type Config struct {
	URL              string           // WebSocket URL
	Credential       model.Credential // Sent as the first frame after dial
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	StaleTimeout     time.Duration // Max time without a control pong before the connection is reported stale
	BufferSize       int           // Frame channel capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		StaleTimeout:     90 * time.Second,
		BufferSize:       1000,
	}
}

// Conn is one WebSocket connection to the chat backend. A Conn is used for
// at most one dial; reconnection creates a new Conn.
type Conn interface {
	// Connect dials the backend and sends the authentication payload as the
	// first frame. The server's connected/connect_error reply arrives on
	// Frames() like any other event.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection. Idempotent.
	Close() error

	// Send writes one frame to the connection.
	Send(data []byte) error

	// Frames returns the channel of raw inbound frames.
	Frames() <-chan Frame

	// Errors returns the channel of connection errors (read failure, stale).
	Errors() <-chan error

	// IsConnected reports current transport state.
	IsConnected() bool
}

// conn implements Conn.
type conn struct {
	cfg    Config
	logger *slog.Logger

	ws *websocket.Conn

	frames chan Frame
	errs   chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu         sync.RWMutex
	connected  bool
	closed     bool
	lastPongAt time.Time
}

// NewConn creates a connection for one dial attempt. Zero timeouts and
// sizes take the defaults; a literal zero StaleTimeout would declare every
// connection stale at the first tick.
func NewConn(cfg Config, logger *slog.Logger) Conn {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.StaleTimeout == 0 {
		cfg.StaleTimeout = def.StaleTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}

	return &conn{
		cfg:    cfg,
		logger: logger.With("conn_id", uuid.NewString()[:8]),
		frames: make(chan Frame, cfg.BufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect dials and authenticates.
func (c *conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		// Closed while the dial was in flight; don't leak the websocket.
		c.mu.Unlock()
		ws.Close()
		return ErrAlreadyClosed
	}
	c.ws = ws
	c.connected = true
	c.lastPongAt = time.Now()
	c.mu.Unlock()

	ws.SetPingHandler(func(data string) error {
		c.touchPong()
		return ws.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})
	ws.SetPongHandler(func(string) error {
		c.touchPong()
		return nil
	})

	// The connection is opened with the credential attached: the auth
	// payload is the first frame, before any read.
	authFrame, err := protocol.Encode(protocol.Auth(c.cfg.Credential))
	if err != nil {
		ws.Close()
		return err
	}
	if err := c.Send(authFrame); err != nil {
		ws.Close()
		return err
	}

	go c.readLoop()
	go c.staleLoop()

	c.logger.Debug("transport connected", "url", c.cfg.URL)

	return nil
}

// Close gracefully closes the connection.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	ws := c.ws
	c.mu.Unlock()

	close(c.done)

	if ws != nil {
		ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return ws.Close()
	}

	return nil
}

// Send writes one frame.
func (c *conn) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	ws := c.ws
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) Frames() <-chan Frame {
	return c.frames
}

func (c *conn) Errors() <-chan error {
	return c.errs
}

func (c *conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *conn) touchPong() {
	c.mu.Lock()
	c.lastPongAt = time.Now()
	c.mu.Unlock()
}

// readLoop reads frames until the connection fails or is closed.
func (c *conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.ws.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Errors after Close() are expected and dropped.
			select {
			case <-c.done:
				return
			default:
				select {
				case c.errs <- err:
				default:
				}
				return
			}
		}

		select {
		case c.frames <- Frame{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			c.logger.Warn("frame buffer full, dropping frame")
		}
	}
}

// staleLoop sends control pings and reports a stale connection when no pong
// arrives within the configured window. This is transport-level liveness;
// the application-level keepalive probe lives in the session.
func (c *conn) staleLoop() {
	interval := c.cfg.StaleTimeout / 3
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			ws := c.ws
			lastPong := c.lastPongAt
			c.mu.RUnlock()

			if ws != nil {
				deadline := time.Now().Add(c.cfg.WriteTimeout)
				if err := ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
					c.logger.Debug("failed to send control ping", "error", err)
				}
			}

			if time.Since(lastPong) > c.cfg.StaleTimeout {
				c.logger.Warn("no pong received, connection stale",
					"last_pong", lastPong,
					"timeout", c.cfg.StaleTimeout,
				)
				select {
				case c.errs <- ErrStaleConn:
				default:
				}
				return
			}
		}
	}
}
