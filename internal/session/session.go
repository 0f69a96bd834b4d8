package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agentdesk/chatlink/internal/model"
	"github.com/agentdesk/chatlink/internal/protocol"
	"github.com/agentdesk/chatlink/internal/state"
	"github.com/agentdesk/chatlink/internal/transport"
)

// ConnectionState is the session's connection lifecycle state. Exactly one
// value at any instant; owned exclusively by the Session.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// NoticeKind classifies a lifecycle notification.
type NoticeKind string

const (
	// NoticeConnected reports a completed handshake.
	NoticeConnected NoticeKind = "connected"

	// NoticeDisconnected reports a transient transport loss. Recovery is
	// automatic; no caller action required.
	NoticeDisconnected NoticeKind = "disconnected"

	// NoticeConnectError reports a rejected handshake. Not auto-retried:
	// the caller must re-authenticate before reconnecting.
	NoticeConnectError NoticeKind = "connect_error"

	// NoticeProtocolError reports a non-fatal server error event. Connection
	// state is unaffected.
	NoticeProtocolError NoticeKind = "protocol_error"
)

// Notice is a lifecycle notification delivered on Session.Notices().
type Notice struct {
	Kind   NoticeKind
	Reason string
}

// Config configures a Session.
type Config struct {
	WSURL             string
	Dialect           protocol.Dialect
	ReconnectDelay    time.Duration // Delay before the single reconnect attempt after a loss
	KeepAliveInterval time.Duration // Application-level ping cadence while connected
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	StaleTimeout      time.Duration // Transport-level liveness window (no pong)
	BufferSize        int           // Transport frame channel capacity
	HistoryLimit      int           // Page size for automatic history fetches
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Dialect:           protocol.DialectRooms,
		ReconnectDelay:    3 * time.Second,
		KeepAliveInterval: 30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		StaleTimeout:      90 * time.Second,
		BufferSize:        1000,
		HistoryLimit:      50,
	}
}

// Session owns the single real-time connection for one credential: open,
// authenticate, detect loss, reconnect, close. At most one live connection
// exists per Session; reconnection creates a new transport but preserves the
// state store's collections.
type Session struct {
	cfg    Config
	cred   model.Credential
	store  *state.Store
	logger *slog.Logger

	// newConn is swapped in tests.
	newConn func(transport.Config, *slog.Logger) transport.Conn

	mu             sync.Mutex
	st             ConnectionState
	conn           transport.Conn
	quit           chan struct{} // Closed to stop the active dispatch loop
	keepaliveStop  chan struct{}
	reconnectTimer *time.Timer
	localClose     bool // Set while Disconnect tears the transport down
	clientID       string
	ctx            context.Context // Base context, reused by reconnect attempts

	notices chan Notice
	states  chan ConnectionState

	feedMu sync.Mutex
	feeds  []chan model.Message
}

// New creates a Session for an issued credential. The store may be shared
// with UI readers; it is mutated only by this session's dispatch goroutine.
func New(cfg Config, cred model.Credential, store *state.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = state.NewStore(logger)
	}
	return &Session{
		cfg:     cfg,
		cred:    cred,
		store:   store,
		logger:  logger.With("subject_id", cred.SubjectID),
		newConn: transport.NewConn,
		st:      StateDisconnected,
		notices: make(chan Notice, 64),
		states:  make(chan ConnectionState, 16),
	}
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// StateChanges returns the observable stream of state transitions.
func (s *Session) StateChanges() <-chan ConnectionState {
	return s.states
}

// Notices returns the lifecycle notification channel.
func (s *Session) Notices() <-chan Notice {
	return s.notices
}

// Messages returns an independent subscription to the live feed of
// reconciled messages. Every subscriber receives every message, so the
// transcript archiver and a display loop can consume side by side. Each call
// creates a new subscription: subscribe once, before consuming. Slow
// subscribers lose frames; the store remains authoritative.
func (s *Session) Messages() <-chan model.Message {
	ch := make(chan model.Message, 256)
	s.feedMu.Lock()
	s.feeds = append(s.feeds, ch)
	s.feedMu.Unlock()
	return ch
}

// publish fans one message out to all subscribers without blocking the
// dispatch loop.
func (s *Session) publish(m model.Message) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	for _, ch := range s.feeds {
		select {
		case ch <- m:
		default:
		}
	}
}

// Store returns the session's state store.
func (s *Session) Store() *state.Store {
	return s.store
}

// ClientID returns the server-assigned client id from the last handshake.
func (s *Session) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// Connect opens the transport and starts the handshake. A no-op while the
// session is already Connecting or Connected: at most one live connection.
// The Connected transition happens when the server's connected event
// arrives, not when the dial returns.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.st != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StateConnecting)
	s.localClose = false
	s.ctx = ctx
	s.cancelReconnectLocked()

	conn := s.newConn(transport.Config{
		URL:              s.cfg.WSURL,
		Credential:       s.cred,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		StaleTimeout:     s.cfg.StaleTimeout,
		BufferSize:       s.cfg.BufferSize,
	}, s.logger)
	quit := make(chan struct{})
	s.conn = conn
	s.quit = quit
	s.mu.Unlock()

	if err := conn.Connect(ctx); err != nil {
		s.mu.Lock()
		s.conn = nil
		s.quit = nil
		s.setStateLocked(StateDisconnected)
		s.mu.Unlock()
		s.notify(Notice{Kind: NoticeConnectError, Reason: err.Error()})
		return err
	}

	go s.dispatchLoop(conn, quit)

	return nil
}

// Disconnect tears the session down: cancels any pending reconnect timer,
// stops the keepalive, closes the transport, resets state to Disconnected.
// The only loss path exempt from auto-reconnection.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.localClose = true
	s.cancelReconnectLocked()
	s.stopKeepAliveLocked()
	conn := s.conn
	quit := s.quit
	s.conn = nil
	s.quit = nil
	s.setStateLocked(StateDisconnected)
	s.mu.Unlock()

	if quit != nil {
		close(quit)
	}
	if conn != nil {
		conn.Close()
	}

	s.logger.Info("session disconnected")
}

// SignOut disconnects and clears the derived collections. The next session
// requires a fresh credential exchange.
func (s *Session) SignOut() {
	s.Disconnect()
	s.store.Reset()
}

// dispatchLoop processes one connection instance's events, in transport
// delivery order, one at a time. A new loop is started per connection: the
// old instance's bindings do not survive a reconnect.
func (s *Session) dispatchLoop(conn transport.Conn, quit chan struct{}) {
	for {
		select {
		case <-quit:
			return

		case err := <-conn.Errors():
			s.handleLoss(conn, err.Error())
			return

		case frame, ok := <-conn.Frames():
			if !ok {
				return
			}
			ev, err := protocol.Decode(frame.Data)
			if err != nil {
				var unknown *protocol.UnknownEventError
				if errors.As(err, &unknown) {
					s.logger.Debug("skipping unknown event", "event", unknown.Name)
				} else {
					s.logger.Warn("failed to decode frame", "error", err)
				}
				continue
			}
			if stop := s.handleEvent(conn, ev); stop {
				return
			}
		}
	}
}

// handleEvent reduces one inbound event. Returns true when the connection is
// finished and the dispatch loop must stop.
func (s *Session) handleEvent(conn transport.Conn, ev protocol.Event) (stop bool) {
	switch e := ev.(type) {
	case protocol.ConnectedEvent:
		s.mu.Lock()
		s.clientID = e.ClientID
		s.cancelReconnectLocked()
		s.setStateLocked(StateConnected)
		s.startKeepAliveLocked(conn)
		s.mu.Unlock()

		s.logger.Info("handshake confirmed",
			"client_id", e.ClientID,
			"display_name", e.DisplayName,
		)
		s.notify(Notice{Kind: NoticeConnected})

		// Initial roster fetch.
		s.sendCommand(conn, protocol.ListContainers(s.cfg.Dialect))

	case protocol.ConnectErrorEvent:
		// Rejected credential: retrying is pointless, no auto-reconnect.
		s.teardown(conn)
		s.logger.Warn("handshake rejected", "message", e.Message)
		s.notify(Notice{Kind: NoticeConnectError, Reason: e.Message})
		return true

	case protocol.DisconnectEvent:
		s.handleLoss(conn, e.Reason)
		return true

	case protocol.RosterEvent:
		s.store.ApplyRoster(e.Containers)

	case protocol.RoomJoinedEvent:
		s.logger.Debug("room joined", "room_id", e.RoomID)
		s.sendCommand(conn, protocol.FetchHistory(s.cfg.Dialect, e.RoomID, s.cfg.HistoryLimit, 0))

	case protocol.HistoryEvent:
		s.store.ApplyHistory(e.ContainerID, e.Messages)

	case protocol.MessageEvent:
		s.store.UpsertMessage(e.Message)
		s.publish(e.Message)

	case protocol.PresenceSnapshotEvent:
		s.store.ApplyPresenceSnapshot(e.Users)

	case protocol.UserOnlineEvent:
		s.store.SetOnline(model.PresenceEntry{UserID: e.UserID, DisplayName: e.DisplayName})

	case protocol.UserOfflineEvent:
		s.store.SetOffline(e.UserID)

	case protocol.ServerErrorEvent:
		s.logger.Warn("server error", "message", e.Message)
		s.notify(Notice{Kind: NoticeProtocolError, Reason: e.Message})

	case protocol.PongEvent:
		s.logger.Debug("pong received")
	}

	return false
}

// handleLoss reacts to a transport loss that was not caused by a local
// Disconnect: tears the connection down and schedules exactly one reconnect
// attempt with the same credential.
func (s *Session) handleLoss(conn transport.Conn, reason string) {
	s.mu.Lock()
	if s.localClose {
		s.mu.Unlock()
		return
	}
	if s.conn != conn {
		// A late error from a superseded connection must not disturb the
		// current one.
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.stopKeepAliveLocked()
	s.conn = nil
	s.quit = nil
	s.setStateLocked(StateDisconnected)
	s.scheduleReconnectLocked()
	s.mu.Unlock()

	conn.Close()

	s.logger.Warn("connection lost", "reason", reason, "reconnect_in", s.cfg.ReconnectDelay)
	s.notify(Notice{Kind: NoticeDisconnected, Reason: reason})
}

// teardown closes a connection without scheduling a reconnect.
func (s *Session) teardown(conn transport.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.stopKeepAliveLocked()
	s.conn = nil
	s.quit = nil
	s.setStateLocked(StateDisconnected)
	s.mu.Unlock()

	conn.Close()
}

// scheduleReconnectLocked arms the reconnect timer. At most one may be
// pending; an armed timer is left alone.
func (s *Session) scheduleReconnectLocked() {
	if s.reconnectTimer != nil {
		return
	}
	ctx := s.ctx
	s.reconnectTimer = time.AfterFunc(s.cfg.ReconnectDelay, func() {
		s.mu.Lock()
		s.reconnectTimer = nil
		s.mu.Unlock()

		s.logger.Info("attempting reconnection")
		if err := s.Connect(ctx); err != nil {
			s.logger.Warn("reconnection failed", "error", err)
		}
	})
}

// cancelReconnectLocked disarms any pending reconnect timer.
func (s *Session) cancelReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// startKeepAliveLocked starts a fresh keepalive loop for this connection.
func (s *Session) startKeepAliveLocked(conn transport.Conn) {
	s.stopKeepAliveLocked()
	stop := make(chan struct{})
	s.keepaliveStop = stop
	go s.keepAliveLoop(conn, stop)
}

// stopKeepAliveLocked stops the active keepalive loop, if any.
func (s *Session) stopKeepAliveLocked() {
	if s.keepaliveStop != nil {
		close(s.keepaliveStop)
		s.keepaliveStop = nil
	}
}

// keepAliveLoop emits the application-level liveness probe while connected.
// It never treats a missing pong as a disconnect; failure detection is the
// transport's job.
func (s *Session) keepAliveLoop(conn transport.Conn, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.sendCommand(conn, protocol.Ping()); err != nil {
				s.logger.Debug("keepalive probe failed", "error", err)
			}
		}
	}
}

// sendCommand encodes and writes one command on a specific connection.
func (s *Session) sendCommand(conn transport.Conn, cmd protocol.Command) error {
	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	if err := conn.Send(data); err != nil {
		s.logger.Warn("failed to send command", "event", cmd.Event, "error", err)
		return err
	}
	return nil
}

// setStateLocked transitions the connection state and publishes it.
func (s *Session) setStateLocked(st ConnectionState) {
	if s.st == st {
		return
	}
	s.st = st
	select {
	case s.states <- st:
	default:
	}
	s.logger.Debug("connection state", "state", st)
}

// notify publishes a lifecycle notice without blocking the dispatch loop.
func (s *Session) notify(n Notice) {
	select {
	case s.notices <- n:
	default:
		s.logger.Warn("notice buffer full, dropping", "kind", n.Kind)
	}
}
