package session

import (
	"errors"

	"github.com/agentdesk/chatlink/internal/protocol"
	"github.com/agentdesk/chatlink/internal/transport"
)

// Errors
var (
	// ErrNotConnected rejects an outbound command attempted while not
	// connected. No queuing, no silent drop.
	ErrNotConnected = errors.New("not connected")

	// ErrRoomsOnly rejects room membership commands in the direct dialect.
	ErrRoomsOnly = errors.New("room commands require the rooms dialect")
)

// gatedConn returns the live connection, or ErrNotConnected when the session
// is not in the Connected state. Every outbound command passes through here.
func (s *Session) gatedConn() (transport.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != StateConnected || s.conn == nil {
		return nil, ErrNotConnected
	}
	return s.conn, nil
}

// emit validates connection state and fires the command without waiting for
// acknowledgment; the server's pushed events carry the result.
func (s *Session) emit(cmd protocol.Command) error {
	conn, err := s.gatedConn()
	if err != nil {
		return err
	}
	return s.sendCommand(conn, cmd)
}

// SendMessage sends a chat message to a container.
func (s *Session) SendMessage(containerID, content, contentType, replyToID string) error {
	if contentType == "" {
		contentType = "text"
	}
	return s.emit(protocol.SendMessage(s.cfg.Dialect, containerID, content, contentType, replyToID))
}

// FetchHistory requests a message batch for a container. The resulting
// messages event replaces that container's timeline subset.
func (s *Session) FetchHistory(containerID string, limit, offset int) error {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	return s.emit(protocol.FetchHistory(s.cfg.Dialect, containerID, limit, offset))
}

// JoinRoom requests room membership. The room_joined confirmation triggers
// an automatic history fetch.
func (s *Session) JoinRoom(roomID string) error {
	if s.cfg.Dialect == protocol.DialectDirect {
		return ErrRoomsOnly
	}
	return s.emit(protocol.JoinRoom(roomID))
}

// LeaveRoom relinquishes room membership.
func (s *Session) LeaveRoom(roomID string) error {
	if s.cfg.Dialect == protocol.DialectDirect {
		return ErrRoomsOnly
	}
	return s.emit(protocol.LeaveRoom(roomID))
}

// ListContainers requests a fresh roster snapshot.
func (s *Session) ListContainers() error {
	return s.emit(protocol.ListContainers(s.cfg.Dialect))
}

// ListPresence requests a fresh presence snapshot.
func (s *Session) ListPresence() error {
	return s.emit(protocol.ListPresence())
}

// CheckUserStatus asks the server for one counterparty's status.
func (s *Session) CheckUserStatus(userID string) error {
	return s.emit(protocol.CheckUserStatus(userID))
}
