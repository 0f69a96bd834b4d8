package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentdesk/chatlink/internal/model"
)

// Event is the tagged union of all inbound server events. Decoded events are
// delivered over a channel and handled one at a time by the session's
// dispatch loop.
type Event interface {
	EventName() string
}

// ConnectedEvent confirms the authentication handshake.
type ConnectedEvent struct {
	UserID      string
	ClientID    string
	DisplayName string
}

// DisconnectEvent is a server-initiated transport loss notice.
type DisconnectEvent struct {
	Reason string
}

// ConnectErrorEvent signals a rejected handshake. Distinct from transport
// loss: retrying with the same credential is pointless.
type ConnectErrorEvent struct {
	Message string
}

// RosterEvent is an authoritative snapshot of all rooms or conversations.
type RosterEvent struct {
	Containers []model.Container
}

// RoomJoinedEvent confirms membership in a room.
type RoomJoinedEvent struct {
	RoomID string
}

// HistoryEvent is a batch of messages for one container.
type HistoryEvent struct {
	ContainerID string
	Messages    []model.Message
}

// MessageEvent is a single pushed message (new, edit, or delete).
type MessageEvent struct {
	Message model.Message
}

// PresenceSnapshotEvent is an authoritative snapshot of the presence set.
type PresenceSnapshotEvent struct {
	Users []model.PresenceEntry
}

// UserOnlineEvent is a presence delta: a counterparty came online.
type UserOnlineEvent struct {
	UserID      string
	DisplayName string
}

// UserOfflineEvent is a presence delta: a counterparty went offline.
type UserOfflineEvent struct {
	UserID string
}

// ServerErrorEvent is a non-fatal error surfaced by the server. It does not
// alter connection state.
type ServerErrorEvent struct {
	Message string
}

// PongEvent acknowledges a keepalive probe. Observational only.
type PongEvent struct{}

func (ConnectedEvent) EventName() string        { return "connected" }
func (DisconnectEvent) EventName() string       { return "disconnect" }
func (ConnectErrorEvent) EventName() string     { return "connect_error" }
func (RosterEvent) EventName() string           { return "rooms" }
func (RoomJoinedEvent) EventName() string       { return "room_joined" }
func (HistoryEvent) EventName() string          { return "messages" }
func (MessageEvent) EventName() string          { return "message" }
func (PresenceSnapshotEvent) EventName() string { return "online_users" }
func (UserOnlineEvent) EventName() string       { return "user_online" }
func (UserOfflineEvent) EventName() string      { return "user_offline" }
func (ServerErrorEvent) EventName() string      { return "error" }
func (PongEvent) EventName() string             { return "pong" }

// UnknownEventError is returned by Decode for event names outside the
// catalog. Callers log and skip.
type UnknownEventError struct {
	Name string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event %q", e.Name)
}

// envelope is the wire framing for both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode parses one inbound frame into its catalog event.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Event {
	case "connected":
		var w struct {
			UserID      string `json:"user_id"`
			ClientID    string `json:"client_id"`
			DisplayName string `json:"display_name"`
		}
		if err := unmarshalData(env, &w); err != nil {
			return nil, err
		}
		return ConnectedEvent{UserID: w.UserID, ClientID: w.ClientID, DisplayName: w.DisplayName}, nil

	case "disconnect":
		var w struct {
			Reason string `json:"reason"`
		}
		if err := unmarshalData(env, &w); err != nil {
			return nil, err
		}
		return DisconnectEvent{Reason: w.Reason}, nil

	case "connect_error":
		var w struct {
			Message string `json:"message"`
		}
		if err := unmarshalData(env, &w); err != nil {
			return nil, err
		}
		return ConnectErrorEvent{Message: w.Message}, nil

	case "rooms", "conversations":
		return decodeRoster(env)

	case "room_joined":
		var w struct {
			RoomID string `json:"room_id"`
		}
		if err := unmarshalData(env, &w); err != nil {
			return nil, err
		}
		return RoomJoinedEvent{RoomID: w.RoomID}, nil

	case "messages":
		return decodeHistory(env)

	case "message", "new_message":
		var w messageWire
		if err := unmarshalData(env, &w); err != nil {
			return nil, err
		}
		return MessageEvent{Message: w.toModel()}, nil

	case "online_users":
		return decodePresenceSnapshot(env)

	case "user_online":
		var w struct {
			UserID      string `json:"user_id"`
			DisplayName string `json:"display_name"`
		}
		if err := unmarshalData(env, &w); err != nil {
			return nil, err
		}
		return UserOnlineEvent{UserID: w.UserID, DisplayName: w.DisplayName}, nil

	case "user_offline":
		var w struct {
			UserID string `json:"user_id"`
		}
		if err := unmarshalData(env, &w); err != nil {
			return nil, err
		}
		return UserOfflineEvent{UserID: w.UserID}, nil

	case "error":
		var w struct {
			Message string `json:"message"`
		}
		if err := unmarshalData(env, &w); err != nil {
			return nil, err
		}
		return ServerErrorEvent{Message: w.Message}, nil

	case "pong":
		return PongEvent{}, nil
	}

	return nil, &UnknownEventError{Name: env.Event}
}

func unmarshalData(env envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", env.Event, err)
	}
	return nil
}

// containerWire accepts both the room-dialect and the legacy
// conversation-dialect field names.
type containerWire struct {
	ID             string `json:"id"`
	RoomID         string `json:"room_id"`
	ConversationID string `json:"conversation_id"`
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	Description    string `json:"description"`
	MemberCount    int    `json:"member_count"`
	LastActivity   int64  `json:"last_activity"` // unix ms, 0 when absent
}

func (w containerWire) toModel() model.Container {
	c := model.Container{
		ID:          firstNonEmpty(w.RoomID, w.ConversationID, w.ID),
		DisplayName: firstNonEmpty(w.DisplayName, w.Name),
		Description: w.Description,
		MemberCount: w.MemberCount,
	}
	if w.LastActivity > 0 {
		c.LastActivityAt = time.UnixMilli(w.LastActivity).UTC()
	}
	return c
}

func decodeRoster(env envelope) (Event, error) {
	// The roster list arrives under "containers" in newer backends and under
	// the event's own name in older ones.
	var w struct {
		Containers    []containerWire `json:"containers"`
		Rooms         []containerWire `json:"rooms"`
		Conversations []containerWire `json:"conversations"`
	}
	if err := unmarshalData(env, &w); err != nil {
		return nil, err
	}

	list := w.Containers
	if list == nil {
		list = w.Rooms
	}
	if list == nil {
		list = w.Conversations
	}

	containers := make([]model.Container, 0, len(list))
	for _, cw := range list {
		containers = append(containers, cw.toModel())
	}
	return RosterEvent{Containers: containers}, nil
}

// messageWire accepts both dialects' message shapes.
type messageWire struct {
	ID          string `json:"id"`
	RoomID      string `json:"room_id"`
	ContainerID string `json:"container_id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"` // legacy direct dialect
	SenderName  string `json:"sender_name"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	CreatedAt   string `json:"created_at"` // RFC 3339
	Timestamp   int64  `json:"timestamp"`  // unix ms, legacy
	Edited      bool   `json:"edited"`
	Deleted     bool   `json:"deleted"`
	ReplyToID   string `json:"reply_to_id"`
	Encrypted   string `json:"encrypted"`
	Attachment  *struct {
		URL      string `json:"url"`
		Name     string `json:"name"`
		Size     int64  `json:"size"`
		MimeType string `json:"mime_type"`
	} `json:"attachment"`
}

func (w messageWire) toModel() model.Message {
	m := model.Message{
		ID:                w.ID,
		ContainerID:       w.containerKey(),
		Content:           w.Content,
		ContentType:       w.ContentType,
		SenderID:          w.SenderID,
		SenderDisplayName: w.SenderName,
		Edited:            w.Edited,
		Deleted:           w.Deleted,
		ReplyToID:         w.ReplyToID,
		Encrypted:         w.Encrypted,
	}
	if m.ContentType == "" {
		m.ContentType = "text"
	}
	if w.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
			m.CreatedAt = t.UTC()
		}
	}
	if m.CreatedAt.IsZero() && w.Timestamp > 0 {
		m.CreatedAt = time.UnixMilli(w.Timestamp).UTC()
	}
	if w.Attachment != nil {
		m.Attachment = &model.Attachment{
			URL:      w.Attachment.URL,
			Name:     w.Attachment.Name,
			Size:     w.Attachment.Size,
			MimeType: w.Attachment.MimeType,
		}
	}
	return m
}

// containerKey resolves the container a message belongs to. Room-dialect
// messages carry the room id; legacy direct messages carry only the two
// endpoints, which collapse to a stable pair key.
func (w messageWire) containerKey() string {
	if w.RoomID != "" {
		return w.RoomID
	}
	if w.ContainerID != "" {
		return w.ContainerID
	}
	return PairKey(w.SenderID, w.RecipientID)
}

// PairKey builds a deterministic conversation key for the legacy direct
// dialect: both endpoints sorted, joined by a colon.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

func decodeHistory(env envelope) (Event, error) {
	var w struct {
		ContainerID string        `json:"container_id"`
		RoomID      string        `json:"room_id"`
		Messages    []messageWire `json:"messages"`
	}
	if err := unmarshalData(env, &w); err != nil {
		return nil, err
	}

	containerID := firstNonEmpty(w.ContainerID, w.RoomID)
	msgs := make([]model.Message, 0, len(w.Messages))
	for _, mw := range w.Messages {
		m := mw.toModel()
		// Some batches omit per-message container ids; inherit the batch's.
		if mw.RoomID == "" && mw.ContainerID == "" && mw.RecipientID == "" && containerID != "" {
			m.ContainerID = containerID
		}
		if containerID == "" {
			containerID = m.ContainerID
		}
		msgs = append(msgs, m)
	}
	return HistoryEvent{ContainerID: containerID, Messages: msgs}, nil
}

func decodePresenceSnapshot(env envelope) (Event, error) {
	var w struct {
		Users []struct {
			UserID      string `json:"user_id"`
			DisplayName string `json:"display_name"`
		} `json:"users"`
	}
	if err := unmarshalData(env, &w); err != nil {
		return nil, err
	}

	users := make([]model.PresenceEntry, 0, len(w.Users))
	for _, u := range w.Users {
		users = append(users, model.PresenceEntry{UserID: u.UserID, DisplayName: u.DisplayName})
	}
	return PresenceSnapshotEvent{Users: users}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
