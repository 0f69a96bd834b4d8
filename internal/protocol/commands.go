package protocol

import (
	"encoding/json"

	"github.com/agentdesk/chatlink/internal/model"
)

// Dialect selects the outbound command naming scheme. The room dialect is
// canonical; the direct dialect is a compatibility shim for backends that
// address messages by counterparty instead of by room.
type Dialect string

const (
	DialectRooms  Dialect = "rooms"
	DialectDirect Dialect = "direct"
)

// Command is an outbound client-to-server request. Fire-and-forget: the
// server's pushed events carry the results.
type Command struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Encode serializes a command to its wire frame.
func Encode(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

// Auth is the first frame sent after dialing: the authentication payload the
// connection is opened with.
func Auth(cred model.Credential) Command {
	return Command{Event: "auth", Data: map[string]string{
		"user_id":      cred.SubjectID,
		"api_key":      cred.AccessToken,
		"display_name": cred.DisplayName,
	}}
}

// SendMessage builds a send_message command. In the direct dialect the
// container id is the counterparty's user id.
func SendMessage(d Dialect, containerID, content, contentType, replyToID string) Command {
	data := map[string]any{
		"content":      content,
		"content_type": contentType,
	}
	if replyToID != "" {
		data["reply_to_id"] = replyToID
	}
	if d == DialectDirect {
		data["recipient_id"] = containerID
	} else {
		data["container_id"] = containerID
	}
	return Command{Event: "send_message", Data: data}
}

// FetchHistory builds a get_messages command for one container.
func FetchHistory(d Dialect, containerID string, limit, offset int) Command {
	data := map[string]any{
		"limit":  limit,
		"offset": offset,
	}
	if d == DialectDirect {
		data["recipient_id"] = containerID
	} else {
		data["container_id"] = containerID
	}
	return Command{Event: "get_messages", Data: data}
}

// JoinRoom builds a join_room command. Room dialect only.
func JoinRoom(roomID string) Command {
	return Command{Event: "join_room", Data: map[string]string{"room_id": roomID}}
}

// LeaveRoom builds a leave_room command. Room dialect only.
func LeaveRoom(roomID string) Command {
	return Command{Event: "leave_room", Data: map[string]string{"room_id": roomID}}
}

// ListContainers builds the roster fetch for the active dialect.
func ListContainers(d Dialect) Command {
	if d == DialectDirect {
		return Command{Event: "get_conversations"}
	}
	return Command{Event: "get_rooms"}
}

// ListPresence builds a get_online_users command.
func ListPresence() Command {
	return Command{Event: "get_online_users"}
}

// CheckUserStatus builds a check_user_status command for one counterparty.
func CheckUserStatus(userID string) Command {
	return Command{Event: "check_user_status", Data: map[string]string{"user_id": userID}}
}

// Ping builds the application-level keepalive probe.
func Ping() Command {
	return Command{Event: "ping"}
}
