package protocol

import (
	"encoding/json"
	"testing"

	"github.com/agentdesk/chatlink/internal/model"
)

// roundtrip encodes a command and decodes the envelope for inspection.
func roundtrip(t *testing.T, cmd Command) (string, map[string]any) {
	t.Helper()

	data, err := Encode(cmd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var env struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return env.Event, env.Data
}

func TestAuth_CarriesCredential(t *testing.T) {
	cred := model.Credential{AccessToken: "k1", SubjectID: "u1", DisplayName: "Ana"}

	event, data := roundtrip(t, Auth(cred))
	if event != "auth" {
		t.Errorf("event = %s, want auth", event)
	}
	if data["user_id"] != "u1" || data["api_key"] != "k1" || data["display_name"] != "Ana" {
		t.Errorf("unexpected auth payload: %v", data)
	}
}

func TestSendMessage_RoomsDialect(t *testing.T) {
	event, data := roundtrip(t, SendMessage(DialectRooms, "r1", "hi", "text", "m0"))

	if event != "send_message" {
		t.Errorf("event = %s, want send_message", event)
	}
	if data["container_id"] != "r1" {
		t.Errorf("container_id = %v, want r1", data["container_id"])
	}
	if data["reply_to_id"] != "m0" {
		t.Errorf("reply_to_id = %v, want m0", data["reply_to_id"])
	}
	if _, ok := data["recipient_id"]; ok {
		t.Error("rooms dialect must not set recipient_id")
	}
}

func TestSendMessage_DirectDialect(t *testing.T) {
	_, data := roundtrip(t, SendMessage(DialectDirect, "u2", "hi", "text", ""))

	if data["recipient_id"] != "u2" {
		t.Errorf("recipient_id = %v, want u2", data["recipient_id"])
	}
	if _, ok := data["container_id"]; ok {
		t.Error("direct dialect must not set container_id")
	}
	if _, ok := data["reply_to_id"]; ok {
		t.Error("empty reply_to_id must be omitted")
	}
}

func TestFetchHistory(t *testing.T) {
	event, data := roundtrip(t, FetchHistory(DialectRooms, "r1", 50, 100))

	if event != "get_messages" {
		t.Errorf("event = %s, want get_messages", event)
	}
	if data["limit"] != float64(50) || data["offset"] != float64(100) {
		t.Errorf("unexpected paging: %v", data)
	}
}

func TestListContainers_PerDialect(t *testing.T) {
	if event, _ := roundtrip(t, ListContainers(DialectRooms)); event != "get_rooms" {
		t.Errorf("event = %s, want get_rooms", event)
	}
	if event, _ := roundtrip(t, ListContainers(DialectDirect)); event != "get_conversations" {
		t.Errorf("event = %s, want get_conversations", event)
	}
}

func TestSimpleCommands(t *testing.T) {
	cases := []struct {
		cmd  Command
		want string
	}{
		{JoinRoom("r1"), "join_room"},
		{LeaveRoom("r1"), "leave_room"},
		{ListPresence(), "get_online_users"},
		{CheckUserStatus("u1"), "check_user_status"},
		{Ping(), "ping"},
	}

	for _, tc := range cases {
		if event, _ := roundtrip(t, tc.cmd); event != tc.want {
			t.Errorf("event = %s, want %s", event, tc.want)
		}
	}
}
