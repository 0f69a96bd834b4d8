package model

import "time"

// Credential is a short-lived, user-scoped access token obtained from the
// credential exchange endpoint. Immutable once issued; superseded only by a
// fresh exchange.
type Credential struct {
	AccessToken string `json:"access_token"`
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
}

// Valid reports whether the credential carries a token.
func (c Credential) Valid() bool {
	return c.AccessToken != "" && c.SubjectID != ""
}

// Attachment describes a file attached to a message.
type Attachment struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Message is a single chat message. Immutable except the Edited/Deleted
// flags, which later events carrying the same ID may set.
type Message struct {
	ID                string      // Unique within a session's timeline
	ContainerID       string      // Room or conversation key
	Content           string
	ContentType       string      // e.g. "text", "markdown"
	SenderID          string
	SenderDisplayName string
	CreatedAt         time.Time
	Edited            bool
	Deleted           bool
	Attachment        *Attachment // nil when the message has no attachment
	ReplyToID         string      // Empty when not a reply

	// Encrypted carries an opaque end-to-end payload, passed through
	// untouched. The client never decrypts it.
	Encrypted string
}

// Container is an addressable message scope: a room or a direct
// conversation. Upserted wholesale on roster-refresh events.
type Container struct {
	ID             string
	DisplayName    string
	Description    string
	MemberCount    int
	LastActivityAt time.Time // Zero when the server did not report activity
}

// PresenceEntry is one currently-online counterparty. The presence set is
// keyed by UserID; no duplicates.
type PresenceEntry struct {
	UserID      string
	DisplayName string
}
