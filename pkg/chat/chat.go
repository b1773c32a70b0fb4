// Package chat implements the client side of the two-party chat system: the
// room directory, the live transport session, the history/live message
// reconciler and the outbound composition pipeline.
package chat

import (
	"strings"
	"time"

	"github.com/designpro/chatkit/pkg/identity"
	"github.com/designpro/chatkit/pkg/rest"
)

const (
	// FileMarker tags a message whose payload is a file reference.
	FileMarker = "[File]"
	// VoiceMarker tags a message whose payload is an audio reference.
	VoiceMarker = "[Voice]"
	// VoiceContent is the fixed content of an audio message.
	VoiceContent = "[Voice] Audio message"
)

// Room is a canonical two-party conversation: exactly one customer and one
// designer. Rooms are created by the backend on first contact and never
// deleted client-side.
type Room struct {
	ID          int
	Customer    identity.User
	Designer    identity.User
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UnreadCount int
}

// HasParticipant reports whether u is one of the room's two parties.
func (r Room) HasParticipant(u identity.User) bool {
	return u.Matches(r.Customer) || u.Matches(r.Designer)
}

// Other returns the participant that is not me. When me matches neither
// party the customer is returned, mirroring the backend's default ordering.
func (r Room) Other(me identity.User) identity.User {
	if me.Matches(r.Customer) {
		return r.Designer
	}
	return r.Customer
}

// IsPair reports whether the room connects exactly the two given users, in
// either participant order.
func (r Room) IsPair(a, b identity.User) bool {
	return (a.Matches(r.Customer) && b.Matches(r.Designer)) ||
		(a.Matches(r.Designer) && b.Matches(r.Customer))
}

// Message is the canonical message shape. Exactly one of Content-as-text,
// FileURL or AudioURL carries the payload.
type Message struct {
	ID         int
	RoomID     int
	SenderID   int
	SenderName string
	Content    string
	Timestamp  time.Time
	IsRead     bool
	FileURL    string
	AudioURL   string
}

// DisplayContent returns the free-text content, or "" when the message
// carries a file or audio payload (the marker is presentation noise).
func (m Message) DisplayContent() string {
	if strings.Contains(m.Content, FileMarker) || strings.Contains(m.Content, VoiceMarker) {
		return ""
	}
	return m.Content
}

// FileName extracts the original file name from a file message's marker
// content, defaulting to "file".
func (m Message) FileName() string {
	if _, name, ok := strings.Cut(m.Content, FileMarker+" "); ok && name != "" {
		return name
	}
	return "file"
}

// NormalizeMessage converts a wire message into the canonical shape. Every
// field defaults rather than fails; a malformed payload degrades to a safe
// placeholder instead of breaking the reconciler. fallbackRoom fills the room
// id when the wire shape omits it.
func NormalizeMessage(raw rest.Message, fallbackRoom int) Message {
	m := Message{
		ID:         raw.ID,
		RoomID:     raw.Room,
		SenderID:   raw.Sender,
		SenderName: raw.SenderName,
		Content:    raw.Content,
		IsRead:     raw.IsRead,
		FileURL:    raw.FileURL,
		AudioURL:   raw.AudioURL,
	}
	if m.RoomID == 0 {
		m.RoomID = fallbackRoom
	}
	if m.Content == "" {
		m.Content = raw.Text
	}
	if m.FileURL == "" {
		m.FileURL = raw.File
	}
	if m.AudioURL == "" {
		m.AudioURL = raw.Audio
	}
	if ts, err := time.Parse(time.RFC3339, raw.Timestamp); err == nil {
		m.Timestamp = ts
	} else {
		m.Timestamp = time.Now()
	}
	return m
}

// NormalizeRoom converts a wire room into the canonical shape, defaulting
// absent timestamps and unread counts.
func NormalizeRoom(raw rest.Room) Room {
	room := Room{
		ID:          raw.ID,
		Customer:    raw.Customer.Canonical(),
		Designer:    raw.Designer.Canonical(),
		UnreadCount: raw.UnreadCount,
	}
	room.CreatedAt = parseTimeOrNow(raw.CreatedAt)
	room.UpdatedAt = parseTimeOrNow(raw.UpdatedAt)
	return room
}

func parseTimeOrNow(s string) time.Time {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Now()
}
