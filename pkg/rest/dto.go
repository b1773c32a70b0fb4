package rest

import "github.com/designpro/chatkit/pkg/identity"

// Room is the wire shape of a chat room as returned by the room listing
// endpoint. Timestamps and unread counts are optional on legacy records.
type Room struct {
	ID          int              `json:"id"`
	Customer    identity.Profile `json:"customer"`
	Designer    identity.Profile `json:"designer"`
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
	UnreadCount int              `json:"unread_count"`
}

// Message is the wire shape of a chat message. The backend has shipped two
// generations of field names (content vs text, file_url vs file, audio_url vs
// audio); both are accepted and reconciled during normalization.
type Message struct {
	ID         int    `json:"id"`
	Room       int    `json:"room"`
	Sender     int    `json:"sender"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
	IsRead     bool   `json:"is_read"`
	FileURL    string `json:"file_url"`
	File       string `json:"file"`
	AudioURL   string `json:"audio_url"`
	Audio      string `json:"audio"`
}

// SendMessageInput is the payload of the send-message endpoint. Exactly one
// of content-as-text, FileURL or AudioURL carries the payload; when a file or
// audio reference is attached, Content holds the marker tag.
type SendMessageInput struct {
	Content  string `json:"content"`
	FileURL  string `json:"file_url,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// CreateRoomInput is the payload of the room creation endpoint.
type CreateRoomInput struct {
	SenderID   int `json:"sender_id" validate:"required,gt=0"`
	ReceiverID int `json:"receiver_id" validate:"required,gt=0"`
}

// CreateRoomResponse is the room creation result. Data is absent on some
// backend versions.
type CreateRoomResponse struct {
	Detail string `json:"detail"`
	RoomID int    `json:"room_id"`
	Data   *struct {
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	} `json:"data"`
}

// SignInResponse is the token endpoint result.
type SignInResponse struct {
	Token string           `json:"token"`
	User  identity.Profile `json:"user"`
}
