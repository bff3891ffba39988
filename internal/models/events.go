package models

import "encoding/json"

// Event names pushed by the server. Inbound event names live in the router's
// dispatch table.
const (
	EventAck             = "ack"
	EventUsers           = "users"
	EventUsersCount      = "users_count"
	EventRooms           = "rooms"
	EventRecentMessages  = "recent_messages"
	EventRoomMessages    = "room_messages"
	EventRoomUsers       = "room_users"
	EventMessage         = "message"
	EventPrivateMessage  = "private_message"
	EventMessageRead     = "message_read"
	EventMessageReaction = "message_reaction"
	EventTyping          = "typing"
	EventNotification    = "notification"
)

// Frame is the wire envelope for every inbound client event. AckID, when set,
// requests a one-shot ack correlated to this frame.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	AckID   string          `json:"ackId,omitempty"`
}

// Push is the wire envelope for server-initiated events and acks.
type Push struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
	AckID   string `json:"ackId,omitempty"`
}

// Request payloads, one tagged struct per inbound event.

type JoinRequest struct {
	Username string `json:"username"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type RoomRequest struct {
	Room string `json:"room"`
}

type MessageRequest struct {
	Room    string `json:"room"`
	Text    string `json:"text"`
	Private bool   `json:"private"`
}

type PrivateMessageRequest struct {
	ToUserID string `json:"toUserId"`
	Text     string `json:"text"`
}

type MarkReadRequest struct {
	MessageID string `json:"messageId"`
}

type ReactRequest struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

type TypingRequest struct {
	Room   string `json:"room"`
	From   string `json:"from"`
	Typing bool   `json:"typing"`
}

// Ack payloads.

type ErrorAck struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error"`
}

type SimpleAck struct {
	Ok bool `json:"ok"`
}

type JoinAck struct {
	Ok   bool   `json:"ok"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateRoomAck struct {
	Ok   bool        `json:"ok"`
	Room RoomSummary `json:"room"`
}

type JoinRoomAck struct {
	Ok       bool      `json:"ok"`
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

type LeaveRoomAck struct {
	Ok   bool   `json:"ok"`
	Room string `json:"room"`
}

type MessageAck struct {
	Ok bool   `json:"ok"`
	ID string `json:"id"`
	TS int64  `json:"ts"`
}

type PrivateMessageAck struct {
	Ok bool   `json:"ok"`
	ID string `json:"id"`
}

type RoomsAck struct {
	Ok    bool          `json:"ok"`
	Rooms []RoomSummary `json:"rooms"`
}

// Broadcast payloads.

type RoomMessagesEvent struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

type RoomUsersEvent struct {
	Room  string `json:"room"`
	Users []User `json:"users"`
}

type MessageReadEvent struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

type MessageReactionEvent struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Reaction  string `json:"reaction"`
	Count     int    `json:"count"`
}

type Notification struct {
	Type string `json:"type"`
	User User   `json:"user"`
}
