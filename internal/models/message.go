package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Message represents a chat message. SenderName is a snapshot taken at send
// time; renaming a user never rewrites history.
type Message struct {
	ID         string         `json:"id" db:"id"`
	Room       string         `json:"room" db:"room"`
	SenderID   string         `json:"senderId" db:"sender_id"`
	SenderName string         `json:"senderName" db:"sender_name"`
	Text       string         `json:"text" db:"text"`
	Timestamp  int64          `json:"timestamp" db:"timestamp"`
	Private    bool           `json:"private" db:"private"`
	ReadBy     []string       `json:"readBy,omitempty"`
	Reactions  map[string]int `json:"reactions,omitempty"`
}

// NewMessage builds a message with a generated id and current timestamp.
func NewMessage(room, senderID, senderName, text string, private bool) Message {
	ts := time.Now().UnixMilli()
	return Message{
		ID:         fmt.Sprintf("%d-%s", ts, uuid.NewString()[:8]),
		Room:       room,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  ts,
		Private:    private,
	}
}

// PrivateChannel derives the deterministic channel id for a user pair.
func PrivateChannel(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return "pm:" + pair[0] + "-" + pair[1]
}
